// Package notification emails the parties of an appointment about reschedule proposals
// and cancellations. It runs as outbox handlers, so a failed send is retried by the
// outbox processor.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwalitptl/clinic-scheduler/internal/email"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

const (
	kindRescheduleProposal = "reschedule_proposal"
	kindCancellation       = "cancellation"
)

type Service struct {
	profiles repository.ProfileRepository
	emailSvc email.Service
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(profiles repository.ProfileRepository, emailSvc email.Service, logger *logger.Logger, metrics *metrics.Metrics) *Service {
	return &Service{
		profiles: profiles,
		emailSvc: emailSvc,
		logger:   logger.With(map[string]interface{}{"component": "notification"}),
		metrics:  metrics,
	}
}

// HandleRescheduleRequested tells the patient about the doctor's proposal.
func (s *Service) HandleRescheduleRequested(ctx context.Context, event *model.OutboxEvent) error {
	payload, err := decode(event)
	if err != nil {
		return err
	}
	apt := payload.Appointment
	if !apt.HasProposal() {
		return nil
	}

	patient, err := s.profiles.GetPatient(ctx, apt.PatientID)
	if err != nil {
		return fmt.Errorf("failed to load patient: %w", err)
	}
	doctor, err := s.profiles.GetDoctor(ctx, apt.DoctorID)
	if err != nil {
		return fmt.Errorf("failed to load doctor: %w", err)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\n\n", patient.FullName)
	fmt.Fprintf(&body, "%s has asked to move your appointment on %s at %s.\n", doctor.FullName, apt.Date, apt.StartTime)
	fmt.Fprintf(&body, "Proposed time: %s at %s.\n", *apt.ProposedDate, *apt.ProposedStartTime)
	if apt.RescheduleReason != nil {
		fmt.Fprintf(&body, "Reason: %s\n", *apt.RescheduleReason)
	}
	body.WriteString("\nPlease confirm the new time from your dashboard.\n")

	return s.send(ctx, kindRescheduleProposal, email.Message{
		To:      patient.Email,
		Subject: "Your appointment needs a new time",
		Body:    body.String(),
	})
}

// HandleCancelled tells the other party of a cancellation. Cancellations made by staff
// are sent to both the patient and the doctor.
func (s *Service) HandleCancelled(ctx context.Context, event *model.OutboxEvent) error {
	payload, err := decode(event)
	if err != nil {
		return err
	}
	apt := payload.Appointment

	patient, err := s.profiles.GetPatient(ctx, apt.PatientID)
	if err != nil {
		return fmt.Errorf("failed to load patient: %w", err)
	}
	doctor, err := s.profiles.GetDoctor(ctx, apt.DoctorID)
	if err != nil {
		return fmt.Errorf("failed to load doctor: %w", err)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "The appointment between %s and %s on %s at %s has been cancelled.\n",
		patient.FullName, doctor.FullName, apt.Date, apt.StartTime)
	if apt.CancellationReason != nil {
		fmt.Fprintf(&body, "Reason: %s\n", *apt.CancellationReason)
	}

	var recipients []string
	switch payload.ActorRole {
	case model.RolePatient:
		recipients = []string{doctor.Email}
	case model.RoleDoctor:
		recipients = []string{patient.Email}
	default:
		recipients = []string{patient.Email, doctor.Email}
	}

	for _, to := range recipients {
		err := s.send(ctx, kindCancellation, email.Message{
			To:      to,
			Subject: "Appointment cancelled",
			Body:    body.String(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) send(ctx context.Context, kind string, msg email.Message) error {
	if msg.To == "" {
		s.metrics.NotificationsSent.WithLabelValues(kind, "skipped").Inc()
		s.logger.Debug("recipient has no email address", "kind", kind)
		return nil
	}

	if err := s.emailSvc.Send(ctx, msg); err != nil {
		s.metrics.NotificationsSent.WithLabelValues(kind, "failed").Inc()
		return err
	}
	s.metrics.NotificationsSent.WithLabelValues(kind, "sent").Inc()
	return nil
}

func decode(event *model.OutboxEvent) (*model.AppointmentEvent, error) {
	var payload model.AppointmentEvent
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", event.EventType, err)
	}
	return &payload, nil
}
