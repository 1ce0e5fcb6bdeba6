// Package medical creates the clinical records that follow a completed appointment.
package medical

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

const (
	stepResolveOwner = "resolve_owner"
	stepEnsureRecord = "ensure_record"
	stepCreateVisit  = "create_visit"
)

const (
	SourceInline = "inline"
	SourceOutbox = "outbox"
)

// StepError names the cascade step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("completion cascade %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Service runs the completion cascade: resolve the patient's user id, make sure a
// medical record exists for it, then add one visit for the appointment. Every step is
// idempotent so the cascade can run inline and again from the outbox.
type Service struct {
	profiles repository.ProfileRepository
	records  repository.MedicalRecordRepository
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(profiles repository.ProfileRepository, records repository.MedicalRecordRepository, logger *logger.Logger, metrics *metrics.Metrics) *Service {
	return &Service{
		profiles: profiles,
		records:  records,
		logger:   logger.With(map[string]interface{}{"component": "completion_cascade"}),
		metrics:  metrics,
		now:      time.Now,
	}
}

func (s *Service) Run(ctx context.Context, apt *model.Appointment, source string) error {
	created, err := s.run(ctx, apt)
	if err != nil {
		step := "unknown"
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			step = stepErr.Step
		}
		s.metrics.CascadeFailures.WithLabelValues(step).Inc()
		s.metrics.CascadeRuns.WithLabelValues(source, "failed").Inc()
		s.logger.Error(err, "completion cascade failed",
			"appointment_id", apt.ID.String(),
			"patient_id", apt.PatientID.String(),
			"step", step,
			"source", source)
		return err
	}

	result := "skipped"
	if created {
		result = "created"
	}
	s.metrics.CascadeRuns.WithLabelValues(source, result).Inc()
	s.logger.Debug("completion cascade finished",
		"appointment_id", apt.ID.String(),
		"visit_created", created,
		"source", source)
	return nil
}

func (s *Service) run(ctx context.Context, apt *model.Appointment) (bool, error) {
	patient, err := s.profiles.GetPatient(ctx, apt.PatientID)
	if err != nil {
		return false, &StepError{Step: stepResolveOwner, Err: err}
	}

	record, err := s.ensureRecord(ctx, patient)
	if err != nil {
		return false, &StepError{Step: stepEnsureRecord, Err: err}
	}

	created, err := s.records.CreateVisit(ctx, &model.Visit{
		MedicalRecordID: record.ID,
		DoctorID:        apt.DoctorID,
		AppointmentID:   apt.ID,
		VisitDate:       apt.Date,
		ChiefComplaint:  apt.Reason,
	})
	if err != nil {
		return false, &StepError{Step: stepCreateVisit, Err: err}
	}
	return created, nil
}

// ensureRecord returns the patient's medical record, creating it on first completion.
// Records are keyed by the patient's user id.
func (s *Service) ensureRecord(ctx context.Context, patient *model.PatientProfile) (*model.MedicalRecord, error) {
	record, err := s.records.GetByUserID(ctx, patient.UserID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	contact := patient.Phone
	if contact == "" {
		contact = patient.Email
	}
	return s.records.Create(ctx, &model.MedicalRecord{
		UserID:  patient.UserID,
		Age:     patient.AgeAt(s.now()),
		Address: patient.Address,
		Contact: contact,
	})
}

// HandleCompleted is the outbox handler for appointment.completed.
func (s *Service) HandleCompleted(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.AppointmentEvent
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", event.EventType, err)
	}
	return s.Run(ctx, &payload.Appointment, SourceOutbox)
}
