package appointment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/policy"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/internal/service/conflict"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

const (
	msgPriorityConflict = "this appointment conflicts with an earlier request for the same slot and cannot be confirmed; request a reschedule instead"
	msgSlotConfirmed    = "another appointment is already confirmed for this time slot"
)

// CreateAppointment books a slot for the calling patient. A taken slot never fails the
// booking: the request is queued behind every earlier non-cancelled request and the
// result carries those requests plus an advisory message.
func (s *Service) CreateAppointment(ctx context.Context, actor model.Actor, req model.CreateAppointmentRequest) (*model.BookingResult, error) {
	if actor.Role != model.RolePatient {
		return nil, apperrors.Forbidden("only patients can book appointments")
	}
	if actor.PatientID == nil {
		return nil, apperrors.NotFound("patient profile", nil)
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return nil, apperrors.Validation("doctorId must be a valid id", err)
	}
	date, err := model.NormalizeDate(req.Date)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), err)
	}
	start, err := model.NormalizeClock(req.StartTime)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), err)
	}
	end := start
	if req.EndTime != "" {
		if end, err = model.NormalizeClock(req.EndTime); err != nil {
			return nil, apperrors.Validation(err.Error(), err)
		}
		if end < start {
			return nil, apperrors.Validation("endTime cannot be before startTime", nil)
		}
	}

	if _, err := s.profiles.GetDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, apperrors.Internal(err)
	}

	apt := &model.Appointment{
		PatientID: *actor.PatientID,
		DoctorID:  doctorID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Status:    model.AppointmentStatusPending,
		Reason:    strings.TrimSpace(req.Reason),
	}

	var existing []model.SlotEntry
	err = s.tx.WithTx(ctx, func(uow repository.UnitOfWork) error {
		if err := uow.Appointments().LockSlot(ctx, apt.Slot()); err != nil {
			return err
		}

		entries, err := conflict.NewDetector(uow.Appointments()).Detect(ctx, apt.Slot())
		if err != nil {
			return err
		}
		existing = entries

		apt.Priority = len(entries) + 1
		if len(entries) > 0 {
			first := entries[0].ID
			apt.ConflictingAppointmentID = &first
		}

		if err := uow.Appointments().Create(ctx, apt); err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		return writeEvent(ctx, uow, model.EventAppointmentCreated, apt, "", actor)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.metrics.AppointmentsBooked.WithLabelValues(strconv.FormatBool(len(existing) > 0)).Inc()
	s.logger.Info("appointment booked",
		"appointment_id", apt.ID.String(),
		"doctor_id", doctorID.String(),
		"priority", apt.Priority)

	result := &model.BookingResult{Appointment: apt}
	if len(existing) > 0 {
		result.Conflicts = existing
		result.Message = advisory(existing[0], apt.Priority)
	}
	return result, nil
}

func advisory(first model.SlotEntry, priority int) string {
	name := first.RequesterName
	if name == "" {
		name = "another patient"
	}
	return fmt.Sprintf(
		"This time slot was already requested by %s on %s. Your request has priority %d and will stay pending until the doctor resolves the conflict.",
		name, first.CreatedAt.UTC().Format("2006-01-02 15:04"), priority)
}

// UpdateAppointment applies a partial update. Status changes follow the transition
// table; reschedule_requested is reachable only through RequestReschedule and leaving
// it for confirmed only through ConfirmReschedule.
func (s *Service) UpdateAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateAppointmentRequest) (*model.Appointment, error) {
	var (
		apt      *model.Appointment
		previous model.AppointmentStatus
	)

	err := s.tx.WithTx(ctx, func(uow repository.UnitOfWork) error {
		current, err := loadForUpdate(ctx, uow, id)
		if err != nil {
			return err
		}
		if err := policy.Authorize(actor, current, policy.ActionUpdate); err != nil {
			return err
		}
		if err := checkPatientUpdate(actor, current, req); err != nil {
			return err
		}

		apt, previous = current, current.Status

		if req.Reason != nil {
			apt.Reason = strings.TrimSpace(*req.Reason)
		}
		if req.EndTime != nil {
			end, err := model.NormalizeClock(*req.EndTime)
			if err != nil {
				return apperrors.Validation(err.Error(), err)
			}
			if end < apt.StartTime {
				return apperrors.Validation("endTime cannot be before startTime", nil)
			}
			apt.EndTime = end
		}

		if req.Status != nil && *req.Status != apt.Status {
			if err := s.applyStatus(ctx, uow, actor, apt, *req.Status, req.CancellationReason); err != nil {
				return err
			}
		} else if req.CancellationReason != nil && apt.Status != model.AppointmentStatusCancelled {
			return apperrors.Validation("cancellationReason can only be set when cancelling", nil)
		}

		if err := uow.Appointments().Update(ctx, apt); err != nil {
			if errors.Is(err, repository.ErrSlotTaken) {
				s.metrics.ConfirmRejections.WithLabelValues("slot_confirmed").Inc()
			}
			return err
		}
		return writeEvent(ctx, uow, updateEventType(previous, apt.Status), apt, previous, actor)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.recordTransition(previous, apt.Status)
	if apt.Status == model.AppointmentStatusCompleted && previous != model.AppointmentStatusCompleted {
		s.runCascade(ctx, apt)
	}
	return apt, nil
}

// checkPatientUpdate limits an owning patient to editing the reason or cancelling.
func checkPatientUpdate(actor model.Actor, apt *model.Appointment, req model.UpdateAppointmentRequest) error {
	if !policy.OwnsAsPatient(actor, apt) {
		return nil
	}
	if req.EndTime != nil {
		return apperrors.Forbidden("patients can only change the reason or cancel")
	}
	if req.Status != nil && *req.Status != apt.Status && *req.Status != model.AppointmentStatusCancelled {
		return apperrors.Forbidden("patients can only change the reason or cancel")
	}
	return nil
}

func (s *Service) applyStatus(
	ctx context.Context,
	uow repository.UnitOfWork,
	actor model.Actor,
	apt *model.Appointment,
	next model.AppointmentStatus,
	cancellationReason *string,
) error {
	if !next.IsValid() {
		return apperrors.Validation(fmt.Sprintf("invalid status %q", next), nil)
	}

	action := policy.ActionUpdateStatus
	if next == model.AppointmentStatusCancelled {
		action = policy.ActionCancel
	}
	if err := policy.Authorize(actor, apt, action); err != nil {
		return err
	}

	switch {
	case apt.Status.IsTerminal():
		return apperrors.Validation(fmt.Sprintf("appointment is already %s", apt.Status), nil)
	case next == model.AppointmentStatusRescheduleRequested:
		return apperrors.Validation("use request-reschedule to propose a new time", nil)
	case apt.Status == model.AppointmentStatusRescheduleRequested && next == model.AppointmentStatusConfirmed:
		return apperrors.Validation("a pending reschedule must be confirmed by the patient", nil)
	case !apt.Status.CanTransitionTo(next):
		return apperrors.Validation(fmt.Sprintf("cannot change status from %s to %s", apt.Status, next), nil)
	}

	if next == model.AppointmentStatusConfirmed {
		if err := s.checkConfirmable(ctx, uow.Appointments(), apt, apt.Slot()); err != nil {
			return err
		}
	}
	if next != model.AppointmentStatusCancelled && cancellationReason != nil {
		return apperrors.Validation("cancellationReason can only be set when cancelling", nil)
	}
	if next == model.AppointmentStatusCancelled {
		apt.CancellationReason = normalizeReason(cancellationReason)
		apt.ClearProposal()
	}

	apt.Status = next
	return nil
}

// checkConfirmable enforces the confirm rules: the appointment must be the first
// requester of its slot and no other appointment may hold the slot confirmed.
func (s *Service) checkConfirmable(ctx context.Context, repo repository.AppointmentRepository, apt *model.Appointment, slot model.Slot) error {
	if apt.Priority > 1 {
		s.metrics.ConfirmRejections.WithLabelValues("priority").Inc()
		return apperrors.ConflictRule(msgPriorityConflict)
	}
	return s.checkSlotFree(ctx, repo, apt, slot)
}

func (s *Service) checkSlotFree(ctx context.Context, repo repository.AppointmentRepository, apt *model.Appointment, slot model.Slot) error {
	taken, err := repo.HasConfirmed(ctx, slot, &apt.ID)
	if err != nil {
		return fmt.Errorf("failed to check confirmed slot: %w", err)
	}
	if taken {
		s.metrics.ConfirmRejections.WithLabelValues("slot_confirmed").Inc()
		return apperrors.ConflictRule(msgSlotConfirmed)
	}
	return nil
}

func updateEventType(previous, current model.AppointmentStatus) string {
	if previous == current {
		return model.EventAppointmentUpdated
	}
	switch current {
	case model.AppointmentStatusCompleted:
		return model.EventAppointmentCompleted
	case model.AppointmentStatusCancelled:
		return model.EventAppointmentCancelled
	default:
		return model.EventAppointmentUpdated
	}
}

func normalizeReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
