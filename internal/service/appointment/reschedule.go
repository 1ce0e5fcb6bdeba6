package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/policy"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

// RequestReschedule records the owning doctor's proposal. The booked date and time are
// kept until the patient accepts; a repeated request overwrites the previous proposal.
func (s *Service) RequestReschedule(ctx context.Context, actor model.Actor, id uuid.UUID, req model.RequestRescheduleRequest) (*model.Appointment, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apperrors.Validation("reason is required", nil)
	}
	date, err := model.NormalizeDate(req.ProposedDate)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), err)
	}
	start, err := model.NormalizeClock(req.ProposedStartTime)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), err)
	}

	var (
		apt      *model.Appointment
		previous model.AppointmentStatus
	)
	err = s.tx.WithTx(ctx, func(uow repository.UnitOfWork) error {
		current, err := loadForUpdate(ctx, uow, id)
		if err != nil {
			return err
		}
		if err := policy.Authorize(actor, current, policy.ActionRequestReschedule); err != nil {
			return err
		}
		if !current.Status.CanTransitionTo(model.AppointmentStatusRescheduleRequested) {
			return apperrors.Validation(fmt.Sprintf("cannot request a reschedule for a %s appointment", current.Status), nil)
		}

		apt, previous = current, current.Status
		apt.Status = model.AppointmentStatusRescheduleRequested
		apt.RescheduleReason = &reason
		apt.ProposedDate = &date
		apt.ProposedStartTime = &start

		if err := uow.Appointments().Update(ctx, apt); err != nil {
			return fmt.Errorf("failed to store reschedule proposal: %w", err)
		}
		return writeEvent(ctx, uow, model.EventAppointmentRescheduleRequested, apt, previous, actor)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.recordTransition(previous, apt.Status)
	s.logger.Info("reschedule requested",
		"appointment_id", apt.ID.String(),
		"proposed_date", date,
		"proposed_start_time", start)
	return apt, nil
}

// ConfirmReschedule moves the appointment into the proposed slot and confirms it. The
// original duration is kept. The new slot must not already hold a confirmed
// appointment.
func (s *Service) ConfirmReschedule(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	var (
		apt      *model.Appointment
		previous model.AppointmentStatus
	)

	err := s.tx.WithTx(ctx, func(uow repository.UnitOfWork) error {
		current, err := uow.Appointments().Get(ctx, id)
		if err != nil {
			return err
		}
		if err := checkProposal(actor, current); err != nil {
			return err
		}

		target := model.Slot{DoctorID: current.DoctorID, Date: *current.ProposedDate, StartTime: *current.ProposedStartTime}
		if err := lockSlots(ctx, uow.Appointments(), current.Slot(), target); err != nil {
			return err
		}

		// the proposal may have been replaced or withdrawn while waiting for the locks
		current, err = uow.Appointments().Get(ctx, id)
		if err != nil {
			return err
		}
		if err := checkProposal(actor, current); err != nil {
			return err
		}
		target = model.Slot{DoctorID: current.DoctorID, Date: *current.ProposedDate, StartTime: *current.ProposedStartTime}

		if err := s.checkSlotFree(ctx, uow.Appointments(), current, target); err != nil {
			return err
		}

		apt, previous = current, current.Status
		apt.EndTime = shiftEnd(apt.StartTime, apt.EndTime, target.StartTime)
		apt.Date = target.Date
		apt.StartTime = target.StartTime
		apt.Status = model.AppointmentStatusConfirmed
		apt.ClearProposal()

		if err := uow.Appointments().Update(ctx, apt); err != nil {
			return err
		}
		return writeEvent(ctx, uow, model.EventAppointmentRescheduled, apt, previous, actor)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.recordTransition(previous, apt.Status)
	return apt, nil
}

func checkProposal(actor model.Actor, apt *model.Appointment) error {
	if err := policy.Authorize(actor, apt, policy.ActionConfirmReschedule); err != nil {
		return err
	}
	if apt.Status != model.AppointmentStatusRescheduleRequested {
		return apperrors.Validation("no reschedule has been requested for this appointment", nil)
	}
	if !apt.HasProposal() {
		return apperrors.Validation("reschedule proposal is incomplete", nil)
	}
	return nil
}

// shiftEnd moves the end time along with the start. A zero or unknown duration, or one
// that would run past midnight, collapses the end onto the new start.
func shiftEnd(oldStart, oldEnd, newStart string) string {
	from, err1 := time.Parse(model.ClockLayout, oldStart)
	to, err2 := time.Parse(model.ClockLayout, oldEnd)
	start, err3 := time.Parse(model.ClockLayout, newStart)
	if err1 != nil || err2 != nil || err3 != nil {
		return newStart
	}

	duration := to.Sub(from)
	end := start.Add(duration)
	if duration <= 0 || end.Day() != start.Day() {
		return newStart
	}
	return end.Format(model.ClockLayout)
}

// CancelAppointment soft-cancels the appointment. Cancellation is terminal and frees
// the slot for conflict detection.
func (s *Service) CancelAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, reason *string) (*model.Appointment, error) {
	var (
		apt      *model.Appointment
		previous model.AppointmentStatus
	)

	err := s.tx.WithTx(ctx, func(uow repository.UnitOfWork) error {
		current, err := loadForUpdate(ctx, uow, id)
		if err != nil {
			return err
		}
		if err := policy.Authorize(actor, current, policy.ActionCancel); err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return apperrors.Validation(fmt.Sprintf("appointment is already %s", current.Status), nil)
		}

		apt, previous = current, current.Status
		apt.Status = model.AppointmentStatusCancelled
		apt.CancellationReason = normalizeReason(reason)
		apt.ClearProposal()

		if err := uow.Appointments().Update(ctx, apt); err != nil {
			return fmt.Errorf("failed to cancel appointment: %w", err)
		}
		return writeEvent(ctx, uow, model.EventAppointmentCancelled, apt, previous, actor)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.recordTransition(previous, apt.Status)
	s.logger.Info("appointment cancelled",
		"appointment_id", apt.ID.String(),
		"actor_role", string(actor.Role))
	return apt, nil
}
