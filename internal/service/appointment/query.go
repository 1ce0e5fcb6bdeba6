package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/policy"
	"github.com/jwalitptl/clinic-scheduler/internal/service/conflict"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

// List returns the appointments visible to the actor: patients and doctors see their
// own, admin and staff see all. status and date are optional filters.
func (s *Service) List(ctx context.Context, actor model.Actor, status, date string) ([]*model.AppointmentDetail, error) {
	filters := &model.AppointmentFilters{}

	if status != "" {
		filters.Status = model.AppointmentStatus(status)
		if !filters.Status.IsValid() {
			return nil, apperrors.Validation(fmt.Sprintf("invalid status %q", status), nil)
		}
	}
	if date != "" {
		d, err := model.NormalizeDate(date)
		if err != nil {
			return nil, apperrors.Validation(err.Error(), err)
		}
		filters.Date = d
	}

	switch {
	case actor.Role == model.RolePatient:
		if actor.PatientID == nil {
			return nil, apperrors.NotFound("patient profile", nil)
		}
		filters.PatientID = actor.PatientID
	case actor.Role == model.RoleDoctor:
		if actor.DoctorID == nil {
			return nil, apperrors.NotFound("doctor profile", nil)
		}
		filters.DoctorID = actor.DoctorID
	case actor.Role.IsStaff():
	default:
		return nil, apperrors.Forbidden("you cannot list appointments")
	}

	list, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.AppointmentDetail, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if err := policy.Authorize(actor, &detail.Appointment, policy.ActionView); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListConflicts returns the calling doctor's slots that more than one request competes for.
func (s *Service) ListConflicts(ctx context.Context, actor model.Actor) ([]model.ConflictGroup, error) {
	if actor.Role != model.RoleDoctor {
		return nil, apperrors.Forbidden("only doctors can list their conflicts")
	}
	if actor.DoctorID == nil {
		return nil, apperrors.NotFound("doctor profile", nil)
	}

	groups, err := conflict.NewDetector(s.repo).ListConflicts(ctx, *actor.DoctorID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return groups, nil
}
