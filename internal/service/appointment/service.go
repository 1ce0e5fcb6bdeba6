package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

// CompletionCascade creates the clinical side effects of a completed appointment.
// Implementations must be idempotent.
type CompletionCascade interface {
	Run(ctx context.Context, apt *model.Appointment, source string) error
}

type Service struct {
	tx       repository.Transactor
	repo     repository.AppointmentRepository
	profiles repository.ProfileRepository
	cascade  CompletionCascade
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(
	tx repository.Transactor,
	repo repository.AppointmentRepository,
	profiles repository.ProfileRepository,
	cascade CompletionCascade,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		tx:       tx,
		repo:     repo,
		profiles: profiles,
		cascade:  cascade,
		logger:   logger.With(map[string]interface{}{"component": "appointment"}),
		metrics:  metrics,
	}
}

// ResolveActor attaches the caller's profile ids. A missing profile leaves the id nil;
// operations that need it report NotFound.
func (s *Service) ResolveActor(ctx context.Context, userID uuid.UUID, role model.Role) (model.Actor, error) {
	actor := model.Actor{UserID: userID, Role: role}

	switch role {
	case model.RolePatient:
		p, err := s.profiles.GetPatientByUserID(ctx, userID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return actor, apperrors.Internal(err)
		}
		if p != nil {
			actor.PatientID = &p.ID
		}
	case model.RoleDoctor:
		d, err := s.profiles.GetDoctorByUserID(ctx, userID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return actor, apperrors.Internal(err)
		}
		if d != nil {
			actor.DoctorID = &d.ID
		}
	case model.RoleAdmin, model.RoleStaff:
	default:
		return actor, apperrors.Forbidden(fmt.Sprintf("role %q is not allowed", role))
	}

	return actor, nil
}

// loadForUpdate locks the appointment's slot and reads the current row inside the
// transaction.
func loadForUpdate(ctx context.Context, uow repository.UnitOfWork, id uuid.UUID) (*model.Appointment, error) {
	current, err := uow.Appointments().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := uow.Appointments().LockSlot(ctx, current.Slot()); err != nil {
		return nil, err
	}
	// re-read: the row may have changed while waiting for the lock
	return uow.Appointments().Get(ctx, id)
}

// lockSlots takes slot locks in key order so two transactions never wait on each
// other in opposite order.
func lockSlots(ctx context.Context, repo repository.AppointmentRepository, slots ...model.Slot) error {
	sort.Slice(slots, func(i, j int) bool { return slots[i].Key() < slots[j].Key() })
	for _, slot := range slots {
		if err := repo.LockSlot(ctx, slot); err != nil {
			return err
		}
	}
	return nil
}

func writeEvent(ctx context.Context, uow repository.UnitOfWork, eventType string, apt *model.Appointment, previous model.AppointmentStatus, actor model.Actor) error {
	evt, err := model.NewAppointmentEvent(eventType, apt, previous, actor)
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", eventType, err)
	}
	return uow.Outbox().Create(ctx, evt)
}

// translate maps repository and infrastructure errors onto the API taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("appointment", err)
	case errors.Is(err, repository.ErrSlotTaken):
		return apperrors.ConflictRule(msgSlotConfirmed)
	default:
		return apperrors.Internal(err)
	}
}

func (s *Service) recordTransition(from, to model.AppointmentStatus) {
	if from != to {
		s.metrics.AppointmentTransitions.WithLabelValues(string(from), string(to)).Inc()
	}
}

// runCascade is the best-effort second phase of completion. The outbox event written
// with the status change lets the worker retry whatever fails here.
func (s *Service) runCascade(ctx context.Context, apt *model.Appointment) {
	if s.cascade == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.cascade.Run(ctx, apt, "inline"); err != nil {
		s.logger.Warn("completion cascade deferred to outbox",
			"appointment_id", apt.ID.String(),
			"error", err.Error())
	}
}
