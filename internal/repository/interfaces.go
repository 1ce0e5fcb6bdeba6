package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrSlotTaken is returned when a write would put a second confirmed appointment
	// into the same slot.
	ErrSlotTaken = errors.New("slot already has a confirmed appointment")
)

// All repository interfaces in one file
type (
	// AppointmentRepository is the durable store of appointments. Appointments are
	// never hard-deleted.
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		GetDetail(ctx context.Context, id uuid.UUID) (*model.AppointmentDetail, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, error)
		// FindSlotAppointments returns non-cancelled appointments at the exact slot,
		// oldest request first.
		FindSlotAppointments(ctx context.Context, slot model.Slot, excludeID *uuid.UUID) ([]*model.SlotEntry, error)
		// FindActiveByDoctor returns the doctor's non-cancelled appointments ordered by
		// slot then request time.
		FindActiveByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.SlotEntry, error)
		HasConfirmed(ctx context.Context, slot model.Slot, excludeID *uuid.UUID) (bool, error)
		// LockSlot serializes writers on a slot until the surrounding transaction ends.
		LockSlot(ctx context.Context, slot model.Slot) error
	}

	ProfileRepository interface {
		GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*model.PatientProfile, error)
		GetPatient(ctx context.Context, id uuid.UUID) (*model.PatientProfile, error)
		GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*model.DoctorProfile, error)
		GetDoctor(ctx context.Context, id uuid.UUID) (*model.DoctorProfile, error)
	}

	MedicalRecordRepository interface {
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.MedicalRecord, error)
		// Create inserts the record unless one already exists for the user; either way
		// the stored record is returned.
		Create(ctx context.Context, record *model.MedicalRecord) (*model.MedicalRecord, error)
		// CreateVisit inserts at most one visit per appointment. It reports whether a row
		// was written.
		CreateVisit(ctx context.Context, visit *model.Visit) (bool, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending leases up to limit due events so that concurrent workers skip them
		// until the lease expires.
		ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, nextAttempt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// UnitOfWork exposes repositories bound to one transaction.
	UnitOfWork interface {
		Appointments() AppointmentRepository
		Outbox() OutboxRepository
	}

	Transactor interface {
		WithTx(ctx context.Context, fn func(uow UnitOfWork) error) error
	}
)
