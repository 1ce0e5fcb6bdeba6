package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

// DATE and TIME columns are rendered as YYYY-MM-DD and HH:MM so the model can carry
// them as plain strings.
const appointmentColumns = `
	a.id, a.patient_id, a.doctor_id,
	to_char(a.date, 'YYYY-MM-DD') AS date,
	to_char(a.start_time, 'HH24:MI') AS start_time,
	to_char(a.end_time, 'HH24:MI') AS end_time,
	a.status, a.priority, a.reason, a.reschedule_reason,
	to_char(a.proposed_date, 'YYYY-MM-DD') AS proposed_date,
	to_char(a.proposed_start_time, 'HH24:MI') AS proposed_start_time,
	a.cancellation_reason, a.conflicting_appointment_id,
	a.created_at, a.updated_at`

const appointmentDetailFrom = `
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN users pu ON pu.id = p.user_id
	JOIN doctors d ON d.id = a.doctor_id
	JOIN users du ON du.id = d.user_id`

const slotEntryColumns = `
	a.id, a.patient_id, pu.full_name AS requester_name,
	to_char(a.date, 'YYYY-MM-DD') AS date,
	to_char(a.start_time, 'HH24:MI') AS start_time,
	a.status, a.priority, a.created_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) Create(ctx context.Context, apt *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, date, start_time, end_time,
			status, priority, reason, conflicting_appointment_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	now := time.Now().UTC()
	apt.CreatedAt = now
	apt.UpdatedAt = now

	_, err := r.q.ExecContext(ctx, query,
		apt.ID, apt.PatientID, apt.DoctorID, apt.Date, apt.StartTime, apt.EndTime,
		apt.Status, apt.Priority, apt.Reason, apt.ConflictingAppointmentID,
		apt.CreatedAt, apt.UpdatedAt,
	)
	if err != nil {
		if isSlotTaken(err) {
			return repository.ErrSlotTaken
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + ` FROM appointments a WHERE a.id = $1`

	var apt model.Appointment
	if err := sqlx.GetContext(ctx, r.q, &apt, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", notFound(err))
	}
	return &apt, nil
}

func (r *appointmentRepository) GetDetail(ctx context.Context, id uuid.UUID) (*model.AppointmentDetail, error) {
	query := `SELECT` + appointmentColumns + `,
		pu.full_name AS patient_name,
		du.full_name AS doctor_name,
		d.specialization AS doctor_specialization` +
		appointmentDetailFrom + `
		WHERE a.id = $1`

	var detail model.AppointmentDetail
	if err := sqlx.GetContext(ctx, r.q, &detail, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", notFound(err))
	}
	return &detail, nil
}

// Update writes every mutable column. Priority is fixed at booking and never rewritten.
func (r *appointmentRepository) Update(ctx context.Context, apt *model.Appointment) error {
	query := `
		UPDATE appointments SET
			date = $1,
			start_time = $2,
			end_time = $3,
			status = $4,
			reason = $5,
			reschedule_reason = $6,
			proposed_date = $7,
			proposed_start_time = $8,
			cancellation_reason = $9,
			updated_at = $10
		WHERE id = $11`

	apt.UpdatedAt = time.Now().UTC()

	result, err := r.q.ExecContext(ctx, query,
		apt.Date, apt.StartTime, apt.EndTime, apt.Status, apt.Reason,
		apt.RescheduleReason, apt.ProposedDate, apt.ProposedStartTime,
		apt.CancellationReason, apt.UpdatedAt, apt.ID,
	)
	if err != nil {
		if isSlotTaken(err) {
			return repository.ErrSlotTaken
		}
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to update appointment %s: %w", apt.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filters != nil {
		if filters.PatientID != nil {
			args = append(args, *filters.PatientID)
			conditions = append(conditions, fmt.Sprintf("a.patient_id = $%d", len(args)))
		}
		if filters.DoctorID != nil {
			args = append(args, *filters.DoctorID)
			conditions = append(conditions, fmt.Sprintf("a.doctor_id = $%d", len(args)))
		}
		if filters.Status != "" {
			args = append(args, filters.Status)
			conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)))
		}
		if filters.Date != "" {
			args = append(args, filters.Date)
			conditions = append(conditions, fmt.Sprintf("a.date = $%d", len(args)))
		}
	}

	query := `SELECT` + appointmentColumns + `,
		pu.full_name AS patient_name,
		du.full_name AS doctor_name,
		d.specialization AS doctor_specialization` + appointmentDetailFrom
	if len(conditions) > 0 {
		query += "\n\tWHERE " + strings.Join(conditions, " AND ")
	}
	query += "\n\tORDER BY a.date DESC, a.start_time DESC, a.created_at ASC"

	appointments := []*model.AppointmentDetail{}
	if err := sqlx.SelectContext(ctx, r.q, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) FindSlotAppointments(ctx context.Context, slot model.Slot, excludeID *uuid.UUID) ([]*model.SlotEntry, error) {
	query := `SELECT` + slotEntryColumns + `
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN users pu ON pu.id = p.user_id
		WHERE a.doctor_id = $1 AND a.date = $2 AND a.start_time = $3
		AND a.status <> 'cancelled'`
	args := []interface{}{slot.DoctorID, slot.Date, slot.StartTime}
	if excludeID != nil {
		args = append(args, *excludeID)
		query += ` AND a.id <> $4`
	}
	query += ` ORDER BY a.created_at ASC, a.id ASC`

	entries := []*model.SlotEntry{}
	if err := sqlx.SelectContext(ctx, r.q, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find slot appointments: %w", err)
	}
	return entries, nil
}

func (r *appointmentRepository) FindActiveByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.SlotEntry, error) {
	query := `SELECT` + slotEntryColumns + `
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN users pu ON pu.id = p.user_id
		WHERE a.doctor_id = $1 AND a.status <> 'cancelled'
		ORDER BY a.date ASC, a.start_time ASC, a.created_at ASC, a.id ASC`

	entries := []*model.SlotEntry{}
	if err := sqlx.SelectContext(ctx, r.q, &entries, query, doctorID); err != nil {
		return nil, fmt.Errorf("failed to find doctor appointments: %w", err)
	}
	return entries, nil
}

func (r *appointmentRepository) HasConfirmed(ctx context.Context, slot model.Slot, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND date = $2 AND start_time = $3
			AND status = 'confirmed'
			AND ($4::uuid IS NULL OR id <> $4::uuid)
		)`

	var exists bool
	if err := sqlx.GetContext(ctx, r.q, &exists, query, slot.DoctorID, slot.Date, slot.StartTime, excludeID); err != nil {
		return false, fmt.Errorf("failed to check confirmed appointment: %w", err)
	}
	return exists, nil
}

// LockSlot takes a transaction-scoped advisory lock keyed by the slot. Outside a
// transaction the lock is released as soon as the statement finishes.
func (r *appointmentRepository) LockSlot(ctx context.Context, slot model.Slot) error {
	if _, err := r.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, slot.Key()); err != nil {
		return fmt.Errorf("failed to lock slot: %w", err)
	}
	return nil
}
