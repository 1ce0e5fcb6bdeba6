package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

const medicalRecordColumns = `
	id, user_id, age, address, contact, medical_history, allergies,
	current_medications, family_history, created_at, updated_at`

type medicalRecordRepository struct {
	BaseRepository
}

func NewMedicalRecordRepository(base BaseRepository) repository.MedicalRecordRepository {
	return &medicalRecordRepository{base}
}

func (r *medicalRecordRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.MedicalRecord, error) {
	query := `SELECT` + medicalRecordColumns + ` FROM medical_records WHERE user_id = $1`

	var record model.MedicalRecord
	if err := sqlx.GetContext(ctx, r.q, &record, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get medical record: %w", notFound(err))
	}
	return &record, nil
}

// Create relies on the unique user_id so that concurrent completions for the same
// patient end up sharing one record.
func (r *medicalRecordRepository) Create(ctx context.Context, record *model.MedicalRecord) (*model.MedicalRecord, error) {
	query := `
		INSERT INTO medical_records (
			id, user_id, age, address, contact, medical_history, allergies,
			current_medications, family_history, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING` + medicalRecordColumns

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	var stored model.MedicalRecord
	err := sqlx.GetContext(ctx, r.q, &stored, query,
		record.ID, record.UserID, record.Age, record.Address, record.Contact,
		record.MedicalHistory, record.Allergies, record.CurrentMedications,
		record.FamilyHistory, record.CreatedAt, record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return r.GetByUserID(ctx, record.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create medical record: %w", err)
	}
	return &stored, nil
}

func (r *medicalRecordRepository) CreateVisit(ctx context.Context, visit *model.Visit) (bool, error) {
	query := `
		INSERT INTO visits (
			id, medical_record_id, doctor_id, appointment_id,
			visit_date, chief_complaint, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (appointment_id) DO NOTHING`

	if visit.ID == uuid.Nil {
		visit.ID = uuid.New()
	}
	visit.CreatedAt = time.Now().UTC()

	result, err := r.q.ExecContext(ctx, query,
		visit.ID, visit.MedicalRecordID, visit.DoctorID, visit.AppointmentID,
		visit.VisitDate, visit.ChiefComplaint, visit.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create visit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}
