package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

const patientProfileQuery = `
	SELECT p.id, p.user_id, u.full_name, u.email,
		COALESCE(NULLIF(p.phone, ''), u.phone, '') AS phone,
		COALESCE(NULLIF(p.address, ''), u.address, '') AS address,
		p.date_of_birth
	FROM patients p
	JOIN users u ON u.id = p.user_id`

const doctorProfileQuery = `
	SELECT d.id, d.user_id, u.full_name, u.email, d.specialization
	FROM doctors d
	JOIN users u ON u.id = d.user_id`

type profileRepository struct {
	BaseRepository
}

func NewProfileRepository(base BaseRepository) repository.ProfileRepository {
	return &profileRepository{base}
}

func (r *profileRepository) GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*model.PatientProfile, error) {
	return r.getPatient(ctx, patientProfileQuery+` WHERE p.user_id = $1`, userID)
}

func (r *profileRepository) GetPatient(ctx context.Context, id uuid.UUID) (*model.PatientProfile, error) {
	return r.getPatient(ctx, patientProfileQuery+` WHERE p.id = $1`, id)
}

func (r *profileRepository) getPatient(ctx context.Context, query string, arg uuid.UUID) (*model.PatientProfile, error) {
	var profile model.PatientProfile
	if err := sqlx.GetContext(ctx, r.q, &profile, query, arg); err != nil {
		return nil, fmt.Errorf("failed to get patient profile: %w", notFound(err))
	}
	return &profile, nil
}

func (r *profileRepository) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*model.DoctorProfile, error) {
	return r.getDoctor(ctx, doctorProfileQuery+` WHERE d.user_id = $1`, userID)
}

func (r *profileRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*model.DoctorProfile, error) {
	return r.getDoctor(ctx, doctorProfileQuery+` WHERE d.id = $1`, id)
}

func (r *profileRepository) getDoctor(ctx context.Context, query string, arg uuid.UUID) (*model.DoctorProfile, error) {
	var profile model.DoctorProfile
	if err := sqlx.GetContext(ctx, r.q, &profile, query, arg); err != nil {
		return nil, fmt.Errorf("failed to get doctor profile: %w", notFound(err))
	}
	return &profile, nil
}
