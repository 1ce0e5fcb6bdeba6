package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

type profileRepo struct {
	s *Store
}

func (r *profileRepo) GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*model.PatientProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("profiles.patient"); err != nil {
		return nil, err
	}
	for _, p := range r.s.patients {
		if p.UserID == userID {
			out := *p
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *profileRepo) GetPatient(ctx context.Context, id uuid.UUID) (*model.PatientProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("profiles.patient"); err != nil {
		return nil, err
	}
	p, ok := r.s.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (r *profileRepo) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*model.DoctorProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, d := range r.s.doctors {
		if d.UserID == userID {
			out := *d
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *profileRepo) GetDoctor(ctx context.Context, id uuid.UUID) (*model.DoctorProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *d
	return &out, nil
}
