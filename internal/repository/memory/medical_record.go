package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

type medicalRecordRepo struct {
	s *Store
}

func (r *medicalRecordRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.MedicalRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("medical_records.get"); err != nil {
		return nil, err
	}
	rec, ok := r.s.records[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (r *medicalRecordRepo) Create(ctx context.Context, record *model.MedicalRecord) (*model.MedicalRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("medical_records.create"); err != nil {
		return nil, err
	}
	if existing, ok := r.s.records[record.UserID]; ok {
		out := *existing
		return &out, nil
	}

	stored := *record
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := r.s.tick()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.s.records[stored.UserID] = &stored

	out := stored
	return &out, nil
}

func (r *medicalRecordRepo) CreateVisit(ctx context.Context, visit *model.Visit) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("medical_records.create_visit"); err != nil {
		return false, err
	}
	if _, ok := r.s.visits[visit.AppointmentID]; ok {
		return false, nil
	}

	stored := *visit
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	stored.CreatedAt = r.s.tick()
	r.s.visits[stored.AppointmentID] = &stored
	return true, nil
}
