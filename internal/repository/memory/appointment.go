package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

type appointmentRepo struct {
	s  *Store
	tx *tx
}

func copyAppointment(a *model.Appointment) *model.Appointment {
	out := *a
	out.RescheduleReason = copyString(a.RescheduleReason)
	out.ProposedDate = copyString(a.ProposedDate)
	out.ProposedStartTime = copyString(a.ProposedStartTime)
	out.CancellationReason = copyString(a.CancellationReason)
	if a.ConflictingAppointmentID != nil {
		id := *a.ConflictingAppointmentID
		out.ConflictingAppointmentID = &id
	}
	return &out
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// confirmedTaken mirrors the partial unique index on confirmed slots.
func (r *appointmentRepo) confirmedTaken(apt *model.Appointment) bool {
	if apt.Status != model.AppointmentStatusConfirmed {
		return false
	}
	for _, other := range r.s.appointments {
		if other.ID != apt.ID && other.Status == model.AppointmentStatusConfirmed && other.Slot() == apt.Slot() {
			return true
		}
	}
	return false
}

func (r *appointmentRepo) Create(ctx context.Context, apt *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("appointments.create"); err != nil {
		return err
	}
	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	if r.confirmedTaken(apt) {
		return repository.ErrSlotTaken
	}

	now := r.s.tick()
	apt.CreatedAt = now
	apt.UpdatedAt = now
	r.s.appointments[apt.ID] = copyAppointment(apt)

	if r.tx != nil {
		id := apt.ID
		r.tx.record(func() { delete(r.s.appointments, id) })
	}
	return nil
}

func (r *appointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	apt, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyAppointment(apt), nil
}

func (r *appointmentRepo) detail(apt *model.Appointment) *model.AppointmentDetail {
	d := &model.AppointmentDetail{Appointment: *copyAppointment(apt)}
	if p, ok := r.s.patients[apt.PatientID]; ok {
		d.PatientName = p.FullName
	}
	if doc, ok := r.s.doctors[apt.DoctorID]; ok {
		d.DoctorName = doc.FullName
		d.DoctorSpecialization = doc.Specialization
	}
	return d
}

func (r *appointmentRepo) GetDetail(ctx context.Context, id uuid.UUID) (*model.AppointmentDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	apt, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.detail(apt), nil
}

func (r *appointmentRepo) Update(ctx context.Context, apt *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("appointments.update"); err != nil {
		return err
	}
	prev, ok := r.s.appointments[apt.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.confirmedTaken(apt) {
		return repository.ErrSlotTaken
	}

	next := copyAppointment(apt)
	next.Priority = prev.Priority
	next.CreatedAt = prev.CreatedAt
	next.UpdatedAt = r.s.tick()
	apt.UpdatedAt = next.UpdatedAt
	r.s.appointments[apt.ID] = next

	if r.tx != nil {
		saved := prev
		r.tx.record(func() { r.s.appointments[saved.ID] = saved })
	}
	return nil
}

func (r *appointmentRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []*model.AppointmentDetail{}
	for _, apt := range r.s.appointments {
		if filters != nil {
			if filters.PatientID != nil && apt.PatientID != *filters.PatientID {
				continue
			}
			if filters.DoctorID != nil && apt.DoctorID != *filters.DoctorID {
				continue
			}
			if filters.Status != "" && apt.Status != filters.Status {
				continue
			}
			if filters.Date != "" && apt.Date != filters.Date {
				continue
			}
		}
		out = append(out, r.detail(apt))
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if a.StartTime != b.StartTime {
			return a.StartTime > b.StartTime
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

func (r *appointmentRepo) entry(apt *model.Appointment) *model.SlotEntry {
	e := &model.SlotEntry{
		ID:        apt.ID,
		PatientID: apt.PatientID,
		Date:      apt.Date,
		StartTime: apt.StartTime,
		Status:    apt.Status,
		Priority:  apt.Priority,
		CreatedAt: apt.CreatedAt,
	}
	if p, ok := r.s.patients[apt.PatientID]; ok {
		e.RequesterName = p.FullName
	}
	return e
}

func sortEntries(entries []*model.SlotEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

func (r *appointmentRepo) FindSlotAppointments(ctx context.Context, slot model.Slot, excludeID *uuid.UUID) ([]*model.SlotEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("appointments.find_slot"); err != nil {
		return nil, err
	}

	out := []*model.SlotEntry{}
	for _, apt := range r.s.appointments {
		if apt.Slot() != slot || apt.Status == model.AppointmentStatusCancelled {
			continue
		}
		if excludeID != nil && apt.ID == *excludeID {
			continue
		}
		out = append(out, r.entry(apt))
	}
	sortEntries(out)
	return out, nil
}

func (r *appointmentRepo) FindActiveByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.SlotEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []*model.SlotEntry{}
	for _, apt := range r.s.appointments {
		if apt.DoctorID != doctorID || apt.Status == model.AppointmentStatusCancelled {
			continue
		}
		out = append(out, r.entry(apt))
	}
	sortEntries(out)
	return out, nil
}

func (r *appointmentRepo) HasConfirmed(ctx context.Context, slot model.Slot, excludeID *uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, apt := range r.s.appointments {
		if apt.Slot() != slot || apt.Status != model.AppointmentStatusConfirmed {
			continue
		}
		if excludeID != nil && apt.ID == *excludeID {
			continue
		}
		return true, nil
	}
	return false, nil
}

// LockSlot is a no-op outside WithTx, matching a transaction-scoped advisory lock.
func (r *appointmentRepo) LockSlot(ctx context.Context, slot model.Slot) error {
	if r.tx != nil {
		r.tx.lock(slot.Key())
	}
	return nil
}
