// Package memory is an in-process implementation of the repository interfaces. It
// mirrors the postgres constraints that the services rely on (one confirmed
// appointment per slot, one medical record per user, one visit per appointment) and
// backs the service and worker tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

type Store struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
	patients     map[uuid.UUID]*model.PatientProfile
	doctors      map[uuid.UUID]*model.DoctorProfile
	records      map[uuid.UUID]*model.MedicalRecord // keyed by user id
	visits       map[uuid.UUID]*model.Visit         // keyed by appointment id
	outbox       map[uuid.UUID]*model.OutboxEvent

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	clock time.Time
	// Now is the wall clock used for outbox scheduling.
	Now func() time.Time
	// Failures injects an error into the named operation, e.g.
	// "medical_records.create_visit" or "outbox.create".
	Failures map[string]error
}

func NewStore() *Store {
	return &Store{
		appointments: make(map[uuid.UUID]*model.Appointment),
		patients:     make(map[uuid.UUID]*model.PatientProfile),
		doctors:      make(map[uuid.UUID]*model.DoctorProfile),
		records:      make(map[uuid.UUID]*model.MedicalRecord),
		visits:       make(map[uuid.UUID]*model.Visit),
		outbox:       make(map[uuid.UUID]*model.OutboxEvent),
		locks:        make(map[string]*sync.Mutex),
		clock:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:          time.Now,
		Failures:     make(map[string]error),
	}
}

// tick returns strictly increasing timestamps so that creation order is total.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *Store) fail(op string) error {
	if err, ok := s.Failures[op]; ok && err != nil {
		return err
	}
	return nil
}

// AddPatient seeds a patient profile and returns it.
func (s *Store) AddPatient(p model.PatientProfile) *model.PatientProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.UserID == uuid.Nil {
		p.UserID = uuid.New()
	}
	s.patients[p.ID] = &p
	out := p
	return &out
}

// AddDoctor seeds a doctor profile and returns it.
func (s *Store) AddDoctor(d model.DoctorProfile) *model.DoctorProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.UserID == uuid.Nil {
		d.UserID = uuid.New()
	}
	s.doctors[d.ID] = &d
	out := d
	return &out
}

// Visits returns every stored visit.
func (s *Store) Visits() []model.Visit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Visit, 0, len(s.visits))
	for _, v := range s.visits {
		out = append(out, *v)
	}
	return out
}

// Records returns every stored medical record.
func (s *Store) Records() []model.MedicalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MedicalRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	return out
}

// OutboxEvents returns every stored outbox event in creation order.
func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepo{s: s}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepo{s: s}
}

func (s *Store) Profiles() repository.ProfileRepository {
	return &profileRepo{s: s}
}

func (s *Store) MedicalRecords() repository.MedicalRecordRepository {
	return &medicalRecordRepo{s: s}
}

// WithTx gives fn repositories that record an undo log. Slot locks taken inside fn
// are held until it returns.
func (s *Store) WithTx(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	tx := &tx{s: s}
	defer tx.unlock()

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := s.fail("tx.commit"); err != nil {
		tx.rollback()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type tx struct {
	s      *Store
	undo   []func()
	locked []*sync.Mutex
	keys   map[string]bool
}

func (t *tx) Appointments() repository.AppointmentRepository {
	return &appointmentRepo{s: t.s, tx: t}
}

func (t *tx) Outbox() repository.OutboxRepository {
	return &outboxRepo{s: t.s, tx: t}
}

func (t *tx) record(undo func()) {
	t.undo = append(t.undo, undo)
}

func (t *tx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) lock(key string) {
	if t.keys == nil {
		t.keys = make(map[string]bool)
	}
	if t.keys[key] {
		return
	}

	t.s.locksMu.Lock()
	m, ok := t.s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		t.s.locks[key] = m
	}
	t.s.locksMu.Unlock()

	m.Lock()
	t.keys[key] = true
	t.locked = append(t.locked, m)
}

func (t *tx) unlock() {
	for i := len(t.locked) - 1; i >= 0; i-- {
		t.locked[i].Unlock()
	}
	t.locked = nil
}
