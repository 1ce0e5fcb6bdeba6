package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

const (
	uniqueViolation         = "23505"
	confirmedSlotConstraint = "uniq_confirmed_slot"
)

// BaseRepository runs queries against either the pool or an open transaction.
type BaseRepository struct {
	q sqlx.ExtContext
}

func NewBaseRepository(q sqlx.ExtContext) BaseRepository {
	return BaseRepository{q: q}
}

// Store owns the connection pool and hands out transaction-bound repositories.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return NewAppointmentRepository(NewBaseRepository(s.db))
}

func (s *Store) Outbox() repository.OutboxRepository {
	return NewOutboxRepository(NewBaseRepository(s.db))
}

func (s *Store) Profiles() repository.ProfileRepository {
	return NewProfileRepository(NewBaseRepository(s.db))
}

func (s *Store) MedicalRecords() repository.MedicalRecordRepository {
	return NewMedicalRecordRepository(NewBaseRepository(s.db))
}

// WithTx runs fn inside a read-committed transaction. Each statement issued after
// LockSlot therefore sees rows committed by the previous holder of the slot lock.
func (s *Store) WithTx(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&unitOfWork{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type unitOfWork struct {
	tx *sqlx.Tx
}

func (u *unitOfWork) Appointments() repository.AppointmentRepository {
	return NewAppointmentRepository(NewBaseRepository(u.tx))
}

func (u *unitOfWork) Outbox() repository.OutboxRepository {
	return NewOutboxRepository(NewBaseRepository(u.tx))
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", repository.ErrNotFound, err)
	}
	return err
}

func isSlotTaken(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation && pqErr.Constraint == confirmedSlotConstraint
	}
	return false
}
