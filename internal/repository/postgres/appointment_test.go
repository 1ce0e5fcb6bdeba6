package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

var appointmentRowColumns = []string{
	"id", "patient_id", "doctor_id", "date", "start_time", "end_time",
	"status", "priority", "reason", "reschedule_reason", "proposed_date",
	"proposed_start_time", "cancellation_reason", "conflicting_appointment_id",
	"created_at", "updated_at",
}

func TestAppointmentRepository_Create(t *testing.T) {
	tests := []struct {
		name    string
		execErr error
		wantErr error
	}{
		{name: "inserted"},
		{
			name:    "confirmed slot taken",
			execErr: &pq.Error{Code: "23505", Constraint: "uniq_confirmed_slot"},
			wantErr: repository.ErrSlotTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewAppointmentRepository(NewBaseRepository(db))

			apt := &model.Appointment{
				PatientID: uuid.New(),
				DoctorID:  uuid.New(),
				Date:      "2025-01-10",
				StartTime: "09:00",
				EndTime:   "09:30",
				Status:    model.AppointmentStatusPending,
				Priority:  1,
			}

			exp := mock.ExpectExec("INSERT INTO appointments").
				WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "2025-01-10", "09:00", "09:30",
					"pending", 1, "", nil, sqlmock.AnyArg(), sqlmock.AnyArg())
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := repo.Create(context.Background(), apt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.NotEqual(t, uuid.Nil, apt.ID)
				assert.False(t, apt.CreatedAt.IsZero())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAppointmentRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(NewBaseRepository(db))

	id, patientID, doctorID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()
	rows := sqlmock.NewRows(appointmentRowColumns).AddRow(
		id.String(), patientID.String(), doctorID.String(), "2025-01-10", "09:00", "09:30",
		"reschedule_requested", 2, "checkup", "doctor away", "2025-01-11",
		"10:00", nil, nil, now, now,
	)
	mock.ExpectQuery("FROM appointments a WHERE a.id").WithArgs(id).WillReturnRows(rows)

	apt, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, apt.ID)
	assert.Equal(t, doctorID, apt.DoctorID)
	assert.Equal(t, model.AppointmentStatusRescheduleRequested, apt.Status)
	assert.Equal(t, 2, apt.Priority)
	require.True(t, apt.HasProposal())
	assert.Equal(t, "2025-01-11", *apt.ProposedDate)
	assert.Nil(t, apt.CancellationReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(NewBaseRepository(db))

	mock.ExpectQuery("FROM appointments a WHERE a.id").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAppointmentRepository_UpdateMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(NewBaseRepository(db))

	mock.ExpectExec("UPDATE appointments SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &model.Appointment{Base: model.Base{ID: uuid.New()}})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(NewBaseRepository(db))

	patientID := uuid.New()
	cols := append(append([]string{}, appointmentRowColumns...), "patient_name", "doctor_name", "doctor_specialization")
	now := time.Now().UTC()
	rows := sqlmock.NewRows(cols).AddRow(
		uuid.NewString(), patientID.String(), uuid.NewString(), "2025-01-10", "09:00", "09:30",
		"confirmed", 1, "", nil, nil, nil, nil, nil, now, now,
		"Pat", "Dr. Who", "cardiology",
	)
	mock.ExpectQuery(`WHERE a\.patient_id = \$1 AND a\.status = \$2`).
		WithArgs(sqlmock.AnyArg(), "confirmed").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), &model.AppointmentFilters{
		PatientID: &patientID,
		Status:    model.AppointmentStatusConfirmed,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Pat", list[0].PatientName)
	assert.Equal(t, "cardiology", list[0].DoctorSpecialization)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_FindSlotAppointments(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(NewBaseRepository(db))

	slot := model.Slot{DoctorID: uuid.New(), Date: "2025-01-10", StartTime: "09:00"}
	exclude := uuid.New()
	first := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "patient_id", "requester_name", "date", "start_time", "status", "priority", "created_at"}).
		AddRow(uuid.NewString(), uuid.NewString(), "Alice", "2025-01-10", "09:00", "pending", 1, first).
		AddRow(uuid.NewString(), uuid.NewString(), "Bob", "2025-01-10", "09:00", "pending", 2, first.Add(time.Minute))
	mock.ExpectQuery(`a\.status <> 'cancelled' AND a\.id <> \$4 ORDER BY a\.created_at ASC`).
		WithArgs(sqlmock.AnyArg(), "2025-01-10", "09:00", sqlmock.AnyArg()).
		WillReturnRows(rows)

	entries, err := repo.FindSlotAppointments(context.Background(), slot, &exclude)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Alice", entries[0].RequesterName)
	assert.Equal(t, 2, entries[1].Priority)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_HasConfirmed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(NewBaseRepository(db))

	slot := model.Slot{DoctorID: uuid.New(), Date: "2025-01-10", StartTime: "09:00"}
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(sqlmock.AnyArg(), "2025-01-10", "09:00", nil).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.HasConfirmed(context.Background(), slot, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_LockSlot(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(NewBaseRepository(db))

	slot := model.Slot{DoctorID: uuid.New(), Date: "2025-01-10", StartTime: "09:00"}
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(slot.Key()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.LockSlot(context.Background(), slot))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewStore(db)
		slot := model.Slot{DoctorID: uuid.New(), Date: "2025-01-10", StartTime: "09:00"}

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := store.WithTx(context.Background(), func(uow repository.UnitOfWork) error {
			return uow.Appointments().LockSlot(context.Background(), slot)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewStore(db)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := store.WithTx(context.Background(), func(repository.UnitOfWork) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
