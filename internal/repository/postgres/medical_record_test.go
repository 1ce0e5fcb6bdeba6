package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
)

var medicalRecordRowColumns = []string{
	"id", "user_id", "age", "address", "contact", "medical_history", "allergies",
	"current_medications", "family_history", "created_at", "updated_at",
}

func TestMedicalRecordRepository_Create(t *testing.T) {
	userID := uuid.New()
	existingID := uuid.New()
	now := time.Now().UTC()

	t.Run("inserts new record", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMedicalRecordRepository(NewBaseRepository(db))

		rec := &model.MedicalRecord{UserID: userID, Age: 34, Address: "1 Main St", Contact: "555-0100"}
		mock.ExpectQuery("INSERT INTO medical_records").
			WillReturnRows(sqlmock.NewRows(medicalRecordRowColumns).AddRow(
				uuid.NewString(), userID.String(), 34, "1 Main St", "555-0100", "", "", "", "", now, now))

		stored, err := repo.Create(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, userID, stored.UserID)
		assert.Equal(t, 34, stored.Age)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns existing record on conflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMedicalRecordRepository(NewBaseRepository(db))

		mock.ExpectQuery("INSERT INTO medical_records").
			WillReturnRows(sqlmock.NewRows(medicalRecordRowColumns))
		mock.ExpectQuery("FROM medical_records WHERE user_id").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows(medicalRecordRowColumns).AddRow(
				existingID.String(), userID.String(), 30, "", "", "asthma", "", "", "", now, now))

		stored, err := repo.Create(context.Background(), &model.MedicalRecord{UserID: userID})
		require.NoError(t, err)
		assert.Equal(t, existingID, stored.ID)
		assert.Equal(t, "asthma", stored.MedicalHistory)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMedicalRecordRepository_CreateVisit(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"first visit for appointment", 1, true},
		{"visit already recorded", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewMedicalRecordRepository(NewBaseRepository(db))

			mock.ExpectExec("ON CONFLICT \\(appointment_id\\) DO NOTHING").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			created, err := repo.CreateVisit(context.Background(), &model.Visit{
				MedicalRecordID: uuid.New(),
				DoctorID:        uuid.New(),
				AppointmentID:   uuid.New(),
				VisitDate:       "2025-01-10",
				ChiefComplaint:  "headache",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, created)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
