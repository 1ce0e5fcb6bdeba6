package medical

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/memory"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

func setup(t *testing.T) (*Service, *memory.Store, *model.PatientProfile, *metrics.Metrics) {
	t.Helper()
	store := memory.NewStore()
	dob := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)
	patient := store.AddPatient(model.PatientProfile{
		FullName:    "Alice",
		Phone:       "555-0100",
		Address:     "1 Main St",
		DateOfBirth: &dob,
	})

	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	svc := NewService(store.Profiles(), store.MedicalRecords(), logger.Nop(), m)
	svc.now = func() time.Time { return time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC) }
	return svc, store, patient, m
}

func completed(patientID uuid.UUID, reason string) *model.Appointment {
	return &model.Appointment{
		Base:      model.Base{ID: uuid.New()},
		PatientID: patientID,
		DoctorID:  uuid.New(),
		Date:      "2025-01-10",
		StartTime: "09:00",
		EndTime:   "09:30",
		Status:    model.AppointmentStatusCompleted,
		Priority:  1,
		Reason:    reason,
	}
}

func TestService_RunCreatesRecordAndVisit(t *testing.T) {
	svc, store, patient, _ := setup(t)
	apt := completed(patient.ID, "headache")

	require.NoError(t, svc.Run(context.Background(), apt, SourceInline))

	records := store.Records()
	require.Len(t, records, 1)
	assert.Equal(t, patient.UserID, records[0].UserID)
	assert.NotEqual(t, patient.ID, records[0].UserID)
	assert.Equal(t, 34, records[0].Age)
	assert.Equal(t, "1 Main St", records[0].Address)
	assert.Equal(t, "555-0100", records[0].Contact)
	assert.Empty(t, records[0].MedicalHistory)

	visits := store.Visits()
	require.Len(t, visits, 1)
	assert.Equal(t, records[0].ID, visits[0].MedicalRecordID)
	assert.Equal(t, apt.DoctorID, visits[0].DoctorID)
	assert.Equal(t, apt.ID, visits[0].AppointmentID)
	assert.Equal(t, "2025-01-10", visits[0].VisitDate)
	assert.Equal(t, "headache", visits[0].ChiefComplaint)
}

func TestService_RunReusesRecord(t *testing.T) {
	svc, store, patient, _ := setup(t)

	require.NoError(t, svc.Run(context.Background(), completed(patient.ID, "first"), SourceInline))
	require.NoError(t, svc.Run(context.Background(), completed(patient.ID, "second"), SourceInline))

	assert.Len(t, store.Records(), 1)
	assert.Len(t, store.Visits(), 2)
}

func TestService_RunIsIdempotent(t *testing.T) {
	svc, store, patient, m := setup(t)
	apt := completed(patient.ID, "checkup")

	require.NoError(t, svc.Run(context.Background(), apt, SourceInline))
	require.NoError(t, svc.Run(context.Background(), apt, SourceOutbox))

	assert.Len(t, store.Records(), 1)
	assert.Len(t, store.Visits(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CascadeRuns.WithLabelValues(SourceOutbox, "skipped")))
}

func TestService_RunReportsFailedStep(t *testing.T) {
	tests := []struct {
		name    string
		failure string
		step    string
	}{
		{name: "profile lookup", failure: "profiles.patient", step: stepResolveOwner},
		{name: "record creation", failure: "medical_records.create", step: stepEnsureRecord},
		{name: "visit insert", failure: "medical_records.create_visit", step: stepCreateVisit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, patient, m := setup(t)
			store.Failures[tt.failure] = errors.New("db down")

			err := svc.Run(context.Background(), completed(patient.ID, "x"), SourceInline)
			require.Error(t, err)

			var stepErr *StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, tt.step, stepErr.Step)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.CascadeFailures.WithLabelValues(tt.step)))
			assert.Empty(t, store.Visits())
		})
	}
}

func TestService_HandleCompleted(t *testing.T) {
	svc, store, patient, _ := setup(t)
	apt := completed(patient.ID, "follow-up")

	evt, err := model.NewAppointmentEvent(model.EventAppointmentCompleted, apt, model.AppointmentStatusConfirmed, model.Actor{UserID: uuid.New(), Role: model.RoleDoctor})
	require.NoError(t, err)

	require.NoError(t, svc.HandleCompleted(context.Background(), evt))
	require.Len(t, store.Visits(), 1)
	assert.Equal(t, "follow-up", store.Visits()[0].ChiefComplaint)

	bad := &model.OutboxEvent{EventType: model.EventAppointmentCompleted, Payload: []byte("{")}
	assert.Error(t, svc.HandleCompleted(context.Background(), bad))
}
