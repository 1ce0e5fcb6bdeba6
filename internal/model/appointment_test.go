package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointmentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from AppointmentStatus
		to   AppointmentStatus
		want bool
	}{
		{AppointmentStatusPending, AppointmentStatusConfirmed, true},
		{AppointmentStatusPending, AppointmentStatusCompleted, false},
		{AppointmentStatusConfirmed, AppointmentStatusArrived, true},
		{AppointmentStatusConfirmed, AppointmentStatusCompleted, true},
		{AppointmentStatusArrived, AppointmentStatusCompleted, true},
		{AppointmentStatusArrived, AppointmentStatusPending, false},
		{AppointmentStatusRescheduleRequested, AppointmentStatusConfirmed, true},
		{AppointmentStatusRescheduleRequested, AppointmentStatusArrived, false},
		{AppointmentStatusCancelled, AppointmentStatusConfirmed, false},
		{AppointmentStatusCompleted, AppointmentStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestAppointmentStatus_IsTerminal(t *testing.T) {
	assert.True(t, AppointmentStatusCancelled.IsTerminal())
	assert.True(t, AppointmentStatusCompleted.IsTerminal())
	assert.False(t, AppointmentStatusRescheduleRequested.IsTerminal())
	assert.False(t, AppointmentStatus("bogus").IsValid())
}

func TestNormalizeClock(t *testing.T) {
	got, err := NormalizeClock("09:00:00")
	require.NoError(t, err)
	assert.Equal(t, "09:00", got)

	got, err = NormalizeClock("14:30")
	require.NoError(t, err)
	assert.Equal(t, "14:30", got)

	_, err = NormalizeClock("9am")
	assert.Error(t, err)
}

func TestNormalizeDate(t *testing.T) {
	got, err := NormalizeDate("2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-10", got)

	_, err = NormalizeDate("10/01/2025")
	assert.Error(t, err)
}

func TestAppointment_Proposal(t *testing.T) {
	date, clock, reason := "2025-01-11", "10:00", "doctor away"
	apt := &Appointment{ProposedDate: &date, ProposedStartTime: &clock, RescheduleReason: &reason}
	assert.True(t, apt.HasProposal())

	apt.ClearProposal()
	assert.False(t, apt.HasProposal())
	assert.Nil(t, apt.RescheduleReason)
	assert.Nil(t, apt.ProposedDate)
	assert.Nil(t, apt.ProposedStartTime)
}

func TestPatientProfile_AgeAt(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	dob := time.Date(1990, 1, 11, 0, 0, 0, 0, time.UTC)
	p := &PatientProfile{DateOfBirth: &dob}
	assert.Equal(t, 34, p.AgeAt(now))

	dob = time.Date(1990, 1, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 35, p.AgeAt(now))

	assert.Equal(t, 0, (&PatientProfile{}).AgeAt(now))
}

func TestNewAppointmentEvent(t *testing.T) {
	apt := &Appointment{Base: Base{ID: uuid.New()}, Status: AppointmentStatusCompleted}
	actor := Actor{UserID: uuid.New(), Role: RoleDoctor}

	evt, err := NewAppointmentEvent(EventAppointmentCompleted, apt, AppointmentStatusArrived, actor)
	require.NoError(t, err)
	assert.Equal(t, apt.ID, evt.AggregateID)
	assert.Equal(t, EventAppointmentCompleted, evt.EventType)

	var payload AppointmentEvent
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, AppointmentStatusArrived, payload.PreviousStatus)
	assert.Equal(t, actor.UserID, payload.ActorID)
	assert.Equal(t, apt.ID, payload.Appointment.ID)
}
