package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

const (
	EventAppointmentCreated             = "appointment.created"
	EventAppointmentUpdated             = "appointment.updated"
	EventAppointmentCompleted           = "appointment.completed"
	EventAppointmentRescheduleRequested = "appointment.reschedule_requested"
	EventAppointmentRescheduled         = "appointment.rescheduled"
	EventAppointmentCancelled           = "appointment.cancelled"
)

type OutboxEvent struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	EventType     string          `db:"event_type" json:"eventType"`
	AggregateID   uuid.UUID       `db:"aggregate_id" json:"aggregateId"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	Status        OutboxStatus    `db:"status" json:"status"`
	Attempts      int             `db:"attempts" json:"attempts"`
	LastError     *string         `db:"last_error" json:"lastError,omitempty"`
	NextAttemptAt time.Time       `db:"next_attempt_at" json:"nextAttemptAt"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
	ProcessedAt   *time.Time      `db:"processed_at" json:"processedAt,omitempty"`
}

// AppointmentEvent is the payload of every appointment.* outbox event.
type AppointmentEvent struct {
	Appointment    Appointment       `json:"appointment"`
	PreviousStatus AppointmentStatus `json:"previousStatus,omitempty"`
	ActorID        uuid.UUID         `json:"actorId"`
	ActorRole      Role              `json:"actorRole"`
	OccurredAt     time.Time         `json:"occurredAt"`
}

func NewAppointmentEvent(eventType string, apt *Appointment, previous AppointmentStatus, actor Actor) (*OutboxEvent, error) {
	payload, err := json.Marshal(AppointmentEvent{
		Appointment:    *apt,
		PreviousStatus: previous,
		ActorID:        actor.UserID,
		ActorRole:      actor.Role,
		OccurredAt:     time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		EventType:   eventType,
		AggregateID: apt.ID,
		Payload:     payload,
	}, nil
}
