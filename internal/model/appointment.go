package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending             AppointmentStatus = "pending"
	AppointmentStatusConfirmed           AppointmentStatus = "confirmed"
	AppointmentStatusArrived             AppointmentStatus = "arrived"
	AppointmentStatusCompleted           AppointmentStatus = "completed"
	AppointmentStatusCancelled           AppointmentStatus = "cancelled"
	AppointmentStatusRescheduleRequested AppointmentStatus = "reschedule_requested"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// transitions lists every status change the API surface can perform. Entries for
// reschedule_requested are only reachable through the negotiation operations.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPending: {
		AppointmentStatusConfirmed,
		AppointmentStatusCancelled,
		AppointmentStatusRescheduleRequested,
	},
	AppointmentStatusConfirmed: {
		AppointmentStatusArrived,
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
		AppointmentStatusRescheduleRequested,
	},
	AppointmentStatusArrived: {
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
	},
	AppointmentStatusRescheduleRequested: {
		AppointmentStatusConfirmed,
		AppointmentStatusCancelled,
		AppointmentStatusRescheduleRequested,
	},
}

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusArrived,
		AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusRescheduleRequested:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted.
func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled
}

func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Appointment struct {
	Base
	PatientID                uuid.UUID         `db:"patient_id" json:"patientId"`
	DoctorID                 uuid.UUID         `db:"doctor_id" json:"doctorId"`
	Date                     string            `db:"date" json:"date"`
	StartTime                string            `db:"start_time" json:"startTime"`
	EndTime                  string            `db:"end_time" json:"endTime"`
	Status                   AppointmentStatus `db:"status" json:"status"`
	Priority                 int               `db:"priority" json:"priority"`
	Reason                   string            `db:"reason" json:"reason"`
	RescheduleReason         *string           `db:"reschedule_reason" json:"rescheduleReason"`
	ProposedDate             *string           `db:"proposed_date" json:"proposedDate"`
	ProposedStartTime        *string           `db:"proposed_start_time" json:"proposedStartTime"`
	CancellationReason       *string           `db:"cancellation_reason" json:"cancellationReason"`
	ConflictingAppointmentID *uuid.UUID        `db:"conflicting_appointment_id" json:"conflictingAppointmentId,omitempty"`
}

func (a *Appointment) Slot() Slot {
	return Slot{DoctorID: a.DoctorID, Date: a.Date, StartTime: a.StartTime}
}

// HasProposal reports whether a complete reschedule proposal is present.
func (a *Appointment) HasProposal() bool {
	return a.ProposedDate != nil && *a.ProposedDate != "" &&
		a.ProposedStartTime != nil && *a.ProposedStartTime != ""
}

func (a *Appointment) ClearProposal() {
	a.RescheduleReason = nil
	a.ProposedDate = nil
	a.ProposedStartTime = nil
}

// AppointmentDetail is the listing view joined with both parties' names.
type AppointmentDetail struct {
	Appointment
	PatientName          string `db:"patient_name" json:"patientName"`
	DoctorName           string `db:"doctor_name" json:"doctorName"`
	DoctorSpecialization string `db:"doctor_specialization" json:"doctorSpecialization"`
}

// Slot identifies a bookable unit of a doctor's time.
type Slot struct {
	DoctorID  uuid.UUID
	Date      string
	StartTime string
}

func (s Slot) Key() string {
	return fmt.Sprintf("%s|%s|%s", s.DoctorID, s.Date, s.StartTime)
}

// SlotEntry is a non-cancelled appointment occupying a slot, as seen by conflict detection.
type SlotEntry struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	PatientID     uuid.UUID         `db:"patient_id" json:"patientId"`
	RequesterName string            `db:"requester_name" json:"requesterName"`
	Date          string            `db:"date" json:"date"`
	StartTime     string            `db:"start_time" json:"startTime"`
	Status        AppointmentStatus `db:"status" json:"status"`
	Priority      int               `db:"priority" json:"priority"`
	CreatedAt     time.Time         `db:"created_at" json:"createdAt"`
}

type ConflictGroup struct {
	Date           string      `json:"date"`
	StartTime      string      `json:"startTime"`
	FirstRequester SlotEntry   `json:"firstRequester"`
	Appointments   []SlotEntry `json:"appointments"`
}

type BookingResult struct {
	Appointment *Appointment `json:"appointment"`
	Conflicts   []SlotEntry  `json:"conflicts,omitempty"`
	Message     string       `json:"message,omitempty"`
}

type CreateAppointmentRequest struct {
	DoctorID  string `json:"doctorId" binding:"required,uuid"`
	Date      string `json:"date" binding:"required,date"`
	StartTime string `json:"startTime" binding:"required,clock"`
	EndTime   string `json:"endTime" binding:"omitempty,clock"`
	Reason    string `json:"reason" binding:"max=1000"`
}

type UpdateAppointmentRequest struct {
	Status             *AppointmentStatus `json:"status"`
	Reason             *string            `json:"reason" binding:"omitempty,max=1000"`
	EndTime            *string            `json:"endTime" binding:"omitempty,clock"`
	CancellationReason *string            `json:"cancellationReason" binding:"omitempty,max=1000"`
}

type RequestRescheduleRequest struct {
	Reason            string `json:"reason" binding:"required,max=1000"`
	ProposedDate      string `json:"proposedDate" binding:"required,date"`
	ProposedStartTime string `json:"proposedStartTime" binding:"required,clock"`
}

type CancelAppointmentRequest struct {
	Reason *string `json:"reason" binding:"omitempty,max=1000"`
}

type AppointmentFilters struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    AppointmentStatus
	Date      string
}

// NormalizeDate parses a calendar date and returns it in DateLayout.
func NormalizeDate(value string) (string, error) {
	d, err := time.Parse(DateLayout, value)
	if err != nil {
		return "", fmt.Errorf("invalid date %q", value)
	}
	return d.Format(DateLayout), nil
}

// NormalizeClock accepts HH:MM or HH:MM:SS and returns HH:MM.
func NormalizeClock(value string) (string, error) {
	for _, layout := range []string{ClockLayout, "15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(ClockLayout), nil
		}
	}
	return "", fmt.Errorf("invalid time %q", value)
}
