package model

import (
	"time"

	"github.com/google/uuid"
)

// PatientProfile is the patient-facing profile. UserID is the owning user account and
// is distinct from the profile ID.
type PatientProfile struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"userId"`
	FullName    string     `db:"full_name" json:"fullName"`
	Email       string     `db:"email" json:"email"`
	Phone       string     `db:"phone" json:"phone"`
	Address     string     `db:"address" json:"address"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"dateOfBirth,omitempty"`
}

// AgeAt returns the completed years between the date of birth and now, or 0 when unknown.
func (p *PatientProfile) AgeAt(now time.Time) int {
	if p.DateOfBirth == nil || p.DateOfBirth.IsZero() {
		return 0
	}
	dob := *p.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

type DoctorProfile struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         uuid.UUID `db:"user_id" json:"userId"`
	FullName       string    `db:"full_name" json:"fullName"`
	Email          string    `db:"email" json:"email"`
	Specialization string    `db:"specialization" json:"specialization"`
}
