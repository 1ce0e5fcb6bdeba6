package model

import "github.com/google/uuid"

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "staff"
)

func (r Role) IsValid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin, RoleStaff:
		return true
	}
	return false
}

// IsStaff reports whether the role acts on behalf of the clinic rather than a party.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleStaff
}

// Actor is the authenticated caller of an operation. PatientID and DoctorID hold the
// caller's profile ids when the role has one.
type Actor struct {
	UserID    uuid.UUID
	Role      Role
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
}
