package model

import (
	"time"

	"github.com/google/uuid"
)

// MedicalRecord is keyed by the patient's user id, never by the patient profile id.
type MedicalRecord struct {
	Base
	UserID             uuid.UUID `db:"user_id" json:"userId"`
	Age                int       `db:"age" json:"age"`
	Address            string    `db:"address" json:"address"`
	Contact            string    `db:"contact" json:"contact"`
	MedicalHistory     string    `db:"medical_history" json:"medicalHistory"`
	Allergies          string    `db:"allergies" json:"allergies"`
	CurrentMedications string    `db:"current_medications" json:"currentMedications"`
	FamilyHistory      string    `db:"family_history" json:"familyHistory"`
}

type Visit struct {
	ID              uuid.UUID `db:"id" json:"id"`
	MedicalRecordID uuid.UUID `db:"medical_record_id" json:"medicalRecordId"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctorId"`
	AppointmentID   uuid.UUID `db:"appointment_id" json:"appointmentId"`
	VisitDate       string    `db:"visit_date" json:"visitDate"`
	ChiefComplaint  string    `db:"chief_complaint" json:"chiefComplaint"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}
