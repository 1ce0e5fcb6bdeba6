// Package policy decides what an actor may do to an appointment. Ownership is checked
// against profile ids: a patient owns an appointment when its patientId is the
// caller's patient profile id, and likewise for doctors.
package policy

import (
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

type Action string

const (
	ActionView              Action = "view"
	ActionUpdate            Action = "update"
	ActionUpdateStatus      Action = "update_status"
	ActionCancel            Action = "cancel"
	ActionRequestReschedule Action = "request_reschedule"
	ActionConfirmReschedule Action = "confirm_reschedule"
)

// Set is the collection of actions granted to an actor on one appointment.
type Set map[Action]struct{}

func newSet(actions ...Action) Set {
	s := make(Set, len(actions))
	for _, a := range actions {
		s[a] = struct{}{}
	}
	return s
}

func (s Set) Allows(a Action) bool {
	_, ok := s[a]
	return ok
}

func OwnsAsPatient(actor model.Actor, apt *model.Appointment) bool {
	return actor.Role == model.RolePatient && actor.PatientID != nil && *actor.PatientID == apt.PatientID
}

func OwnsAsDoctor(actor model.Actor, apt *model.Appointment) bool {
	return actor.Role == model.RoleDoctor && actor.DoctorID != nil && *actor.DoctorID == apt.DoctorID
}

func Capabilities(actor model.Actor, apt *model.Appointment) Set {
	switch {
	case actor.Role.IsStaff():
		return newSet(ActionView, ActionUpdate, ActionUpdateStatus, ActionCancel)
	case OwnsAsDoctor(actor, apt):
		return newSet(ActionView, ActionUpdate, ActionUpdateStatus, ActionCancel, ActionRequestReschedule)
	case OwnsAsPatient(actor, apt):
		return newSet(ActionView, ActionUpdate, ActionCancel, ActionConfirmReschedule)
	default:
		return newSet()
	}
}

// Authorize returns a Forbidden error unless actor may perform action on apt.
func Authorize(actor model.Actor, apt *model.Appointment, action Action) error {
	if Capabilities(actor, apt).Allows(action) {
		return nil
	}
	return errors.Forbidden(forbiddenMessage(action))
}

func forbiddenMessage(action Action) string {
	switch action {
	case ActionView:
		return "you do not have access to this appointment"
	case ActionRequestReschedule:
		return "only the appointment's doctor can request a reschedule"
	case ActionConfirmReschedule:
		return "only the appointment's patient can confirm a reschedule"
	case ActionCancel:
		return "you cannot cancel this appointment"
	case ActionUpdateStatus:
		return "you cannot change the status of this appointment"
	default:
		return "you cannot modify this appointment"
	}
}
