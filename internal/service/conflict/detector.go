package conflict

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

// Detector finds non-cancelled appointments that share a slot. It only reads.
type Detector struct {
	repo repository.AppointmentRepository
}

func NewDetector(repo repository.AppointmentRepository) *Detector {
	return &Detector{repo: repo}
}

// Detect returns the non-cancelled appointments at slot, earliest request first. An
// empty result means the slot is free; otherwise the first entry is the priority-1
// holder. The doctor's existence is the caller's concern.
func (d *Detector) Detect(ctx context.Context, slot model.Slot) ([]model.SlotEntry, error) {
	date, err := model.NormalizeDate(slot.Date)
	if err != nil {
		return nil, errors.Validation(err.Error(), err)
	}
	start, err := model.NormalizeClock(slot.StartTime)
	if err != nil {
		return nil, errors.Validation(err.Error(), err)
	}
	slot.Date, slot.StartTime = date, start

	entries, err := d.repo.FindSlotAppointments(ctx, slot, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to detect conflicts: %w", err)
	}

	out := make([]model.SlotEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}
	return out, nil
}

// ListConflicts groups the doctor's active appointments by slot and keeps the slots
// requested more than once.
func (d *Detector) ListConflicts(ctx context.Context, doctorID uuid.UUID) ([]model.ConflictGroup, error) {
	entries, err := d.repo.FindActiveByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctor appointments: %w", err)
	}
	return Group(entries), nil
}

// Group expects entries ordered by slot and then request time, as FindActiveByDoctor
// returns them.
func Group(entries []*model.SlotEntry) []model.ConflictGroup {
	groups := []model.ConflictGroup{}

	for i := 0; i < len(entries); {
		j := i + 1
		for j < len(entries) && entries[j].Date == entries[i].Date && entries[j].StartTime == entries[i].StartTime {
			j++
		}

		if j-i > 1 {
			members := make([]model.SlotEntry, 0, j-i)
			for _, e := range entries[i:j] {
				members = append(members, *e)
			}
			groups = append(groups, model.ConflictGroup{
				Date:           members[0].Date,
				StartTime:      members[0].StartTime,
				FirstRequester: members[0],
				Appointments:   members,
			})
		}
		i = j
	}

	return groups
}
