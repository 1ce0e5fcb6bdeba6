package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

type outboxRepo struct {
	s  *Store
	tx *tx
}

func (r *outboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("outbox.create"); err != nil {
		return err
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.Attempts = 0
	event.CreatedAt = r.s.tick()
	event.UpdatedAt = event.CreatedAt
	event.NextAttemptAt = time.Time{}

	stored := *event
	r.s.outbox[event.ID] = &stored

	if r.tx != nil {
		id := event.ID
		r.tx.record(func() { delete(r.s.outbox, id) })
	}
	return nil
}

func (r *outboxRepo) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("outbox.claim"); err != nil {
		return nil, err
	}
	now := r.s.Now()

	due := []*model.OutboxEvent{}
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusPending && !e.NextAttemptAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]*model.OutboxEvent, 0, len(due))
	for _, e := range due {
		e.NextAttemptAt = now.Add(lease)
		claimed := *e
		out = append(out, &claimed)
	}
	return out, nil
}

func (r *outboxRepo) update(id uuid.UUID, fn func(e *model.OutboxEvent)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(e)
	e.UpdatedAt = r.s.Now()
	return nil
}

func (r *outboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent) {
		now := r.s.Now()
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &now
	})
}

func (r *outboxRepo) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, nextAttempt time.Time) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Attempts++
		e.LastError = &errMsg
		e.NextAttemptAt = nextAttempt
	})
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Attempts++
		e.Status = model.OutboxStatusFailed
		e.LastError = &errMsg
	})
}

func (r *outboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var deleted int64
	for id, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.s.outbox, id)
			deleted++
		}
	}
	return deleted, nil
}
