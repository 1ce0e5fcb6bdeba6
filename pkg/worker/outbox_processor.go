package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/messaging"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

// Handler reacts to one outbox event. Handlers must be idempotent: an event is
// redelivered whenever any handler or the publish step fails.
type Handler func(ctx context.Context, event *model.OutboxEvent) error

type OutboxProcessorConfig struct {
	BatchSize      int
	PollInterval   time.Duration
	Lease          time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type OutboxProcessor struct {
	repo      repository.OutboxRepository
	publisher messaging.Publisher
	handlers  map[string][]Handler
	config    OutboxProcessorConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewOutboxProcessor builds a processor. publisher may be nil, in which case events are
// only handed to the registered handlers.
func NewOutboxProcessor(
	repo repository.OutboxRepository,
	publisher messaging.Publisher,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		panic("MaxAttempts must be greater than 0")
	}
	if config.InitialBackoff <= 0 {
		panic("InitialBackoff must be greater than 0")
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = config.InitialBackoff
	}
	if config.Lease <= 0 {
		config.Lease = 30 * time.Second
	}

	return &OutboxProcessor{
		repo:      repo,
		publisher: publisher,
		handlers:  make(map[string][]Handler),
		config:    config,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Register adds a handler for eventType. Not safe to call once Start is running.
func (p *OutboxProcessor) Register(eventType string, h Handler) {
	p.handlers[eventType] = append(p.handlers[eventType], h)
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch claims one batch of due events and processes them. It returns how many
// events were claimed.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize, p.config.Lease)
	if err != nil {
		return 0, fmt.Errorf("failed to claim pending events: %w", err)
	}

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"attempt", event.Attempts+1)
			p.scheduleRetry(ctx, event, err)
			continue
		}

		if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
			p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
			continue
		}
		p.metrics.OutboxEventsProcessed.WithLabelValues(event.EventType).Inc()
	}

	return len(events), nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	for _, h := range p.handlers[event.EventType] {
		if err := h(ctx, event); err != nil {
			return err
		}
	}

	if p.publisher == nil {
		return nil
	}
	if err := p.publisher.Publish(ctx, event.EventType, event.Payload); err != nil {
		p.metrics.BrokerPublishes.WithLabelValues("error").Inc()
		return err
	}
	p.metrics.BrokerPublishes.WithLabelValues("success").Inc()
	return nil
}

func (p *OutboxProcessor) scheduleRetry(ctx context.Context, event *model.OutboxEvent, cause error) {
	attempt := event.Attempts + 1
	if attempt >= p.config.MaxAttempts {
		p.metrics.OutboxEventsFailed.WithLabelValues(event.EventType).Inc()
		if err := p.repo.MarkFailed(ctx, event.ID, cause.Error()); err != nil {
			p.logger.Error(err, "Failed to mark event failed", "event_id", event.ID.String())
		}
		return
	}

	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	next := p.now().Add(p.RetryDelay(attempt))
	if err := p.repo.MarkRetry(ctx, event.ID, cause.Error(), next); err != nil {
		p.logger.Error(err, "Failed to schedule retry", "event_id", event.ID.String())
	}
}

// RetryDelay is the wait before retry number attempt (1-based): InitialBackoff doubled
// per attempt and capped at MaxBackoff.
func (p *OutboxProcessor) RetryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.config.InitialBackoff
	b.MaxInterval = p.config.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
