package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scheduling
	AppointmentsBooked     *prometheus.CounterVec
	AppointmentTransitions *prometheus.CounterVec
	ConfirmRejections      *prometheus.CounterVec

	// Completion cascade
	CascadeRuns     *prometheus.CounterVec
	CascadeFailures *prometheus.CounterVec

	// Outbox
	OutboxEventsProcessed   *prometheus.CounterVec
	OutboxEventsFailed      *prometheus.CounterVec
	OutboxRetries           *prometheus.CounterVec
	OutboxProcessingLatency prometheus.Histogram

	// Delivery
	BrokerPublishes   *prometheus.CounterVec
	NotificationsSent *prometheus.CounterVec
}

// NewMetrics registers every collector on reg. Pass prometheus.DefaultRegisterer in
// the binaries and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AppointmentsBooked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_booked_total",
			Help:      "Appointments created, split by whether the slot already had requests",
		}, []string{"conflicted"}),
		AppointmentTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Appointment status changes",
		}, []string{"from", "to"}),
		ConfirmRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirm_rejections_total",
			Help:      "Confirmations refused by the slot rules",
		}, []string{"reason"}),

		CascadeRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_runs_total",
			Help:      "Completion cascade executions",
		}, []string{"source", "result"}),
		CascadeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_failures_total",
			Help:      "Completion cascade failures by step",
		}, []string{"step"}),

		OutboxEventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}, []string{"event_type"}),
		OutboxEventsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Outbox events given up on after the last attempt",
		}, []string{"event_type"}),
		OutboxRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		BrokerPublishes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_publishes_total",
			Help:      "Broker publish attempts by outcome",
		}, []string{"status"}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notification emails by kind and outcome",
		}, []string{"kind", "status"}),
	}
}
