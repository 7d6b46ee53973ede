package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/user-mail-queue/internal/notifier"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	MailsSent        *prometheus.CounterVec
	MailsFailed      prometheus.Counter
	ItemsProcessed   *prometheus.CounterVec
	ItemLatency      prometheus.Histogram
	BatchesCompleted prometheus.Counter
	JobsScheduled    prometheus.Counter

	reg prometheus.Registerer
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "user_mails_sent_total",
			Help: "Total number of mails accepted by the mail sender.",
		}, []string{"langcode"}),

		MailsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "user_mails_failed_total",
			Help: "Total number of mails the mail sender rejected.",
		}),

		ItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "user_mail_queue_items_total",
			Help: "Queue items consumed, by outcome.",
		}, []string{"outcome"}),

		ItemLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "user_mail_queue_item_seconds",
			Help:    "Time spent processing a single queue item.",
			Buckets: prometheus.DefBuckets,
		}),

		BatchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "user_mail_batches_completed_total",
			Help: "Batches whose last item was detected.",
		}),

		JobsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "user_mail_jobs_scheduled_total",
			Help: "Bulk mail jobs split into queue items.",
		}),

		reg: reg,
	}

	reg.MustRegister(
		m.MailsSent,
		m.MailsFailed,
		m.ItemsProcessed,
		m.ItemLatency,
		m.BatchesCompleted,
		m.JobsScheduled,
	)

	return m
}

// RegisterBufferDepth exposes the in-memory hand-off buffer as a gauge.
func (m *Metrics) RegisterBufferDepth(depth func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "user_mail_buffer_depth",
		Help: "Claimed queue items waiting for a worker.",
	}, func() float64 { return float64(depth()) }))
}

// NotifierHooks returns the callbacks expected by notifier.Hooks.
func (m *Metrics) NotifierHooks() notifier.Hooks {
	return notifier.Hooks{
		OnDelivered: func(langcode string) {
			m.MailsSent.WithLabelValues(langcode).Inc()
		},
		OnDeliveryFailed: func() { m.MailsFailed.Inc() },
		OnBatchCompleted: func() { m.BatchesCompleted.Inc() },
	}
}

// WorkerHook returns the callback expected by worker.MetricHooks.
// Centralises the prometheus observation calls so worker.go stays import-free.
func (m *Metrics) WorkerHook() func(outcome string, latency time.Duration) {
	return func(outcome string, latency time.Duration) {
		m.ItemsProcessed.WithLabelValues(outcome).Inc()
		m.ItemLatency.Observe(latency.Seconds())
	}
}
