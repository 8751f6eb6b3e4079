// Package metrics exposes run progress as Prometheus metrics. A send
// run throttled over many batches can take a long time; the optional
// HTTP endpoint makes it observable while it is in flight.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for a send run. A nil *Metrics
// is valid and turns every update into a no-op, so the pipeline does
// not branch on whether metrics are enabled.
type Metrics struct {
	MessagesSentTotal     prometheus.Counter
	MessagesFailedTotal   prometheus.Counter
	SkippedDuplicateTotal prometheus.Counter
	BatchesTotal          prometheus.Counter
	BatchDelaySeconds     prometheus.Histogram
	RecipientsLoaded      prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		MessagesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "outreach_messages_sent_total",
				Help: "Total number of successfully delivered messages",
			},
		),
		MessagesFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "outreach_messages_failed_total",
				Help: "Total number of messages that failed after bounded retries",
			},
		),
		SkippedDuplicateTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "outreach_skipped_duplicate_total",
				Help: "Total number of recipients skipped because the sent log already contains them",
			},
		),
		BatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "outreach_batches_total",
				Help: "Total number of batches processed",
			},
		),
		BatchDelaySeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "outreach_batch_delay_seconds",
				Help:    "Randomized delay observed between batches",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		RecipientsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "outreach_recipients_loaded",
				Help: "Number of recipients loaded from the source file",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.MessagesSentTotal,
		m.MessagesFailedTotal,
		m.SkippedDuplicateTotal,
		m.BatchesTotal,
		m.BatchDelaySeconds,
		m.RecipientsLoaded,
	)

	return m
}

// Registry returns the prometheus registry for serving.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncSent records one successful delivery.
func (m *Metrics) IncSent() {
	if m == nil {
		return
	}
	m.MessagesSentTotal.Inc()
}

// IncFailed records one recipient failed after retries.
func (m *Metrics) IncFailed() {
	if m == nil {
		return
	}
	m.MessagesFailedTotal.Inc()
}

// IncSkippedDuplicate records one sent-log hit.
func (m *Metrics) IncSkippedDuplicate() {
	if m == nil {
		return
	}
	m.SkippedDuplicateTotal.Inc()
}

// IncBatch records one batch entering the sending state.
func (m *Metrics) IncBatch() {
	if m == nil {
		return
	}
	m.BatchesTotal.Inc()
}

// ObserveBatchDelay records an inter-batch delay.
func (m *Metrics) ObserveBatchDelay(seconds float64) {
	if m == nil {
		return
	}
	m.BatchDelaySeconds.Observe(seconds)
}

// SetRecipientsLoaded records the loaded recipient count.
func (m *Metrics) SetRecipientsLoaded(n int) {
	if m == nil {
		return
	}
	m.RecipientsLoaded.Set(float64(n))
}
