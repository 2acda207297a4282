// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chat_client"

// Metrics holds all Prometheus metrics for the client.
type Metrics struct {
	// Connection metrics
	ConnectAttempts    prometheus.Counter
	ConnectFailures    prometheus.Counter
	ReconnectsTotal    prometheus.Counter
	Connected          prometheus.Gauge
	ConnectionDuration prometheus.Histogram

	// Inbound frame metrics
	FramesReceived *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec

	// Outbound metrics
	MessagesSent prometheus.Counter
	SendErrors   *prometheus.CounterVec

	// Transcript metrics
	TranscriptEntries *prometheus.CounterVec
	DeltaBytes        prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
// A nil registerer leaves them unregistered, which tests use to get isolated counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Total number of socket dial attempts",
		}),
		ConnectFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Total number of failed socket dial attempts",
		}),
		ReconnectsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts fired after the retry delay",
		}),
		Connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the socket is open, 0 otherwise",
		}),
		ConnectionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connection_duration_seconds",
			Help:      "Lifetime of socket connections in seconds",
			Buckets:   []float64{1, 5, 30, 60, 300, 900, 3600},
		}),

		FramesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of inbound frames by event type",
		}, []string{"type"}),
		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of inbound frames dropped",
		}, []string{"reason"}),

		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of user messages transmitted",
		}),
		SendErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Total number of user messages that could not be transmitted",
		}, []string{"reason"}),

		TranscriptEntries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_entries_total",
			Help:      "Total number of transcript entries appended",
		}, []string{"from"}),
		DeltaBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delta_bytes_total",
			Help:      "Total bytes of streamed assistant text",
		}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordConnectAttempt records a dial attempt.
func (m *Metrics) RecordConnectAttempt() {
	m.ConnectAttempts.Inc()
}

// RecordConnectFailure records a failed dial.
func (m *Metrics) RecordConnectFailure() {
	m.ConnectFailures.Inc()
}

// RecordConnected marks the socket as open.
func (m *Metrics) RecordConnected() {
	m.Connected.Set(1)
}

// RecordDisconnected marks the socket as closed after being open for durationSeconds.
func (m *Metrics) RecordDisconnected(durationSeconds float64) {
	m.Connected.Set(0)
	m.ConnectionDuration.Observe(durationSeconds)
}

// RecordReconnect records a reconnect attempt firing.
func (m *Metrics) RecordReconnect() {
	m.ReconnectsTotal.Inc()
}

// RecordFrame records an inbound frame of the given event type.
func (m *Metrics) RecordFrame(eventType string) {
	m.FramesReceived.WithLabelValues(eventType).Inc()
}

// RecordFrameDropped records an inbound frame dropped for reason.
func (m *Metrics) RecordFrameDropped(reason string) {
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// RecordSend records a transmitted user message.
func (m *Metrics) RecordSend() {
	m.MessagesSent.Inc()
}

// RecordSendError records a user message that was not transmitted.
func (m *Metrics) RecordSendError(reason string) {
	m.SendErrors.WithLabelValues(reason).Inc()
}

// RecordEntry records a transcript entry appended for sender.
func (m *Metrics) RecordEntry(from string) {
	m.TranscriptEntries.WithLabelValues(from).Inc()
}

// RecordDelta records streamed text bytes.
func (m *Metrics) RecordDelta(bytes int) {
	m.DeltaBytes.Add(float64(bytes))
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
