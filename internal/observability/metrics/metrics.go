// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "speech_transcription"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Segment metrics
	SegmentsCreated   prometheus.Counter
	SegmentsFinalized prometheus.Counter
	SegmentsDegraded  prometheus.Counter
	SegmentsDropped   *prometheus.CounterVec
	SegmentsTimedOut  prometheus.Counter

	// Pass metrics
	PassLatency *prometheus.HistogramVec
	PassErrors  *prometheus.CounterVec

	// Transcript metrics
	UnitsOnline prometheus.Counter
	UnitsFinal  prometheus.Counter

	// Audio metrics
	AudioSamplesReceived prometheus.Counter
	AudioChunksReceived  prometheus.Counter
	AudioChunksRejected  prometheus.Counter

	// Publish metrics
	PublishTotal   *prometheus.CounterVec
	PublishErrors  *prometheus.CounterVec
	PublishLatency *prometheus.HistogramVec

	// Provider metrics
	ProviderFallbacks prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of recognition sessions opened",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active recognition sessions",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall-clock duration of recognition sessions in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),

		SegmentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_created_total",
			Help:      "Total number of VAD segments opened",
		}),
		SegmentsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_finalized_total",
			Help:      "Total number of segments finalized by the offline pass",
		}),
		SegmentsDegraded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_degraded_total",
			Help:      "Total number of segments finalized from the online fallback after an offline failure",
		}),
		SegmentsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_dropped_total",
			Help:      "Total number of segments dropped without a final",
		}, []string{"reason"}),
		SegmentsTimedOut: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_timed_out_total",
			Help:      "Total number of segments force-closed by the VAD timeout",
		}),

		PassLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_latency_seconds",
			Help:      "Inference+decode+post-process latency per pass",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"pass"}),
		PassErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pass_errors_total",
			Help:      "Total number of pass failures",
		}, []string{"pass", "stage"}),

		UnitsOnline: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_online_total",
			Help:      "Total number of online transcript units released",
		}),
		UnitsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_final_total",
			Help:      "Total number of final transcript units released",
		}),

		AudioSamplesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_samples_received_total",
			Help:      "Total audio samples received",
		}),
		AudioChunksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_received_total",
			Help:      "Total audio chunks received",
		}),
		AudioChunksRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_rejected_total",
			Help:      "Total audio chunks rejected for format errors",
		}),

		PublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total number of transcript events published",
		}, []string{"topic", "pass"}),
		PublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total number of transcript publish errors",
		}, []string{"topic", "pass"}),
		PublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_latency_seconds",
			Help:      "Transcript publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		ProviderFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Total number of sessions resolved to the default provider after an accelerated-provider failure",
		}),
	}
}

// RecordSessionStart records a new session opening.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSegmentCreated records a new segment being opened.
func (m *Metrics) RecordSegmentCreated() {
	m.SegmentsCreated.Inc()
}

// RecordSegmentFinalized records a segment finalized, degraded or not.
func (m *Metrics) RecordSegmentFinalized(degraded bool) {
	m.SegmentsFinalized.Inc()
	if degraded {
		m.SegmentsDegraded.Inc()
	}
}

// RecordSegmentDropped records a segment dropped without a final.
func (m *Metrics) RecordSegmentDropped(reason string) {
	m.SegmentsDropped.WithLabelValues(reason).Inc()
}

// RecordSegmentTimeout records a VAD-forced segment close.
func (m *Metrics) RecordSegmentTimeout() {
	m.SegmentsTimedOut.Inc()
}

// RecordPass records one pass completing.
func (m *Metrics) RecordPass(pass string, latencySeconds float64) {
	m.PassLatency.WithLabelValues(pass).Observe(latencySeconds)
}

// RecordPassError records a pass failing at the given stage.
func (m *Metrics) RecordPassError(pass, stage string) {
	m.PassErrors.WithLabelValues(pass, stage).Inc()
}

// RecordUnit records a transcript unit being released to the sink.
func (m *Metrics) RecordUnit(final bool) {
	if final {
		m.UnitsFinal.Inc()
	} else {
		m.UnitsOnline.Inc()
	}
}

// RecordAudioReceived records an accepted audio chunk.
func (m *Metrics) RecordAudioReceived(samples int) {
	m.AudioSamplesReceived.Add(float64(samples))
	m.AudioChunksReceived.Inc()
}

// RecordAudioRejected records a chunk rejected for its format.
func (m *Metrics) RecordAudioRejected() {
	m.AudioChunksRejected.Inc()
}

// RecordPublish records a transcript publish attempt.
func (m *Metrics) RecordPublish(topic, pass string, err error, latencySeconds float64) {
	m.PublishTotal.WithLabelValues(topic, pass).Inc()
	m.PublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.PublishErrors.WithLabelValues(topic, pass).Inc()
	}
}

// RecordProviderFallback records an accelerated-provider fallback.
func (m *Metrics) RecordProviderFallback() {
	m.ProviderFallbacks.Inc()
}
