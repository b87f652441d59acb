package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors for the dictation pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Chunking
	ChunksExtracted prometheus.Counter
	ChunksDropped   prometheus.Counter
	QueueDepth      prometheus.Gauge

	// Transcription
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	DuplicatesSuppressed   prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// Session
	Recording     prometheus.Gauge
	CaptureErrors prometheus.Counter

	// HTTP API
	HTTPRequests *prometheus.CounterVec
}

// New creates all collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ChunksExtracted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceflow_chunks_extracted_total",
			Help: "Total number of audio windows cut from the capture buffer",
		}),
		ChunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceflow_chunks_dropped_total",
			Help: "Total number of windows discarded because the queue was full",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voiceflow_queue_depth",
			Help: "Current number of windows waiting for transcription",
		}),

		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceflow_transcriptions_total",
			Help: "Total number of successful transcription calls",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceflow_transcription_failures_total",
			Help: "Total number of failed transcription calls",
		}),
		DuplicatesSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceflow_duplicates_suppressed_total",
			Help: "Total number of results dropped as repeats of the previous text",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceflow_transcription_duration_seconds",
			Help:    "Duration of transcription calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),

		Recording: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voiceflow_recording",
			Help: "1 while a recording session is active",
		}),
		CaptureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceflow_capture_errors_total",
			Help: "Total number of audio capture failures",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceflow_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
	}
}

// RecordChunkExtracted increments the extracted windows counter
func (m *Metrics) RecordChunkExtracted() {
	if m == nil {
		return
	}
	m.ChunksExtracted.Inc()
}

// RecordChunkDropped increments the dropped windows counter
func (m *Metrics) RecordChunkDropped() {
	if m == nil {
		return
	}
	m.ChunksDropped.Inc()
}

// SetQueueDepth sets the current queue depth
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

func (m *Metrics) RecordDuplicate() {
	if m == nil {
		return
	}
	m.DuplicatesSuppressed.Inc()
}

// SetRecording flips the recording gauge
func (m *Metrics) SetRecording(on bool) {
	if m == nil {
		return
	}
	if on {
		m.Recording.Set(1)
	} else {
		m.Recording.Set(0)
	}
}

func (m *Metrics) RecordCaptureError() {
	if m == nil {
		return
	}
	m.CaptureErrors.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
}
