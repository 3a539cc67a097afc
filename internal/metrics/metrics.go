package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for truthwire.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	// Streaming session
	FramesSent    prometheus.Counter
	AudioBytes    prometheus.Counter
	FramesSkipped prometheus.Counter
	ToolCalls     *prometheus.CounterVec
	SessionErrors prometheus.Counter

	// Deduplication
	ClaimsAccepted   prometheus.Counter
	ClaimsSuppressed prometheus.Counter

	// Verification
	VerificationsStarted  prometheus.Counter
	VerificationsResolved *prometheus.CounterVec
	VerificationsInFlight prometheus.Gauge
	VerificationDuration  prometheus.Histogram
	CacheHits             prometheus.Counter
}

// New creates all metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "truthwire_audio_frames_sent_total",
			Help: "Total number of encoded audio frames sent to the live session",
		}),
		AudioBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "truthwire_audio_pcm_bytes_sent_total",
			Help: "Total number of PCM bytes sent to the live session",
		}),
		FramesSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "truthwire_audio_frames_skipped_total",
			Help: "Total number of empty frames that were not sent",
		}),
		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "truthwire_tool_calls_total",
			Help: "Tool invocations received from the live session",
		}, []string{"tool"}),
		SessionErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "truthwire_session_errors_total",
			Help: "Transport errors reported by the live session",
		}),
		ClaimsAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "truthwire_claims_accepted_total",
			Help: "Claims accepted by the deduplicator",
		}),
		ClaimsSuppressed: f.NewCounter(prometheus.CounterOpts{
			Name: "truthwire_claims_suppressed_total",
			Help: "Claims suppressed as duplicates",
		}),
		VerificationsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "truthwire_verifications_started_total",
			Help: "Verification requests dispatched",
		}),
		VerificationsResolved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "truthwire_verifications_resolved_total",
			Help: "Verification requests resolved, by final status",
		}, []string{"status"}),
		VerificationsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "truthwire_verifications_in_flight",
			Help: "Verification requests currently pending",
		}),
		VerificationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "truthwire_verification_duration_seconds",
			Help:    "Time from claim acceptance to resolution",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "truthwire_verification_cache_hits_total",
			Help: "Verifications answered from the result cache",
		}),
	}
}

func (m *Metrics) FrameSent(pcmBytes int) {
	if m == nil {
		return
	}
	m.FramesSent.Inc()
	m.AudioBytes.Add(float64(pcmBytes))
}

func (m *Metrics) FrameSkipped() {
	if m == nil {
		return
	}
	m.FramesSkipped.Inc()
}

func (m *Metrics) ToolCall(name string) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(name).Inc()
}

func (m *Metrics) SessionError() {
	if m == nil {
		return
	}
	m.SessionErrors.Inc()
}

// ClaimDecision records a deduplicator decision
func (m *Metrics) ClaimDecision(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.ClaimsAccepted.Inc()
	} else {
		m.ClaimsSuppressed.Inc()
	}
}

func (m *Metrics) VerificationStarted() {
	if m == nil {
		return
	}
	m.VerificationsStarted.Inc()
	m.VerificationsInFlight.Inc()
}

// VerificationResolved records the final status and the time since acceptance
func (m *Metrics) VerificationResolved(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.VerificationsResolved.WithLabelValues(status).Inc()
	m.VerificationsInFlight.Dec()
	m.VerificationDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}
