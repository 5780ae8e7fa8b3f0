// Package metrics defines the Prometheus instrumentation for the voice
// bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice session server.
type Metrics struct {
	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsStarted prometheus.Counter

	// Audio metrics
	AudioFramesIn prometheus.Counter
	AudioBytesOut prometheus.Counter

	// Turn metrics
	TextTurns     prometheus.Counter
	RejectedTurns prometheus.Counter

	// Upstream metrics
	UpstreamErrors    prometheus.Counter
	FallbackSessions  prometheus.Counter
	SynthesisCalls    prometheus.Counter
	SynthesisFailures prometheus.Counter
}

// NewMetrics creates and registers all metrics on a fresh registry-local
// basis using promauto defaults.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsFor registers the metrics with the given registerer. Tests use
// this to avoid duplicate registration on the default registry.
func NewMetricsFor(reg prometheus.Registerer) *Metrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sawti_active_sessions",
			Help: "Number of currently connected client sessions",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sawti_sessions_started_total",
			Help: "Total number of client sessions started",
		}),
		AudioFramesIn: factory.NewCounter(prometheus.CounterOpts{
			Name: "sawti_audio_frames_in_total",
			Help: "Total number of client audio frames forwarded upstream",
		}),
		AudioBytesOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "sawti_audio_bytes_out_total",
			Help: "Total bytes of model audio sent to clients",
		}),
		TextTurns: factory.NewCounter(prometheus.CounterOpts{
			Name: "sawti_text_turns_total",
			Help: "Total number of user text turns forwarded upstream",
		}),
		RejectedTurns: factory.NewCounter(prometheus.CounterOpts{
			Name: "sawti_rejected_turns_total",
			Help: "Total number of user turns rejected by the relevance filter",
		}),
		UpstreamErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "sawti_upstream_errors_total",
			Help: "Total number of upstream session errors",
		}),
		FallbackSessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "sawti_fallback_sessions_total",
			Help: "Total number of sessions that switched to the fallback path",
		}),
		SynthesisCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "sawti_synthesis_calls_total",
			Help: "Total number of text-to-speech synthesis calls",
		}),
		SynthesisFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sawti_synthesis_failures_total",
			Help: "Total number of failed text-to-speech synthesis calls",
		}),
	}
}
