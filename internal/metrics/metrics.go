// Package metrics provides Prometheus instrumentation for the voice
// session pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "murmur"

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	ConnectionsActive prometheus.Gauge

	FramesReceived *prometheus.CounterVec // kind: control, audio, unrecognized
	AudioBytesIn   prometheus.Counter

	RecordingsStarted   prometheus.Counter
	RecordingsCompleted prometheus.Counter
	RecordingsEmpty     prometheus.Counter

	PipelineFailures *prometheus.CounterVec // stage: transcribe, respond, synthesize, stream
	PipelineDuration prometheus.Histogram

	ReplyChunksSent prometheus.Counter
	ReplyBytesOut   prometheus.Counter
}

// Default is the process-wide metrics instance.
var Default = New()

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of device connections currently open",
		}),
		FramesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames by classification",
		}, []string{"kind"}),
		AudioBytesIn: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio payload bytes received from devices",
		}),
		RecordingsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_started_total",
			Help:      "Recording sessions started",
		}),
		RecordingsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_completed_total",
			Help:      "Recording sessions finalized with audio",
		}),
		RecordingsEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_empty_total",
			Help:      "Recording sessions stopped with no audio data",
		}),
		PipelineFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_failures_total",
			Help:      "Conversation pipeline failures by stage",
		}, []string{"stage"}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of the transcribe/respond/synthesize pipeline",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		ReplyChunksSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_chunks_sent_total",
			Help:      "Outbound reply audio chunks sent to devices",
		}),
		ReplyBytesOut: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_bytes_sent_total",
			Help:      "Total synthesized audio bytes sent to devices",
		}),
	}
}
