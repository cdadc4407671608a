// Package metrics exposes Prometheus instrumentation for the call pipelines.
//
// Collectors are package level and registered on demand with Register, so
// importing the package has no side effects on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "omnicall"

// Status label values.
const (
	StatusSent     = "sent"
	StatusDropped  = "dropped"
	StatusAccepted = "accepted"
	StatusThrottle = "throttled"
	StatusReplaced = "replaced"
	StatusError    = "error"
	StatusSuccess  = "success"
)

var (
	// framesTotal counts outbound frames by kind and status.
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total number of outbound frames",
		},
		[]string{"kind", "status"}, // kind: audio, video, control
	)

	// frameBytes is a histogram of outbound frame payload sizes.
	frameBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_bytes",
			Help:      "Size of outbound frame payloads in bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"kind"},
	)

	// videoFramesTotal counts camera frames by throttling outcome.
	videoFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_frames_total",
			Help:      "Total number of camera frames by outcome",
		},
		[]string{"status"}, // accepted, throttled, replaced, error
	)

	// inboundEventsTotal counts parsed inbound events by wire type.
	inboundEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Total number of inbound protocol events",
		},
		[]string{"type"},
	)

	// malformedTotal counts dropped inbound envelopes.
	malformedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_malformed_total",
			Help:      "Total number of inbound envelopes dropped as malformed",
		},
	)

	// reconnectsTotal counts reconnect attempts by result.
	reconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts",
		},
		[]string{"status"}, // success, error
	)

	// connected is 1 while the transport is open.
	connected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "Whether the realtime connection is open",
		},
	)

	// playbackDuration is a histogram of reply playback time.
	playbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "playback_duration_seconds",
			Help:      "Duration of reply playback in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	// playbackBytes is a histogram of reply audio sizes.
	playbackBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "playback_bytes",
			Help:      "Size of reply audio handed to the player in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		framesTotal,
		frameBytes,
		videoFramesTotal,
		inboundEventsTotal,
		malformedTotal,
		reconnectsTotal,
		connected,
		playbackDuration,
		playbackBytes,
	}
)

// Register registers every collector with reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range allMetrics {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordFrame records an outbound frame hand-off.
func RecordFrame(kind string, size int, sent bool) {
	if !sent {
		framesTotal.WithLabelValues(kind, StatusDropped).Inc()
		return
	}
	framesTotal.WithLabelValues(kind, StatusSent).Inc()
	frameBytes.WithLabelValues(kind).Observe(float64(size))
}

// RecordVideoFrame records the throttling outcome of a camera frame.
func RecordVideoFrame(status string) {
	videoFramesTotal.WithLabelValues(status).Inc()
}

// RecordInboundEvent records a parsed inbound event.
func RecordInboundEvent(eventType string) {
	inboundEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordMalformed records a dropped inbound envelope.
func RecordMalformed() {
	malformedTotal.Inc()
}

// RecordReconnect records a reconnect attempt.
func RecordReconnect(status string) {
	reconnectsTotal.WithLabelValues(status).Inc()
}

// SetConnected sets the connection gauge.
func SetConnected(open bool) {
	if open {
		connected.Set(1)
		return
	}
	connected.Set(0)
}

// RecordPlayback records a finished playback.
func RecordPlayback(status string, size int, durationSeconds float64) {
	playbackBytes.Observe(float64(size))
	playbackDuration.WithLabelValues(status).Observe(durationSeconds)
}
