package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics for the mixer hub.
type Metrics struct {
	// Service metrics
	ServiceStatus     *prometheus.GaugeVec
	HealthCheckStatus *prometheus.GaugeVec
	ErrorsTotal       *prometheus.CounterVec

	// Connection metrics
	ConnectionsActive  *prometheus.GaugeVec
	ConnectionsTotal   *prometheus.CounterVec
	ConnectionDropped  *prometheus.CounterVec
	GreetingsRejected  prometheus.Counter

	// Frame metrics
	FramesReceived     *prometheus.CounterVec
	FramesSent         *prometheus.CounterVec
	FrameBytesReceived *prometheus.CounterVec
	FrameBytesSent     *prometheus.CounterVec
	FramePutDuration   prometheus.Histogram
	SinkQueueDepth     *prometheus.GaugeVec
	SinkOverflowsTotal *prometheus.CounterVec

	// NATS metrics (structured log/health publication)
	NATSConnected      prometheus.Gauge
	NATSRTT            prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all mixer hub metrics
// registered under the "dvmixer" namespace.
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "dvmixer",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "dvmixer",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=degraded, 2=healthy)",
			},
			[]string{"component"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dvmixer",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by classification",
			},
			[]string{"component", "class"},
		),

		ConnectionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "dvmixer",
				Subsystem: "connections",
				Name:      "active",
				Help:      "Number of currently open connections by role",
			},
			[]string{"role"},
		),

		ConnectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dvmixer",
				Subsystem: "connections",
				Name:      "accepted_total",
				Help:      "Total number of accepted connections",
			},
			[]string{"role"},
		),

		ConnectionDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dvmixer",
				Subsystem: "connections",
				Name:      "dropped_total",
				Help:      "Total number of connections dropped by reason",
			},
			[]string{"role", "reason"},
		),

		GreetingsRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dvmixer",
				Subsystem: "connections",
				Name:      "greetings_rejected_total",
				Help:      "Total number of unrecognized greetings received from unknown connections",
			},
		),

		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dvmixer",
				Subsystem: "frames",
				Name:      "received_total",
				Help:      "Total number of complete frames received from sources",
			},
			[]string{"source"},
		),

		FramesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dvmixer",
				Subsystem: "frames",
				Name:      "sent_total",
				Help:      "Total number of frames written to sinks",
			},
			[]string{"sink"},
		),

		FrameBytesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dvmixer",
				Subsystem: "frames",
				Name:      "received_bytes_total",
				Help:      "Total bytes of frame payload received from sources",
			},
			[]string{"source"},
		),

		FrameBytesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dvmixer",
				Subsystem: "frames",
				Name:      "sent_bytes_total",
				Help:      "Total bytes of frame payload written to sinks",
			},
			[]string{"sink"},
		),

		FramePutDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "dvmixer",
				Subsystem: "frames",
				Name:      "put_duration_seconds",
				Help:      "Time spent handing a completed source frame to the mixer",
				Buckets:   prometheus.DefBuckets,
			},
		),

		SinkQueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "dvmixer",
				Subsystem: "sinks",
				Name:      "queue_depth",
				Help:      "Number of frames currently queued for a sink",
			},
			[]string{"sink"},
		),

		SinkOverflowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dvmixer",
				Subsystem: "sinks",
				Name:      "overflows_total",
				Help:      "Total number of times a sink's frame queue overflowed and was dropped",
			},
			[]string{"sink"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "dvmixer",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "dvmixer",
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dvmixer",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "dvmixer",
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

// RecordServiceStatus updates the service status gauge.
func (m *Metrics) RecordServiceStatus(service string, status int) {
	m.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordHealthStatus updates the health gauge for a component.
func (m *Metrics) RecordHealthStatus(component string, value float64) {
	m.HealthCheckStatus.WithLabelValues(component).Set(value)
}

// RecordError increments the error counter for a component and class.
func (m *Metrics) RecordError(component, class string) {
	m.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// ConnectionOpened records a newly accepted connection and bumps the active gauge.
func (m *Metrics) ConnectionOpened(role string) {
	m.ConnectionsTotal.WithLabelValues(role).Inc()
	m.ConnectionsActive.WithLabelValues(role).Inc()
}

// ConnectionClosed decrements the active gauge and, if reason is non-empty,
// records the drop reason.
func (m *Metrics) ConnectionClosed(role, reason string) {
	m.ConnectionsActive.WithLabelValues(role).Dec()
	if reason != "" {
		m.ConnectionDropped.WithLabelValues(role, reason).Inc()
	}
}

// RecordFrameReceived records a complete frame received from a source.
func (m *Metrics) RecordFrameReceived(source string, bytes int) {
	m.FramesReceived.WithLabelValues(source).Inc()
	m.FrameBytesReceived.WithLabelValues(source).Add(float64(bytes))
}

// RecordFrameSent records a frame written out to a sink.
func (m *Metrics) RecordFrameSent(sink string, bytes int) {
	m.FramesSent.WithLabelValues(sink).Inc()
	m.FrameBytesSent.WithLabelValues(sink).Add(float64(bytes))
}

// RecordFramePutDuration records the time spent delivering a frame to the mixer.
func (m *Metrics) RecordFramePutDuration(d time.Duration) {
	m.FramePutDuration.Observe(d.Seconds())
}

// RecordSinkOverflow marks a sink queue overflow.
func (m *Metrics) RecordSinkOverflow(sink string) {
	m.SinkOverflowsTotal.WithLabelValues(sink).Inc()
}

// SetSinkQueueDepth reports the current queue depth for a sink.
func (m *Metrics) SetSinkQueueDepth(sink string, depth int) {
	m.SinkQueueDepth.WithLabelValues(sink).Set(float64(depth))
}

// RecordNATSStatus updates NATS connection status.
func (m *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.NATSConnected.Set(value)
}

// RecordNATSRTT updates NATS round-trip time.
func (m *Metrics) RecordNATSRTT(rtt time.Duration) {
	m.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments the reconnection counter.
func (m *Metrics) RecordNATSReconnect() {
	m.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status.
func (m *Metrics) RecordCircuitBreakerState(state int) {
	m.NATSCircuitBreaker.Set(float64(state))
}
