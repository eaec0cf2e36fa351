// Package metric provides Prometheus-based metrics for the mixer hub: core
// metrics (connections, frames, sink queue depth, errors) registered
// automatically by NewMetricsRegistry, plus a MetricsRegistrar interface for
// registering additional ad-hoc counters/gauges/histograms at runtime, and an
// HTTP Server that exposes them in Prometheus text format.
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//	go server.Start()
//	defer server.Stop()
//
//	registry.CoreMetrics().ConnectionOpened("source")
//	registry.CoreMetrics().RecordFrameReceived("source-1", len(payload))
//
// All metric names are namespaced under "dvmixer"; the registry also
// includes the standard Go runtime and process collectors.
package metric
