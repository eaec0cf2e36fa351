// Package health tracks the liveness of the mixer hub's moving parts -
// the event loop and the mixer's source/sink/selection state - with
// thread-safe status aggregation for the /health endpoint.
//
// Status reports one of three states (healthy, degraded, unhealthy). Monitor
// keeps the latest Status per named component and can aggregate them with
// "worst case wins" rules: any unhealthy sub-status marks the whole system
// unhealthy, any degraded (with nothing unhealthy) marks it degraded.
//
//	monitor := health.NewMonitor()
//	monitor.UpdateHealthy("event-loop", "polling 12 connections")
//	monitor.UpdateDegraded("mixer", "sink 3 overflowed")
//	systemHealth := monitor.AggregateHealth("dvmixerd")
//
// Status is a value type; WithMetrics and WithSubStatus return copies rather
// than mutating the receiver. SanitizeError strips URLs, paths, IPs, ports and
// credential-shaped substrings from error text before it is attached to a
// Status or logged, since connection drop reasons can otherwise leak a
// client's address or a config secret into the health feed.
package health
