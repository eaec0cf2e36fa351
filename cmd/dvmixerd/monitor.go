package main

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/yoe/dvswitch/health"
	"github.com/yoe/dvswitch/metric"
	"github.com/yoe/dvswitch/mixer"
)

// healthStatusValue maps a health.Status to the HealthCheckStatus gauge's
// documented scale (0=unhealthy, 1=degraded, 2=healthy).
func healthStatusValue(st health.Status) float64 {
	switch {
	case st.IsHealthy():
		return 2
	case st.IsDegraded():
		return 1
	default:
		return 0
	}
}

// hubMonitor implements mixer.Monitor, turning source/sink registration and
// selection churn into health.Monitor updates and HealthCheckStatus gauge
// readings, without the mixer package importing either.
type hubMonitor struct {
	mu     sync.Mutex
	logger *slog.Logger
	health *health.Monitor
	metric *metric.Metrics

	sources     map[mixer.SourceID]struct{}
	sinks       map[mixer.SinkID]struct{}
	videoSource mixer.SourceID
	audioSource mixer.SourceID
}

func newHubMonitor(healthMon *health.Monitor, metrics *metric.Metrics, logger *slog.Logger) *hubMonitor {
	return &hubMonitor{
		logger:      logger.With("component", "mixer-monitor"),
		health:      healthMon,
		metric:      metrics,
		sources:     make(map[mixer.SourceID]struct{}),
		sinks:       make(map[mixer.SinkID]struct{}),
		videoSource: mixer.InvalidID,
		audioSource: mixer.InvalidID,
	}
}

func (h *hubMonitor) report(component string, st health.Status) {
	h.health.Update(component, st)
	if h.metric != nil {
		h.metric.RecordHealthStatus(component, healthStatusValue(st))
	}
}

func (h *hubMonitor) OnSourceAdded(id mixer.SourceID) {
	h.mu.Lock()
	h.sources[id] = struct{}{}
	count := len(h.sources)
	h.mu.Unlock()

	h.logger.Debug("source registered", "source_id", id, "count", count)
	h.report("mixer-sources", health.NewHealthy("mixer-sources", fmt.Sprintf("%d source(s) registered", count)))
}

func (h *hubMonitor) OnSourceRemoved(id mixer.SourceID) {
	h.mu.Lock()
	delete(h.sources, id)
	count := len(h.sources)
	h.mu.Unlock()

	h.logger.Debug("source unregistered", "source_id", id, "count", count)
	if count == 0 {
		h.report("mixer-sources", health.NewDegraded("mixer-sources", "no sources registered"))
		return
	}
	h.report("mixer-sources", health.NewHealthy("mixer-sources", fmt.Sprintf("%d source(s) registered", count)))
}

func (h *hubMonitor) OnSinkAdded(id mixer.SinkID) {
	h.mu.Lock()
	h.sinks[id] = struct{}{}
	count := len(h.sinks)
	h.mu.Unlock()

	h.logger.Debug("sink registered", "sink_id", id, "count", count)
	h.report("mixer-sinks", health.NewHealthy("mixer-sinks", fmt.Sprintf("%d sink(s) registered", count)))
}

func (h *hubMonitor) OnSinkRemoved(id mixer.SinkID) {
	h.mu.Lock()
	delete(h.sinks, id)
	count := len(h.sinks)
	h.mu.Unlock()

	h.logger.Debug("sink unregistered", "sink_id", id, "count", count)
	if count == 0 {
		h.report("mixer-sinks", health.NewDegraded("mixer-sinks", "no sinks registered"))
		return
	}
	h.report("mixer-sinks", health.NewHealthy("mixer-sinks", fmt.Sprintf("%d sink(s) registered", count)))
}

func (h *hubMonitor) OnVideoSourceChanged(id mixer.SourceID) {
	h.mu.Lock()
	h.videoSource = id
	h.mu.Unlock()

	if id == mixer.InvalidID {
		h.logger.Info("video source cleared")
		h.report("mixer-video", health.NewDegraded("mixer-video", "no video source selected"))
		return
	}
	h.logger.Info("video source selected", "source_id", id)
	h.report("mixer-video", health.NewHealthy("mixer-video", fmt.Sprintf("source %d selected", id)))
}

func (h *hubMonitor) OnAudioSourceChanged(id mixer.SourceID) {
	h.mu.Lock()
	h.audioSource = id
	h.mu.Unlock()

	if id == mixer.InvalidID {
		h.logger.Info("audio source cleared")
		h.report("mixer-audio", health.NewDegraded("mixer-audio", "no audio source selected"))
		return
	}
	h.logger.Info("audio source selected", "source_id", id)
	h.report("mixer-audio", health.NewHealthy("mixer-audio", fmt.Sprintf("source %d selected", id)))
}
