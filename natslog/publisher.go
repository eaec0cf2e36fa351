// Package natslog best-effort republishes structured log entries and
// health updates over NATS for external aggregation. It is intentionally
// a small slice of what a full NATS client needs: a single connection, no
// circuit breaker, no JetStream, no reconnect bookkeeping beyond what
// nats.go already does internally. If the broker is unreachable,
// publication is skipped and logged locally; it never blocks or fails the
// caller's actual work.
package natslog

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yoe/dvswitch/errors"
	"github.com/yoe/dvswitch/health"
)

// LogEntry mirrors the fields of a log/slog record, flattened for
// publication as JSON.
type LogEntry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// HealthEntry mirrors health.Status, flattened for publication.
type HealthEntry struct {
	Component string    `json:"component"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}

const (
	logSubject    = "dvmixer.logs"
	healthSubject = "dvmixer.health"
)

// Publisher holds a best-effort NATS connection used only to mirror log
// entries and health transitions, never for anything load-bearing.
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect dials the given NATS URL. An empty url disables publication
// entirely: Connect returns a nil *Publisher and a nil error, and every
// method on a nil *Publisher is a safe no-op.
func Connect(url string, logger *slog.Logger) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("dvmixerd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("natslog disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("natslog reconnected")
		}),
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "natslog", "Connect", "connect to NATS")
	}

	return &Publisher{conn: conn, logger: logger}, nil
}

// Close drains and closes the underlying connection. Safe to call on a
// nil *Publisher.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
}

// PublishLogEntry best-effort publishes a log entry. Marshal or publish
// failures are swallowed (logged at debug) rather than surfaced, since log
// mirroring must never itself become a source of errors.
func (p *Publisher) PublishLogEntry(entry LogEntry) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		p.logger.Debug("natslog marshal failed", "error", err)
		return
	}
	if err := p.conn.Publish(logSubject, data); err != nil {
		p.logger.Debug("natslog publish failed", "error", err)
	}
}

// PublishHealth best-effort publishes a health status transition.
func (p *Publisher) PublishHealth(status health.Status) {
	if p == nil || p.conn == nil {
		return
	}
	entry := HealthEntry{
		Component: status.Component,
		Status:    status.Status,
		Message:   status.Message,
		Time:      status.Timestamp,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		p.logger.Debug("natslog marshal failed", "error", err)
		return
	}
	if err := p.conn.Publish(healthSubject, data); err != nil {
		p.logger.Debug("natslog publish failed", "error", err)
	}
}

// Handler returns an slog.Handler that republishes every record over NATS
// in addition to delegating to next. Attach it with a MultiHandler-style
// wrapper in the CLI bootstrap when a NATS URL is configured.
func (p *Publisher) Handler(next slog.Handler) slog.Handler {
	if p == nil {
		return next
	}
	return &republishHandler{next: next, pub: p}
}
