// Package transcript exports session events: to the terminal, to a JSON
// lines file, and to a Redis stream.
package transcript

import (
	"context"
	"log/slog"

	"github.com/martinemde/codeloop/agent"
	"github.com/martinemde/codeloop/internal/logging"
)

// Sink receives session events in order.
type Sink interface {
	Write(ctx context.Context, ev agent.SessionEvent) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, ev agent.SessionEvent) error

func (f SinkFunc) Write(ctx context.Context, ev agent.SessionEvent) error {
	return f(ctx, ev)
}

// Pump forwards events to every sink until the channel is closed. A sink
// that fails is logged and keeps receiving later events.
func Pump(ctx context.Context, events <-chan agent.SessionEvent, logger *slog.Logger, sinks ...Sink) {
	if logger == nil {
		logger = logging.NewNop()
	}
	for ev := range events {
		for _, sink := range sinks {
			if err := sink.Write(ctx, ev); err != nil {
				logger.Warn("transcript sink failed", "kind", ev.Kind, "session", ev.SessionID, "err", err)
			}
		}
	}
}
