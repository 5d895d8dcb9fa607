package transcript

import (
	"context"
	"encoding/json"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/martinemde/codeloop/agent"
)

// DefaultStreamMaxLen bounds the stream. Trimming is approximate.
const DefaultStreamMaxLen = 10000

// Stream appends events to a Redis stream. Each entry carries the event
// kind, the session ID and the full event as JSON.
type Stream struct {
	client *backend.Client
	stream string
	maxLen int64
	owned  bool
}

type StreamOption func(*Stream)

// WithMaxLen sets the approximate stream length cap. Zero disables trimming.
func WithMaxLen(n int64) StreamOption {
	return func(s *Stream) {
		s.maxLen = n
	}
}

// NewStream connects to the Redis server at address.
func NewStream(address, stream string, opts ...StreamOption) *Stream {
	rdb := backend.NewClient(&backend.Options{
		Addr: address,
	})
	s := NewStreamFromClient(rdb, stream, opts...)
	s.owned = true
	return s
}

// NewStreamFromClient uses an existing client. Close leaves it open.
func NewStreamFromClient(client *backend.Client, stream string, opts ...StreamOption) *Stream {
	s := &Stream{
		client: client,
		stream: stream,
		maxLen: DefaultStreamMaxLen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the connection.
func (s *Stream) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Stream) Write(ctx context.Context, ev agent.SessionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	args := &backend.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"kind":    string(ev.Kind),
			"session": ev.SessionID,
			"event":   string(data),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// Close closes the client if the Stream created it.
func (s *Stream) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
