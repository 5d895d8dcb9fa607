package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/martinemde/codeloop/agent"
)

// JSONL writes one JSON object per event.
type JSONL struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

// NewJSONL writes events to w.
func NewJSONL(w io.Writer) *JSONL {
	return &JSONL{enc: json.NewEncoder(w)}
}

// OpenJSONL appends events to the file at path, creating it if needed.
func OpenJSONL(path string) (*JSONL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	return &JSONL{enc: json.NewEncoder(f), closer: f}, nil
}

func (j *JSONL) Write(_ context.Context, ev agent.SessionEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(ev)
}

// Close closes the underlying file, if the sink owns one.
func (j *JSONL) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}
