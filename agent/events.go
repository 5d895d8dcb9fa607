package agent

import (
	"sync"
	"time"

	"github.com/martinemde/codeloop/interp"
)

// EventKind identifies the type of session event.
type EventKind string

const (
	EventSessionStart EventKind = "session_start"
	EventSessionEnd   EventKind = "session_end"
	EventPlan         EventKind = "plan"
	EventParseFailure EventKind = "parse_failure"
	EventStatement    EventKind = "statement"
	EventReplan       EventKind = "replan"
	EventLoopDetected EventKind = "loop_detected"
	EventTerminated   EventKind = "terminated"
	EventError        EventKind = "error"
)

// SessionEvent is a typed event emitted by the solver loop. Cost and Budget
// are the session's accounting at the moment the event was emitted.
type SessionEvent struct {
	Kind      EventKind              `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id"`
	Cost      int                    `json:"cost"`
	Budget    int                    `json:"budget"`
	Record    *interp.Record         `json:"record,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventEmitter delivers events to the host application via a channel.
type EventEmitter struct {
	sessionID string
	ch        chan SessionEvent
	closed    bool
	mu        sync.Mutex
}

// NewEventEmitter creates a new EventEmitter with a buffered channel.
func NewEventEmitter(sessionID string, bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{
		sessionID: sessionID,
		ch:        make(chan SessionEvent, bufferSize),
	}
}

// Emit sends an event to the channel. If the emitter is closed, the event
// is silently dropped.
func (e *EventEmitter) Emit(event SessionEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event.Timestamp = time.Now()
	event.SessionID = e.sessionID
	select {
	case e.ch <- event:
	default:
		// Channel full; drop event to avoid blocking the loop.
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan SessionEvent {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
