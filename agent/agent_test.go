package agent

import (
	"context"
	"sync"

	"github.com/martinemde/codeloop/llm"
)

// scriptedCompleter replies with a fixed sequence of completions and
// records every request. Once the script runs out it returns a
// comment-only completion, which ends the session.
type scriptedCompleter struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []llm.Request
}

func newScripted(replies ...string) *scriptedCompleter {
	return &scriptedCompleter{replies: replies}
}

func (c *scriptedCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	text := "-- done"
	if len(c.replies) > 0 {
		text, c.replies = c.replies[0], c.replies[1:]
	}
	return &llm.Completion{Text: text, FinishReason: llm.FinishStop}, nil
}

func (c *scriptedCompleter) prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.requests))
	for i, r := range c.requests {
		out[i] = r.Prompt
	}
	return out
}

func drain(ch <-chan SessionEvent) []SessionEvent {
	var events []SessionEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func kinds(events []SessionEvent) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}
