package transcript

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/codeloop/agent"
	"github.com/martinemde/codeloop/interp"
)

func sampleEvents() []agent.SessionEvent {
	return []agent.SessionEvent{
		{Kind: agent.EventSessionStart, SessionID: "s1", Budget: 5, Data: map[string]interface{}{"context": "Add numbers."}},
		{Kind: agent.EventStatement, SessionID: "s1", Cost: 2, Budget: 5, Record: &interp.Record{Source: "return 1 + 1", Parsed: true, Repr: "2"}},
		{Kind: agent.EventStatement, SessionID: "s1", Cost: 3, Budget: 5, Record: &interp.Record{Source: "error('x')", Parsed: true, Fault: &interp.Fault{Message: "stdin:1: x"}}},
		{Kind: agent.EventReplan, SessionID: "s1", Cost: 3, Budget: 5, Data: map[string]interface{}{"dropped": 1}},
		{Kind: agent.EventSessionEnd, SessionID: "s1", Cost: 4, Budget: 5, Data: map[string]interface{}{"reason": "planner_finished"}},
	}
}

func feed(events []agent.SessionEvent) <-chan agent.SessionEvent {
	ch := make(chan agent.SessionEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestPrinter_PlainText(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, WithColor(false))
	for _, ev := range sampleEvents() {
		require.NoError(t, p.Write(context.Background(), ev))
	}

	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "no escape codes without color")
	assert.Contains(t, out, "session s1 (budget 5)\nAdd numbers.\n")
	assert.Contains(t, out, ">>> return 1 + 1\n2\n")
	assert.Contains(t, out, ">>> error('x')\nstdin:1: x\n")
	assert.Contains(t, out, "1 queued statement(s) dropped")
	assert.Contains(t, out, "done: planner_finished after 4/5 steps")
}

func TestPrinter_ShowsPlans(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, WithColor(false))
	require.NoError(t, p.Write(context.Background(), agent.SessionEvent{
		Kind: agent.EventPlan,
		Data: map[string]interface{}{"statements": 2, "sources": []string{"x = 1", "function f()\n  return x\nend"}},
	}))
	require.NoError(t, p.Write(context.Background(), agent.SessionEvent{
		Kind: agent.EventPlan,
		Data: map[string]interface{}{"statements": 0},
	}))

	assert.Equal(t, "plan: 2 statement(s)\n  x = 1\n  function f()\n    return x\n  end\nplan: nothing further\n", buf.String())
}

func TestJSONL_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")
	sink, err := OpenJSONL(path)
	require.NoError(t, err)

	Pump(context.Background(), feed(sampleEvents()), nil, sink)
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 5)
	assert.Equal(t, "session_start", lines[0]["kind"])

	rec := lines[1]["record"].(map[string]any)
	assert.Equal(t, "return 1 + 1", rec["source"])
	assert.Equal(t, "2", rec["value"])
}

func TestPump_FailingSinkDoesNotStopOthers(t *testing.T) {
	var seen []agent.EventKind
	failing := SinkFunc(func(context.Context, agent.SessionEvent) error { return errors.New("disk full") })
	collect := SinkFunc(func(_ context.Context, ev agent.SessionEvent) error {
		seen = append(seen, ev.Kind)
		return nil
	})

	Pump(context.Background(), feed(sampleEvents()), nil, failing, collect)
	assert.Len(t, seen, 5)
}

func TestStream_XAdd(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sink := NewStreamFromClient(client, "codeloop:test")
	require.NoError(t, sink.Ping(ctx))

	Pump(ctx, feed(sampleEvents()), nil, sink)
	require.NoError(t, sink.Close())

	msgs, err := client.XRange(ctx, "codeloop:test", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	assert.Equal(t, "session_start", msgs[0].Values["kind"])
	assert.Equal(t, "s1", msgs[0].Values["session"])

	var ev agent.SessionEvent
	require.NoError(t, json.Unmarshal([]byte(msgs[2].Values["event"].(string)), &ev))
	assert.Equal(t, agent.EventStatement, ev.Kind)
	require.NotNil(t, ev.Record)
	assert.True(t, strings.HasSuffix(ev.Record.Fault.Message, ": x"))
}
