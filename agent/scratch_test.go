package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/martinemde/codeloop/tools"
)

func TestScratch_PersistsBetweenCalls(t *testing.T) {
	scratch := NewScratch(0)
	defer scratch.Close()

	r := tools.NewRegistry()
	r.Register(scratch.Tool())
	ctx := context.Background()

	assert.Equal(t, "", r.Call(ctx, ScratchToolName, map[string]any{"src": "x = 20"}))
	assert.Equal(t, "21\nhi\n", r.Call(ctx, ScratchToolName, map[string]any{"src": "return x + 1\nprint('hi')"}))
}

func TestScratch_ReportsFailures(t *testing.T) {
	scratch := NewScratch(0)
	defer scratch.Close()

	r := tools.NewRegistry()
	r.Register(scratch.Tool())
	ctx := context.Background()

	assert.Contains(t, r.Call(ctx, ScratchToolName, map[string]any{"src": "error('boom')\nprint('never')"}), "boom")
	assert.NotContains(t, r.Call(ctx, ScratchToolName, map[string]any{"src": "error('boom')\nprint('never')"}), "never")
	assert.Contains(t, r.Call(ctx, ScratchToolName, map[string]any{"src": "x = = 1"}), "Error: failed to call function `lua`")
	assert.Contains(t, r.Call(ctx, ScratchToolName, map[string]any{"src": "quit()"}), "quit is not available")
	assert.Contains(t, r.Call(ctx, ScratchToolName, map[string]any{"source": "x = 1", "src": "x = 1"}), "invalid arguments")
}
