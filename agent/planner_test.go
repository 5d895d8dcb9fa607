package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/codeloop/interp"
)

func TestPlanner_SplitsCompletion(t *testing.T) {
	backend := newScripted("-- add\n>>> x = 1\n>>> return x + 1\n2")
	p := NewPlanner(backend, DefaultPlannerConfig())
	s := NewState("task", "", 5, nil)

	plan, err := p.Plan(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, plan.Statements, 2)
	assert.Equal(t, "-- add\nx = 1", plan.Statements[0].Source)
	assert.Equal(t, interp.KindExpression, plan.Statements[1].Kind)
	assert.False(t, plan.Finished())
	assert.Empty(t, s.History, "a good plan adds nothing to history")
}

func TestPlanner_AcceptsUnmarkedMultilineCode(t *testing.T) {
	backend := newScripted("\nfunction double(n)\n  return n * 2\nend\nreturn double(21)")
	p := NewPlanner(backend, DefaultPlannerConfig())
	s := NewState("task", "", 5, nil)

	plan, err := p.Plan(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, plan.ParseFailed)
	require.Len(t, plan.Statements, 2)
	assert.Equal(t, "function double(n)\n  return n * 2\nend", plan.Statements[0].Source)
	assert.Equal(t, "return double(21)", plan.Statements[1].Source)
	assert.Empty(t, s.History)
}

func TestPlanner_CommentOnlyFinishes(t *testing.T) {
	p := NewPlanner(newScripted("-- The answer is above."), DefaultPlannerConfig())
	plan, err := p.Plan(context.Background(), NewState("task", "", 5, nil))
	require.NoError(t, err)
	assert.True(t, plan.Finished())
}

func TestPlanner_ParseFailureIsTruncated(t *testing.T) {
	cfg := DefaultPlannerConfig()
	cfg.FailureLimit = 12
	p := NewPlanner(newScripted("local = 5"), cfg)
	s := NewState("task", "", 5, nil)

	plan, err := p.Plan(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, plan.ParseFailed)
	assert.False(t, plan.Finished())

	require.Len(t, s.History, 1)
	rec := s.History[0]
	assert.Equal(t, "local = 5", rec.Source)
	assert.Equal(t, "ParseError: ...", rec.Stdout)
	assert.NotEmpty(t, rec.ID)
}

func TestPlanner_UsesConfiguredModel(t *testing.T) {
	backend := newScripted("x = 1")
	cfg := DefaultPlannerConfig()
	cfg.Model = "gemma-2b"
	cfg.Temperature = 0.1
	p := NewPlanner(backend, cfg, WithFormatter(Formatter{}))

	_, err := p.Plan(context.Background(), NewState("task", "PRE", 5, nil))
	require.NoError(t, err)
	require.Len(t, backend.requests, 1)
	assert.Equal(t, "gemma-2b", backend.requests[0].Model)
	assert.Equal(t, 0.1, backend.requests[0].Temperature)
	assert.True(t, strings.HasPrefix(backend.requests[0].Prompt, "PRE<start_of_turn>user\n"))
}
