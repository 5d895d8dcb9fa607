package interp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func run(t *testing.T, x *Executor, env *Environment, src string) []*Record {
	t.Helper()
	stmts, err := Parse(src)
	require.NoError(t, err)
	var recs []*Record
	for _, st := range stmts {
		rec, err := x.Execute(context.Background(), env, st)
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	return recs
}

func TestExecute_ExpressionValue(t *testing.T) {
	env := NewEnvironment()
	defer env.Close()

	recs := run(t, NewExecutor(), env, `function fibonacci(n)
  local a, b = 0, 1
  for _ = 1, n - 1 do
    a, b = b, a + b
  end
  return b
end
fibonacci(10)`)
	require.Len(t, recs, 2)

	assert.False(t, recs[0].HasValue())
	assert.False(t, recs[0].Failed())

	assert.True(t, recs[1].HasValue())
	assert.Equal(t, lua.LNumber(55), recs[1].Value)
	assert.Equal(t, "55", recs[1].Repr)
	assert.Equal(t, "55", recs[1].Observation())
}

func TestExecute_BindingsPersist(t *testing.T) {
	env := NewEnvironment()
	defer env.Close()
	x := NewExecutor()

	run(t, x, env, "local greeting = 'hello'")
	recs := run(t, x, env, "return greeting .. ' world'")
	assert.Equal(t, "hello world", recs[0].Repr)
	assert.Equal(t, []string{"greeting"}, env.Names())
}

func TestExecute_SharedLineLocalsPersist(t *testing.T) {
	env := NewEnvironment()
	defer env.Close()
	x := NewExecutor()

	recs := run(t, x, env, "local a = 1; print(a)")
	assert.Equal(t, "1\n", recs[0].Stdout)
	recs = run(t, x, env, "return a + 1")
	assert.Equal(t, "2", recs[0].Repr)
}

func TestExecute_CapturesOutput(t *testing.T) {
	env := NewEnvironment()
	defer env.Close()

	recs := run(t, NewExecutor(), env, "print('a', 1)\nio.write('b', 2)\neprint('oops')")
	require.Len(t, recs, 3)
	assert.Equal(t, "a\t1\n", recs[0].Stdout)
	assert.False(t, recs[0].HasValue())
	assert.Equal(t, "b2", recs[1].Stdout)
	assert.Equal(t, "oops\n", recs[2].Stderr)
	assert.Empty(t, recs[2].Stdout)
}

func TestExecute_FaultIsRecorded(t *testing.T) {
	env := NewEnvironment()
	defer env.Close()

	recs := run(t, NewExecutor(), env, "print('before')\nerror('boom')")
	require.Len(t, recs, 2)
	require.True(t, recs[1].Failed())
	assert.Contains(t, recs[1].Fault.Message, "boom")
	assert.Equal(t, recs[1].Fault.Message, recs[1].Observation())

	// A fault leaves the environment usable.
	recs = run(t, NewExecutor(), env, "return 1 + 1 == 2 and 'ok'")
	assert.Equal(t, "ok", recs[0].Repr)
}

func TestExecute_FaultTakesPriorityOverStdout(t *testing.T) {
	env := NewEnvironment()
	defer env.Close()

	recs := run(t, NewExecutor(), env, "do print('partial'); error('late') end")
	require.Len(t, recs, 1)
	assert.Equal(t, "partial\n", recs[0].Stdout)
	assert.Contains(t, recs[0].Observation(), "late")
}

func TestExecute_Termination(t *testing.T) {
	for _, src := range []string{"quit()", "exit(3)", "os.exit(3)", "pcall(quit, 3)"} {
		t.Run(src, func(t *testing.T) {
			env := NewEnvironment()
			defer env.Close()

			stmts, err := Parse(src)
			require.NoError(t, err)
			rec, err := NewExecutor().Execute(context.Background(), env, stmts[0])
			require.NotNil(t, rec)

			signal, ok := AsTermination(err)
			require.True(t, ok, "expected termination, got %v", err)
			if src != "quit()" {
				assert.Equal(t, 3, signal.Code)
			}
		})
	}
}

func TestExecute_Timeout(t *testing.T) {
	env := NewEnvironment()
	defer env.Close()

	x := NewExecutor(WithStatementTimeout(50 * time.Millisecond))
	recs := run(t, x, env, "while true do end")
	require.True(t, recs[0].Failed())
	assert.Contains(t, recs[0].Fault.Message, "timed out")

	recs = run(t, x, env, "return 2 * 21")
	assert.Equal(t, "42", recs[0].Repr)
}

func TestExecute_MultipleResultsAndNil(t *testing.T) {
	env := NewEnvironment()
	defer env.Close()

	x := NewExecutor()

	assert.Equal(t, "1\ttwo", run(t, x, env, "return 1, 'two'")[0].Repr)
	assert.False(t, run(t, x, env, "return nil")[0].HasValue())
	assert.Equal(t, `{1, 2, x = "y"}`, run(t, x, env, "return {1, 2, x = 'y'}")[0].Repr)
}

func TestExecute_ReprIsSnapshotted(t *testing.T) {
	env := NewEnvironment()
	defer env.Close()
	x := NewExecutor()

	run(t, x, env, "items = {1}")
	first := run(t, x, env, "return items")[0]
	run(t, x, env, "table.insert(items, 2)")
	assert.Equal(t, "{1}", first.Repr)
}

func TestDatetimeModule(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	env := NewEnvironment(WithClock(func() time.Time { return fixed }))
	defer env.Close()

	recs := run(t, NewExecutor(), env, "local datetime = require('datetime')\ndatetime.now()\ndatetime.today()")
	require.Len(t, recs, 3)
	assert.False(t, recs[0].Failed())
	assert.Equal(t, "2024-03-01 12:30:00.000000", recs[1].Repr)
	assert.Equal(t, "2024-03-01", recs[2].Repr)
}
