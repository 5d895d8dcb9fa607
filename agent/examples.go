package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/martinemde/codeloop/interp"
)

// Example is a worked demonstration shown to the model before the task.
type Example struct {
	Context string
	Program string
}

// Examples are replayed to build the prompt prefix. They teach the
// transcript format: a task, marked statements with their observations,
// and quit() once the answer is on screen.
var Examples = []Example{
	{
		Context: "What time is it?",
		Program: `-- Load datetime to access the clock.
local datetime = require("datetime")
-- Get the current time using datetime.now()
datetime.now()`,
	},
	{
		Context: "What is the square root of Pi?",
		Program: `-- Use math.sqrt() to calculate the square root of math.pi.
math.sqrt(math.pi)`,
	},
	{
		Context: "What is the 10th Fibonacci number?",
		Program: `-- Create a function for calculating Fibonacci numbers.
function fibonacci(n)
  -- a = f(0), b = f(1)
  local a, b = 0, 1
  for _ = 1, n - 1 do
    -- Use b to compute the next number, and store the previous number in a
    a, b = b, a + b
  end
  -- At the end of the loop, b = f(n)
  return b
end
-- Use the function to calculate f(10)
fibonacci(10)`,
	},
}

// Demonstration is an example together with the records its execution
// produced.
type Demonstration struct {
	Example
	Records []*interp.Record
}

// RunExamples executes every example in order against env. Each program is
// split into statements and run without a budget or re-planning. An
// example that fails to parse, faults or asks to terminate is an error.
func RunExamples(ctx context.Context, env *interp.Environment, examples []Example) ([]Demonstration, error) {
	executor := interp.NewExecutor()
	demos := make([]Demonstration, 0, len(examples))
	for _, ex := range examples {
		stmts, err := interp.Parse(ex.Program)
		if err != nil {
			return nil, fmt.Errorf("example %q: %w", ex.Context, err)
		}
		demo := Demonstration{Example: ex}
		for _, stmt := range stmts {
			rec, err := executor.Execute(ctx, env, stmt)
			if err != nil {
				return nil, fmt.Errorf("example %q: %w", ex.Context, err)
			}
			if rec.Failed() {
				return nil, fmt.Errorf("example %q: statement %q faulted: %s", ex.Context, stmt.Source, rec.Fault.Message)
			}
			demo.Records = append(demo.Records, rec)
		}
		demos = append(demos, demo)
	}
	return demos, nil
}

// BuildPrefix renders each demonstration as a finished transcript and
// concatenates them.
func BuildPrefix(f Formatter, demos []Demonstration) string {
	var b strings.Builder
	for _, demo := range demos {
		b.WriteString(f.Format(&State{Context: demo.Context, History: demo.Records}))
		b.WriteString(TerminalMarker)
	}
	return b.String()
}

var (
	prefixOnce sync.Once
	prefix     string
)

// Prefix returns the bootstrap prefix, building it on first use. The
// examples are fixed, so a failure here is a programming error and panics.
func Prefix() string {
	prefixOnce.Do(func() {
		env := interp.NewEnvironment()
		defer env.Close()
		demos, err := RunExamples(context.Background(), env, Examples)
		if err != nil {
			panic(fmt.Sprintf("agent: bootstrap examples are broken: %v", err))
		}
		prefix = BuildPrefix(DefaultFormatter, demos)
	})
	return prefix
}

// Seed replays the examples into env so the names they bind (datetime,
// fibonacci) exist in a live session, as the prefix suggests they do.
func Seed(ctx context.Context, env *interp.Environment) error {
	_, err := RunExamples(ctx, env, Examples)
	return err
}
