package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/martinemde/codeloop/interp"
	"github.com/martinemde/codeloop/tools"
)

// ScratchToolName is the name the scratch interpreter is exposed under.
const ScratchToolName = "lua"

type scratchArgs struct {
	Src string `mapstructure:"src"`
}

// Scratch is a second, persistent interpreter the model can reach through
// a tool call. Code run there never touches the session's own bindings.
type Scratch struct {
	mu       sync.Mutex
	env      *interp.Environment
	executor *interp.Executor
}

// NewScratch creates a scratch interpreter. A positive timeout bounds each
// statement it runs.
func NewScratch(timeout time.Duration) *Scratch {
	var opts []interp.ExecutorOption
	if timeout > 0 {
		opts = append(opts, interp.WithStatementTimeout(timeout))
	}
	return &Scratch{
		env:      interp.NewEnvironment(),
		executor: interp.NewExecutor(opts...),
	}
}

// Tool returns the scratch interpreter as a registry tool taking `src`.
func (s *Scratch) Tool() tools.Tool {
	return tools.Typed(ScratchToolName, "Run Lua source in a separate scratch interpreter and return its output.",
		[]tools.Parameter{{Name: "src", Type: "string", Required: true}}, s.run)
}

func (s *Scratch) run(ctx context.Context, args scratchArgs) (string, error) {
	stmts, err := interp.Parse(args.Src)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out strings.Builder
	for _, st := range stmts {
		rec, err := s.executor.Execute(ctx, s.env, st)
		if err != nil {
			if _, ok := interp.AsTermination(err); ok {
				return "", errors.New("quit is not available in the scratch interpreter")
			}
			return "", err
		}
		if obs := rec.Observation(); obs != "" {
			out.WriteString(strings.TrimRight(obs, "\n"))
			out.WriteString("\n")
		}
		if rec.Failed() {
			break
		}
	}
	return out.String(), nil
}

// Close releases the scratch interpreter.
func (s *Scratch) Close() {
	s.env.Close()
}
