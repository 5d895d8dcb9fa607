package interp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"
)

// TerminationSignal is returned by Execute when a statement asked the
// program to stop by calling quit, exit or os.exit. It is the only
// condition raised during execution that reaches the caller.
type TerminationSignal struct {
	Code int
}

func (s *TerminationSignal) Error() string {
	return fmt.Sprintf("termination requested (code %d)", s.Code)
}

// AsTermination reports whether err carries a termination request.
func AsTermination(err error) (*TerminationSignal, bool) {
	var signal *TerminationSignal
	if errors.As(err, &signal) {
		return signal, true
	}
	return nil, false
}

// Executor runs statements against an Environment and records the results.
type Executor struct {
	timeout time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithStatementTimeout bounds how long a single statement may run.
// Zero disables the bound.
func WithStatementTimeout(d time.Duration) ExecutorOption {
	return func(x *Executor) {
		x.timeout = d
	}
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	x := &Executor{}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute runs one statement. Output written during the statement is
// captured into the record, and any fault it raises is recorded rather
// than returned. The returned error is non-nil only for a termination
// request, in which case the record is still populated.
func (x *Executor) Execute(ctx context.Context, env *Environment, stmt Statement) (*Record, error) {
	rec := &Record{
		ID:        uuid.NewString(),
		Source:    stmt.Source,
		Parsed:    true,
		Timestamp: time.Now(),
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if x.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, x.timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var stdout, stderr bytes.Buffer
	env.begin(runCtx, cancel, &stdout, &stderr)
	values, err := env.call(stmt.Chunk())
	signal := env.end()

	rec.Stdout = stdout.String()
	rec.Stderr = stderr.String()
	rec.Duration = time.Since(rec.Timestamp)

	if signal != nil {
		return rec, signal
	}
	if err != nil {
		rec.Fault = x.fault(runCtx, ctx, err)
		return rec, nil
	}
	if stmt.Kind == KindExpression {
		setValue(env.L, rec, values)
	}
	return rec, nil
}

func (x *Executor) fault(runCtx, parent context.Context, err error) *Fault {
	if parent.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &Fault{Message: fmt.Sprintf("statement timed out after %s", x.timeout)}
	}
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return &Fault{Message: strings.TrimSpace(apiErr.Object.String())}
	}
	return &Fault{Message: strings.TrimSpace(err.Error())}
}

// setValue stores the result of an expression. A lone nil is no value;
// several results are joined with tabs, as print would show them.
func setValue(L *lua.LState, rec *Record, values []lua.LValue) {
	switch len(values) {
	case 0:
		return
	case 1:
		if values[0] == lua.LNil {
			return
		}
		rec.Value = values[0]
		rec.Repr = Repr(L, values[0])
	default:
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = Repr(L, v)
		}
		joined := strings.Join(parts, "\t")
		rec.Value = lua.LString(joined)
		rec.Repr = joined
	}
}
