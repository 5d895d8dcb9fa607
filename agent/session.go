package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/martinemde/codeloop/internal/logging"
	"github.com/martinemde/codeloop/interp"
	"github.com/martinemde/codeloop/tools"
)

// SessionConfig holds configuration for a session.
type SessionConfig struct {
	Budget           int           `json:"budget"`
	Planner          PlannerConfig `json:"planner"`
	StatementTimeout time.Duration `json:"statement_timeout"` // 0 = unbounded
	ObservationLimit int           `json:"observation_limit"`
	ObservationLines int           `json:"observation_lines"`
	LoopWindow       int           `json:"loop_window"` // 0 disables loop detection
	EventBuffer      int           `json:"event_buffer"`
}

// DefaultSessionConfig returns the default configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Budget:           DefaultBudget,
		Planner:          DefaultPlannerConfig(),
		ObservationLimit: DefaultObservationLimit,
		ObservationLines: DefaultObservationLines,
		LoopWindow:       DefaultLoopWindow,
		EventBuffer:      256,
	}
}

// Session owns one solving attempt: its environment, history, solver and
// event stream.
type Session struct {
	state    *State
	solver   *Solver
	emitter  *EventEmitter
	logger   *slog.Logger
	registry *tools.Registry
	executor Executor
	config   SessionConfig
	closed   bool
	mu       sync.Mutex
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger used by the session and its solver.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithTools binds the registry's tools into the session environment and
// lists them in the task context.
func WithTools(r *tools.Registry) SessionOption {
	return func(s *Session) {
		s.registry = r
	}
}

// WithExecutor replaces the statement executor.
func WithExecutor(x Executor) SessionOption {
	return func(s *Session) {
		s.executor = x
	}
}

// NewSession prepares a session for task: a fresh environment seeded with
// the bootstrap examples, tools bound, and the shared prompt prefix.
func NewSession(ctx context.Context, task string, backend Completer, config *SessionConfig, opts ...SessionOption) (*Session, error) {
	cfg := DefaultSessionConfig()
	if config != nil {
		cfg = *config
	}

	s := &Session{
		logger: logging.NewNop(),
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.executor == nil {
		s.executor = interp.NewExecutor(interp.WithStatementTimeout(cfg.StatementTimeout))
	}

	env := interp.NewEnvironment()
	if err := Seed(ctx, env); err != nil {
		env.Close()
		return nil, fmt.Errorf("seed environment: %w", err)
	}

	taskContext := strings.TrimSpace(task)
	if s.registry != nil && s.registry.Count() > 0 {
		tools.Bind(env, s.registry)
		taskContext += "\n\n" + s.registry.Describe()
	}

	s.state = NewState(taskContext, Prefix(), cfg.Budget, env)
	s.emitter = NewEventEmitter(s.state.ID, cfg.EventBuffer)

	formatter := Formatter{ObservationLimit: cfg.ObservationLimit, ObservationLines: cfg.ObservationLines}
	planner := NewPlanner(backend, cfg.Planner, WithFormatter(formatter), WithPlannerLogger(s.logger))
	s.solver = NewSolver(planner, s.executor,
		WithEmitter(s.emitter),
		WithSolverLogger(s.logger),
		WithLoopWindow(cfg.LoopWindow),
	)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.state.ID }

// State returns the session state. It must not be modified while Run is
// in progress.
func (s *Session) State() *State { return s.state }

// Events returns the event channel for the host application.
func (s *Session) Events() <-chan SessionEvent {
	return s.emitter.Events()
}

// Run solves the task. The error is non-nil only when the run ended
// fatally or was cancelled.
func (s *Session) Run(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Outcome{Phase: PhaseDone, Reason: ReasonFatal}, fmt.Errorf("session %s is closed", s.state.ID)
	}
	s.mu.Unlock()

	s.logger.Info("session started", "session", s.state.ID, "budget", s.state.Budget)
	s.emitter.Emit(SessionEvent{
		Kind:   EventSessionStart,
		Budget: s.state.Budget,
		Data:   map[string]interface{}{"context": s.state.Context},
	})

	out, err := s.solver.Solve(ctx, s.state)

	s.logger.Info("session finished", "session", s.state.ID,
		"reason", out.Reason, "cost", s.state.Cost, "executed", out.Executed, "dropped", out.Dropped)
	s.emitter.Emit(SessionEvent{
		Kind:   EventSessionEnd,
		Cost:   s.state.Cost,
		Budget: s.state.Budget,
		Data: map[string]interface{}{
			"reason":   string(out.Reason),
			"executed": out.Executed,
			"dropped":  out.Dropped,
		},
	})
	return out, err
}

// Close releases the environment and closes the event channel. Safe to
// call multiple times.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.emitter.Close()
	s.state.Env.Close()
}
