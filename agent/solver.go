package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/martinemde/codeloop/internal/logging"
	"github.com/martinemde/codeloop/interp"
)

// Phase is the solver's position in its state machine.
type Phase string

const (
	PhasePlanning  Phase = "planning"
	PhaseExecuting Phase = "executing"
	PhaseDone      Phase = "done"
)

// StopReason says why the solver reached PhaseDone.
type StopReason string

const (
	ReasonBudgetExhausted StopReason = "budget_exhausted"
	ReasonPlannerFinished StopReason = "planner_finished"
	ReasonTerminated      StopReason = "terminated"
	ReasonCanceled        StopReason = "canceled"
	ReasonFatal           StopReason = "fatal"
)

// Outcome summarizes a finished run.
type Outcome struct {
	Phase    Phase
	Reason   StopReason
	Executed int // statements executed
	Dropped  int // queued statements discarded after faults
	// Signal is set when a statement requested termination.
	Signal *interp.TerminationSignal
	Err    error
}

// Executor runs one statement against an environment. *interp.Executor
// satisfies it.
type Executor interface {
	Execute(ctx context.Context, env *interp.Environment, stmt interp.Statement) (*interp.Record, error)
}

// Solver drives the plan-execute-observe loop.
type Solver struct {
	planner    *Planner
	executor   Executor
	emitter    *EventEmitter
	logger     *slog.Logger
	loopWindow int
}

// SolverOption configures a Solver.
type SolverOption func(*Solver)

// WithEmitter delivers loop events to e.
func WithEmitter(e *EventEmitter) SolverOption {
	return func(s *Solver) {
		s.emitter = e
	}
}

// WithSolverLogger sets the solver's logger.
func WithSolverLogger(logger *slog.Logger) SolverOption {
	return func(s *Solver) {
		s.logger = logger
	}
}

// WithLoopWindow sets how many executed statements loop detection
// inspects. Zero disables it.
func WithLoopWindow(n int) SolverOption {
	return func(s *Solver) {
		s.loopWindow = n
	}
}

// NewSolver creates a Solver.
func NewSolver(planner *Planner, executor Executor, opts ...SolverOption) *Solver {
	s := &Solver{
		planner:    planner,
		executor:   executor,
		logger:     logging.NewNop(),
		loopWindow: DefaultLoopWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve runs the loop until the budget is spent, the model stops, a
// statement requests termination, or planning fails.
//
// Each iteration costs exactly one unit of budget and does one thing:
// execute the next queued statement, or ask the planner for more when the
// queue is empty. A faulting statement discards the rest of the queue so
// the next iteration re-plans with the fault in view.
//
// The returned error is non-nil only for fatal planning failures and
// cancellation; it is also stored in Outcome.Err.
func (s *Solver) Solve(ctx context.Context, state *State) (Outcome, error) {
	out := Outcome{Phase: PhasePlanning}
	var queue []interp.Statement

	for !state.Exhausted() {
		if err := ctx.Err(); err != nil {
			return s.finish(state, out, ReasonCanceled, err)
		}
		state.Cost++
		s.logger.Debug("iteration", "session", state.ID, "cost", state.Cost, "remaining", state.Remaining(), "queued", len(queue))

		if len(queue) > 0 {
			out.Phase = PhaseExecuting
			stmt := queue[0]
			queue = queue[1:]

			rec, err := s.executor.Execute(ctx, state.Env, stmt)
			if signal, ok := interp.AsTermination(err); ok {
				out.Signal = signal
				out.Executed++
				s.emit(state, SessionEvent{Kind: EventTerminated, Record: rec, Data: map[string]interface{}{"code": signal.Code}})
				return s.finish(state, out, ReasonTerminated, nil)
			}
			if err != nil {
				// Executors report faults in the record; anything else is a bug in the executor.
				return s.finish(state, out, ReasonFatal, fmt.Errorf("execute: %w", err))
			}

			state.Append(rec)
			out.Executed++
			s.emit(state, SessionEvent{Kind: EventStatement, Record: rec})

			if rec.Failed() {
				out.Dropped += len(queue)
				s.emit(state, SessionEvent{Kind: EventReplan, Record: rec, Data: map[string]interface{}{"dropped": len(queue)}})
				s.logger.Info("statement failed, re-planning", "session", state.ID, "dropped", len(queue), "fault", rec.Fault.Message)
				queue = nil
			}
			if DetectLoop(state.History, s.loopWindow) {
				s.logger.Warn("repeating statements detected", "session", state.ID, "window", s.loopWindow)
				s.emit(state, SessionEvent{Kind: EventLoopDetected, Data: map[string]interface{}{"window": s.loopWindow}})
			}
			if len(queue) == 0 {
				out.Phase = PhasePlanning
			}
			continue
		}

		plan, err := s.planner.Plan(ctx, state)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return s.finish(state, out, ReasonCanceled, err)
			}
			return s.finish(state, out, ReasonFatal, err)
		}
		switch {
		case plan.ParseFailed:
			rec := state.History[len(state.History)-1]
			s.emit(state, SessionEvent{Kind: EventParseFailure, Record: rec})
		case plan.Finished():
			s.emit(state, SessionEvent{Kind: EventPlan, Data: map[string]interface{}{"statements": 0}})
			return s.finish(state, out, ReasonPlannerFinished, nil)
		default:
			sources := make([]string, len(plan.Statements))
			for i, st := range plan.Statements {
				sources[i] = st.Source
			}
			s.emit(state, SessionEvent{Kind: EventPlan, Data: map[string]interface{}{
				"statements": len(plan.Statements),
				"sources":    sources,
			}})
			queue = append(queue, plan.Statements...)
			out.Phase = PhaseExecuting
		}
	}

	if len(queue) > 0 {
		s.logger.Info("budget exhausted with statements pending", "session", state.ID, "pending", len(queue))
	}
	return s.finish(state, out, ReasonBudgetExhausted, nil)
}

func (s *Solver) finish(state *State, out Outcome, reason StopReason, err error) (Outcome, error) {
	out.Phase = PhaseDone
	out.Reason = reason
	out.Err = err
	if err != nil {
		s.logger.Error("solver stopped", "session", state.ID, "reason", reason, "err", err)
		s.emit(state, SessionEvent{Kind: EventError, Data: map[string]interface{}{"error": err.Error(), "reason": string(reason)}})
	}
	return out, err
}

func (s *Solver) emit(state *State, ev SessionEvent) {
	if s.emitter == nil {
		return
	}
	ev.Cost = state.Cost
	ev.Budget = state.Budget
	s.emitter.Emit(ev)
}
