package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/martinemde/codeloop/internal/logging"
	"github.com/martinemde/codeloop/interp"
	"github.com/martinemde/codeloop/llm"
)

// ErrEmptyCompletion is returned when the backend produced no text at all.
var ErrEmptyCompletion = errors.New("completion backend returned no text")

// Completer is the completion backend the planner talks to. *llm.Client
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Completion, error)
}

// Decoding defaults.
const (
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.8
	DefaultStop        = "<start_of_turn>"
)

// PlannerConfig holds the fixed decoding parameters.
type PlannerConfig struct {
	Model        string  `json:"model,omitempty"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	Stop         string  `json:"stop"`
	FailureLimit int     `json:"failure_limit"`
}

// DefaultPlannerConfig returns the default decoding parameters.
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		MaxTokens:    DefaultMaxTokens,
		Temperature:  DefaultTemperature,
		Stop:         DefaultStop,
		FailureLimit: DefaultFailureLimit,
	}
}

// Plan is the outcome of one planning call.
type Plan struct {
	Statements []interp.Statement
	// ParseFailed is set when the completion was not valid code. The
	// failure has already been recorded in the session history.
	ParseFailed bool
	Code        string
}

// Finished reports whether the model chose to stop: it produced text that
// holds no statements.
func (p Plan) Finished() bool {
	return !p.ParseFailed && len(p.Statements) == 0
}

// Planner asks the model for the next statements.
type Planner struct {
	backend   Completer
	formatter Formatter
	config    PlannerConfig
	logger    *slog.Logger
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithFormatter overrides the prompt formatter.
func WithFormatter(f Formatter) PlannerOption {
	return func(p *Planner) {
		p.formatter = f
	}
}

// WithPlannerLogger sets the planner's logger.
func WithPlannerLogger(logger *slog.Logger) PlannerOption {
	return func(p *Planner) {
		p.logger = logger
	}
}

// NewPlanner creates a Planner.
func NewPlanner(backend Completer, config PlannerConfig, opts ...PlannerOption) *Planner {
	p := &Planner{
		backend:   backend,
		formatter: DefaultFormatter,
		config:    config,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan formats the session, asks the backend to continue it and parses
// the result. A completion that is not valid code is recorded in the
// session history and reported through Plan.ParseFailed rather than as an
// error. Errors are fatal: the backend failed or returned nothing.
func (p *Planner) Plan(ctx context.Context, s *State) (Plan, error) {
	prompt := p.formatter.Format(s)
	p.logger.Debug("prompt", "session", s.ID, "text", prompt)

	completion, err := p.backend.Complete(ctx, llm.Request{
		Prompt:      prompt,
		Model:       p.config.Model,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
		Stop:        p.config.Stop,
	})
	if err != nil {
		return Plan{}, fmt.Errorf("completion: %w", err)
	}
	if completion == nil || completion.Text == "" {
		return Plan{}, ErrEmptyCompletion
	}
	p.logger.Debug("completion", "session", s.ID, "text", completion.Text)

	code := ExtractCode(completion.Text)
	stmts, err := interp.Parse(code)
	if err != nil {
		desc := failureDescription(err)
		p.logger.Warn("unparseable completion", "session", s.ID, "err", desc)
		s.Append(interp.NewParseFailure(uuid.NewString(), code, TruncateOutput(desc, p.config.FailureLimit, TruncateHead)))
		return Plan{ParseFailed: true, Code: code}, nil
	}
	return Plan{Statements: stmts, Code: code}, nil
}

func failureDescription(err error) string {
	var perr *interp.ParseError
	if errors.As(err, &perr) {
		return "ParseError: " + perr.Message()
	}
	return err.Error()
}
