package agent

import (
	"github.com/google/uuid"

	"github.com/martinemde/codeloop/interp"
)

// DefaultBudget is the number of loop iterations a session may spend.
const DefaultBudget = 10

// State is the working memory of one solving session.
//
// Context and Prefix never change after creation. History only grows.
// Cost counts loop iterations and never exceeds Budget.
type State struct {
	ID      string
	Context string
	Prefix  string
	History []*interp.Record
	Budget  int
	Cost    int
	Env     *interp.Environment
}

// NewState creates a session state. A non-positive budget selects
// DefaultBudget.
func NewState(context, prefix string, budget int, env *interp.Environment) *State {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &State{
		ID:      uuid.NewString(),
		Context: context,
		Prefix:  prefix,
		Budget:  budget,
		Env:     env,
	}
}

// Remaining returns the iterations left.
func (s *State) Remaining() int {
	return s.Budget - s.Cost
}

// Exhausted reports whether the budget is spent.
func (s *State) Exhausted() bool {
	return s.Cost >= s.Budget
}

// Append adds a record to the history.
func (s *State) Append(rec *interp.Record) {
	s.History = append(s.History, rec)
}
