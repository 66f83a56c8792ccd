package pipeline

import (
	"fmt"
	"time"

	"github.com/axionmev/flasharb/internal/profit"
	"github.com/axionmev/flasharb/pkg/types"
)

// State is one checkpoint in an execution's lifecycle.
type State string

const (
	StateDetected  State = "detected"
	StateValidated State = "validated"
	StatePrepared  State = "prepared"
	StateSubmitted State = "submitted"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
	StateRejected  State = "rejected"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case StateConfirmed, StateFailed, StateRejected:
		return true
	}

	return false
}

// legalTransitions is the full transition relation. Anything absent is
// illegal; there is no way back out of a terminal state.
var legalTransitions = map[State][]State{
	StateDetected:  {StateValidated, StateRejected, StateFailed},
	StateValidated: {StatePrepared, StateRejected, StateFailed},
	StatePrepared:  {StateSubmitted, StateValidated, StateRejected, StateFailed},
	StateSubmitted: {StateConfirmed, StateValidated, StateFailed},
}

// Transition is one recorded checkpoint crossing.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Context carries everything one execution accumulates on its way
// through the pipeline: the request as it is built, every error the
// attempts produced, and the full transition history.
type Context struct {
	Opportunity *types.Opportunity
	State       State
	Request     *types.TransactionRequest
	Forecast    *profit.Breakdown
	Result      *types.TransactionResult
	Attempts    int
	GasBumps    int
	Errors      []*types.ExecutionError
	Transitions []Transition
	StartedAt   time.Time
	FinishedAt  time.Time
}

// newContext starts an execution at the Detected checkpoint.
func newContext(opp *types.Opportunity) *Context {
	return &Context{
		Opportunity: opp,
		State:       StateDetected,
		StartedAt:   time.Now(),
	}
}

// transition moves the execution to the next checkpoint, enforcing the
// transition relation.
func (c *Context) transition(to State) error {
	for _, allowed := range legalTransitions[c.State] {
		if allowed == to {
			c.Transitions = append(c.Transitions, Transition{From: c.State, To: to, At: time.Now()})
			c.State = to
			if to.Terminal() {
				c.FinishedAt = time.Now()
			}

			return nil
		}
	}

	return fmt.Errorf("illegal transition %s -> %s", c.State, to)
}

// recordError archives an attempt's failure. Errors are never
// overwritten; the full history survives to the terminal state.
func (c *Context) recordError(execErr *types.ExecutionError) {
	if execErr != nil {
		c.Errors = append(c.Errors, execErr)
	}
}

// LastError returns the most recent failure, or nil.
func (c *Context) LastError() *types.ExecutionError {
	if len(c.Errors) == 0 {
		return nil
	}

	return c.Errors[len(c.Errors)-1]
}

// Duration is wall time from detection to the terminal checkpoint.
func (c *Context) Duration() time.Duration {
	if c.FinishedAt.IsZero() {
		return time.Since(c.StartedAt)
	}

	return c.FinishedAt.Sub(c.StartedAt)
}
