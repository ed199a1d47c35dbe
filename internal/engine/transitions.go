package engine

import "github.com/intentflow/engine/internal/util"

type (
	// StepPhase tracks where a single step attempt sits in the ping-pong
	// exchange with the agent
	StepPhase string

	// StateTransitions maps states to their set of valid next states
	StateTransitions[T comparable] map[T]util.Set[T]
)

const (
	PhaseIdle             StepPhase = "idle"
	PhaseDispatched       StepPhase = "dispatched"
	PhaseAwaitingResponse StepPhase = "awaiting-response"
	PhaseValidating       StepPhase = "validating"
	PhaseAccepted         StepPhase = "accepted"
	PhaseRejected         StepPhase = "rejected"
	PhaseTimedOut         StepPhase = "timed-out"
)

// phaseTransitions constrains each attempt to a single dispatch, a single
// await, and a single validation before reaching a terminal phase
var phaseTransitions = StateTransitions[StepPhase]{
	PhaseIdle: util.SetOf(
		PhaseDispatched,
	),
	PhaseDispatched: util.SetOf(
		PhaseAwaitingResponse,
		PhaseTimedOut,
		PhaseRejected,
	),
	PhaseAwaitingResponse: util.SetOf(
		PhaseValidating,
		PhaseTimedOut,
		PhaseRejected,
	),
	PhaseValidating: util.SetOf(
		PhaseAccepted,
		PhaseRejected,
		PhaseTimedOut,
	),
	PhaseAccepted: {},
	PhaseRejected: {},
	PhaseTimedOut: {},
}

// CanTransition returns whether transition from one state to another is valid
func (t StateTransitions[T]) CanTransition(from, to T) bool {
	allowed, ok := t[from]
	if !ok {
		return false
	}
	return allowed.Contains(to)
}

// IsTerminal returns true if the state has no valid transitions
func (t StateTransitions[T]) IsTerminal(state T) bool {
	allowed, ok := t[state]
	return ok && allowed.IsEmpty()
}
