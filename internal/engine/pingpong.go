package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/intentflow/engine/internal/agent"
	"github.com/intentflow/engine/internal/sandbox"
	"github.com/intentflow/engine/pkg/api"
	"github.com/intentflow/engine/pkg/log"
)

type (
	// StepExecutor drives one step attempt through the ping-pong exchange:
	// dispatch the prompt, await the agent's tool invocation, validate it
	// against the step's contract, and forward it to the transaction
	// executor. Each attempt allows exactly one exchange
	StepExecutor struct {
		agent   agent.Agent
		exec    sandbox.Executor
		logger  *slog.Logger
		floor   int64
		ceiling int64
	}

	// attempt is the private outcome of a single exchange, consumed by the
	// recovery layer
	attempt struct {
		phase     StepPhase
		errKind   api.ErrorKind
		errMsg    string
		transient bool
		toolCall  *api.ToolCall
		output    []byte
	}
)

var (
	ErrPhaseViolation = errors.New("invalid step phase transition")
	ErrNilAgent       = errors.New("agent not configured")
	ErrNilExecutor    = errors.New("transaction executor not configured")
)

// NewStepExecutor wires a step executor to its agent and transaction
// backend. Deadlines are clamped to the configured floor and ceiling
func NewStepExecutor(
	a agent.Agent, exec sandbox.Executor, logger *slog.Logger,
	floor, ceiling int64,
) *StepExecutor {
	return &StepExecutor{
		agent:   a,
		exec:    exec,
		logger:  logger,
		floor:   floor,
		ceiling: ceiling,
	}
}

// Deadline returns the effective deadline for a step: its advisory budget
// clamped into the configured window
func (x *StepExecutor) Deadline(step *api.Step) time.Duration {
	budget := step.TimeBudget
	if budget < x.floor {
		budget = x.floor
	}
	if budget > x.ceiling {
		budget = x.ceiling
	}
	return time.Duration(budget) * time.Millisecond
}

// Attempt runs one full exchange for a step. Cancellation of the flow
// context is surfaced as a cancelled attempt; expiry of the step deadline
// as an agent timeout
func (x *StepExecutor) Attempt(
	ctx context.Context, ec *ExecutionContext, step *api.Step,
) *attempt {
	stepCtx, cancel := context.WithTimeout(ctx, x.Deadline(step))
	defer cancel()

	sm := newPhaseMachine(step.ID)
	if err := sm.to(PhaseDispatched); err != nil {
		return internalFailure(err)
	}

	x.logger.Debug("dispatching step",
		log.FlowID(ec.Plan().FlowID), log.StepID(step.ID),
	)

	if err := sm.to(PhaseAwaitingResponse); err != nil {
		return internalFailure(err)
	}
	inv, err := x.agent.Invoke(stepCtx, ec.AgentRequest(step))
	if err != nil {
		return x.agentFailure(ctx, stepCtx, sm, err)
	}

	if err := sm.to(PhaseValidating); err != nil {
		return internalFailure(err)
	}
	if err := x.validate(step, inv); err != nil {
		_ = sm.to(PhaseRejected)
		return &attempt{
			phase:   PhaseRejected,
			errKind: api.ErrorAgentInvalidResponse,
			errMsg:  err.Error(),
		}
	}

	res, err := x.exec.Execute(stepCtx, inv)
	if err != nil {
		_ = sm.to(PhaseRejected)
		if ctx.Err() != nil {
			return &attempt{
				phase:   PhaseRejected,
				errKind: api.ErrorCancelled,
				errMsg:  "flow cancelled during transaction execution",
			}
		}
		return &attempt{
			phase:     PhaseRejected,
			errKind:   api.ErrorExecutionFailure,
			errMsg:    err.Error(),
			transient: errors.Is(err, context.DeadlineExceeded),
			toolCall:  &api.ToolCall{Name: inv.Tool, Args: inv.Args},
		}
	}

	call := &api.ToolCall{Name: inv.Tool, Args: inv.Args, Result: res.Output}
	if !res.Success {
		_ = sm.to(PhaseRejected)
		return &attempt{
			phase:     PhaseRejected,
			errKind:   api.ErrorExecutionFailure,
			errMsg:    res.FailureMessage(),
			transient: res.Transient,
			toolCall:  call,
		}
	}

	if err := sm.to(PhaseAccepted); err != nil {
		return internalFailure(err)
	}
	return &attempt{
		phase:    PhaseAccepted,
		toolCall: call,
		output:   res.Output,
	}
}

// agentFailure maps an agent invocation error onto the attempt taxonomy.
// Flow cancellation and step deadline expiry are distinguished by which
// context gave out
func (x *StepExecutor) agentFailure(
	flowCtx, stepCtx context.Context, sm *phaseMachine, err error,
) *attempt {
	if flowCtx.Err() != nil {
		return &attempt{
			phase:   PhaseRejected,
			errKind: api.ErrorCancelled,
			errMsg:  "flow cancelled during agent exchange",
		}
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		_ = sm.to(PhaseTimedOut)
		return &attempt{
			phase:   PhaseTimedOut,
			errKind: api.ErrorAgentTimeout,
			errMsg:  "agent did not respond within the step deadline",
		}
	}
	_ = sm.to(PhaseRejected)
	return &attempt{
		phase:   PhaseRejected,
		errKind: api.ErrorAgentInvalidResponse,
		errMsg:  err.Error(),
	}
}

func (x *StepExecutor) validate(
	step *api.Step, inv *api.ToolInvocation,
) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	if !step.AllowsTool(inv.Tool) {
		return fmt.Errorf("%w: %s", api.ErrToolNotAllowed, inv.Tool)
	}
	return nil
}

func internalFailure(err error) *attempt {
	return &attempt{
		phase:   PhaseRejected,
		errKind: api.ErrorExecutionFailure,
		errMsg:  err.Error(),
	}
}

// phaseMachine enforces the attempt's phase transitions at runtime
type phaseMachine struct {
	stepID api.StepID
	phase  StepPhase
}

func newPhaseMachine(stepID api.StepID) *phaseMachine {
	return &phaseMachine{stepID: stepID, phase: PhaseIdle}
}

func (m *phaseMachine) to(next StepPhase) error {
	if !phaseTransitions.CanTransition(m.phase, next) {
		return fmt.Errorf("%w: %s: %s -> %s",
			ErrPhaseViolation, m.stepID, m.phase, next)
	}
	m.phase = next
	return nil
}
