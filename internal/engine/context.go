package engine

import (
	"sync"
	"time"

	"github.com/intentflow/engine/internal/agent"
	"github.com/intentflow/engine/pkg/api"
)

// ExecutionContext is the mutable per-flow state threaded through step
// execution. Results accumulate in plan order; the plan itself is never
// modified
type ExecutionContext struct {
	mu        sync.RWMutex
	plan      *api.FlowPlan
	results   []api.StepResult
	startedAt time.Time
}

// NewExecutionContext prepares context for a validated plan
func NewExecutionContext(plan *api.FlowPlan) *ExecutionContext {
	return &ExecutionContext{
		plan:      plan,
		startedAt: time.Now(),
	}
}

// Plan returns the flow's immutable plan
func (ec *ExecutionContext) Plan() *api.FlowPlan {
	return ec.plan
}

// RecordResult appends a step's terminal result
func (ec *ExecutionContext) RecordResult(res api.StepResult) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.results = append(ec.results, res)
}

// Results returns a copy of all results recorded so far
func (ec *ExecutionContext) Results() []api.StepResult {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	res := make([]api.StepResult, len(ec.results))
	copy(res, ec.results)
	return res
}

// Elapsed returns wall time since the flow began
func (ec *ExecutionContext) Elapsed() time.Duration {
	return time.Since(ec.startedAt)
}

// StartedAt returns when flow execution began
func (ec *ExecutionContext) StartedAt() time.Time {
	return ec.startedAt
}

// AgentRequest builds the dispatch payload for a step: the rendered prompt,
// the step's tool contract, and every prior result so the agent can chain
// steps on earlier outputs
func (ec *ExecutionContext) AgentRequest(step *api.Step) *agent.Request {
	return &agent.Request{
		FlowID:       ec.plan.FlowID,
		StepID:       step.ID,
		Prompt:       step.RenderedPrompt(),
		PriorResults: ec.Results(),
		AllowedTools: step.RequiredTools,
	}
}
