// Package agent defines the decision-maker contract consumed by the
// ping-pong executor, along with the bundled agent implementations
package agent

import (
	"context"

	"github.com/intentflow/engine/pkg/api"
)

type (
	// Request carries one step's rendered prompt to an agent, along with the
	// accumulated results of prior steps so the agent can reference earlier
	// outputs
	Request struct {
		FlowID       api.FlowID       `json:"flow_id"`
		StepID       api.StepID       `json:"step_id"`
		Prompt       string           `json:"prompt"`
		PriorResults []api.StepResult `json:"prior_results,omitempty"`
		AllowedTools []api.ToolName   `json:"allowed_tools"`
	}

	// Agent turns a step prompt into a concrete tool invocation. An agent
	// must return within the caller's deadline or the call is treated as
	// timed out; no partial response is assumed
	Agent interface {
		Invoke(context.Context, *Request) (*api.ToolInvocation, error)
	}
)
