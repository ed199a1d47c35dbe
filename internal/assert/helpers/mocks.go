// Package helpers provides scripted agents and executors for exercising
// flow execution in tests
package helpers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/intentflow/engine/internal/agent"
	"github.com/intentflow/engine/internal/sandbox"
	"github.com/intentflow/engine/pkg/api"
)

type (
	// ScriptedAgent replays a fixed sequence of replies, one per Invoke
	// call. When the script runs out, the last entry repeats
	ScriptedAgent struct {
		mu       sync.Mutex
		script   []AgentReply
		calls    int
		Requests []agent.Request
	}

	// AgentReply is one scripted agent response
	AgentReply struct {
		Invocation *api.ToolInvocation
		Err        error
		Block      bool
		Delay      time.Duration
	}

	// ScriptedExecutor replays a fixed sequence of execution results
	ScriptedExecutor struct {
		mu     sync.Mutex
		script []ExecReply
		calls  int
		Seen   []api.ToolInvocation
	}

	// ExecReply is one scripted executor response
	ExecReply struct {
		Result *sandbox.Result
		Err    error
	}
)

// NewScriptedAgent builds an agent that replays the given replies in order
func NewScriptedAgent(script ...AgentReply) *ScriptedAgent {
	return &ScriptedAgent{script: script}
}

// Invoke replays the next scripted reply. A blocking reply waits for the
// context to expire, simulating an unresponsive agent
func (a *ScriptedAgent) Invoke(
	ctx context.Context, req *agent.Request,
) (*api.ToolInvocation, error) {
	a.mu.Lock()
	a.Requests = append(a.Requests, *req)
	reply := a.script[min(a.calls, len(a.script)-1)]
	a.calls++
	a.mu.Unlock()

	if reply.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if reply.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(reply.Delay):
		}
	}
	return reply.Invocation, reply.Err
}

// Calls returns how many times the agent was invoked
func (a *ScriptedAgent) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// NewScriptedExecutor builds an executor that replays the given results
func NewScriptedExecutor(script ...ExecReply) *ScriptedExecutor {
	return &ScriptedExecutor{script: script}
}

// Execute replays the next scripted result
func (e *ScriptedExecutor) Execute(
	_ context.Context, inv *api.ToolInvocation,
) (*sandbox.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Seen = append(e.Seen, *inv)
	reply := e.script[min(e.calls, len(e.script)-1)]
	e.calls++
	return reply.Result, reply.Err
}

// Calls returns how many invocations the executor received
func (e *ScriptedExecutor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Invoke builds a well-formed invocation for a tool using minimal valid
// arguments
func Invoke(tool api.ToolName) *api.ToolInvocation {
	args := map[api.ToolName]string{
		api.ToolSwap: `{"from_mint":"So11111111111111111111111111111111111111112",` +
			`"to_mint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",` +
			`"amount":1000000}`,
		api.ToolTransfer:      `{"to":"recipient","amount":1000}`,
		api.ToolDeposit:       `{"mint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","amount":1000}`,
		api.ToolWithdraw:      `{"mint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"}`,
		api.ToolBalanceQuery:  `{"owner":"test-owner"}`,
		api.ToolPositionQuery: `{"owner":"test-owner"}`,
	}
	return &api.ToolInvocation{
		Tool: tool,
		Args: json.RawMessage(args[tool]),
	}
}

// Success builds a successful execution result with the given output
func Success(output string) *sandbox.Result {
	return &sandbox.Result{
		Success: true,
		Output:  json.RawMessage(output),
	}
}

// Failure builds a rejected execution result
func Failure(msg string, transient bool) *sandbox.Result {
	return &sandbox.Result{
		Transient: transient,
		Logs:      []string{msg},
	}
}
