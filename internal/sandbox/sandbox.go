// Package sandbox defines the transaction-executor contract: the component
// that applies a concrete tool invocation to a stateful backend and reports
// the result
package sandbox

import (
	"context"
	"encoding/json"

	"github.com/intentflow/engine/pkg/api"
)

type (
	// Result is what the executor reports for one invocation. Transient
	// marks a failure as safe to retry; the recovery layer never re-derives
	// this classification
	Result struct {
		Success   bool            `json:"success"`
		Output    json.RawMessage `json:"output,omitempty"`
		Transient bool            `json:"transient,omitempty"`
		Logs      []string        `json:"logs,omitempty"`
	}

	// Executor applies a tool invocation against the backend. An error
	// return means the executor itself failed; an unsuccessful Result means
	// the transaction was applied and rejected
	Executor interface {
		Execute(context.Context, *api.ToolInvocation) (*Result, error)
	}
)

// FailureMessage returns the most recent log line, which executors use to
// explain a rejected result
func (r *Result) FailureMessage() string {
	if len(r.Logs) == 0 {
		return ""
	}
	return r.Logs[len(r.Logs)-1]
}
