package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/intentflow/engine/internal/util"
)

type (
	// ToolName identifies one of the closed set of tool kinds an agent may
	// respond with
	ToolName string

	// ToolInvocation is a tagged action produced by an agent: the tool kind
	// plus its raw argument document. The orchestrator validates the tag and
	// the argument shape but never interprets tool semantics beyond that
	ToolInvocation struct {
		Tool ToolName        `json:"tool"`
		Args json.RawMessage `json:"args,omitempty"`
	}

	// ToolCall records one tool invocation and its result within a step
	ToolCall struct {
		Name   ToolName        `json:"name"`
		Args   json.RawMessage `json:"args,omitempty"`
		Result json.RawMessage `json:"result,omitempty"`
	}
)

const (
	ToolSwap          ToolName = "swap"
	ToolTransfer      ToolName = "transfer"
	ToolDeposit       ToolName = "deposit"
	ToolWithdraw      ToolName = "withdraw"
	ToolBalanceQuery  ToolName = "balance-query"
	ToolPositionQuery ToolName = "position-query"
)

const (
	Second int64 = 1000
	Minute       = Second * 60
	Hour         = Minute * 60
)

var (
	ErrUnknownTool     = errors.New("unknown tool")
	ErrMissingToolArg  = errors.New("missing tool argument")
	ErrMalformedArgs   = errors.New("malformed tool arguments")
	ErrToolNameEmpty   = errors.New("tool name empty")
	ErrToolNotAllowed  = errors.New("tool not allowed for step")
	ErrInvocationEmpty = errors.New("invocation empty")
)

var validTools = util.SetOf(
	ToolSwap,
	ToolTransfer,
	ToolDeposit,
	ToolWithdraw,
	ToolBalanceQuery,
	ToolPositionQuery,
)

// requiredToolArgs maps each tool kind to the argument fields that must be
// present in its invocation document
var requiredToolArgs = map[ToolName][]string{
	ToolSwap:          {"from_mint", "to_mint", "amount"},
	ToolTransfer:      {"to", "amount"},
	ToolDeposit:       {"mint", "amount"},
	ToolWithdraw:      {"mint"},
	ToolBalanceQuery:  {"owner"},
	ToolPositionQuery: {"owner"},
}

// defaultTimeBudgets sizes the per-step deadline hint for each tool kind, in
// milliseconds
var defaultTimeBudgets = map[ToolName]int64{
	ToolSwap:          30 * Second,
	ToolTransfer:      15 * Second,
	ToolDeposit:       45 * Second,
	ToolWithdraw:      25 * Second,
	ToolBalanceQuery:  5 * Second,
	ToolPositionQuery: 8 * Second,
}

// IsValid returns whether the tool name is a member of the closed tool set
func (t ToolName) IsValid() bool {
	return validTools.Contains(t)
}

// DefaultTimeBudget returns the advisory execution budget for a tool kind in
// milliseconds
func (t ToolName) DefaultTimeBudget() int64 {
	if budget, ok := defaultTimeBudgets[t]; ok {
		return budget
	}
	return 30 * Second
}

// Mutates returns whether the tool changes account state when executed
func (t ToolName) Mutates() bool {
	switch t {
	case ToolSwap, ToolTransfer, ToolDeposit, ToolWithdraw:
		return true
	default:
		return false
	}
}

// Validate checks that the invocation names a known tool and that its
// argument document carries the fields the tool requires
func (inv *ToolInvocation) Validate() error {
	if inv == nil {
		return ErrInvocationEmpty
	}
	if inv.Tool == "" {
		return ErrToolNameEmpty
	}
	if !inv.Tool.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownTool, inv.Tool)
	}

	args := gjson.ParseBytes(inv.Args)
	if len(inv.Args) > 0 && !args.IsObject() {
		return fmt.Errorf("%w: %s", ErrMalformedArgs, inv.Tool)
	}

	for _, field := range requiredToolArgs[inv.Tool] {
		if !args.Get(field).Exists() {
			return fmt.Errorf("%w: %s.%s", ErrMissingToolArg, inv.Tool, field)
		}
	}
	return nil
}
