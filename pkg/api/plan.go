package api

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/intentflow/engine/internal/util"
)

type (
	// AtomicMode governs whether a critical failure aborts the rest of a plan
	AtomicMode string

	// Step is one unit of agent-mediated work within a flow
	Step struct {
		ID             StepID     `json:"step_id"`
		Prompt         string     `json:"prompt"`
		PromptTemplate string     `json:"prompt_template,omitempty"`
		Description    string     `json:"description,omitempty"`
		RequiredTools  []ToolName `json:"required_tools"`
		Critical       bool       `json:"critical"`
		TimeBudget     int64      `json:"estimated_time_budget"`
	}

	// RecoveryConfig holds the retry and recovery policy for a plan. All
	// durations are milliseconds
	RecoveryConfig struct {
		BaseRetryDelay    int64   `json:"base_retry_delay_ms"`
		MaxRetryDelay     int64   `json:"max_retry_delay_ms"`
		BackoffMultiplier float64 `json:"backoff_multiplier"`
		MaxRecoveryTime   int64   `json:"max_recovery_time_ms"`
		AlternativeFlows  bool    `json:"enable_alternative_flows"`
		UserFulfillment   bool    `json:"enable_user_fulfillment"`
	}

	// Metadata carries descriptive plan attributes for audit and tooling
	Metadata struct {
		CreatedAt time.Time `json:"created_at"`
		Category  string    `json:"category"`
		Tags      []string  `json:"tags,omitempty"`
		Version   string    `json:"version"`
	}

	// FlowPlan is the unit of work for one user request. A plan is created
	// once by the planner and never mutated afterward
	FlowPlan struct {
		FlowID     FlowID         `json:"flow_id"`
		UserPrompt string         `json:"user_prompt"`
		Steps      []Step         `json:"steps"`
		Wallet     WalletContext  `json:"wallet_context"`
		AtomicMode AtomicMode     `json:"atomic_mode"`
		Recovery   RecoveryConfig `json:"recovery_config"`
		Metadata   Metadata       `json:"metadata"`
	}
)

const (
	// AtomicStrict halts the flow at the first critical step failure
	AtomicStrict AtomicMode = "strict"

	// AtomicLenient attempts every step regardless of prior failures
	AtomicLenient AtomicMode = "lenient"
)

const (
	DefaultBaseRetryDelay    = 1 * Second
	DefaultMaxRetryDelay     = 10 * Second
	DefaultBackoffMultiplier = 2.0
	DefaultMaxRecoveryTime   = 30 * Second
)

var (
	ErrFlowIDEmpty          = errors.New("flow ID empty")
	ErrPromptEmpty          = errors.New("user prompt empty")
	ErrNoSteps              = errors.New("plan has no steps")
	ErrStepIDEmpty          = errors.New("step ID empty")
	ErrStepPromptEmpty      = errors.New("step prompt empty")
	ErrDuplicateStepID      = errors.New("duplicate step ID")
	ErrNoRequiredTools      = errors.New("step has no required tools")
	ErrInvalidAtomicMode    = errors.New("invalid atomic mode")
	ErrNegativeRetryDelay   = errors.New("base retry delay must be positive")
	ErrMaxDelayTooSmall     = errors.New("max retry delay must be >= base retry delay")
	ErrInvalidMultiplier    = errors.New("backoff multiplier must be >= 1")
	ErrRecoveryTimeTooSmall = errors.New(
		"max recovery time must be >= base retry delay",
	)
)

var validAtomicModes = util.SetOf(AtomicStrict, AtomicLenient)

// PlanVersion tags plans with the schema revision they were built against
const PlanVersion = "1"

// NewMetadata stamps plan metadata for the given category
func NewMetadata(category string) Metadata {
	return Metadata{
		CreatedAt: time.Now().UTC(),
		Category:  category,
		Version:   PlanVersion,
	}
}

// DefaultRecoveryConfig returns the recovery policy applied when a plan does
// not override it
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		BaseRetryDelay:    DefaultBaseRetryDelay,
		MaxRetryDelay:     DefaultMaxRetryDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
		MaxRecoveryTime:   DefaultMaxRecoveryTime,
		AlternativeFlows:  true,
	}
}

// Validate checks the recovery policy. Violations are rejected at plan
// creation, never discovered mid-execution
func (rc *RecoveryConfig) Validate() error {
	if rc.BaseRetryDelay <= 0 {
		return ErrNegativeRetryDelay
	}
	if rc.MaxRetryDelay < rc.BaseRetryDelay {
		return ErrMaxDelayTooSmall
	}
	if rc.BackoffMultiplier < 1 {
		return ErrInvalidMultiplier
	}
	if rc.MaxRecoveryTime < rc.BaseRetryDelay {
		return ErrRecoveryTimeTooSmall
	}
	return nil
}

// Validate checks a step's identity, prompt, and tool set
func (s *Step) Validate() error {
	if s.ID == "" {
		return ErrStepIDEmpty
	}
	if s.Prompt == "" && s.PromptTemplate == "" {
		return fmt.Errorf("%w: %s", ErrStepPromptEmpty, s.ID)
	}
	if len(s.RequiredTools) == 0 {
		return fmt.Errorf("%w: %s", ErrNoRequiredTools, s.ID)
	}
	for _, tool := range s.RequiredTools {
		if !tool.IsValid() {
			return fmt.Errorf("%w: %s", ErrUnknownTool, tool)
		}
	}
	return nil
}

// AllowsTool returns whether a tool kind is acceptable as this step's
// response
func (s *Step) AllowsTool(tool ToolName) bool {
	return slices.Contains(s.RequiredTools, tool)
}

// RenderedPrompt returns the prompt text sent to the agent, preferring the
// rendered form over the raw template
func (s *Step) RenderedPrompt() string {
	if s.Prompt != "" {
		return s.Prompt
	}
	return s.PromptTemplate
}

// Validate checks plan identity, step uniqueness, atomic mode, and the
// recovery policy
func (p *FlowPlan) Validate() error {
	if p.FlowID == "" {
		return ErrFlowIDEmpty
	}
	if p.UserPrompt == "" {
		return ErrPromptEmpty
	}
	if len(p.Steps) == 0 {
		return ErrNoSteps
	}
	if !validAtomicModes.Contains(p.AtomicMode) {
		return fmt.Errorf("%w: %s", ErrInvalidAtomicMode, p.AtomicMode)
	}

	seen := util.Set[StepID]{}
	for i := range p.Steps {
		step := &p.Steps[i]
		if err := step.Validate(); err != nil {
			return err
		}
		if seen.Contains(step.ID) {
			return fmt.Errorf("%w: %s", ErrDuplicateStepID, step.ID)
		}
		seen.Add(step.ID)
	}

	return p.Recovery.Validate()
}

// GetStep returns the step with the given ID, or nil
func (p *FlowPlan) GetStep(id StepID) *Step {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// CriticalSteps returns the IDs of all critical steps in plan order
func (p *FlowPlan) CriticalSteps() []StepID {
	var ids []StepID
	for i := range p.Steps {
		if p.Steps[i].Critical {
			ids = append(ids, p.Steps[i].ID)
		}
	}
	return ids
}

// EstimatedTime returns the summed advisory budget for all steps in
// milliseconds
func (p *FlowPlan) EstimatedTime() int64 {
	var total int64
	for i := range p.Steps {
		total += p.Steps[i].TimeBudget
	}
	return total
}

// Equal reports whether two plans match in all fields relevant to execution
func (p *FlowPlan) Equal(other *FlowPlan) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.FlowID != other.FlowID || p.UserPrompt != other.UserPrompt {
		return false
	}
	if p.AtomicMode != other.AtomicMode || p.Recovery != other.Recovery {
		return false
	}
	if len(p.Steps) != len(other.Steps) {
		return false
	}
	for i := range p.Steps {
		if !p.Steps[i].Equal(&other.Steps[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether two steps match in all fields relevant to execution
func (s *Step) Equal(other *Step) bool {
	if s.ID != other.ID || s.Critical != other.Critical {
		return false
	}
	if s.Prompt != other.Prompt || s.PromptTemplate != other.PromptTemplate {
		return false
	}
	if s.TimeBudget != other.TimeBudget {
		return false
	}
	return slices.Equal(s.RequiredTools, other.RequiredTools)
}
