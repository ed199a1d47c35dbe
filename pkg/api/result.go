package api

import "encoding/json"

type (
	// StepStatus is the terminal disposition of one step within a flow
	StepStatus string

	// ErrorKind classifies step-level failures for recovery decisions
	ErrorKind string

	// StepResult is the outcome of executing one step, after all retries.
	// Output is whatever the transaction executor returned, passed through
	// uninterpreted
	StepResult struct {
		StepID       StepID          `json:"step_id"`
		Status       StepStatus      `json:"status"`
		Success      bool            `json:"success"`
		Error        ErrorKind       `json:"error,omitempty"`
		ErrorMessage string          `json:"error_message,omitempty"`
		AttemptCount int             `json:"attempt_count"`
		ToolCalls    []ToolCall      `json:"tool_calls,omitempty"`
		Duration     int64           `json:"duration_ms"`
		Output       json.RawMessage `json:"output,omitempty"`
	}

	// FlowMetrics summarizes a completed flow for evaluation
	FlowMetrics struct {
		TotalDuration       int64 `json:"total_duration_ms"`
		SuccessfulSteps     int   `json:"successful_steps"`
		FailedSteps         int   `json:"failed_steps"`
		SkippedSteps        int   `json:"skipped_steps"`
		CriticalFailures    int   `json:"critical_failures"`
		NonCriticalFailures int   `json:"non_critical_failures"`
		TotalToolCalls      int   `json:"total_tool_calls"`
		TotalAttempts       int   `json:"total_attempts"`
	}

	// FlowOutcome is the terminal aggregate for a flow: exactly one result
	// or skip marker per step, in step order. Immutable once produced
	FlowOutcome struct {
		FlowID           FlowID       `json:"flow_id"`
		StepResults      []StepResult `json:"step_results"`
		OverallSuccess   bool         `json:"overall_success"`
		AbortedAtStep    StepID       `json:"aborted_at_step,omitempty"`
		NeedsFulfillment bool         `json:"needs_fulfillment,omitempty"`
		Metrics          FlowMetrics  `json:"metrics"`
	}
)

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

const (
	ErrorAgentTimeout         ErrorKind = "agent_timeout"
	ErrorAgentInvalidResponse ErrorKind = "agent_invalid_response"
	ErrorExecutionFailure     ErrorKind = "execution_failure"
	ErrorRecoveryExhausted    ErrorKind = "recovery_exhausted"
	ErrorCancelled            ErrorKind = "cancelled"
)

// Retryable returns whether the error kind is eligible for retry at the
// recovery layer. Execution failures are retried only when the transaction
// executor flags them transient, which is decided elsewhere
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorAgentTimeout, ErrorAgentInvalidResponse:
		return true
	default:
		return false
	}
}

// SkippedResult builds the explicit marker recorded for a step that was
// never executed due to a strict-mode abort
func SkippedResult(stepID StepID) StepResult {
	return StepResult{
		StepID: stepID,
		Status: StepSkipped,
	}
}

// SuccessRate returns the fraction of attempted steps that succeeded
func (m *FlowMetrics) SuccessRate() float64 {
	attempted := m.SuccessfulSteps + m.FailedSteps
	if attempted == 0 {
		return 0
	}
	return float64(m.SuccessfulSteps) / float64(attempted)
}
