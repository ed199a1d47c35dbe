package api

import "time"

type (
	// ExecuteFlowRequest contains parameters for planning and executing a
	// flow from a user prompt
	ExecuteFlowRequest struct {
		Prompt     string          `json:"prompt"`
		Wallet     WalletContext   `json:"wallet_context"`
		AtomicMode AtomicMode      `json:"atomic_mode,omitempty"`
		Recovery   *RecoveryConfig `json:"recovery_config,omitempty"`
	}

	// PlanPreviewRequest contains parameters for previewing a plan without
	// executing it
	PlanPreviewRequest struct {
		Prompt string        `json:"prompt"`
		Wallet WalletContext `json:"wallet_context"`
	}

	// FlowStartedResponse is returned when a flow execution begins
	FlowStartedResponse struct {
		Message string `json:"message"`
		FlowID  FlowID `json:"flow_id"`
	}

	// FlowDigest provides summary information about a stored flow
	FlowDigest struct {
		ID             FlowID    `json:"id"`
		CreatedAt      time.Time `json:"created_at"`
		Category       string    `json:"category"`
		StepCount      int       `json:"step_count"`
		OverallSuccess bool      `json:"overall_success"`
		Completed      bool      `json:"completed"`
	}

	// FlowsListResponse contains a list of flow summaries
	FlowsListResponse struct {
		Flows []*FlowDigest `json:"flows"`
		Count int           `json:"count"`
	}

	// EngineMetricsResponse reports aggregate recovery counters computed
	// from completed flow outcomes
	EngineMetricsResponse struct {
		TotalFlows          int64   `json:"total_flows"`
		SuccessfulFlows     int64   `json:"successful_flows"`
		FailedFlows         int64   `json:"failed_flows"`
		RecoveredFlows      int64   `json:"recovered_flows"`
		TotalRetries        int64   `json:"total_retries"`
		AverageRecoveryTime float64 `json:"average_recovery_time_ms"`
		SuccessRate         float64 `json:"success_rate"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service string `json:"service"`
		Version string `json:"version"`
		Status  string `json:"status"`
	}

	// MessageResponse contains a simple message string
	MessageResponse struct {
		Message string `json:"message"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}

	// WebSocketEvent is the envelope for step results streamed to clients
	// while a flow executes
	WebSocketEvent struct {
		Type      string       `json:"type"`
		FlowID    FlowID       `json:"flow_id"`
		Result    *StepResult  `json:"result,omitempty"`
		Outcome   *FlowOutcome `json:"outcome,omitempty"`
		Timestamp int64        `json:"timestamp"`
	}

	// SubscribeRequest is sent by a WebSocket client to select a flow to
	// stream
	SubscribeRequest struct {
		Type   string `json:"type"`
		FlowID FlowID `json:"flow_id"`
	}
)
