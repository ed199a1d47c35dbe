package engine

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/intentflow/engine/pkg/api"
	"github.com/intentflow/engine/pkg/log"
)

type (
	// Replanner produces a substitute step for one that keeps failing. The
	// substitute honors the original step's tool contract
	Replanner interface {
		Alternative(*api.FlowPlan, *api.Step) (*api.Step, error)
	}

	// RecoveryManager wraps the step executor with the plan's retry policy:
	// exponential backoff between attempts, a hard recovery time budget,
	// and an optional one-shot alternative route when retries are spent
	RecoveryManager struct {
		executor  *StepExecutor
		replanner Replanner
		logger    *slog.Logger
		sleep     func(context.Context, time.Duration) error

		mu      sync.Mutex
		metrics RecoveryMetrics
	}

	// RecoveryMetrics counts recovery activity across all flows
	RecoveryMetrics struct {
		TotalRetries        int64 `json:"total_retries"`
		RecoveredSteps      int64 `json:"recovered_steps"`
		ExhaustedSteps      int64 `json:"exhausted_steps"`
		AlternativeAttempts int64 `json:"alternative_attempts"`
		TotalRecoveryTime   int64 `json:"total_recovery_time_ms"`
	}

	// stepVerdict is what the recovery layer hands back to the flow loop
	stepVerdict struct {
		result           api.StepResult
		needsFulfillment bool
	}
)

// NewRecoveryManager creates a recovery manager around a step executor.
// The replanner may be nil, which disables alternative routes
func NewRecoveryManager(
	executor *StepExecutor, replanner Replanner, logger *slog.Logger,
) *RecoveryManager {
	return &RecoveryManager{
		executor:  executor,
		replanner: replanner,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Metrics returns a snapshot of accumulated recovery counters
func (r *RecoveryManager) Metrics() RecoveryMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// RunStep executes a step to a terminal result, retrying per the plan's
// recovery policy. The recovery clock starts at the first failure; once
// the budget cannot cover the next backoff delay, the step is declared
// exhausted
func (r *RecoveryManager) RunStep(
	ctx context.Context, ec *ExecutionContext, step *api.Step,
) *stepVerdict {
	rc := &ec.Plan().Recovery
	started := time.Now()

	res, recovered := r.runAttempts(ctx, ec, step, rc, started)
	if res.Success {
		if recovered {
			r.recordRecovered(time.Since(started))
		}
		return &stepVerdict{result: *res}
	}

	if res.Error == api.ErrorCancelled {
		return &stepVerdict{result: *res}
	}

	if rc.AlternativeFlows && r.replanner != nil {
		if alt := r.tryAlternative(ctx, ec, step, res); alt != nil {
			r.recordRecovered(time.Since(started))
			return &stepVerdict{result: *alt}
		}
	}

	r.recordExhausted(time.Since(started))
	return &stepVerdict{
		result:           *res,
		needsFulfillment: rc.UserFulfillment,
	}
}

// runAttempts drives the retry loop. The returned bool reports whether
// success came after at least one failure
func (r *RecoveryManager) runAttempts(
	ctx context.Context, ec *ExecutionContext, step *api.Step,
	rc *api.RecoveryConfig, started time.Time,
) (*api.StepResult, bool) {
	var calls []api.ToolCall
	attempts := 0

	for {
		att := r.executor.Attempt(ctx, ec, step)
		attempts++
		if att.toolCall != nil {
			calls = append(calls, *att.toolCall)
		}

		if att.phase == PhaseAccepted {
			return &api.StepResult{
				StepID:       step.ID,
				Status:       api.StepCompleted,
				Success:      true,
				AttemptCount: attempts,
				ToolCalls:    calls,
				Duration:     time.Since(started).Milliseconds(),
				Output:       att.output,
			}, attempts > 1
		}

		failed := &api.StepResult{
			StepID:       step.ID,
			Status:       api.StepFailed,
			Error:        att.errKind,
			ErrorMessage: att.errMsg,
			AttemptCount: attempts,
			ToolCalls:    calls,
			Duration:     time.Since(started).Milliseconds(),
		}

		if !retryEligible(att) {
			return failed, false
		}

		delay := r.backoff(rc, attempts-1)
		if time.Since(started)+delay >
			time.Duration(rc.MaxRecoveryTime)*time.Millisecond {
			failed.Error = api.ErrorRecoveryExhausted
			failed.ErrorMessage = "recovery budget spent: " + att.errMsg
			return failed, false
		}

		r.logger.Info("retrying step",
			log.FlowID(ec.Plan().FlowID), log.StepID(step.ID),
			log.Attempt(attempts), log.ErrorString(att.errMsg),
			slog.Duration("backoff", delay),
		)
		r.countRetry()

		if err := r.sleep(ctx, delay); err != nil {
			failed.Error = api.ErrorCancelled
			failed.ErrorMessage = "flow cancelled while awaiting retry"
			return failed, false
		}
	}
}

// tryAlternative asks the replanner for a substitute step and runs it once
// without further retries. A nil return means the original failure stands
func (r *RecoveryManager) tryAlternative(
	ctx context.Context, ec *ExecutionContext, step *api.Step,
	original *api.StepResult,
) *api.StepResult {
	alt, err := r.replanner.Alternative(ec.Plan(), step)
	if err != nil {
		return nil
	}

	r.logger.Info("attempting alternative route",
		log.FlowID(ec.Plan().FlowID), log.StepID(step.ID),
	)
	r.countAlternative()

	att := r.executor.Attempt(ctx, ec, alt)
	if att.phase != PhaseAccepted {
		return nil
	}

	var calls []api.ToolCall
	calls = append(calls, original.ToolCalls...)
	if att.toolCall != nil {
		calls = append(calls, *att.toolCall)
	}
	return &api.StepResult{
		StepID:       step.ID,
		Status:       api.StepCompleted,
		Success:      true,
		AttemptCount: original.AttemptCount + 1,
		ToolCalls:    calls,
		Duration:     original.Duration,
		Output:       att.output,
	}
}

// backoff computes the delay before retry n (zero-based), capped at the
// policy's maximum
func (r *RecoveryManager) backoff(
	rc *api.RecoveryConfig, n int,
) time.Duration {
	delay := float64(rc.BaseRetryDelay) *
		math.Pow(rc.BackoffMultiplier, float64(n))
	if delay > float64(rc.MaxRetryDelay) {
		delay = float64(rc.MaxRetryDelay)
	}
	return time.Duration(delay) * time.Millisecond
}

// retryEligible gates the retry loop on the failure taxonomy. Execution
// failures retry only when the executor flagged them transient
func retryEligible(att *attempt) bool {
	if att.errKind == api.ErrorExecutionFailure {
		return att.transient
	}
	return att.errKind.Retryable()
}

func (r *RecoveryManager) countRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics.TotalRetries++
}

func (r *RecoveryManager) countAlternative() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics.AlternativeAttempts++
}

func (r *RecoveryManager) recordRecovered(took time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics.RecoveredSteps++
	r.metrics.TotalRecoveryTime += took.Milliseconds()
}

func (r *RecoveryManager) recordExhausted(took time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics.ExhaustedSteps++
	r.metrics.TotalRecoveryTime += took.Milliseconds()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
