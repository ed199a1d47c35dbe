package engine

import (
	"github.com/intentflow/engine/pkg/api"
)

// Aggregate folds recorded step results into the flow's terminal outcome.
// The output carries exactly one entry per plan step in plan order: the
// recorded result for attempted steps, an explicit skip marker for steps a
// strict-mode abort never reached. The fold is deterministic and safe to
// re-run over the same inputs
func Aggregate(
	plan *api.FlowPlan, results []api.StepResult, elapsed int64,
	needsFulfillment bool,
) *api.FlowOutcome {
	byStep := make(map[api.StepID]*api.StepResult, len(results))
	for i := range results {
		byStep[results[i].StepID] = &results[i]
	}

	outcome := &api.FlowOutcome{
		FlowID:           plan.FlowID,
		StepResults:      make([]api.StepResult, 0, len(plan.Steps)),
		OverallSuccess:   true,
		NeedsFulfillment: needsFulfillment,
	}

	aborted := false
	for i := range plan.Steps {
		step := &plan.Steps[i]
		res, attempted := byStep[step.ID]

		if !attempted || aborted {
			outcome.StepResults = append(
				outcome.StepResults, api.SkippedResult(step.ID),
			)
			continue
		}

		outcome.StepResults = append(outcome.StepResults, *res)
		if res.Success {
			continue
		}
		if step.Critical {
			outcome.OverallSuccess = false
			if plan.AtomicMode == api.AtomicStrict && !aborted {
				aborted = true
				outcome.AbortedAtStep = step.ID
			}
		}
	}

	outcome.Metrics = computeMetrics(plan, outcome.StepResults, elapsed)
	return outcome
}

func computeMetrics(
	plan *api.FlowPlan, results []api.StepResult, elapsed int64,
) api.FlowMetrics {
	m := api.FlowMetrics{TotalDuration: elapsed}
	for i := range results {
		res := &results[i]
		m.TotalToolCalls += len(res.ToolCalls)
		m.TotalAttempts += res.AttemptCount

		switch res.Status {
		case api.StepCompleted:
			m.SuccessfulSteps++
		case api.StepSkipped:
			m.SkippedSteps++
		case api.StepFailed:
			m.FailedSteps++
			step := plan.GetStep(res.StepID)
			if step != nil && step.Critical {
				m.CriticalFailures++
			} else {
				m.NonCriticalFailures++
			}
		}
	}
	return m
}
