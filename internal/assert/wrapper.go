package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/intentflow/engine/pkg/api"
)

// Wrapper wraps testify assertions with flow-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 100 * time.Millisecond

// New creates a new test assertion wrapper
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
	}
}

// PlanValid asserts that a plan validates and carries an identity
func (w *Wrapper) PlanValid(p *api.FlowPlan) {
	w.Helper()
	w.NoError(p.Validate())
	w.NotEmpty(p.FlowID)
	w.NotEmpty(p.Steps)
}

// StepCompleted asserts a step result succeeded
func (w *Wrapper) StepCompleted(res *api.StepResult) {
	w.Helper()
	w.Equal(api.StepCompleted, res.Status)
	w.True(res.Success)
	w.Empty(res.Error)
}

// StepFailed asserts a step result failed with the given kind
func (w *Wrapper) StepFailed(res *api.StepResult, kind api.ErrorKind) {
	w.Helper()
	w.Equal(api.StepFailed, res.Status)
	w.False(res.Success)
	w.Equal(kind, res.Error)
}

// StepSkipped asserts a step carries the explicit skip marker
func (w *Wrapper) StepSkipped(res *api.StepResult) {
	w.Helper()
	w.Equal(api.StepSkipped, res.Status)
	w.False(res.Success)
	w.Zero(res.AttemptCount)
}

// OutcomeShape asserts the outcome carries one result per plan step, in
// plan order
func (w *Wrapper) OutcomeShape(plan *api.FlowPlan, o *api.FlowOutcome) {
	w.Helper()
	w.Equal(plan.FlowID, o.FlowID)
	w.Len(o.StepResults, len(plan.Steps))
	for i := range plan.Steps {
		w.Equal(plan.Steps[i].ID, o.StepResults[i].StepID)
	}
}
