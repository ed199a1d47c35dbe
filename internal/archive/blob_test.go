package archive_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/intentflow/engine/internal/archive"
	"github.com/intentflow/engine/pkg/api"
)

func TestBlobArchiver(t *testing.T) {
	ctx := context.Background()

	a, err := archive.NewBlobArchiver(ctx, "mem://", "outcomes/")
	assert.NoError(t, err)
	defer func() { _ = a.Close() }()

	flowID := api.NewFlowID()

	t.Run("load_missing_outcome", func(t *testing.T) {
		_, err := a.Load(ctx, flowID)
		assert.ErrorIs(t, err, archive.ErrOutcomeNotFound)
	})

	t.Run("archive_and_load", func(t *testing.T) {
		outcome := &api.FlowOutcome{
			FlowID: flowID,
			StepResults: []api.StepResult{
				{
					StepID:  "step-1",
					Status:  api.StepCompleted,
					Success: true,
				},
			},
			OverallSuccess: true,
			Metrics:        api.FlowMetrics{TotalDuration: 420},
		}
		assert.NoError(t, a.Archive(ctx, outcome))

		got, err := a.Load(ctx, flowID)
		assert.NoError(t, err)
		assert.Equal(t, outcome, got)
	})

	t.Run("delete_is_idempotent", func(t *testing.T) {
		assert.NoError(t, a.Delete(ctx, flowID))
		assert.NoError(t, a.Delete(ctx, flowID))

		_, err := a.Load(ctx, flowID)
		assert.ErrorIs(t, err, archive.ErrOutcomeNotFound)
	})

	t.Run("nil_outcome_rejected", func(t *testing.T) {
		assert.ErrorIs(t, a.Archive(ctx, nil), archive.ErrNilOutcome)
	})
}
