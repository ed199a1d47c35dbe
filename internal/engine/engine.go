package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/intentflow/engine/internal/agent"
	"github.com/intentflow/engine/internal/config"
	"github.com/intentflow/engine/internal/planner"
	"github.com/intentflow/engine/internal/sandbox"
	"github.com/intentflow/engine/pkg/api"
	"github.com/intentflow/engine/pkg/log"
)

type (
	// Store persists plans and outcomes across restarts
	Store interface {
		SavePlan(context.Context, *api.FlowPlan) error
		SaveOutcome(context.Context, *api.FlowOutcome) error
	}

	// Archiver ships completed outcomes to long-term storage
	Archiver interface {
		Archive(context.Context, *api.FlowOutcome) error
	}

	// Engine orchestrates flows end to end: plan, execute step by step
	// through the agent exchange, recover failures, aggregate, persist.
	// Flows run concurrently; steps within a flow run strictly in order
	Engine struct {
		cfg      *config.Config
		planner  *planner.Planner
		executor *StepExecutor
		recovery *RecoveryManager
		store    Store
		archiver Archiver
		logger   *slog.Logger

		baseCtx    context.Context
		baseCancel context.CancelFunc
		flows      sync.Map
		wg         sync.WaitGroup
		stopped    atomic.Bool

		mu              sync.Mutex
		totalFlows      int64
		successfulFlows int64
		failedFlows     int64
		recoveredFlows  int64
	}

	// EventConsumer streams one flow's websocket events to a subscriber
	EventConsumer = topic.Consumer[api.WebSocketEvent]

	// flowHandle tracks one in-flight flow: its cancel hook and the topic
	// fanning its events out to subscribers
	flowHandle struct {
		plan      *api.FlowPlan
		cancel    context.CancelFunc
		events    topic.Topic[api.WebSocketEvent]
		prod      topic.Producer[api.WebSocketEvent]
		closeOnce sync.Once
	}
)

// WebSocket event types emitted while a flow executes
const (
	EventStepResult    = "step_result"
	EventFlowCompleted = "flow_completed"
)

var (
	ErrEngineStopped = errors.New("engine is stopped")
	ErrFlowNotActive = errors.New("flow is not active")
	ErrNilPlan       = errors.New("plan is nil")
)

// New assembles an engine from its collaborators. The store is required;
// the archiver may be nil
func New(
	cfg *config.Config, p *planner.Planner, a agent.Agent,
	exec sandbox.Executor, store Store, archiver Archiver,
	logger *slog.Logger,
) *Engine {
	executor := NewStepExecutor(
		a, exec, logger, cfg.StepTimeoutFloor, cfg.StepTimeoutCeiling,
	)
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:        cfg,
		planner:    p,
		executor:   executor,
		recovery:   NewRecoveryManager(executor, p, logger),
		store:      store,
		archiver:   archiver,
		logger:     logger,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}
}

// PlanFlow builds and validates a plan without executing it
func (e *Engine) PlanFlow(req *api.ExecuteFlowRequest) (*api.FlowPlan, error) {
	return e.planner.Plan(req)
}

// StartFlow plans a request, persists the plan, and executes it in the
// background. The plan is returned immediately so callers can subscribe to
// the flow's events
func (e *Engine) StartFlow(
	ctx context.Context, req *api.ExecuteFlowRequest,
) (*api.FlowPlan, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	plan, err := e.planner.Plan(req)
	if err != nil {
		return nil, err
	}
	if err := e.store.SavePlan(ctx, plan); err != nil {
		return nil, err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if _, err := e.ExecuteFlow(e.baseCtx, plan); err != nil {
			e.logger.Error("background flow failed",
				log.FlowID(plan.FlowID), log.Error(err),
			)
		}
	}()
	return plan, nil
}

// ExecuteFlow runs a validated plan to completion and returns its outcome.
// Steps execute sequentially; in strict mode a critical failure stops the
// loop and the remaining steps are recorded as skipped
func (e *Engine) ExecuteFlow(
	ctx context.Context, plan *api.FlowPlan,
) (*api.FlowOutcome, error) {
	if plan == nil {
		return nil, ErrNilPlan
	}
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	flowCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	handle := e.register(plan, cancel)
	defer e.unregister(plan.FlowID, handle)

	e.logger.Info("flow started",
		log.FlowID(plan.FlowID),
		slog.Int("steps", len(plan.Steps)),
		slog.String("atomic_mode", string(plan.AtomicMode)),
	)

	ec := NewExecutionContext(plan)
	needsFulfillment := false

	for i := range plan.Steps {
		step := &plan.Steps[i]
		verdict := e.recovery.RunStep(flowCtx, ec, step)
		ec.RecordResult(verdict.result)
		handle.publish(stepEvent(plan.FlowID, &verdict.result))

		e.logger.Info("step finished",
			log.FlowID(plan.FlowID), log.StepID(step.ID),
			log.Status(verdict.result.Status),
			log.Attempt(verdict.result.AttemptCount),
		)

		if verdict.needsFulfillment {
			needsFulfillment = true
		}
		if verdict.result.Error == api.ErrorCancelled {
			break
		}
		if plan.AtomicMode == api.AtomicStrict &&
			step.Critical && !verdict.result.Success {
			break
		}
	}

	outcome := Aggregate(
		plan, ec.Results(), ec.Elapsed().Milliseconds(), needsFulfillment,
	)
	e.finishFlow(handle, outcome)
	return outcome, nil
}

// CancelFlow requests cancellation of an in-flight flow
func (e *Engine) CancelFlow(flowID api.FlowID) error {
	v, ok := e.flows.Load(flowID)
	if !ok {
		return ErrFlowNotActive
	}
	v.(*flowHandle).cancel()
	return nil
}

// Watch subscribes to a flow's event stream. The consumer must be closed
// when the subscriber is done; its channel closes when the flow completes.
// Returns false when the flow is not currently active
func (e *Engine) Watch(flowID api.FlowID) (EventConsumer, bool) {
	v, ok := e.flows.Load(flowID)
	if !ok {
		return nil, false
	}
	return v.(*flowHandle).events.NewConsumer(), true
}

// ActiveFlows returns digests for every in-flight flow
func (e *Engine) ActiveFlows() []*api.FlowDigest {
	var res []*api.FlowDigest
	e.flows.Range(func(_, v any) bool {
		plan := v.(*flowHandle).plan
		res = append(res, &api.FlowDigest{
			ID:        plan.FlowID,
			CreatedAt: plan.Metadata.CreatedAt,
			Category:  plan.Metadata.Category,
			StepCount: len(plan.Steps),
		})
		return true
	})
	return res
}

// Metrics reports aggregate counters across all flows this engine has run
func (e *Engine) Metrics() *api.EngineMetricsResponse {
	rec := e.recovery.Metrics()

	e.mu.Lock()
	defer e.mu.Unlock()

	res := &api.EngineMetricsResponse{
		TotalFlows:      e.totalFlows,
		SuccessfulFlows: e.successfulFlows,
		FailedFlows:     e.failedFlows,
		RecoveredFlows:  e.recoveredFlows,
		TotalRetries:    rec.TotalRetries,
	}
	if recovered := rec.RecoveredSteps + rec.ExhaustedSteps; recovered > 0 {
		res.AverageRecoveryTime =
			float64(rec.TotalRecoveryTime) / float64(recovered)
	}
	if e.totalFlows > 0 {
		res.SuccessRate = float64(e.successfulFlows) / float64(e.totalFlows)
	}
	return res
}

// Stop cancels all in-flight flows and waits for them to wind down, up to
// the provided context's deadline
func (e *Engine) Stop(ctx context.Context) error {
	if !e.stopped.CompareAndSwap(false, true) {
		return nil
	}
	e.baseCancel()
	e.flows.Range(func(_, v any) bool {
		v.(*flowHandle).cancel()
		return true
	})

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) register(
	plan *api.FlowPlan, cancel context.CancelFunc,
) *flowHandle {
	events := caravan.NewTopic[api.WebSocketEvent]()
	handle := &flowHandle{
		plan:   plan,
		cancel: cancel,
		events: events,
		prod:   events.NewProducer(),
	}
	e.flows.Store(plan.FlowID, handle)
	return handle
}

func (e *Engine) unregister(flowID api.FlowID, handle *flowHandle) {
	handle.close()
	e.flows.Delete(flowID)
}

// finishFlow persists and archives the outcome, updates counters, and
// broadcasts the terminal event
func (e *Engine) finishFlow(handle *flowHandle, outcome *api.FlowOutcome) {
	ctx, cancel := context.WithTimeout(
		context.Background(), e.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := e.store.SaveOutcome(ctx, outcome); err != nil {
		e.logger.Error("failed to persist outcome",
			log.FlowID(outcome.FlowID), log.Error(err),
		)
	}
	if e.archiver != nil {
		if err := e.archiver.Archive(ctx, outcome); err != nil {
			e.logger.Error("failed to archive outcome",
				log.FlowID(outcome.FlowID), log.Error(err),
			)
		}
	}

	e.mu.Lock()
	e.totalFlows++
	if outcome.OverallSuccess {
		e.successfulFlows++
		if outcome.Metrics.TotalAttempts > outcome.Metrics.SuccessfulSteps {
			e.recoveredFlows++
		}
	} else {
		e.failedFlows++
	}
	e.mu.Unlock()

	handle.publish(api.WebSocketEvent{
		Type:      EventFlowCompleted,
		FlowID:    outcome.FlowID,
		Outcome:   outcome,
		Timestamp: time.Now().UnixMilli(),
	})

	e.logger.Info("flow finished",
		log.FlowID(outcome.FlowID),
		slog.Bool("success", outcome.OverallSuccess),
		slog.Int64("duration_ms", outcome.Metrics.TotalDuration),
	)
}

func stepEvent(flowID api.FlowID, res *api.StepResult) api.WebSocketEvent {
	return api.WebSocketEvent{
		Type:      EventStepResult,
		FlowID:    flowID,
		Result:    res,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (h *flowHandle) publish(event api.WebSocketEvent) {
	message.Send(h.prod, event)
}

// close shuts the flow's topic; consumer channels close once the
// remaining events drain
func (h *flowHandle) close() {
	h.closeOnce.Do(func() {
		h.prod.Close()
	})
}
