// Package store persists flow plans and outcomes in Redis so they survive
// restarts and remain queryable after completion
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/intentflow/engine/internal/config"
	"github.com/intentflow/engine/pkg/api"
	"github.com/intentflow/engine/pkg/log"
)

// Store is a Redis-backed repository for flow state. Plans are written once
// at creation; outcomes once at completion. The flow index set supports
// listing without scanning the keyspace
type Store struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

var (
	ErrFlowNotFound = errors.New("flow not found")
	ErrNilOutcome   = errors.New("outcome is nil")
)

// New connects a store to Redis using the given settings
func New(cfg *config.StoreConfig, logger *slog.Logger) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Store{
		client: client,
		prefix: cfg.Prefix,
		logger: logger,
	}
}

// Ping verifies connectivity to the backend
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	return s.client.Close()
}

// SavePlan persists a plan and records its flow in the index
func (s *Store) SavePlan(ctx context.Context, plan *api.FlowPlan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.planKey(plan.FlowID), data, 0)
	pipe.SAdd(ctx, s.indexKey(), string(plan.FlowID))
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("failed to save plan",
			log.FlowID(plan.FlowID), log.Error(err),
		)
		return err
	}
	return nil
}

// GetPlan loads a plan by flow ID
func (s *Store) GetPlan(
	ctx context.Context, flowID api.FlowID,
) (*api.FlowPlan, error) {
	data, err := s.client.Get(ctx, s.planKey(flowID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}
	if err != nil {
		return nil, err
	}
	var plan api.FlowPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// SaveOutcome persists a flow's terminal outcome
func (s *Store) SaveOutcome(
	ctx context.Context, outcome *api.FlowOutcome,
) error {
	if outcome == nil {
		return ErrNilOutcome
	}
	data, err := json.Marshal(outcome)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.outcomeKey(outcome.FlowID), data, 0)
	pipe.SAdd(ctx, s.indexKey(), string(outcome.FlowID))
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("failed to save outcome",
			log.FlowID(outcome.FlowID), log.Error(err),
		)
		return err
	}
	return nil
}

// GetOutcome loads a flow's outcome. Flows still executing have a plan but
// no outcome yet
func (s *Store) GetOutcome(
	ctx context.Context, flowID api.FlowID,
) (*api.FlowOutcome, error) {
	data, err := s.client.Get(ctx, s.outcomeKey(flowID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}
	if err != nil {
		return nil, err
	}
	var outcome api.FlowOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// ListDigests summarizes every stored flow, newest first
func (s *Store) ListDigests(
	ctx context.Context,
) ([]*api.FlowDigest, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, err
	}

	res := make([]*api.FlowDigest, 0, len(ids))
	for _, id := range ids {
		digest, err := s.digest(ctx, api.FlowID(id))
		if err != nil {
			s.logger.Warn("skipping unreadable flow",
				log.FlowID(api.FlowID(id)), log.Error(err),
			)
			continue
		}
		res = append(res, digest)
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// DeleteFlow removes a flow's plan, outcome, and index entry
func (s *Store) DeleteFlow(ctx context.Context, flowID api.FlowID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.planKey(flowID), s.outcomeKey(flowID))
	pipe.SRem(ctx, s.indexKey(), string(flowID))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) digest(
	ctx context.Context, flowID api.FlowID,
) (*api.FlowDigest, error) {
	plan, err := s.GetPlan(ctx, flowID)
	if err != nil {
		return nil, err
	}
	res := &api.FlowDigest{
		ID:        plan.FlowID,
		CreatedAt: plan.Metadata.CreatedAt,
		Category:  plan.Metadata.Category,
		StepCount: len(plan.Steps),
	}
	if outcome, err := s.GetOutcome(ctx, flowID); err == nil {
		res.Completed = true
		res.OverallSuccess = outcome.OverallSuccess
	}
	return res, nil
}

func (s *Store) planKey(flowID api.FlowID) string {
	return fmt.Sprintf("%s:plan:%s", s.prefix, flowID)
}

func (s *Store) outcomeKey(flowID api.FlowID) string {
	return fmt.Sprintf("%s:outcome:%s", s.prefix, flowID)
}

func (s *Store) indexKey() string {
	return s.prefix + ":flows"
}
