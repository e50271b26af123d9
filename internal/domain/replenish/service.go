package replenish

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fillsched/fillsched/internal/domain/pack"
	"github.com/fillsched/fillsched/internal/platform/db"
	"github.com/fillsched/fillsched/internal/platform/telemetry"
)

// batchGetter resolves the batch a plan targets; satisfied by the pack
// repository.
type batchGetter interface {
	GetBatch(ctx context.Context, batchID int64) (*pack.Batch, error)
}

// Service computes replenishment plans: how much of each drug an operator
// must load into which canister before the robot can fill the batch.
type Service struct {
	repo    Repository
	batches batchGetter
	metrics *telemetry.Metrics
	log     zerolog.Logger
}

func NewService(repo Repository, batches batchGetter, metrics *telemetry.Metrics, log zerolog.Logger) *Service {
	return &Service{repo: repo, batches: batches, metrics: metrics, log: log}
}

// Plan builds the replenishment list for a batch. An unknown batch fails
// with ErrNotFound and a finished batch with ErrPrecondition; a known batch
// with no canister demand returns an empty plan.
func (s *Service) Plan(ctx context.Context, q Query) ([]Item, error) {
	if q.BatchID <= 0 {
		return nil, fmt.Errorf("batch id is required")
	}
	start := time.Now()

	batch, err := s.batches.GetBatch(ctx, q.BatchID)
	if err != nil {
		return nil, fmt.Errorf("load batch %d: %w", q.BatchID, err)
	}
	if batch.Status == pack.BatchDone || batch.Status == pack.BatchProcessed {
		return nil, fmt.Errorf("batch %d is already %s: %w", q.BatchID, batchStatusName(batch.Status), db.ErrPrecondition)
	}
	if q.SystemID == 0 {
		q.SystemID = batch.SystemID
	}

	items, err := s.repo.ListDemand(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("aggregate demand: %w", err)
	}

	plan := make([]Item, 0, len(items))
	for _, it := range items {
		it.Replenish = it.Required - it.Available
		if it.Replenish < 0 {
			it.Replenish = 0
		}
		it.DisplayAvailable = it.Available
		if it.DisplayAvailable < 0 {
			it.DisplayAvailable = 0
		}
		if q.MiniBatch && it.Required <= it.Available {
			continue
		}
		plan = append(plan, it)
	}

	if s.metrics != nil {
		s.metrics.PlanDuration.Observe(time.Since(start).Seconds())
	}
	s.log.Debug().Int64("batch_id", q.BatchID).Int("canisters", len(plan)).
		Bool("mini_batch", q.MiniBatch).Msg("computed replenishment plan")
	return plan, nil
}

func batchStatusName(s pack.BatchStatus) string {
	if s == pack.BatchDone {
		return "done"
	}
	return "processed"
}
