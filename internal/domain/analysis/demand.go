package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/fillsched/fillsched/internal/platform/telemetry"
)

// progressPackLister supplies the PROGRESS packs that still count toward
// demand; satisfied by the pack repository.
type progressPackLister interface {
	ListProgressFillingLeft(ctx context.Context) ([]int64, error)
}

// DemandService aggregates outstanding canister demand.
type DemandService struct {
	repo    Repository
	packs   progressPackLister
	metrics *telemetry.Metrics
}

func NewDemandService(repo Repository, packs progressPackLister, metrics *telemetry.Metrics) *DemandService {
	return &DemandService{repo: repo, packs: packs, metrics: metrics}
}

// RequiredQuantities sums pending demand per canister. extraPackIDs widens
// the pending-pack scope, letting callers include PROGRESS packs the robot
// has not started on. The result is sparse: canisters with no demand are
// absent.
func (s *DemandService) RequiredQuantities(ctx context.Context, canisterIDs, extraPackIDs []int64) (map[int64]int64, error) {
	if len(canisterIDs) == 0 {
		return map[int64]int64{}, nil
	}
	defer s.observe(time.Now())
	sums, err := s.repo.SumRequired(ctx, canisterIDs, extraPackIDs)
	if err != nil {
		return nil, fmt.Errorf("sum required quantities: %w", err)
	}
	return sums, nil
}

// RequiredQuantitiesAuto is RequiredQuantities with the progress
// filling-left packs resolved internally; excludePackIDs are removed from
// that set before aggregation.
func (s *DemandService) RequiredQuantitiesAuto(ctx context.Context, canisterIDs, excludePackIDs []int64) (map[int64]int64, error) {
	if len(canisterIDs) == 0 {
		return map[int64]int64{}, nil
	}
	progress, err := s.packs.ListProgressFillingLeft(ctx)
	if err != nil {
		return nil, fmt.Errorf("list progress packs: %w", err)
	}
	if len(excludePackIDs) > 0 {
		exclude := make(map[int64]bool, len(excludePackIDs))
		for _, id := range excludePackIDs {
			exclude[id] = true
		}
		kept := progress[:0]
		for _, id := range progress {
			if !exclude[id] {
				kept = append(kept, id)
			}
		}
		progress = kept
	}
	return s.RequiredQuantities(ctx, canisterIDs, progress)
}

// UsedQuantities sums demand already committed to the given batches.
func (s *DemandService) UsedQuantities(ctx context.Context, batchIDs []int64) (map[int64]int64, error) {
	if len(batchIDs) == 0 {
		return map[int64]int64{}, nil
	}
	defer s.observe(time.Now())
	sums, err := s.repo.SumUsedByBatches(ctx, batchIDs)
	if err != nil {
		return nil, fmt.Errorf("sum used quantities: %w", err)
	}
	return sums, nil
}

func (s *DemandService) observe(start time.Time) {
	if s.metrics != nil {
		s.metrics.DemandDuration.Observe(time.Since(start).Seconds())
	}
}
