package tracker

import (
	"context"
	"fmt"
)

var validActions = map[Action]bool{
	ActionUpdateAltCanister:      true,
	ActionReplenishRevertedPacks: true,
	ActionSkipCanister:           true,
	ActionDeleteAnalysis:         true,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends one audit entry. It participates in any ambient transaction
// carried by ctx, so callers can make the audit row atomic with the change it
// describes.
func (s *Service) Record(ctx context.Context, e *Entry) error {
	if e.BatchID <= 0 {
		return fmt.Errorf("batch id is required")
	}
	if !validActions[e.Action] {
		return fmt.Errorf("unknown tracker action %q", e.Action)
	}
	return s.repo.Record(ctx, e)
}

func (s *Service) ListByBatch(ctx context.Context, batchID int64) ([]*Entry, error) {
	return s.repo.ListByBatch(ctx, batchID)
}
