package pack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fillsched/fillsched/internal/platform/db"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) GetPack(ctx context.Context, id int64) (*Pack, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetBatch(ctx context.Context, id int64) (*Batch, error) {
	return s.repo.GetBatch(ctx, id)
}

func (s *Service) ListPendingByBatch(ctx context.Context, batchID int64) ([]*Pack, error) {
	if _, err := s.repo.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	return s.repo.ListPendingByBatch(ctx, batchID)
}

func (s *Service) ListProgressFillingLeft(ctx context.Context) ([]int64, error) {
	return s.repo.ListProgressFillingLeft(ctx)
}

// ScheduleStart resolves the fill start date for a template from its slot
// administration dates. Templates with no slots are a data inconsistency:
// the template exists but cannot be scheduled.
func (s *Service) ScheduleStart(ctx context.Context, key TemplateKey, requested *time.Time) (ScheduleDecision, error) {
	if key.PatientID <= 0 || key.FileID <= 0 {
		return ScheduleDecision{}, fmt.Errorf("patient id and file id are required")
	}

	scheduled, err := s.repo.IsScheduled(ctx, key)
	if err != nil {
		return ScheduleDecision{}, fmt.Errorf("check template schedule: %w", err)
	}

	minAdmin, err := s.repo.MinAdminDate(ctx, key)
	if err != nil {
		return ScheduleDecision{}, fmt.Errorf("load min admin date: %w", err)
	}
	if minAdmin == nil {
		return ScheduleDecision{}, fmt.Errorf("template %d/%d has no slots: %w",
			key.PatientID, key.FileID, db.ErrInconsistent)
	}

	return DecideStartDate(*minAdmin, s.now(), requested, scheduled), nil
}

// IsNotFound reports whether err means the referenced pack or batch does not
// exist.
func IsNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}
