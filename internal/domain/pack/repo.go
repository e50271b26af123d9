package pack

import (
	"context"
	"time"
)

// Repository is the persistence gateway for packs, batches and template
// schedules. Methods are intention-revealing; no raw SQL crosses this
// boundary.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Pack, error)
	ListPendingByBatch(ctx context.Context, batchID int64) ([]*Pack, error)

	// ListProgressFillingLeft returns ids of PROGRESS packs that sit in the
	// robot pack queue but have no slot transactions yet. These packs still
	// count as outstanding demand.
	ListProgressFillingLeft(ctx context.Context) ([]int64, error)

	UpdateStatus(ctx context.Context, packIDs []int64, status PackStatus) error

	GetBatch(ctx context.Context, batchID int64) (*Batch, error)

	// MinAdminDate returns the earliest administration date for a template,
	// or nil when the template has no slots.
	MinAdminDate(ctx context.Context, key TemplateKey) (*time.Time, error)

	// IsScheduled reports whether the template already has a fill start date.
	IsScheduled(ctx context.Context, key TemplateKey) (bool, error)
}
