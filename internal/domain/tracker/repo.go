package tracker

import "context"

// Repository persists batch change audit entries. Entries are append-only;
// there is no update or delete.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	ListByBatch(ctx context.Context, batchID int64) ([]*Entry, error)
}
