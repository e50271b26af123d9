package canister

import (
	"context"

	"github.com/fillsched/fillsched/internal/domain/pack"
)

// Repository is the persistence gateway for canisters, reservations and skip
// history.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Canister, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*Canister, error)

	// ListReserved reports which of the given canisters currently appear in
	// the reservation table.
	ListReserved(ctx context.Context, canisterIDs []int64) ([]int64, error)

	// ReplaceReservation swaps a reserved canister for its alternate within
	// the same batch claim.
	ReplaceReservation(ctx context.Context, oldID, newID int64) error

	// ListCanistersInUse returns canister ids still referenced by analysis
	// details of packs in the given statuses whose batches are in the given
	// statuses. These reservations must survive cleanup.
	ListCanistersInUse(ctx context.Context, packStatuses []pack.PackStatus, batchStatuses []pack.BatchStatus) ([]int64, error)

	// DeleteReservationsNotIn removes every reservation whose canister is
	// not in keep. Returns the number of rows removed.
	DeleteReservationsNotIn(ctx context.Context, keep []int64) (int64, error)

	// LatestSkipReason returns the reason of the most recent skip event for
	// the canister; db.ErrNotFound when the canister was never skipped.
	LatestSkipReason(ctx context.Context, canisterID int64) (string, error)

	RecordSkip(ctx context.Context, canisterID int64, reason string) error
}
