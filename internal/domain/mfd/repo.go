package mfd

import "context"

// Repository removes manual-fill-device analysis state. DeleteForPacks must
// be called inside the same transaction as the robot analysis rebuild so a
// pack never holds both kinds of analysis.
type Repository interface {
	// ListAnalysisIDsForPacks returns MFD analysis ids attached to the packs.
	ListAnalysisIDsForPacks(ctx context.Context, packIDs []int64) ([]int64, error)

	// DeleteForPacks removes all MFD rows for the packs in dependency order:
	// details, cycle-history comments, cycle history, temp filling, headers.
	DeleteForPacks(ctx context.Context, packIDs []int64) error
}
