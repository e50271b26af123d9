package analysis

import "context"

// Repository is the persistence gateway for pack analyses. Every method is
// intention-revealing; demand sums and eligibility filters live behind this
// interface, never as raw SQL in services.
type Repository interface {
	// SumRequired sums FLOOR(quantity) per canister over NOT_SKIPPED details
	// whose pack is PENDING or listed in extraPackIDs. Canisters with no
	// demand are absent from the map.
	SumRequired(ctx context.Context, canisterIDs, extraPackIDs []int64) (map[int64]int64, error)

	// SumUsedByBatches sums FLOOR(quantity) per canister across the batches,
	// regardless of pack status.
	SumUsedByBatches(ctx context.Context, batchIDs []int64) (map[int64]int64, error)

	InsertAnalysis(ctx context.Context, a *PackAnalysis) error
	InsertDetails(ctx context.Context, details []*Detail) error

	// FindAnalysisID resolves the header for (pack, batch); db.ErrNotFound
	// when the pack was never analyzed for the batch.
	FindAnalysisID(ctx context.Context, packID, batchID int64) (int64, error)

	DeleteDetailsByAnalysis(ctx context.Context, analysisIDs []int64) error

	// DeleteByBatch removes the batch's details, headers, hash rows and
	// canister transfer recommendations.
	DeleteByBatch(ctx context.Context, batchID int64) error

	ListSkippedDrugGroups(ctx context.Context, batchID int64) ([]SkippedDrugGroup, error)

	// ReplaceCanister rewrites oldID to newID on details of eligible packs
	// (PENDING, or PROGRESS with no slot transactions; scoped to the batch
	// or to the robot pack queue) and returns the affected pack ids.
	ReplaceCanister(ctx context.Context, oldID, newID, batchID int64, scope Scope) ([]int64, error)

	// ReplaceCanisterTransfers rewrites pending transfer recommendations.
	ReplaceCanisterTransfers(ctx context.Context, oldID, newID, batchID int64) error

	// ListSkippedDetails collects SKIPPED details for the canister over
	// PENDING packs.
	ListSkippedDetails(ctx context.Context, canisterID int64) (SkippedDetails, error)

	UpdateDetailStatus(ctx context.Context, detailIDs []int64, status DetailStatus) error
	SetStatusByAnalysisIDs(ctx context.Context, analysisIDs []int64, status DetailStatus) error

	// ListPacksWithStatus returns pack ids having at least one detail in the
	// given status.
	ListPacksWithStatus(ctx context.Context, status DetailStatus) ([]int64, error)

	// ListCanistersServingDrug returns distinct active canisters that can
	// fill the drug on the device, drawn from pending-pack details and the
	// replenish skip history.
	ListCanistersServingDrug(ctx context.Context, drugKey string, deviceID int64) ([]int64, error)
}
