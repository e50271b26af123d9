package analysis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fillsched/fillsched/internal/domain/mfd"
	"github.com/fillsched/fillsched/internal/platform/telemetry"
)

// TxRunner runs a closure inside one store transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Builder creates and rebuilds pack analyses.
type Builder struct {
	repo    Repository
	mfd     mfd.Repository
	tx      TxRunner
	metrics *telemetry.Metrics
	log     zerolog.Logger
}

func NewBuilder(repo Repository, mfdRepo mfd.Repository, tx TxRunner, metrics *telemetry.Metrics, log zerolog.Logger) *Builder {
	return &Builder{repo: repo, mfd: mfdRepo, tx: tx, metrics: metrics, log: log}
}

// SaveAnalysis writes one analysis header per pack with its slot details.
// Duplicate slots keep their first occurrence; slots listed in manualSlots
// are excluded from robot details and flag the header for manual fill.
func (b *Builder) SaveAnalysis(ctx context.Context, batchID int64, records []SlotRecord, manualSlots map[int64]bool) error {
	if batchID <= 0 {
		return fmt.Errorf("batch id is required")
	}
	byPack, order := groupByPack(records)

	return b.tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, packID := range order {
			recs := byPack[packID]
			manual := false
			seen := make(map[int64]bool)
			var kept []SlotRecord
			for _, rec := range recs {
				if seen[rec.SlotID] {
					continue
				}
				seen[rec.SlotID] = true
				if manualSlots[rec.SlotID] {
					manual = true
					continue
				}
				kept = append(kept, rec)
			}

			header := &PackAnalysis{PackID: packID, BatchID: batchID, ManualFillRequired: manual}
			if err := b.repo.InsertAnalysis(ctx, header); err != nil {
				return fmt.Errorf("insert analysis for pack %d: %w", packID, err)
			}
			details := make([]*Detail, 0, len(kept))
			for _, rec := range kept {
				details = append(details, detailFromRecord(header.ID, rec, NotSkipped))
			}
			if err := b.repo.InsertDetails(ctx, details); err != nil {
				return fmt.Errorf("insert details for pack %d: %w", packID, err)
			}
		}
		return nil
	})
}

// RebuildAnalysis replaces the details of each pack's existing analysis with
// fresh slot data. Slots lacking a canister, drop number or drop config get
// no detail row at all; the absence of a row is what routes the slot to
// manual fill. Details matching a surviving skip group are seeded SKIPPED so
// operator skips outlive the rebuild. Any manual-fill-device analysis for the
// packs is removed in the same transaction.
func (b *Builder) RebuildAnalysis(ctx context.Context, batchID int64, records []SlotRecord) error {
	if batchID <= 0 {
		return fmt.Errorf("batch id is required")
	}
	byPack, order := groupByPack(records)

	err := b.tx.RunInTx(ctx, func(ctx context.Context) error {
		groups, err := b.repo.ListSkippedDrugGroups(ctx, batchID)
		if err != nil {
			return fmt.Errorf("list skipped drug groups: %w", err)
		}
		skipped := skipIndex(groups)

		for _, packID := range order {
			analysisID, err := b.repo.FindAnalysisID(ctx, packID, batchID)
			if err != nil {
				return fmt.Errorf("find analysis for pack %d: %w", packID, err)
			}
			if err := b.repo.DeleteDetailsByAnalysis(ctx, []int64{analysisID}); err != nil {
				return fmt.Errorf("clear details for pack %d: %w", packID, err)
			}

			seen := make(map[int64]bool)
			var details []*Detail
			for _, rec := range byPack[packID] {
				if seen[rec.SlotID] {
					continue
				}
				seen[rec.SlotID] = true

				if !rec.RobotFillable() {
					continue
				}
				status := NotSkipped
				if skipped[skipKey{packID, rec.SlotID, *rec.CanisterID}] {
					status = Skipped
				}
				details = append(details, detailFromRecord(analysisID, rec, status))
			}
			if err := b.repo.InsertDetails(ctx, details); err != nil {
				return fmt.Errorf("insert details for pack %d: %w", packID, err)
			}
		}

		if err := b.mfd.DeleteForPacks(ctx, order); err != nil {
			return fmt.Errorf("remove mfd analysis: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if b.metrics != nil {
		b.metrics.AnalysisRebuilds.Inc()
	}
	b.log.Info().Int64("batch_id", batchID).Int("packs", len(order)).Msg("rebuilt pack analysis")
	return nil
}

// PackWiseSkippedDrugs lists the (pack, drug) groups whose details are all
// skipped and served by one canister. RebuildAnalysis uses the same data to
// seed surviving skips.
func (b *Builder) PackWiseSkippedDrugs(ctx context.Context, batchID int64) ([]SkippedDrugGroup, error) {
	if batchID <= 0 {
		return nil, fmt.Errorf("batch id is required")
	}
	return b.repo.ListSkippedDrugGroups(ctx, batchID)
}

// DeleteAnalysisForBatch removes every analysis artifact of a batch.
func (b *Builder) DeleteAnalysisForBatch(ctx context.Context, batchID int64) error {
	if batchID <= 0 {
		return fmt.Errorf("batch id is required")
	}
	return b.tx.RunInTx(ctx, func(ctx context.Context) error {
		return b.repo.DeleteByBatch(ctx, batchID)
	})
}

type skipKey struct {
	packID     int64
	slotID     int64
	canisterID int64
}

func skipIndex(groups []SkippedDrugGroup) map[skipKey]bool {
	idx := make(map[skipKey]bool)
	for _, g := range groups {
		for _, slotID := range g.SlotIDs {
			idx[skipKey{g.PackID, slotID, g.CanisterID}] = true
		}
	}
	return idx
}

func groupByPack(records []SlotRecord) (map[int64][]SlotRecord, []int64) {
	byPack := make(map[int64][]SlotRecord)
	var order []int64
	for _, rec := range records {
		if _, ok := byPack[rec.PackID]; !ok {
			order = append(order, rec.PackID)
		}
		byPack[rec.PackID] = append(byPack[rec.PackID], rec)
	}
	return byPack, order
}

func detailFromRecord(analysisID int64, rec SlotRecord, status DetailStatus) *Detail {
	return &Detail{
		AnalysisID:     analysisID,
		SlotID:         rec.SlotID,
		DrugKey:        rec.DrugKey,
		Quantity:       rec.Quantity,
		CanisterID:     rec.CanisterID,
		DeviceID:       rec.DeviceID,
		LocationNumber: rec.LocationNumber,
		Quadrant:       rec.Quadrant,
		DropNumber:     rec.DropNumber,
		ConfigID:       rec.ConfigID,
		Status:         status,
	}
}
