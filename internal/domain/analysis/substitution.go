package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fillsched/fillsched/internal/domain/canister"
	"github.com/fillsched/fillsched/internal/domain/tracker"
	"github.com/fillsched/fillsched/internal/platform/db"
	"github.com/fillsched/fillsched/internal/platform/notify"
	"github.com/fillsched/fillsched/internal/platform/telemetry"
)

// CanisterGateway is the slice of the canister domain substitution needs.
// Satisfied by *canister.Service.
type CanisterGateway interface {
	GetCanister(ctx context.Context, id int64) (*canister.Canister, error)
	ValidateNotReserved(ctx context.Context, canisterIDs []int64) error
	ReplaceReservation(ctx context.Context, oldID, newID int64) error
	ReleaseUnusedReservations(ctx context.Context) (int64, error)
	LatestSkipReason(ctx context.Context, canisterID int64) (string, error)
}

// trackerRecorder is satisfied by *tracker.Service.
type trackerRecorder interface {
	Record(ctx context.Context, e *tracker.Entry) error
}

// Substitution swaps alternate canisters into analyses and reverts skips.
type Substitution struct {
	repo      Repository
	canisters CanisterGateway
	tracker   trackerRecorder
	tx        TxRunner
	notifier  notify.ReplenishNotifier
	metrics   *telemetry.Metrics
	log       zerolog.Logger
}

func NewSubstitution(repo Repository, canisters CanisterGateway, trk trackerRecorder,
	tx TxRunner, notifier notify.ReplenishNotifier, metrics *telemetry.Metrics, log zerolog.Logger) *Substitution {
	return &Substitution{
		repo:      repo,
		canisters: canisters,
		tracker:   trk,
		tx:        tx,
		notifier:  notifier,
		metrics:   metrics,
		log:       log,
	}
}

// ReplaceRequest describes one canister substitution run.
type ReplaceRequest struct {
	BatchID      int64           `json:"batch_id"`
	UserID       int64           `json:"user_id"`
	Scope        Scope           `json:"scope"`
	Replacements map[int64]int64 `json:"replacements"` // old canister id -> new canister id
	RobotUtility bool            `json:"robot_utility"`
}

// ReplaceCanisters substitutes alternate canisters across eligible packs.
// New canisters already reserved elsewhere fail the whole request with
// ErrConflict before anything is written. The detail updates, transfer
// updates, reservation swaps and the audit entry commit atomically.
func (s *Substitution) ReplaceCanisters(ctx context.Context, req ReplaceRequest) ([]int64, error) {
	if req.BatchID <= 0 {
		return nil, fmt.Errorf("batch id is required")
	}
	if len(req.Replacements) == 0 {
		return nil, fmt.Errorf("no replacements given")
	}
	if req.Scope == "" {
		req.Scope = ScopeBatch
	}
	if req.Scope != ScopeBatch && req.Scope != ScopePackQueue {
		return nil, fmt.Errorf("unknown scope %q", req.Scope)
	}

	newIDs := make([]int64, 0, len(req.Replacements))
	for oldID, newID := range req.Replacements {
		if oldID == newID {
			return nil, fmt.Errorf("canister %d cannot replace itself", oldID)
		}
		newIDs = append(newIDs, newID)
	}
	if err := s.canisters.ValidateNotReserved(ctx, newIDs); err != nil {
		return nil, err
	}

	affected := make(map[int64]bool)
	pairs := make([]map[string]int64, 0, len(req.Replacements))

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		// Recheck under the transaction; the unique index on
		// reserved_canister(canister_id) backs this against concurrent writers.
		if err := s.canisters.ValidateNotReserved(ctx, newIDs); err != nil {
			return err
		}
		for oldID, newID := range req.Replacements {
			if err := s.repo.ReplaceCanisterTransfers(ctx, oldID, newID, req.BatchID); err != nil {
				return fmt.Errorf("replace transfers %d->%d: %w", oldID, newID, err)
			}
			packs, err := s.repo.ReplaceCanister(ctx, oldID, newID, req.BatchID, req.Scope)
			if err != nil {
				return fmt.Errorf("replace canister %d->%d: %w", oldID, newID, err)
			}
			for _, p := range packs {
				affected[p] = true
			}
			if err := s.canisters.ReplaceReservation(ctx, oldID, newID); err != nil {
				return fmt.Errorf("swap reservation %d->%d: %w", oldID, newID, err)
			}
			pairs = append(pairs, map[string]int64{"old": oldID, "new": newID})
		}

		return s.tracker.Record(ctx, &tracker.Entry{
			BatchID:       req.BatchID,
			UserID:        req.UserID,
			Action:        tracker.ActionUpdateAltCanister,
			Params:        map[string]interface{}{"replacements": pairs, "scope": string(req.Scope)},
			PacksAffected: keys(affected),
		})
	})
	if err != nil {
		return nil, err
	}

	// The old canisters may no longer back any pack; a reservation must not
	// outlive its last referencing pack.
	if _, err := s.canisters.ReleaseUnusedReservations(ctx); err != nil {
		s.log.Warn().Err(err).Msg("release unused reservations after replace")
	}

	if s.metrics != nil {
		s.metrics.Substitutions.Add(float64(len(req.Replacements)))
		s.metrics.TrackerEntries.WithLabelValues(string(tracker.ActionUpdateAltCanister)).Inc()
	}

	if req.RobotUtility {
		for _, newID := range newIDs {
			can, err := s.canisters.GetCanister(ctx, newID)
			if err != nil {
				s.log.Warn().Err(err).Int64("canister_id", newID).Msg("skip wizard refresh for unknown canister")
				continue
			}
			deviceID := int64(0)
			if can.DeviceID != nil {
				deviceID = *can.DeviceID
			}
			s.notifier.RefreshCanister(ctx, can.CompanyID, deviceID, newID)
		}
	}

	packIDs := keys(affected)
	s.log.Info().Int64("batch_id", req.BatchID).Int("replacements", len(req.Replacements)).
		Int("packs_affected", len(packIDs)).Msg("replaced alternate canisters")
	return packIDs, nil
}

// RevertResult reports the outcome of a skip revert.
type RevertResult struct {
	Reverted bool    `json:"reverted"`
	PackIDs  []int64 `json:"pack_ids,omitempty"`
	SystemID int64   `json:"system_id,omitempty"`
	DeviceID int64   `json:"device_id,omitempty"`
}

// RevertOutOfStockSkips flips the canister's SKIPPED details on pending
// packs back to NOT_SKIPPED, but only when the canister's most recent skip
// was recorded as out-of-stock. Any other latest reason means the operator
// skipped it deliberately, and the revert is a no-op. The audit entry is
// attributed to userID.
func (s *Substitution) RevertOutOfStockSkips(ctx context.Context, canisterID, companyID, userID int64) (RevertResult, error) {
	skipped, err := s.repo.ListSkippedDetails(ctx, canisterID)
	if err != nil {
		return RevertResult{}, fmt.Errorf("list skipped details: %w", err)
	}
	if len(skipped.DetailIDs) == 0 {
		return RevertResult{}, nil
	}

	reason, err := s.canisters.LatestSkipReason(ctx, canisterID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return RevertResult{}, nil
		}
		return RevertResult{}, fmt.Errorf("latest skip reason: %w", err)
	}
	if reason != canister.SkipReasonOutOfStock {
		return RevertResult{}, nil
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateDetailStatus(ctx, skipped.DetailIDs, NotSkipped); err != nil {
			return fmt.Errorf("revert details: %w", err)
		}
		if skipped.BatchID > 0 {
			return s.tracker.Record(ctx, &tracker.Entry{
				BatchID:       skipped.BatchID,
				UserID:        userID,
				Action:        tracker.ActionReplenishRevertedPacks,
				Params:        map[string]interface{}{"canister_id": canisterID},
				PacksAffected: skipped.PackIDs,
			})
		}
		return nil
	})
	if err != nil {
		return RevertResult{}, err
	}

	result := RevertResult{Reverted: true, PackIDs: skipped.PackIDs}
	if can, err := s.canisters.GetCanister(ctx, canisterID); err == nil {
		result.SystemID = can.SystemID
		if can.DeviceID != nil {
			result.DeviceID = *can.DeviceID
		}
		s.notifier.RefreshCanister(ctx, companyID, result.DeviceID, canisterID)
	}

	if s.metrics != nil {
		s.metrics.SkipReverts.WithLabelValues("out_of_stock").Inc()
	}
	s.log.Info().Int64("canister_id", canisterID).Int("packs", len(skipped.PackIDs)).
		Msg("reverted out-of-stock skips")
	return result, nil
}

// RevertSoleProviderSkips un-skips the canister only when it is the single
// canister serving its drug on the device. Two or more candidates mean the
// skip was a deliberate choice between canisters and stands.
func (s *Substitution) RevertSoleProviderSkips(ctx context.Context, canisterID, deviceID int64) (RevertResult, error) {
	can, err := s.canisters.GetCanister(ctx, canisterID)
	if err != nil {
		return RevertResult{}, fmt.Errorf("load canister: %w", err)
	}

	serving, err := s.repo.ListCanistersServingDrug(ctx, can.DrugKey, deviceID)
	if err != nil {
		return RevertResult{}, fmt.Errorf("list canisters serving drug: %w", err)
	}
	if len(serving) != 1 {
		return RevertResult{}, nil
	}

	skipped, err := s.repo.ListSkippedDetails(ctx, canisterID)
	if err != nil {
		return RevertResult{}, fmt.Errorf("list skipped details: %w", err)
	}
	if len(skipped.DetailIDs) == 0 {
		return RevertResult{}, nil
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.repo.UpdateDetailStatus(ctx, skipped.DetailIDs, NotSkipped)
	})
	if err != nil {
		return RevertResult{}, err
	}

	if s.metrics != nil {
		s.metrics.SkipReverts.WithLabelValues("sole_provider").Inc()
	}
	return RevertResult{Reverted: true, PackIDs: skipped.PackIDs, SystemID: can.SystemID, DeviceID: deviceID}, nil
}

// MarkSkippedDueToManual marks every detail of the given analyses as skipped
// because the pack moved to manual filling, then releases reservations the
// skipped packs no longer justify.
func (s *Substitution) MarkSkippedDueToManual(ctx context.Context, analysisIDs []int64) error {
	if len(analysisIDs) == 0 {
		return fmt.Errorf("no analysis ids given")
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.repo.SetStatusByAnalysisIDs(ctx, analysisIDs, SkippedDueToManual)
	})
	if err != nil {
		return err
	}
	if _, err := s.canisters.ReleaseUnusedReservations(ctx); err != nil {
		s.log.Warn().Err(err).Msg("release unused reservations after manual skip")
	}
	return nil
}

// ListManualSkippedPacks returns packs holding at least one
// SKIPPED_DUE_TO_MANUAL detail.
func (s *Substitution) ListManualSkippedPacks(ctx context.Context) ([]int64, error) {
	return s.repo.ListPacksWithStatus(ctx, SkippedDueToManual)
}

func keys(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
