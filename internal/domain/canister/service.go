package canister

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fillsched/fillsched/internal/domain/pack"
	"github.com/fillsched/fillsched/internal/platform/db"
)

// Service owns reservation lifecycle and skip history reads. Eligibility
// status sets are injected so deployments can tune which batch states protect
// a reservation.
type Service struct {
	repo Repository
	log  zerolog.Logger

	activePackStatuses     []pack.PackStatus
	protectedBatchStatuses []pack.BatchStatus
}

type Option func(*Service)

// WithActivePackStatuses overrides the pack statuses whose analysis rows keep
// a reservation alive.
func WithActivePackStatuses(statuses ...pack.PackStatus) Option {
	return func(s *Service) { s.activePackStatuses = statuses }
}

// WithProtectedBatchStatuses overrides the batch statuses that protect
// reservations from cleanup.
func WithProtectedBatchStatuses(statuses ...pack.BatchStatus) Option {
	return func(s *Service) { s.protectedBatchStatuses = statuses }
}

func NewService(repo Repository, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:               repo,
		log:                log,
		activePackStatuses: []pack.PackStatus{pack.StatusPending, pack.StatusProgress},
		protectedBatchStatuses: []pack.BatchStatus{
			pack.BatchImported,
			pack.BatchCanisterTransferRecommended,
			pack.BatchCanisterTransferDone,
			pack.BatchMfdUserAssigned,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) GetCanister(ctx context.Context, id int64) (*Canister, error) {
	return s.repo.GetByID(ctx, id)
}

// ValidateNotReserved fails with ErrConflict when any of the given canisters
// is already claimed by a reservation. Used before substituting alternate
// canisters into a batch.
func (s *Service) ValidateNotReserved(ctx context.Context, canisterIDs []int64) error {
	reserved, err := s.repo.ListReserved(ctx, canisterIDs)
	if err != nil {
		return fmt.Errorf("check reservations: %w", err)
	}
	if len(reserved) > 0 {
		return fmt.Errorf("alternate canister is already reserved (canisters %v): %w", reserved, db.ErrConflict)
	}
	return nil
}

// ReplaceReservation moves a batch's claim from one canister to its
// alternate. Joins any ambient transaction on ctx.
func (s *Service) ReplaceReservation(ctx context.Context, oldID, newID int64) error {
	return s.repo.ReplaceReservation(ctx, oldID, newID)
}

// ReleaseUnusedReservations deletes reservations for canisters no longer
// referenced by any active pack in a protected batch. Returns the number of
// reservations released.
func (s *Service) ReleaseUnusedReservations(ctx context.Context) (int64, error) {
	keep, err := s.repo.ListCanistersInUse(ctx, s.activePackStatuses, s.protectedBatchStatuses)
	if err != nil {
		return 0, fmt.Errorf("list canisters in use: %w", err)
	}
	released, err := s.repo.DeleteReservationsNotIn(ctx, keep)
	if err != nil {
		return 0, fmt.Errorf("release reservations: %w", err)
	}
	if released > 0 {
		s.log.Info().Int64("released", released).Int("kept", len(keep)).Msg("released unused canister reservations")
	}
	return released, nil
}

// SkipCanister appends a skip event to the canister's history. The latest
// reason gates out-of-stock reverts later.
func (s *Service) SkipCanister(ctx context.Context, canisterID int64, reason string) error {
	if reason == "" {
		return fmt.Errorf("skip reason is required")
	}
	if _, err := s.repo.GetByID(ctx, canisterID); err != nil {
		return fmt.Errorf("load canister: %w", err)
	}
	if err := s.repo.RecordSkip(ctx, canisterID, reason); err != nil {
		return fmt.Errorf("record skip: %w", err)
	}
	s.log.Info().Int64("canister_id", canisterID).Str("reason", reason).Msg("canister skipped")
	return nil
}

// LatestSkipReason exposes the most recent skip reason for a canister.
func (s *Service) LatestSkipReason(ctx context.Context, canisterID int64) (string, error) {
	return s.repo.LatestSkipReason(ctx, canisterID)
}
