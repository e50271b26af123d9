package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fillsched/fillsched/internal/domain/canister"
	"github.com/fillsched/fillsched/internal/domain/tracker"
	"github.com/fillsched/fillsched/internal/platform/db"
)

type substFixture struct {
	repo     *mockRepo
	gateway  *mockGateway
	tracker  *mockTracker
	tx       *fakeTx
	notifier *mockNotifier
	svc      *Substitution
}

func newSubstFixture() *substFixture {
	f := &substFixture{
		repo:     newMockRepo(),
		gateway:  newMockGateway(),
		tracker:  &mockTracker{},
		tx:       &fakeTx{},
		notifier: &mockNotifier{},
	}
	f.svc = NewSubstitution(f.repo, f.gateway, f.tracker, f.tx, f.notifier, nil, zerolog.Nop())
	return f
}

func TestReplaceCanistersValidation(t *testing.T) {
	f := newSubstFixture()
	ctx := context.Background()

	if _, err := f.svc.ReplaceCanisters(ctx, ReplaceRequest{BatchID: 0, Replacements: map[int64]int64{3: 4}}); err == nil {
		t.Error("expected error for missing batch id")
	}
	if _, err := f.svc.ReplaceCanisters(ctx, ReplaceRequest{BatchID: 5}); err == nil {
		t.Error("expected error for empty replacements")
	}
	if _, err := f.svc.ReplaceCanisters(ctx, ReplaceRequest{BatchID: 5, Replacements: map[int64]int64{3: 3}}); err == nil {
		t.Error("expected error for self replacement")
	}
	if _, err := f.svc.ReplaceCanisters(ctx, ReplaceRequest{BatchID: 5, Scope: "weird", Replacements: map[int64]int64{3: 4}}); err == nil {
		t.Error("expected error for unknown scope")
	}
}

func TestReplaceCanistersReservedConflict(t *testing.T) {
	f := newSubstFixture()
	f.gateway.reserved[4] = true

	_, err := f.svc.ReplaceCanisters(context.Background(), ReplaceRequest{
		BatchID:      5,
		Replacements: map[int64]int64{3: 4},
	})
	if !errors.Is(err, db.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	if f.tx.calls != 0 {
		t.Error("transaction ran despite reserved conflict")
	}
	if len(f.tracker.entries) != 0 {
		t.Error("tracker entry written despite reserved conflict")
	}
	if f.gateway.releases != 0 {
		t.Error("reservation cleanup ran despite reserved conflict")
	}
}

func TestReplaceCanistersReservedMidFlight(t *testing.T) {
	f := newSubstFixture()
	// Passes the fast pre-check, but a concurrent substitution claims the
	// canister before the transactional recheck.
	f.gateway.lateReserved[4] = true

	_, err := f.svc.ReplaceCanisters(context.Background(), ReplaceRequest{
		BatchID:      5,
		Replacements: map[int64]int64{3: 4},
	})
	if !errors.Is(err, db.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	if len(f.gateway.swaps) != 0 {
		t.Error("reservation swapped despite mid-flight conflict")
	}
	if len(f.tracker.entries) != 0 {
		t.Error("tracker entry written despite mid-flight conflict")
	}
}

func TestReplaceCanistersSwapsAndAudits(t *testing.T) {
	f := newSubstFixture()
	f.repo.replacedPacks = []int64{1, 2}

	packs, err := f.svc.ReplaceCanisters(context.Background(), ReplaceRequest{
		BatchID:      5,
		UserID:       42,
		Replacements: map[int64]int64{3: 4},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(packs) != 2 {
		t.Errorf("packs affected = %v, want 2 packs", packs)
	}
	if f.tx.calls != 1 {
		t.Errorf("tx runs = %d, want 1", f.tx.calls)
	}
	if len(f.repo.transferCalls) != 1 || f.repo.transferCalls[0] != (replacePair{3, 4}) {
		t.Errorf("transfer rewrites = %v, want [{3 4}]", f.repo.transferCalls)
	}
	if len(f.gateway.swaps) != 1 || f.gateway.swaps[0] != (replacePair{3, 4}) {
		t.Errorf("reservation swaps = %v, want [{3 4}]", f.gateway.swaps)
	}
	if len(f.tracker.entries) != 1 {
		t.Fatalf("tracker entries = %d, want 1", len(f.tracker.entries))
	}
	entry := f.tracker.entries[0]
	if entry.Action != tracker.ActionUpdateAltCanister {
		t.Errorf("tracker action = %s, want %s", entry.Action, tracker.ActionUpdateAltCanister)
	}
	if entry.BatchID != 5 || entry.UserID != 42 {
		t.Errorf("tracker batch/user = %d/%d, want 5/42", entry.BatchID, entry.UserID)
	}
	if len(entry.PacksAffected) != 2 {
		t.Errorf("tracker packs = %v, want 2 packs", entry.PacksAffected)
	}
	if f.gateway.releases != 1 {
		t.Errorf("reservation cleanup runs = %d, want 1 after replace", f.gateway.releases)
	}
	if len(f.notifier.refreshed) != 0 {
		t.Error("cache refreshed without robot utility flag")
	}
}

func TestReplaceCanistersRobotUtilityNotifies(t *testing.T) {
	f := newSubstFixture()
	device := int64(12)
	f.gateway.canisters[4] = &canister.Canister{ID: 4, CompanyID: 9, DeviceID: &device}

	_, err := f.svc.ReplaceCanisters(context.Background(), ReplaceRequest{
		BatchID:      5,
		Replacements: map[int64]int64{3: 4},
		RobotUtility: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(f.notifier.refreshed) != 1 || f.notifier.refreshed[0] != 4 {
		t.Errorf("refreshed canisters = %v, want [4]", f.notifier.refreshed)
	}
}

func TestRevertOutOfStockNoSkippedDetails(t *testing.T) {
	f := newSubstFixture()

	result, err := f.svc.RevertOutOfStockSkips(context.Background(), 3, 9, 42)
	if err != nil {
		t.Fatal(err)
	}
	if result.Reverted {
		t.Error("reverted with nothing skipped")
	}
	if f.tx.calls != 0 {
		t.Error("transaction ran with nothing skipped")
	}
}

func TestRevertOutOfStockWrongLatestReason(t *testing.T) {
	f := newSubstFixture()
	f.repo.skippedDetails = SkippedDetails{DetailIDs: []int64{7}, PackIDs: []int64{1}, BatchID: 5}
	f.gateway.latestReason[3] = "Operator preference"

	result, err := f.svc.RevertOutOfStockSkips(context.Background(), 3, 9, 42)
	if err != nil {
		t.Fatal(err)
	}
	if result.Reverted {
		t.Error("reverted a deliberate operator skip")
	}
	if len(f.repo.statusUpdates) != 0 {
		t.Error("detail statuses changed despite wrong reason")
	}
}

func TestRevertOutOfStockNoSkipHistory(t *testing.T) {
	f := newSubstFixture()
	f.repo.skippedDetails = SkippedDetails{DetailIDs: []int64{7}, PackIDs: []int64{1}, BatchID: 5}

	result, err := f.svc.RevertOutOfStockSkips(context.Background(), 3, 9, 42)
	if err != nil {
		t.Fatal(err)
	}
	if result.Reverted {
		t.Error("reverted without any skip history")
	}
}

func TestRevertOutOfStockFlipsDetails(t *testing.T) {
	f := newSubstFixture()
	device := int64(12)
	f.repo.skippedDetails = SkippedDetails{DetailIDs: []int64{7, 8}, PackIDs: []int64{1, 2}, BatchID: 5}
	f.gateway.latestReason[3] = canister.SkipReasonOutOfStock
	f.gateway.canisters[3] = &canister.Canister{ID: 3, SystemID: 2, DeviceID: &device}

	result, err := f.svc.RevertOutOfStockSkips(context.Background(), 3, 9, 42)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Reverted {
		t.Fatal("expected revert")
	}
	if result.SystemID != 2 || result.DeviceID != 12 {
		t.Errorf("system/device = %d/%d, want 2/12", result.SystemID, result.DeviceID)
	}
	for _, id := range []int64{7, 8} {
		if f.repo.statusUpdates[id] != NotSkipped {
			t.Errorf("detail %d status = %s, want NOT_SKIPPED", id, f.repo.statusUpdates[id])
		}
	}
	if len(f.tracker.entries) != 1 || f.tracker.entries[0].Action != tracker.ActionReplenishRevertedPacks {
		t.Errorf("tracker entries = %v, want one REPLENISH_REVERTED_PACKS", f.tracker.entries)
	}
	if f.tracker.entries[0].UserID != 42 {
		t.Errorf("tracker user = %d, want 42", f.tracker.entries[0].UserID)
	}
	if len(f.notifier.refreshed) != 1 || f.notifier.refreshed[0] != 3 {
		t.Errorf("refreshed canisters = %v, want [3]", f.notifier.refreshed)
	}
}

func TestRevertSoleProviderMultipleCandidates(t *testing.T) {
	f := newSubstFixture()
	f.gateway.canisters[3] = &canister.Canister{ID: 3, DrugKey: "d1"}
	f.repo.servingDrug = []int64{3, 9}
	f.repo.skippedDetails = SkippedDetails{DetailIDs: []int64{7}, PackIDs: []int64{1}}

	result, err := f.svc.RevertSoleProviderSkips(context.Background(), 3, 12)
	if err != nil {
		t.Fatal(err)
	}
	if result.Reverted {
		t.Error("reverted although another canister serves the drug")
	}
	if len(f.repo.statusUpdates) != 0 {
		t.Error("detail statuses changed")
	}
}

func TestRevertSoleProviderFlipsDetails(t *testing.T) {
	f := newSubstFixture()
	f.gateway.canisters[3] = &canister.Canister{ID: 3, DrugKey: "d1", SystemID: 2}
	f.repo.servingDrug = []int64{3}
	f.repo.skippedDetails = SkippedDetails{DetailIDs: []int64{7}, PackIDs: []int64{1}}

	result, err := f.svc.RevertSoleProviderSkips(context.Background(), 3, 12)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Reverted {
		t.Fatal("expected revert for sole provider")
	}
	if f.repo.statusUpdates[7] != NotSkipped {
		t.Errorf("detail 7 status = %s, want NOT_SKIPPED", f.repo.statusUpdates[7])
	}
	if result.SystemID != 2 || result.DeviceID != 12 {
		t.Errorf("system/device = %d/%d, want 2/12", result.SystemID, result.DeviceID)
	}
}

func TestMarkSkippedDueToManual(t *testing.T) {
	f := newSubstFixture()

	if err := f.svc.MarkSkippedDueToManual(context.Background(), nil); err == nil {
		t.Error("expected error for empty analysis list")
	}
	if err := f.svc.MarkSkippedDueToManual(context.Background(), []int64{100, 101}); err != nil {
		t.Fatal(err)
	}
	for _, id := range []int64{100, 101} {
		if f.repo.analysisStatus[id] != SkippedDueToManual {
			t.Errorf("analysis %d status = %s, want SKIPPED_DUE_TO_MANUAL", id, f.repo.analysisStatus[id])
		}
	}
	if f.gateway.releases != 1 {
		t.Errorf("reservation cleanup runs = %d, want 1 after manual skip", f.gateway.releases)
	}
}
