package replenish

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fillsched/fillsched/internal/domain/pack"
	"github.com/fillsched/fillsched/internal/platform/db"
)

type mockRepo struct {
	items []Item
	got   Query
	err   error
}

func (m *mockRepo) ListDemand(_ context.Context, q Query) ([]Item, error) {
	m.got = q
	return m.items, m.err
}

type mockBatches struct {
	batches map[int64]*pack.Batch
}

func (m *mockBatches) GetBatch(_ context.Context, batchID int64) (*pack.Batch, error) {
	b, ok := m.batches[batchID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return b, nil
}

func newService(repo *mockRepo, batches map[int64]*pack.Batch) *Service {
	return NewService(repo, &mockBatches{batches: batches}, nil, zerolog.Nop())
}

func TestPlanUnknownBatch(t *testing.T) {
	svc := newService(&mockRepo{}, nil)
	_, err := svc.Plan(context.Background(), Query{BatchID: 99})
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPlanFinishedBatch(t *testing.T) {
	batches := map[int64]*pack.Batch{5: {ID: 5, Status: pack.BatchDone}}
	svc := newService(&mockRepo{}, batches)
	_, err := svc.Plan(context.Background(), Query{BatchID: 5})
	if !errors.Is(err, db.ErrPrecondition) {
		t.Fatalf("want ErrPrecondition for done batch, got %v", err)
	}
}

func TestPlanNoDemand(t *testing.T) {
	batches := map[int64]*pack.Batch{5: {ID: 5, Status: pack.BatchImported}}
	svc := newService(&mockRepo{}, batches)
	plan, err := svc.Plan(context.Background(), Query{BatchID: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 0 {
		t.Errorf("got %d items, want empty plan", len(plan))
	}
}

func TestPlanComputesReplenishAmounts(t *testing.T) {
	repo := &mockRepo{items: []Item{
		{CanisterID: 7, Required: 13, Available: 10},
		{CanisterID: 8, Required: 4, Available: 9},
		{CanisterID: 9, Required: 2, Available: -3},
	}}
	batches := map[int64]*pack.Batch{5: {ID: 5, Status: pack.BatchImported, SystemID: 2}}
	svc := newService(repo, batches)

	plan, err := svc.Plan(context.Background(), Query{BatchID: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 3 {
		t.Fatalf("got %d items, want 3", len(plan))
	}
	if plan[0].Replenish != 3 {
		t.Errorf("canister 7 replenish = %d, want 3", plan[0].Replenish)
	}
	if plan[1].Replenish != 0 {
		t.Errorf("canister 8 replenish = %d, want 0 (surplus)", plan[1].Replenish)
	}
	if plan[2].Replenish != 5 || plan[2].DisplayAvailable != 0 {
		t.Errorf("canister 9 replenish/display = %d/%d, want 5/0",
			plan[2].Replenish, plan[2].DisplayAvailable)
	}
}

func TestPlanMiniBatchKeepsShortCanistersOnly(t *testing.T) {
	repo := &mockRepo{items: []Item{
		{CanisterID: 7, Required: 13, Available: 10},
		{CanisterID: 8, Required: 4, Available: 9},
	}}
	batches := map[int64]*pack.Batch{5: {ID: 5, Status: pack.BatchImported}}
	svc := newService(repo, batches)

	plan, err := svc.Plan(context.Background(), Query{BatchID: 5, MiniBatch: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 1 || plan[0].CanisterID != 7 {
		t.Fatalf("mini-batch plan = %v, want only canister 7", plan)
	}
}

func TestPlanDefaultsSystemFromBatch(t *testing.T) {
	repo := &mockRepo{}
	batches := map[int64]*pack.Batch{5: {ID: 5, Status: pack.BatchImported, SystemID: 2}}
	svc := newService(repo, batches)

	if _, err := svc.Plan(context.Background(), Query{BatchID: 5}); err != nil {
		t.Fatal(err)
	}
	if repo.got.SystemID != 2 {
		t.Errorf("system id passed to repo = %d, want 2 (from batch)", repo.got.SystemID)
	}
}
