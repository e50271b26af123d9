package analysis

import (
	"context"
	"testing"
)

type fakePackLister struct{ fillingLeft []int64 }

func (f *fakePackLister) ListProgressFillingLeft(_ context.Context) ([]int64, error) {
	return f.fillingLeft, nil
}

func TestRequiredQuantitiesCountsProgressExtras(t *testing.T) {
	repo := newMockRepo()
	repo.pending[1] = true
	repo.details = []mockDetail{
		{packID: 1, batchID: 10, canisterID: 7, quantity: 6, status: NotSkipped},
		{packID: 2, batchID: 10, canisterID: 7, quantity: 7, status: NotSkipped},
	}

	svc := NewDemandService(repo, &fakePackLister{}, nil)
	sums, err := svc.RequiredQuantities(context.Background(), []int64{7}, []int64{2})
	if err != nil {
		t.Fatal(err)
	}
	if sums[7] != 13 {
		t.Errorf("demand for canister 7 = %d, want 13", sums[7])
	}
}

func TestRequiredQuantitiesIgnoresSkippedDetails(t *testing.T) {
	repo := newMockRepo()
	repo.pending[1] = true
	repo.details = []mockDetail{
		{packID: 1, batchID: 10, canisterID: 7, quantity: 6, status: NotSkipped},
		{packID: 2, batchID: 10, canisterID: 7, quantity: 7, status: Skipped},
	}

	svc := NewDemandService(repo, &fakePackLister{}, nil)
	sums, err := svc.RequiredQuantities(context.Background(), []int64{7}, []int64{2})
	if err != nil {
		t.Fatal(err)
	}
	if sums[7] != 6 {
		t.Errorf("demand for canister 7 = %d, want 6", sums[7])
	}
}

func TestRequiredQuantitiesFloorsFractions(t *testing.T) {
	repo := newMockRepo()
	repo.pending[1] = true
	repo.details = []mockDetail{
		{packID: 1, batchID: 10, canisterID: 3, quantity: 1.5, status: NotSkipped},
		{packID: 1, batchID: 10, canisterID: 3, quantity: 2.5, status: NotSkipped},
	}

	svc := NewDemandService(repo, &fakePackLister{}, nil)
	sums, err := svc.RequiredQuantities(context.Background(), []int64{3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sums[3] != 3 {
		t.Errorf("demand for canister 3 = %d, want 3 (floor per detail)", sums[3])
	}
}

func TestRequiredQuantitiesSparseResult(t *testing.T) {
	repo := newMockRepo()
	svc := NewDemandService(repo, &fakePackLister{}, nil)
	sums, err := svc.RequiredQuantities(context.Background(), []int64{3, 7}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 0 {
		t.Errorf("got %v, want empty map for canisters with no demand", sums)
	}
}

func TestRequiredQuantitiesEmptyCanisterList(t *testing.T) {
	svc := NewDemandService(newMockRepo(), &fakePackLister{}, nil)
	sums, err := svc.RequiredQuantities(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 0 {
		t.Errorf("got %v, want empty map", sums)
	}
}

func TestRequiredQuantitiesAutoResolvesProgressPacks(t *testing.T) {
	repo := newMockRepo()
	repo.pending[1] = true
	repo.details = []mockDetail{
		{packID: 1, batchID: 10, canisterID: 7, quantity: 6, status: NotSkipped},
		{packID: 2, batchID: 10, canisterID: 7, quantity: 7, status: NotSkipped},
		{packID: 3, batchID: 10, canisterID: 7, quantity: 4, status: NotSkipped},
	}

	svc := NewDemandService(repo, &fakePackLister{fillingLeft: []int64{2, 3}}, nil)
	sums, err := svc.RequiredQuantitiesAuto(context.Background(), []int64{7}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sums[7] != 17 {
		t.Errorf("demand for canister 7 = %d, want 17", sums[7])
	}
}

func TestRequiredQuantitiesAutoExcludesPacks(t *testing.T) {
	repo := newMockRepo()
	repo.pending[1] = true
	repo.details = []mockDetail{
		{packID: 1, batchID: 10, canisterID: 7, quantity: 6, status: NotSkipped},
		{packID: 2, batchID: 10, canisterID: 7, quantity: 7, status: NotSkipped},
		{packID: 3, batchID: 10, canisterID: 7, quantity: 4, status: NotSkipped},
	}

	svc := NewDemandService(repo, &fakePackLister{fillingLeft: []int64{2, 3}}, nil)
	sums, err := svc.RequiredQuantitiesAuto(context.Background(), []int64{7}, []int64{3})
	if err != nil {
		t.Fatal(err)
	}
	if sums[7] != 13 {
		t.Errorf("demand for canister 7 = %d, want 13", sums[7])
	}
}

func TestUsedQuantitiesIgnoresPackStatus(t *testing.T) {
	repo := newMockRepo()
	repo.details = []mockDetail{
		{packID: 1, batchID: 10, canisterID: 3, quantity: 5, status: NotSkipped},
		{packID: 2, batchID: 10, canisterID: 3, quantity: 2, status: Skipped},
		{packID: 3, batchID: 11, canisterID: 3, quantity: 9, status: NotSkipped},
	}

	svc := NewDemandService(repo, &fakePackLister{}, nil)
	sums, err := svc.UsedQuantities(context.Background(), []int64{10})
	if err != nil {
		t.Fatal(err)
	}
	if sums[3] != 7 {
		t.Errorf("used for canister 3 = %d, want 7", sums[3])
	}
}
