package analysis

import (
	"context"
	"math"

	"github.com/fillsched/fillsched/internal/domain/canister"
	"github.com/fillsched/fillsched/internal/domain/tracker"
	"github.com/fillsched/fillsched/internal/platform/db"
)

// mockDetail is the demand-side view of one analysis detail.
type mockDetail struct {
	packID     int64
	batchID    int64
	canisterID int64
	quantity   float64
	status     DetailStatus
}

type replacePair struct{ oldID, newID int64 }

type mockRepo struct {
	pending map[int64]bool
	details []mockDetail

	analyses map[int64]*PackAnalysis
	nextID   int64
	inserted []*Detail

	skipGroups      []SkippedDrugGroup
	deletedAnalyses []int64
	deletedBatches  []int64
	findErr         error

	replacedPacks  []int64
	replaceCalls   []replacePair
	transferCalls  []replacePair
	skippedDetails SkippedDetails
	statusUpdates  map[int64]DetailStatus
	analysisStatus map[int64]DetailStatus
	packsStatus    []int64
	servingDrug    []int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		pending:        make(map[int64]bool),
		analyses:       make(map[int64]*PackAnalysis),
		statusUpdates:  make(map[int64]DetailStatus),
		analysisStatus: make(map[int64]DetailStatus),
	}
}

func (m *mockRepo) SumRequired(_ context.Context, canisterIDs, extraPackIDs []int64) (map[int64]int64, error) {
	wanted := idSet(canisterIDs)
	extra := idSet(extraPackIDs)
	sums := make(map[int64]int64)
	for _, d := range m.details {
		if !wanted[d.canisterID] || d.status != NotSkipped {
			continue
		}
		if !m.pending[d.packID] && !extra[d.packID] {
			continue
		}
		sums[d.canisterID] += int64(math.Floor(d.quantity))
	}
	return sums, nil
}

func (m *mockRepo) SumUsedByBatches(_ context.Context, batchIDs []int64) (map[int64]int64, error) {
	wanted := idSet(batchIDs)
	sums := make(map[int64]int64)
	for _, d := range m.details {
		if !wanted[d.batchID] {
			continue
		}
		sums[d.canisterID] += int64(math.Floor(d.quantity))
	}
	return sums, nil
}

func (m *mockRepo) InsertAnalysis(_ context.Context, a *PackAnalysis) error {
	m.nextID++
	a.ID = m.nextID
	m.analyses[a.ID] = a
	return nil
}

func (m *mockRepo) InsertDetails(_ context.Context, details []*Detail) error {
	m.inserted = append(m.inserted, details...)
	return nil
}

func (m *mockRepo) FindAnalysisID(_ context.Context, packID, batchID int64) (int64, error) {
	if m.findErr != nil {
		return 0, m.findErr
	}
	for id, a := range m.analyses {
		if a.PackID == packID && a.BatchID == batchID {
			return id, nil
		}
	}
	return 0, db.ErrNotFound
}

func (m *mockRepo) DeleteDetailsByAnalysis(_ context.Context, analysisIDs []int64) error {
	m.deletedAnalyses = append(m.deletedAnalyses, analysisIDs...)
	doomed := idSet(analysisIDs)
	kept := m.inserted[:0]
	for _, d := range m.inserted {
		if !doomed[d.AnalysisID] {
			kept = append(kept, d)
		}
	}
	m.inserted = kept
	return nil
}

func (m *mockRepo) DeleteByBatch(_ context.Context, batchID int64) error {
	m.deletedBatches = append(m.deletedBatches, batchID)
	return nil
}

func (m *mockRepo) ListSkippedDrugGroups(_ context.Context, _ int64) ([]SkippedDrugGroup, error) {
	return m.skipGroups, nil
}

func (m *mockRepo) ReplaceCanister(_ context.Context, oldID, newID, _ int64, _ Scope) ([]int64, error) {
	m.replaceCalls = append(m.replaceCalls, replacePair{oldID, newID})
	return m.replacedPacks, nil
}

func (m *mockRepo) ReplaceCanisterTransfers(_ context.Context, oldID, newID, _ int64) error {
	m.transferCalls = append(m.transferCalls, replacePair{oldID, newID})
	return nil
}

func (m *mockRepo) ListSkippedDetails(_ context.Context, _ int64) (SkippedDetails, error) {
	return m.skippedDetails, nil
}

func (m *mockRepo) UpdateDetailStatus(_ context.Context, detailIDs []int64, status DetailStatus) error {
	for _, id := range detailIDs {
		m.statusUpdates[id] = status
	}
	return nil
}

func (m *mockRepo) SetStatusByAnalysisIDs(_ context.Context, analysisIDs []int64, status DetailStatus) error {
	for _, id := range analysisIDs {
		m.analysisStatus[id] = status
	}
	return nil
}

func (m *mockRepo) ListPacksWithStatus(_ context.Context, _ DetailStatus) ([]int64, error) {
	return m.packsStatus, nil
}

func (m *mockRepo) ListCanistersServingDrug(_ context.Context, _ string, _ int64) ([]int64, error) {
	return m.servingDrug, nil
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// -- collaborators --

type fakeTx struct{ calls int }

func (f *fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type mockMfd struct{ deletedPacks []int64 }

func (m *mockMfd) ListAnalysisIDsForPacks(_ context.Context, _ []int64) ([]int64, error) {
	return nil, nil
}

func (m *mockMfd) DeleteForPacks(_ context.Context, packIDs []int64) error {
	m.deletedPacks = append(m.deletedPacks, packIDs...)
	return nil
}

type mockGateway struct {
	canisters    map[int64]*canister.Canister
	reserved     map[int64]bool
	lateReserved map[int64]bool // reserved by a concurrent writer after the first check
	latestReason map[int64]string
	swaps        []replacePair

	validateCalls int
	releases      int
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		canisters:    make(map[int64]*canister.Canister),
		reserved:     make(map[int64]bool),
		lateReserved: make(map[int64]bool),
		latestReason: make(map[int64]string),
	}
}

func (g *mockGateway) GetCanister(_ context.Context, id int64) (*canister.Canister, error) {
	c, ok := g.canisters[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return c, nil
}

func (g *mockGateway) ValidateNotReserved(_ context.Context, canisterIDs []int64) error {
	g.validateCalls++
	for _, id := range canisterIDs {
		if g.reserved[id] || (g.validateCalls > 1 && g.lateReserved[id]) {
			return db.ErrConflict
		}
	}
	return nil
}

func (g *mockGateway) ReleaseUnusedReservations(_ context.Context) (int64, error) {
	g.releases++
	return 0, nil
}

func (g *mockGateway) ReplaceReservation(_ context.Context, oldID, newID int64) error {
	g.swaps = append(g.swaps, replacePair{oldID, newID})
	return nil
}

func (g *mockGateway) LatestSkipReason(_ context.Context, canisterID int64) (string, error) {
	reason, ok := g.latestReason[canisterID]
	if !ok {
		return "", db.ErrNotFound
	}
	return reason, nil
}

type mockTracker struct{ entries []*tracker.Entry }

func (t *mockTracker) Record(_ context.Context, e *tracker.Entry) error {
	t.entries = append(t.entries, e)
	return nil
}

type mockNotifier struct{ refreshed []int64 }

func (n *mockNotifier) RefreshCanister(_ context.Context, _, _, canisterID int64) {
	n.refreshed = append(n.refreshed, canisterID)
}
