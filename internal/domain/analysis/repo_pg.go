package analysis

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fillsched/fillsched/internal/domain/pack"
	"github.com/fillsched/fillsched/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// progressFillingLeft matches PROGRESS packs queued on the robot with no
// slot transactions yet.
const progressFillingLeft = `
	p.status = %d AND EXISTS (SELECT 1 FROM pack_queue pq WHERE pq.pack_id = p.id)
	AND NOT EXISTS (SELECT 1 FROM slot_transaction st WHERE st.pack_id = p.id)`

func eligiblePackClause() string {
	return fmt.Sprintf(`(p.status = %d OR (`+progressFillingLeft+`))`,
		pack.StatusPending, pack.StatusProgress)
}

func (r *repoPG) SumRequired(ctx context.Context, canisterIDs, extraPackIDs []int64) (map[int64]int64, error) {
	if len(canisterIDs) == 0 {
		return map[int64]int64{}, nil
	}
	if extraPackIDs == nil {
		extraPackIDs = []int64{}
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT pad.canister_id, SUM(FLOOR(pad.quantity))::bigint
		FROM pack_analysis_details pad
		JOIN pack_analysis pa ON pa.id = pad.analysis_id
		JOIN pack p ON p.id = pa.pack_id
		WHERE pad.canister_id = ANY($1)
		  AND pad.status = $2
		  AND (p.status = $3 OR p.id = ANY($4))
		GROUP BY pad.canister_id`,
		canisterIDs, NotSkipped, pack.StatusPending, extraPackIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSums(rows)
}

func (r *repoPG) SumUsedByBatches(ctx context.Context, batchIDs []int64) (map[int64]int64, error) {
	if len(batchIDs) == 0 {
		return map[int64]int64{}, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT pad.canister_id, SUM(FLOOR(pad.quantity))::bigint
		FROM pack_analysis_details pad
		JOIN pack_analysis pa ON pa.id = pad.analysis_id
		WHERE pa.batch_id = ANY($1) AND pad.canister_id IS NOT NULL
		GROUP BY pad.canister_id`, batchIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSums(rows)
}

func scanSums(rows pgx.Rows) (map[int64]int64, error) {
	sums := make(map[int64]int64)
	for rows.Next() {
		var canisterID, qty int64
		if err := rows.Scan(&canisterID, &qty); err != nil {
			return nil, err
		}
		sums[canisterID] = qty
	}
	return sums, rows.Err()
}

func (r *repoPG) InsertAnalysis(ctx context.Context, a *PackAnalysis) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO pack_analysis (pack_id, batch_id, manual_fill_required)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		a.PackID, a.BatchID, a.ManualFillRequired).Scan(&a.ID, &a.CreatedAt)
	return db.Classify(err)
}

func (r *repoPG) InsertDetails(ctx context.Context, details []*Detail) error {
	if len(details) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range details {
		batch.Queue(`
			INSERT INTO pack_analysis_details
				(analysis_id, slot_id, drug_key, quantity, canister_id, device_id,
				 location_number, quadrant, drop_number, config_id, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			d.AnalysisID, d.SlotID, d.DrugKey, d.Quantity, d.CanisterID, d.DeviceID,
			d.LocationNumber, d.Quadrant, d.DropNumber, d.ConfigID, d.Status)
	}
	br := r.conn(ctx).SendBatch(ctx, batch)
	defer br.Close()
	for range details {
		if _, err := br.Exec(); err != nil {
			return db.Classify(err)
		}
	}
	return nil
}

func (r *repoPG) FindAnalysisID(ctx context.Context, packID, batchID int64) (int64, error) {
	var id int64
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id FROM pack_analysis WHERE pack_id = $1 AND batch_id = $2`,
		packID, batchID).Scan(&id)
	if err != nil {
		return 0, db.Classify(err)
	}
	return id, nil
}

func (r *repoPG) DeleteDetailsByAnalysis(ctx context.Context, analysisIDs []int64) error {
	if len(analysisIDs) == 0 {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM pack_analysis_details WHERE analysis_id = ANY($1)`, analysisIDs)
	return err
}

func (r *repoPG) DeleteByBatch(ctx context.Context, batchID int64) error {
	conn := r.conn(ctx)
	if _, err := conn.Exec(ctx, `
		DELETE FROM pack_analysis_details
		WHERE analysis_id IN (SELECT id FROM pack_analysis WHERE batch_id = $1)`, batchID); err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, `DELETE FROM pack_analysis WHERE batch_id = $1`, batchID); err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, `DELETE FROM batch_hash WHERE batch_id = $1`, batchID); err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, `DELETE FROM canister_transfer WHERE batch_id = $1`, batchID); err != nil {
		return err
	}
	return nil
}

func (r *repoPG) ListSkippedDrugGroups(ctx context.Context, batchID int64) ([]SkippedDrugGroup, error) {
	// A (pack, drug) group is re-seedable as SKIPPED when none of its
	// details is NOT_SKIPPED and exactly one canister serves it.
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT pa.pack_id, pad.drug_key,
		       MIN(pad.canister_id) AS canister_id,
		       ARRAY_AGG(DISTINCT pad.slot_id) AS slot_ids
		FROM pack_analysis_details pad
		JOIN pack_analysis pa ON pa.id = pad.analysis_id
		JOIN pack p ON p.id = pa.pack_id
		WHERE pa.batch_id = $1 AND p.status = $2 AND pad.canister_id IS NOT NULL
		GROUP BY pa.pack_id, pad.drug_key
		HAVING COUNT(*) FILTER (WHERE pad.status = $3) = 0
		   AND COUNT(DISTINCT pad.canister_id) = 1`,
		batchID, pack.StatusPending, NotSkipped)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []SkippedDrugGroup
	for rows.Next() {
		var g SkippedDrugGroup
		if err := rows.Scan(&g.PackID, &g.DrugKey, &g.CanisterID, &g.SlotIDs); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *repoPG) ReplaceCanister(ctx context.Context, oldID, newID, batchID int64, scope Scope) ([]int64, error) {
	scopeClause := `pa.batch_id = $2`
	if scope == ScopePackQueue {
		scopeClause = `EXISTS (SELECT 1 FROM pack_queue pq WHERE pq.pack_id = p.id)`
	}
	eligible := fmt.Sprintf(`
		SELECT DISTINCT pa.pack_id
		FROM pack_analysis_details pad
		JOIN pack_analysis pa ON pa.id = pad.analysis_id
		JOIN pack p ON p.id = pa.pack_id
		WHERE pad.canister_id = $1 AND %s AND %s`, scopeClause, eligiblePackClause())

	rows, err := r.conn(ctx).Query(ctx, eligible, oldID, batchID)
	if err != nil {
		return nil, err
	}
	packIDs, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}
	if len(packIDs) == 0 {
		return nil, nil
	}

	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE pack_analysis_details pad SET canister_id = $2
		FROM pack_analysis pa
		WHERE pa.id = pad.analysis_id AND pad.canister_id = $1 AND pa.pack_id = ANY($3)`,
		oldID, newID, packIDs)
	if err != nil {
		return nil, db.Classify(err)
	}
	return packIDs, nil
}

func (r *repoPG) ReplaceCanisterTransfers(ctx context.Context, oldID, newID, batchID int64) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE canister_transfer SET canister_id = $2
		WHERE canister_id = $1 AND batch_id = $3`, oldID, newID, batchID)
	return db.Classify(err)
}

func (r *repoPG) ListSkippedDetails(ctx context.Context, canisterID int64) (SkippedDetails, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT pad.id, pa.pack_id, pa.batch_id
		FROM pack_analysis_details pad
		JOIN pack_analysis pa ON pa.id = pad.analysis_id
		JOIN pack p ON p.id = pa.pack_id
		WHERE pad.canister_id = $1 AND pad.status = $2 AND p.status = $3`,
		canisterID, Skipped, pack.StatusPending)
	if err != nil {
		return SkippedDetails{}, err
	}
	defer rows.Close()

	var out SkippedDetails
	seen := make(map[int64]bool)
	for rows.Next() {
		var detailID, packID, batchID int64
		if err := rows.Scan(&detailID, &packID, &batchID); err != nil {
			return SkippedDetails{}, err
		}
		out.DetailIDs = append(out.DetailIDs, detailID)
		if !seen[packID] {
			seen[packID] = true
			out.PackIDs = append(out.PackIDs, packID)
		}
		out.BatchID = batchID
	}
	return out, rows.Err()
}

func (r *repoPG) UpdateDetailStatus(ctx context.Context, detailIDs []int64, status DetailStatus) error {
	if len(detailIDs) == 0 {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE pack_analysis_details SET status = $1 WHERE id = ANY($2)`, status, detailIDs)
	return err
}

func (r *repoPG) SetStatusByAnalysisIDs(ctx context.Context, analysisIDs []int64, status DetailStatus) error {
	if len(analysisIDs) == 0 {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE pack_analysis_details SET status = $1 WHERE analysis_id = ANY($2)`, status, analysisIDs)
	return err
}

func (r *repoPG) ListPacksWithStatus(ctx context.Context, status DetailStatus) ([]int64, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT pa.pack_id
		FROM pack_analysis_details pad
		JOIN pack_analysis pa ON pa.id = pad.analysis_id
		WHERE pad.status = $1`, status)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func (r *repoPG) ListCanistersServingDrug(ctx context.Context, drugKey string, deviceID int64) ([]int64, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT c.id
		FROM canister c
		WHERE c.drug_key = $1 AND c.device_id = $2 AND c.active
		  AND (
			EXISTS (
				SELECT 1 FROM pack_analysis_details pad
				JOIN pack_analysis pa ON pa.id = pad.analysis_id
				JOIN pack p ON p.id = pa.pack_id
				WHERE pad.canister_id = c.id AND p.status = $3
			)
			OR EXISTS (
				SELECT 1 FROM skipped_canister sc WHERE sc.canister_id = c.id
			)
		  )`, drugKey, deviceID, pack.StatusPending)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
