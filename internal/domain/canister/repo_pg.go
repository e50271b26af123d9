package canister

import (
	"context"

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

const canisterCols = `id, drug_id, drug_key, available_quantity, active,
	device_id, location_number, quadrant, display_location, company_id, system_id`

func scanCanister(row pgx.Row) (*Canister, error) {
	var c Canister
	err := row.Scan(&c.ID, &c.DrugID, &c.DrugKey, &c.Available, &c.Active,
		&c.DeviceID, &c.LocationNumber, &c.Quadrant, &c.DisplayLocation,
		&c.CompanyID, &c.SystemID)
	return &c, err
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Canister, error) {
	c, err := scanCanister(r.conn(ctx).QueryRow(ctx,
		`SELECT `+canisterCols+` FROM canister WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err)
	}
	return c, nil
}

func (r *repoPG) ListByIDs(ctx context.Context, ids []int64) ([]*Canister, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+canisterCols+` FROM canister WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Canister
	for rows.Next() {
		c, err := scanCanister(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repoPG) ListReserved(ctx context.Context, canisterIDs []int64) ([]int64, error) {
	if len(canisterIDs) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT canister_id FROM reserved_canister WHERE canister_id = ANY($1)`, canisterIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *repoPG) ReplaceReservation(ctx context.Context, oldID, newID int64) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE reserved_canister SET canister_id = $2 WHERE canister_id = $1`, oldID, newID)
	return db.Classify(err)
}

func (r *repoPG) ListCanistersInUse(ctx context.Context, packStatuses []pack.PackStatus, batchStatuses []pack.BatchStatus) ([]int64, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT pad.canister_id
		FROM pack_analysis_details pad
		JOIN pack_analysis pa ON pa.id = pad.analysis_id
		JOIN pack p ON p.id = pa.pack_id
		JOIN batch b ON b.id = pa.batch_id
		WHERE pad.canister_id IS NOT NULL
		  AND p.status = ANY($1)
		  AND b.status = ANY($2)`, statusInts(packStatuses), batchStatusInts(batchStatuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *repoPG) DeleteReservationsNotIn(ctx context.Context, keep []int64) (int64, error) {
	var tag pgconn.CommandTag
	var err error
	if len(keep) == 0 {
		tag, err = r.conn(ctx).Exec(ctx, `DELETE FROM reserved_canister`)
	} else {
		tag, err = r.conn(ctx).Exec(ctx,
			`DELETE FROM reserved_canister WHERE NOT (canister_id = ANY($1))`, keep)
	}
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) LatestSkipReason(ctx context.Context, canisterID int64) (string, error) {
	var reason string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT reason FROM skipped_canister
		WHERE canister_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, canisterID).Scan(&reason)
	if err != nil {
		return "", db.Classify(err)
	}
	return reason, nil
}

func (r *repoPG) RecordSkip(ctx context.Context, canisterID int64, reason string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO skipped_canister (canister_id, reason) VALUES ($1, $2)`, canisterID, reason)
	return err
}

func scanIDs(rows pgx.Rows) ([]int64, error) {
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

func statusInts(in []pack.PackStatus) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		out[i] = int16(s)
	}
	return out
}

func batchStatusInts(in []pack.BatchStatus) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		out[i] = int16(s)
	}
	return out
}
