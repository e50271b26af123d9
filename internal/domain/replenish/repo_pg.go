package replenish

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fillsched/fillsched/internal/domain/analysis"
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

func (r *repoPG) ListDemand(ctx context.Context, q Query) ([]Item, error) {
	var sb strings.Builder
	args := []interface{}{
		q.BatchID,           // $1
		pack.StatusPending,  // $2
		pack.StatusProgress, // $3
		analysis.NotSkipped, // $4
		q.SystemID,          // $5
	}

	sb.WriteString(`
		SELECT c.id, c.drug_key, COALESCE(dr.name, ''), c.device_id,
		       c.location_number, c.quadrant, c.display_location,
		       SUM(FLOOR(pad.quantity))::bigint AS required,
		       c.available_quantity,
		       MIN(p.order_no) AS earliest_order_no,
		       COUNT(DISTINCT p.id) AS pack_count
		FROM pack_analysis_details pad
		JOIN pack_analysis pa ON pa.id = pad.analysis_id
		JOIN pack p ON p.id = pa.pack_id
		JOIN canister c ON c.id = pad.canister_id
		JOIN device dv ON dv.id = c.device_id AND dv.device_type = 'ROBOT'
		LEFT JOIN drug dr ON dr.drug_key = c.drug_key
		WHERE pa.batch_id = $1
		  AND (p.status = $2
		       OR (p.status = $3
		           AND EXISTS (SELECT 1 FROM pack_queue pq WHERE pq.pack_id = p.id)
		           AND NOT EXISTS (SELECT 1 FROM slot_transaction st WHERE st.pack_id = p.id)))
		  AND pad.status = $4
		  AND c.system_id = $5`)

	if len(q.DeviceIDs) > 0 {
		args = append(args, q.DeviceIDs)
		fmt.Fprintf(&sb, "\n\t\t  AND c.device_id = ANY($%d)", len(args))
	}
	if len(q.OnlyCanisters) > 0 {
		args = append(args, q.OnlyCanisters)
		fmt.Fprintf(&sb, "\n\t\t  AND c.id = ANY($%d)", len(args))
	}
	if len(q.ExcludeCanisters) > 0 {
		args = append(args, q.ExcludeCanisters)
		fmt.Fprintf(&sb, "\n\t\t  AND NOT (c.id = ANY($%d))", len(args))
	}

	sb.WriteString(`
		GROUP BY c.id, c.drug_key, dr.name, c.device_id, c.location_number,
		         c.quadrant, c.display_location, c.available_quantity`)
	if q.OrderedPacks {
		sb.WriteString("\n\t\tORDER BY MIN(p.order_no), c.device_id, c.quadrant")
	} else {
		sb.WriteString("\n\t\tORDER BY MIN(p.order_no)")
	}

	rows, err := r.conn(ctx).Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.CanisterID, &it.DrugKey, &it.DrugName, &it.DeviceID,
			&it.LocationNumber, &it.Quadrant, &it.DisplayLocation,
			&it.Required, &it.Available, &it.EarliestOrderNo, &it.PackCount); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
