package mfd

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

func (r *repoPG) ListAnalysisIDsForPacks(ctx context.Context, packIDs []int64) ([]int64, error) {
	if len(packIDs) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id FROM mfd_analysis WHERE pack_id = ANY($1)`, packIDs)
	if err != nil {
		return nil, err
	}
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

func (r *repoPG) DeleteForPacks(ctx context.Context, packIDs []int64) error {
	analysisIDs, err := r.ListAnalysisIDsForPacks(ctx, packIDs)
	if err != nil {
		return err
	}
	if len(analysisIDs) == 0 {
		return nil
	}
	conn := r.conn(ctx)

	// Child rows first; foreign keys dictate the order.
	if _, err := conn.Exec(ctx,
		`DELETE FROM mfd_analysis_details WHERE analysis_id = ANY($1)`, analysisIDs); err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, `
		DELETE FROM mfd_cycle_history_comment
		WHERE cycle_history_id IN (
			SELECT id FROM mfd_cycle_history WHERE analysis_id = ANY($1)
		)`, analysisIDs); err != nil {
		return err
	}
	if _, err := conn.Exec(ctx,
		`DELETE FROM mfd_cycle_history WHERE analysis_id = ANY($1)`, analysisIDs); err != nil {
		return err
	}
	if _, err := conn.Exec(ctx,
		`DELETE FROM temp_mfd_filling WHERE analysis_id = ANY($1)`, analysisIDs); err != nil {
		return err
	}
	if _, err := conn.Exec(ctx,
		`DELETE FROM mfd_analysis WHERE id = ANY($1)`, analysisIDs); err != nil {
		return err
	}
	return nil
}
