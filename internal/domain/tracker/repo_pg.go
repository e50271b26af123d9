package tracker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
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

func (r *repoPG) Record(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	params, err := json.Marshal(e.Params)
	if err != nil {
		return fmt.Errorf("marshal tracker params: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO batch_change_tracker (id, batch_id, user_id, action, params, packs_affected)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.BatchID, e.UserID, e.Action, params, e.PacksAffected)
	return err
}

func (r *repoPG) ListByBatch(ctx context.Context, batchID int64) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, batch_id, user_id, action, params, packs_affected, created_at
		FROM batch_change_tracker
		WHERE batch_id = $1
		ORDER BY created_at`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var params []byte
		if err := rows.Scan(&e.ID, &e.BatchID, &e.UserID, &e.Action, &params, &e.PacksAffected, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &e.Params); err != nil {
				return nil, fmt.Errorf("unmarshal tracker params: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
