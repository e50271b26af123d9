package pack

import (
	"context"
	"time"

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

const packCols = `id, pack_display_id, order_no, batch_id, status, system_id, company_id, created_at, modified_at`

func scanPack(row pgx.Row) (*Pack, error) {
	var p Pack
	err := row.Scan(&p.ID, &p.DisplayID, &p.OrderNo, &p.BatchID, &p.Status,
		&p.SystemID, &p.CompanyID, &p.CreatedAt, &p.ModifiedAt)
	return &p, err
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Pack, error) {
	p, err := scanPack(r.conn(ctx).QueryRow(ctx, `SELECT `+packCols+` FROM pack WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err)
	}
	return p, nil
}

func (r *repoPG) ListPendingByBatch(ctx context.Context, batchID int64) ([]*Pack, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+packCols+` FROM pack
		WHERE batch_id = $1 AND status = $2
		ORDER BY order_no`, batchID, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packs []*Pack
	for rows.Next() {
		p, err := scanPack(rows)
		if err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	return packs, rows.Err()
}

func (r *repoPG) ListProgressFillingLeft(ctx context.Context) ([]int64, error) {
	// Queued PROGRESS packs that the robot has not touched yet: the left
	// join keeps only packs with zero slot transactions.
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT p.id
		FROM pack p
		JOIN pack_queue pq ON pq.pack_id = p.id
		LEFT JOIN slot_transaction st ON st.pack_id = p.id
		WHERE p.status = $1 AND st.id IS NULL`, StatusProgress)
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

func (r *repoPG) UpdateStatus(ctx context.Context, packIDs []int64, status PackStatus) error {
	if len(packIDs) == 0 {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE pack SET status = $1, modified_at = NOW()
		WHERE id = ANY($2)`, status, packIDs)
	return err
}

func (r *repoPG) GetBatch(ctx context.Context, batchID int64) (*Batch, error) {
	var b Batch
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, name, status, system_id, created_at
		FROM batch WHERE id = $1`, batchID).
		Scan(&b.ID, &b.Name, &b.Status, &b.SystemID, &b.CreatedAt)
	if err != nil {
		return nil, db.Classify(err)
	}
	return &b, nil
}

func (r *repoPG) MinAdminDate(ctx context.Context, key TemplateKey) (*time.Time, error) {
	var min *time.Time
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT MIN(hoa_date) FROM template_slot
		WHERE patient_id = $1 AND file_id = $2`, key.PatientID, key.FileID).Scan(&min)
	if err != nil {
		return nil, db.Classify(err)
	}
	return min, nil
}

func (r *repoPG) IsScheduled(ctx context.Context, key TemplateKey) (bool, error) {
	var scheduled bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM template_schedule
			WHERE patient_id = $1 AND file_id = $2 AND fill_start_date IS NOT NULL
		)`, key.PatientID, key.FileID).Scan(&scheduled)
	return scheduled, err
}
