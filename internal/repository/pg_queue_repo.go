package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/user-mail-queue/internal/domain"
	"github.com/notifyhub/user-mail-queue/internal/queue"
)

type pgQueueRepository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// PgQueueRepository is both the queue table and the batch counter store.
type PgQueueRepository interface {
	QueueRepository
	BatchCounter
}

// NewPgQueueRepository returns a QueueRepository backed by PostgreSQL.
func NewPgQueueRepository(pool *pgxpool.Pool) PgQueueRepository {
	return &pgQueueRepository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// CountMatching counts rows of queueName whose payload contains both
// substrings. Operands are LIKE-escaped, so the match is a plain substring
// test rather than a structured lookup.
func (r *pgQueueRepository) CountMatching(ctx context.Context, queueName, substr1, substr2 string) (int, error) {
	q := r.sb.
		Select("COUNT(*)").
		From("queue").
		Where(sq.Eq{"name": queueName}).
		Where(sq.Like{"data": containsPattern(substr1)}).
		Where(sq.Like{"data": containsPattern(substr2)})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build queue count: %w", err)
	}

	var n int
	if err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queue items: %w", err)
	}
	return n, nil
}

// EnqueueBatch inserts all payloads, and the progress record when given, in
// a single transaction.
func (r *pgQueueRepository) EnqueueBatch(ctx context.Context, queueName string, progress *domain.BatchProgress, payloads [][]byte) error {
	if len(payloads) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if progress != nil {
		q := r.sb.
			Insert("batch_progress").
			Columns("batch_id", "mail_content_id", "total", "remaining", "created_at", "updated_at").
			Values(progress.BatchID, progress.MailContentID, progress.Total, progress.Remaining, progress.CreatedAt, progress.CreatedAt)
		sqlStr, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build batch progress insert: %w", err)
		}
		if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("insert batch progress: %w", err)
		}
	}

	ins := r.sb.Insert("queue").Columns("name", "data", "created")
	now := time.Now().UTC()
	for _, p := range payloads {
		ins = ins.Values(queueName, string(p), now)
	}
	sqlStr, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build queue insert: %w", err)
	}
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert queue items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit queue items: %w", err)
	}
	return nil
}

// Claim leases up to limit unleased rows, oldest first. SKIP LOCKED lets
// several pollers claim concurrently without handing out the same row.
func (r *pgQueueRepository) Claim(ctx context.Context, queueName string, limit int, lease time.Duration) ([]queue.Item, error) {
	if limit <= 0 {
		limit = 10
	}

	q := r.sb.
		Update("queue").
		Set("expire", sq.Expr("NOW() + make_interval(secs => ?)", lease.Seconds())).
		Where(sq.Expr(`item_id IN (
			SELECT item_id FROM queue
			WHERE name = ? AND expire IS NULL
			ORDER BY created ASC, item_id ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED)`, queueName, limit)).
		Suffix("RETURNING item_id, name, data, created, expire")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build queue claim: %w", err)
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("claim queue items: %w", err)
	}
	defer rows.Close()

	items := make([]queue.Item, 0, limit)
	for rows.Next() {
		var it queue.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Data, &it.Created, &it.Expire); err != nil {
			return nil, fmt.Errorf("scan queue row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue rows: %w", err)
	}
	return items, nil
}

func (r *pgQueueRepository) Delete(ctx context.Context, id int64) error {
	sqlStr, args, err := r.sb.Delete("queue").Where(sq.Eq{"item_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build queue delete: %w", err)
	}
	if _, err := r.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}
	return nil
}

// ReleaseExpired clears leases that ran out, making the rows claimable again.
func (r *pgQueueRepository) ReleaseExpired(ctx context.Context, queueName string) (int, error) {
	q := r.sb.
		Update("queue").
		Set("expire", nil).
		Where(sq.Eq{"name": queueName}).
		Where(sq.Expr("expire < NOW()"))

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build lease release: %w", err)
	}
	tag, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("release expired leases: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Decrement may go below zero when an item is delivered twice; only the
// transition to exactly zero marks the last item.
func (r *pgQueueRepository) Decrement(ctx context.Context, batchID string) (int, error) {
	q := r.sb.
		Update("batch_progress").
		Set("remaining", sq.Expr("remaining - 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"batch_id": batchID}).
		Suffix("RETURNING remaining")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build batch decrement: %w", err)
	}

	var remaining int
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("decrement batch %s: %w", batchID, err)
	}
	return remaining, nil
}
