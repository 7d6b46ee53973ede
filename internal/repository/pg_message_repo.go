package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/user-mail-queue/internal/domain"
)

type pgMessageRepository struct {
	pool *pgxpool.Pool
}

// NewPgMessageRepository returns a MessageRepository backed by PostgreSQL.
func NewPgMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &pgMessageRepository{pool: pool}
}

// ThreadForMembers looks the thread up by its canonical member key and
// creates it when missing. The unique key makes concurrent creation safe:
// the loser of the insert race re-reads the winner's row.
func (r *pgMessageRepository) ThreadForMembers(ctx context.Context, memberIDs []string) (*domain.Thread, error) {
	key, members := membersKey(memberIDs)
	if len(members) == 0 {
		return nil, fmt.Errorf("thread needs at least one member")
	}

	t, err := r.threadByKey(ctx, key)
	if err == nil {
		t.MemberIDs = members
		return t, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	id := uuid.New().String()
	tag, err := tx.Exec(ctx, `
		INSERT INTO message_threads (id, members_key, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (members_key) DO NOTHING`, id, key, now)
	if err != nil {
		return nil, fmt.Errorf("insert thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		t, err := r.threadByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		t.MemberIDs = members
		return t, nil
	}

	for _, m := range members {
		if _, err := tx.Exec(ctx, `
			INSERT INTO thread_members (thread_id, user_id) VALUES ($1, $2)`, id, m); err != nil {
			return nil, fmt.Errorf("insert thread member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit thread: %w", err)
	}

	return &domain.Thread{ID: id, MemberIDs: members, CreatedAt: now, UpdatedAt: now}, nil
}

func (r *pgMessageRepository) SaveMessage(ctx context.Context, m *domain.PrivateMessage) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO private_messages (id, owner_id, body, format, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.OwnerID, m.Body, m.Format, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert private message: %w", err)
	}
	return nil
}

func (r *pgMessageRepository) AddMessage(ctx context.Context, threadID, messageID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		INSERT INTO thread_messages (thread_id, message_id) VALUES ($1, $2)`,
		threadID, messageID); err != nil {
		return fmt.Errorf("add message to thread: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE message_threads SET updated_at = NOW() WHERE id = $1`, threadID); err != nil {
		return fmt.Errorf("touch thread: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit thread message: %w", err)
	}
	return nil
}

func (r *pgMessageRepository) threadByKey(ctx context.Context, key string) (*domain.Thread, error) {
	var t domain.Thread
	err := r.pool.QueryRow(ctx, `
		SELECT id, created_at, updated_at
		FROM message_threads WHERE members_key = $1`, key).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return &t, nil
}
