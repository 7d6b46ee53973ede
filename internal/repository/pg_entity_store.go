package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/user-mail-queue/internal/domain"
)

type pgEntityStore struct {
	pool *pgxpool.Pool
}

// NewPgEntityStore returns an EntityStore backed by PostgreSQL.
func NewPgEntityStore(pool *pgxpool.Pool) EntityStore {
	return &pgEntityStore{pool: pool}
}

func (s *pgEntityStore) LoadUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, mail, langcode
		FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	return u, nil
}

func (s *pgEntityStore) LoadUsers(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	result := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, mail, langcode
		FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		result[u.ID] = u
	}
	return result, rows.Err()
}

func (s *pgEntityStore) LoadMailContent(ctx context.Context, id string) (*domain.MailContent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, kind, subject, message, reply_to, owner_id, created_at
		FROM mail_content WHERE id = $1`, id)

	var c domain.MailContent
	err := row.Scan(&c.ID, &c.Kind, &c.Subject, &c.Message, &c.ReplyTo, &c.OwnerID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load mail content %s: %w", id, err)
	}
	return &c, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Langcode); err != nil {
		return nil, err
	}
	return &u, nil
}
