// Package userstorepg stores user records in PostgreSQL through pgx.
package userstorepg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tyemirov/ridemapper/internal/userstore"
)

const (
	selectUserSQL = `
SELECT user_id, refresh_token
FROM users
WHERE user_id = $1
`
	upsertUserSQL = `
INSERT INTO users (user_id, refresh_token, created_at_unix, updated_at_unix)
VALUES ($1, $2, $3, $3)
ON CONFLICT (user_id) DO UPDATE
SET refresh_token = EXCLUDED.refresh_token,
    updated_at_unix = EXCLUDED.updated_at_unix
`
)

// Querier is the subset of *pgxpool.Pool the store needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Store persists user records in PostgreSQL.
type Store struct {
	pool Querier
	now  func() time.Time
}

var _ userstore.Store = (*Store)(nil)

// NewStore constructs a Postgres store over a pool.
func NewStore(pool Querier) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Get loads the record for userID.
func (store *Store) Get(ctx context.Context, userID string) (userstore.UserRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return userstore.UserRecord{}, fmt.Errorf("user_store.get.pgx: %w", userstore.ErrEmptyUserID)
	}
	var record userstore.UserRecord
	row := store.pool.QueryRow(ctx, selectUserSQL, userID)
	if scanErr := row.Scan(&record.UserID, &record.RefreshToken); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return userstore.UserRecord{}, fmt.Errorf("user_store.get.pgx: %w", userstore.ErrUserNotFound)
		}
		return userstore.UserRecord{}, fmt.Errorf("user_store.get.pgx: %w", scanErr)
	}
	return record, nil
}

// Put upserts the record keyed by user id.
func (store *Store) Put(ctx context.Context, record userstore.UserRecord) error {
	if err := userstore.ValidateRecord(record); err != nil {
		return fmt.Errorf("user_store.put.pgx: %w", err)
	}
	if _, err := store.pool.Exec(ctx, upsertUserSQL, record.UserID, record.RefreshToken, store.now().UTC().Unix()); err != nil {
		return fmt.Errorf("user_store.put.pgx: %w", err)
	}
	return nil
}
