package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/invox/invox/internal/platform/db"
)

// Schema creates the backing table.
const Schema = `CREATE TABLE IF NOT EXISTS invox_kv (
	key text PRIMARY KEY,
	value text NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

const (
	selectSQL = `SELECT value FROM invox_kv WHERE key = $1`
	upsertSQL = `INSERT INTO invox_kv (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	deleteSQL = `DELETE FROM invox_kv WHERE key = $1`
	lockSQL   = `SELECT pg_advisory_xact_lock(hashtext($1))`
)

// DB is the subset of pgxpool.Pool used here.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Postgres stores values in the invox_kv table.
type Postgres struct {
	db DB
}

// NewPostgres wraps a pool.
func NewPostgres(pool DB) *Postgres {
	return &Postgres{db: pool}
}

// EnsureSchema creates the table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("platform/kv: ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	return get(ctx, p.db, key)
}

func get(ctx context.Context, q interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}, key string) (string, bool, error) {
	var val string
	err := q.QueryRow(ctx, selectSQL, key).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("platform/kv: select %s: %w", key, err)
	}
	return val, true, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	if _, err := p.db.Exec(ctx, upsertSQL, key, value); err != nil {
		return fmt.Errorf("platform/kv: upsert %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, deleteSQL, key); err != nil {
		return fmt.Errorf("platform/kv: delete %s: %w", key, err)
	}
	return nil
}

// Update serialises writers on key with a transaction-scoped advisory lock,
// which also covers keys that do not exist yet.
func (p *Postgres) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return db.WithTx(ctx, p.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockSQL, key); err != nil {
			return fmt.Errorf("platform/kv: lock %s: %w", key, err)
		}
		cur, ok, err := get(ctx, tx, key)
		if err != nil {
			return err
		}
		next, err := fn(cur, ok)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, upsertSQL, key, next); err != nil {
			return fmt.Errorf("platform/kv: upsert %s: %w", key, err)
		}
		return nil
	})
}
