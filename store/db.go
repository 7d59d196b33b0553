package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store bundles every query the handlers need over one bun.DB.
type Store struct {
	db *bun.DB
}

// New wraps an existing bun.DB.
func New(db *bun.DB) *Store { return &Store{db: db} }

// DB exposes the underlying bun handle (migrations, jobs).
func (s *Store) DB() *bun.DB { return s.db }

// Open connects a pgx pool and layers bun on top of it. The pool is shared
// with the job queue, which speaks pgx natively.
func Open(ctx context.Context, databaseURL string) (*bun.DB, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("store: ping: %w", err)
	}
	sqldb := stdlib.OpenDBFromPool(pool)
	db := bun.NewDB(sqldb, pgdialect.New())
	return db, pool, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
