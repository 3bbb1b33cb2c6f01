// Package database implements core.Store on PostgreSQL with pgx. Queries use
// explicit column lists; every method runs a single statement except
// RedeemInvite, which runs in one transaction.
package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/bootcamp/internal/config"
	"github.com/JonMunkholm/bootcamp/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store is the PostgreSQL implementation of core.Store.
type Store struct {
	pool *pgxpool.Pool
	db   DBTX
}

var _ core.Store = (*Store)(nil)

// New returns a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// Connect opens a pool with the configured limits and checks that the
// database answers.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates any missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// inTx runs fn in a transaction, committing when it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Postgres error codes mapped to core sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"

	inviteUseCountConstraint = "invite_codes_use_count_within_max"
)

// mapErr converts driver errors into core sentinels, naming the row.
func mapErr(err error, kind, key string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, key, core.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s %s: %w", kind, key, core.ErrDuplicate)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s %s: referenced row: %w", kind, key, core.ErrNotFound)
		case pgCheckViolation:
			if pgErr.ConstraintName == inviteUseCountConstraint {
				return fmt.Errorf("%s %s: %w", kind, key, &core.ValidationError{Fields: map[string]string{
					"maxUses": "maxUses must be at least the current use count",
				}})
			}
		}
	}
	return fmt.Errorf("%s %s: %w", kind, key, err)
}

// expectRow turns a zero-row UPDATE or DELETE into ErrNotFound.
func expectRow(tag pgconn.CommandTag, err error, kind, key string) error {
	if err != nil {
		return mapErr(err, kind, key)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, key, core.ErrNotFound)
	}
	return nil
}

// collect scans every row with scan. rows is closed.
func collect[T any](rows pgx.Rows, err error, scan func(pgx.Row) (T, error)) ([]T, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (T, error) {
		return scan(r)
	})
}

// insertID runs an INSERT ... RETURNING id and returns the new id.
func insertID(ctx context.Context, db DBTX, kind, key, query string, args ...interface{}) (string, error) {
	var id pgtype.UUID
	if err := db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", mapErr(err, kind, key)
	}
	return PgUUIDToString(id), nil
}
