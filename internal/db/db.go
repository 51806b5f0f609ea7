package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"
)

// DB wraps the sql.DB for connection management
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

type ctxKey string

const ctxTx ctxKey = "tx"

// New creates a new DB connection. Passing a nil logger uses slog.Default.
// Foreign keys are enabled on every pooled connection via the DSN.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := sql.Open("sqlite", dsn+sep+"_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return &DB{conn: conn, logger: logger}, nil
}

// Close closes the DB connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Exec executes a query, joining a transaction when the context carries one
func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if tx, ok := ctx.Value(ctxTx).(*sql.Tx); ok {
		return tx.ExecContext(ctx, query, args...)
	}
	return db.conn.ExecContext(ctx, query, args...)
}

// QueryRow executes a query that is expected to return at most one row
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	if tx, ok := ctx.Value(ctxTx).(*sql.Tx); ok {
		return tx.QueryRowContext(ctx, query, args...)
	}
	return db.conn.QueryRowContext(ctx, query, args...)
}

// QueryRows executes a query returning multiple rows
func (db *DB) QueryRows(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if tx, ok := ctx.Value(ctxTx).(*sql.Tx); ok {
		return tx.QueryContext(ctx, query, args...)
	}
	return db.conn.QueryContext(ctx, query, args...)
}

// InTx runs fn inside a transaction. Queries made with the context passed to
// fn join the transaction; the transaction commits when fn returns nil and
// rolls back otherwise. Nested calls reuse the outer transaction.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(ctxTx).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	if err := fn(context.WithValue(ctx, ctxTx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("rollback failed", "err", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

// GetConn returns the underlying sql.DB
func (db *DB) GetConn() *sql.DB {
	return db.conn
}
