package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

const writeTimeout = 30 * time.Second

// WriteClient wraps the shared pool for repository writes, bounding every statement with a timeout
type WriteClient struct {
	db *sqlx.DB
}

// NewWriteClient wraps an already opened pool
func NewWriteClient(db *sqlx.DB) *WriteClient {
	return &WriteClient{db: db}
}

// GetDB returns the underlying database connection
func (wc *WriteClient) GetDB() *sqlx.DB {
	return wc.db
}

// Exec executes a statement and returns the result
func (wc *WriteClient) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return wc.db.ExecContext(ctx, query, args...)
}

// Select runs a query and scans all rows into dest
func (wc *WriteClient) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return wc.db.SelectContext(ctx, dest, query, args...)
}

// Get runs a query and scans a single row into dest, mapping no rows to ErrNotFound
func (wc *WriteClient) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err := wc.db.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Close closes the database connection
func (wc *WriteClient) Close() error {
	return wc.db.Close()
}
