/*
Package postgres provides a PostgreSQL-backed implementation of breeding.Store.

PURPOSE:
  Opens a lib/pq connection pool and hands it to the shared SQL
  implementation in store/sqlstore. Use it when several server replicas
  share one database; pair it with lock.Redis so per-sow serialisation
  holds across replicas.

DIALECT:
  - $1, $2 placeholders
  - BIGSERIAL ids, DATE for reproductive dates, TIMESTAMPTZ for instants
  - Constraint errors classified by SQLSTATE (23505 unique, 23503 foreign key)

SEE ALSO:
  - store/sqlstore: Queries and schema
  - store/sqlite: Single-node alternative
*/
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/swinetrack/breeding-engine/store/sqlstore"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Dialect describes PostgreSQL to the shared SQL store.
var Dialect = &sqlstore.Dialect{
	Name:     "postgres",
	Numbered: true,
	Types: sqlstore.ColumnTypes{
		ID:        "BIGSERIAL PRIMARY KEY",
		Date:      "DATE",
		Timestamp: "TIMESTAMPTZ",
		Bool:      "BOOLEAN",
		Decimal:   "NUMERIC(12,3)",
	},
	IsUniqueViolation:     func(err error) bool { return hasCode(err, uniqueViolation) },
	IsForeignKeyViolation: func(err error) bool { return hasCode(err, foreignKeyViolation) },
}

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Store is a sqlstore.Store over PostgreSQL.
type Store struct {
	*sqlstore.Store
}

// Open connects to dsn, verifies the connection and migrates the schema.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := New(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an already open pool without migrating.
func New(db *sql.DB) *Store {
	return &Store{Store: sqlstore.New(db, Dialect)}
}

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
