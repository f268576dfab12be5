/*
Package sqlite provides a SQLite-backed implementation of breeding.Store.

PURPOSE:
  Opens a SQLite database with mattn/go-sqlite3 and hands it to the shared
  SQL implementation in store/sqlstore. This package only owns what is
  SQLite specific: the connection string, column types and constraint
  error codes.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

CONCURRENCY:
  The pool is capped at one connection. SQLite allows a single writer and
  ":memory:" databases are per connection, so a larger pool would either
  contend on the write lock or see empty databases. Per-sow serialisation
  is the Coordinator's Locker, not the database.

USAGE:
  store, err := sqlite.New("./data/breeding.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  coord := breeding.NewCoordinator(store, breeding.WithLocker(lock.NewLocal()))

MIGRATION:
  Schema is auto-migrated on New(). Statements are idempotent
  (CREATE ... IF NOT EXISTS).

SEE ALSO:
  - store/sqlstore: Queries and schema
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/swinetrack/breeding-engine/store/sqlstore"
)

// Dialect describes SQLite to the shared SQL store.
var Dialect = &sqlstore.Dialect{
	Name: "sqlite3",
	Types: sqlstore.ColumnTypes{
		ID:        "INTEGER PRIMARY KEY AUTOINCREMENT",
		Date:      "TEXT",
		Timestamp: "TIMESTAMP",
		Bool:      "BOOLEAN",
		Decimal:   "TEXT",
	},
	IsUniqueViolation:     isUniqueConstraintError,
	IsForeignKeyViolation: isForeignKeyError,
}

// Store is a sqlstore.Store over SQLite.
type Store struct {
	*sqlstore.Store
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{Store: sqlstore.New(db, Dialect)}
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
