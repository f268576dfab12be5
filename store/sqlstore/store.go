/*
Package sqlstore implements breeding.Store on database/sql.

PURPOSE:
  One implementation of every query, shared by store/sqlite and
  store/postgres. The drivers differ only in column types, placeholder
  style and how they report constraint violations; those differences live
  in Dialect.

STRUCTURE:
  Store     Owns *sql.DB, runs the schema, opens transactions
  repo      breeding.Repository over a querier (either *sql.DB or *sql.Tx)

  Store embeds a repo bound to the pool, so reads outside a transaction
  and reads inside WithTx go through exactly the same code.

DATES:
  Reproductive dates are stored as DATE (PostgreSQL) or TEXT "YYYY-MM-DD"
  (SQLite). breeding.Date implements driver.Valuer and sql.Scanner for both.
  Audit and notification instants are stored in UTC.

ERRORS:
  sql.ErrNoRows     -> *breeding.NotFoundError
  unique violation  -> *breeding.ConflictError
  foreign key       -> *breeding.InvalidDataError

SEE ALSO:
  - breeding/store.go: Interface definitions and list ordering contract
  - schema.go: Tables and indexes
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/swinetrack/breeding-engine/breeding"
)

// =============================================================================
// DIALECT
// =============================================================================

// Dialect captures what differs between SQL backends.
type Dialect struct {
	Name string
	// Numbered selects $1, $2 placeholders instead of ?.
	Numbered bool
	Types    ColumnTypes
	// IsUniqueViolation and IsForeignKeyViolation classify driver errors.
	IsUniqueViolation     func(error) bool
	IsForeignKeyViolation func(error) bool
}

// ColumnTypes are substituted into the schema template.
type ColumnTypes struct {
	ID        string
	Date      string
	Timestamp string
	Bool      string
	Decimal   string
}

// Rebind rewrites ? placeholders for the dialect.
func (d *Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// STORE
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements breeding.Store.
type Store struct {
	repo
	db *sql.DB
}

var _ breeding.Store = (*Store)(nil)

// New wraps an open database. Call Migrate before first use.
func New(db *sql.DB, d *Dialect) *Store {
	return &Store{repo: repo{q: db, d: d}, db: db}
}

// DB exposes the pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.schema()); err != nil {
		return fmt.Errorf("failed to migrate %s schema: %w", s.d.Name, err)
	}
	return nil
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(breeding.Repository) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&repo{q: sqlTx, d: s.d}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// REPO HELPERS
// =============================================================================

type repo struct {
	q querier
	d *Dialect
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *repo) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, r.d.Rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id.
func (r *repo) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := r.q.QueryRowContext(ctx, r.d.Rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}

// affectOne runs an UPDATE or DELETE that must touch exactly one row.
func (r *repo) affectOne(ctx context.Context, entity string, id int64, query string, args ...any) error {
	res, err := r.exec(ctx, query, args...)
	if err != nil {
		return r.writeErr(err, entity, "", "")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return breeding.NotFound(entity, id)
	}
	return nil
}

func getOne[T any](ctx context.Context, r *repo, entity string, id int64, query string, scan func(rowScanner) (T, error)) (*T, error) {
	v, err := scan(r.q.QueryRowContext(ctx, r.d.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, breeding.NotFound(entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %d: %w", entity, id, err)
	}
	return &v, nil
}

func list[T any](ctx context.Context, r *repo, entity, query string, args []any, scan func(rowScanner) (T, error)) ([]T, error) {
	rows, err := r.q.QueryContext(ctx, r.d.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", entity, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", entity, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// writeErr maps driver constraint errors onto breeding errors.
func (r *repo) writeErr(err error, entity, field, value string) error {
	switch {
	case err == nil:
		return nil
	case r.d.IsUniqueViolation != nil && r.d.IsUniqueViolation(err):
		if field == "" {
			field = "ear_tag"
		}
		return &breeding.ConflictError{Entity: entity, Field: field, Value: value}
	case r.d.IsForeignKeyViolation != nil && r.d.IsForeignKeyViolation(err):
		return &breeding.InvalidDataError{Reason: fmt.Sprintf("%s references a record that does not exist or is still referenced", entity)}
	}
	return fmt.Errorf("failed to write %s: %w", entity, err)
}

// =============================================================================
// QUERY BUILDING
// =============================================================================

type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func limitClause(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", n)
}

// =============================================================================
// NULLABLE COLUMNS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func optInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func optID(p *int64) any {
	if p == nil || *p == 0 {
		return nil
	}
	return *p
}

func optBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func optDate(d *breeding.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func boolPtr(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	v := n.Bool
	return &v
}

func datePtr(d breeding.Date) *breeding.Date {
	if d.IsZero() {
		return nil
	}
	return &d
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}
