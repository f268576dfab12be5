package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swinetrack/breeding-engine/breeding"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Store) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, New(db)
}

func TestDialect_Rebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b IN ($2, $3)", Dialect.Rebind("a = ? AND b IN (?, ?)"))
}

func TestMigrate_UsesPostgresTypes(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS sows \( id BIGSERIAL PRIMARY KEY.*heat_date DATE NOT NULL.*created_at TIMESTAMPTZ NOT NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSow_NotFound(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, ear_tag, .* FROM sows WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetSow(context.Background(), 9)

	assert.True(t, breeding.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBoar_ReturnsID(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO boars .* RETURNING id`).
		WithArgs("B-1", "Duke", "", "active", "", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	b := &breeding.Boar{EarTag: "B-1", Name: "Duke", Status: breeding.BoarActive}
	require.NoError(t, store.CreateBoar(context.Background(), b))

	assert.Equal(t, int64(7), b.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBoar_UniqueViolation(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO boars`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "ux_boars_ear_tag"})

	err := store.CreateBoar(context.Background(), &breeding.Boar{EarTag: "B-1", Status: breeding.BoarActive})

	var conflict *breeding.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "boar", conflict.Entity)
	assert.Equal(t, "B-1", conflict.Value)
}

func TestCreateHeat_ForeignKeyViolation(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO heats`).
		WillReturnError(&pq.Error{Code: "23503"})

	err := store.CreateHeat(context.Background(), &breeding.Heat{SowID: 404, HeatDate: breeding.MustDate("2025-06-01")})

	assert.ErrorIs(t, err, breeding.ErrInvalidData)
}

func TestListHeats_BuildsFilter(t *testing.T) {
	// GIVEN: A filter on sow, two statuses, unserviced and a limit
	// WHEN: Heats are listed
	// THEN: Placeholders are numbered in order and rows scan back into Heat

	db, mock, store := setupMockDB(t)
	defer db.Close()

	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "sow_id", "heat_date", "heat_end_date", "intensity", "induced", "induction_protocol",
		"status", "notes", "created_by", "updated_by", "created_at", "updated_at",
	}).AddRow(int64(1), int64(4), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), nil, "high", false, "",
		"detected", "", "jdoe", "jdoe", now, now)

	mock.ExpectQuery(`FROM heats WHERE sow_id = \$1 AND status IN \(\$2, \$3\) AND NOT EXISTS .* ORDER BY heat_date DESC, id DESC LIMIT 1`).
		WithArgs(int64(4), "detected", "serviced").
		WillReturnRows(rows)

	heats, err := store.ListHeats(context.Background(), breeding.HeatFilter{
		SowID:      4,
		Statuses:   []breeding.HeatStatus{breeding.HeatDetected, breeding.HeatServiced},
		Unserviced: true,
		Limit:      1,
	})
	require.NoError(t, err)
	require.Len(t, heats, 1)
	assert.Equal(t, breeding.MustDate("2025-06-01"), heats[0].HeatDate)
	assert.Nil(t, heats[0].HeatEndDate)
	assert.Equal(t, breeding.IntensityHigh, heats[0].Intensity)
	assert.Equal(t, "jdoe", heats[0].CreatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE notifications SET is_read = \$1, read_at = \$2 WHERE is_read = \$3`).
		WithArgs(true, sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	var marked int
	err := store.WithTx(ctx, func(tx breeding.Repository) error {
		var err error
		marked, err = tx.MarkAllNotificationsRead(ctx, time.Now())
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, marked)

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = store.WithTx(ctx, func(breeding.Repository) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
