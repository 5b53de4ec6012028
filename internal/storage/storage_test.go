package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"orientachat/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := Open("sqlite3", cfg)
	require.NoError(t, err)
	// every pooled connection to :memory: would see its own empty database
	db.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db, "sqlite3"))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestKVStoreGet(t *testing.T) {
	db, mock := newMock(t)
	store, err := NewKVStore(db, "sqlite3")
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT kv_value FROM kv_store WHERE kv_key = ?`)).
			WithArgs("visitor:1:cookieConsent").
			WillReturnRows(sqlmock.NewRows([]string{"kv_value"}).AddRow("true"))
		value, ok, err := store.Get(ctx, "visitor:1:cookieConsent")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "true", value)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT kv_value FROM kv_store`)).
			WithArgs("nope").
			WillReturnError(sql.ErrNoRows)
		value, ok, err := store.Get(ctx, "nope")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, value)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		boom := errors.New("disk full")
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT kv_value FROM kv_store`)).
			WithArgs("k").
			WillReturnError(boom)
		_, _, err := store.Get(ctx, "k")
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestKVStoreSetUsesDialectUpsert(t *testing.T) {
	cases := map[string]string{
		"sqlite3": `ON CONFLICT(kv_key) DO UPDATE`,
		"mysql":   `ON DUPLICATE KEY UPDATE`,
	}
	for driver, clause := range cases {
		t.Run(driver, func(t *testing.T) {
			db, mock := newMock(t)
			store, err := NewKVStore(db, driver)
			require.NoError(t, err)

			mock.ExpectExec(`INSERT INTO kv_store .*`+regexp.QuoteMeta(clause)).
				WithArgs("k", "v", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 1))
			require.NoError(t, store.Set(context.Background(), "k", "v"))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}

	_, err := NewKVStore(&sql.DB{}, "postgres")
	require.Error(t, err)
}

func TestKVStoreDeletePrefix(t *testing.T) {
	db, mock := newMock(t)
	store, _ := NewKVStore(db, "mysql")

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM kv_store WHERE kv_key LIKE ?`)).
		WithArgs("visitor:1:%").
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err := store.DeletePrefix(context.Background(), "visitor:1:")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackSave(t *testing.T) {
	db, mock := newMock(t)
	repo, err := NewFeedbackRepository(db)
	require.NoError(t, err)
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO feedback (id, visitor_id, body, created_at) VALUES (?, ?, ?, ?)`)).
		WithArgs(sqlmock.AnyArg(), "v1", "Ottimo servizio", fixed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	fb, err := repo.Save(context.Background(), "v1", "  Ottimo servizio  ")
	require.NoError(t, err)
	assert.Len(t, fb.ID, 26)
	assert.Equal(t, "Ottimo servizio", fb.Text)
	assert.Equal(t, fixed, fb.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = repo.Save(context.Background(), "v1", "   ")
	require.Error(t, err)
}

func TestSQLiteRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	store, err := NewKVStore(db, "sqlite3")
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "visitor:a:cookieConsent", "true"))
	require.NoError(t, store.Set(ctx, "visitor:a:cookieConsent", "false"))
	require.NoError(t, store.Set(ctx, "visitor:b:cookieConsent", "true"))

	value, ok, err := store.Get(ctx, "visitor:a:cookieConsent")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "false", value)

	n, err := store.DeletePrefix(ctx, "visitor:a:")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	_, ok, _ = store.Get(ctx, "visitor:b:cookieConsent")
	require.True(t, ok)

	repo, err := NewFeedbackRepository(db)
	require.NoError(t, err)
	_, err = repo.Save(ctx, "a", "bello")
	require.NoError(t, err)
	var body string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT body FROM feedback WHERE visitor_id = ?`, "a").Scan(&body))
	require.Equal(t, "bello", body)
}
