// Package testutil provides shared fixtures for tests that need a record
// table: a migrated SQLite database and a fluent record builder.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Veraticus/chargedesk/internal/model"
	"github.com/Veraticus/chargedesk/internal/service"
	"github.com/Veraticus/chargedesk/internal/storage"
)

// TestDB is a migrated SQLite database that is closed when the test ends.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a database file in the test's temp dir and migrates it.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	cache := db.Table("records_cache")
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "desk.db"))
	require.NoError(t, err, "failed to create test database")
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()), "failed to run migrations")

	return &TestDB{Storage: store, t: t}
}

// Table returns a named table in the database.
func (db *TestDB) Table(name string) *storage.SQLiteTable {
	return db.Storage.Table(name)
}

// Seed writes records to table under a header, in order. loc is used for
// timestamps; nil means UTC.
func Seed(t *testing.T, table service.Table, loc *time.Location, records ...model.Record) {
	t.Helper()

	ctx := context.Background()
	layout := model.NewLayout(nil, loc)
	sheet, err := table.ReadAll(ctx)
	require.NoError(t, err)
	if len(sheet.Header) == 0 {
		require.NoError(t, table.Append(ctx, layout.Header()))
	}
	for _, rec := range records {
		require.NoError(t, table.Append(ctx, layout.Encode(rec)), "failed to seed record %s", rec.ID)
	}
}
