package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/chargedesk/internal/common"
	"github.com/Veraticus/chargedesk/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func seedTable(t *testing.T, table *SQLiteTable, rows ...[]string) {
	t.Helper()
	for _, row := range rows {
		require.NoError(t, table.Append(context.Background(), row))
	}
}

func TestSQLiteTable_ReadAllEmpty(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	sheet, err := store.Table("records").ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sheet.Header)
	assert.Empty(t, sheet.Rows)
}

func TestSQLiteTable_AppendKeepsOrder(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	table := store.Table("records")
	seedTable(t, table,
		[]string{"Record_ID", "Status"},
		[]string{"A1", "Pending"},
		[]string{"A2", "Charged"},
		[]string{"A3", "Declined"},
	)

	sheet, err := table.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Record_ID", "Status"}, sheet.Header)
	assert.Equal(t, [][]string{
		{"A1", "Pending"},
		{"A2", "Charged"},
		{"A3", "Declined"},
	}, sheet.Rows)

	count, err := table.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSQLiteTable_TablesAreIsolated(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	seedTable(t, store.Table("records"), []string{"Record_ID"}, []string{"A1"})
	seedTable(t, store.Table("users"), []string{"ID"}, []string{"u1"}, []string{"u2"})

	records, err := store.Table("records").ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records.Rows, 1)

	users, err := store.Table("users").ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, users.Rows, 2)
}

func TestSQLiteTable_UpdateAndDeleteByPosition(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	table := store.Table("records")
	seedTable(t, table,
		[]string{"Record_ID", "Status"},
		[]string{"A1", "Pending"},
		[]string{"A2", "Pending"},
		[]string{"A3", "Pending"},
	)

	// Position 3 is the second data row.
	require.NoError(t, table.Update(ctx, 3, []string{"A2", "Charged"}))
	require.NoError(t, table.Delete(ctx, 2))

	sheet, err := table.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"A2", "Charged"},
		{"A3", "Pending"},
	}, sheet.Rows)

	// Rows below a deleted row shift up by one.
	require.NoError(t, table.Update(ctx, 3, []string{"A3", "Declined"}))
	sheet, err = table.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A3", "Declined"}, sheet.Rows[1])
}

func TestSQLiteTable_InvalidPositions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	table := store.Table("records")
	seedTable(t, table, []string{"Record_ID"}, []string{"A1"})

	tests := []struct {
		name     string
		position int
	}{
		{"header row", 1},
		{"zero", 0},
		{"past the end", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, table.Update(ctx, tt.position, []string{"x"}), common.ErrInvalidPosition)
			assert.ErrorIs(t, table.Delete(ctx, tt.position), common.ErrInvalidPosition)
		})
	}
}

func TestSQLiteTable_RejectsEmptyRow(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	assert.ErrorIs(t, store.Table("records").Append(context.Background(), nil), ErrEmptyRow)
}

func TestSQLiteTable_Prune(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	layout := model.NewLayout(nil, time.UTC)
	row := func(id string, status model.Status, created time.Time) []string {
		return layout.Encode(model.Record{ID: id, Agent: "Ali", Charge: "$1.00", Status: status, CreatedAt: created})
	}
	daysAgo := now.AddDate(0, 0, -3)

	tests := []struct {
		name     string
		cachedAt time.Time
		row      []string
		pruned   bool
	}{
		{name: "old charged record cached just now", cachedAt: now, row: row("OLD", model.StatusCharged, daysAgo), pruned: true},
		{name: "old declined record", cachedAt: now, row: row("DECLINED", model.StatusDeclined, daysAgo), pruned: true},
		{name: "old pending record is kept", cachedAt: daysAgo, row: row("WAITING", model.StatusPending, daysAgo)},
		{name: "recent charged record", cachedAt: daysAgo, row: row("FRESH", model.StatusCharged, now.Add(-time.Minute))},
		{name: "record at the cutoff", cachedAt: now, row: row("EDGE", model.StatusCharged, now.Add(-5*time.Minute))},
		{name: "unreadable row cached long ago", cachedAt: daysAgo, row: []string{"JUNK"}, pruned: true},
		{name: "unreadable row cached just now", cachedAt: now, row: []string{"JUNK"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := createTestStorage(t)
			defer cleanup()
			ctx := context.Background()

			table := store.Table("records")
			store.SetClock(func() time.Time { return tt.cachedAt })
			seedTable(t, table, layout.Header(), tt.row)

			removed, err := table.Prune(ctx, now.Add(-5*time.Minute), layout)
			require.NoError(t, err)

			sheet, err := table.ReadAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, layout.Header(), sheet.Header)
			if tt.pruned {
				assert.Equal(t, 1, removed)
				assert.Empty(t, sheet.Rows)
			} else {
				assert.Zero(t, removed)
				assert.Equal(t, [][]string{tt.row}, sheet.Rows)
			}
		})
	}
}

func TestSQLiteTable_PruneEmpty(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	removed, err := store.Table("records").Prune(context.Background(), time.Now(), model.NewLayout(nil, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSQLiteTable_StoreErrorsAfterClose(t *testing.T) {
	store, cleanup := createTestStorage(t)
	cleanup()

	_, err := store.Table("records").ReadAll(context.Background())
	var storeErr *common.StoreIOError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "read", storeErr.Op)
}
