package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/chargedesk/internal/common"
	"github.com/Veraticus/chargedesk/internal/metrics"
	"github.com/Veraticus/chargedesk/internal/model"
	"github.com/Veraticus/chargedesk/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage is a local database holding any number of named tables.
type SQLiteStorage struct {
	db     *sql.DB
	clock  service.Clock
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
		clock:  time.Now,
	}, nil
}

// SetClock replaces the clock used to stamp cached rows.
func (s *SQLiteStorage) SetClock(clock service.Clock) {
	s.clock = clock
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Table returns the named table. Tables are created on first append.
func (s *SQLiteStorage) Table(name string) *SQLiteTable {
	return &SQLiteTable{store: s, name: name}
}

// SQLiteTable is a service.Table stored in SQLite. Rows are ordered by
// insertion; the first row is the header.
type SQLiteTable struct {
	store *SQLiteStorage
	name  string
}

var _ service.Table = (*SQLiteTable)(nil)

// Name returns the table name.
func (t *SQLiteTable) Name() string {
	return t.name
}

// ReadAll implements service.Table.
func (t *SQLiteTable) ReadAll(ctx context.Context) (model.Sheet, error) {
	if err := validateContext(ctx); err != nil {
		return model.Sheet{}, err
	}

	rows, err := t.store.db.QueryContext(ctx,
		`SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY seq`, t.name)
	if err != nil {
		return model.Sheet{}, t.storeError("read", err)
	}
	defer func() { _ = rows.Close() }()

	var sheet model.Sheet
	first := true
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return model.Sheet{}, t.storeError("read", err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return model.Sheet{}, t.storeError("read", fmt.Errorf("corrupt row: %w", err))
		}
		if first {
			sheet.Header = cells
			first = false
			continue
		}
		sheet.Rows = append(sheet.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return model.Sheet{}, t.storeError("read", err)
	}

	return sheet, nil
}

// Append implements service.Table.
func (t *SQLiteTable) Append(ctx context.Context, row []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRow(row); err != nil {
		return err
	}

	cells, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}

	_, err = t.store.db.ExecContext(ctx,
		`INSERT INTO sheet_rows (sheet, cells, cached_at) VALUES (?, ?, ?)`,
		t.name, string(cells), t.store.clock().UnixNano())
	if err != nil {
		return t.storeError("append", err)
	}
	return nil
}

// Update implements service.Table.
func (t *SQLiteTable) Update(ctx context.Context, position int, row []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRow(row); err != nil {
		return err
	}

	cells, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}

	return t.atPosition(ctx, "update", position, func(tx *sql.Tx, seq int64) error {
		_, err := tx.ExecContext(ctx, `UPDATE sheet_rows SET cells = ? WHERE seq = ?`, string(cells), seq)
		return err
	})
}

// Delete implements service.Table.
func (t *SQLiteTable) Delete(ctx context.Context, position int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return t.atPosition(ctx, "delete", position, func(tx *sql.Tx, seq int64) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE seq = ?`, seq)
		return err
	})
}

// Prune deletes cached records that have aged out of the retention view:
// records that are no longer Pending and whose own Timestamp is before
// cutoff. Rows layout cannot decode fall back to when they were cached.
// The header row is always kept.
func (t *SQLiteTable) Prune(ctx context.Context, cutoff time.Time, layout model.Layout) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, t.storeError("prune", err)
	}
	defer func() { _ = tx.Rollback() }()

	stale, err := t.staleRows(ctx, tx, cutoff, layout)
	if err != nil {
		return 0, err
	}

	for _, seq := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE seq = ?`, seq); err != nil {
			return 0, t.storeError("prune", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, t.storeError("prune", err)
	}
	return len(stale), nil
}

// staleRows returns the sequence numbers Prune should delete.
func (t *SQLiteTable) staleRows(ctx context.Context, tx *sql.Tx, cutoff time.Time, layout model.Layout) ([]int64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT seq, cells, cached_at FROM sheet_rows WHERE sheet = ? ORDER BY seq`, t.name)
	if err != nil {
		return nil, t.storeError("prune", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		header []string
		stale  []int64
		first  = true
	)
	for rows.Next() {
		var (
			seq      int64
			raw      string
			cachedAt int64
		)
		if err := rows.Scan(&seq, &raw, &cachedAt); err != nil {
			return nil, t.storeError("prune", err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return nil, t.storeError("prune", fmt.Errorf("corrupt row: %w", err))
		}
		if first {
			header = cells
			first = false
			continue
		}
		if expired(layout, header, cells, time.Unix(0, cachedAt), cutoff) {
			stale = append(stale, seq)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, t.storeError("prune", err)
	}
	return stale, nil
}

func expired(layout model.Layout, header, row []string, cachedAt, cutoff time.Time) bool {
	rec, err := layout.Decode(header, row)
	if err != nil {
		return cachedAt.Before(cutoff)
	}
	return rec.Status != model.StatusPending && rec.CreatedAt.Before(cutoff)
}

// Count returns the number of data rows.
func (t *SQLiteTable) Count(ctx context.Context) (int, error) {
	var n int
	err := t.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sheet_rows WHERE sheet = ?`, t.name).Scan(&n)
	if err != nil {
		return 0, t.storeError("count", err)
	}
	if n > 0 {
		n-- // header
	}
	return n, nil
}

// atPosition resolves a sheet position to its row sequence number and runs
// fn on it inside one transaction.
func (t *SQLiteTable) atPosition(ctx context.Context, op string, position int, fn func(*sql.Tx, int64) error) error {
	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return t.storeError(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sheet_rows WHERE sheet = ?`, t.name).Scan(&total); err != nil {
		return t.storeError(op, err)
	}
	if err := validatePosition(position, total); err != nil {
		return err
	}

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT seq FROM sheet_rows WHERE sheet = ? ORDER BY seq LIMIT 1 OFFSET ?`,
		t.name, position-1).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", common.ErrInvalidPosition, position)
	}
	if err != nil {
		return t.storeError(op, err)
	}

	if err := fn(tx, seq); err != nil {
		return t.storeError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return t.storeError(op, err)
	}
	return nil
}

func (t *SQLiteTable) storeError(op string, err error) error {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	return common.NewStoreIOError(op, fmt.Errorf("sqlite table %q: %w", t.name, err), false)
}
