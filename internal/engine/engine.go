// Package engine implements the desk workflows: agents submitting client
// payment records and managers reviewing, correcting and totalling them.
//
// Every action re-reads the record store and works on that snapshot. Two
// writers acting at once are not coordinated.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/chargedesk/internal/common"
	"github.com/Veraticus/chargedesk/internal/duplicate"
	"github.com/Veraticus/chargedesk/internal/lifecycle"
	"github.com/Veraticus/chargedesk/internal/model"
	"github.com/Veraticus/chargedesk/internal/service"
	"github.com/Veraticus/chargedesk/internal/window"
)

// Config holds configuration options for the desk.
type Config struct {
	Location      *time.Location
	Columns       []string
	Agents        []string
	Providers     []string
	LLCs          []string
	Shift         window.NightShift
	Retention     time.Duration
	StrictCharges bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	loc := model.DefaultLocation()
	return Config{
		Location:  loc,
		Columns:   model.DefaultColumns,
		Shift:     window.DefaultNightShift(loc),
		Retention: 5 * time.Minute,
	}
}

// Desk runs the workflows against one record table.
type Desk struct {
	table   service.Table
	machine *lifecycle.Machine
	clock   service.Clock
	logger  *slog.Logger
	layout  model.Layout
	config  Config
}

// New creates a desk. A nil machine uses the default policy without
// notifications.
func New(table service.Table, machine *lifecycle.Machine, config Config, logger *slog.Logger) (*Desk, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: record table is required", common.ErrMissingConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if machine == nil {
		machine = lifecycle.NewMachine(lifecycle.Policy{}, nil, logger)
	}
	if config.Location == nil {
		config.Location = model.DefaultLocation()
	}
	if config.Shift.Location == nil {
		config.Shift.Location = config.Location
	}
	if err := config.Shift.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	if config.Retention < 0 {
		return nil, fmt.Errorf("%w: retention cannot be negative", common.ErrInvalidConfig)
	}

	return &Desk{
		table:   table,
		machine: machine,
		clock:   time.Now,
		logger:  logger,
		layout:  model.NewLayout(config.Columns, config.Location),
		config:  config,
	}, nil
}

// SetClock replaces the desk's clock.
func (d *Desk) SetClock(clock service.Clock) {
	d.clock = clock
}

// Layout returns the row layout the desk writes.
func (d *Desk) Layout() model.Layout {
	return d.layout
}

// Config returns the desk configuration.
func (d *Desk) Config() Config {
	return d.config
}

func (d *Desk) now() time.Time {
	return d.clock().In(d.config.Location)
}

// snapshot is one read of the record table.
type snapshot struct {
	sheet   model.Sheet
	records []model.Record
}

// load reads and decodes the whole table. Rows that fail to decode are
// logged and left out of records, but stay in sheet.
func (d *Desk) load(ctx context.Context) (snapshot, error) {
	sheet, err := d.table.ReadAll(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("failed to read records: %w", err)
	}

	records, bad := d.layout.DecodeSheet(sheet)
	for _, rowErr := range bad {
		d.logger.Warn("Skipping unreadable row", "position", rowErr.Position, "error", rowErr.Err)
	}
	return snapshot{sheet: sheet, records: records}, nil
}

// find returns the first record whose ID matches id.
func (s snapshot) find(id string) (model.Record, error) {
	key := duplicate.NormalizeID(id)
	for _, rec := range s.records {
		if duplicate.NormalizeID(rec.ID) == key {
			return rec, nil
		}
	}
	return model.Record{}, fmt.Errorf("%w: %s", common.ErrRecordNotFound, key)
}

// hasID reports whether any row, readable or not, carries id.
func (s snapshot) hasID(id string) bool {
	if duplicate.IsDuplicateID(s.records, id) {
		return true
	}
	col := model.ColumnIndex(s.sheet.Header, model.ColumnID)
	if col < 0 {
		return false
	}
	key := duplicate.NormalizeID(id)
	for _, row := range s.sheet.Rows {
		if col < len(row) && duplicate.NormalizeID(row[col]) == key {
			return true
		}
	}
	return false
}

// headerFormatter is implemented by tables that can style their header row.
type headerFormatter interface {
	FormatHeader(ctx context.Context) error
}

// ensureHeader writes the layout's header into an empty table and returns
// the header rows should be encoded against.
func (d *Desk) ensureHeader(ctx context.Context, table service.Table, header []string) ([]string, error) {
	if len(header) > 0 {
		return header, nil
	}

	header = d.layout.Header()
	if err := table.Append(ctx, header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	if f, ok := table.(headerFormatter); ok {
		if err := f.FormatHeader(ctx); err != nil {
			// Don't fail the whole operation if formatting fails
			d.logger.Warn("Failed to format header row", "error", err)
		}
	}
	return header, nil
}
