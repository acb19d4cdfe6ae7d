package engine

import (
	"context"
	"fmt"

	"github.com/Veraticus/chargedesk/internal/model"
	"github.com/Veraticus/chargedesk/internal/service"
)

// PushResult summarizes a cache push.
type PushResult struct {
	Pushed     int
	Duplicates int
	Unreadable int
}

// Push replays records held in a local cache table into the desk's table,
// skipping any ID the desk already has. progress, when set, is called once
// per cached row.
func (d *Desk) Push(ctx context.Context, from service.Table, progress func()) (PushResult, error) {
	var result PushResult

	source, err := from.ReadAll(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to read cache: %w", err)
	}
	cached, bad := d.layout.DecodeSheet(source)
	result.Unreadable = len(bad)
	for _, rowErr := range bad {
		d.logger.Warn("Skipping unreadable cached row", "position", rowErr.Position, "error", rowErr.Err)
	}

	snap, err := d.load(ctx)
	if err != nil {
		return result, err
	}
	header, err := d.ensureHeader(ctx, d.table, snap.sheet.Header)
	if err != nil {
		return result, err
	}
	snap.sheet.Header = header

	for _, rec := range cached {
		if progress != nil {
			progress()
		}
		if snap.hasID(rec.ID) {
			result.Duplicates++
			d.logger.Debug("Cached record already in store", "id", rec.ID)
			continue
		}
		if err := d.table.Append(ctx, d.layout.EncodeFor(header, rec)); err != nil {
			return result, fmt.Errorf("failed to push record %s: %w", rec.ID, err)
		}
		snap.records = append(snap.records, rec)
		result.Pushed++
	}

	d.logger.Info("Cache pushed",
		"pushed", result.Pushed,
		"duplicates", result.Duplicates,
		"unreadable", result.Unreadable)
	return result, nil
}

// Cache copies every readable record into a local table so it can be
// browsed offline and pushed back later.
func (d *Desk) Cache(ctx context.Context, to service.Table) (int, error) {
	snap, err := d.load(ctx)
	if err != nil {
		return 0, err
	}

	existing, err := to.ReadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache: %w", err)
	}
	header, err := d.ensureHeader(ctx, to, existing.Header)
	if err != nil {
		return 0, err
	}
	cached, _ := d.layout.DecodeSheet(existing)
	local := snapshot{sheet: model.Sheet{Header: header, Rows: existing.Rows}, records: cached}

	n := 0
	for _, rec := range snap.records {
		if local.hasID(rec.ID) {
			continue
		}
		if err := to.Append(ctx, d.layout.EncodeFor(header, rec)); err != nil {
			return n, fmt.Errorf("failed to cache record %s: %w", rec.ID, err)
		}
		local.records = append(local.records, rec)
		n++
	}
	return n, nil
}
