package engine

import (
	"context"
	"sort"

	"github.com/Veraticus/chargedesk/internal/aggregate"
	"github.com/Veraticus/chargedesk/internal/duplicate"
	"github.com/Veraticus/chargedesk/internal/model"
	"github.com/Veraticus/chargedesk/internal/window"
)

// Records returns every readable record matching f, in row order.
func (d *Desk) Records(ctx context.Context, f aggregate.Filter) ([]model.Record, error) {
	snap, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Record, 0, len(snap.records))
	for _, rec := range snap.records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Recent is the manager's working view: every Pending record plus anything
// created within the retention period, newest first.
func (d *Desk) Recent(ctx context.Context) ([]model.Record, error) {
	snap, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	recent := window.FilterRecent(d.now(), snap.records, d.config.Retention)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	return recent, nil
}

// Pending returns the records still awaiting a decision, in row order.
func (d *Desk) Pending(ctx context.Context) ([]model.Record, error) {
	return d.Records(ctx, aggregate.Filter{Statuses: []model.Status{model.StatusPending}})
}

// Find returns the first record with the given ID.
func (d *Desk) Find(ctx context.Context, id string) (model.Record, error) {
	snap, err := d.load(ctx)
	if err != nil {
		return model.Record{}, err
	}
	return snap.find(id)
}

// Duplicates lists every ID that appears on more than one row.
func (d *Desk) Duplicates(ctx context.Context) ([]duplicate.Group, error) {
	snap, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	groups := duplicate.Groups(snap.records)
	if len(groups) > 0 {
		d.logger.Warn("Duplicate order IDs found", "ids", len(groups))
	}
	return groups, nil
}
