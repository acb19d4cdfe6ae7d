package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/chargedesk/internal/common"
	"github.com/Veraticus/chargedesk/internal/model"
)

// Transition moves the record with the given ID to a new status. The
// notification for the new status goes out only after the store accepted
// the change.
func (d *Desk) Transition(ctx context.Context, id string, to model.Status) (model.Record, error) {
	snap, err := d.load(ctx)
	if err != nil {
		return model.Record{}, err
	}
	rec, err := snap.find(id)
	if err != nil {
		return model.Record{}, err
	}

	next, err := d.machine.Transition(rec, to)
	if err != nil {
		return model.Record{}, fmt.Errorf("record %s: %w", rec.ID, err)
	}

	if err := d.table.Update(ctx, rec.Position, d.layout.EncodeFor(snap.sheet.Header, next)); err != nil {
		return model.Record{}, fmt.Errorf("failed to update record %s: %w", rec.ID, err)
	}

	d.logger.Info("Record status changed",
		"id", rec.ID,
		"from", rec.Status,
		"to", next.Status,
		"position", rec.Position)

	d.machine.Announce(ctx, rec.Status, next)
	return next, nil
}

// Approve marks a record Charged.
func (d *Desk) Approve(ctx context.Context, id string) (model.Record, error) {
	return d.Transition(ctx, id, model.StatusCharged)
}

// Decline marks a record Declined.
func (d *Desk) Decline(ctx context.Context, id string) (model.Record, error) {
	return d.Transition(ctx, id, model.StatusDeclined)
}

// ChargeBack marks a record as charged back by the client's bank.
func (d *Desk) ChargeBack(ctx context.Context, id string) (model.Record, error) {
	return d.Transition(ctx, id, model.StatusChargeBack)
}

// Reopen returns a record to Pending.
func (d *Desk) Reopen(ctx context.Context, id string) (model.Record, error) {
	return d.Transition(ctx, id, model.StatusPending)
}

// Edit is a partial update. Nil fields are left alone.
type Edit struct {
	Agent        *string
	Name         *string
	Phone        *string
	Email        *string
	Address      *string
	Charge       *string
	Status       *model.Status
	DateOfCharge *time.Time
	CardHolder   *string
	CardNumber   *string
	Expiry       *string
	CVC          *string
	LLC          *string
	Provider     *string
	PIN          *string
}

// Empty reports whether the edit changes nothing.
func (e Edit) Empty() bool {
	return e == Edit{}
}

// Edit corrects a record in place. The ID and creation time never change.
// A status change goes through the lifecycle like Transition; an unchanged
// status is not a transition.
func (d *Desk) Edit(ctx context.Context, id string, e Edit) (model.Record, error) {
	return d.edit(ctx, id, e, nil)
}

// EditOwn is the agent's correction path. It only touches a record the
// agent submitted, only while the record is Pending, and never changes the
// record's agent or status. Someone else's record is reported as not found.
func (d *Desk) EditOwn(ctx context.Context, agent, id string, e Edit) (model.Record, error) {
	agent = strings.TrimSpace(agent)
	if e.Agent != nil || e.Status != nil {
		return model.Record{}, fmt.Errorf("%w: agents cannot change a record's agent or status", common.ErrForbidden)
	}
	return d.edit(ctx, id, e, func(rec model.Record) error {
		if agent == "" || strings.TrimSpace(rec.Agent) != agent {
			return fmt.Errorf("%w: %s", common.ErrRecordNotFound, id)
		}
		if rec.Status != model.StatusPending {
			return fmt.Errorf("%w: record %s is %s and can no longer be edited", common.ErrForbidden, rec.ID, rec.Status)
		}
		return nil
	})
}

func (d *Desk) edit(ctx context.Context, id string, e Edit, guard func(model.Record) error) (model.Record, error) {
	snap, err := d.load(ctx)
	if err != nil {
		return model.Record{}, err
	}
	rec, err := snap.find(id)
	if err != nil {
		return model.Record{}, err
	}
	if guard != nil {
		if err := guard(rec); err != nil {
			return model.Record{}, err
		}
	}

	next, err := d.applyEdit(rec, e)
	if err != nil {
		return model.Record{}, err
	}

	statusChanged := e.Status != nil && *e.Status != rec.Status
	if statusChanged {
		next, err = d.machine.Transition(next, *e.Status)
		if err != nil {
			return model.Record{}, fmt.Errorf("record %s: %w", rec.ID, err)
		}
	}

	if err := d.table.Update(ctx, rec.Position, d.layout.EncodeFor(snap.sheet.Header, next)); err != nil {
		return model.Record{}, fmt.Errorf("failed to update record %s: %w", rec.ID, err)
	}

	d.logger.Info("Record edited", "id", rec.ID, "position", rec.Position, "status_changed", statusChanged)

	if statusChanged {
		d.machine.Announce(ctx, rec.Status, next)
	}
	return next, nil
}

func (d *Desk) applyEdit(rec model.Record, e Edit) (model.Record, error) {
	next := rec.Clone()
	if next.Extra == nil {
		next.Extra = make(map[string]string)
	}
	var invalid []string

	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&next.Agent, e.Agent)
	set(&next.Client.Name, e.Name)
	set(&next.Client.Phone, e.Phone)
	set(&next.Client.Email, e.Email)
	set(&next.Client.Address, e.Address)

	setExtra := func(column string, src *string, clean func(string) string) {
		if src == nil {
			return
		}
		v := strings.TrimSpace(*src)
		if clean != nil {
			v = clean(v)
		}
		next.SetField(column, v)
	}
	setExtra(model.ColumnCardHolder, e.CardHolder, nil)
	setExtra(model.ColumnCardNumber, e.CardNumber, CleanCardNumber)
	setExtra(model.ColumnExpiry, e.Expiry, CleanExpiry)
	setExtra(model.ColumnCVC, e.CVC, nil)
	setExtra(model.ColumnLLC, e.LLC, nil)
	setExtra(model.ColumnProvider, e.Provider, nil)

	if e.Agent != nil && (next.Agent == "" || !allowed(d.config.Agents, next.Agent)) {
		invalid = append(invalid, "Agent Name")
	}
	if e.Name != nil && next.Client.Name == "" {
		invalid = append(invalid, "Client Name")
	}

	if e.Charge != nil {
		charge, err := model.NormalizeCharge(*e.Charge)
		if err != nil {
			invalid = append(invalid, "Charge Amount (must be a non-negative number, e.g. 29 or 29.00)")
		} else {
			next.Charge = charge
		}
	}

	if e.DateOfCharge != nil {
		y, m, day := e.DateOfCharge.Date()
		next.DateOfCharge = time.Date(y, m, day, 0, 0, 0, 0, d.config.Location)
	}

	if e.Provider != nil || e.PIN != nil {
		pin := next.Field(model.ColumnPINCode)
		if e.PIN != nil {
			pin = *e.PIN
		}
		normalized, ok := normalizePIN(next.Field(model.ColumnProvider), pin)
		if !ok {
			invalid = append(invalid, "Valid 4-digit PIN Code")
		}
		next.SetField(model.ColumnPINCode, normalized)
	}

	if len(invalid) > 0 {
		return model.Record{}, &ValidationError{Fields: invalid}
	}

	next.ID = rec.ID
	next.CreatedAt = rec.CreatedAt
	return next, nil
}

// Delete removes a record. Rows below it move up one position.
func (d *Desk) Delete(ctx context.Context, id string) (model.Record, error) {
	snap, err := d.load(ctx)
	if err != nil {
		return model.Record{}, err
	}
	rec, err := snap.find(id)
	if err != nil {
		return model.Record{}, err
	}

	if err := d.table.Delete(ctx, rec.Position); err != nil {
		return model.Record{}, fmt.Errorf("failed to delete record %s: %w", rec.ID, err)
	}

	d.logger.Info("Record deleted", "id", rec.ID, "position", rec.Position)
	return rec, nil
}
