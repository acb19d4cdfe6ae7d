// Package lifecycle enforces which status changes a record may go through.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/Veraticus/chargedesk/internal/model"
)

// ErrInvalidTransition matches every InvalidTransitionError.
var ErrInvalidTransition = errors.New("invalid status transition")

// InvalidTransitionError is returned when a transition is not in the table.
type InvalidTransitionError struct {
	From model.Status
	To   model.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move record from %s to %s", e.From, e.To)
}

// Is lets errors.Is(err, ErrInvalidTransition) match.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Policy selects the optional edges of the transition table.
type Policy struct {
	// AllowChargeBackReopen permits Charge Back -> Pending.
	AllowChargeBackReopen bool
	// AllowChargedReopen permits Charged -> Pending for disputes.
	AllowChargedReopen bool
}

var baseTable = map[model.Status][]model.Status{
	model.StatusPending:    {model.StatusCharged, model.StatusDeclined},
	model.StatusCharged:    {model.StatusChargeBack},
	model.StatusDeclined:   {model.StatusPending, model.StatusCharged, model.StatusChargeBack},
	model.StatusChargeBack: {},
}

// Targets lists the statuses reachable from from, in display order.
func (p Policy) Targets(from model.Status) []model.Status {
	out := append([]model.Status(nil), baseTable[from]...)
	switch {
	case from == model.StatusCharged && p.AllowChargedReopen:
		out = append([]model.Status{model.StatusPending}, out...)
	case from == model.StatusChargeBack && p.AllowChargeBackReopen:
		out = append(out, model.StatusPending)
	}
	return out
}

// Allowed reports whether from -> to is a legal transition.
func (p Policy) Allowed(from, to model.Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	for _, s := range p.Targets(from) {
		if s == to {
			return true
		}
	}
	return false
}

// Apply returns a copy of rec moved to status to. rec itself is not changed.
func (p Policy) Apply(rec model.Record, to model.Status) (model.Record, error) {
	if !p.Allowed(rec.Status, to) {
		return model.Record{}, &InvalidTransitionError{From: rec.Status, To: to}
	}
	out := rec.Clone()
	out.Status = to
	return out, nil
}
