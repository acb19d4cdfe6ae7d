package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/chargedesk/internal/aggregate"
	"github.com/Veraticus/chargedesk/internal/metrics"
	"github.com/Veraticus/chargedesk/internal/model"
	"github.com/Veraticus/chargedesk/internal/window"
)

// Total is a charged amount over a period.
type Total struct {
	Start     time.Time
	End       time.Time
	Amount    decimal.Decimal
	Agent     string
	Count     int
	Malformed int
}

// Formatted renders the amount with thousands separators: "$1,234.50".
func (t Total) Formatted() string {
	return FormatMoney(t.Amount)
}

// NightTotal sums Charged records in the current night shift. An empty
// agent covers everyone.
func (d *Desk) NightTotal(ctx context.Context, agent string) (Total, error) {
	now := d.now()
	start, end := d.config.Shift.Bounds(now)
	return d.total(ctx, agent, d.config.Shift.At(now), start, end)
}

// TodayTotal sums Charged records created today.
func (d *Desk) TodayTotal(ctx context.Context, agent string) (Total, error) {
	now := d.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.config.Location)
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return d.total(ctx, agent, window.SameDay(now, d.config.Location), start, end)
}

func (d *Desk) total(ctx context.Context, agent string, in window.Predicate, start, end time.Time) (Total, error) {
	snap, err := d.load(ctx)
	if err != nil {
		return Total{}, err
	}

	f := aggregate.Filter{
		Statuses: []model.Status{model.StatusCharged},
		Window:   in,
		Agent:    agent,
	}
	res := aggregate.SumCharges(snap.records, f)
	if err := d.reportMalformed(res.Malformed); err != nil {
		return Total{}, err
	}

	return Total{
		Start:     start,
		End:       end,
		Amount:    res.Total,
		Agent:     agent,
		Count:     res.Matched,
		Malformed: len(res.Malformed),
	}, nil
}

// Hourly buckets the current night shift's Charged amounts by hour.
func (d *Desk) Hourly(ctx context.Context) ([]aggregate.HourTotal, error) {
	snap, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	f := aggregate.Filter{
		Statuses: []model.Status{model.StatusCharged},
		Window:   d.config.Shift.At(d.now()),
	}
	if err := d.reportMalformed(aggregate.SumCharges(snap.records, f).Malformed); err != nil {
		return nil, err
	}
	return aggregate.ByHour(snap.records, f, d.config.Location), nil
}

// TopAgents ranks agents by Charged amount in the current night shift.
func (d *Desk) TopAgents(ctx context.Context, limit int) ([]aggregate.AgentTotal, error) {
	snap, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	f := aggregate.Filter{
		Statuses: []model.Status{model.StatusCharged},
		Window:   d.config.Shift.At(d.now()),
	}
	if err := d.reportMalformed(aggregate.SumCharges(snap.records, f).Malformed); err != nil {
		return nil, err
	}
	return aggregate.ByAgent(snap.records, f, limit), nil
}

// StatusCounts counts every record per status. An empty agent covers
// everyone.
func (d *Desk) StatusCounts(ctx context.Context, agent string) (map[model.Status]int, error) {
	records, err := d.Records(ctx, aggregate.Filter{Agent: agent})
	if err != nil {
		return nil, err
	}
	return aggregate.CountByStatus(records), nil
}

// reportMalformed logs and counts malformed charges. In strict mode the
// first one fails the whole total.
func (d *Desk) reportMalformed(warnings []aggregate.MalformedChargeWarning) error {
	if len(warnings) == 0 {
		return nil
	}
	metrics.MalformedCharges.Add(float64(len(warnings)))
	for _, w := range warnings {
		d.logger.Warn("Malformed charge counted as zero", "id", w.RecordID, "charge", w.Raw)
	}
	if d.config.StrictCharges {
		return fmt.Errorf("sum charges: %w", warnings[0])
	}
	return nil
}

// FormatMoney renders an amount as dollars with thousands separators.
func FormatMoney(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	whole, frac := fixed[:len(fixed)-3], fixed[len(fixed)-3:]

	var out []byte
	for i := range len(whole) {
		if i > 0 && (len(whole)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, whole[i])
	}
	return sign + "$" + string(out) + frac
}
