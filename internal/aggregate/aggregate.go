// Package aggregate computes totals over record snapshots.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/chargedesk/internal/model"
	"github.com/Veraticus/chargedesk/internal/window"
)

// Filter selects the records a total covers. Zero values match everything.
// Agent names match exactly after trimming surrounding space.
type Filter struct {
	Window   window.Predicate
	Agent    string
	Statuses []model.Status
}

// Match reports whether rec passes the filter.
func (f Filter) Match(rec model.Record) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, rec.Status) {
		return false
	}
	if f.Agent != "" && strings.TrimSpace(rec.Agent) != strings.TrimSpace(f.Agent) {
		return false
	}
	if f.Window != nil && !f.Window(rec.CreatedAt) {
		return false
	}
	return true
}

// MalformedChargeWarning marks a charge that counted as zero because it
// could not be parsed.
type MalformedChargeWarning struct {
	Err      error
	RecordID string
	Raw      string
}

func (w MalformedChargeWarning) Error() string {
	return fmt.Sprintf("record %q: malformed charge %q: %v", w.RecordID, w.Raw, w.Err)
}

func (w MalformedChargeWarning) Unwrap() error {
	return w.Err
}

// Result is the outcome of a sum.
type Result struct {
	Total     decimal.Decimal
	Malformed []MalformedChargeWarning
	Matched   int
}

// SumCharges adds the charges of every matching record. Unparsable charges
// contribute zero and are reported in Result.Malformed.
func SumCharges(records []model.Record, f Filter) Result {
	res := Result{Total: decimal.Zero}
	for _, rec := range records {
		if !f.Match(rec) {
			continue
		}
		res.Matched++
		amount, err := model.ParseCharge(rec.Charge)
		if err != nil {
			res.Malformed = append(res.Malformed, MalformedChargeWarning{
				RecordID: rec.ID,
				Raw:      rec.Charge,
				Err:      err,
			})
			continue
		}
		res.Total = res.Total.Add(amount)
	}
	return res
}

// SumChargesStrict is SumCharges but fails on the first malformed charge.
func SumChargesStrict(records []model.Record, f Filter) (decimal.Decimal, error) {
	res := SumCharges(records, f)
	if len(res.Malformed) > 0 {
		return decimal.Zero, fmt.Errorf("sum charges: %w", res.Malformed[0])
	}
	return res.Total, nil
}

// HourTotal is the charged amount for one hour of the day.
type HourTotal struct {
	Total decimal.Decimal
	Hour  int
	Count int
}

// ByHour buckets matching charges by hour of day in loc. Only hours with at
// least one record are returned, sorted by hour.
func ByHour(records []model.Record, f Filter, loc *time.Location) []HourTotal {
	if loc == nil {
		loc = time.UTC
	}
	buckets := make(map[int]*HourTotal)
	for _, rec := range records {
		if !f.Match(rec) {
			continue
		}
		amount, err := model.ParseCharge(rec.Charge)
		if err != nil {
			amount = decimal.Zero
		}
		hour := rec.CreatedAt.In(loc).Hour()
		b, ok := buckets[hour]
		if !ok {
			b = &HourTotal{Hour: hour, Total: decimal.Zero}
			buckets[hour] = b
		}
		b.Total = b.Total.Add(amount)
		b.Count++
	}

	out := make([]HourTotal, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

// AgentTotal is one agent's charged amount.
type AgentTotal struct {
	Total decimal.Decimal
	Agent string
	Count int
}

// ByAgent totals matching charges per agent, highest first. Ties are broken
// by agent name. A limit of zero or less returns every agent.
func ByAgent(records []model.Record, f Filter, limit int) []AgentTotal {
	index := make(map[string]int)
	var out []AgentTotal
	for _, rec := range records {
		if !f.Match(rec) {
			continue
		}
		amount, err := model.ParseCharge(rec.Charge)
		if err != nil {
			amount = decimal.Zero
		}
		agent := strings.TrimSpace(rec.Agent)
		i, ok := index[agent]
		if !ok {
			i = len(out)
			index[agent] = i
			out = append(out, AgentTotal{Agent: agent, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(amount)
		out[i].Count++
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Agent < out[j].Agent
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CountByStatus counts records per status. Every known status is present.
func CountByStatus(records []model.Record) map[model.Status]int {
	counts := make(map[model.Status]int, len(model.AllStatuses))
	for _, s := range model.AllStatuses {
		counts[s] = 0
	}
	for _, rec := range records {
		counts[rec.Status]++
	}
	return counts
}

func containsStatus(statuses []model.Status, s model.Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
