// Package window decides which records fall inside a time window: the
// retention view of recently processed records and the night-shift window
// used for shift revenue totals.
package window

import (
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/chargedesk/internal/model"
)

// Predicate reports whether a timestamp is inside a window.
type Predicate func(time.Time) bool

// Always is the predicate that accepts every timestamp.
func Always(time.Time) bool { return true }

// IsWithinRetention reports whether createdAt is no older than retention
// relative to now. The boundary itself is inside.
func IsWithinRetention(now, createdAt time.Time, retention time.Duration) bool {
	return !createdAt.Before(now.Add(-retention))
}

// Visible applies the retention view policy: pending records never expire
// from view, processed records disappear once older than retention.
func Visible(now time.Time, rec model.Record, retention time.Duration) bool {
	if rec.Status == model.StatusPending {
		return true
	}
	return IsWithinRetention(now, rec.CreatedAt, retention)
}

// FilterRecent returns the visible records in their original order. The
// input slice is not modified.
func FilterRecent(now time.Time, records []model.Record, retention time.Duration) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, rec := range records {
		if Visible(now, rec, retention) {
			out = append(out, rec)
		}
	}
	return out
}

// Within returns a predicate for the retention window ending at now.
func Within(now time.Time, retention time.Duration) Predicate {
	return func(ts time.Time) bool {
		return IsWithinRetention(now, ts, retention)
	}
}

// SameDay returns a predicate matching timestamps on now's calendar day in loc.
func SameDay(now time.Time, loc *time.Location) Predicate {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return func(ts time.Time) bool {
		ty, tm, td := ts.In(loc).Date()
		return ty == y && tm == m && td == d
	}
}

// ErrInvalidShift is returned for shift hours that cannot form a window.
var ErrInvalidShift = errors.New("invalid night shift")

// NightShift is a fixed daily shift, typically crossing midnight (19:00 to
// 06:00). Hours are wall-clock hours in Location.
type NightShift struct {
	Location  *time.Location
	StartHour int
	EndHour   int
}

// DefaultNightShift is the 19:00 to 06:00 shift.
func DefaultNightShift(loc *time.Location) NightShift {
	return NightShift{StartHour: 19, EndHour: 6, Location: loc}
}

// Validate checks the shift hours.
func (n NightShift) Validate() error {
	if n.StartHour < 0 || n.StartHour > 23 || n.EndHour < 0 || n.EndHour > 23 {
		return fmt.Errorf("%w: hours must be between 0 and 23 (start %d, end %d)", ErrInvalidShift, n.StartHour, n.EndHour)
	}
	if n.StartHour == n.EndHour {
		return fmt.Errorf("%w: start and end hour are both %d", ErrInvalidShift, n.StartHour)
	}
	return nil
}

// Crosses reports whether the shift spans midnight.
func (n NightShift) Crosses() bool {
	return n.StartHour > n.EndHour
}

// Bounds returns the shift occurrence that is relevant at now: the open
// shift while it runs, otherwise the most recently closed one.
func (n NightShift) Bounds(now time.Time) (start, end time.Time) {
	loc := n.location()
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	at := func(day time.Time, hour int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)
	}
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)
	startToday := at(today, n.StartHour)
	endToday := at(today, n.EndHour)

	if n.Crosses() {
		if !local.Before(startToday) {
			// Shift opened this evening and closes tomorrow morning.
			return startToday, at(tomorrow, n.EndHour)
		}
		// Either past midnight inside the shift, or daytime after it closed:
		// both point at the shift that started yesterday evening.
		return at(yesterday, n.StartHour), endToday
	}

	if local.Before(startToday) {
		return at(yesterday, n.StartHour), at(yesterday, n.EndHour)
	}
	return startToday, endToday
}

// Contains reports whether ts falls in the shift occurrence relevant at now.
// Both ends are inclusive.
func (n NightShift) Contains(now, ts time.Time) bool {
	start, end := n.Bounds(now)
	return !ts.Before(start) && !ts.After(end)
}

// At returns a predicate bound to now.
func (n NightShift) At(now time.Time) Predicate {
	start, end := n.Bounds(now)
	return func(ts time.Time) bool {
		return !ts.Before(start) && !ts.After(end)
	}
}

func (n NightShift) location() *time.Location {
	if n.Location == nil {
		return time.UTC
	}
	return n.Location
}
