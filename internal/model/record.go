// Package model defines the core domain models used throughout the application.
package model

import (
	"maps"
	"time"
)

// HeaderOffset is the number of header rows above the first data row.
const HeaderOffset = 1

// RowPosition converts a zero-based data row index into the 1-based sheet
// row that holds it. The Nth data row lives at N+1 because of the header.
func RowPosition(index int) int {
	return index + HeaderOffset + 1
}

// Client holds the contact fields that notifications carry.
type Client struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// Record is one client payment submission.
type Record struct {
	CreatedAt    time.Time
	DateOfCharge time.Time
	Extra        map[string]string // opaque payload keyed by column header
	Client       Client
	ID           string
	Agent        string
	Charge       string
	Status       Status
	// Position is the sheet row the record was read from, zero for records
	// that have not been stored yet.
	Position int
}

// Field returns an opaque payload value, or "" when absent. Column names
// match the way sheet headers do, ignoring case and spacing.
func (r Record) Field(column string) string {
	return lookupExtra(r.Extra, column)
}

// SetField stores an opaque payload value under the key the record already
// uses for that column, so a sheet header spelled "provider" keeps its own
// spelling when the row is written back.
func (r *Record) SetField(column, value string) {
	if r.Extra == nil {
		r.Extra = make(map[string]string)
	}
	want := canonical(column)
	for k := range r.Extra {
		if canonical(k) == want {
			r.Extra[k] = value
			return
		}
	}
	r.Extra[column] = value
}

// Clone returns a copy that shares no mutable state with r.
func (r Record) Clone() Record {
	out := r
	if r.Extra != nil {
		out.Extra = maps.Clone(r.Extra)
	}
	return out
}

// Sheet is a raw snapshot of a table: one header row followed by data rows
// in insertion order.
type Sheet struct {
	Header []string
	Rows   [][]string
}
