package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRow is returned when a stored row cannot be decoded into a Record.
var ErrInvalidRow = errors.New("invalid record row")

// Column headers understood by the codec.
const (
	ColumnID            = "Record_ID"
	ColumnAgent         = "Agent Name"
	ColumnName          = "Name"
	ColumnPhone         = "Ph Number"
	ColumnAddress       = "Address"
	ColumnEmail         = "Email"
	ColumnCardHolder    = "Card Holder Name"
	ColumnCardNumber    = "Card Number"
	ColumnExpiry        = "Expiry Date"
	ColumnCVC           = "CVC"
	ColumnCharge        = "Charge"
	ColumnLLC           = "LLC"
	ColumnProvider      = "Provider"
	ColumnDateOfCharge  = "Date of Charge"
	ColumnStatus        = "Status"
	ColumnTimestamp     = "Timestamp"
	ColumnPINCode       = "PIN Code"
	TimestampLayout     = "2006-01-02 03:04:05 PM"
	DateOfChargeLayout  = "2006-01-02"
	defaultLocationName = "Asia/Karachi"
)

// DefaultColumns is the column order of the shared transactions sheet.
var DefaultColumns = []string{
	ColumnID, ColumnAgent, ColumnName, ColumnPhone, ColumnAddress, ColumnEmail,
	ColumnCardHolder, ColumnCardNumber, ColumnExpiry, ColumnCVC, ColumnCharge,
	ColumnLLC, ColumnProvider, ColumnDateOfCharge, ColumnStatus, ColumnTimestamp,
	ColumnPINCode,
}

// timestampLayouts are tried in order when decoding. Older sheets hold ISO
// strings, some with an offset; everything ends up in the layout's location.
var timestampLayouts = []string{
	TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Layout maps Records to and from ordered sheet rows.
type Layout struct {
	Location *time.Location
	Columns  []string
}

// NewLayout returns a layout over the given columns. A nil location means UTC.
func NewLayout(columns []string, loc *time.Location) Layout {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	if loc == nil {
		loc = time.UTC
	}
	return Layout{Columns: columns, Location: loc}
}

// DefaultLocation loads the timezone the sheets have always been written in.
func DefaultLocation() *time.Location {
	loc, err := time.LoadLocation(defaultLocationName)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Header returns a copy of the column headers.
func (l Layout) Header() []string {
	return append([]string(nil), l.Columns...)
}

// Encode renders a record as a row in column order.
func (l Layout) Encode(r Record) []string {
	row := make([]string, len(l.Columns))
	for i, col := range l.Columns {
		row[i] = l.cell(r, col)
	}
	return row
}

func (l Layout) cell(r Record, column string) string {
	switch canonical(column) {
	case canonical(ColumnID):
		return r.ID
	case canonical(ColumnAgent):
		return r.Agent
	case canonical(ColumnName):
		return r.Client.Name
	case canonical(ColumnPhone):
		return r.Client.Phone
	case canonical(ColumnAddress):
		return r.Client.Address
	case canonical(ColumnEmail):
		return r.Client.Email
	case canonical(ColumnCharge):
		return r.Charge
	case canonical(ColumnStatus):
		return r.Status.String()
	case canonical(ColumnTimestamp):
		if r.CreatedAt.IsZero() {
			return ""
		}
		return r.CreatedAt.In(l.Location).Format(TimestampLayout)
	case canonical(ColumnDateOfCharge):
		if r.DateOfCharge.IsZero() {
			return ""
		}
		return r.DateOfCharge.Format(DateOfChargeLayout)
	}
	return lookupExtra(r.Extra, column)
}

// Decode builds a Record from a data row using the sheet's own header, so
// column order in the stored sheet does not need to match l.Columns.
func (l Layout) Decode(header, row []string) (Record, error) {
	rec := Record{Extra: make(map[string]string)}
	var statusText, tsText, dateText string

	for i, col := range header {
		value := ""
		if i < len(row) {
			value = strings.TrimSpace(row[i])
		}
		switch canonical(col) {
		case canonical(ColumnID):
			rec.ID = value
		case canonical(ColumnAgent):
			rec.Agent = value
		case canonical(ColumnName):
			rec.Client.Name = value
		case canonical(ColumnPhone):
			rec.Client.Phone = value
		case canonical(ColumnAddress), "completeaddress":
			rec.Client.Address = value
		case canonical(ColumnEmail):
			rec.Client.Email = value
		case canonical(ColumnCharge), "amount":
			rec.Charge = value
		case canonical(ColumnStatus):
			statusText = value
		case canonical(ColumnTimestamp):
			tsText = value
		case canonical(ColumnDateOfCharge):
			dateText = value
		case "":
		default:
			rec.Extra[strings.TrimSpace(col)] = value
		}
	}

	status, err := ParseStatus(statusText)
	if err != nil {
		return Record{}, fmt.Errorf("%w: record %q: %w", ErrInvalidRow, rec.ID, err)
	}
	rec.Status = status

	created, err := l.ParseTimestamp(tsText)
	if err != nil {
		return Record{}, fmt.Errorf("%w: record %q: %w", ErrInvalidRow, rec.ID, err)
	}
	rec.CreatedAt = created

	if dateText != "" {
		d, parseErr := time.ParseInLocation(DateOfChargeLayout, dateText, l.Location)
		if parseErr != nil {
			return Record{}, fmt.Errorf("%w: record %q: bad date of charge %q", ErrInvalidRow, rec.ID, dateText)
		}
		rec.DateOfCharge = d
	}

	return rec, nil
}

// ParseTimestamp parses a stored timestamp. Strings without an offset are
// read as wall time in the layout's location.
func (l Layout) ParseTimestamp(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	for _, layout := range timestampLayouts {
		var (
			ts  time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			ts, err = time.Parse(layout, text)
		} else {
			ts, err = time.ParseInLocation(layout, text, l.Location)
		}
		if err == nil {
			return ts.In(l.Location), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", text)
}

// RowError describes a stored row that failed to decode.
type RowError struct {
	Err      error
	Position int
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Position, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// DecodeSheet decodes every data row, stamping each record with its sheet
// position. Blank rows are skipped silently; undecodable rows are returned
// separately so callers can warn about them without losing their positions.
func (l Layout) DecodeSheet(sheet Sheet) ([]Record, []RowError) {
	records := make([]Record, 0, len(sheet.Rows))
	var bad []RowError
	for i, row := range sheet.Rows {
		if blank(row) {
			continue
		}
		rec, err := l.Decode(sheet.Header, row)
		if err != nil {
			bad = append(bad, RowError{Position: RowPosition(i), Err: err})
			continue
		}
		rec.Position = RowPosition(i)
		records = append(records, rec)
	}
	return records, bad
}

// EncodeFor renders r against an existing sheet header. Columns the layout
// does not know about are filled from r.Extra.
func (l Layout) EncodeFor(header []string, r Record) []string {
	if len(header) == 0 {
		return l.Encode(r)
	}
	return Layout{Columns: header, Location: l.Location}.Encode(r)
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func lookupExtra(extra map[string]string, column string) string {
	if v, ok := extra[column]; ok {
		return v
	}
	want := canonical(column)
	for k, v := range extra {
		if canonical(k) == want {
			return v
		}
	}
	return ""
}

// canonical folds a header for comparison: "Date Of Charge" == "date of charge".
func canonical(header string) string {
	return strings.ToLower(strings.Join(strings.Fields(header), ""))
}

// ColumnIndex returns the index of column in header, matched the same way
// Decode matches it, or -1.
func ColumnIndex(header []string, column string) int {
	want := canonical(column)
	for i, h := range header {
		if canonical(h) == want {
			return i
		}
	}
	return -1
}
