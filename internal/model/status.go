package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidStatus is returned when a status string is not one of the known statuses.
var ErrInvalidStatus = errors.New("invalid record status")

// Status is the lifecycle state of a submitted record. The only values are
// the four below and the zero Status, which means "no status" and is never
// Valid. Other packages obtain a Status from ParseStatus.
type Status struct {
	name string
}

// Record statuses. The names are the exact text written to the sheet.
var (
	StatusPending    = Status{name: "Pending"}
	StatusCharged    = Status{name: "Charged"}
	StatusDeclined   = Status{name: "Declined"}
	StatusChargeBack = Status{name: "Charge Back"}
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{StatusPending, StatusCharged, StatusDeclined, StatusChargeBack}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s.name != ""
}

func (s Status) String() string {
	return s.name
}

// MarshalText writes the sheet text.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.name), nil
}

// UnmarshalText accepts anything ParseStatus does.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus converts sheet text into a Status. Casing and inner spacing
// differ between sheets ("Charge Back", "chargeback", " charged "), so the
// comparison ignores both.
func ParseStatus(text string) (Status, error) {
	key := strings.ToLower(strings.Join(strings.Fields(text), ""))
	for _, s := range AllStatuses {
		if key == strings.ToLower(strings.ReplaceAll(s.name, " ", "")) {
			return s, nil
		}
	}
	return Status{}, fmt.Errorf("%w: %q", ErrInvalidStatus, text)
}

// MustParseStatus is ParseStatus for text known at compile time.
func MustParseStatus(text string) Status {
	s, err := ParseStatus(text)
	if err != nil {
		panic(err)
	}
	return s
}
