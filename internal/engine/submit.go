package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/chargedesk/internal/common"
	"github.com/Veraticus/chargedesk/internal/lifecycle"
	"github.com/Veraticus/chargedesk/internal/metrics"
	"github.com/Veraticus/chargedesk/internal/model"
)

// ProviderRequiringPIN is the provider whose orders carry a 4-digit PIN.
const ProviderRequiringPIN = "Spectrum"

// NoPIN is stored when the provider takes no PIN.
const NoPIN = "nil"

// Submission is what an agent enters for a new client.
type Submission struct {
	DateOfCharge time.Time
	Client       model.Client
	OrderID      string
	Agent        string
	CardHolder   string
	CardNumber   string
	Expiry       string
	CVC          string
	Charge       string
	LLC          string
	Provider     string
	PIN          string
}

// ValidationError lists the fields a submission or edit got wrong.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "please fill in all required fields: " + strings.Join(e.Fields, ", ")
}

// Is lets errors.Is(err, common.ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == common.ErrValidation
}

// Submit validates and appends a new Pending record, then tells the
// managers. The duplicate check and the append are separate store calls;
// a concurrent submission of the same ID can slip between them.
func (d *Desk) Submit(ctx context.Context, s Submission) (model.Record, error) {
	rec, err := d.prepare(s)
	if err != nil {
		return model.Record{}, err
	}

	snap, err := d.load(ctx)
	if err != nil {
		return model.Record{}, err
	}
	if snap.hasID(rec.ID) {
		return model.Record{}, fmt.Errorf("%w: %s", common.ErrDuplicateID, rec.ID)
	}

	header, err := d.ensureHeader(ctx, d.table, snap.sheet.Header)
	if err != nil {
		return model.Record{}, err
	}

	if err := d.table.Append(ctx, d.layout.EncodeFor(header, rec)); err != nil {
		return model.Record{}, fmt.Errorf("failed to save record %s: %w", rec.ID, err)
	}
	rec.Position = model.RowPosition(len(snap.sheet.Rows))
	metrics.RecordsSubmitted.Inc()

	d.logger.Info("Record submitted",
		"id", rec.ID,
		"agent", rec.Agent,
		"charge", rec.Charge,
		"position", rec.Position)

	d.machine.Send(ctx, lifecycle.TitleSubmitted, lifecycle.SubmissionBody(rec))
	return rec, nil
}

// prepare checks a submission and builds the record it becomes.
func (d *Desk) prepare(s Submission) (model.Record, error) {
	s = trimSubmission(s)

	var missing []string
	require := func(value, field string) {
		if value == "" {
			missing = append(missing, field)
		}
	}
	require(s.OrderID, "Order ID")
	require(s.Agent, "Agent Name")
	require(s.Client.Name, "Client Name")
	require(s.Client.Phone, "Phone Number")
	require(s.Client.Address, "Address")
	require(s.Client.Email, "Email")
	require(s.CardHolder, "Card Holder Name")
	require(s.CardNumber, "Card Number")
	require(s.Expiry, "Expiry Date")
	require(s.Charge, "Charge Amount")
	require(s.LLC, "LLC")
	require(s.Provider, "Provider")

	if s.Agent != "" && !allowed(d.config.Agents, s.Agent) {
		missing = append(missing, "Agent Name (unknown agent)")
	}
	if s.LLC != "" && !allowed(d.config.LLCs, s.LLC) {
		missing = append(missing, "LLC (unknown LLC)")
	}
	if s.Provider != "" && !allowed(d.config.Providers, s.Provider) {
		missing = append(missing, "Provider (unknown provider)")
	}

	pin, pinOK := normalizePIN(s.Provider, s.PIN)
	if !pinOK {
		missing = append(missing, "Valid 4-digit PIN Code")
	}

	var charge string
	if s.Charge != "" {
		var err error
		charge, err = model.NormalizeCharge(s.Charge)
		if err != nil {
			missing = append(missing, "Charge Amount (must be a non-negative number, e.g. 29 or 29.00)")
		}
	}

	if len(missing) > 0 {
		return model.Record{}, &ValidationError{Fields: missing}
	}

	now := d.now()
	dateOfCharge := s.DateOfCharge
	if dateOfCharge.IsZero() {
		dateOfCharge = now
	}
	y, m, day := dateOfCharge.Date()

	return model.Record{
		ID:           s.OrderID,
		Agent:        s.Agent,
		Client:       s.Client,
		Charge:       charge,
		Status:       model.StatusPending,
		CreatedAt:    now,
		DateOfCharge: time.Date(y, m, day, 0, 0, 0, 0, d.config.Location),
		Extra: map[string]string{
			model.ColumnCardHolder: s.CardHolder,
			model.ColumnCardNumber: CleanCardNumber(s.CardNumber),
			model.ColumnExpiry:     CleanExpiry(s.Expiry),
			model.ColumnCVC:        s.CVC,
			model.ColumnLLC:        s.LLC,
			model.ColumnProvider:   s.Provider,
			model.ColumnPINCode:    pin,
		},
	}, nil
}

func trimSubmission(s Submission) Submission {
	for _, f := range []*string{
		&s.OrderID, &s.Agent, &s.CardHolder, &s.CardNumber, &s.Expiry, &s.CVC,
		&s.Charge, &s.LLC, &s.Provider, &s.PIN,
		&s.Client.Name, &s.Client.Phone, &s.Client.Email, &s.Client.Address,
	} {
		*f = strings.TrimSpace(*f)
	}
	return s
}

// normalizePIN returns the PIN to store for provider and whether pin is
// acceptable. Only ProviderRequiringPIN takes a PIN; everything else
// stores NoPIN.
func normalizePIN(provider, pin string) (string, bool) {
	if !strings.EqualFold(strings.TrimSpace(provider), ProviderRequiringPIN) {
		return NoPIN, true
	}
	pin = strings.TrimSpace(pin)
	if len(pin) != 4 {
		return "", false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return pin, true
}

// CleanCardNumber strips the spaces and dashes agents type into card numbers.
func CleanCardNumber(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

// CleanExpiry strips separators from an expiry date: "12/27" becomes "1227".
func CleanExpiry(s string) string {
	return strings.NewReplacer("/", "", "-", "", " ", "").Replace(s)
}

// allowed reports whether value is in options. An empty list allows anything.
func allowed(options []string, value string) bool {
	if len(options) == 0 {
		return true
	}
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o), value) {
			return true
		}
	}
	return false
}
