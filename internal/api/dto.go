package api

import (
	"fmt"
	"time"

	"github.com/Veraticus/chargedesk/internal/aggregate"
	"github.com/Veraticus/chargedesk/internal/common"
	"github.com/Veraticus/chargedesk/internal/duplicate"
	"github.com/Veraticus/chargedesk/internal/engine"
	"github.com/Veraticus/chargedesk/internal/model"
)

// ClientJSON is a record's contact block.
type ClientJSON struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// RecordJSON is a record on the wire.
type RecordJSON struct {
	CreatedAt    time.Time         `json:"created_at"`
	Extra        map[string]string `json:"extra,omitempty"`
	Client       ClientJSON        `json:"client"`
	ID           string            `json:"id"`
	Agent        string            `json:"agent"`
	Charge       string            `json:"charge"`
	Status       string            `json:"status"`
	DateOfCharge string            `json:"date_of_charge,omitempty"`
	Position     int               `json:"position"`
}

func toRecordJSON(rec model.Record) RecordJSON {
	out := RecordJSON{
		ID:        rec.ID,
		Agent:     rec.Agent,
		Charge:    rec.Charge,
		Status:    rec.Status.String(),
		CreatedAt: rec.CreatedAt,
		Position:  rec.Position,
		Extra:     rec.Extra,
		Client: ClientJSON{
			Name:    rec.Client.Name,
			Phone:   rec.Client.Phone,
			Email:   rec.Client.Email,
			Address: rec.Client.Address,
		},
	}
	if !rec.DateOfCharge.IsZero() {
		out.DateOfCharge = rec.DateOfCharge.Format(model.DateOfChargeLayout)
	}
	return out
}

func toRecordsJSON(records []model.Record) []RecordJSON {
	out := make([]RecordJSON, len(records))
	for i, rec := range records {
		out[i] = toRecordJSON(rec)
	}
	return out
}

// SubmitRequest is the body of POST /records.
type SubmitRequest struct {
	Client       ClientJSON `json:"client"`
	OrderID      string     `json:"order_id"`
	Agent        string     `json:"agent"`
	CardHolder   string     `json:"card_holder"`
	CardNumber   string     `json:"card_number"`
	Expiry       string     `json:"expiry"`
	CVC          string     `json:"cvc"`
	Charge       string     `json:"charge"`
	LLC          string     `json:"llc"`
	Provider     string     `json:"provider"`
	PIN          string     `json:"pin"`
	DateOfCharge string     `json:"date_of_charge"`
}

func (req SubmitRequest) submission(loc *time.Location) (engine.Submission, error) {
	date, err := parseDate(req.DateOfCharge, loc)
	if err != nil {
		return engine.Submission{}, err
	}
	s := engine.Submission{
		OrderID:    req.OrderID,
		Agent:      req.Agent,
		CardHolder: req.CardHolder,
		CardNumber: req.CardNumber,
		Expiry:     req.Expiry,
		CVC:        req.CVC,
		Charge:     req.Charge,
		LLC:        req.LLC,
		Provider:   req.Provider,
		PIN:        req.PIN,
		Client: model.Client{
			Name:    req.Client.Name,
			Phone:   req.Client.Phone,
			Email:   req.Client.Email,
			Address: req.Client.Address,
		},
	}
	if date != nil {
		s.DateOfCharge = *date
	}
	return s, nil
}

// EditRequest is the body of PUT /records/{id}. Absent fields are left alone.
type EditRequest struct {
	Agent        *string `json:"agent"`
	Name         *string `json:"name"`
	Phone        *string `json:"phone"`
	Email        *string `json:"email"`
	Address      *string `json:"address"`
	Charge       *string `json:"charge"`
	Status       *string `json:"status"`
	DateOfCharge *string `json:"date_of_charge"`
	CardHolder   *string `json:"card_holder"`
	CardNumber   *string `json:"card_number"`
	Expiry       *string `json:"expiry"`
	CVC          *string `json:"cvc"`
	LLC          *string `json:"llc"`
	Provider     *string `json:"provider"`
	PIN          *string `json:"pin"`
}

func (req EditRequest) edit(loc *time.Location) (engine.Edit, error) {
	e := engine.Edit{
		Agent:      req.Agent,
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Address:    req.Address,
		Charge:     req.Charge,
		CardHolder: req.CardHolder,
		CardNumber: req.CardNumber,
		Expiry:     req.Expiry,
		CVC:        req.CVC,
		LLC:        req.LLC,
		Provider:   req.Provider,
		PIN:        req.PIN,
	}
	if req.Status != nil {
		status, err := model.ParseStatus(*req.Status)
		if err != nil {
			return engine.Edit{}, err
		}
		e.Status = &status
	}
	if req.DateOfCharge != nil {
		date, err := parseDate(*req.DateOfCharge, loc)
		if err != nil {
			return engine.Edit{}, err
		}
		e.DateOfCharge = date
	}
	return e, nil
}

// StatusRequest is the body of POST /records/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// TotalJSON is a period total.
type TotalJSON struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Amount    string    `json:"amount"`
	Formatted string    `json:"formatted"`
	Agent     string    `json:"agent,omitempty"`
	Count     int       `json:"count"`
	Malformed int       `json:"malformed"`
}

func toTotalJSON(t engine.Total) TotalJSON {
	return TotalJSON{
		Start:     t.Start,
		End:       t.End,
		Amount:    t.Amount.StringFixed(2),
		Formatted: t.Formatted(),
		Agent:     t.Agent,
		Count:     t.Count,
		Malformed: t.Malformed,
	}
}

// HourJSON is one hour's total.
type HourJSON struct {
	Total string `json:"total"`
	Hour  int    `json:"hour"`
	Count int    `json:"count"`
}

// AgentJSON is one agent's total.
type AgentJSON struct {
	Agent string `json:"agent"`
	Total string `json:"total"`
	Count int    `json:"count"`
}

func toHoursJSON(hours []aggregate.HourTotal) []HourJSON {
	out := make([]HourJSON, len(hours))
	for i, h := range hours {
		out[i] = HourJSON{Hour: h.Hour, Count: h.Count, Total: h.Total.StringFixed(2)}
	}
	return out
}

func toAgentsJSON(agents []aggregate.AgentTotal) []AgentJSON {
	out := make([]AgentJSON, len(agents))
	for i, a := range agents {
		out[i] = AgentJSON{Agent: a.Agent, Count: a.Count, Total: a.Total.StringFixed(2)}
	}
	return out
}

// DuplicateJSON is one ID found on several rows.
type DuplicateJSON struct {
	ID      string       `json:"id"`
	Records []RecordJSON `json:"records"`
}

func toDuplicatesJSON(groups []duplicate.Group) []DuplicateJSON {
	out := make([]DuplicateJSON, len(groups))
	for i, g := range groups {
		out[i] = DuplicateJSON{ID: g.ID, Records: toRecordsJSON(g.Records)}
	}
	return out
}

// SignUpRequest is the body of POST /users.
type SignUpRequest struct {
	ID        string `json:"id"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	AgentName string `json:"agent_name"`
}

// LoginRequest is the body of POST /users/login.
type LoginRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

// ProfileJSON is a user without credentials.
type ProfileJSON struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	AgentName string `json:"agent_name,omitempty"`
}

// SessionJSON is the login response when session tokens are on.
type SessionJSON struct {
	ExpiresAt time.Time   `json:"expires_at"`
	Token     string      `json:"token"`
	Profile   ProfileJSON `json:"profile"`
}

func parseDate(text string, loc *time.Location) (*time.Time, error) {
	if text == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(model.DateOfChargeLayout, text, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: date_of_charge must look like 2006-01-02", common.ErrValidation)
	}
	return &d, nil
}
