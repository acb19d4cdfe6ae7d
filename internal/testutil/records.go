package testutil

import (
	"time"

	"github.com/Veraticus/chargedesk/internal/model"
)

// RecordBuilder builds a complete, valid record with sensible defaults.
//
// Example:
//
//	rec := testutil.NewRecord("A1").
//		WithAgent("Ali").
//		WithCharge("$29.00").
//		WithStatus(model.StatusCharged).
//		Build()
type RecordBuilder struct {
	rec model.Record
}

// NewRecord starts a Pending Optimum record for id.
func NewRecord(id string) *RecordBuilder {
	return &RecordBuilder{rec: model.Record{
		ID:     id,
		Agent:  "Agent",
		Charge: "$0.00",
		Status: model.StatusPending,
		Client: model.Client{
			Name:    "Client " + id,
			Phone:   "555-0100",
			Email:   id + "@example.com",
			Address: "1 Main St",
		},
		Extra: map[string]string{
			model.ColumnProvider: "Optimum",
			model.ColumnPINCode:  "nil",
		},
	}}
}

// WithAgent sets the agent.
func (b *RecordBuilder) WithAgent(agent string) *RecordBuilder {
	b.rec.Agent = agent
	return b
}

// WithCharge sets the raw charge text.
func (b *RecordBuilder) WithCharge(charge string) *RecordBuilder {
	b.rec.Charge = charge
	return b
}

// WithStatus sets the status.
func (b *RecordBuilder) WithStatus(status model.Status) *RecordBuilder {
	b.rec.Status = status
	return b
}

// WithCreatedAt sets the creation time.
func (b *RecordBuilder) WithCreatedAt(at time.Time) *RecordBuilder {
	b.rec.CreatedAt = at
	return b
}

// WithField sets an opaque payload column.
func (b *RecordBuilder) WithField(column, value string) *RecordBuilder {
	b.rec.SetField(column, value)
	return b
}

// Build returns a copy of the record, so a builder can be reused.
func (b *RecordBuilder) Build() model.Record {
	return b.rec.Clone()
}
