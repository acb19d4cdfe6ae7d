// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/chargedesk/internal/model"
)

// Table is the row-oriented store records live in. Positions are 1-based
// sheet rows with a single header row, so the Nth data row is at N+1.
type Table interface {
	// ReadAll returns the header and every data row in insertion order.
	ReadAll(ctx context.Context) (model.Sheet, error)
	// Append adds a row after the last data row.
	Append(ctx context.Context, row []string) error
	// Update overwrites the row at position.
	Update(ctx context.Context, position int, row []string) error
	// Delete removes the row at position; rows below shift up by one.
	Delete(ctx context.Context, position int) error
}

// Notifier delivers a push notification. Callers treat delivery as
// fire-and-forget: an error is reported, never acted on.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Clock returns the current time.
type Clock func() time.Time

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
