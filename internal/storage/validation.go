// Package storage provides local row storage for the desk: an SQLite cache
// and an in-memory table, both usable wherever a service.Table is expected.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/chargedesk/internal/common"
	"github.com/Veraticus/chargedesk/internal/model"
)

// Validation errors.
var (
	ErrNilContext  = errors.New("context cannot be nil")
	ErrEmptyString = errors.New("string parameter cannot be empty")
	ErrEmptyRow    = errors.New("row cannot be empty")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRow rejects rows with no cells.
func validateRow(row []string) error {
	if len(row) == 0 {
		return ErrEmptyRow
	}
	return nil
}

// validatePosition checks a data row position against the number of stored
// rows, header included. Position 1 is the header and cannot be addressed.
func validatePosition(position, total int) error {
	if position < model.HeaderOffset+1 || position > total {
		return fmt.Errorf("%w: %d (rows: %d)", common.ErrInvalidPosition, position, total)
	}
	return nil
}
