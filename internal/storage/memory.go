package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/chargedesk/internal/common"
	"github.com/Veraticus/chargedesk/internal/model"
	"github.com/Veraticus/chargedesk/internal/service"
)

// MemoryTable is an in-memory service.Table for tests and dry runs. It is
// safe for concurrent use.
type MemoryTable struct {
	failures map[string]error
	header   []string
	rows     [][]string
	calls    map[string]int
	mu       sync.Mutex
}

var _ service.Table = (*MemoryTable)(nil)

// NewMemoryTable creates a table, optionally seeded with a header.
func NewMemoryTable(header ...string) *MemoryTable {
	return &MemoryTable{
		header:   append([]string(nil), header...),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Fail makes every later call to op ("read", "append", "update", "delete")
// return err wrapped as a store error. A nil err clears the failure.
func (m *MemoryTable) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns how many times op was invoked.
func (m *MemoryTable) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Rows returns a copy of the data rows.
func (m *MemoryTable) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRows(m.rows)
}

// ReadAll implements service.Table.
func (m *MemoryTable) ReadAll(_ context.Context) (model.Sheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("read"); err != nil {
		return model.Sheet{}, err
	}
	return model.Sheet{
		Header: append([]string(nil), m.header...),
		Rows:   copyRows(m.rows),
	}, nil
}

// Append implements service.Table. The first row appended to an empty table
// becomes its header, as it would in a blank worksheet.
func (m *MemoryTable) Append(_ context.Context, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("append"); err != nil {
		return err
	}
	if err := validateRow(row); err != nil {
		return err
	}
	if len(m.header) == 0 && len(m.rows) == 0 {
		m.header = append([]string(nil), row...)
		return nil
	}
	m.rows = append(m.rows, append([]string(nil), row...))
	return nil
}

// Update implements service.Table.
func (m *MemoryTable) Update(_ context.Context, position int, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("update"); err != nil {
		return err
	}
	if err := validatePosition(position, len(m.rows)+model.HeaderOffset); err != nil {
		return err
	}
	m.rows[position-model.HeaderOffset-1] = append([]string(nil), row...)
	return nil
}

// Delete implements service.Table.
func (m *MemoryTable) Delete(_ context.Context, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("delete"); err != nil {
		return err
	}
	if err := validatePosition(position, len(m.rows)+model.HeaderOffset); err != nil {
		return err
	}
	i := position - model.HeaderOffset - 1
	m.rows = append(m.rows[:i], m.rows[i+1:]...)
	return nil
}

func (m *MemoryTable) begin(op string) error {
	m.calls[op]++
	if err, ok := m.failures[op]; ok {
		return common.NewStoreIOError(op, fmt.Errorf("memory table: %w", err), false)
	}
	return nil
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
