package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/chargedesk/internal/aggregate"
	"github.com/Veraticus/chargedesk/internal/duplicate"
	"github.com/Veraticus/chargedesk/internal/engine"
	"github.com/Veraticus/chargedesk/internal/model"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestPrompterAsk(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   string
		want  string
	}{
		{name: "answer", input: "Jane Roe\n", want: "Jane Roe"},
		{name: "trimmed", input: "  29.00  \n", want: "29.00"},
		{name: "default on empty", input: "\n", def: "Optimum", want: "Optimum"},
		{name: "last line without newline", input: "ORD-9", want: "ORD-9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)

			got, err := p.Ask(context.Background(), "Field", tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Field")
		})
	}
}

func TestPrompterSequentialReads(t *testing.T) {
	p := NewPrompter(strings.NewReader("one\ntwo\n"), nil)
	ctx := context.Background()

	first, err := p.ReadLine(ctx)
	require.NoError(t, err)
	second, err := p.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, []string{first, second})

	_, err = p.ReadLine(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestPrompterCancellation(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pr.Close() }()
	defer func() { _ = pw.Close() }()

	p := NewPrompter(pr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.ReadLine(ctx)
	assert.Equal(t, ErrInputCancelled, err)
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "maybe\n", want: false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			p := NewPrompter(strings.NewReader(tt.input), nil)
			got, err := p.Confirm(context.Background(), "Delete?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterruptMessage(t *testing.T) {
	tests := []struct {
		name        string
		resumeHint  string
		expected    []string
		notExpected []string
	}{
		{
			name:       "with resume hint",
			resumeHint: "desk cache push",
			expected:   []string{"Push interrupted!", "Resume with: desk cache push"},
		},
		{
			name:        "without resume hint",
			expected:    []string{"Push interrupted!"},
			notExpected: []string{"Resume with"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			handler := &InterruptHandler{writer: &output, operation: "Push", resumeHint: tt.resumeHint}

			handler.showInterruptMessage()

			for _, s := range tt.expected {
				assert.Contains(t, output.String(), s)
			}
			for _, s := range tt.notExpected {
				assert.NotContains(t, output.String(), s)
			}
		})
	}
}

func TestInterruptCancelsOnce(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	ctx := handler.HandleInterrupts(context.Background(), "Push", "")
	handler.interrupt()
	handler.interrupt()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not canceled")
	}
	assert.True(t, handler.WasInterrupted())
	assert.Equal(t, 1, strings.Count(output.String(), "Push interrupted!"))
}

func testRecord(id string, position int) model.Record {
	return model.Record{
		ID:        id,
		Agent:     "Ali",
		Charge:    "$29.00",
		Status:    model.StatusPending,
		CreatedAt: time.Date(2024, 3, 10, 21, 5, 0, 0, time.UTC),
		Client:    model.Client{Name: "Jane Roe"},
		Position:  position,
	}
}

func TestRenderRecords(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderRecords(&out, []model.Record{testRecord("ORD-1", 2), testRecord("ORD-2", 3)}))

	text := out.String()
	assert.Contains(t, text, "ORDER ID")
	assert.Contains(t, text, "ORD-1")
	assert.Contains(t, text, "ORD-2")
	assert.Contains(t, text, "Mar 10 09:05 PM")

	out.Reset()
	require.NoError(t, RenderRecords(&out, nil))
	assert.Contains(t, out.String(), "No records.")
}

func TestRenderRecord(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderRecord(&out, testRecord("ORD-1", 2)))
	assert.Contains(t, out.String(), "Order ORD-1")
	assert.Contains(t, out.String(), "Jane Roe")
}

func TestRenderTotal(t *testing.T) {
	var out bytes.Buffer
	total := engine.Total{
		Amount:    decimal.RequireFromString("1234.5"),
		Count:     3,
		Malformed: 1,
		Start:     time.Date(2024, 3, 10, 19, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 3, 11, 6, 0, 0, 0, time.UTC),
	}
	require.NoError(t, RenderTotal(&out, "Night shift", total))

	text := out.String()
	assert.Contains(t, text, "$1,234.50")
	assert.Contains(t, text, "all agents")
	assert.Contains(t, text, "unreadable charge")
}

func TestRenderAggregates(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderHourly(&out, []aggregate.HourTotal{{Hour: 7, Count: 2, Total: decimal.NewFromInt(50)}}))
	assert.Contains(t, out.String(), "07:00")
	assert.Contains(t, out.String(), "$50.00")

	out.Reset()
	require.NoError(t, RenderAgents(&out, []aggregate.AgentTotal{{Agent: "Sara", Count: 1, Total: decimal.NewFromInt(1000)}}))
	assert.Contains(t, out.String(), "Sara")
	assert.Contains(t, out.String(), "$1,000.00")

	out.Reset()
	require.NoError(t, RenderDuplicates(&out, []duplicate.Group{{ID: "A1", Records: []model.Record{testRecord("A1", 2), testRecord("A1", 5)}}}))
	assert.Contains(t, out.String(), "2, 5")

	out.Reset()
	require.NoError(t, RenderDuplicates(&out, nil))
	assert.Contains(t, out.String(), "No duplicate order IDs.")
}

func TestProgressBar(t *testing.T) {
	var out syncBuffer
	bar := NewProgressBar(&out, 2, "Pushing records...")
	step := Stepper(bar)
	step()
	step()

	assert.True(t, bar.IsFinished())
	assert.NotEmpty(t, out.String())
}
