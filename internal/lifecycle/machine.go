package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/chargedesk/internal/common"
	"github.com/Veraticus/chargedesk/internal/metrics"
	"github.com/Veraticus/chargedesk/internal/model"
	"github.com/Veraticus/chargedesk/internal/service"
)

// Notification titles.
const (
	TitleApproved  = "Transaction Approved"
	TitleDeclined  = "Transaction Declined"
	TitleSubmitted = "New Client Entry Submitted"
)

const blankValue = "Nil"

// Machine couples a Policy with the notifications that follow a transition.
type Machine struct {
	notifier service.Notifier
	logger   *slog.Logger
	Policy   Policy
}

// NewMachine creates a machine. A nil notifier disables notifications.
func NewMachine(policy Policy, notifier service.Notifier, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{Policy: policy, notifier: notifier, logger: logger}
}

// Transition validates and applies a status change. It does not notify; the
// caller calls Announce once the new status has been stored.
func (m *Machine) Transition(rec model.Record, to model.Status) (model.Record, error) {
	return m.Policy.Apply(rec, to)
}

// Announce sends the notification for a record that has just reached its
// current status. Delivery failures are logged and returned for inspection
// but must not be treated as a failed action.
func (m *Machine) Announce(ctx context.Context, from model.Status, rec model.Record) *common.NotifyIOError {
	metrics.Transitions.WithLabelValues(from.String(), rec.Status.String()).Inc()

	var title string
	switch rec.Status {
	case model.StatusCharged:
		title = TitleApproved
	case model.StatusDeclined:
		title = TitleDeclined
	default:
		return nil
	}
	return m.Send(ctx, title, TransactionBody(rec))
}

// Send delivers one notification, swallowing and reporting failures.
func (m *Machine) Send(ctx context.Context, title, body string) *common.NotifyIOError {
	if m.notifier == nil {
		return nil
	}
	if err := m.notifier.Notify(ctx, title, body); err != nil {
		metrics.NotifyFailures.Inc()
		m.logger.Warn("Notification failed", "title", title, "error", err)
		return &common.NotifyIOError{Title: title, Err: err}
	}
	m.logger.Debug("Notification sent", "title", title)
	return nil
}

// TransactionBody renders the approval/decline message body.
func TransactionBody(rec model.Record) string {
	lines := []struct{ label, value string }{
		{"Charge", rec.Charge},
		{"Client Name", rec.Client.Name},
		{"Phone Number", rec.Client.Phone},
		{"Address", rec.Client.Address},
		{"Email", rec.Client.Email},
		{"Provider", rec.Field(model.ColumnProvider)},
	}
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", l.label, orNil(l.value))
	}
	return b.String()
}

// SubmissionBody renders the message sent when an agent submits a record.
func SubmissionBody(rec model.Record) string {
	return fmt.Sprintf("Agent: %s\nOrder ID: %s\nClient Name: %s\nCharge: %s",
		orNil(rec.Agent), orNil(rec.ID), orNil(rec.Client.Name), orNil(rec.Charge))
}

func orNil(v string) string {
	if strings.TrimSpace(v) == "" {
		return blankValue
	}
	return v
}
