// Package notify delivers push notifications about desk activity.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Veraticus/chargedesk/internal/service"
)

// Fanout sends every notification to all of its notifiers. One failing
// notifier does not stop the others; their errors are joined.
type Fanout []service.Notifier

// Notify implements service.Notifier.
func (f Fanout) Notify(ctx context.Context, title, body string) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes notifications to a logger instead of a device. It is the
// fallback when no push service is configured.
type Log struct {
	Logger *slog.Logger
}

// Notify implements service.Notifier.
func (l Log) Notify(_ context.Context, title, body string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Notification", "title", title, "body", body)
	return nil
}

// Message is one notification captured by Mock.
type Message struct {
	Title string
	Body  string
}

// Mock records notifications for tests.
type Mock struct {
	err      error
	messages []Message
	mu       sync.Mutex
}

// NewMock creates a mock notifier.
func NewMock() *Mock {
	return &Mock{}
}

// Notify implements service.Notifier. The message is recorded even when a
// failure is configured.
func (m *Mock) Notify(_ context.Context, title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, Message{Title: title, Body: body})
	return m.err
}

// SetError makes later calls fail with err.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Messages returns a copy of the recorded notifications.
func (m *Mock) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

// Titles returns the titles of the recorded notifications in order.
func (m *Mock) Titles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	titles := make([]string, len(m.messages))
	for i, msg := range m.messages {
		titles[i] = msg.Title
	}
	return titles
}

// Reset clears recorded notifications and any configured failure.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	m.err = nil
}
