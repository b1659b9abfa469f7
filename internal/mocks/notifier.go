package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/scry-concepts/internal/events"
)

// MockNotifier implements events.Notifier and records every notification.
type MockNotifier struct {
	NotifyFn func(ctx context.Context, n events.Notification) error

	mu       sync.Mutex
	received []events.Notification
}

// Notify implements events.Notifier.
func (m *MockNotifier) Notify(ctx context.Context, n events.Notification) error {
	m.mu.Lock()
	m.received = append(m.received, n)
	m.mu.Unlock()
	if m.NotifyFn != nil {
		return m.NotifyFn(ctx, n)
	}
	return nil
}

// Notifications returns the recorded notifications in delivery order.
func (m *MockNotifier) Notifications() []events.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Notification(nil), m.received...)
}

// Last returns the most recent notification, if any.
func (m *MockNotifier) Last() (events.Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.received) == 0 {
		return events.Notification{}, false
	}
	return m.received[len(m.received)-1], true
}

// Messages returns the message of every recorded notification.
func (m *MockNotifier) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.received))
	for i, n := range m.received {
		out[i] = n.Message
	}
	return out
}

// Reset forgets recorded notifications.
func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = nil
}
