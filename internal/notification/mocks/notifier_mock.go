package mocks

import (
	"sync"

	"github.com/example/ec-admin-sync/internal/notification"
)

// MockNotifier records every notification it receives
type MockNotifier struct {
	mu    sync.Mutex
	calls []notification.Notification
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(n notification.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, n)
}

// Calls returns a copy of the recorded notifications
func (m *MockNotifier) Calls() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notification.Notification, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Last returns the most recent notification, if any
func (m *MockNotifier) Last() (notification.Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return notification.Notification{}, false
	}
	return m.calls[len(m.calls)-1], true
}

func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
