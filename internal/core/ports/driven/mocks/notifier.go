package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
)

var _ driven.Notifier = (*MockNotifier)(nil)

// Message is one recorded delivery
type Message struct {
	Handle string
	Text   string
}

// MockNotifier records deliveries
type MockNotifier struct {
	mu       sync.Mutex
	messages []Message

	NotifyFn func(handle, text string) error
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, handle, text string) error {
	if m.NotifyFn != nil {
		if err := m.NotifyFn(handle, text); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, Message{Handle: handle, Text: text})
	return nil
}

func (m *MockNotifier) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}
