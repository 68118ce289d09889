package notification

import (
	"context"
)

// MockDispatcher records dispatched messages for test assertions.
type MockDispatcher struct {
	// DispatchFunc allows customizing dispatch behavior per test.
	DispatchFunc func(ctx context.Context, msg Message) error

	// Messages stores every dispatched message in order.
	Messages []Message
}

// NewMockDispatcher creates a mock dispatcher.
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{Messages: []Message{}}
}

var _ Dispatcher = (*MockDispatcher)(nil)

// Dispatch records the message.
func (m *MockDispatcher) Dispatch(ctx context.Context, msg Message) error {
	m.Messages = append(m.Messages, msg)
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, msg)
	}
	return nil
}
