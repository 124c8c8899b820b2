package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	operationEvents []*OperationEvent
	quoteEvents     []*QuoteEvent
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishOperation records the event and returns any configured error.
func (m *MockPublisher) PublishOperation(ctx context.Context, event *OperationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.operationEvents = append(m.operationEvents, event)
	return nil
}

// PublishQuote records the event and returns any configured error.
func (m *MockPublisher) PublishQuote(ctx context.Context, event *QuoteEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.quoteEvents = append(m.quoteEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetOperationEvents returns a copy of the published operation events.
func (m *MockPublisher) GetOperationEvents() []*OperationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]*OperationEvent, len(m.operationEvents))
	copy(events, m.operationEvents)
	return events
}

// GetOperationEventsFor returns events published for one operation ID.
func (m *MockPublisher) GetOperationEventsFor(operationID string) []*OperationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []*OperationEvent
	for _, event := range m.operationEvents {
		if event.OperationID == operationID {
			events = append(events, event)
		}
	}
	return events
}

// GetQuoteEvents returns a copy of the published quote events.
func (m *MockPublisher) GetQuoteEvents() []*QuoteEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]*QuoteEvent, len(m.quoteEvents))
	copy(events, m.quoteEvents)
	return events
}

// SetPublishError makes every publish fail with err.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// Reset clears all published events and errors.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operationEvents = nil
	m.quoteEvents = nil
	m.publishError = nil
	m.closed = false
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
