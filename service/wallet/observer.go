package wallet

import (
	"context"
	"time"
)

// Event is a single lifecycle transition of an operation.
type Event struct {
	OperationID string    `json:"operation_id,omitempty"`
	Operation   string    `json:"operation"`
	Phase       string    `json:"phase,omitempty"`
	State       State     `json:"state"`
	Signature   string    `json:"signature,omitempty"`
	Mint        string    `json:"mint,omitempty"`
	Kind        Kind      `json:"kind,omitempty"`
	Cause       string    `json:"cause,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Observer receives every transition. Implementations must not block for long.
type Observer interface {
	OnTransition(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) OnTransition(ctx context.Context, e Event) { f(ctx, e) }

type nopObserver struct{}

func (nopObserver) OnTransition(context.Context, Event) {}

// Observers fans a transition out to several observers in order.
type Observers []Observer

func (o Observers) OnTransition(ctx context.Context, e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.OnTransition(ctx, e)
		}
	}
}

type operationIDKey struct{}

// WithOperationID tags events emitted under ctx with id.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationIDKey{}, id)
}

// OperationID returns the id set by WithOperationID.
func OperationID(ctx context.Context) string {
	id, _ := ctx.Value(operationIDKey{}).(string)
	return id
}
