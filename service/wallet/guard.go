package wallet

import (
	"fmt"
	"sync"
)

// Guard admits at most one in-flight operation per custodian account.
// A second caller is rejected, not queued.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]string
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]string)}
}

// Acquire claims account for operation. The returned release func must be
// called exactly once when the operation ends.
func (g *Guard) Acquire(account, operation string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if running, ok := g.inFlight[account]; ok {
		return nil, fmt.Errorf("%w: %s already in progress for %s", ErrWorkflowBusy, running, account)
	}
	g.inFlight[account] = operation

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, account)
			g.mu.Unlock()
		})
	}, nil
}

// Busy reports the operation holding account, if any.
func (g *Guard) Busy(account string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	op, ok := g.inFlight[account]
	return op, ok
}
