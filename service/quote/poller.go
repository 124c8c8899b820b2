package quote

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/solwallet/service/metrics"
)

// DefaultInterval is how often the active pair is re-quoted.
const DefaultInterval = 10 * time.Second

// Poller keeps the latest quote for one active Params. Update switches the
// pair and fetches immediately; a single timer then refetches every
// interval. Responses for a superseded pair are discarded.
type Poller struct {
	source   Source
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu         sync.Mutex
	generation uint64
	active     *Params
	latest     *Quote
	lastErr    error
	cancel     context.CancelFunc
	stopped    bool
	subs       map[int]chan Quote
	nextSub    int
	wg         sync.WaitGroup
}

// NewPoller creates an idle poller. Nothing is fetched until Update.
func NewPoller(source Source, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		source:   source,
		interval: interval,
		metrics:  m,
		logger:   logger,
		subs:     make(map[int]chan Quote),
	}
}

// ErrStopped is returned by Update after Stop.
var ErrStopped = errors.New("poller stopped")

// Update makes p the active pair. The previous timer is cancelled and any
// quote for the previous pair is forgotten.
func (pl *Poller) Update(p Params) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.stopped {
		return ErrStopped
	}
	if pl.cancel != nil {
		pl.cancel()
	}

	pl.generation++
	params := p
	pl.active = &params
	pl.latest = nil
	pl.lastErr = nil

	ctx, cancel := context.WithCancel(context.Background())
	pl.cancel = cancel
	pl.wg.Add(1)
	go pl.loop(ctx, pl.generation, params)

	pl.logger.Debug("quote pair updated", "pair", params.Key(), "generation", pl.generation)
	return nil
}

// Stop cancels the timer and closes subscriber channels. When Stop returns
// no further state change or notification happens.
func (pl *Poller) Stop() {
	pl.mu.Lock()
	if pl.stopped {
		pl.mu.Unlock()
		return
	}
	pl.stopped = true
	pl.generation++
	if pl.cancel != nil {
		pl.cancel()
	}
	pl.mu.Unlock()

	pl.wg.Wait()

	pl.mu.Lock()
	for id, ch := range pl.subs {
		close(ch)
		delete(pl.subs, id)
	}
	pl.mu.Unlock()
}

// Latest returns the newest quote for the active pair.
func (pl *Poller) Latest() (Quote, bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.latest == nil {
		return Quote{}, false
	}
	return *pl.latest, true
}

// LastError returns the error of the most recent failed tick for the active
// pair, cleared by the next success.
func (pl *Poller) LastError() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.lastErr
}

// Active returns the active pair.
func (pl *Poller) Active() (Params, bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.active == nil {
		return Params{}, false
	}
	return *pl.active, true
}

// Subscribe returns a channel receiving every accepted quote. A slow reader
// only ever sees the newest quote. The channel is closed by Stop or by the
// returned cancel func.
func (pl *Poller) Subscribe() (<-chan Quote, func()) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	ch := make(chan Quote, 1)
	if pl.stopped {
		close(ch)
		return ch, func() {}
	}
	id := pl.nextSub
	pl.nextSub++
	pl.subs[id] = ch

	return ch, func() {
		pl.mu.Lock()
		defer pl.mu.Unlock()
		if c, ok := pl.subs[id]; ok {
			close(c)
			delete(pl.subs, id)
		}
	}
}

func (pl *Poller) loop(ctx context.Context, gen uint64, p Params) {
	defer pl.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		pl.tick(ctx, gen, p)
		timer.Reset(pl.interval)
	}
}

func (pl *Poller) tick(ctx context.Context, gen uint64, p Params) {
	q, err := pl.source.Fetch(ctx, p)
	if ctx.Err() != nil {
		return
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	if gen != pl.generation || pl.stopped || pl.active == nil || pl.active.Key() != p.Key() {
		if pl.metrics != nil {
			pl.metrics.RecordQuoteDiscarded(pl.source.Name())
		}
		pl.logger.Debug("discarding quote for superseded pair", "pair", p.Key())
		return
	}

	if err != nil {
		pl.lastErr = err
		pl.logger.Warn("quote refresh failed, keeping last quote", "pair", p.Key(), "error", err)
		return
	}

	pl.latest = &q
	pl.lastErr = nil
	for _, ch := range pl.subs {
		select {
		case ch <- q:
		default:
			// Replace the unread quote with the newer one.
			select {
			case <-ch:
			default:
			}
			ch <- q
		}
	}
}
