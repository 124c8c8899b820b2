package nats

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/solwallet/service/quote"
	"github.com/brojonat/solwallet/service/wallet"
)

// publishTimeout bounds a single publish made on behalf of a workflow so
// a slow broker never stalls an operation.
const publishTimeout = 2 * time.Second

// OperationObserver publishes every workflow transition. Publish failures
// are logged and dropped.
type OperationObserver struct {
	publisher Publisher
	logger    *slog.Logger
}

var _ wallet.Observer = (*OperationObserver)(nil)

// NewOperationObserver wraps publisher as a wallet.Observer.
func NewOperationObserver(publisher Publisher, logger *slog.Logger) *OperationObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationObserver{publisher: publisher, logger: logger}
}

func (o *OperationObserver) OnTransition(ctx context.Context, e wallet.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := o.publisher.PublishOperation(ctx, FromWalletEvent(e)); err != nil {
		o.logger.WarnContext(ctx, "failed to publish operation event",
			"operation", e.Operation,
			"operation_id", e.OperationID,
			"state", e.State,
			"error", err,
		)
	}
}

// RelayQuotes publishes every quote accepted by the poller until ctx is
// done or the poller stops.
func RelayQuotes(ctx context.Context, poller *quote.Poller, publisher Publisher, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	quotes, unsubscribe := poller.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-quotes:
			if !ok {
				return
			}
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			if err := publisher.PublishQuote(pctx, FromQuote(q)); err != nil {
				logger.WarnContext(ctx, "failed to publish quote event",
					"pair", q.Params.Key(),
					"error", err,
				)
			}
			cancel()
		}
	}
}
