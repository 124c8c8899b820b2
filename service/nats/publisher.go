package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solwallet/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher publishes wallet events to NATS.
type Publisher interface {
	// PublishOperation publishes a workflow transition to "ops.{operation}".
	PublishOperation(ctx context.Context, event *OperationEvent) error

	// PublishQuote publishes an accepted quote to "quotes.{from}.{to}".
	PublishQuote(ctx context.Context, event *QuoteEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes wallet events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

const (
	// StreamName is the JetStream stream holding wallet events.
	StreamName = "WALLETOPS"

	OperationSubjectPrefix = "ops."
	QuoteSubjectPrefix     = "quotes."

	// OperationSubjects matches every operation event.
	OperationSubjects = "ops.>"
	// QuoteSubjects matches every quote event.
	QuoteSubjects = "quotes.>"

	// StreamRetention is how long events are kept.
	StreamRetention = 7 * 24 * time.Hour
)

// Connect dials NATS with the reconnect settings every component uses.
func Connect(natsURL, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NewPublisher connects to NATS and ensures the stream exists.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := Connect(natsURL, "solwallet-publisher")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := EnsureStream(ctx, js, logger); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// EnsureStream creates the wallet event stream if it doesn't exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) error {
	stream, err := js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	logger.Info("creating JetStream stream", "stream", StreamName)

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Wallet operation transitions and quote updates",
		Subjects:    []string{OperationSubjects, QuoteSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	logger.Info("JetStream stream created", "stream", StreamName)
	return nil
}

// PublishOperation publishes a workflow transition.
func (p *JetStreamPublisher) PublishOperation(ctx context.Context, event *OperationEvent) error {
	if err := p.publish(ctx, "ops", event.Subject(), event); err != nil {
		return fmt.Errorf("failed to publish operation event: %w", err)
	}
	p.logger.DebugContext(ctx, "published operation event",
		"subject", event.Subject(),
		"operation_id", event.OperationID,
		"state", event.State,
	)
	return nil
}

// PublishQuote publishes an accepted quote.
func (p *JetStreamPublisher) PublishQuote(ctx context.Context, event *QuoteEvent) error {
	if err := p.publish(ctx, "quotes", event.Subject(), event); err != nil {
		return fmt.Errorf("failed to publish quote event: %w", err)
	}
	return nil
}

func (p *JetStreamPublisher) publish(ctx context.Context, family, subject string, v any) error {
	start := time.Now()
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = p.js.Publish(ctx, subject, data)
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(family, status, time.Since(start).Seconds())
	}
	return err
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}

// JetStream exposes the underlying context for consumers sharing the
// publisher's connection.
func (p *JetStreamPublisher) JetStream() jetstream.JetStream {
	return p.js
}
