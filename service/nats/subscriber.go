package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
)

// ConsumeOptions selects which events a consumer receives.
type ConsumeOptions struct {
	// FilterSubject defaults to every operation event.
	FilterSubject string
	// DeliverAll replays retained events instead of only new ones.
	DeliverAll bool
	// Durable names a consumer that survives restarts. Empty means ephemeral.
	Durable string
}

// OperationSubject returns the filter for one operation name, or every
// operation when name is empty.
func OperationSubject(name string) string {
	if name == "" {
		return OperationSubjects
	}
	return OperationSubjectPrefix + subjectToken(name)
}

// ConsumeOperations delivers decoded operation events to fn until ctx is
// done. Messages that fail to decode are acked and skipped.
func ConsumeOperations(ctx context.Context, js jetstream.JetStream, opts ConsumeOptions, logger *slog.Logger, fn func(*OperationEvent)) error {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FilterSubject == "" {
		opts.FilterSubject = OperationSubjects
	}

	cfg := jetstream.ConsumerConfig{
		Durable:       opts.Durable,
		FilterSubject: opts.FilterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}
	if opts.DeliverAll {
		cfg.DeliverPolicy = jetstream.DeliverAllPolicy
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, StreamName, cfg)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		var event OperationEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			logger.WarnContext(ctx, "skipping malformed operation event",
				"subject", msg.Subject(),
				"error", err,
			)
			_ = msg.Ack()
			return
		}
		fn(&event)
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer cc.Stop()

	<-ctx.Done()
	return nil
}
