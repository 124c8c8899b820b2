package main

import (
	"fmt"
	"io"
	"time"

	"github.com/brojonat/solwallet/client"
	natspkg "github.com/brojonat/solwallet/service/nats"
	"github.com/itchyny/gojq"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// compileFilters compiles jq predicates; an event matches only when every
// predicate yields true.
func compileFilters(exprs []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, 0, len(exprs))
	for _, expr := range exprs {
		code, err := compileJQ(expr)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func matchesAll(codes []*gojq.Code, v interface{}) bool {
	if len(codes) == 0 {
		return true
	}
	input, err := toJQInput(v)
	if err != nil {
		return false
	}
	for _, code := range codes {
		result, ok := code.Run(input).Next()
		if !ok {
			return false
		}
		if b, ok := result.(bool); !ok || !b {
			return false
		}
	}
	return true
}

func printEvent(w io.Writer, e *client.OperationEvent) {
	line := fmt.Sprintf("[%s] %s", e.Timestamp.Format(time.RFC3339), e.Operation)
	if e.Phase != "" {
		line += "/" + e.Phase
	}
	line += " " + e.State
	if e.OperationID != "" {
		line += " id=" + e.OperationID
	}
	if e.Signature != "" {
		line += " sig=" + e.Signature
	}
	if e.Mint != "" {
		line += " mint=" + e.Mint
	}
	if e.Kind != "" {
		line += fmt.Sprintf(" kind=%s cause=%q", e.Kind, e.Cause)
	}
	fmt.Fprintln(w, line)
}

func fromNATSEvent(e *natspkg.OperationEvent) *client.OperationEvent {
	return &client.OperationEvent{
		OperationID: e.OperationID,
		Operation:   e.Operation,
		Phase:       e.Phase,
		State:       e.State,
		Terminal:    e.Terminal,
		Signature:   e.Signature,
		Mint:        e.Mint,
		Kind:        e.Kind,
		Cause:       e.Cause,
		Timestamp:   e.Timestamp,
		PublishedAt: e.PublishedAt,
	}
}

var filterFlag = &cli.StringSliceFlag{
	Name:  "filter",
	Usage: "jq predicate an event must satisfy (repeatable), e.g. '.state == \"failed\"'",
}

// subscribeCommand consumes operation events directly from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to operation events in NATS",
		ArgsUsage: "[operation]",
		Description: `Stream operation events published to NATS JetStream.

Events are published to the subject ops.{operation}. Without an argument
every operation is included.

Example:
  solwallet events subscribe transfer --filter '.terminal'`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Replay retained events before new ones",
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (used with --durable)",
				Value: "solwallet-cli",
			},
			filterFlag,
		},
		Action: func(c *cli.Context) error {
			filters, err := compileFilters(c.StringSlice("filter"))
			if err != nil {
				return err
			}
			p, err := newPrinter(c)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(c)
			defer cancel()

			nc, err := natspkg.Connect(c.String("nats-url"), "solwallet-cli")
			if err != nil {
				return err
			}
			defer nc.Close()
			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			opts := natspkg.ConsumeOptions{
				FilterSubject: natspkg.OperationSubject(c.Args().First()),
				DeliverAll:    c.Bool("all"),
			}
			if c.Bool("durable") {
				opts.Durable = c.String("consumer-name")
			}

			if !jsonOutput(c) {
				fmt.Fprintf(c.App.ErrWriter, "Subscribed to %s (Ctrl+C to stop)\n", opts.FilterSubject)
			}

			return natspkg.ConsumeOperations(ctx, js, opts, newLogger(c), func(e *natspkg.OperationEvent) {
				event := fromNATSEvent(e)
				if !matchesAll(filters, event) {
					return
				}
				if err := p.print(event, func(w io.Writer) { printEvent(w, event) }); err != nil {
					fmt.Fprintln(c.App.ErrWriter, err)
				}
			})
		},
	}
}

// streamOperationsCommand reads operation events from the server's SSE endpoint.
func streamOperationsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Stream operation events from the server",
		ArgsUsage: "[operation]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "workflow-id",
				Usage: "Only events for this operation",
			},
			&cli.BoolFlag{
				Name:  "until-terminal",
				Usage: "Exit after the first terminal event",
			},
			filterFlag,
		},
		Action: func(c *cli.Context) error {
			filters, err := compileFilters(c.StringSlice("filter"))
			if err != nil {
				return err
			}
			p, err := newPrinter(c)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(c)
			defer cancel()

			untilTerminal := c.Bool("until-terminal")
			var printErr error
			err = newClient(c).StreamOperations(ctx, c.Args().First(), c.String("workflow-id"), func(e *client.OperationEvent) bool {
				if !matchesAll(filters, e) {
					return true
				}
				if printErr = p.print(e, func(w io.Writer) { printEvent(w, e) }); printErr != nil {
					return false
				}
				return !(untilTerminal && e.Terminal)
			})
			if printErr != nil {
				return printErr
			}
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("operation stream failed: %w", err)
			}
			return nil
		},
	}
}
