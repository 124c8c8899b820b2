package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/brojonat/solwallet/client"
	"github.com/urfave/cli/v2"
)

func operationCommands() *cli.Command {
	return &cli.Command{
		Name:    "op",
		Aliases: []string{"operation"},
		Usage:   "Operation status commands",
		Subcommands: []*cli.Command{
			operationStatusCommand(),
			operationAwaitCommand(),
		},
	}
}

func operationStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the state of an operation",
		ArgsUsage: "WORKFLOW_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Specific run (defaults to the latest)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("workflow ID is required")
			}
			p, err := newPrinter(c)
			if err != nil {
				return err
			}
			state, err := newClient(c).Operation(c.Context, c.Args().Get(0), c.String("run-id"))
			if err != nil {
				if client.IsNotFound(err) {
					return fmt.Errorf("operation %s not found", c.Args().Get(0))
				}
				return fmt.Errorf("failed to get operation: %w", err)
			}
			return p.print(state, func(w io.Writer) {
				fmt.Fprintf(w, "Workflow ID: %s\n", state.WorkflowID)
				fmt.Fprintf(w, "Run ID:      %s\n", state.RunID)
				fmt.Fprintf(w, "Operation:   %s\n", state.Operation)
				fmt.Fprintf(w, "Started:     %s\n", state.StartedAt.Format(time.RFC3339))
				if state.Running {
					fmt.Fprintf(w, "State:       running\n")
					return
				}
				if state.ClosedAt != nil {
					fmt.Fprintf(w, "Closed:      %s\n", state.ClosedAt.Format(time.RFC3339))
				}
				if s := state.Status; s != nil {
					fmt.Fprintf(w, "State:       %s\n", s.State)
					if s.Kind != "" {
						fmt.Fprintf(w, "Kind:        %s\n", s.Kind)
					}
					if s.Cause != "" {
						fmt.Fprintf(w, "Cause:       %s\n", s.Cause)
					}
					if s.Signature != "" {
						fmt.Fprintf(w, "Signature:   %s\n", s.Signature)
					}
					if s.Mint != "" {
						fmt.Fprintf(w, "Mint:        %s\n", s.Mint)
					}
				}
			})
		},
	}
}

func operationAwaitCommand() *cli.Command {
	return &cli.Command{
		Name:      "await",
		Usage:     "Wait for an operation to finish and print its outcome",
		ArgsUsage: "WORKFLOW_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Specific run (defaults to the latest)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait",
				Value: 5 * time.Minute,
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "How often to check",
				Value: client.DefaultPollInterval,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("workflow ID is required")
			}
			p, err := newPrinter(c)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			ref := client.OperationRef{WorkflowID: c.Args().Get(0), RunID: c.String("run-id")}
			status, err := newClient(c).AwaitOperation(ctx, ref, c.Duration("poll-interval"))
			if err != nil {
				return fmt.Errorf("failed waiting for %s: %w", ref.WorkflowID, err)
			}
			return printStatus(p, *status)
		},
	}
}
