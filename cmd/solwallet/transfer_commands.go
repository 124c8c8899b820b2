package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/brojonat/solwallet/client"
	"github.com/brojonat/solwallet/service/wallet"
	"github.com/urfave/cli/v2"
)

func transferCommands() *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Native SOL transfer commands",
		Subcommands: []*cli.Command{
			transferSendCommand(),
		},
	}
}

// operationFlags are shared by commands that start an operation.
func operationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "local",
			Usage: "Run in-process with --keypair instead of through the server",
		},
		&cli.BoolFlag{
			Name:  "wait",
			Usage: "Wait for the operation to finish (server mode)",
			Value: true,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to wait for the operation",
			Value: 5 * time.Minute,
		},
		&cli.DurationFlag{
			Name:  "poll-interval",
			Usage: "How often to check operation status while waiting",
			Value: client.DefaultPollInterval,
		},
	}
}

func transferSendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send SOL from the custodian account",
		ArgsUsage: "RECIPIENT AMOUNT",
		Description: `Transfer native SOL. AMOUNT is in SOL (e.g. 0.25).

Example:
  solwallet transfer send 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin 0.25`,
		Flags: operationFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("recipient and amount are required")
			}
			to, amount := c.Args().Get(0), c.Args().Get(1)

			p, err := newPrinter(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			if c.Bool("local") {
				rt, err := newLocalRuntime(c)
				if err != nil {
					return err
				}
				status := rt.transfers.SendTransfer(ctx, wallet.TransferRequest{To: to, Amount: amount})
				return printStatus(p, statusFromWallet(status))
			}

			cl := newClient(c)
			ref, err := cl.SendTransfer(ctx, to, amount)
			if err != nil {
				return fmt.Errorf("failed to start transfer: %w", err)
			}
			return finishOperation(ctx, c, p, cl, ref)
		},
	}
}

// finishOperation prints the ref, or waits and prints the outcome.
func finishOperation(ctx context.Context, c *cli.Context, p *printer, cl *client.Client, ref *client.OperationRef) error {
	if !c.Bool("wait") {
		return p.print(ref, func(w io.Writer) {
			fmt.Fprintf(w, "✓ Operation started\n")
			fmt.Fprintf(w, "  Workflow ID: %s\n", ref.WorkflowID)
			fmt.Fprintf(w, "  Run ID:      %s\n", ref.RunID)
		})
	}

	status, err := cl.AwaitOperation(ctx, *ref, c.Duration("poll-interval"))
	if err != nil {
		return fmt.Errorf("failed waiting for %s: %w", ref.WorkflowID, err)
	}
	return printStatus(p, *status)
}

func statusFromWallet(s wallet.Status) client.Status {
	return client.Status{
		Operation:        s.Operation,
		State:            string(s.State),
		Kind:             string(s.Kind),
		Cause:            s.Cause,
		Signature:        s.Signature,
		Signatures:       s.Signatures,
		Mint:             s.Mint,
		DependentAccount: s.DependentAccount,
		Amount:           s.Amount,
		BaseUnits:        s.BaseUnits,
	}
}

// printStatus prints s and returns an error when the operation failed so
// the process exits non-zero.
func printStatus(p *printer, s client.Status) error {
	err := p.print(s, func(w io.Writer) {
		if s.Succeeded() {
			fmt.Fprintf(w, "✓ %s succeeded\n", s.Operation)
		} else {
			fmt.Fprintf(w, "✗ %s %s\n", s.Operation, s.State)
			if s.Kind != "" {
				fmt.Fprintf(w, "  Kind:      %s\n", s.Kind)
			}
			if s.Cause != "" {
				fmt.Fprintf(w, "  Cause:     %s\n", s.Cause)
			}
		}
		if s.Mint != "" {
			fmt.Fprintf(w, "  Mint:      %s\n", s.Mint)
		}
		if s.DependentAccount != "" {
			fmt.Fprintf(w, "  Account:   %s\n", s.DependentAccount)
		}
		if s.Amount != "" {
			fmt.Fprintf(w, "  Amount:    %s\n", s.Amount)
		}
		for _, sig := range s.Signatures {
			fmt.Fprintf(w, "  Signature: %s\n", sig)
		}
		if len(s.Signatures) == 0 && s.Signature != "" {
			fmt.Fprintf(w, "  Signature: %s\n", s.Signature)
		}
	})
	if err != nil {
		return err
	}
	if !s.Succeeded() {
		return fmt.Errorf("%s %s: %s", s.Operation, s.State, s.Kind)
	}
	return nil
}
