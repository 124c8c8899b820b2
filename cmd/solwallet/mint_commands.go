package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/brojonat/solwallet/client"
	"github.com/brojonat/solwallet/service/wallet"
	"github.com/urfave/cli/v2"
)

func mintCommands() *cli.Command {
	return &cli.Command{
		Name:  "mint",
		Usage: "Token mint commands",
		Subcommands: []*cli.Command{
			mintCreateCommand(),
			mintIssueCommand(),
			mintListCommand(),
			mintGetCommand(),
		},
	}
}

func mintCreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a token mint and issue its initial supply to the custodian",
		ArgsUsage: "NAME SYMBOL",
		Flags: append(operationFlags(),
			&cli.IntFlag{
				Name:    "decimals",
				Aliases: []string{"d"},
				Usage:   "Token precision (0-9)",
				Value:   9,
			},
			&cli.Uint64Flag{
				Name:  "supply",
				Usage: "Initial supply in whole tokens",
			},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("name and symbol are required")
			}
			req := wallet.MintRequest{
				Name:          c.Args().Get(0),
				Symbol:        c.Args().Get(1),
				Decimals:      c.Int("decimals"),
				InitialSupply: c.Uint64("supply"),
			}

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
				return printStatus(p, statusFromWallet(rt.mints.CreateAndIssueMint(ctx, req)))
			}

			cl := newClient(c)
			ref, err := cl.CreateMint(ctx, req.Name, req.Symbol, req.Decimals, req.InitialSupply)
			if err != nil {
				return fmt.Errorf("failed to start mint: %w", err)
			}
			return finishOperation(ctx, c, p, cl, ref)
		},
	}
}

func mintIssueCommand() *cli.Command {
	return &cli.Command{
		Name:      "issue",
		Usage:     "Issue more supply of an existing mint to the custodian",
		ArgsUsage: "MINT AMOUNT",
		Flags: append(operationFlags(),
			&cli.IntFlag{
				Name:    "decimals",
				Aliases: []string{"d"},
				Usage:   "Expected mint precision; the issue fails if it differs",
			},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("mint and amount are required")
			}
			amount, err := strconv.ParseUint(c.Args().Get(1), 10, 64)
			if err != nil {
				return fmt.Errorf("amount must be a whole number of tokens: %w", err)
			}
			req := wallet.IssueRequest{Mint: c.Args().Get(0), Amount: amount}
			if c.IsSet("decimals") {
				d := c.Int("decimals")
				req.Decimals = &d
			}

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
				return printStatus(p, statusFromWallet(rt.mints.IssueSupply(ctx, req)))
			}

			cl := newClient(c)
			ref, err := cl.IssueSupply(ctx, req.Mint, req.Amount, req.Decimals)
			if err != nil {
				return fmt.Errorf("failed to start issue: %w", err)
			}
			return finishOperation(ctx, c, p, cl, ref)
		},
	}
}

func mintListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List registered mints",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of mints",
				Value: 50,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of mints to skip",
			},
		},
		Action: func(c *cli.Context) error {
			p, err := newPrinter(c)
			if err != nil {
				return err
			}
			mints, err := newClient(c).ListMints(c.Context, c.String("network"), c.Int("limit"), c.Int("offset"))
			if err != nil {
				return fmt.Errorf("failed to list mints: %w", err)
			}
			return p.print(mints, func(w io.Writer) {
				printMintTable(w, mints)
			})
		},
	}
}

func mintGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a registered mint",
		ArgsUsage: "MINT",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("mint address is required")
			}
			p, err := newPrinter(c)
			if err != nil {
				return err
			}
			m, err := newClient(c).GetMint(c.Context, c.Args().Get(0), c.String("network"))
			if err != nil {
				if client.IsNotFound(err) {
					return fmt.Errorf("mint %s not found on %s", c.Args().Get(0), c.String("network"))
				}
				return fmt.Errorf("failed to get mint: %w", err)
			}
			return p.print(m, func(w io.Writer) {
				fmt.Fprintf(w, "Mint:       %s\n", m.Address)
				fmt.Fprintf(w, "Network:    %s\n", m.Network)
				fmt.Fprintf(w, "Name:       %s (%s)\n", m.Name, m.Symbol)
				fmt.Fprintf(w, "Decimals:   %d\n", m.Decimals)
				fmt.Fprintf(w, "Authority:  %s\n", m.Authority)
				fmt.Fprintf(w, "Issued:     %d (%s)\n", m.IssuedSupply, m.IssueState)
				fmt.Fprintf(w, "Created:    %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))
			})
		},
	}
}

func printMintTable(w io.Writer, mints []*client.Mint) {
	if len(mints) == 0 {
		fmt.Fprintln(w, "No mints found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tSYMBOL\tDECIMALS\tISSUED\tSTATE\tCREATED")
	for _, m := range mints {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			m.Address, m.Symbol, m.Decimals, m.IssuedSupply, m.IssueState, m.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	tw.Flush()
}
