package main

import (
	"fmt"
	"io"
	"time"

	"github.com/brojonat/solwallet/client"
	"github.com/brojonat/solwallet/service/quote"
	"github.com/urfave/cli/v2"
)

func quoteCommands() *cli.Command {
	return &cli.Command{
		Name:  "quote",
		Usage: "Conversion quote commands",
		Subcommands: []*cli.Command{
			quoteGetCommand(),
			quoteWatchCommand(),
			quoteStreamCommand(),
		},
	}
}

func quoteArgs(c *cli.Context) (from, to, amount string, err error) {
	if c.NArg() != 3 {
		return "", "", "", fmt.Errorf("from, to and amount are required (e.g. SOL USDC 1.5)")
	}
	return c.Args().Get(0), c.Args().Get(1), c.Args().Get(2), nil
}

// fromSourceQuote converts a locally fetched quote to the API shape so both
// paths print the same way.
func fromSourceQuote(q quote.Quote) client.Quote {
	return client.Quote{
		From:           q.Params.From.Symbol,
		To:             q.Params.To.Symbol,
		FromMint:       q.Params.From.Mint.String(),
		ToMint:         q.Params.To.Mint.String(),
		InAmount:       q.InAmount.String(),
		OutAmount:      q.OutAmount.String(),
		MinOutAmount:   q.MinOutAmount.String(),
		Price:          q.Price(),
		PriceImpactPct: q.PriceImpactPct,
		SlippageBps:    q.SlippageBps,
		Route:          q.RouteLabels,
		Source:         q.Source,
		FetchedAt:      q.FetchedAt,
	}
}

func printQuote(w io.Writer, q *client.Quote) {
	fmt.Fprintf(w, "%s %s → %s %s (min %s, price %s) via %s at %s\n",
		q.InAmount, q.From, q.OutAmount, q.To, q.MinOutAmount, q.Price, q.Source,
		q.FetchedAt.Format(time.RFC3339))
}

func newLocalSource(c *cli.Context) quote.Source {
	return quote.NewJupiterSource(c.String("quote-url"), c.Int("slippage-bps"), nil, nil, newLogger(c))
}

func quoteGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Fetch a single quote",
		ArgsUsage: "FROM TO AMOUNT",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "local",
				Usage: "Query the quote API directly instead of the server",
			},
			&cli.IntFlag{
				Name:  "slippage-bps",
				Usage: "Slippage tolerance for local quotes",
				Value: quote.DefaultSlippageBps,
			},
		},
		Action: func(c *cli.Context) error {
			from, to, amount, err := quoteArgs(c)
			if err != nil {
				return err
			}
			p, err := newPrinter(c)
			if err != nil {
				return err
			}

			var q *client.Quote
			if c.Bool("local") {
				params, err := quote.NewParams(quote.DefaultRegistry(), from, to, amount)
				if err != nil {
					return err
				}
				fetched, err := newLocalSource(c).Fetch(c.Context, params)
				if err != nil {
					return fmt.Errorf("failed to fetch quote: %w", err)
				}
				converted := fromSourceQuote(fetched)
				q = &converted
			} else {
				q, err = newClient(c).GetQuote(c.Context, from, to, amount)
				if err != nil {
					return fmt.Errorf("failed to fetch quote: %w", err)
				}
			}
			return p.print(q, func(w io.Writer) { printQuote(w, q) })
		},
	}
}

func quoteWatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Poll the quote API locally and print each new quote",
		ArgsUsage: "FROM TO AMOUNT",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Polling interval",
				Value:   quote.DefaultInterval,
			},
			&cli.IntFlag{
				Name:  "slippage-bps",
				Usage: "Slippage tolerance",
				Value: quote.DefaultSlippageBps,
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Stop after this many quotes (0 = until interrupted)",
			},
		},
		Action: func(c *cli.Context) error {
			from, to, amount, err := quoteArgs(c)
			if err != nil {
				return err
			}
			params, err := quote.NewParams(quote.DefaultRegistry(), from, to, amount)
			if err != nil {
				return err
			}
			p, err := newPrinter(c)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(c)
			defer cancel()

			poller := quote.NewPoller(newLocalSource(c), c.Duration("interval"), nil, newLogger(c))
			defer poller.Stop()
			updates, unsubscribe := poller.Subscribe()
			defer unsubscribe()
			if err := poller.Update(params); err != nil {
				return err
			}

			limit := c.Int("count")
			seen := 0
			for {
				select {
				case <-ctx.Done():
					return nil
				case q, ok := <-updates:
					if !ok {
						return nil
					}
					converted := fromSourceQuote(q)
					if err := p.print(converted, func(w io.Writer) { printQuote(w, &converted) }); err != nil {
						return err
					}
					seen++
					if limit > 0 && seen >= limit {
						return nil
					}
				}
			}
		},
	}
}

func quoteStreamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Stream live quotes from the server",
		ArgsUsage: "FROM TO AMOUNT",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Stop after this many quotes (0 = until interrupted)",
			},
		},
		Action: func(c *cli.Context) error {
			from, to, amount, err := quoteArgs(c)
			if err != nil {
				return err
			}
			p, err := newPrinter(c)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(c)
			defer cancel()

			limit := c.Int("count")
			seen := 0
			var printErr error
			err = newClient(c).StreamQuotes(ctx, from, to, amount, func(q *client.Quote) bool {
				if printErr = p.print(q, func(w io.Writer) { printQuote(w, q) }); printErr != nil {
					return false
				}
				seen++
				return limit == 0 || seen < limit
			})
			if printErr != nil {
				return printErr
			}
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("quote stream failed: %w", err)
			}
			return nil
		},
	}
}
