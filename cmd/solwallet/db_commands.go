package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/brojonat/solwallet/client"
	"github.com/brojonat/solwallet/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the database schema",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Migrate(c.Context); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
			fmt.Fprintln(c.App.Writer, "✓ Schema is up to date")
			return nil
		},
	}
}

func listMintsDBCommand() *cli.Command {
	return &cli.Command{
		Name:    "mints",
		Usage:   "List mints straight from the database",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of mints",
				Value: 100,
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
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			rows, err := store.ListMints(c.Context, db.ListMintsParams{
				Network: c.String("network"),
				Limit:   int32(c.Int("limit")),
				Offset:  int32(c.Int("offset")),
			})
			if err != nil {
				return fmt.Errorf("failed to list mints: %w", err)
			}

			mints := make([]*client.Mint, 0, len(rows))
			for _, m := range rows {
				mints = append(mints, &client.Mint{
					Address:         m.Address,
					Network:         m.Network,
					Name:            m.Name,
					Symbol:          m.Symbol,
					Decimals:        m.Decimals,
					Authority:       m.Authority,
					CreateSignature: m.CreateSignature,
					IssuedSupply:    m.IssuedSupply,
					IssueState:      m.IssueState,
					CreatedAt:       m.CreatedAt,
					UpdatedAt:       m.UpdatedAt,
				})
			}

			return p.print(mints, func(w io.Writer) {
				printMintTable(w, mints)
				fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d mints\n", len(mints))
			})
		},
	}
}

func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db.NewStore(pool), pool.Close, nil
}
