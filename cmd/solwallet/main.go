package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "solwallet",
		Usage: "Solana custodial wallet CLI",
		Description: `A command-line tool for the solwallet service.

Operations run through the HTTP API by default. Pass --local to run a
transfer or mint in-process against an RPC endpoint with a keypair file.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			transferCommands(),
			mintCommands(),
			quoteCommands(),
			accountCommands(),
			operationCommands(),
			receiveCommand(),
			// NATS event streaming commands
			{
				Name:  "events",
				Usage: "Operation event streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					streamOperationsCommand(),
				},
			},
			// Database commands
			{
				Name:  "db",
				Usage: "Database commands",
				Subcommands: []*cli.Command{
					migrateCommand(),
					listMintsDBCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: globalFlags(),
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server-url",
			Aliases: []string{"s"},
			Usage:   "solwallet server URL",
			EnvVars: []string{"SOLWALLET_SERVER_URL", "SERVER_URL"},
			Value:   "http://localhost:8080",
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "nats-url",
			Usage:   "NATS server URL",
			EnvVars: []string{"NATS_URL"},
			Value:   "nats://localhost:4222",
		},
		&cli.StringFlag{
			Name:    "network",
			Usage:   "Solana network (devnet or mainnet)",
			EnvVars: []string{"SOLANA_NETWORK"},
			Value:   "devnet",
		},
		&cli.StringFlag{
			Name:    "rpc-url",
			Usage:   "Solana RPC URL for local commands (defaults to the network's public endpoint)",
			EnvVars: []string{"SOLANA_RPC_URL"},
		},
		&cli.StringFlag{
			Name:    "keypair",
			Aliases: []string{"k"},
			Usage:   "Keypair file for local operations",
			EnvVars: []string{"CUSTODIAN_KEYPAIR_PATH"},
		},
		&cli.StringFlag{
			Name:    "quote-url",
			Usage:   "Quote API URL for local quote commands",
			EnvVars: []string{"QUOTE_API_URL"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level for diagnostics on stderr",
			EnvVars: []string{"LOG_LEVEL"},
			Value:   "error",
		},
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Output in JSON format",
		},
		&cli.StringFlag{
			Name:  "jq",
			Usage: "jq expression applied to JSON output (implies --json)",
		},
	}
}
