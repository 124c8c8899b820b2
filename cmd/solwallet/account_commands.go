package main

import (
	"fmt"
	"io"

	"github.com/brojonat/solwallet/client"
	"github.com/brojonat/solwallet/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

func accountCommands() *cli.Command {
	return &cli.Command{
		Name:  "account",
		Usage: "Account inspection commands",
		Subcommands: []*cli.Command{
			accountDeriveCommand(),
			accountLookupCommand(),
			accountDependentCommand(),
		},
	}
}

func parseOwnerAndMint(c *cli.Context) (solanago.PublicKey, solanago.PublicKey, error) {
	if c.NArg() != 2 {
		return solanago.PublicKey{}, solanago.PublicKey{}, fmt.Errorf("owner and mint are required")
	}
	owner, err := solana.ParseAddress(c.Args().Get(0))
	if err != nil {
		return solanago.PublicKey{}, solanago.PublicKey{}, fmt.Errorf("invalid owner: %w", err)
	}
	mint, err := solana.ParseAddress(c.Args().Get(1))
	if err != nil {
		return solanago.PublicKey{}, solanago.PublicKey{}, fmt.Errorf("invalid mint: %w", err)
	}
	return owner, mint, nil
}

func printDependent(w io.Writer, d *client.DependentAccount) {
	fmt.Fprintf(w, "Owner:   %s\n", d.Owner)
	fmt.Fprintf(w, "Mint:    %s\n", d.Mint)
	fmt.Fprintf(w, "Account: %s\n", d.Address)
	if d.Exists {
		fmt.Fprintf(w, "Exists:  yes\n")
	} else {
		fmt.Fprintf(w, "Exists:  no (created on first transfer)\n")
	}
}

func accountDeriveCommand() *cli.Command {
	return &cli.Command{
		Name:      "derive",
		Usage:     "Derive an owner's token account for a mint (offline)",
		ArgsUsage: "OWNER MINT",
		Action: func(c *cli.Context) error {
			owner, mint, err := parseOwnerAndMint(c)
			if err != nil {
				return err
			}
			p, err := newPrinter(c)
			if err != nil {
				return err
			}
			addr, err := solana.DeriveDependentAccount(mint, owner)
			if err != nil {
				return fmt.Errorf("failed to derive account: %w", err)
			}
			out := map[string]string{
				"owner":   owner.String(),
				"mint":    mint.String(),
				"address": addr.String(),
			}
			return p.print(out, func(w io.Writer) {
				fmt.Fprintln(w, addr.String())
			})
		},
	}
}

func accountDependentCommand() *cli.Command {
	return &cli.Command{
		Name:      "dependent",
		Usage:     "Resolve an owner's token account through the server, including whether it exists",
		ArgsUsage: "OWNER MINT",
		Action: func(c *cli.Context) error {
			owner, mint, err := parseOwnerAndMint(c)
			if err != nil {
				return err
			}
			p, err := newPrinter(c)
			if err != nil {
				return err
			}
			d, err := newClient(c).DependentAccount(c.Context, owner.String(), mint.String())
			if err != nil {
				return fmt.Errorf("failed to resolve account: %w", err)
			}
			return p.print(d, func(w io.Writer) { printDependent(w, d) })
		},
	}
}

// accountView is what lookup prints; Mint is set for token mint accounts.
type accountView struct {
	Address  string           `json:"address"`
	Exists   bool             `json:"exists"`
	Lamports uint64           `json:"lamports,omitempty"`
	SOL      string           `json:"sol,omitempty"`
	Owner    string           `json:"owner,omitempty"`
	Mint     *solana.MintInfo `json:"mint,omitempty"`
}

func accountLookupCommand() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "Look up an account over RPC",
		ArgsUsage: "ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("address is required")
			}
			addr, err := solana.ParseAddress(c.Args().Get(0))
			if err != nil {
				return err
			}
			p, err := newPrinter(c)
			if err != nil {
				return err
			}
			ledger, err := newLedger(c, newLogger(c))
			if err != nil {
				return err
			}

			info, err := ledger.LookupAccount(c.Context, addr)
			if err != nil {
				return fmt.Errorf("failed to look up account: %w", err)
			}
			view := accountView{Address: addr.String(), Exists: info != nil}
			if info != nil {
				view.Lamports = info.Lamports
				view.SOL = solana.Amount{BaseUnits: info.Lamports, Decimals: solana.NativeDecimals}.String()
				view.Owner = info.Owner.String()
				if info.Owner.Equals(solanago.TokenProgramID) {
					if m, err := solana.DecodeMint(info); err == nil {
						view.Mint = m
					}
				}
			}

			return p.print(view, func(w io.Writer) {
				fmt.Fprintf(w, "Address:  %s\n", view.Address)
				if !view.Exists {
					fmt.Fprintf(w, "Exists:   no\n")
					return
				}
				fmt.Fprintf(w, "Balance:  %s SOL\n", view.SOL)
				fmt.Fprintf(w, "Owner:    %s\n", view.Owner)
				if view.Mint != nil {
					fmt.Fprintf(w, "Supply:   %d\n", view.Mint.Supply)
					fmt.Fprintf(w, "Decimals: %d\n", view.Mint.Decimals)
					if view.Mint.MintAuthority != nil {
						fmt.Fprintf(w, "Authority: %s\n", view.Mint.MintAuthority.String())
					}
				}
			})
		},
	}
}
