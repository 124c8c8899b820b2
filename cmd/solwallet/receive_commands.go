package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v2"
)

func receiveCommand() *cli.Command {
	return &cli.Command{
		Name:      "receive",
		Usage:     "Create a Solana Pay request to fund the custodian account",
		ArgsUsage: "[AMOUNT]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "token",
				Aliases: []string{"t"},
				Usage:   "SPL token mint to request instead of SOL",
			},
			&cli.StringFlag{
				Name:    "message",
				Aliases: []string{"m"},
				Usage:   "Message shown in the payer's wallet",
			},
			&cli.StringFlag{
				Name:  "qr",
				Usage: "Write the QR code PNG to this file",
			},
			&cli.BoolFlag{
				Name:  "terminal",
				Usage: "Render the QR code in the terminal",
			},
		},
		Action: func(c *cli.Context) error {
			p, err := newPrinter(c)
			if err != nil {
				return err
			}

			req, err := newClient(c).Receive(c.Context, c.Args().First(), c.String("token"), c.String("message"))
			if err != nil {
				return fmt.Errorf("failed to create receive request: %w", err)
			}

			if path := c.String("qr"); path != "" {
				png, err := base64.StdEncoding.DecodeString(req.QRCodeData)
				if err != nil {
					return fmt.Errorf("failed to decode QR code: %w", err)
				}
				if err := os.WriteFile(path, png, 0o644); err != nil {
					return fmt.Errorf("failed to write QR code: %w", err)
				}
			}

			return p.print(req, func(w io.Writer) {
				fmt.Fprintf(w, "Recipient: %s (%s)\n", req.Recipient, req.Network)
				if req.Amount != "" {
					fmt.Fprintf(w, "Amount:    %s\n", req.Amount)
				}
				if req.SPLToken != "" {
					fmt.Fprintf(w, "Token:     %s\n", req.SPLToken)
				}
				fmt.Fprintf(w, "Memo:      %s\n", req.Memo)
				fmt.Fprintf(w, "URL:       %s\n", req.PaymentURL)
				if c.String("qr") != "" {
					fmt.Fprintf(w, "QR code:   %s\n", c.String("qr"))
				}
				if c.Bool("terminal") {
					if code, err := qrcode.New(req.PaymentURL, qrcode.Medium); err == nil {
						fmt.Fprintln(w, code.ToString(false))
					}
				}
			})
		},
	}
}
