package server

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/brojonat/solwallet/service/quote"
	"github.com/brojonat/solwallet/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const (
	qrCodeSize  = 256
	memoPrefix  = "solwallet:"
	payLabel    = "solwallet"
	maxMemoSize = 120
)

// ReceiveRequest describes a payment to the custodian that a wallet app can
// scan or open.
type ReceiveRequest struct {
	ID         string    `json:"id"`
	Recipient  string    `json:"recipient"`
	Network    string    `json:"network"`
	Amount     string    `json:"amount,omitempty"` // display units
	SPLToken   string    `json:"spl_token,omitempty"`
	Memo       string    `json:"memo"`
	PaymentURL string    `json:"payment_url"` // Solana Pay URL for wallet apps
	QRCodeData string    `json:"qr_code_data,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// newReceiveRequest builds a receive request. amount may be empty, in which
// case the payer chooses it.
func newReceiveRequest(recipient solanago.PublicKey, network string, amount *solana.Amount, splToken *solanago.PublicKey, message string) ReceiveRequest {
	id := uuid.New().String()
	req := ReceiveRequest{
		ID:        id,
		Recipient: recipient.String(),
		Network:   network,
		Memo:      memoPrefix + id,
		CreatedAt: time.Now(),
	}
	if amount != nil {
		req.Amount = amount.String()
	}
	if splToken != nil {
		req.SPLToken = splToken.String()
	}
	req.PaymentURL = buildSolanaPayURL(req.Recipient, req.Amount, req.SPLToken, req.Memo, message)
	return req
}

// buildSolanaPayURL creates a Solana Pay transfer request URL.
// Format: solana:{recipient}?amount={amount}&spl-token={mint}&memo={memo}&label={label}&message={message}
func buildSolanaPayURL(recipient, amount, splToken, memo, message string) string {
	params := url.Values{}
	if amount != "" {
		params.Set("amount", amount)
	}
	if splToken != "" {
		params.Set("spl-token", splToken)
	}
	params.Set("memo", memo)
	params.Set("label", payLabel)
	if message != "" {
		params.Set("message", message)
	}
	return fmt.Sprintf("solana:%s?%s", recipient, params.Encode())
}

// generateQRCode renders data as a PNG QR code.
func generateQRCode(data string) ([]byte, error) {
	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(qrCodeSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code as PNG: %w", err)
	}
	return png, nil
}

// handleReceive returns a handler that builds a receive request for the
// custodian. With format=png the QR code image is returned directly.
// GET /api/v1/receive?amount=1.5&spl-token=MINT&message=TEXT&format=png
func handleReceive(custodian solanago.PublicKey, assets *quote.Registry, network string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		decimals := solana.NativeDecimals
		var splToken *solanago.PublicKey
		if mint := query.Get("spl-token"); mint != "" {
			key, err := parseAddressParam(mint)
			if err != nil {
				writeError(w, "invalid spl-token: "+err.Error(), http.StatusBadRequest)
				return
			}
			splToken = &key
			// Unknown mints are validated at the widest precision.
			decimals = solana.MaxMintDecimals
			if asset, err := assets.Resolve(key.String()); err == nil {
				decimals = asset.Decimals
			}
		}

		var amount *solana.Amount
		if raw := query.Get("amount"); raw != "" {
			a, err := solana.ParseAmount(raw, decimals)
			if err != nil || a.IsZero() {
				writeError(w, "invalid amount: must be a positive decimal", http.StatusBadRequest)
				return
			}
			amount = &a
		}

		message := query.Get("message")
		if len(message) > maxMemoSize {
			writeError(w, fmt.Sprintf("message too long: maximum length is %d characters", maxMemoSize), http.StatusBadRequest)
			return
		}

		req := newReceiveRequest(custodian, network, amount, splToken, message)
		png, err := generateQRCode(req.PaymentURL)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to generate QR code", "error", err)
			writeError(w, "failed to generate QR code", http.StatusInternalServerError)
			return
		}

		if query.Get("format") == "png" {
			w.Header().Set("Content-Type", "image/png")
			w.WriteHeader(http.StatusOK)
			w.Write(png)
			return
		}

		req.QRCodeData = base64.StdEncoding.EncodeToString(png)
		logger.DebugContext(r.Context(), "receive request created", "id", req.ID, "amount", req.Amount, "spl_token", req.SPLToken)
		writeJSON(w, req, http.StatusOK)
	})
}
