package custodian

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/go-resty/resty/v2"
)

// RemoteCustodian delegates signing to an HTTP signing service.
//
//	GET  /v1/session  -> {"address": "<base58>"}       404 when no session
//	POST /v1/sign     {"transaction": "<base64>"} -> {"transaction": "<base64>"}
//	                  403 denied, 422 unsupported
//
// Sign has no timeout of its own; the service may wait for a human.
type RemoteCustodian struct {
	client *resty.Client
	logger *slog.Logger
}

type sessionResponse struct {
	Address string `json:"address"`
}

type signPayload struct {
	Transaction string `json:"transaction"`
}

type remoteError struct {
	Error string `json:"error"`
}

// NewRemoteCustodian creates a client for the signing service at baseURL.
// If httpClient is nil, a default client without a timeout is used.
func NewRemoteCustodian(baseURL string, httpClient *http.Client, logger *slog.Logger) *RemoteCustodian {
	if logger == nil {
		logger = slog.Default()
	}
	var rc *resty.Client
	if httpClient != nil {
		rc = resty.NewWithClient(httpClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "solwallet")
	return &RemoteCustodian{client: rc, logger: logger}
}

func (r *RemoteCustodian) Name() string { return "remote" }

func (r *RemoteCustodian) ActiveAddress(ctx context.Context) (solanago.PublicKey, bool) {
	var out sessionResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v1/session")
	if err != nil {
		r.logger.WarnContext(ctx, "custodian session lookup failed", "error", err)
		return solanago.PublicKey{}, false
	}
	if resp.IsError() {
		if resp.StatusCode() != http.StatusNotFound {
			r.logger.WarnContext(ctx, "custodian session lookup failed", "status", resp.StatusCode())
		}
		return solanago.PublicKey{}, false
	}

	pk, err := solanago.PublicKeyFromBase58(out.Address)
	if err != nil {
		r.logger.WarnContext(ctx, "custodian returned invalid address", "address", out.Address, "error", err)
		return solanago.PublicKey{}, false
	}
	return pk, true
}

func (r *RemoteCustodian) Sign(ctx context.Context, tx *solanago.Transaction) (*solanago.Transaction, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}

	var (
		out    signPayload
		errOut remoteError
	)
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(signPayload{Transaction: base64.StdEncoding.EncodeToString(raw)}).
		SetResult(&out).
		SetError(&errOut).
		Post("/v1/sign")
	if err != nil {
		return nil, fmt.Errorf("custodian request failed: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusForbidden || resp.StatusCode() == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", ErrSigningDenied, errOut.Error)
	case resp.StatusCode() == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", ErrSigningUnsupported, errOut.Error)
	case resp.IsError():
		return nil, fmt.Errorf("custodian returned status %d: %s", resp.StatusCode(), errOut.Error)
	}

	signed, err := base64.StdEncoding.DecodeString(out.Transaction)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signed transaction: %w", err)
	}
	result, err := solanago.TransactionFromDecoder(bin.NewBinDecoder(signed))
	if err != nil {
		return nil, fmt.Errorf("failed to decode signed transaction: %w", err)
	}
	return result, nil
}
