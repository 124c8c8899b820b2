package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/brojonat/solwallet/service/db"
	"github.com/brojonat/solwallet/service/quote"
	"github.com/brojonat/solwallet/service/solana"
	"github.com/brojonat/solwallet/service/temporal"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer
	maxNameLength      = 32
	maxSymbolLength    = 10
	defaultListLimit   = 50
	maxListLimit       = 500
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// handleStartTransfer returns a handler that starts a transfer workflow.
// POST /api/v1/transfers {"to": ADDRESS, "amount": "0.5"}
func handleStartTransfer(ops temporal.Operations, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req temporal.TransferInput
		if !decodeBody(w, r, &req, logger) {
			return
		}

		if err := validateAddress(req.To); err != nil {
			writeError(w, "invalid to: "+err.Error(), http.StatusBadRequest)
			return
		}
		amount, err := solana.ParseAmount(req.Amount, solana.NativeDecimals)
		if err != nil || amount.IsZero() {
			writeError(w, "invalid amount: must be a positive SOL amount", http.StatusBadRequest)
			return
		}

		ref, err := ops.StartTransfer(r.Context(), req)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to start transfer", "to", req.To, "error", err)
			writeError(w, "failed to start transfer", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "transfer started",
			"workflow_id", ref.WorkflowID,
			"to", req.To,
			"amount", amount.String(),
		)
		writeJSON(w, ref, http.StatusAccepted)
	})
}

// handleStartMint returns a handler that starts a mint workflow.
// POST /api/v1/mints {"name", "symbol", "decimals", "initial_supply"}
func handleStartMint(ops temporal.Operations, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req temporal.MintInput
		if !decodeBody(w, r, &req, logger) {
			return
		}

		if err := validateMintInput(req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		ref, err := ops.StartMint(r.Context(), req)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to start mint", "symbol", req.Symbol, "error", err)
			writeError(w, "failed to start mint", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "mint started",
			"workflow_id", ref.WorkflowID,
			"symbol", req.Symbol,
			"initial_supply", req.InitialSupply,
		)
		writeJSON(w, ref, http.StatusAccepted)
	})
}

// handleStartIssue returns a handler that issues supply of an existing mint.
// POST /api/v1/mints/{mint}/issue {"amount": N, "decimals": D}
func handleStartIssue(ops temporal.Operations, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mint := r.PathValue("mint")
		if err := validateAddress(mint); err != nil {
			writeError(w, "invalid mint: "+err.Error(), http.StatusBadRequest)
			return
		}

		var req struct {
			Amount   uint64 `json:"amount"`
			Decimals *int   `json:"decimals,omitempty"`
		}
		if !decodeBody(w, r, &req, logger) {
			return
		}
		if req.Amount == 0 {
			writeError(w, "amount must be greater than zero", http.StatusBadRequest)
			return
		}
		if req.Decimals != nil && (*req.Decimals < 0 || *req.Decimals > solana.MaxMintDecimals) {
			writeError(w, fmt.Sprintf("decimals must be between 0 and %d", solana.MaxMintDecimals), http.StatusBadRequest)
			return
		}

		input := temporal.IssueInput{Mint: mint, Amount: req.Amount, Decimals: req.Decimals}
		ref, err := ops.StartIssue(r.Context(), input)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to start issue", "mint", mint, "error", err)
			writeError(w, "failed to start issue", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "issue started", "workflow_id", ref.WorkflowID, "mint", mint)
		writeJSON(w, ref, http.StatusAccepted)
	})
}

// handleOperationStatus returns a handler that reports an operation's state.
// GET /api/v1/operations/{workflow_id}?run_id=RUN
func handleOperationStatus(ops temporal.Operations, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workflowID := r.PathValue("workflow_id")
		if workflowID == "" || len(workflowID) > 200 {
			writeError(w, "invalid workflow_id", http.StatusBadRequest)
			return
		}

		state, err := ops.OperationStatus(r.Context(), workflowID, r.URL.Query().Get("run_id"))
		if errors.Is(err, temporal.ErrOperationNotFound) {
			writeError(w, "operation not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get operation status", "workflow_id", workflowID, "error", err)
			writeError(w, "failed to get operation status", http.StatusInternalServerError)
			return
		}

		writeJSON(w, state, http.StatusOK)
	})
}

// mintResponse represents a mint in API responses.
type mintResponse struct {
	Address         string    `json:"address"`
	Network         string    `json:"network"`
	Name            string    `json:"name"`
	Symbol          string    `json:"symbol"`
	Decimals        uint8     `json:"decimals"`
	Authority       string    `json:"authority"`
	CreateSignature string    `json:"create_signature"`
	IssuedSupply    uint64    `json:"issued_supply"`
	IssueState      string    `json:"issue_state"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func mintToResponse(m *db.Mint) mintResponse {
	return mintResponse{
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
	}
}

// handleListMints returns a handler that lists registered mints.
// GET /api/v1/mints?network=devnet&limit=N&offset=N
func handleListMints(store MintStore, defaultNetwork string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		network := query.Get("network")
		if network == "" {
			network = defaultNetwork
		}
		if err := validateNetwork(network); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		limit, err := parseQueryInt(query.Get("limit"), defaultListLimit)
		if err != nil || limit < 1 || limit > maxListLimit {
			writeError(w, fmt.Sprintf("limit must be between 1 and %d", maxListLimit), http.StatusBadRequest)
			return
		}
		offset, err := parseQueryInt(query.Get("offset"), 0)
		if err != nil || offset < 0 {
			writeError(w, "offset must be non-negative", http.StatusBadRequest)
			return
		}

		mints, err := store.ListMints(r.Context(), db.ListMintsParams{
			Network: network,
			Limit:   int32(limit),
			Offset:  int32(offset),
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list mints", "network", network, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]mintResponse, len(mints))
		for i, m := range mints {
			resp[i] = mintToResponse(m)
		}

		writeJSON(w, map[string]interface{}{
			"network": network,
			"mints":   resp,
			"count":   len(resp),
			"limit":   limit,
			"offset":  offset,
		}, http.StatusOK)
	})
}

// handleGetMint returns a handler that retrieves one mint.
// GET /api/v1/mints/{mint}?network=devnet
func handleGetMint(store MintStore, defaultNetwork string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("mint")
		if err := validateAddress(address); err != nil {
			writeError(w, "invalid mint: "+err.Error(), http.StatusBadRequest)
			return
		}
		network := r.URL.Query().Get("network")
		if network == "" {
			network = defaultNetwork
		}
		if err := validateNetwork(network); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		mint, err := store.GetMint(r.Context(), address, network)
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, "mint not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get mint", "mint", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, mintToResponse(mint), http.StatusOK)
	})
}

// handleDependentAccount returns a handler that derives the associated token
// account of an owner for a mint and reports whether it exists.
// GET /api/v1/accounts/{owner}/dependent/{mint}
func handleDependentAccount(accounts AccountChecker, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, err := parseAddressParam(r.PathValue("owner"))
		if err != nil {
			writeError(w, "invalid owner: "+err.Error(), http.StatusBadRequest)
			return
		}
		mint, err := parseAddressParam(r.PathValue("mint"))
		if err != nil {
			writeError(w, "invalid mint: "+err.Error(), http.StatusBadRequest)
			return
		}

		address, err := solana.DeriveDependentAccount(mint, owner)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		needs, err := accounts.NeedsCreation(r.Context(), address)
		if err != nil {
			logger.WarnContext(r.Context(), "failed to look up dependent account", "address", address.String(), "error", err)
			writeError(w, "failed to look up account", statusForError(err))
			return
		}

		writeJSON(w, map[string]interface{}{
			"owner":   owner.String(),
			"mint":    mint.String(),
			"address": address.String(),
			"exists":  !needs,
		}, http.StatusOK)
	})
}

// quoteResponse flattens a quote for API clients.
type quoteResponse struct {
	From           string    `json:"from"`
	To             string    `json:"to"`
	FromMint       string    `json:"from_mint"`
	ToMint         string    `json:"to_mint"`
	InAmount       string    `json:"in_amount"`
	OutAmount      string    `json:"out_amount"`
	MinOutAmount   string    `json:"min_out_amount"`
	Price          string    `json:"price"`
	PriceImpactPct string    `json:"price_impact_pct,omitempty"`
	SlippageBps    int       `json:"slippage_bps"`
	Route          []string  `json:"route,omitempty"`
	Source         string    `json:"source"`
	FetchedAt      time.Time `json:"fetched_at"`
}

func quoteToResponse(q quote.Quote) quoteResponse {
	return quoteResponse{
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

// handleGetQuote returns a handler that fetches a single quote.
// GET /api/v1/quotes?from=SOL&to=USDC&amount=1.5
func handleGetQuote(source quote.Source, assets *quote.Registry, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, err := quoteParams(r, assets)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		q, err := source.Fetch(r.Context(), params)
		if err != nil {
			logger.WarnContext(r.Context(), "quote fetch failed", "pair", params.Key(), "error", err)
			writeError(w, err.Error(), statusForError(err))
			return
		}
		writeJSON(w, quoteToResponse(q), http.StatusOK)
	})
}

func quoteParams(r *http.Request, assets *quote.Registry) (quote.Params, error) {
	query := r.URL.Query()
	from := query.Get("from")
	to := query.Get("to")
	amount := query.Get("amount")
	if from == "" || to == "" || amount == "" {
		return quote.Params{}, errors.New("from, to and amount are required")
	}
	return quote.NewParams(assets, from, to, amount)
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, solana.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, solana.ErrNetworkUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, solana.ErrRejectedByNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a size-limited JSON request body, writing the error
// response itself when decoding fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.DebugContext(r.Context(), "failed to decode request", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates an address for format before it is decoded.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	if _, err := solana.ParseAddress(address); err != nil {
		return errorf("invalid address: not a valid public key")
	}

	return nil
}

func parseAddressParam(s string) (solanago.PublicKey, error) {
	if err := validateAddress(s); err != nil {
		return solanago.PublicKey{}, err
	}
	return solana.ParseAddress(s)
}

// validateNetwork validates a network parameter.
func validateNetwork(network string) error {
	if network != "mainnet" && network != "devnet" {
		return errorf("invalid network: must be 'mainnet' or 'devnet'")
	}
	return nil
}

func validateMintInput(in temporal.MintInput) error {
	name := strings.TrimSpace(in.Name)
	symbol := strings.TrimSpace(in.Symbol)
	switch {
	case name == "":
		return errorf("name is required")
	case len(name) > maxNameLength:
		return errorf("name too long: maximum length is %d characters", maxNameLength)
	case symbol == "":
		return errorf("symbol is required")
	case len(symbol) > maxSymbolLength:
		return errorf("symbol too long: maximum length is %d characters", maxSymbolLength)
	case in.Decimals < 0 || in.Decimals > solana.MaxMintDecimals:
		return errorf("decimals must be between 0 and %d", solana.MaxMintDecimals)
	}
	return nil
}

func parseQueryInt(value string, defaultValue int) (int, error) {
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
