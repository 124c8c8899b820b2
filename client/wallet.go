package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Operation states and the failure kind reported when the custodian is busy.
const (
	StateSucceeded   = "succeeded"
	StateFailed      = "failed"
	KindWorkflowBusy = "workflow_busy"
)

// DefaultPollInterval is how often AwaitOperation checks a running operation.
const DefaultPollInterval = 2 * time.Second

// OperationRef identifies a started operation.
type OperationRef struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// Status is the terminal outcome of an operation.
type Status struct {
	Operation        string   `json:"operation"`
	State            string   `json:"state"`
	Kind             string   `json:"kind,omitempty"`
	Cause            string   `json:"cause,omitempty"`
	Signature        string   `json:"signature,omitempty"`
	Signatures       []string `json:"signatures,omitempty"`
	Mint             string   `json:"mint,omitempty"`
	DependentAccount string   `json:"dependent_account,omitempty"`
	Amount           string   `json:"amount,omitempty"`
	BaseUnits        uint64   `json:"base_units,omitempty"`
}

// Succeeded reports whether the operation completed.
func (s Status) Succeeded() bool {
	return s.State == StateSucceeded
}

// Terminal reports whether the operation has finished either way.
func (s Status) Terminal() bool {
	return s.State == StateSucceeded || s.State == StateFailed
}

// OperationState is the server's view of an operation.
type OperationState struct {
	WorkflowID string     `json:"workflow_id"`
	RunID      string     `json:"run_id"`
	Operation  string     `json:"operation"`
	Running    bool       `json:"running"`
	StartedAt  time.Time  `json:"started_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	Status     *Status    `json:"status,omitempty"`
}

// Done reports whether the operation has a terminal status.
func (s *OperationState) Done() bool {
	return !s.Running && s.Status != nil && s.Status.Terminal()
}

// Mint is a registered token mint.
type Mint struct {
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

// DependentAccount is an owner's associated token account for a mint.
type DependentAccount struct {
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
	Address string `json:"address"`
	Exists  bool   `json:"exists"`
}

// Quote is a priced conversion between two assets.
type Quote struct {
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

// ReceiveRequest is a Solana Pay request to pay the custodian.
type ReceiveRequest struct {
	ID         string    `json:"id"`
	Recipient  string    `json:"recipient"`
	Network    string    `json:"network"`
	Amount     string    `json:"amount,omitempty"`
	SPLToken   string    `json:"spl_token,omitempty"`
	Memo       string    `json:"memo"`
	PaymentURL string    `json:"payment_url"`
	QRCodeData string    `json:"qr_code_data,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed: %s", e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is the HTTP client for the solwallet service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new wallet service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// SendTransfer starts a transfer of amount SOL (display units) to the
// destination address.
func (c *Client) SendTransfer(ctx context.Context, to, amount string) (*OperationRef, error) {
	var ref OperationRef
	body := map[string]string{"to": to, "amount": amount}
	if err := c.do(ctx, http.MethodPost, "/api/v1/transfers", body, http.StatusAccepted, &ref); err != nil {
		return nil, err
	}
	c.logger.Debug("transfer started", "workflow_id", ref.WorkflowID, "to", to, "amount", amount)
	return &ref, nil
}

// CreateMint starts creating a mint and issuing its initial supply.
func (c *Client) CreateMint(ctx context.Context, name, symbol string, decimals int, initialSupply uint64) (*OperationRef, error) {
	var ref OperationRef
	body := map[string]interface{}{
		"name":           name,
		"symbol":         symbol,
		"decimals":       decimals,
		"initial_supply": initialSupply,
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/mints", body, http.StatusAccepted, &ref); err != nil {
		return nil, err
	}
	c.logger.Debug("mint started", "workflow_id", ref.WorkflowID, "symbol", symbol)
	return &ref, nil
}

// IssueSupply starts issuing amount display units of an existing mint. When
// decimals is nil the server reads them from the chain.
func (c *Client) IssueSupply(ctx context.Context, mint string, amount uint64, decimals *int) (*OperationRef, error) {
	var ref OperationRef
	body := map[string]interface{}{"amount": amount}
	if decimals != nil {
		body["decimals"] = *decimals
	}
	path := "/api/v1/mints/" + url.PathEscape(mint) + "/issue"
	if err := c.do(ctx, http.MethodPost, path, body, http.StatusAccepted, &ref); err != nil {
		return nil, err
	}
	c.logger.Debug("issue started", "workflow_id", ref.WorkflowID, "mint", mint)
	return &ref, nil
}

// Operation retrieves the current state of an operation. runID may be empty.
func (c *Client) Operation(ctx context.Context, workflowID, runID string) (*OperationState, error) {
	path := "/api/v1/operations/" + url.PathEscape(workflowID)
	if runID != "" {
		path += "?run_id=" + url.QueryEscape(runID)
	}
	var state OperationState
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// AwaitOperation polls an operation until it is terminal or ctx is done.
func (c *Client) AwaitOperation(ctx context.Context, ref OperationRef, pollInterval time.Duration) (*Status, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		state, err := c.Operation(ctx, ref.WorkflowID, ref.RunID)
		if err != nil {
			return nil, err
		}
		if state.Done() {
			c.logger.Debug("operation finished",
				"workflow_id", ref.WorkflowID,
				"state", state.Status.State,
				"kind", state.Status.Kind,
			)
			return state.Status, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("awaiting operation %s: %w", ref.WorkflowID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// ListMints lists registered mints on network. An empty network uses the
// server's default.
func (c *Client) ListMints(ctx context.Context, network string, limit, offset int) ([]*Mint, error) {
	q := url.Values{}
	if network != "" {
		q.Set("network", network)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/v1/mints"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var response struct {
		Mints []*Mint `json:"mints"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return response.Mints, nil
}

// GetMint retrieves one registered mint.
func (c *Client) GetMint(ctx context.Context, address, network string) (*Mint, error) {
	path := "/api/v1/mints/" + url.PathEscape(address)
	if network != "" {
		path += "?network=" + url.QueryEscape(network)
	}
	var mint Mint
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &mint); err != nil {
		return nil, err
	}
	return &mint, nil
}

// DependentAccount derives owner's account for mint and reports whether it
// exists on chain.
func (c *Client) DependentAccount(ctx context.Context, owner, mint string) (*DependentAccount, error) {
	path := fmt.Sprintf("/api/v1/accounts/%s/dependent/%s", url.PathEscape(owner), url.PathEscape(mint))
	var acct DependentAccount
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// GetQuote fetches one quote for amount (display units) of from in to.
func (c *Client) GetQuote(ctx context.Context, from, to, amount string) (*Quote, error) {
	var q Quote
	if err := c.do(ctx, http.MethodGet, "/api/v1/quotes?"+quoteQuery(from, to, amount), nil, http.StatusOK, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Receive builds a payment request to the custodian. amount and splToken
// may be empty.
func (c *Client) Receive(ctx context.Context, amount, splToken, message string) (*ReceiveRequest, error) {
	q := url.Values{}
	if amount != "" {
		q.Set("amount", amount)
	}
	if splToken != "" {
		q.Set("spl-token", splToken)
	}
	if message != "" {
		q.Set("message", message)
	}
	var req ReceiveRequest
	if err := c.do(ctx, http.MethodGet, "/api/v1/receive?"+q.Encode(), nil, http.StatusOK, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, nil)
}

func quoteQuery(from, to, amount string) string {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	q.Set("amount", amount)
	return q.Encode()
}

// do sends a JSON request and decodes a JSON response into out when the
// status matches want.
func (c *Client) do(ctx context.Context, method, path string, in interface{}, want int, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
