package quote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/brojonat/solwallet/service/metrics"
	"github.com/brojonat/solwallet/service/solana"
	"github.com/go-resty/resty/v2"
)

// DefaultJupiterURL is the public Jupiter quote API.
const DefaultJupiterURL = "https://quote-api.jup.ag"

// DefaultSlippageBps is used when no slippage is configured.
const DefaultSlippageBps = 50

// JupiterSource fetches quotes from the Jupiter v6 quote API.
type JupiterSource struct {
	client      *resty.Client
	slippageBps int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

type jupiterQuoteResponse struct {
	InputMint            string `json:"inputMint"`
	InAmount             string `json:"inAmount"`
	OutputMint           string `json:"outputMint"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	SlippageBps          int    `json:"slippageBps"`
	PriceImpactPct       string `json:"priceImpactPct"`
	RoutePlan            []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
		Percent int `json:"percent"`
	} `json:"routePlan"`
}

type jupiterError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// NewJupiterSource creates a source against baseURL. If httpClient is nil a
// client with a 10s timeout is used.
func NewJupiterSource(baseURL string, slippageBps int, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *JupiterSource {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultJupiterURL
	}
	if slippageBps <= 0 {
		slippageBps = DefaultSlippageBps
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	rc := resty.NewWithClient(httpClient).
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	return &JupiterSource{client: rc, slippageBps: slippageBps, metrics: m, logger: logger}
}

func (j *JupiterSource) Name() string { return "jupiter" }

// Fetch requests a quote for p.
func (j *JupiterSource) Fetch(ctx context.Context, p Params) (Quote, error) {
	start := time.Now()
	q, err := j.fetch(ctx, p)
	if j.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		j.metrics.RecordQuoteFetch(j.Name(), status, time.Since(start).Seconds())
	}
	return q, err
}

func (j *JupiterSource) fetch(ctx context.Context, p Params) (Quote, error) {
	var (
		out    jupiterQuoteResponse
		errOut jupiterError
	)
	resp, err := j.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"inputMint":   p.From.Mint.String(),
			"outputMint":  p.To.Mint.String(),
			"amount":      strconv.FormatUint(p.Amount.BaseUnits, 10),
			"slippageBps": strconv.Itoa(j.slippageBps),
		}).
		SetResult(&out).
		SetError(&errOut).
		Get("/v6/quote")
	if err != nil {
		return Quote{}, fmt.Errorf("quote request failed: %w: %v", solana.ErrNetworkUnavailable, err)
	}
	if resp.IsError() {
		if resp.StatusCode() >= 500 || resp.StatusCode() == http.StatusTooManyRequests {
			return Quote{}, fmt.Errorf("quote request failed: %w: status %d", solana.ErrNetworkUnavailable, resp.StatusCode())
		}
		return Quote{}, fmt.Errorf("quote rejected: %w: %s %s", solana.ErrRejectedByNetwork, errOut.ErrorCode, errOut.Error)
	}

	inAmount, err := strconv.ParseUint(out.InAmount, 10, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("invalid inAmount %q: %w", out.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(out.OutAmount, 10, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("invalid outAmount %q: %w", out.OutAmount, err)
	}
	minOut, err := strconv.ParseUint(out.OtherAmountThreshold, 10, 64)
	if err != nil {
		minOut = outAmount
	}

	labels := make([]string, 0, len(out.RoutePlan))
	for _, hop := range out.RoutePlan {
		labels = append(labels, hop.SwapInfo.Label)
	}

	j.logger.DebugContext(ctx, "fetched quote",
		"pair", p.Key(),
		"out_amount", outAmount,
		"route", labels,
	)

	return Quote{
		Params:         p,
		InAmount:       solana.Amount{BaseUnits: inAmount, Decimals: p.From.Decimals},
		OutAmount:      solana.Amount{BaseUnits: outAmount, Decimals: p.To.Decimals},
		MinOutAmount:   solana.Amount{BaseUnits: minOut, Decimals: p.To.Decimals},
		PriceImpactPct: out.PriceImpactPct,
		SlippageBps:    out.SlippageBps,
		RouteLabels:    labels,
		Source:         j.Name(),
		FetchedAt:      time.Now().UTC(),
	}, nil
}
