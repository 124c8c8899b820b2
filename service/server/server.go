package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/solwallet/service/config"
	"github.com/brojonat/solwallet/service/db"
	"github.com/brojonat/solwallet/service/metrics"
	"github.com/brojonat/solwallet/service/quote"
	"github.com/brojonat/solwallet/service/temporal"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MintStore is the read side of the mint registry.
type MintStore interface {
	GetMint(ctx context.Context, address, network string) (*db.Mint, error)
	ListMints(ctx context.Context, params db.ListMintsParams) ([]*db.Mint, error)
}

// AccountChecker reports whether an on-chain account is missing.
type AccountChecker interface {
	NeedsCreation(ctx context.Context, address solanago.PublicKey) (bool, error)
}

// Dependencies are the collaborators the HTTP API is built on. Any of them
// may be nil, in which case the routes that need it are not registered.
type Dependencies struct {
	Operations temporal.Operations
	Mints      MintStore
	Accounts   AccountChecker
	Quotes     quote.Source
	Assets     *quote.Registry
	JetStream  jetstream.JetStream
	// Custodian is the address receive requests pay to.
	Custodian solanago.PublicKey
}

// Server represents the HTTP server for the wallet service.
type Server struct {
	addr    string
	cfg     *config.Config
	deps    Dependencies
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, deps Dependencies, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Assets == nil {
		deps.Assets = quote.DefaultRegistry()
	}
	return &Server{
		addr:    addr,
		cfg:     cfg,
		deps:    deps,
		metrics: m,
		logger:  logger,
	}
}

// Handler builds the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	d := s.deps
	network := s.network()
	interval := s.quoteInterval()
	origins := s.originPolicy()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	// Operations
	if d.Operations != nil {
		route("POST /api/v1/transfers", "start_transfer", handleStartTransfer(d.Operations, s.logger))
		route("POST /api/v1/mints", "start_mint", handleStartMint(d.Operations, s.logger))
		route("POST /api/v1/mints/{mint}/issue", "start_issue", handleStartIssue(d.Operations, s.logger))
		route("GET /api/v1/operations/{workflow_id}", "operation_status", handleOperationStatus(d.Operations, s.logger))
	} else {
		s.logger.Warn("temporal client not configured, operation endpoints disabled")
	}

	// Mint registry
	if d.Mints != nil {
		route("GET /api/v1/mints", "list_mints", handleListMints(d.Mints, network, s.logger))
		route("GET /api/v1/mints/{mint}", "get_mint", handleGetMint(d.Mints, network, s.logger))
	}

	if d.Accounts != nil {
		route("GET /api/v1/accounts/{owner}/dependent/{mint}", "dependent_account", handleDependentAccount(d.Accounts, s.logger))
	}

	// Quotes
	if d.Quotes != nil {
		route("GET /api/v1/quotes", "get_quote", handleGetQuote(d.Quotes, d.Assets, s.logger))
		route("GET /api/v1/stream/quotes", "stream_quotes", handleStreamQuotes(d.Quotes, d.Assets, interval, s.metrics, s.logger))
		route("GET /api/v1/ws/quotes", "ws_quotes", handleWebsocketQuotes(d.Quotes, d.Assets, interval, origins, s.metrics, s.logger))
		s.logger.Info("quote endpoints enabled", "source", d.Quotes.Name())
	}

	// SSE streaming of operation events (if NATS is configured)
	if d.JetStream != nil {
		route("GET /api/v1/stream/operations", "stream_operations", handleStreamOperations(d.JetStream, s.metrics, s.logger))
		s.logger.Info("operation streaming endpoint enabled")
	} else {
		s.logger.Warn("NATS not configured, operation streaming disabled")
	}

	if !d.Custodian.IsZero() {
		route("GET /api/v1/receive", "receive", handleReceive(d.Custodian, d.Assets, network, s.logger))
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(origins, mux)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// Streaming endpoints hold the response open, so there is no write timeout.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr, "network", s.network())
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) network() string {
	if s.cfg == nil || s.cfg.SolanaNetwork == "" {
		return config.NetworkDevnet
	}
	return s.cfg.SolanaNetwork
}

func (s *Server) quoteInterval() time.Duration {
	if s.cfg == nil || s.cfg.QuoteInterval <= 0 {
		return quote.DefaultInterval
	}
	return s.cfg.QuoteInterval
}

func (s *Server) originPolicy() originPolicy {
	if s.cfg == nil {
		return newOriginPolicy(nil)
	}
	return newOriginPolicy(s.cfg.AllowedOrigins)
}

// originPolicy decides which browser origins may call the API.
type originPolicy struct {
	any     bool
	allowed map[string]bool
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]bool, len(origins))}
	for _, o := range origins {
		if o == "*" {
			p.any = true
			continue
		}
		p.allowed[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	return p
}

// allows reports whether origin is on the allow-list.
func (p originPolicy) allows(origin string) bool {
	return p.any || p.allowed[strings.TrimRight(strings.ToLower(origin), "/")]
}

// checkWebsocket accepts requests without an Origin header, same-origin
// requests, and allow-listed origins.
func (p originPolicy) checkWebsocket(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || p.allows(origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// corsMiddleware adds CORS headers for allowed origins and handles OPTIONS
// preflight requests.
func corsMiddleware(origins originPolicy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origins.any {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin := r.Header.Get("Origin"); origin != "" && origins.allows(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
