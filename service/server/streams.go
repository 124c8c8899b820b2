package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solwallet/service/metrics"
	natspkg "github.com/brojonat/solwallet/service/nats"
	"github.com/brojonat/solwallet/service/quote"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	keepaliveInterval     = 10 * time.Second
	webSocketWriteTimeout = 3 * time.Second
	webSocketReadLimit    = 4096
)

// sseWriter writes Server-Sent Events and flushes after each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	s := &sseWriter{w: w}
	s.flusher, _ = w.(http.Flusher)
	s.flush()
	return s
}

func (s *sseWriter) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

func (s *sseWriter) event(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *sseWriter) keepalive() {
	fmt.Fprintf(s.w, ": keepalive\n\n")
	s.flush()
}

// handleStreamQuotes streams live quotes for one pair over SSE. Each
// connection gets its own poller, stopped when the client disconnects.
// GET /api/v1/stream/quotes?from=SOL&to=USDC&amount=1
func handleStreamQuotes(source quote.Source, assets *quote.Registry, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, err := quoteParams(r, assets)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		poller := quote.NewPoller(source, interval, m, logger)
		defer poller.Stop()
		updates, unsubscribe := poller.Subscribe()
		defer unsubscribe()
		if err := poller.Update(params); err != nil {
			writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		connID := uuid.NewString()
		sse := newSSEWriter(w)
		trackStream(m, "quotes", 1)
		defer trackStream(m, "quotes", -1)

		logger.DebugContext(r.Context(), "quote stream connected",
			"connection_id", connID,
			"pair", params.Key(),
			"remote_addr", r.RemoteAddr,
		)
		sse.event("connected", map[string]string{"connection_id": connID, "pair": params.Key()})

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				if err := poller.LastError(); err != nil {
					sse.event("error", map[string]string{"error": err.Error()})
				} else {
					sse.keepalive()
				}

			case q, ok := <-updates:
				if !ok {
					return
				}
				if err := sse.event("quote", quoteToResponse(q)); err != nil {
					return
				}
				if m != nil {
					m.RecordStreamEventSent("quotes", "quote")
				}

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "quote stream disconnected", "connection_id", connID)
				return
			}
		}
	})
}

// wsRequest is a client message on the quote websocket: a new pair to watch.
type wsRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// wsMessage is a server message on the quote websocket.
type wsMessage struct {
	Type  string         `json:"type"` // "params", "quote" or "error"
	Quote *quoteResponse `json:"quote,omitempty"`
	Pair  string         `json:"pair,omitempty"`
	Error string         `json:"error,omitempty"`
}

// handleWebsocketQuotes serves an interactive quote feed. Every client
// message replaces the watched pair; responses for the previous pair are
// never delivered after the change is acknowledged.
// GET /api/v1/ws/quotes
func handleWebsocketQuotes(source quote.Source, assets *quote.Registry, interval time.Duration, origins originPolicy, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	upgrader := websocket.Upgrader{
		HandshakeTimeout: webSocketWriteTimeout,
		CheckOrigin:      origins.checkWebsocket,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
			return
		}
		defer ws.Close()
		ws.SetReadLimit(webSocketReadLimit)

		connID := uuid.NewString()
		trackStream(m, "ws_quotes", 1)
		defer trackStream(m, "ws_quotes", -1)
		logger.DebugContext(r.Context(), "quote websocket connected", "connection_id", connID, "remote_addr", r.RemoteAddr)

		poller := quote.NewPoller(source, interval, m, logger)
		defer poller.Stop()
		updates, unsubscribe := poller.Subscribe()
		defer unsubscribe()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// The reader applies parameter changes and hands acknowledgements to
		// the writer loop below, which owns the connection for writes.
		control := make(chan wsMessage, 4)
		go func() {
			defer cancel()
			for {
				var req wsRequest
				if err := ws.ReadJSON(&req); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						logger.DebugContext(ctx, "websocket read failed", "connection_id", connID, "error", err)
					}
					return
				}
				msg := wsMessage{Type: "params"}
				params, err := quote.NewParams(assets, req.From, req.To, req.Amount)
				if err == nil {
					err = poller.Update(params)
				}
				if err != nil {
					msg = wsMessage{Type: "error", Error: err.Error()}
				} else {
					msg.Pair = params.Key()
				}
				select {
				case control <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()

		write := func(msg wsMessage) error {
			ws.SetWriteDeadline(time.Now().Add(webSocketWriteTimeout))
			return ws.WriteJSON(msg)
		}

		for {
			select {
			case msg := <-control:
				if err := write(msg); err != nil {
					return
				}

			case q, ok := <-updates:
				if !ok {
					return
				}
				// Drop a quote that raced with a parameter change.
				if active, ok := poller.Active(); !ok || active.Key() != q.Params.Key() {
					continue
				}
				resp := quoteToResponse(q)
				if err := write(wsMessage{Type: "quote", Quote: &resp, Pair: q.Params.Key()}); err != nil {
					return
				}
				if m != nil {
					m.RecordStreamEventSent("ws_quotes", "quote")
				}

			case <-ctx.Done():
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(webSocketWriteTimeout))
				logger.DebugContext(r.Context(), "quote websocket disconnected", "connection_id", connID)
				return
			}
		}
	})
}

// handleStreamOperations streams operation events from JetStream over SSE.
// GET /api/v1/stream/operations?operation=transfer
func handleStreamOperations(js jetstream.JetStream, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operation := r.URL.Query().Get("operation")
		workflowID := r.URL.Query().Get("workflow_id")
		connID := uuid.NewString()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		events := make(chan *natspkg.OperationEvent, 10)
		done := make(chan error, 1)
		go func() {
			done <- natspkg.ConsumeOperations(ctx, js,
				natspkg.ConsumeOptions{FilterSubject: natspkg.OperationSubject(operation)},
				logger,
				func(e *natspkg.OperationEvent) {
					if workflowID != "" && e.OperationID != workflowID {
						return
					}
					select {
					case events <- e:
					case <-ctx.Done():
					}
				})
		}()

		sse := newSSEWriter(w)
		trackStream(m, "operations", 1)
		defer trackStream(m, "operations", -1)

		logger.DebugContext(r.Context(), "operation stream connected",
			"connection_id", connID,
			"operation", operation,
			"remote_addr", r.RemoteAddr,
		)
		sse.event("connected", map[string]string{"connection_id": connID, "subject": natspkg.OperationSubject(operation)})

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				sse.keepalive()

			case e := <-events:
				if err := sse.event("operation", e); err != nil {
					return
				}
				if m != nil {
					m.RecordStreamEventSent("operations", e.Phase)
				}

			case err := <-done:
				if err != nil && ctx.Err() == nil {
					logger.ErrorContext(r.Context(), "operation consumer failed", "connection_id", connID, "error", err)
					sse.event("error", map[string]string{"error": "failed to subscribe"})
				}
				return

			case <-ctx.Done():
				logger.DebugContext(r.Context(), "operation stream disconnected", "connection_id", connID)
				return
			}
		}
	})
}

func trackStream(m *metrics.Metrics, stream string, delta float64) {
	if m != nil {
		m.RecordStreamConnectionChange(stream, delta)
	}
}
