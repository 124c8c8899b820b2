package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/solwallet/service/config"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readSSE returns the data of the first event named name.
func readSSE(t *testing.T, scanner *bufio.Scanner, name string) string {
	t.Helper()
	current := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && current == name:
			return strings.TrimPrefix(line, "data: ")
		}
	}
	t.Fatalf("stream ended before %q event: %v", name, scanner.Err())
	return ""
}

func TestStreamQuotes(t *testing.T) {
	source := &stubSource{rate: 150}
	ts := httptest.NewServer(newTestHandler(t, Dependencies{Quotes: source}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/stream/quotes?from=SOL&to=USDC&amount=1", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	assert.Contains(t, readSSE(t, scanner, "connected"), "connection_id")

	var first, second quoteResponse
	require.NoError(t, json.Unmarshal([]byte(readSSE(t, scanner, "quote")), &first))
	require.NoError(t, json.Unmarshal([]byte(readSSE(t, scanner, "quote")), &second))
	assert.Equal(t, "SOL", first.From)
	assert.Equal(t, "1", first.InAmount)
	assert.False(t, second.FetchedAt.Before(first.FetchedAt))
}

func TestStreamQuotes_InvalidParams(t *testing.T) {
	h := newTestHandler(t, Dependencies{Quotes: &stubSource{rate: 1}})
	w := doRequest(h, http.MethodGet, "/api/v1/stream/quotes?from=SOL&to=NOPE&amount=1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebsocketQuotes(t *testing.T) {
	source := &stubSource{rate: 150}
	ts := httptest.NewServer(newTestHandler(t, Dependencies{Quotes: source}))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws/quotes"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	readUntil := func(msgType string) wsMessage {
		t.Helper()
		for {
			var msg wsMessage
			require.NoError(t, conn.ReadJSON(&msg))
			if msg.Type == msgType {
				return msg
			}
		}
	}

	// A bad request is answered with an error and keeps the connection open.
	require.NoError(t, conn.WriteJSON(wsRequest{From: "SOL", To: "SOL", Amount: "1"}))
	errMsg := readUntil("error")
	assert.Contains(t, errMsg.Error, "against itself")

	require.NoError(t, conn.WriteJSON(wsRequest{From: "SOL", To: "USDC", Amount: "1"}))
	ack := readUntil("params")
	q := readUntil("quote")
	require.NotNil(t, q.Quote)
	assert.Equal(t, ack.Pair, q.Pair)
	assert.Equal(t, "1", q.Quote.InAmount)

	// After the change is acknowledged only quotes for the new pair arrive.
	require.NoError(t, conn.WriteJSON(wsRequest{From: "SOL", To: "USDC", Amount: "2"}))
	ack2 := readUntil("params")
	assert.NotEqual(t, ack.Pair, ack2.Pair)
	for i := 0; i < 3; i++ {
		q := readUntil("quote")
		assert.Equal(t, ack2.Pair, q.Pair)
		assert.Equal(t, "2", q.Quote.InAmount)
	}
}

func TestStreamOperations_NotRegisteredWithoutNATS(t *testing.T) {
	h := newTestHandler(t, Dependencies{})
	w := doRequest(h, http.MethodGet, "/api/v1/stream/operations", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebsocketQuotes_CheckOrigin(t *testing.T) {
	cfg := &config.Config{SolanaNetwork: config.NetworkDevnet, AllowedOrigins: []string{"https://app.example.com"}}
	ts := httptest.NewServer(New(":0", cfg, Dependencies{Quotes: &stubSource{rate: 1}}, nil, discardLogger()).Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws/quotes"
	dial := func(origin string) (*http.Response, error) {
		header := http.Header{}
		if origin != "" {
			header.Set("Origin", origin)
		}
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		if err == nil {
			conn.Close()
		}
		return resp, err
	}

	resp, err := dial("https://evil.example.com")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, err = dial("https://app.example.com")
	assert.NoError(t, err, "allow-listed origin")

	_, err = dial(ts.URL)
	assert.NoError(t, err, "same origin")

	_, err = dial("")
	assert.NoError(t, err, "non-browser client")
}
