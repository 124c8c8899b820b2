package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseHandler(t *testing.T, path string, events []string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, path, r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok, "ResponseWriter should support flushing")

		fmt.Fprint(w, "event: connected\ndata: {\"connection_id\":\"c1\"}\n\n")
		fmt.Fprint(w, ": keepalive\n\n")
		for _, e := range events {
			fmt.Fprint(w, e)
			flusher.Flush()
		}
		<-r.Context().Done()
	})
}

func TestStreamQuotes(t *testing.T) {
	q1, _ := json.Marshal(Quote{From: "SOL", To: "USDC", OutAmount: "150"})
	q2, _ := json.Marshal(Quote{From: "SOL", To: "USDC", OutAmount: "151"})
	server := httptest.NewServer(sseHandler(t, "/api/v1/stream/quotes", []string{
		"event: quote\ndata: " + string(q1) + "\n\n",
		"event: error\ndata: {\"error\":\"rate limited\"}\n\n",
		"event: quote\ndata: " + string(q2) + "\n\n",
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []string
	err := client.StreamQuotes(ctx, "SOL", "USDC", "1", func(q *Quote) bool {
		got = append(got, q.OutAmount)
		return len(got) < 2
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"150", "151"}, got)
}

func TestStreamOperations(t *testing.T) {
	e1, _ := json.Marshal(OperationEvent{OperationID: "transfer-1", Operation: "transfer", State: "submitting"})
	e2, _ := json.Marshal(OperationEvent{OperationID: "transfer-1", Operation: "transfer", State: "succeeded", Terminal: true})
	server := httptest.NewServer(sseHandler(t, "/api/v1/stream/operations", []string{
		"event: operation\ndata: " + string(e1) + "\n\n",
		"event: operation\ndata: " + string(e2) + "\n\n",
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var states []string
	err := client.StreamOperations(ctx, "transfer", "transfer-1", func(e *OperationEvent) bool {
		states = append(states, e.State)
		return !e.Terminal
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"submitting", "succeeded"}, states)
}

func TestStream_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(sseHandler(t, "/api/v1/stream/operations", nil))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := client.StreamOperations(ctx, "", "", func(*OperationEvent) bool { return true })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStream_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown asset"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	err := client.StreamQuotes(context.Background(), "SOL", "NOPE", "1", func(*Quote) bool { return true })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown asset")
}
