package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OperationEvent is one workflow state transition.
type OperationEvent struct {
	OperationID string    `json:"operation_id,omitempty"`
	Operation   string    `json:"operation"`
	Phase       string    `json:"phase,omitempty"`
	State       string    `json:"state"`
	Terminal    bool      `json:"terminal"`
	Signature   string    `json:"signature,omitempty"`
	Mint        string    `json:"mint,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	Cause       string    `json:"cause,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	PublishedAt time.Time `json:"published_at"`
}

// errStopStream ends a stream from inside a callback.
var errStopStream = errors.New("stop stream")

// StreamQuotes calls fn for every live quote until ctx is done or fn returns
// false.
func (c *Client) StreamQuotes(ctx context.Context, from, to, amount string, fn func(*Quote) bool) error {
	return c.stream(ctx, "/api/v1/stream/quotes?"+quoteQuery(from, to, amount), func(event string, data []byte) error {
		switch event {
		case "quote":
			var q Quote
			if err := json.Unmarshal(data, &q); err != nil {
				c.logger.Warn("failed to decode quote", "error", err)
				return nil
			}
			if !fn(&q) {
				return errStopStream
			}
		case "error":
			c.logger.Warn("quote stream error", "data", string(data))
		}
		return nil
	})
}

// StreamOperations calls fn for every operation event until ctx is done or
// fn returns false. operation and workflowID narrow the stream when set.
func (c *Client) StreamOperations(ctx context.Context, operation, workflowID string, fn func(*OperationEvent) bool) error {
	q := url.Values{}
	if operation != "" {
		q.Set("operation", operation)
	}
	if workflowID != "" {
		q.Set("workflow_id", workflowID)
	}
	return c.stream(ctx, "/api/v1/stream/operations?"+q.Encode(), func(event string, data []byte) error {
		if event != "operation" {
			return nil
		}
		var e OperationEvent
		if err := json.Unmarshal(data, &e); err != nil {
			c.logger.Warn("failed to decode operation event", "error", err)
			return nil
		}
		if !fn(&e) {
			return errStopStream
		}
		return nil
	})
}

// stream reads Server-Sent Events from path and hands each one to handle.
// The configured client timeout does not apply; ctx bounds the stream.
func (c *Client) stream(ctx context.Context, path string, handle func(event string, data []byte) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	streaming := *c.httpClient
	streaming.Timeout = 0
	resp, err := streaming.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	event := "message"
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				if err := handle(event, []byte(data.String())); err != nil {
					if errors.Is(err, errStopStream) {
						return nil
					}
					return err
				}
			}
			event = "message"
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}
