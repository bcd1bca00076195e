// Package upstream implements the streaming HTTP client for the external
// agent-execution service. The service's internal reasoning is opaque; only
// its event contract matters — a newline-delimited JSON stream of
// loosely-typed {type, payload} events.
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// scanBufferSize bounds a single upstream event line. Tool results can carry
// large embedded documents, so this is generous.
const scanBufferSize = 1 << 20

// Client provides streaming access to the agent-execution service.
type Client struct {
	streamURL string
	healthURL string

	// streamClient has no global timeout: agent turns can stream for
	// minutes. Cancellation comes from the request context.
	streamClient *http.Client
	healthClient *http.Client
	logger       *slog.Logger
}

// NewClient creates a client for the agent service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		streamURL:    baseURL + "/stream",
		healthURL:    baseURL + "/health",
		streamClient: &http.Client{},
		healthClient: &http.Client{Timeout: 10 * time.Second},
		logger:       slog.Default(),
	}
}

// Stream opens one streaming call and returns a channel of raw events.
// The channel is closed when the upstream stream ends, errors out, or the
// context is cancelled; a mid-stream read failure is logged and surfaces to
// the caller only as early channel closure, which the relay treats as a
// truncated turn. Errors returned directly from Stream happened before any
// streaming began.
func (c *Client) Stream(ctx context.Context, chatReq ChatRequest) (<-chan Event, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.streamURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call agent service: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("agent service returned HTTP %d", resp.StatusCode)
	}

	ch := make(chan Event, 32)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), scanBufferSize)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil {
				c.logger.Warn("Skipping malformed upstream event", "error", err)
				continue
			}

			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			c.logger.Warn("Upstream stream read failed", "error", err)
		}
	}()

	return ch, nil
}

// Health probes the agent service's health endpoint. The caller bounds the
// probe via ctx.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.healthClient.Do(req)
	if err != nil {
		return fmt.Errorf("agent service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("agent service returned HTTP %d", resp.StatusCode)
	}
	return nil
}
