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
	"strings"
	"sync"

	"github.com/agentline/chatrelay/pkg/models"
	"github.com/agentline/chatrelay/pkg/sse"
)

// chatTurn is one prior turn in the wire request to the chat endpoint.
type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the wire request body for POST /api/chat.
type chatRequest struct {
	Messages   []chatTurn `json:"messages"`
	ThreadID   string     `json:"threadId"`
	ResourceID string     `json:"resourceId"`
}

// Session drives one chat conversation against a chatrelay server. It owns
// the store, reducer, and batcher, and holds the single cancellation handle
// for the in-flight send: a new SendMessage or an explicit StopGeneration
// cancels any previous request first.
type Session struct {
	store   *Store
	batcher *DeltaBatcher
	reducer *Reducer

	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// NewSession creates a session against the chatrelay server at baseURL.
func NewSession(baseURL string) *Session {
	store := NewStore()
	batcher := NewDeltaBatcher(store, DefaultFlushInterval)
	return &Session{
		store:   store,
		batcher: batcher,
		reducer: NewReducer(store, batcher),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// No global timeout: responses stream for as long as the agent
		// takes. Cancellation comes from the send context.
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
}

// Store exposes the conversation state for rendering.
func (s *Session) Store() *Store {
	return s.store
}

// SendMessage appends the user turn and streams the server's response into
// the store, blocking until the stream ends. Cancellation (a newer send or
// StopGeneration) is expected and silent; genuine failures append a
// user-visible error message carrying the original content for retry.
func (s *Session) SendMessage(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("message content is empty")
	}

	reqCtx, cancel := s.replaceInFlight(ctx)
	defer cancel()

	s.reducer.SetOriginalContent(content)
	s.store.Append(models.NewUserMessage(content))
	s.store.SetLoading(true)
	s.store.SetStreaming(true)

	// The finally path: whatever happens, pending deltas are applied and no
	// message is left marked streaming.
	defer func() {
		s.batcher.Flush()
		s.store.ClearStreamingFlags()
		s.store.SetLoading(false)
	}()

	resp, err := s.post(reqCtx)
	if err != nil {
		return s.finishSend(reqCtx, content, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return s.finishSend(reqCtx, content, s.decodeHTTPError(resp))
	}

	return s.consume(reqCtx, resp.Body, content)
}

// StopGeneration cancels the in-flight send, if any. Not an error from the
// user's point of view: the transcript simply stops where it is.
func (s *Session) StopGeneration() {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// ResendMessage marks the failed turn as retried and sends its original
// content again.
func (s *Session) ResendMessage(ctx context.Context, originalContent string) error {
	s.store.MarkRetried(originalContent)
	return s.SendMessage(ctx, originalContent)
}

// InitializeSession regenerates the session identifiers and clears the
// transcript, after cancelling anything in flight.
func (s *Session) InitializeSession() {
	s.StopGeneration()
	s.batcher.Flush()
	s.store.ResetSession()
}

// ToggleDebugMode flips the view filter for non-chat message types.
func (s *Session) ToggleDebugMode() bool {
	return s.store.ToggleDebugMode()
}

// replaceInFlight cancels any previous send and installs a new cancel handle.
func (s *Session) replaceInFlight(ctx context.Context) (context.Context, context.CancelFunc) {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return reqCtx, cancel
}

// post sends the chat request built from the current transcript.
func (s *Session) post(ctx context.Context) (*http.Response, error) {
	session := s.store.Session()
	req := chatRequest{
		ThreadID:   session.ThreadID,
		ResourceID: session.ResourceID,
	}
	for _, m := range s.store.Messages() {
		switch m.Type {
		case models.MessageTypeUser:
			req.Messages = append(req.Messages, chatTurn{Role: "user", Content: m.Content})
		case models.MessageTypeBot:
			if m.Content != "" {
				req.Messages = append(req.Messages, chatTurn{Role: "assistant", Content: m.Content})
			}
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send chat request: %w", err)
	}
	return resp, nil
}

// consume decodes the SSE response body and applies each frame until [DONE]
// or end of stream.
func (s *Session) consume(ctx context.Context, body io.Reader, content string) error {
	dec := sse.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, frame := range dec.Feed(buf[:n]) {
				if frame.Done {
					return nil
				}
				s.reducer.Apply(frame.Event)
			}
		}
		if err == io.EOF {
			for _, frame := range dec.Close() {
				if frame.Done {
					return nil
				}
				s.reducer.Apply(frame.Event)
			}
			return nil
		}
		if err != nil {
			return s.finishSend(ctx, content, fmt.Errorf("read stream: %w", err))
		}
	}
}

// finishSend converts a send failure into transcript state. Cancellation is
// expected and produces nothing; any other failure appends an error message
// carrying the original content so the turn can be resent.
func (s *Session) finishSend(ctx context.Context, content string, err error) error {
	if ctx.Err() != nil {
		s.logger.Debug("Send cancelled", "error", err)
		return nil
	}
	s.logger.Warn("Chat request failed", "error", err)
	s.store.Append(models.NewErrorMessage(
		"Failed to get a response, please try again", "request_failed", content))
	return err
}

// httpErrorBody is the subset of the server's JSON error responses the
// client surfaces.
type httpErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// decodeHTTPError summarizes a non-200 response.
func (s *Session) decodeHTTPError(resp *http.Response) error {
	var body httpErrorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		if body.Message != "" {
			return fmt.Errorf("server rejected request (HTTP %d): %s: %s", resp.StatusCode, body.Error, body.Message)
		}
		return fmt.Errorf("server rejected request (HTTP %d): %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned HTTP %d", resp.StatusCode)
}
