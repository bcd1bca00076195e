// Package client implements the chat client side of the streaming pipeline:
// the SSE consumer, the incremental state reducer, the text delta batcher,
// and the conversation store the UI renders from.
package client

import (
	"sync"

	"github.com/agentline/chatrelay/pkg/models"
)

// Store is the authoritative conversation state: the append-only message
// list plus the loading/streaming flags. It is the single mutable resource
// on the client, mutated only by the reducer and by explicit user actions;
// the mutex makes each mutation atomic with respect to renders.
type Store struct {
	mu          sync.Mutex
	session     models.Session
	messages    []*models.Message
	isLoading   bool
	isStreaming bool
	debugMode   bool
}

// NewStore creates a store with a fresh session.
func NewStore() *Store {
	return &Store{session: models.NewSession()}
}

// Session returns the current correlation identifiers.
func (s *Store) Session() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// ResetSession regenerates the session identifiers and clears the transcript.
func (s *Store) ResetSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = models.NewSession()
	s.messages = nil
}

// Append adds a message to the end of the transcript. Order is insertion
// order; the list is never reordered.
func (s *Store) Append(msg *models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Messages returns a snapshot of the transcript.
func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = *m
	}
	return out
}

// VisibleMessages returns the transcript filtered for rendering: user, bot,
// and error messages always; tool, routing, and restream messages only in
// debug mode. This is a pure view filter.
func (s *Store) VisibleMessages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, 0, len(s.messages))
	for _, m := range s.messages {
		switch m.Type {
		case models.MessageTypeUser, models.MessageTypeBot, models.MessageTypeError:
			out = append(out, *m)
		default:
			if s.debugMode {
				out = append(out, *m)
			}
		}
	}
	return out
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.find(id); m != nil {
		return *m, true
	}
	return models.Message{}, false
}

// ApplyDeltas appends the batched text fragments to their target messages'
// content in one state transition, in the order the targets first received
// a fragment.
func (s *Store) ApplyDeltas(order []string, pending map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range order {
		if m := s.find(id); m != nil {
			m.Content += pending[id]
		}
	}
}

// FinalizeStreaming marks the message as no longer streaming. The transition
// happens at most once; nothing ever sets IsStreaming back to true.
func (s *Store) FinalizeStreaming(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.find(id); m != nil {
		m.IsStreaming = false
	}
}

// CompleteRouting fills in the routing decision and ends its streaming state.
func (s *Store) CompleteRouting(id, end, selectionReason, prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.find(id)
	if m == nil || m.Type != models.MessageTypeRouting {
		return
	}
	m.End = end
	m.SelectionReason = selectionReason
	m.Prompt = prompt
	m.IsStreaming = false
}

// SetToolCall records a tool invocation's arguments. The status only moves
// forward; a stale event cannot regress a completed tool.
func (s *Store) SetToolCall(id string, args any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.find(id)
	if m == nil || m.Type != models.MessageTypeTool {
		return
	}
	if !m.Status.CanTransitionTo(models.ToolStatusToolCalling) {
		return
	}
	m.Args = args
	m.Status = models.ToolStatusToolCalling
}

// SetToolResult records a tool's result and terminal status.
func (s *Store) SetToolResult(id string, result any, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.find(id)
	if m == nil || m.Type != models.MessageTypeTool {
		return
	}
	status := models.ToolStatusComplete
	if failed {
		status = models.ToolStatusError
	}
	if !m.Status.CanTransitionTo(status) {
		return
	}
	m.Result = result
	m.Status = status
}

// MarkRetried flags the most recent unretried error message carrying the
// given original content. Returns false when no such message exists.
func (s *Store) MarkRetried(originalContent string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.Type == models.MessageTypeError && m.OriginalContent == originalContent && !m.IsRetried {
			m.IsRetried = true
			return true
		}
	}
	return false
}

// ClearStreamingFlags finalizes any message still marked streaming and
// clears the main streaming indicator. Runs on every send exit path so a
// cancelled or failed stream never leaves a message stuck streaming.
func (s *Store) ClearStreamingFlags() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		m.IsStreaming = false
	}
	s.isStreaming = false
}

// SetLoading sets the request-in-flight flag.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isLoading = loading
}

// Loading reports whether a request is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoading
}

// SetStreaming sets the main streaming indicator.
func (s *Store) SetStreaming(streaming bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isStreaming = streaming
}

// Streaming reports the main streaming indicator.
func (s *Store) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isStreaming
}

// ToggleDebugMode flips the debug view filter and returns the new value.
func (s *Store) ToggleDebugMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugMode = !s.debugMode
	return s.debugMode
}

// find returns the live message with the given id. Callers hold s.mu.
func (s *Store) find(id string) *models.Message {
	for _, m := range s.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}
