package upstream

// Event is one raw event from the agent-execution service's stream.
// The service's payloads are not schema-fixed: depending on the event type
// the interesting fields live either directly in Payload or one level down
// under Payload["payload"].
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Inner returns the nested payload object for the *-execution-event-* types
// that wrap their real payload one level down, or nil when absent.
func (e Event) Inner() map[string]any {
	inner, _ := e.Payload["payload"].(map[string]any)
	return inner
}

// ConversationMessage is one prior turn sent to the agent service.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of a streaming call to the agent service.
// ThreadID and ResourceID are opaque pass-through correlation identifiers
// owned by the client session.
type ChatRequest struct {
	Messages   []ConversationMessage `json:"messages"`
	ThreadID   string                `json:"threadId,omitempty"`
	ResourceID string                `json:"resourceId,omitempty"`
}
