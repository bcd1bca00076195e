// Package events defines the normalized, client-facing event vocabulary and
// the mapper that translates upstream agent-service events into it.
//
// Upstream event names are internal to the agent-execution service and may
// carry payloads at two levels of nesting. The normalized vocabulary is flat
// and stable: clients only ever see the types below, serialized as one SSE
// frame per event.
package events

// Normalized event types forwarded to clients.
const (
	EventTypeRoutingStart                = "routing-start"
	EventTypeRoutingEnd                  = "routing-end"
	EventTypeAgentStart                  = "agent-start"
	EventTypeAgentEnd                    = "agent-end"
	EventTypeTextStart                   = "text-start"
	EventTypeTextDelta                   = "text-delta"
	EventTypeTextEnd                     = "text-end"
	EventTypeToolCallInputStreamingStart = "tool-call-input-streaming-start"
	EventTypeToolCall                    = "tool-call"
	EventTypeToolResult                  = "tool-result"
	EventTypeFinish                      = "finish"
	EventTypeError                       = "error"

	// EventTypeRestreamNeeded is a relay-generated diagnostic, not produced
	// by the mapper. Emitted when an upstream stream ends without a valid
	// completion marker and the relay is about to re-issue the call.
	EventTypeRestreamNeeded = "restream-needed"
)

// Event is one normalized event as it crosses the wire. Payload shapes are
// not contractually fixed by the upstream service, so they stay loosely
// typed; consumers pick out the fields they understand.
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// RestreamNeeded builds the diagnostic event carrying the stream cursor
// state at the moment a restream is triggered.
func RestreamNeeded(lastEventType, previousLastEventType string, retryCount int) *Event {
	return &Event{
		Type:    EventTypeRestreamNeeded,
		Payload: map[string]any{
			"lastEventType":         lastEventType,
			"previousLastEventType": previousLastEventType,
			"retryCount":            retryCount,
		},
	}
}

// ErrorEvent builds a normalized error event with a client-safe message.
func ErrorEvent(message string) *Event {
	return &Event{
		Type:    EventTypeError,
		Payload: map[string]any{"error": message},
	}
}
