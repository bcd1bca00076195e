package client

import (
	"strings"

	"github.com/agentline/chatrelay/pkg/events"
	"github.com/agentline/chatrelay/pkg/models"
)

// handlerFunc applies one normalized event to the store. It receives the
// currently active message id and returns the new one, making the
// active-id threading an explicit state transition rather than shared
// mutation.
type handlerFunc func(r *Reducer, activeID string, payload map[string]any) string

// Reducer applies decoded SSE frames to the conversation store. The only
// state threaded between events is activeID: the message the most recent
// lifecycle-start event created, which trailing delta/update events target.
type Reducer struct {
	store    *Store
	batcher  *DeltaBatcher
	handlers map[string]handlerFunc

	activeID string
	// originalContent is the user input of the in-flight send, preserved on
	// error messages so the UI can offer a retry.
	originalContent string
}

// NewReducer creates a reducer over the given store and batcher.
func NewReducer(store *Store, batcher *DeltaBatcher) *Reducer {
	r := &Reducer{store: store, batcher: batcher}
	r.handlers = map[string]handlerFunc{
		events.EventTypeRoutingStart:                handleRoutingStart,
		events.EventTypeRoutingEnd:                  handleRoutingEnd,
		events.EventTypeTextStart:                   handleTextStart,
		events.EventTypeTextDelta:                   handleTextDelta,
		events.EventTypeTextEnd:                     handleTextEnd,
		events.EventTypeToolCallInputStreamingStart: handleToolStart,
		events.EventTypeToolCall:                    handleToolCall,
		events.EventTypeToolResult:                  handleToolResult,
		events.EventTypeFinish:                      handleFinish,
		events.EventTypeError:                       handleError,
		events.EventTypeRestreamNeeded:              handleRestreamNeeded,
	}
	return r
}

// SetOriginalContent records the user input of the send about to run.
func (r *Reducer) SetOriginalContent(content string) {
	r.originalContent = content
}

// Apply dispatches one event. Unrecognized event types are a no-op.
func (r *Reducer) Apply(ev *events.Event) {
	if ev == nil {
		return
	}
	h, ok := r.handlers[ev.Type]
	if !ok {
		return
	}
	r.activeID = h(r, r.activeID, ev.Payload)
}

func handleRoutingStart(r *Reducer, _ string, payload map[string]any) string {
	start := payloadString(payload, "id", "agentId", "agent")
	if start == "" {
		start = "routing"
	}
	msg := models.NewRoutingMessage(start)
	r.store.Append(msg)
	return msg.ID
}

func handleRoutingEnd(r *Reducer, activeID string, payload map[string]any) string {
	r.store.CompleteRouting(activeID,
		payloadString(payload, "id", "agentId", "agent"),
		payloadString(payload, "selectionReason"),
		payloadString(payload, "prompt"))
	return ""
}

func handleTextStart(r *Reducer, _ string, _ map[string]any) string {
	msg := models.NewBotMessage()
	r.store.Append(msg)
	return msg.ID
}

func handleTextDelta(r *Reducer, activeID string, payload map[string]any) string {
	if activeID == "" {
		return activeID
	}
	r.batcher.Add(activeID, payloadString(payload, "text", "delta", "content"))
	return activeID
}

func handleTextEnd(r *Reducer, activeID string, _ map[string]any) string {
	// The flush must happen before finalization so no delta is lost or
	// applied after the message stops streaming.
	r.batcher.Flush()
	r.store.FinalizeStreaming(activeID)
	return ""
}

func handleToolStart(r *Reducer, _ string, payload map[string]any) string {
	name := payloadString(payload, "toolName", "name")
	if name == "" {
		name = "unknown-tool"
	}
	msg := models.NewToolMessage(name)
	// Upstream-assigned call ids key the later tool-call/tool-result
	// updates, so they must become the message id; the generated UUID
	// only stands in when the upstream omits one.
	if id := payloadString(payload, "toolCallId", "id"); id != "" {
		msg.ID = id
	}
	r.store.Append(msg)
	return msg.ID
}

func handleToolCall(r *Reducer, activeID string, payload map[string]any) string {
	// Explicit ids support interleaved tool calls; the active-id fallback
	// keeps older single-flight upstream shapes working.
	id := payloadString(payload, "toolCallId", "id")
	if id == "" {
		id = activeID
	}
	r.store.SetToolCall(id, payload["args"])
	return activeID
}

func handleToolResult(r *Reducer, activeID string, payload map[string]any) string {
	id := payloadString(payload, "toolCallId", "id")
	if id == "" {
		id = activeID
	}
	result, ok := payload["result"]
	if !ok {
		result = any(payload)
	}
	r.store.SetToolResult(id, result, resultLooksLikeError(result))
	return ""
}

func handleFinish(r *Reducer, activeID string, _ map[string]any) string {
	r.store.SetStreaming(false)
	return activeID
}

func handleError(r *Reducer, activeID string, payload map[string]any) string {
	content := payloadString(payload, "error", "message")
	if content == "" {
		content = "Something went wrong while generating a response"
	}
	r.store.Append(models.NewErrorMessage(content,
		payloadString(payload, "errorCode", "code"), r.originalContent))
	return activeID
}

func handleRestreamNeeded(r *Reducer, activeID string, payload map[string]any) string {
	r.store.Append(models.NewRestreamMessage(
		payloadString(payload, "lastEventType"),
		payloadString(payload, "previousLastEventType"),
		payloadInt(payload, "retryCount")))
	return activeID
}

// knownFailureCodes are result codes upstream tools are known to report on
// failure. Part of the permissive failure heuristic; extend as upstream
// result shapes evolve.
var knownFailureCodes = map[string]struct{}{
	"ERROR":                 {},
	"TOOL_EXECUTION_FAILED": {},
	"EXECUTION_ERROR":       {},
	"TIMEOUT":               {},
	"INVALID_ARGUMENTS":     {},
}

// resultLooksLikeError heuristically classifies a tool result as a failure.
// Upstream result shapes are not contractually fixed, so this pattern-matches
// the shapes observed in practice: boolean error flags, validation error
// lists, known failure codes, and messages mentioning "Error".
func resultLooksLikeError(result any) bool {
	m, ok := result.(map[string]any)
	if !ok {
		return false
	}
	if b, ok := m["error"].(bool); ok && b {
		return true
	}
	if b, ok := m["isError"].(bool); ok && b {
		return true
	}
	if _, ok := m["validationErrors"]; ok {
		return true
	}
	if code, ok := m["code"].(string); ok {
		if _, known := knownFailureCodes[code]; known {
			return true
		}
	}
	if msg, ok := m["message"].(string); ok && strings.Contains(msg, "Error") {
		return true
	}
	return false
}

// payloadString returns the first present string value among keys.
func payloadString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// payloadInt returns the key's numeric value. JSON numbers decode as
// float64, so both are accepted.
func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
