package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentline/chatrelay/pkg/events"
	"github.com/agentline/chatrelay/pkg/models"
)

func newTestReducer() (*Reducer, *Store) {
	store := NewStore()
	batcher := NewDeltaBatcher(store, time.Hour) // flushes only when the reducer forces one
	return NewReducer(store, batcher), store
}

func apply(r *Reducer, eventType string, payload map[string]any) {
	r.Apply(&events.Event{Type: eventType, Payload: payload})
}

func TestReducerTextLifecycle(t *testing.T) {
	r, store := newTestReducer()

	apply(r, events.EventTypeTextStart, map[string]any{})
	apply(r, events.EventTypeTextDelta, map[string]any{"text": "Hel"})
	apply(r, events.EventTypeTextDelta, map[string]any{"text": "lo"})

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsStreaming)

	apply(r, events.EventTypeTextEnd, map[string]any{})

	msgs = store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Content, "text-end forces a synchronous flush")
	assert.False(t, msgs[0].IsStreaming)

	apply(r, events.EventTypeFinish, map[string]any{})
	assert.False(t, store.Streaming())
}

func TestReducerDeltaWithoutActiveMessageIsDropped(t *testing.T) {
	r, store := newTestReducer()

	apply(r, events.EventTypeTextDelta, map[string]any{"text": "orphan"})
	assert.Empty(t, store.Messages())
}

func TestReducerAtMostOneActiveMessage(t *testing.T) {
	r, store := newTestReducer()

	apply(r, events.EventTypeTextStart, map[string]any{})
	apply(r, events.EventTypeTextDelta, map[string]any{"text": "first"})
	apply(r, events.EventTypeTextEnd, map[string]any{})

	apply(r, events.EventTypeTextStart, map[string]any{})
	apply(r, events.EventTypeTextDelta, map[string]any{"text": "second"})
	apply(r, events.EventTypeTextEnd, map[string]any{})

	msgs := store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)

	streaming := 0
	for _, m := range msgs {
		if m.IsStreaming {
			streaming++
		}
	}
	assert.Zero(t, streaming)
}

func TestReducerRoutingLifecycle(t *testing.T) {
	r, store := newTestReducer()

	apply(r, events.EventTypeRoutingStart, map[string]any{"agentId": "router"})
	apply(r, events.EventTypeRoutingEnd, map[string]any{
		"agentId":         "weather-agent",
		"selectionReason": "forecast intent",
		"prompt":          "What's the weather?",
	})

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageTypeRouting, msgs[0].Type)
	assert.Equal(t, "router", msgs[0].Start)
	assert.Equal(t, "weather-agent", msgs[0].End)
	assert.Equal(t, "forecast intent", msgs[0].SelectionReason)
	assert.False(t, msgs[0].IsStreaming)
}

func TestReducerRoutingStartWithoutIDUsesPlaceholder(t *testing.T) {
	r, store := newTestReducer()

	apply(r, events.EventTypeRoutingStart, map[string]any{})
	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "routing", msgs[0].Start)
}

func TestReducerToolLifecycleWithExplicitID(t *testing.T) {
	// The upstream assigns its own call id; every event of the lifecycle
	// carries it, and the updates must land on the message it created.
	r, store := newTestReducer()

	apply(r, events.EventTypeToolCallInputStreamingStart, map[string]any{
		"toolCallId": "call_abc123",
		"toolName":   "search",
	})
	apply(r, events.EventTypeToolCall, map[string]any{
		"toolCallId": "call_abc123",
		"args":       map[string]any{"query": "go"},
	})
	apply(r, events.EventTypeToolResult, map[string]any{
		"toolCallId": "call_abc123",
		"result":     map[string]any{"hits": 3.0},
	})

	got, ok := store.Get("call_abc123")
	require.True(t, ok, "the upstream call id must be the message id")
	assert.Equal(t, "search", got.Name)
	assert.Equal(t, models.ToolStatusComplete, got.Status)
	assert.Equal(t, map[string]any{"query": "go"}, got.Args)
	assert.Equal(t, map[string]any{"hits": 3.0}, got.Result)
}

func TestReducerToolFailureWithExplicitID(t *testing.T) {
	r, store := newTestReducer()

	apply(r, events.EventTypeToolCallInputStreamingStart, map[string]any{
		"toolCallId": "call_abc123",
		"toolName":   "search",
	})
	apply(r, events.EventTypeToolCall, map[string]any{
		"toolCallId": "call_abc123",
		"args":       map[string]any{"query": "go"},
	})
	apply(r, events.EventTypeToolResult, map[string]any{
		"toolCallId": "call_abc123",
		"result":     map[string]any{"error": true},
	})

	got, ok := store.Get("call_abc123")
	require.True(t, ok)
	assert.Equal(t, models.ToolStatusError, got.Status)
	assert.Equal(t, map[string]any{"query": "go"}, got.Args)
}

func TestReducerInterleavedToolCallsByExplicitID(t *testing.T) {
	// Explicit ids exist so concurrent tool calls can interleave; results
	// arriving out of start order must still resolve to the right message.
	r, store := newTestReducer()

	apply(r, events.EventTypeToolCallInputStreamingStart, map[string]any{
		"toolCallId": "call_1", "toolName": "search",
	})
	apply(r, events.EventTypeToolCallInputStreamingStart, map[string]any{
		"toolCallId": "call_2", "toolName": "fetch",
	})
	apply(r, events.EventTypeToolCall, map[string]any{
		"toolCallId": "call_1", "args": map[string]any{"query": "go"},
	})
	apply(r, events.EventTypeToolCall, map[string]any{
		"toolCallId": "call_2", "args": map[string]any{"url": "https://example.com"},
	})
	apply(r, events.EventTypeToolResult, map[string]any{
		"toolCallId": "call_2", "result": map[string]any{"status": "ok"},
	})
	apply(r, events.EventTypeToolResult, map[string]any{
		"toolCallId": "call_1", "result": map[string]any{"error": true},
	})

	first, ok := store.Get("call_1")
	require.True(t, ok)
	assert.Equal(t, "search", first.Name)
	assert.Equal(t, models.ToolStatusError, first.Status)

	second, ok := store.Get("call_2")
	require.True(t, ok)
	assert.Equal(t, "fetch", second.Name)
	assert.Equal(t, models.ToolStatusComplete, second.Status)
	assert.Equal(t, map[string]any{"status": "ok"}, second.Result)
}

func TestReducerToolLifecycleFallsBackToActiveID(t *testing.T) {
	// Older upstream shapes omit toolCallId; the events then target the
	// message the last lifecycle-start created.
	r, store := newTestReducer()

	apply(r, events.EventTypeToolCallInputStreamingStart, map[string]any{"name": "lookup"})
	apply(r, events.EventTypeToolCall, map[string]any{"args": map[string]any{"k": "v"}})
	apply(r, events.EventTypeToolResult, map[string]any{"result": "ok"})

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "lookup", msgs[0].Name)
	assert.Equal(t, models.ToolStatusComplete, msgs[0].Status)
	assert.Equal(t, "ok", msgs[0].Result)
}

func TestReducerToolStartWithoutNameUsesPlaceholder(t *testing.T) {
	r, store := newTestReducer()

	apply(r, events.EventTypeToolCallInputStreamingStart, map[string]any{})
	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "unknown-tool", msgs[0].Name)
}

func TestReducerToolResultWithoutResultFieldUsesWholePayload(t *testing.T) {
	r, store := newTestReducer()

	apply(r, events.EventTypeToolCallInputStreamingStart, map[string]any{"toolName": "search"})
	payload := map[string]any{"output": "raw", "code": "OK"}
	apply(r, events.EventTypeToolResult, payload)

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, payload, msgs[0].Result)
}

func TestReducerToolFailureHeuristic(t *testing.T) {
	tests := []struct {
		name   string
		result any
		failed bool
	}{
		{"error flag true", map[string]any{"error": true}, true},
		{"isError flag true", map[string]any{"isError": true}, true},
		{"error flag false", map[string]any{"error": false}, false},
		{"validation errors present", map[string]any{"validationErrors": []any{"bad arg"}}, true},
		{"known failure code", map[string]any{"code": "TOOL_EXECUTION_FAILED"}, true},
		{"timeout code", map[string]any{"code": "TIMEOUT"}, true},
		{"benign code", map[string]any{"code": "OK"}, false},
		{"error in message", map[string]any{"message": "Error: upstream unavailable"}, true},
		{"benign message", map[string]any{"message": "all good"}, false},
		{"non-object result", "plain text result", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store := newTestReducer()
			apply(r, events.EventTypeToolCallInputStreamingStart, map[string]any{"toolName": "search"})
			apply(r, events.EventTypeToolResult, map[string]any{"result": tt.result})

			msgs := store.Messages()
			require.Len(t, msgs, 1)
			want := models.ToolStatusComplete
			if tt.failed {
				want = models.ToolStatusError
			}
			assert.Equal(t, want, msgs[0].Status)
		})
	}
}

func TestReducerErrorEventCarriesOriginalContent(t *testing.T) {
	r, store := newTestReducer()
	r.SetOriginalContent("what's the weather")

	apply(r, events.EventTypeError, map[string]any{"error": "Stream processing failed after retries"})

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageTypeError, msgs[0].Type)
	assert.Equal(t, "Stream processing failed after retries", msgs[0].Content)
	assert.Equal(t, "what's the weather", msgs[0].OriginalContent)
	assert.False(t, msgs[0].IsRetried)
}

func TestReducerRestreamNeededBecomesBookkeepingMessage(t *testing.T) {
	r, store := newTestReducer()

	apply(r, events.EventTypeRestreamNeeded, map[string]any{
		"lastEventType":         "text-delta",
		"previousLastEventType": "text-start",
		"retryCount":            float64(1),
	})

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageTypeRestream, msgs[0].Type)
	assert.Equal(t, "text-delta", msgs[0].LastEventType)
	assert.Equal(t, "text-start", msgs[0].PreviousLastEventType)
	assert.Equal(t, 1, msgs[0].RetryCount)
}

func TestReducerUnknownEventTypeIsNoOp(t *testing.T) {
	r, store := newTestReducer()

	apply(r, events.EventTypeTextStart, map[string]any{})
	apply(r, "some-future-event", map[string]any{"x": 1.0})
	apply(r, events.EventTypeTextDelta, map[string]any{"text": "still works"})
	apply(r, events.EventTypeTextEnd, map[string]any{})

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "still works", msgs[0].Content)
}

func TestReducerNilEventIsNoOp(t *testing.T) {
	r, store := newTestReducer()
	r.Apply(nil)
	assert.Empty(t, store.Messages())
}
