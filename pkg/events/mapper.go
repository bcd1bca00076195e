package events

import (
	"strings"

	"github.com/agentline/chatrelay/pkg/upstream"
)

// payloadSource selects where a normalized event's payload comes from in the
// upstream event.
type payloadSource int

const (
	// sourceOuter uses the upstream event's payload object directly.
	sourceOuter payloadSource = iota
	// sourceInner uses the nested payload.payload object; events missing it
	// are dropped.
	sourceInner
)

// mappingTable is the fixed, total translation from upstream event types to
// the normalized vocabulary. Upstream types not listed here (and not matching
// the error suffix) are silently discarded.
var mappingTable = map[string]struct {
	normalized string
	source     payloadSource
}{
	"routing-agent-start":              {EventTypeRoutingStart, sourceOuter},
	"routing-agent-end":                {EventTypeRoutingEnd, sourceOuter},
	"agent-execution-start":            {EventTypeAgentStart, sourceOuter},
	"agent-execution-end":              {EventTypeAgentEnd, sourceOuter},
	"agent-execution-event-text-start": {EventTypeTextStart, sourceInner},
	"agent-execution-event-text-delta": {EventTypeTextDelta, sourceInner},
	"agent-execution-event-text-end":   {EventTypeTextEnd, sourceInner},

	"agent-execution-event-tool-call-input-streaming-start": {EventTypeToolCallInputStreamingStart, sourceInner},
	"agent-execution-event-tool-call":                       {EventTypeToolCall, sourceInner},
	"agent-execution-event-tool-result":                     {EventTypeToolResult, sourceInner},
	"network-execution-event-step-finish":                   {EventTypeFinish, sourceOuter},
}

// errorEventSuffix matches error events from any execution layer
// (agent-execution-event-error, network-execution-event-error, ...).
const errorEventSuffix = "-execution-event-error"

// Map translates one upstream event into the normalized vocabulary.
// Returns nil for events that must be discarded: unknown types, events with
// no payload, and inner-sourced events whose nested payload is absent.
// Map is pure and never fails on malformed input.
func Map(ev upstream.Event) *Event {
	if ev.Payload == nil {
		return nil
	}

	if entry, ok := mappingTable[ev.Type]; ok {
		payload := ev.Payload
		if entry.source == sourceInner {
			if payload = ev.Inner(); payload == nil {
				return nil
			}
		}
		return &Event{Type: entry.normalized, Payload: payload}
	}

	if strings.HasSuffix(ev.Type, errorEventSuffix) {
		payload := ev.Inner()
		if payload == nil {
			payload = ev.Payload
		}
		return &Event{Type: EventTypeError, Payload: payload}
	}

	return nil
}
