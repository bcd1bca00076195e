package relay

import "github.com/agentline/chatrelay/pkg/events"

// streamCursor tracks the last two normalized event types seen on one client
// request, across restreams. The two-slot history is what decides whether an
// upstream turn completed cleanly.
type streamCursor struct {
	retryCount            int
	previousLastEventType string
	lastEventType         string
}

// record shifts the two-slot history forward.
func (c *streamCursor) record(eventType string) {
	c.previousLastEventType = c.lastEventType
	c.lastEventType = eventType
}

// cleanlyCompleted reports whether the stream ended in the expected terminal
// shape: the upstream closes its text channel and then ends the turn, so the
// penultimate event must be text-end. This check deliberately does not also
// require a finish event; see the completion-validity notes in DESIGN.md.
func (c *streamCursor) cleanlyCompleted() bool {
	return c.previousLastEventType == events.EventTypeTextEnd
}
