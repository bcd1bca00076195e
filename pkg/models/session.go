package models

import "github.com/google/uuid"

// Session holds the opaque correlation identifiers sent with every chat
// request so the upstream service can maintain conversation memory across
// turns. Immutable for the session's lifetime; replaced only by an explicit
// session reset.
type Session struct {
	ThreadID   string `json:"thread_id"`
	ResourceID string `json:"resource_id"`
}

// NewSession generates fresh correlation identifiers.
func NewSession() Session {
	return Session{
		ThreadID:   uuid.NewString(),
		ResourceID: uuid.NewString(),
	}
}
