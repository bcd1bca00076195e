package api

import (
	"fmt"
	"strings"

	"github.com/agentline/chatrelay/pkg/config"
	"github.com/agentline/chatrelay/pkg/upstream"
)

// ChatMessage is one prior conversation turn in a chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the HTTP request body for POST /api/chat.
type ChatRequest struct {
	Messages   []ChatMessage `json:"messages"`
	ThreadID   string        `json:"threadId,omitempty"`
	ResourceID string        `json:"resourceId,omitempty"`
}

// validationFailure describes a rejected chat request field.
type validationFailure struct {
	Message string
	Path    string
}

// validateChatRequest applies the configured limits. Message content is
// sanitized (trimmed) in place; validation runs against the sanitized form.
func validateChatRequest(req *ChatRequest, limits config.ChatConfig) *validationFailure {
	if len(req.Messages) == 0 {
		return &validationFailure{Message: "messages must not be empty", Path: "messages"}
	}
	if len(req.Messages) > limits.MaxMessages {
		return &validationFailure{
			Message: fmt.Sprintf("too many messages: %d exceeds maximum of %d", len(req.Messages), limits.MaxMessages),
			Path:    "messages",
		}
	}
	for i := range req.Messages {
		req.Messages[i].Content = strings.TrimSpace(req.Messages[i].Content)
		path := fmt.Sprintf("messages[%d].content", i)
		if req.Messages[i].Content == "" {
			return &validationFailure{Message: "content must not be empty", Path: path}
		}
		if len(req.Messages[i].Content) > limits.MaxContentLength {
			return &validationFailure{
				Message: fmt.Sprintf("content exceeds maximum length of %d characters", limits.MaxContentLength),
				Path:    path,
			}
		}
	}
	return nil
}

// toUpstreamRequest converts the validated HTTP request into the upstream
// call shape. Session identifiers are opaque pass-through values.
func toUpstreamRequest(req *ChatRequest) upstream.ChatRequest {
	messages := make([]upstream.ConversationMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = upstream.ConversationMessage{Role: m.Role, Content: m.Content}
	}
	return upstream.ChatRequest{
		Messages:   messages,
		ThreadID:   req.ThreadID,
		ResourceID: req.ResourceID,
	}
}
