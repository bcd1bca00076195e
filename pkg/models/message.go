package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageType discriminates the message variants in a conversation transcript.
type MessageType string

const (
	MessageTypeUser     MessageType = "user"
	MessageTypeBot      MessageType = "bot"
	MessageTypeTool     MessageType = "tool"
	MessageTypeRouting  MessageType = "routing"
	MessageTypeError    MessageType = "error"
	MessageTypeRestream MessageType = "restream"
)

// ToolStatus is the lifecycle state of a tool message.
// Transitions are monotonically forward: start → toolCalling → {complete|error}.
type ToolStatus string

const (
	ToolStatusStart       ToolStatus = "start"
	ToolStatusToolCalling ToolStatus = "toolCalling"
	ToolStatusComplete    ToolStatus = "complete"
	ToolStatusError       ToolStatus = "error"
)

// rank orders tool statuses so regressions can be rejected.
func (s ToolStatus) rank() int {
	switch s {
	case ToolStatusStart:
		return 0
	case ToolStatusToolCalling:
		return 1
	case ToolStatusComplete, ToolStatusError:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next preserves the
// forward-only tool lifecycle.
func (s ToolStatus) CanTransitionTo(next ToolStatus) bool {
	return next.rank() > s.rank()
}

// Message is one entry in the conversation transcript. It is a tagged union
// discriminated by Type; only the fields relevant to each variant are set.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`

	// user, bot, error variants
	Content string `json:"content,omitempty"`

	// bot, routing variants. Transitions true → false exactly once.
	IsStreaming bool `json:"is_streaming,omitempty"`

	// tool variant
	Name   string     `json:"name,omitempty"`
	Args   any        `json:"args,omitempty"`
	Result any        `json:"result,omitempty"`
	Status ToolStatus `json:"status,omitempty"`

	// routing variant
	Start           string `json:"start,omitempty"`
	End             string `json:"end,omitempty"`
	SelectionReason string `json:"selection_reason,omitempty"`
	Prompt          string `json:"prompt,omitempty"`

	// error variant. OriginalContent holds the failed user input so the
	// message can be resent; IsRetried flips once a resend happens.
	ErrorCode       string `json:"error_code,omitempty"`
	OriginalContent string `json:"original_content,omitempty"`
	IsRetried       bool   `json:"is_retried,omitempty"`

	// restream variant
	LastEventType         string `json:"last_event_type,omitempty"`
	PreviousLastEventType string `json:"previous_last_event_type,omitempty"`
	RetryCount            int    `json:"retry_count,omitempty"`
}

// NewUserMessage creates a user message with a generated ID.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      MessageTypeUser,
		Timestamp: time.Now(),
		Content:   content,
	}
}

// NewBotMessage creates an empty streaming bot message.
func NewBotMessage() *Message {
	return &Message{
		ID:          uuid.NewString(),
		Type:        MessageTypeBot,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// NewToolMessage creates a tool message in the start state.
func NewToolMessage(name string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      MessageTypeTool,
		Timestamp: time.Now(),
		Name:      name,
		Status:    ToolStatusStart,
	}
}

// NewRoutingMessage creates a streaming routing message.
func NewRoutingMessage(start string) *Message {
	return &Message{
		ID:          uuid.NewString(),
		Type:        MessageTypeRouting,
		Timestamp:   time.Now(),
		IsStreaming: true,
		Start:       start,
	}
}

// NewErrorMessage creates an error message carrying the failed user input.
func NewErrorMessage(content, errorCode, originalContent string) *Message {
	return &Message{
		ID:              uuid.NewString(),
		Type:            MessageTypeError,
		Timestamp:       time.Now(),
		Content:         content,
		ErrorCode:       errorCode,
		OriginalContent: originalContent,
	}
}

// NewRestreamMessage creates an informational restream bookkeeping message.
func NewRestreamMessage(lastEventType, previousLastEventType string, retryCount int) *Message {
	return &Message{
		ID:                    uuid.NewString(),
		Type:                  MessageTypeRestream,
		Timestamp:             time.Now(),
		LastEventType:         lastEventType,
		PreviousLastEventType: previousLastEventType,
		RetryCount:            retryCount,
	}
}
