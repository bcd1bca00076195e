// Package sse implements the wire-level Server-Sent Events framing shared by
// the server (encode) and client (decode): one `data: <json>\n\n` frame per
// event, terminated by the literal `data: [DONE]\n\n` sentinel.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/agentline/chatrelay/pkg/events"
)

// DoneSentinel is the literal payload of the terminal frame. It is not
// JSON-wrapped.
const DoneSentinel = "[DONE]"

const dataPrefix = "data: "

// Writer encodes normalized events as SSE frames. Each frame is flushed
// immediately so clients observe events as they happen, with no buffering
// beyond one frame.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. If w implements http.Flusher, every frame is flushed.
func NewWriter(w io.Writer) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// WriteEvent emits one event as a single SSE frame.
func (w *Writer) WriteEvent(ev *events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return w.writeFrame(string(data))
}

// WriteDone emits the terminal [DONE] frame.
func (w *Writer) WriteDone() error {
	return w.writeFrame(DoneSentinel)
}

func (w *Writer) writeFrame(payload string) error {
	if _, err := fmt.Fprintf(w.w, "%s%s\n\n", dataPrefix, payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
