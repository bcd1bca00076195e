package sse

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/agentline/chatrelay/pkg/events"
)

// Frame is one decoded SSE frame: either the [DONE] sentinel or a normalized
// event.
type Frame struct {
	Done  bool
	Event *events.Event
}

// Decoder reassembles SSE frames from a byte stream that may be split at
// arbitrary boundaries. It keeps a rolling buffer: the last element after a
// newline split is always re-buffered as a possibly-incomplete line and only
// processed once more bytes arrive or the stream ends.
type Decoder struct {
	buf    string
	logger *slog.Logger
}

// NewDecoder creates a decoder with the default logger.
func NewDecoder() *Decoder {
	return &Decoder{logger: slog.Default()}
}

// Feed consumes the next network chunk and returns the frames completed by
// it, in arrival order. A malformed frame is logged and skipped; it never
// terminates decoding or corrupts subsequent frames.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf += string(chunk)

	lines := strings.Split(d.buf, "\n")
	d.buf = lines[len(lines)-1]

	var frames []Frame
	for _, line := range lines[:len(lines)-1] {
		if frame, ok := d.decodeLine(line); ok {
			frames = append(frames, frame)
		}
	}
	return frames
}

// Close flushes the remaining buffered line at end of stream.
func (d *Decoder) Close() []Frame {
	line := d.buf
	d.buf = ""
	if frame, ok := d.decodeLine(line); ok {
		return []Frame{frame}
	}
	return nil
}

func (d *Decoder) decodeLine(line string) (Frame, bool) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return Frame{}, false
	}

	payload := line[len(dataPrefix):]
	if payload == DoneSentinel {
		return Frame{Done: true}, true
	}

	var ev events.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		d.logger.Warn("Skipping malformed SSE frame", "error", err)
		return Frame{}, false
	}
	return Frame{Event: &ev}, true
}
