package sse

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentline/chatrelay/pkg/events"
)

const sampleStream = "data: {\"type\":\"text-start\",\"payload\":{\"id\":\"m1\"}}\n\n" +
	"data: {\"type\":\"text-delta\",\"payload\":{\"text\":\"Hello\"}}\n\n" +
	"data: {\"type\":\"text-end\",\"payload\":{}}\n\n" +
	"data: [DONE]\n\n"

func collectFrames(dec *Decoder, chunks ...string) []Frame {
	var frames []Frame
	for _, chunk := range chunks {
		frames = append(frames, dec.Feed([]byte(chunk))...)
	}
	return append(frames, dec.Close()...)
}

func assertSampleFrames(t *testing.T, frames []Frame) {
	t.Helper()
	require.Len(t, frames, 4)
	assert.Equal(t, events.EventTypeTextStart, frames[0].Event.Type)
	assert.Equal(t, events.EventTypeTextDelta, frames[1].Event.Type)
	assert.Equal(t, "Hello", frames[1].Event.Payload["text"])
	assert.Equal(t, events.EventTypeTextEnd, frames[2].Event.Type)
	assert.True(t, frames[3].Done)
}

func TestDecoderSingleChunk(t *testing.T) {
	assertSampleFrames(t, collectFrames(NewDecoder(), sampleStream))
}

func TestDecoderArbitrarySplits(t *testing.T) {
	// The frame sequence must decode identically no matter where the
	// network fragments the byte stream, including mid-line and mid-JSON.
	for _, size := range []int{1, 2, 3, 5, 7, 16, 64} {
		t.Run(fmt.Sprintf("chunk-size-%d", size), func(t *testing.T) {
			var chunks []string
			for i := 0; i < len(sampleStream); i += size {
				end := min(i+size, len(sampleStream))
				chunks = append(chunks, sampleStream[i:end])
			}
			assertSampleFrames(t, collectFrames(NewDecoder(), chunks...))
		})
	}
}

func TestDecoderSplitAtEveryBoundary(t *testing.T) {
	oneFrame := "data: {\"type\":\"text-delta\",\"payload\":{\"text\":\"hi\"}}\n\n"
	for cut := 0; cut <= len(oneFrame); cut++ {
		frames := collectFrames(NewDecoder(), oneFrame[:cut], oneFrame[cut:])
		require.Len(t, frames, 1, "cut at byte %d", cut)
		assert.Equal(t, "hi", frames[0].Event.Payload["text"])
	}
}

func TestDecoderSkipsMalformedFrames(t *testing.T) {
	stream := "data: {\"type\":\"text-start\",\"payload\":{}}\n\n" +
		"data: {not json at all\n\n" +
		"data: {\"type\":\"text-end\",\"payload\":{}}\n\n"

	frames := collectFrames(NewDecoder(), stream)
	require.Len(t, frames, 2)
	assert.Equal(t, events.EventTypeTextStart, frames[0].Event.Type)
	assert.Equal(t, events.EventTypeTextEnd, frames[1].Event.Type)
}

func TestDecoderIgnoresNonDataLines(t *testing.T) {
	stream := ": keep-alive comment\n\n" +
		"event: message\n" +
		"data: {\"type\":\"finish\",\"payload\":{}}\n\n"

	frames := collectFrames(NewDecoder(), stream)
	require.Len(t, frames, 1)
	assert.Equal(t, events.EventTypeFinish, frames[0].Event.Type)
}

func TestDecoderHandlesCRLF(t *testing.T) {
	stream := "data: {\"type\":\"finish\",\"payload\":{}}\r\n\r\ndata: [DONE]\r\n\r\n"

	frames := collectFrames(NewDecoder(), stream)
	require.Len(t, frames, 2)
	assert.Equal(t, events.EventTypeFinish, frames[0].Event.Type)
	assert.True(t, frames[1].Done)
}

func TestDecoderCloseFlushesTrailingLine(t *testing.T) {
	// No trailing newline: the final line is only complete once the stream
	// ends.
	dec := NewDecoder()
	frames := dec.Feed([]byte("data: {\"type\":\"finish\",\"payload\":{}}"))
	assert.Empty(t, frames)

	frames = dec.Close()
	require.Len(t, frames, 1)
	assert.Equal(t, events.EventTypeFinish, frames[0].Event.Type)
}
