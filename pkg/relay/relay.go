// Package relay owns the server-side streaming event pipeline: it drives
// upstream streaming calls, normalizes their events, forwards them as SSE
// frames, and transparently re-issues truncated turns ("restream") up to a
// configured retry ceiling.
package relay

import (
	"context"
	"log/slog"

	"github.com/agentline/chatrelay/pkg/events"
	"github.com/agentline/chatrelay/pkg/metrics"
	"github.com/agentline/chatrelay/pkg/sse"
	"github.com/agentline/chatrelay/pkg/upstream"
)

// continuationContent is the synthetic user turn appended to the message
// history before each restream, prompting the upstream to resume the
// truncated turn.
const continuationContent = "continue"

// errorAfterRetries is the client-safe message for an exhausted retry loop.
const errorAfterRetries = "Stream processing failed after retries"

// errorMidStream is the client-safe message for a failed restream call.
const errorMidStream = "Stream processing failed"

// Streamer opens one streaming call to the agent-execution service.
type Streamer interface {
	Stream(ctx context.Context, req upstream.ChatRequest) (<-chan upstream.Event, error)
}

// Relay re-shapes one upstream stream per client request into the normalized
// SSE feed. Each Run owns its stream cursor; Relay itself holds no
// per-request state and is safe for concurrent use.
type Relay struct {
	upstream   Streamer
	maxRetries int
	logger     *slog.Logger
}

// New creates a relay with the given retry ceiling.
func New(streamer Streamer, maxRetries int) *Relay {
	return &Relay{
		upstream:   streamer,
		maxRetries: maxRetries,
		logger:     slog.Default(),
	}
}

// state is one node of the relay's finite-state retry loop. Making the loop
// explicit keeps the "suppress errors until retries exhaust" rule auditable
// in isolation from transport concerns.
type state int

const (
	stateStreaming state = iota
	stateCheckComplete
	stateRetry
	stateExhausted
	stateDone
)

// Run forwards the already-opened first upstream stream (and any restreams)
// to w until the turn completes cleanly or retries exhaust, then always
// terminates the feed with a [DONE] frame. The HTTP response must already be
// started: every failure past this point is reported in-band as an SSE error
// frame, never as a failed response.
func (r *Relay) Run(ctx context.Context, req upstream.ChatRequest, first <-chan upstream.Event, w *sse.Writer) {
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	cur := &streamCursor{}
	stream := first
	outcome := metrics.OutcomeClean

	for st := stateStreaming; st != stateDone; {
		switch st {
		case stateStreaming:
			if err := r.forward(stream, cur, w); err != nil {
				// Client write failed; nothing further can be delivered.
				r.logger.Warn("Client stream write failed, aborting relay",
					"thread_id", req.ThreadID, "error", err)
				outcome = metrics.OutcomeFailed
				st = stateDone
				break
			}
			st = stateCheckComplete

		case stateCheckComplete:
			if cur.cleanlyCompleted() {
				st = stateDone
				break
			}
			r.logger.Info("Upstream turn truncated, restreaming",
				"thread_id", req.ThreadID,
				"last_event_type", cur.lastEventType,
				"previous_last_event_type", cur.previousLastEventType,
				"retry_count", cur.retryCount)
			if err := w.WriteEvent(events.RestreamNeeded(
				cur.lastEventType, cur.previousLastEventType, cur.retryCount)); err != nil {
				r.logger.Warn("Failed to write restream diagnostic", "error", err)
			}
			metrics.RestreamsTotal.Inc()
			cur.retryCount++
			st = stateRetry

		case stateRetry:
			if cur.retryCount >= r.maxRetries {
				st = stateExhausted
				break
			}
			req.Messages = append(req.Messages, upstream.ConversationMessage{
				Role:    "user",
				Content: continuationContent,
			})
			next, err := r.upstream.Stream(ctx, req)
			if err != nil {
				r.logger.Error("Restream call failed",
					"thread_id", req.ThreadID, "retry_count", cur.retryCount, "error", err)
				if wErr := w.WriteEvent(events.ErrorEvent(errorMidStream)); wErr != nil {
					r.logger.Warn("Failed to write error frame", "error", wErr)
				}
				outcome = metrics.OutcomeFailed
				st = stateDone
				break
			}
			stream = next
			st = stateStreaming

		case stateExhausted:
			r.logger.Error("Retries exhausted without clean completion",
				"thread_id", req.ThreadID,
				"retry_count", cur.retryCount,
				"last_event_type", cur.lastEventType)
			if err := w.WriteEvent(events.ErrorEvent(errorAfterRetries)); err != nil {
				r.logger.Warn("Failed to write error frame", "error", err)
			}
			outcome = metrics.OutcomeExhausted
			st = stateDone
		}
	}

	if err := w.WriteDone(); err != nil {
		r.logger.Warn("Failed to write [DONE] frame", "error", err)
	}
	metrics.StreamsTotal.WithLabelValues(outcome).Inc()
}

// forward drains one upstream stream, normalizing and emitting each event.
// Error events are recorded in the cursor history but never forwarded here:
// error delivery is deferred until the retry loop gives up. Returns an error
// only when writing to the client fails.
func (r *Relay) forward(stream <-chan upstream.Event, cur *streamCursor, w *sse.Writer) error {
	for ev := range stream {
		mapped := events.Map(ev)
		if mapped == nil {
			metrics.DroppedEventsTotal.Inc()
			continue
		}

		cur.record(mapped.Type)
		metrics.UpstreamEventsTotal.WithLabelValues(mapped.Type).Inc()

		if mapped.Type == events.EventTypeError {
			r.logger.Warn("Suppressing mid-stream upstream error",
				"retry_count", cur.retryCount, "payload", mapped.Payload)
			continue
		}

		if err := w.WriteEvent(mapped); err != nil {
			return err
		}
	}
	return nil
}
