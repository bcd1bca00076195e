package client

import (
	"strings"
	"sync"
	"time"
)

// DefaultFlushInterval is one frame at 60 Hz, the rendering cadence the
// batcher aligns flushes to.
const DefaultFlushInterval = 16 * time.Millisecond

// DeltaBatcher coalesces rapid text-delta events into frame-aligned batch
// flushes so fast token streams don't trigger a render per token. At most
// one flush is armed at a time; ordering and completeness are preserved
// because fragments only ever accumulate per message and a synchronous
// Flush always runs before a message is finalized.
//
// Each batcher belongs to one session's reducer. Sharing one across
// sessions would leak pending text between conversations.
type DeltaBatcher struct {
	mu       sync.Mutex
	store    *Store
	interval time.Duration
	pending  map[string]*strings.Builder
	order    []string
	timer    *time.Timer
	armed    bool
}

// NewDeltaBatcher creates a batcher flushing into store. A non-positive
// interval falls back to DefaultFlushInterval.
func NewDeltaBatcher(store *Store, interval time.Duration) *DeltaBatcher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &DeltaBatcher{
		store:    store,
		interval: interval,
		pending:  make(map[string]*strings.Builder),
	}
}

// Add appends a fragment to the message's pending buffer and arms a flush on
// the next tick if one isn't armed already.
func (b *DeltaBatcher) Add(messageID, fragment string) {
	if fragment == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.pending[messageID]
	if !ok {
		buf = &strings.Builder{}
		b.pending[messageID] = buf
		b.order = append(b.order, messageID)
	}
	buf.WriteString(fragment)

	if !b.armed {
		b.armed = true
		b.timer = time.AfterFunc(b.interval, b.Flush)
	}
}

// Flush applies all pending buffers to their target messages in one store
// transition and disarms the pending tick. Safe to call at any time; called
// synchronously before any text-end finalization.
func (b *DeltaBatcher) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.armed = false

	if len(b.order) == 0 {
		b.mu.Unlock()
		return
	}
	order := b.order
	pending := make(map[string]string, len(b.pending))
	for id, buf := range b.pending {
		pending[id] = buf.String()
	}
	b.order = nil
	b.pending = make(map[string]*strings.Builder)
	b.mu.Unlock()

	b.store.ApplyDeltas(order, pending)
}
