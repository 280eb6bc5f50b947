// Package batch coalesces bursts of line-change notifications into one
// debounced pass.
package batch

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultDelay is the quiet period before a flush.
const DefaultDelay = 200 * time.Millisecond

// TextFunc returns the current text of a line, or false when the line no
// longer exists. It is called at flush time, never at notification time.
type TextFunc func() (string, bool)

// Entry is one line handed to the flush callback.
type Entry struct {
	Line int
	Text TextFunc
}

// FlushFunc processes one batch. Entries are sorted by line.
type FlushFunc func(entries []Entry)

// Batcher accumulates line notifications and flushes them after a quiet
// period. Flushes never overlap.
type Batcher struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[int]TextFunc
	timer   *time.Timer
	stopped bool

	seq     uint64
	flushMu sync.Mutex
	flush   FlushFunc
}

// New creates a batcher calling flush after delay of inactivity.
func New(delay time.Duration, flush FlushFunc) *Batcher {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Batcher{
		delay:   delay,
		pending: make(map[int]TextFunc),
		flush:   flush,
	}
}

// Delay returns the debounce window.
func (b *Batcher) Delay() time.Duration {
	return b.delay
}

// SetDelay changes the window used by later notifications.
func (b *Batcher) SetDelay(d time.Duration) {
	if d <= 0 {
		d = DefaultDelay
	}
	b.mu.Lock()
	b.delay = d
	b.mu.Unlock()
}

// Add records line with its text provider and restarts the timer. A later
// provider for the same line replaces the earlier one.
func (b *Batcher) Add(line int, text TextFunc) {
	b.AddMany(map[int]TextFunc{line: text})
}

// AddMany records several lines under a single timer restart.
func (b *Batcher) AddMany(lines map[int]TextFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	for line, text := range lines {
		b.pending[line] = text
	}
	seq := atomic.AddUint64(&b.seq, 1)
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, func() {
		b.fire(seq)
	})
}

// Pending returns the number of lines waiting for the next flush.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Batcher) fire(seq uint64) {
	// a newer notification rescheduled the flush
	if seq != atomic.LoadUint64(&b.seq) {
		return
	}
	b.Flush()
}

// Flush processes pending lines immediately.
func (b *Batcher) Flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	entries := make([]Entry, 0, len(b.pending))
	for line, text := range b.pending {
		entries = append(entries, Entry{Line: line, Text: text})
	}
	b.pending = make(map[int]TextFunc)
	b.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Line < entries[j].Line })
	if b.flush != nil {
		b.flush(entries)
	}
}

// Stop cancels any scheduled flush and drops pending lines. Later
// notifications are ignored.
func (b *Batcher) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	atomic.AddUint64(&b.seq, 1)
	b.pending = make(map[int]TextFunc)
}
