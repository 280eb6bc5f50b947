package trace

import (
	"fmt"
	"io"
	"sync"
)

// RingTracer keeps the most recent events in memory so that a session can be
// dumped after the fact, e.g. when the CLI exits.
type RingTracer struct {
	mu      sync.Mutex
	buf     []Event
	start   int
	count   int
	dropped uint64
	level   Level
}

// NewRingTracer keeps up to capacity events (4096 when capacity <= 0).
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = defaultRingSize
	}
	return &RingTracer{buf: make([]Event, capacity), level: level}
}

func (t *RingTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Kind, ev.Scope) {
		return
	}
	stored := *ev
	stored.Seq = nextSeq()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count < len(t.buf) {
		t.buf[(t.start+t.count)%len(t.buf)] = stored
		t.count++
		return
	}
	t.buf[t.start] = stored
	t.start = (t.start + 1) % len(t.buf)
	t.dropped++
}

// Len reports how many events are held.
func (t *RingTracer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Snapshot copies the held events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, t.count)
	for i := range out {
		out[i] = t.buf[(t.start+i)%len(t.buf)]
	}
	return out
}

// Dump writes the held events to w. A note precedes them when older events
// were overwritten.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	t.mu.Lock()
	dropped := t.dropped
	t.mu.Unlock()
	if dropped > 0 && format != FormatNDJSON {
		if _, err := fmt.Fprintf(w, "... %d earlier events dropped\n", dropped); err != nil {
			return err
		}
	}
	for _, ev := range t.Snapshot() {
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
