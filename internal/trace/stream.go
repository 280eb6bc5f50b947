package trace

import (
	"bufio"
	"io"
	"sync"
)

// StreamTracer writes events as they happen. Output is buffered and flushed
// on every error event and on Flush, so a language server does not pay a
// syscall per line decision.
type StreamTracer struct {
	mu     sync.Mutex
	dst    io.Writer
	w      *bufio.Writer
	level  Level
	format Format
}

func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	return &StreamTracer{
		dst:    w,
		w:      bufio.NewWriter(w),
		level:  level,
		format: format,
	}
}

func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Kind, ev.Scope) {
		return
	}
	ev.Seq = nextSeq()
	data := FormatEvent(ev, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()
	// tracing never fails the caller
	_, _ = t.w.Write(data)
	if ev.Kind == KindError {
		_ = t.w.Flush()
	}
}

func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w.Flush()
}

// Close flushes and closes the destination if it is a closer other than a
// standard stream.
func (t *StreamTracer) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}
	if closer, ok := t.dst.(io.Closer); ok && !isStdStream(t.dst) {
		return closer.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
