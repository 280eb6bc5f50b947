package batch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func textOf(s string) TextFunc {
	return func() (string, bool) { return s, true }
}

type flushLog struct {
	mu      sync.Mutex
	batches [][]Entry
	done    chan struct{}
}

func newFlushLog() *flushLog {
	return &flushLog{done: make(chan struct{}, 16)}
}

func (l *flushLog) flush(entries []Entry) {
	l.mu.Lock()
	l.batches = append(l.batches, entries)
	l.mu.Unlock()
	l.done <- struct{}{}
}

func (l *flushLog) wait(t *testing.T) {
	t.Helper()
	select {
	case <-l.done:
	case <-time.After(2 * time.Second):
		t.Fatal("flush did not happen")
	}
}

func TestBurstCoalescesIntoOneFlush(t *testing.T) {
	log := newFlushLog()
	b := New(80*time.Millisecond, log.flush)

	for i := 0; i < 10; i++ {
		b.Add(i%3, textOf("v"))
		time.Sleep(2 * time.Millisecond)
	}
	log.wait(t)
	time.Sleep(120 * time.Millisecond)

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.batches) != 1 {
		t.Fatalf("expected 1 flush, got %d", len(log.batches))
	}
	got := log.batches[0]
	if len(got) != 3 || got[0].Line != 0 || got[1].Line != 1 || got[2].Line != 2 {
		t.Fatalf("unexpected batch %+v", got)
	}
}

func TestLastProviderWins(t *testing.T) {
	log := newFlushLog()
	b := New(time.Hour, log.flush)
	b.Add(4, textOf("old"))
	b.Add(4, textOf("new"))
	b.Flush()
	log.wait(t)

	text, ok := log.batches[0][0].Text()
	if !ok || text != "new" {
		t.Fatalf("expected last provider, got %q", text)
	}
	if b.Pending() != 0 {
		t.Fatalf("pending not cleared")
	}
}

func TestFlushWithNothingPending(t *testing.T) {
	var calls atomic.Int32
	b := New(time.Hour, func([]Entry) { calls.Add(1) })
	b.Flush()
	if calls.Load() != 0 {
		t.Fatal("empty flush invoked callback")
	}
}

func TestFlushesDoNotOverlap(t *testing.T) {
	var active, maxActive atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	b := New(time.Hour, func([]Entry) {
		n := active.Add(1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		<-release
		active.Add(-1)
	})

	for i := 0; i < 3; i++ {
		b.Add(i, textOf("x"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Flush()
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if maxActive.Load() != 1 {
		t.Fatalf("flushes overlapped: %d", maxActive.Load())
	}
}

func TestStopCancelsPendingFlush(t *testing.T) {
	var calls atomic.Int32
	b := New(10*time.Millisecond, func([]Entry) { calls.Add(1) })
	b.Add(1, textOf("x"))
	b.Stop()
	b.Add(2, textOf("y"))
	time.Sleep(40 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("flush ran after Stop")
	}
}
