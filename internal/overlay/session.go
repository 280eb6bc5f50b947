package overlay

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"memeful/internal/batch"
	"memeful/internal/dialect"
	"memeful/internal/directive"
	"memeful/internal/linestate"
	"memeful/internal/trace"
)

// Sink receives line outcomes on the dispatcher goroutine.
type Sink interface {
	Publish(line int, o linestate.Outcome)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(line int, o linestate.Outcome)

func (f SinkFunc) Publish(line int, o linestate.Outcome) { f(line, o) }

// TextSource reads the current text of a line; false means the line is gone.
type TextSource interface {
	LineText(line int) (string, bool)
}

// Options configures a Session.
type Options struct {
	Dialect    dialect.Kind
	BaseDir    string
	Debounce   time.Duration
	Switch     *Switch
	Dispatcher *Dispatcher
	Fetcher    linestate.Fetcher
	Text       TextSource
	Sink       Sink
}

// Session tracks the image directives of one document.
type Session struct {
	tracer     trace.Tracer
	dialect    atomic.Uint32
	sw         *Switch
	text       TextSource
	sink       Sink
	dispatcher *Dispatcher
	tracker    *linestate.Tracker
	batcher    *batch.Batcher
}

// NewSession wires a session. A nil Switch means always enabled; a nil
// Dispatcher gets a private one.
func NewSession(ctx context.Context, opts Options) *Session {
	s := &Session{
		tracer:     trace.FromContext(ctx),
		sw:         opts.Switch,
		text:       opts.Text,
		sink:       opts.Sink,
		dispatcher: opts.Dispatcher,
	}
	if s.sw == nil {
		s.sw = NewSwitch(true)
	}
	if s.dispatcher == nil {
		s.dispatcher = NewDispatcher()
	}
	if s.sink == nil {
		s.sink = SinkFunc(func(int, linestate.Outcome) {})
	}
	s.dialect.Store(uint32(opts.Dialect))
	s.tracker = linestate.NewTracker(ctx, opts.BaseDir, opts.Fetcher, s.post)
	s.batcher = batch.New(opts.Debounce, s.flush)
	return s
}

func (s *Session) post(line int, o linestate.Outcome) {
	sink := s.sink
	s.dispatcher.Post(func() { sink.Publish(line, o) })
}

// Dialect returns the comment syntax used by the next flush.
func (s *Session) Dialect() dialect.Kind {
	return dialect.Kind(s.dialect.Load())
}

// NotifyContentTypeChanged switches the comment syntax for later flushes.
func (s *Session) NotifyContentTypeChanged(d dialect.Kind) {
	old := dialect.Kind(s.dialect.Swap(uint32(d)))
	if old != d {
		trace.Point(s.tracer, trace.ScopeSession, "dialect", old.String()+" -> "+d.String())
	}
}

// NotifyLinesChanged schedules lines for the next debounced pass.
func (s *Session) NotifyLinesChanged(lines ...int) {
	if len(lines) == 0 {
		return
	}
	set := make(map[int]batch.TextFunc, len(lines))
	for _, line := range lines {
		set[line] = s.lineText(line)
	}
	s.batcher.AddMany(set)
}

// NotifyRange schedules lines [from, to).
func (s *Session) NotifyRange(from, to int) {
	if from < 0 {
		from = 0
	}
	if to <= from {
		return
	}
	set := make(map[int]batch.TextFunc, to-from)
	for line := from; line < to; line++ {
		set[line] = s.lineText(line)
	}
	s.batcher.AddMany(set)
}

func (s *Session) lineText(line int) batch.TextFunc {
	return func() (string, bool) {
		if s.text == nil {
			return "", false
		}
		return s.text.LineText(line)
	}
}

// Flush runs the pending pass now instead of waiting for the debounce.
func (s *Session) Flush() {
	s.batcher.Flush()
}

// SetDebounce changes the quiet period.
func (s *Session) SetDebounce(d time.Duration) {
	s.batcher.SetDelay(d)
}

// SetBaseDir changes the directory relative image paths resolve against.
func (s *Session) SetBaseDir(dir string) {
	s.tracker.SetBaseDir(dir)
}

func (s *Session) flush(entries []batch.Entry) {
	span := trace.Begin(s.tracer, trace.ScopeFlush, "flush").
		WithExtra("lines", strconv.Itoa(len(entries)))
	defer span.End("")

	if !s.sw.Enabled() {
		s.tracker.Reset()
		return
	}
	d := s.Dialect()
	for _, e := range entries {
		text, ok := e.Text()
		if !ok {
			s.tracker.Resolve(e.Line, nil)
			continue
		}
		dir, err := directive.Parse(d, text)
		switch {
		case err == nil:
			s.tracker.Resolve(e.Line, &dir)
		case errors.Is(err, directive.ErrNoMatch):
			s.tracker.Resolve(e.Line, nil)
		default:
			s.tracker.Fail(e.Line, err)
		}
	}
}

// RetryFailed re-requests lines whose image failed to load.
func (s *Session) RetryFailed() int {
	if !s.sw.Enabled() {
		return 0
	}
	return s.tracker.RetryFailed()
}

// Reset clears every line.
func (s *Session) Reset() {
	s.tracker.Reset()
}

// Lookup returns the record of line.
func (s *Session) Lookup(line int) (linestate.Record, bool) {
	return s.tracker.Lookup(line)
}

// Snapshot returns all line records ordered by line.
func (s *Session) Snapshot() []linestate.Record {
	return s.tracker.Snapshot()
}

// Wait blocks until in-flight resolutions complete and their outcomes have
// been delivered to the sink.
func (s *Session) Wait(ctx context.Context) error {
	if err := s.tracker.WaitIdle(ctx); err != nil {
		return err
	}
	s.dispatcher.Drain()
	return nil
}

// Close stops the debounce timer. In-flight fetches still complete but no new
// pass is scheduled.
func (s *Session) Close() {
	s.batcher.Stop()
}
