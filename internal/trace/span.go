package trace

import (
	"sync/atomic"
	"time"
)

var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64
)

func nextSeq() uint64 { return seqCounter.Add(1) }

// Span tracks one operation from Begin to End.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	scope   Scope
	name    string
	started time.Time
	extra   map[string]string
}

// Begin starts a root span. A disabled tracer yields an inert span that is
// still safe to use.
func Begin(t Tracer, scope Scope, name string) *Span {
	return begin(t, scope, name, 0)
}

// Child starts a span nested under s.
func (s *Span) Child(scope Scope, name string) *Span {
	if s == nil {
		return begin(Nop, scope, name, 0)
	}
	return begin(s.tracer, scope, name, s.id)
}

func begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if t == nil || !t.Level().ShouldEmit(KindSpanBegin, scope) {
		return &Span{tracer: Nop}
	}
	s := &Span{
		tracer:  t,
		id:      spanCounter.Add(1),
		parent:  parent,
		scope:   scope,
		name:    name,
		started: time.Now(),
	}
	t.Emit(&Event{
		Time:     s.started,
		Kind:     KindSpanBegin,
		Scope:    scope,
		SpanID:   s.id,
		ParentID: parent,
		Name:     name,
	})
	return s
}

// End emits the closing event and returns the span duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.id == 0 {
		return 0
	}
	dur := time.Since(s.started)
	s.tracer.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindSpanEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		Name:     s.name,
		Detail:   detail,
		Extra:    s.extra,
	})
	return dur
}

// WithExtra attaches a key-value pair to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.id == 0 {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 2)
	}
	s.extra[key] = value
	return s
}

// ID returns the span ID, 0 for an inert span.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Point emits an instant event.
func Point(t Tracer, scope Scope, name, detail string) {
	instant(t, KindPoint, scope, name, detail)
}

// Error emits an instant failure event. It passes LevelError.
func Error(t Tracer, scope Scope, name, detail string) {
	instant(t, KindError, scope, name, detail)
}

func instant(t Tracer, kind Kind, scope Scope, name, detail string) {
	if t == nil || !t.Level().ShouldEmit(kind, scope) {
		return
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Kind:   kind,
		Scope:  scope,
		Name:   name,
		Detail: detail,
	})
}
