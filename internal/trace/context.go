package trace

import "context"

type ctxKey struct{}

// FromContext returns the tracer carried by ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(ctxKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

// WithTracer attaches t to ctx.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, ctxKey{}, t)
}

// WithDocument returns a context whose tracer stamps doc on every event.
// Contexts without tracing are returned unchanged.
func WithDocument(ctx context.Context, doc string) context.Context {
	t := FromContext(ctx)
	if t.Level() == LevelOff {
		return ctx
	}
	return WithTracer(ctx, ForDocument(t, doc))
}

// ForDocument wraps t so that events without a document get doc.
func ForDocument(t Tracer, doc string) Tracer {
	if inner, ok := t.(docTracer); ok {
		t = inner.Tracer
	}
	return docTracer{Tracer: t, doc: doc}
}

type docTracer struct {
	Tracer
	doc string
}

func (d docTracer) Emit(ev *Event) {
	if ev.Doc == "" {
		ev.Doc = d.doc
	}
	d.Tracer.Emit(ev)
}
