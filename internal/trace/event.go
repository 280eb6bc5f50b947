package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1 // span start
	KindSpanEnd                   // span end
	KindPoint                     // instant event
	KindError                     // instant failure event
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity of the event. Lower values are coarser.
type Scope uint8

const (
	ScopeSession Scope = iota + 1 // server and document lifecycle
	ScopeFlush                    // one debounced resolution pass
	ScopeFetch                    // one remote transfer
	ScopeLine                     // per-line state decisions
)

func (s Scope) String() string {
	switch s {
	case ScopeSession:
		return "session"
	case ScopeFlush:
		return "flush"
	case ScopeFetch:
		return "fetch"
	case ScopeLine:
		return "line"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	// Doc names the document or file the event belongs to, if any.
	Doc    string
	Name   string // "flush", "fetch", "line:12"
	Detail string
	Extra  map[string]string
}
