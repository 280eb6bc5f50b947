package linestate

import "memeful/internal/diag"

// Status is the resolution state of a line record.
type Status uint8

const (
	StatusEmpty Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Kind classifies a published Outcome.
type Kind uint8

const (
	Cleared Kind = iota
	Loading
	Ready
	Failed
)

func (k Kind) String() string {
	switch k {
	case Cleared:
		return "cleared"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is what the renderer should show for a line.
type Outcome struct {
	Kind   Kind
	Path   string
	Scale  float64
	Width  int
	Height int
	// Diagnostic is set when Kind is Failed.
	Diagnostic diag.Diagnostic
}

// Message returns the user-facing error text, or "" for non-error outcomes.
func (o Outcome) Message() string {
	if o.Kind != Failed {
		return ""
	}
	return o.Diagnostic.Text()
}

// PublishFunc receives outcomes. It is called with the tracker lock held and
// must not block or call back into the tracker.
type PublishFunc func(line int, o Outcome)
