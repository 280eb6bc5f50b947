package diag

// Severity ranks a diagnostic. Every directive problem is currently an
// error; the lower levels exist for the LSP mapping.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	default:
		return "info"
	}
}

// Diagnostic is a problem reported for a single line.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Line     int
	// StartCol and EndCol are byte offsets within the line. EndCol 0 means
	// the end of the line.
	StartCol int
	EndCol   int
}

// Text renders the message with its code title, as shown to users.
func (d Diagnostic) Text() string {
	if d.Message == "" {
		return d.Code.Title()
	}
	return d.Code.Title() + ": " + d.Message
}

// LSPSeverity maps Severity to the LSP DiagnosticSeverity numbering.
func (s Severity) LSPSeverity() int {
	switch s {
	case SevError:
		return 1
	case SevWarning:
		return 2
	default:
		return 3
	}
}
