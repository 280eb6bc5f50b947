package lsp

import (
	"sort"

	"memeful/internal/linestate"
	"memeful/internal/trace"
)

// publishOutcome runs on the dispatcher goroutine. It forwards the outcome to
// the client and republishes diagnostics when the line enters or leaves the
// error state.
func (s *Server) publishOutcome(doc *document, line int, o linestate.Outcome) {
	hadError, ok := doc.record(line, o)
	if !ok {
		return
	}
	params := lineOutcomeParams{
		URI:  doc.uri,
		Line: line,
		Kind: o.Kind.String(),
	}
	switch o.Kind {
	case linestate.Ready:
		params.Path = o.Path
		params.Scale = o.Scale
		params.Width = o.Width
		params.Height = o.Height
	case linestate.Loading:
		params.Scale = o.Scale
	case linestate.Failed:
		params.Code = o.Diagnostic.Code.ID()
		params.Message = o.Message()
	}
	if err := s.sendNotification(methodLineOutcome, params); err != nil {
		s.logf("failed to send line outcome: %v", err)
		trace.Error(trace.FromContext(s.baseCtx), trace.ScopeSession, "send", err.Error())
		return
	}
	if hadError || o.Kind == linestate.Failed {
		s.publishDiagnostics(doc)
	}
}

func (s *Server) publishDiagnostics(doc *document) {
	if err := s.sendPublish(doc.uri, buildDiagnostics(doc)); err != nil {
		s.logf("failed to publish diagnostics: %v", err)
	}
}

func buildDiagnostics(doc *document) []lspDiagnostic {
	doc.mu.Lock()
	defer doc.mu.Unlock()
	lines := make([]int, 0, len(doc.outcomes))
	for line, o := range doc.outcomes {
		if o.Kind == linestate.Failed {
			lines = append(lines, line)
		}
	}
	sort.Ints(lines)

	list := make([]lspDiagnostic, 0, len(lines))
	for _, line := range lines {
		d := doc.outcomes[line].Diagnostic
		text := ""
		if line < len(doc.lines) {
			text = doc.lines[line]
		}
		list = append(list, lspDiagnostic{
			Range:    lineRange(line, text, d.StartCol, d.EndCol),
			Severity: d.Severity.LSPSeverity(),
			Code:     d.Code.ID(),
			Source:   diagnosticSource,
			Message:  d.Text(),
		})
	}
	return list
}

func (s *Server) sendPublish(uri string, list []lspDiagnostic) error {
	if list == nil {
		list = []lspDiagnostic{}
	}
	return s.sendNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Diagnostics: list,
	})
}
