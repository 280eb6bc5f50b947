package lsp

import (
	"encoding/json"
	"fmt"
	"strings"

	"memeful/internal/linestate"
)

func (s *Server) handleHover(msg *rpcMessage) error {
	var params hoverParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	doc := s.document(canonicalURI(params.TextDocument.URI))
	if doc == nil {
		return s.sendResponse(msg.ID, nil)
	}
	return s.sendResponse(msg.ID, buildHover(doc, params.Position))
}

func buildHover(doc *document, pos position) *hover {
	o, ok := doc.outcome(pos.Line)
	if !ok {
		return nil
	}
	text, _ := doc.LineText(pos.Line)
	rec, _ := doc.session.Lookup(pos.Line)

	var b strings.Builder
	switch o.Kind {
	case linestate.Ready:
		fmt.Fprintf(&b, "![%s](%s)\n\n", markdownEscape(rec.Source), pathToURI(o.Path))
		fmt.Fprintf(&b, "%d×%d, scale %g", o.Width, o.Height, o.Scale)
	case linestate.Loading:
		fmt.Fprintf(&b, "Loading `%s`…", rec.Source)
	case linestate.Failed:
		b.WriteString(o.Message())
	default:
		return nil
	}
	r := lineRange(pos.Line, text, rec.Column, 0)
	return &hover{
		Contents: markupContent{Kind: "markdown", Value: b.String()},
		Range:    &r,
	}
}

var markdownEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`, `*`, `\*`, `_`, `\_`)

func markdownEscape(s string) string {
	return markdownEscaper.Replace(s)
}
