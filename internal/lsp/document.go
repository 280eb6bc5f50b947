package lsp

import (
	"sync"

	"memeful/internal/linestate"
	"memeful/internal/overlay"
)

// document is an open text buffer and the image session bound to it.
type document struct {
	uri        string
	path       string
	languageID string
	session    *overlay.Session

	mu       sync.Mutex
	version  int
	content  string
	lines    []string
	outcomes map[int]linestate.Outcome
	closed   bool
}

func newDocument(uri, path, languageID string, version int, text string) *document {
	return &document{
		uri:        uri,
		path:       path,
		languageID: languageID,
		version:    version,
		content:    text,
		lines:      splitLines(text),
		outcomes:   make(map[int]linestate.Outcome),
	}
}

// LineText implements overlay.TextSource.
func (d *document) LineText(line int) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if line < 0 || line >= len(d.lines) {
		return "", false
	}
	return d.lines[line], true
}

func (d *document) lineCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lines)
}

func (d *document) text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.content
}

// replace swaps in new text and returns the old and new line counts.
func (d *document) replace(text string, version int) (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := len(d.lines)
	d.content = text
	d.lines = splitLines(text)
	if version > 0 {
		d.version = version
	}
	return old, len(d.lines)
}

// record stores the latest outcome of line. It reports false once the
// document is closed.
func (d *document) record(line int, o linestate.Outcome) (hadError bool, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, false
	}
	prev, existed := d.outcomes[line]
	hadError = existed && prev.Kind == linestate.Failed
	if o.Kind == linestate.Cleared {
		delete(d.outcomes, line)
	} else {
		d.outcomes[line] = o
	}
	return hadError, true
}

func (d *document) outcome(line int) (linestate.Outcome, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.outcomes[line]
	return o, ok
}

func (d *document) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.session.Close()
}
