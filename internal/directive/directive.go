package directive

import (
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"memeful/internal/dialect"
)

// DefaultScale applies when a directive has no scale attribute.
const DefaultScale = 1.0

const elementOpen = "<image"

// ErrNoMatch reports that a line carries no directive.
var ErrNoMatch = errors.New("no image directive")

// Directive is the payload of one image comment.
type Directive struct {
	// Source is a remote URL or a local filesystem path.
	Source string
	// Scale is the render-time scale factor, always positive and finite.
	Scale float64
	// Column is the byte offset of the comment opener within the line.
	Column int
}

// ParseError describes a malformed directive.
type ParseError struct {
	Column int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

type imageElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
}

// Parse locates a directive on line using the comment syntax of d.
func Parse(d dialect.Kind, line string) (Directive, error) {
	trimmed := strings.TrimLeft(line, " \t")
	column := len(line) - len(trimmed)

	rest, ok := d.StripOpener(trimmed)
	if !ok {
		return Directive{}, ErrNoMatch
	}
	rest = strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(rest, elementOpen) {
		return Directive{}, ErrNoMatch
	}
	if len(rest) > len(elementOpen) && !strings.ContainsRune(" \t/>", rune(rest[len(elementOpen)])) {
		// <imagery ...> and friends are ordinary comments.
		return Directive{}, ErrNoMatch
	}

	payload := stripClosers(d, strings.TrimRight(rest, " \t\r\n"))
	end := strings.LastIndexByte(payload, '>')
	if end < 0 {
		return Directive{}, &ParseError{Column: column, Reason: "image element is not closed"}
	}
	payload = payload[:end+1]

	var el imageElement
	dec := xml.NewDecoder(strings.NewReader(payload))
	dec.Strict = true
	if err := dec.Decode(&el); err != nil {
		return Directive{}, &ParseError{Column: column, Reason: "malformed image element", Err: err}
	}

	out := Directive{Scale: DefaultScale, Column: column}
	for _, attr := range el.Attrs {
		switch strings.ToLower(attr.Name.Local) {
		case "url":
			out.Source = norm.NFC.String(strings.TrimSpace(attr.Value))
		case "scale":
			scale, err := parseScale(attr.Value)
			if err != nil {
				return Directive{}, &ParseError{Column: column, Reason: "invalid scale", Err: err}
			}
			out.Scale = scale
		}
	}
	if out.Source == "" {
		return Directive{}, &ParseError{Column: column, Reason: "missing url attribute"}
	}
	return out, nil
}

func stripClosers(d dialect.Kind, text string) string {
	for _, cl := range d.Closers() {
		if strings.HasSuffix(text, cl) {
			return strings.TrimRight(strings.TrimSuffix(text, cl), " \t")
		}
	}
	return text
}

func parseScale(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("scale must be a positive number, got %q", raw)
	}
	return v, nil
}
