// Package directive extracts image directives from single lines of source text.
//
// A directive is a comment whose body is an XML image element:
//
//	// <image url="https://example.com/cat.png" scale="0.5" />
//	# <image url="../docs/diagram.png" />
//
// Parse is pure and line-local. Lines without a directive yield ErrNoMatch,
// which callers treat as "nothing here" rather than as a failure. Broken
// directives yield a *ParseError describing what is wrong with the markup.
package directive
