// Package dialect describes the comment syntax of the source languages that can
// carry image directives.
//
// A dialect only knows how a comment starts. It never looks past the opener:
// interpreting the payload is the job of package directive.
package dialect
