// Package linestate keeps one resolution record per directive line of a
// document and decides, on every pass, whether a line's image is reused,
// reloaded or cleared.
package linestate
