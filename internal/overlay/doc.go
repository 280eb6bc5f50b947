// Package overlay ties edit batching, directive parsing and line resolution
// together for one document and hands the resulting outcomes to a renderer.
//
// Outcomes reach the renderer through a Dispatcher, a single goroutine that
// runs posted work in FIFO order, so publishes coming from flushes and from
// fetch completions are serialized.
package overlay
