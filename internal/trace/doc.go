// Package trace provides event tracing for the image resolution pipeline.
//
// Tracers travel through the pipeline in a context.Context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeFlush, "flush")
//	defer span.End("")
//
// # Tracers
//
//   - Nop: zero-overhead tracer used when tracing is off
//   - StreamTracer: writes each event immediately (text or NDJSON)
//   - RingTracer: keeps the last N events in memory for later dumps
//   - Tee: fans out to several tracers
//
// WithDocument stamps the document a session belongs to on every event it
// emits, so interleaved sessions stay readable.
//
// # Levels
//
//   - LevelOff: nothing
//   - LevelError: only error points (failed fetches, publish failures)
//   - LevelSession: document sessions and server lifecycle
//   - LevelDetail: adds flushes and transfers
//   - LevelDebug: everything including per-line decisions
package trace
