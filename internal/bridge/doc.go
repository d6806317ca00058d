// Package bridge turns one blocking, token-by-token generation call into an
// incrementally consumable, cancellable stream of SSE chunks.
//
// A Session wires the pieces together:
//
//   - StopSignal: single-use cooperative cancellation shared by both sides.
//   - Producer: runs Backend.Generate on its own goroutine and pushes Items
//     into a bounded channel (a full channel blocks the backend).
//   - Iterator: pulls Items for the consuming goroutine, setting the
//     StopSignal when the consumer's context ends.
//   - Formatter: wraps fragments and terminal states into types.StreamChunk
//     frames followed by the [DONE] marker.
//
// Every session that starts writing ends with exactly one terminal chunk
// (finish_reason "stop" or "error") followed by "data: [DONE]", unless the
// transport itself went away.
package bridge
