// Package correlator defines the single-slot state that decides which
// streaming session may deliver results to the caller.
//
// A slot stores at most one active session id plus a "connecting" flag that
// is set from the moment a session begins until its first accepted frame.
// Starting a session replaces whatever the slot held before; there is no
// queue. Frames from any other session are stale and must be discarded by
// the consumer.
//
// Implementations:
//   - memoryslot: process-local, one slot per value.
//   - redisslot: shared across processes, keyed by a scope such as a user id,
//     so that a newer request from any device supersedes older ones.
//
// The slottest package holds a conformance suite both implementations run.
package correlator
