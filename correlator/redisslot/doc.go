// Package redisslot implements correlator.Slot on a Redis hash so that the
// active session of a scope (typically a user id) is shared by every client
// process pointed at the same Redis.
//
// Design Notes
//   - Begin: MULTI/EXEC of HSET + EXPIRE; always overwrites.
//   - MarkStreaming / Release: Lua compare-and-set on the active field, so a
//     superseded session can never clear or modify its successor.
//   - Abandoned slots expire after Config.TTL.
//
// Example:
//
//	slot, err := redisslot.NewFromEnv("user-42")
//	if err != nil {
//		return err
//	}
//	defer slot.Close()
//
// Use memoryslot when a single process owns the stream.
package redisslot
