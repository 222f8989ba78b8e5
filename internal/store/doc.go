// Package store persists SDK state across process restarts.
//
// The store is a flat string key/value map keyed by the constants in keys.go.
// Typed values are encoded as strings (booleans via strconv, timestamps as
// RFC 3339 with nanoseconds in UTC, structured values as JSON) so that every
// value round-trips exactly.
//
// # Transactions
//
// All writes go through Update:
//
//	err := s.Update(func(tx *store.Tx) error {
//	    tx.SetTime(store.KeyLastTrackingDate, now)
//	    tx.Set(store.KeyLastLocation, encoded)
//	    return nil
//	})
//
// The changes become visible, and are flushed to disk, together or not at all.
// Update returns only after the flush completed.
//
// # Implementations
//
//   - FileStore: YAML document in the user config directory, atomic rename
//   - MemoryStore: process memory, used by tests and the mock CLI mode
package store
