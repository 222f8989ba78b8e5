package store

import (
	"maps"
	"strconv"
	"sync"
	"time"
)

// Store is a flat string key/value store that survives process restarts.
//
// All mutations go through Update, which applies a set of changes atomically
// and flushes them before returning. Readers never observe a partially
// applied transaction.
type Store interface {
	// Get returns the value for key and whether it was present
	Get(key string) (string, bool)

	// Snapshot returns a copy of every key/value pair
	Snapshot() map[string]string

	// Update runs fn against a transaction. If fn returns nil the changes are
	// applied and persisted; otherwise they are discarded.
	Update(fn func(tx *Tx) error) error
}

// Tx collects changes for a single Update call
type Tx struct {
	base    map[string]string
	changes map[string]*string
}

// Get reads through the pending changes to the committed values
func (tx *Tx) Get(key string) (string, bool) {
	if v, ok := tx.changes[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	v, ok := tx.base[key]
	return v, ok
}

// Set stages a value
func (tx *Tx) Set(key, value string) {
	tx.changes[key] = &value
}

// Delete stages a removal
func (tx *Tx) Delete(key string) {
	tx.changes[key] = nil
}

// SetBool stages a boolean value
func (tx *Tx) SetBool(key string, v bool) {
	tx.Set(key, strconv.FormatBool(v))
}

// SetInt stages an integer value
func (tx *Tx) SetInt(key string, v int) {
	tx.Set(key, strconv.Itoa(v))
}

// SetTime stages a timestamp. Times are stored in UTC with nanosecond
// precision so they round-trip exactly.
func (tx *Tx) SetTime(key string, v time.Time) {
	tx.Set(key, v.UTC().Format(time.RFC3339Nano))
}

// kv is the in-memory core shared by MemoryStore and FileStore. persist is
// called with the lock held and the candidate values; the candidate is only
// committed if persist succeeds.
type kv struct {
	mu      sync.RWMutex
	values  map[string]string
	persist func(map[string]string) error
}

func newKV(initial map[string]string, persist func(map[string]string) error) *kv {
	if initial == nil {
		initial = make(map[string]string)
	}
	return &kv{values: initial, persist: persist}
}

func (s *kv) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *kv) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

func (s *kv) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{base: s.values, changes: make(map[string]*string)}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.changes) == 0 {
		return nil
	}

	next := maps.Clone(s.values)
	for k, v := range tx.changes {
		if v == nil {
			delete(next, k)
		} else {
			next[k] = *v
		}
	}

	if s.persist != nil {
		if err := s.persist(next); err != nil {
			return err
		}
	}
	s.values = next
	return nil
}

// GetBool reads a boolean value; missing or malformed values are false
func GetBool(s Store, key string) bool {
	v, ok := s.Get(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// GetInt reads an integer value
func GetInt(s Store, key string) (int, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

// GetTime reads a timestamp written with SetTime
func GetTime(s Store, key string) (time.Time, bool) {
	v, ok := s.Get(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
