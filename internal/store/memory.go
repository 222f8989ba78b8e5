package store

// MemoryStore keeps values in process memory only. Tests use it to simulate
// a restart by handing the Snapshot of one instance to NewMemoryStore.
type MemoryStore struct {
	*kv
	flushes int
}

// NewMemoryStore creates a store seeded with initial (which may be nil)
func NewMemoryStore(initial map[string]string) *MemoryStore {
	m := &MemoryStore{}
	seed := make(map[string]string, len(initial))
	for k, v := range initial {
		seed[k] = v
	}
	m.kv = newKV(seed, func(map[string]string) error {
		m.flushes++
		return nil
	})
	return m
}

// Flushes returns how many committed transactions have been flushed
func (m *MemoryStore) Flushes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flushes
}
