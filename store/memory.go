package store

import (
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps every slot in memory. Data is lost on restart.
// Safe for concurrent use.
//
// A non-zero quota caps the total size of keys plus values in bytes, the
// way a browser caps an origin's local storage. Writes that would cross
// it fail with ErrQuotaExceeded and leave the slot untouched.
type MemoryStore struct {
	mu     sync.RWMutex
	slots  map[string]string
	used   int64
	quota  int64
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithQuota(0)
}

// NewMemoryStoreWithQuota returns a MemoryStore limited to quota bytes.
// A quota of zero or less means unlimited.
func NewMemoryStoreWithQuota(quota int64) *MemoryStore {
	return &MemoryStore{
		slots: make(map[string]string),
		quota: quota,
	}
}

func slotSize(key, value string) int64 {
	return int64(len(key) + len(value))
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.slots[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	next := m.used + slotSize(key, value)
	if old, ok := m.slots[key]; ok {
		next -= slotSize(key, old)
	}
	if m.quota > 0 && next > m.quota {
		return fmt.Errorf("set %q (%d of %d bytes): %w", key, next, m.quota, ErrQuotaExceeded)
	}
	m.slots[key] = value
	m.used = next
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if old, ok := m.slots[key]; ok {
		m.used -= slotSize(key, old)
		delete(m.slots, key)
	}
	return nil
}

func (m *MemoryStore) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	names := make([]string, 0, len(m.slots))
	for k := range m.slots {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

// Used reports how many bytes of quota are currently taken.
func (m *MemoryStore) Used() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
