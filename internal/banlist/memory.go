package banlist

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps the ban list in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	bans map[string]Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bans: make(map[string]Meta)}
}

func (st *MemoryStore) IsBanned(_ context.Context, address string) (bool, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.bans[address]
	return ok, nil
}

func (st *MemoryStore) Ban(_ context.Context, address string, meta Meta) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.bans[address] = meta
	return nil
}

func (st *MemoryStore) Unban(_ context.Context, address string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.bans, address)
	return nil
}

func (st *MemoryStore) All(_ context.Context) ([]string, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]string, 0, len(st.bans))
	for addr := range st.bans {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out, nil
}

// Get returns the ban metadata for an address, if present.
func (st *MemoryStore) Get(address string) (Meta, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	meta, ok := st.bans[address]
	return meta, ok
}

func (st *MemoryStore) Close() error { return nil }
