package artifact

import (
	"context"
	"sync"
	"time"

	"github.com/hpungsan/xstats/internal/errors"
)

type memEntry struct {
	data      []byte
	updatedAt int64
}

// MemoryStore keeps artifacts in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry)}
}

func (s *MemoryStore) Location() string { return "memory" }
func (s *MemoryStore) Close() error     { return nil }

func (s *MemoryStore) Exists(_ context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[name]
	return ok, nil
}

func (s *MemoryStore) Read(_ context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, errors.NewNotFound(name)
	}
	return append([]byte(nil), e.data...), nil
}

func (s *MemoryStore) Write(_ context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = memEntry{data: append([]byte{}, data...), updatedAt: time.Now().Unix()}
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, name)
	return nil
}

func (s *MemoryStore) Stat(_ context.Context, name string) (*Info, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, nil
	}
	return &Info{Name: name, Size: int64(len(e.data)), SHA256: checksum(e.data), UpdatedAt: e.updatedAt}, nil
}
