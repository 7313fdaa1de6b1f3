package app

import (
	"sync"

	"github.com/keeval/keeval/internal/domain"
)

// ValueStore is the authoritative in-memory key/value mapping.
// It performs no I/O; durability is the Engine's concern.
type ValueStore struct {
	mu   sync.RWMutex
	data map[string]domain.Value
}

// NewValueStore returns an empty store.
func NewValueStore() *ValueStore {
	return &ValueStore{data: make(map[string]domain.Value)}
}

// Get returns the value stored for key.
func (s *ValueStore) Get(key string) (domain.Value, error) {
	if !domain.ValidKey(key) {
		return domain.Value{}, domain.ErrInvalidKey
	}
	s.mu.RLock()
	v, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return domain.Value{}, domain.ErrKeyNotFound
	}
	return v, nil
}

// Set stores value for key, replacing any previous value.
func (s *ValueStore) Set(key string, value domain.Value) error {
	if !domain.ValidKey(key) {
		return domain.ErrInvalidKey
	}
	if err := value.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

// Delete removes key. Deleting an absent key is ErrKeyNotFound.
func (s *ValueStore) Delete(key string) error {
	if !domain.ValidKey(key) {
		return domain.ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return domain.ErrKeyNotFound
	}
	delete(s.data, key)
	return nil
}
