package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements BlockStore using in-memory storage.
type MemoryStore struct {
	blocks sync.Map
	mu     sync.Mutex
	closed bool
}

// NewMemoryStore creates a new in-memory block store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Put implements BlockStore.
func (s *MemoryStore) Put(ctx context.Context, identifier string, until time.Time) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.blocks.Store(identifier, until)
	return nil
}

// Get implements BlockStore. Expired entries are removed on read.
func (s *MemoryStore) Get(ctx context.Context, identifier string) (time.Time, bool, error) {
	select {
	case <-ctx.Done():
		return time.Time{}, false, ctx.Err()
	default:
	}

	value, ok := s.blocks.Load(identifier)
	if !ok {
		return time.Time{}, false, nil
	}

	until := value.(time.Time)
	if time.Now().After(until) {
		s.blocks.Delete(identifier)
		return time.Time{}, false, nil
	}

	return until, true, nil
}

// Delete implements BlockStore.
func (s *MemoryStore) Delete(ctx context.Context, identifier string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.blocks.Delete(identifier)
	return nil
}

// List implements BlockStore. Expired entries are skipped and removed.
func (s *MemoryStore) List(ctx context.Context) (map[string]time.Time, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	now := time.Now()
	result := make(map[string]time.Time)

	s.blocks.Range(func(key, value interface{}) bool {
		until := value.(time.Time)
		if now.After(until) {
			s.blocks.Delete(key)
			return true
		}
		result[key.(string)] = until
		return true
	})

	return result, nil
}

// Close implements BlockStore.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Size returns the number of entries in the store, including entries
// that have expired but have not been read since.
func (s *MemoryStore) Size() int {
	count := 0
	s.blocks.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}
