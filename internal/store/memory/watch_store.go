// Package memory holds the in-memory reference implementations of
// the store ports. They back tests and serve as the default when no
// durable backend is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/store"
)

// WatchStore is an in-memory implementation of store.WatchStore.
type WatchStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AddressWatch // keyed by coin/address
}

// NewWatchStore creates a new in-memory watch store.
func NewWatchStore() *WatchStore {
	return &WatchStore{
		data: make(map[string]*domain.AddressWatch),
	}
}

func watchKey(coin domain.Coin, address string) string {
	return string(coin) + "/" + address
}

// Put inserts or replaces a watch keyed by (coin, address).
func (s *WatchStore) Put(_ context.Context, w *domain.AddressWatch) error {
	if w == nil || w.Coin == "" || w.Address == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation
	watchCopy := *w
	s.data[watchKey(w.Coin, w.Address)] = &watchCopy
	return nil
}

// Get retrieves a watch. Returns ErrNotFound if not exists.
func (s *WatchStore) Get(_ context.Context, coin domain.Coin, address string) (*domain.AddressWatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.data[watchKey(coin, address)]
	if !exists {
		return nil, store.ErrNotFound
	}

	watchCopy := *w
	return &watchCopy, nil
}

// Delete removes a watch. Returns ErrNotFound if not exists.
func (s *WatchStore) Delete(_ context.Context, coin domain.Coin, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := watchKey(coin, address)
	if _, exists := s.data[key]; !exists {
		return store.ErrNotFound
	}
	delete(s.data, key)
	return nil
}

// ListByCoin retrieves a coin's watches, ordered by address ASC.
func (s *WatchStore) ListByCoin(_ context.Context, coin domain.Coin) ([]*domain.AddressWatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AddressWatch
	for _, w := range s.data {
		if w.Coin == coin {
			watchCopy := *w
			result = append(result, &watchCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ store.WatchStore = (*WatchStore)(nil)
