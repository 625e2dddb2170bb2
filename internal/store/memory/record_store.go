package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/store"
)

// RecordStore is an in-memory implementation of store.RecordStore.
type RecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CollectionRecord // keyed by coin/address
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		data: make(map[string]*domain.CollectionRecord),
	}
}

// Put inserts or replaces a record keyed by (coin, address).
func (s *RecordStore) Put(_ context.Context, rec *domain.CollectionRecord) error {
	if rec == nil || rec.Coin == "" || rec.Address == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *rec
	s.data[rec.Key()] = &recordCopy
	return nil
}

// Get retrieves a record. Returns ErrNotFound if not exists.
func (s *RecordStore) Get(_ context.Context, coin domain.Coin, address string) (*domain.CollectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.data[string(coin)+"/"+address]
	if !exists {
		return nil, store.ErrNotFound
	}

	recordCopy := *rec
	return &recordCopy, nil
}

// Delete removes a record. Returns ErrNotFound if not exists.
func (s *RecordStore) Delete(_ context.Context, coin domain.Coin, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(coin) + "/" + address
	if _, exists := s.data[key]; !exists {
		return store.ErrNotFound
	}
	delete(s.data, key)
	return nil
}

// ListByCoin retrieves a coin's records, ordered by address ASC.
func (s *RecordStore) ListByCoin(_ context.Context, coin domain.Coin) ([]*domain.CollectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CollectionRecord
	for _, rec := range s.data {
		if rec.Coin == coin {
			recordCopy := *rec
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// ListByState retrieves a coin's records in one state, ordered by
// address ASC.
func (s *RecordStore) ListByState(_ context.Context, coin domain.Coin, state domain.CollectionState) ([]*domain.CollectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CollectionRecord
	for _, rec := range s.data {
		if rec.Coin == coin && rec.State == state {
			recordCopy := *rec
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ store.RecordStore = (*RecordStore)(nil)
