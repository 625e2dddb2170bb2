package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/store"
)

const recordsDir = "records"

// RecordStore implements store.RecordStore on Badger.
type RecordStore struct {
	db *badgerhold.Store
}

// NewRecordStore opens the collection record store under baseDir.
func NewRecordStore(baseDir string, logger badger.Logger) (*RecordStore, error) {
	var dir string
	if baseDir != "" {
		dir = filepath.Join(baseDir, recordsDir)
	}
	db, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	return &RecordStore{db: db}, nil
}

// Compile-time interface check.
var _ store.RecordStore = (*RecordStore)(nil)

// Put inserts or replaces a record keyed by (coin, address).
func (s *RecordStore) Put(ctx context.Context, rec *domain.CollectionRecord) error {
	if rec == nil || rec.Coin == "" || rec.Address == "" {
		return store.ErrInvalidInput
	}

	if err := s.db.Upsert(rec.Key(), *rec); err != nil {
		return fmt.Errorf("put collection record: %w", err)
	}
	return nil
}

// Get retrieves a record. Returns ErrNotFound if not exists.
func (s *RecordStore) Get(ctx context.Context, coin domain.Coin, address string) (*domain.CollectionRecord, error) {
	key := domain.CollectionRecord{Coin: coin, Address: address}.Key()

	var rec domain.CollectionRecord
	err := s.db.Get(key, &rec)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get collection record: %w", err)
	}
	return &rec, nil
}

// Delete removes a record. Returns ErrNotFound if not exists.
func (s *RecordStore) Delete(ctx context.Context, coin domain.Coin, address string) error {
	key := domain.CollectionRecord{Coin: coin, Address: address}.Key()

	err := s.db.Delete(key, domain.CollectionRecord{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete collection record: %w", err)
	}
	return nil
}

// ListByCoin retrieves a coin's records, ordered by address ASC.
func (s *RecordStore) ListByCoin(ctx context.Context, coin domain.Coin) ([]*domain.CollectionRecord, error) {
	query := badgerhold.Where("Coin").Eq(coin).SortBy("Address")
	return s.find(query, "list collection records")
}

// ListByState retrieves a coin's records in the given state, ordered by
// address ASC.
func (s *RecordStore) ListByState(ctx context.Context, coin domain.Coin, state domain.CollectionState) ([]*domain.CollectionRecord, error) {
	query := badgerhold.Where("Coin").Eq(coin).And("State").Eq(state).SortBy("Address")
	return s.find(query, "list collection records by state")
}

func (s *RecordStore) find(query *badgerhold.Query, op string) ([]*domain.CollectionRecord, error) {
	var records []domain.CollectionRecord
	if err := s.db.Find(&records, query); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*domain.CollectionRecord, 0, len(records))
	for i := range records {
		result = append(result, &records[i])
	}
	return result, nil
}

// Close releases the underlying database.
func (s *RecordStore) Close() error {
	return s.db.Close()
}
