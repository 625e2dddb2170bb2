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

const watchesDir = "watches"

// WatchStore implements store.WatchStore on Badger.
type WatchStore struct {
	db *badgerhold.Store
}

// NewWatchStore opens the watch-set store under baseDir.
func NewWatchStore(baseDir string, logger badger.Logger) (*WatchStore, error) {
	var dir string
	if baseDir != "" {
		dir = filepath.Join(baseDir, watchesDir)
	}
	db, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("open watch store: %w", err)
	}
	return &WatchStore{db: db}, nil
}

// Compile-time interface check.
var _ store.WatchStore = (*WatchStore)(nil)

func watchKey(coin domain.Coin, address string) string {
	return string(coin) + "/" + address
}

// Put inserts or replaces a watch keyed by (coin, address).
func (s *WatchStore) Put(ctx context.Context, w *domain.AddressWatch) error {
	if w == nil || w.Coin == "" || w.Address == "" {
		return store.ErrInvalidInput
	}

	if err := s.db.Upsert(watchKey(w.Coin, w.Address), *w); err != nil {
		return fmt.Errorf("put watch: %w", err)
	}
	return nil
}

// Get retrieves a watch. Returns ErrNotFound if not exists.
func (s *WatchStore) Get(ctx context.Context, coin domain.Coin, address string) (*domain.AddressWatch, error) {
	var w domain.AddressWatch
	err := s.db.Get(watchKey(coin, address), &w)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get watch: %w", err)
	}
	return &w, nil
}

// Delete removes a watch. Returns ErrNotFound if not exists.
func (s *WatchStore) Delete(ctx context.Context, coin domain.Coin, address string) error {
	err := s.db.Delete(watchKey(coin, address), domain.AddressWatch{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete watch: %w", err)
	}
	return nil
}

// ListByCoin retrieves a coin's watches, ordered by address ASC.
func (s *WatchStore) ListByCoin(ctx context.Context, coin domain.Coin) ([]*domain.AddressWatch, error) {
	var watches []domain.AddressWatch
	query := badgerhold.Where("Coin").Eq(coin).SortBy("Address")
	if err := s.db.Find(&watches, query); err != nil {
		return nil, fmt.Errorf("list watches: %w", err)
	}

	result := make([]*domain.AddressWatch, 0, len(watches))
	for i := range watches {
		result = append(result, &watches[i])
	}
	return result, nil
}

// Close releases the underlying database.
func (s *WatchStore) Close() error {
	return s.db.Close()
}
