package postgres

import (
	"context"
	"fmt"

	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/store"
)

// WatchStore implements store.WatchStore using PostgreSQL.
type WatchStore struct {
	pool *Pool
}

// NewWatchStore creates a new WatchStore.
func NewWatchStore(pool *Pool) *WatchStore {
	return &WatchStore{pool: pool}
}

// Compile-time interface check.
var _ store.WatchStore = (*WatchStore)(nil)

// Put inserts or replaces a watch keyed by (coin, address).
func (s *WatchStore) Put(ctx context.Context, w *domain.AddressWatch) error {
	if w == nil || w.Coin == "" || w.Address == "" {
		return store.ErrInvalidInput
	}

	query := `
		INSERT INTO address_watches (coin, address, state, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (coin, address) DO UPDATE SET state = EXCLUDED.state
	`

	_, err := s.pool.Exec(ctx, query,
		string(w.Coin),
		w.Address,
		string(w.State),
		w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("put watch: %w", err)
	}
	return nil
}

// Get retrieves a watch. Returns ErrNotFound if not exists.
func (s *WatchStore) Get(ctx context.Context, coin domain.Coin, address string) (*domain.AddressWatch, error) {
	query := `
		SELECT coin, address, state, created_at
		FROM address_watches
		WHERE coin = $1 AND address = $2
	`

	var w domain.AddressWatch
	row := s.pool.QueryRow(ctx, query, string(coin), address)
	if err := row.Scan(&w.Coin, &w.Address, &w.State, &w.CreatedAt); err != nil {
		if isNotFoundError(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get watch: %w", err)
	}
	return &w, nil
}

// Delete removes a watch. Returns ErrNotFound if not exists.
func (s *WatchStore) Delete(ctx context.Context, coin domain.Coin, address string) error {
	query := `DELETE FROM address_watches WHERE coin = $1 AND address = $2`

	tag, err := s.pool.Exec(ctx, query, string(coin), address)
	if err != nil {
		return fmt.Errorf("delete watch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListByCoin retrieves a coin's watches, ordered by address ASC.
func (s *WatchStore) ListByCoin(ctx context.Context, coin domain.Coin) ([]*domain.AddressWatch, error) {
	query := `
		SELECT coin, address, state, created_at
		FROM address_watches
		WHERE coin = $1
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query, string(coin))
	if err != nil {
		return nil, fmt.Errorf("list watches: %w", err)
	}
	defer rows.Close()

	var result []*domain.AddressWatch
	for rows.Next() {
		var w domain.AddressWatch
		if err := rows.Scan(&w.Coin, &w.Address, &w.State, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan watch: %w", err)
		}
		result = append(result, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watches: %w", err)
	}
	return result, nil
}
