// Package store defines the persistence ports of the engine and the
// backend selection. Watches and collection records are durable so a
// restart resumes monitoring and re-attempts interrupted sweeps;
// finished sweeps go to an append-only archive.
package store

import (
	"context"

	"github.com/glebkoxan36/mypip/internal/domain"
)

// WatchStore persists the per-coin watch-set.
type WatchStore interface {
	// Put inserts or replaces a watch keyed by (coin, address).
	Put(ctx context.Context, w *domain.AddressWatch) error

	// Get retrieves a watch. Returns ErrNotFound if not exists.
	Get(ctx context.Context, coin domain.Coin, address string) (*domain.AddressWatch, error)

	// Delete removes a watch. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, coin domain.Coin, address string) error

	// ListByCoin retrieves a coin's watches, ordered by address ASC.
	ListByCoin(ctx context.Context, coin domain.Coin) ([]*domain.AddressWatch, error)
}

// RecordStore persists collection records across the sweep state
// machine. Credential references are stored opaque; key material
// never reaches a store.
type RecordStore interface {
	// Put inserts or replaces a record keyed by (coin, address).
	Put(ctx context.Context, rec *domain.CollectionRecord) error

	// Get retrieves a record. Returns ErrNotFound if not exists.
	Get(ctx context.Context, coin domain.Coin, address string) (*domain.CollectionRecord, error)

	// Delete removes a record. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, coin domain.Coin, address string) error

	// ListByCoin retrieves a coin's records, ordered by address ASC.
	ListByCoin(ctx context.Context, coin domain.Coin) ([]*domain.CollectionRecord, error)

	// ListByState retrieves a coin's records in one state, ordered by
	// address ASC.
	ListByState(ctx context.Context, coin domain.Coin, state domain.CollectionState) ([]*domain.CollectionRecord, error)
}

// SweepArchive keeps the append-only history of finished sweep
// attempts.
type SweepArchive interface {
	// InsertOutcome appends one outcome row.
	InsertOutcome(ctx context.Context, o *domain.SweepOutcome) error

	// ListByCoin retrieves a coin's outcomes, newest first, at most
	// limit rows (0 means no limit).
	ListByCoin(ctx context.Context, coin domain.Coin, limit int) ([]*domain.SweepOutcome, error)
}
