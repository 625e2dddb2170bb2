package badgerdb

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/store"
)

const outcomesDir = "outcomes"

// SweepArchive implements store.SweepArchive on Badger. Rows are keyed
// by an internal sequence, so repeated outcomes for one address never
// collide.
type SweepArchive struct {
	db *badgerhold.Store
}

// NewSweepArchive opens the outcome archive under baseDir.
func NewSweepArchive(baseDir string, logger badger.Logger) (*SweepArchive, error) {
	var dir string
	if baseDir != "" {
		dir = filepath.Join(baseDir, outcomesDir)
	}
	db, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("open sweep archive: %w", err)
	}
	return &SweepArchive{db: db}, nil
}

// Compile-time interface check.
var _ store.SweepArchive = (*SweepArchive)(nil)

// InsertOutcome appends one outcome row.
func (s *SweepArchive) InsertOutcome(ctx context.Context, o *domain.SweepOutcome) error {
	if o == nil || o.Coin == "" || o.Address == "" {
		return store.ErrInvalidInput
	}

	if err := s.db.Insert(badgerhold.NextSequence(), *o); err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// ListByCoin retrieves a coin's outcomes, newest first, at most limit
// rows (0 means no limit).
func (s *SweepArchive) ListByCoin(ctx context.Context, coin domain.Coin, limit int) ([]*domain.SweepOutcome, error) {
	query := badgerhold.Where("Coin").Eq(coin).SortBy("FinishedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var outcomes []domain.SweepOutcome
	if err := s.db.Find(&outcomes, query); err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}

	result := make([]*domain.SweepOutcome, 0, len(outcomes))
	for i := range outcomes {
		result = append(result, &outcomes[i])
	}
	return result, nil
}

// Close releases the underlying database.
func (s *SweepArchive) Close() error {
	return s.db.Close()
}
