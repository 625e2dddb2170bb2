package memory

import (
	"context"
	"sync"

	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/store"
)

// SweepArchive is an in-memory implementation of store.SweepArchive.
// Outcomes are kept in append order.
type SweepArchive struct {
	mu   sync.RWMutex
	data []*domain.SweepOutcome
}

// NewSweepArchive creates a new in-memory sweep archive.
func NewSweepArchive() *SweepArchive {
	return &SweepArchive{}
}

// InsertOutcome appends one outcome row.
func (s *SweepArchive) InsertOutcome(_ context.Context, o *domain.SweepOutcome) error {
	if o == nil || o.Coin == "" || o.Address == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	outcomeCopy := *o
	s.data = append(s.data, &outcomeCopy)
	return nil
}

// ListByCoin retrieves a coin's outcomes, newest first, at most limit
// rows (0 means no limit).
func (s *SweepArchive) ListByCoin(_ context.Context, coin domain.Coin, limit int) ([]*domain.SweepOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SweepOutcome
	for i := len(s.data) - 1; i >= 0; i-- {
		if s.data[i].Coin != coin {
			continue
		}
		outcomeCopy := *s.data[i]
		result = append(result, &outcomeCopy)
		if limit > 0 && len(result) == limit {
			break
		}
	}

	return result, nil
}

// Verify interface compliance at compile time.
var _ store.SweepArchive = (*SweepArchive)(nil)
