package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/store"
)

func TestRecordStore_PutAndGet(t *testing.T) {
	s := NewRecordStore()
	ctx := context.Background()

	rec := &domain.CollectionRecord{
		Coin:          domain.CoinDOGE,
		Address:       "D7zf7DSrzhW6YNkbqKT82EVEaPzcscP8Ak",
		State:         domain.CollectionObserving,
		Balance:       1500000000,
		Confirmations: 3,
		CredentialRef: "doge/0",
		CreatedAt:     1704067200000,
		UpdatedAt:     1704067200000,
	}

	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, domain.CoinDOGE, rec.Address)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.State != domain.CollectionObserving {
		t.Errorf("State mismatch: got %s, want %s", got.State, domain.CollectionObserving)
	}
	if got.Balance != 1500000000 {
		t.Errorf("Balance mismatch: got %d, want 1500000000", got.Balance)
	}
}

func TestRecordStore_PutIsUpsert(t *testing.T) {
	s := NewRecordStore()
	ctx := context.Background()

	rec := &domain.CollectionRecord{
		Coin:    domain.CoinDOGE,
		Address: "DAddr1",
		State:   domain.CollectionObserving,
	}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rec.State = domain.CollectionEligible
	rec.Confirmations = 6
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, err := s.Get(ctx, domain.CoinDOGE, "DAddr1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.State != domain.CollectionEligible {
		t.Errorf("expected eligible after upsert, got %s", got.State)
	}
}

func TestRecordStore_NotFound(t *testing.T) {
	s := NewRecordStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, domain.CoinDOGE, "nonexistent"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, domain.CoinDOGE, "nonexistent"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on delete, got %v", err)
	}
}

func TestRecordStore_CopyOnReturn(t *testing.T) {
	s := NewRecordStore()
	ctx := context.Background()

	rec := &domain.CollectionRecord{Coin: domain.CoinLTC, Address: "LAddr", State: domain.CollectionIdle}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, _ := s.Get(ctx, domain.CoinLTC, "LAddr")
	got.State = domain.CollectionFailed

	again, _ := s.Get(ctx, domain.CoinLTC, "LAddr")
	if again.State != domain.CollectionIdle {
		t.Error("mutating a returned record must not change the stored one")
	}
}

func TestRecordStore_ListByState(t *testing.T) {
	s := NewRecordStore()
	ctx := context.Background()

	records := []*domain.CollectionRecord{
		{Coin: domain.CoinDOGE, Address: "D1", State: domain.CollectionEligible},
		{Coin: domain.CoinDOGE, Address: "D3", State: domain.CollectionEligible},
		{Coin: domain.CoinDOGE, Address: "D2", State: domain.CollectionObserving},
		{Coin: domain.CoinLTC, Address: "L1", State: domain.CollectionEligible},
	}
	for _, rec := range records {
		if err := s.Put(ctx, rec); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	eligible, err := s.ListByState(ctx, domain.CoinDOGE, domain.CollectionEligible)
	if err != nil {
		t.Fatalf("ListByState failed: %v", err)
	}
	if len(eligible) != 2 {
		t.Fatalf("expected 2 eligible DOGE records, got %d", len(eligible))
	}
	// Ordered by address ASC.
	if eligible[0].Address != "D1" || eligible[1].Address != "D3" {
		t.Errorf("unexpected order: %s, %s", eligible[0].Address, eligible[1].Address)
	}

	all, err := s.ListByCoin(ctx, domain.CoinDOGE)
	if err != nil {
		t.Fatalf("ListByCoin failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 DOGE records, got %d", len(all))
	}
}

func TestRecordStore_ConcurrentAccess(t *testing.T) {
	s := NewRecordStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := &domain.CollectionRecord{
				Coin:    domain.CoinDOGE,
				Address: fmt.Sprintf("D%d", n),
				State:   domain.CollectionIdle,
			}
			if err := s.Put(ctx, rec); err != nil {
				t.Errorf("Put failed: %v", err)
			}
			if _, err := s.Get(ctx, domain.CoinDOGE, rec.Address); err != nil {
				t.Errorf("Get failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	all, err := s.ListByCoin(ctx, domain.CoinDOGE)
	if err != nil {
		t.Fatalf("ListByCoin failed: %v", err)
	}
	if len(all) != 10 {
		t.Errorf("expected 10 records, got %d", len(all))
	}
}
