package badgerdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/store"
)

func newTestWatchStore(t *testing.T) *WatchStore {
	t.Helper()

	ws, err := NewWatchStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestWatchStore_PutAndGet(t *testing.T) {
	ws := newTestWatchStore(t)
	ctx := context.Background()

	watch := &domain.AddressWatch{
		Coin:      domain.CoinDOGE,
		Address:   "DBadgerWatch1",
		State:     domain.WatchPending,
		CreatedAt: 1700000000000,
	}
	require.NoError(t, ws.Put(ctx, watch))

	retrieved, err := ws.Get(ctx, domain.CoinDOGE, "DBadgerWatch1")
	require.NoError(t, err)

	assert.Equal(t, watch.Coin, retrieved.Coin)
	assert.Equal(t, watch.Address, retrieved.Address)
	assert.Equal(t, domain.WatchPending, retrieved.State)
	assert.Equal(t, watch.CreatedAt, retrieved.CreatedAt)
}

func TestWatchStore_PutUpsertsState(t *testing.T) {
	ws := newTestWatchStore(t)
	ctx := context.Background()

	watch := &domain.AddressWatch{
		Coin:      domain.CoinLTC,
		Address:   "LBadgerUpsert",
		State:     domain.WatchPending,
		CreatedAt: 1700000000000,
	}
	require.NoError(t, ws.Put(ctx, watch))

	watch.State = domain.WatchActive
	require.NoError(t, ws.Put(ctx, watch))

	retrieved, err := ws.Get(ctx, domain.CoinLTC, "LBadgerUpsert")
	require.NoError(t, err)
	assert.Equal(t, domain.WatchActive, retrieved.State)
}

func TestWatchStore_NotFound(t *testing.T) {
	ws := newTestWatchStore(t)
	ctx := context.Background()

	_, err := ws.Get(ctx, domain.CoinBTC, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = ws.Delete(ctx, domain.CoinBTC, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWatchStore_PutInvalidInput(t *testing.T) {
	ws := newTestWatchStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, ws.Put(ctx, nil), store.ErrInvalidInput)
	assert.ErrorIs(t, ws.Put(ctx, &domain.AddressWatch{Coin: domain.CoinBTC}), store.ErrInvalidInput)
}

func TestWatchStore_ListByCoin(t *testing.T) {
	ws := newTestWatchStore(t)
	ctx := context.Background()

	for _, addr := range []string{"DListC", "DListA", "DListB"} {
		require.NoError(t, ws.Put(ctx, &domain.AddressWatch{
			Coin:      domain.CoinDOGE,
			Address:   addr,
			State:     domain.WatchActive,
			CreatedAt: 1700000000000,
		}))
	}
	require.NoError(t, ws.Put(ctx, &domain.AddressWatch{
		Coin:      domain.CoinLTC,
		Address:   "LOtherCoin",
		State:     domain.WatchActive,
		CreatedAt: 1700000000000,
	}))

	watches, err := ws.ListByCoin(ctx, domain.CoinDOGE)
	require.NoError(t, err)
	require.Len(t, watches, 3)

	assert.Equal(t, "DListA", watches[0].Address)
	assert.Equal(t, "DListB", watches[1].Address)
	assert.Equal(t, "DListC", watches[2].Address)
}

func TestWatchStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ws, err := NewWatchStore(dir, nil)
	require.NoError(t, err)

	require.NoError(t, ws.Put(ctx, &domain.AddressWatch{
		Coin:      domain.CoinDOGE,
		Address:   "DDurable",
		State:     domain.WatchActive,
		CreatedAt: 1700000000000,
	}))
	require.NoError(t, ws.Close())

	reopened, err := NewWatchStore(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	retrieved, err := reopened.Get(ctx, domain.CoinDOGE, "DDurable")
	require.NoError(t, err)
	assert.Equal(t, domain.WatchActive, retrieved.State)
}
