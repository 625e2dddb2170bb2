// Package engine composes the per-coin monitors and collection workers
// behind a single coordinator. It owns the event fan-out from monitor
// to worker and notification hub, the periodic scan schedule, and
// ordered startup and shutdown of every coin.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/glebkoxan36/mypip/internal/chains"
	"github.com/glebkoxan36/mypip/internal/collector"
	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/events"
	"github.com/glebkoxan36/mypip/internal/keyring"
	"github.com/glebkoxan36/mypip/internal/monitor"
	"github.com/glebkoxan36/mypip/internal/scheduler"
	"github.com/glebkoxan36/mypip/internal/store"
)

// ErrUnknownCoin reports an operation on a coin the coordinator was
// not built with.
var ErrUnknownCoin = errors.New("coin not enabled")

// CoinRuntime wires one enabled coin into the coordinator.
type CoinRuntime struct {
	Descriptor domain.CoinDescriptor
	Capability chains.Capability

	// Channel is the coin's live subscription stream.
	Channel monitor.Subscription
}

// Config assembles a coordinator. Stores and the credential source are
// shared across coins; everything per-coin comes in CoinRuntime.
type Config struct {
	Coins       []CoinRuntime
	Watches     store.WatchStore
	Records     store.RecordStore
	Archive     store.SweepArchive
	Credentials keyring.Source
	Logger      logrus.FieldLogger

	// SweepTimeout bounds one upstream sweep attempt. Zero keeps the
	// worker default.
	SweepTimeout time.Duration
}

// CoinStats is the operational snapshot of one coin.
type CoinStats struct {
	Coin             domain.Coin `json:"coin"`
	AddressesWatched int         `json:"addressesWatched"`
	Collected        int         `json:"collected"`
	Failed           int         `json:"failed"`
	Connected        bool        `json:"connected"`
}

type coinRuntime struct {
	desc domain.CoinDescriptor
	mon  *monitor.Monitor
	wrk  *collector.Worker
}

// Coordinator is the engine's single entry point: it registers the
// enabled coins once at construction and routes every watch, unwatch,
// sweep and stats call to the owning coin runtime.
type Coordinator struct {
	log     logrus.FieldLogger
	hub     *events.Hub
	sched   *scheduler.Scheduler
	records store.RecordStore

	coins map[domain.Coin]*coinRuntime

	wg sync.WaitGroup
}

// New builds the coordinator and each coin's monitor and worker. The
// subscription streams must already be connected; nothing starts
// consuming until Start.
func New(cfg Config) (*Coordinator, error) {
	if len(cfg.Coins) == 0 {
		return nil, fmt.Errorf("engine: no coins enabled")
	}
	if cfg.Watches == nil || cfg.Records == nil || cfg.Archive == nil {
		return nil, fmt.Errorf("engine: nil store")
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("engine: nil credential source")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	c := &Coordinator{
		log:     logger,
		hub:     events.NewHub(),
		sched:   scheduler.New(),
		records: cfg.Records,
		coins:   make(map[domain.Coin]*coinRuntime, len(cfg.Coins)),
	}

	for _, rt := range cfg.Coins {
		symbol := rt.Descriptor.Symbol
		if _, dup := c.coins[symbol]; dup {
			return nil, fmt.Errorf("engine: coin %s registered twice", symbol)
		}

		wrk, err := collector.New(collector.Config{
			Descriptor:   rt.Descriptor,
			Capability:   rt.Capability,
			Records:      cfg.Records,
			Archive:      cfg.Archive,
			Credentials:  cfg.Credentials,
			Logger:       logger,
			Notify:       c.hub.Publish,
			OnCollected:  c.collectedHook(symbol),
			SweepTimeout: cfg.SweepTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: worker for %s: %w", symbol, err)
		}

		mon, err := monitor.New(monitor.Config{
			Descriptor: rt.Descriptor,
			Capability: rt.Capability,
			Channel:    rt.Channel,
			Watches:    cfg.Watches,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: monitor for %s: %w", symbol, err)
		}

		c.coins[symbol] = &coinRuntime{desc: rt.Descriptor, mon: mon, wrk: wrk}
	}
	return c, nil
}

// Start recovers interrupted sweeps, restores the durable watch-sets,
// begins event consumption and schedules the periodic scans.
func (c *Coordinator) Start(ctx context.Context) error {
	for symbol, rt := range c.coins {
		if err := rt.wrk.Recover(ctx); err != nil {
			return fmt.Errorf("recover %s: %w", symbol, err)
		}
		if err := rt.mon.Start(ctx); err != nil {
			return fmt.Errorf("start monitor %s: %w", symbol, err)
		}

		c.wg.Add(1)
		go c.consume(rt)

		wrk := rt.wrk
		log := c.log.WithField("coin", symbol)
		if err := c.sched.Every(rt.desc.ScanInterval, func() {
			if err := wrk.Scan(context.Background()); err != nil {
				log.WithError(err).Warn("collection scan failed")
			}
		}); err != nil {
			return fmt.Errorf("schedule scan %s: %w", symbol, err)
		}
	}

	c.sched.Start()
	c.log.WithField("coins", len(c.coins)).Info("engine started")
	return nil
}

// consume is the per-coin dispatch loop: every monitor event goes to
// the notification hub and, for transactions, to the worker's
// immediate-trigger path. It exits when the monitor closes its stream.
func (c *Coordinator) consume(rt *coinRuntime) {
	defer c.wg.Done()
	for e := range rt.mon.Events() {
		switch e.Kind {
		case domain.EventTransaction:
			c.hub.Publish(domain.Notification{
				Coin:          e.Coin,
				Address:       e.Address,
				Kind:          domain.NotifyTransaction,
				Txid:          e.Txid,
				Amount:        e.Amount,
				Confirmations: e.Confirmations,
			})
			rt.wrk.HandleEvent(context.Background(), e)
		case domain.EventBlock:
			c.hub.Publish(domain.Notification{
				Coin:   e.Coin,
				Kind:   domain.NotifyBlock,
				Height: e.Height,
			})
		}
	}
}

// Watch subscribes the address on its coin's stream and opens a
// collection record for it.
func (c *Coordinator) Watch(ctx context.Context, coin domain.Coin, address string) error {
	rt, ok := c.coins[coin]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCoin, coin)
	}
	if err := rt.mon.Watch(ctx, address); err != nil {
		return err
	}
	if err := rt.wrk.Track(ctx, address); err != nil {
		if uerr := rt.mon.Unwatch(ctx, address); uerr != nil && !errors.Is(uerr, monitor.ErrNotWatched) {
			c.log.WithError(uerr).WithFields(logrus.Fields{"coin": coin, "address": address}).
				Warn("watch rollback failed")
		}
		return err
	}
	return nil
}

// Unwatch removes the address from its coin's watch-set. The
// collection record is left as-is; Abandon stops the record itself.
func (c *Coordinator) Unwatch(ctx context.Context, coin domain.Coin, address string) error {
	rt, ok := c.coins[coin]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCoin, coin)
	}
	return rt.mon.Unwatch(ctx, address)
}

// Abandon stops collection for the address: terminal record, no
// further scans, and the address is unwatched.
func (c *Coordinator) Abandon(ctx context.Context, coin domain.Coin, address string) error {
	rt, ok := c.coins[coin]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCoin, coin)
	}
	if err := rt.wrk.Abandon(ctx, address); err != nil {
		return err
	}
	if err := rt.mon.Unwatch(ctx, address); err != nil && !errors.Is(err, monitor.ErrNotWatched) {
		return err
	}
	return nil
}

// Estimate dry-runs a sweep of the address without touching any state.
func (c *Coordinator) Estimate(ctx context.Context, coin domain.Coin, address string) (*collector.Estimate, error) {
	rt, ok := c.coins[coin]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCoin, coin)
	}
	return rt.wrk.Estimate(ctx, address)
}

// Collect sweeps the given addresses of one coin as a sequential
// batch, pausing between attempts.
func (c *Coordinator) Collect(ctx context.Context, coin domain.Coin, addresses []string) ([]collector.SweepResult, error) {
	rt, ok := c.coins[coin]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCoin, coin)
	}
	return rt.wrk.SweepMany(ctx, addresses), nil
}

// Subscribe attaches a notification consumer to the engine's event
// hub. The returned stop function detaches it.
func (c *Coordinator) Subscribe() (<-chan domain.Notification, func()) {
	return c.hub.Subscribe()
}

// Stats snapshots every enabled coin, ordered by symbol.
func (c *Coordinator) Stats(ctx context.Context) ([]CoinStats, error) {
	out := make([]CoinStats, 0, len(c.coins))
	for symbol, rt := range c.coins {
		collected, err := c.records.ListByState(ctx, symbol, domain.CollectionCollected)
		if err != nil {
			return nil, fmt.Errorf("stats %s: %w", symbol, err)
		}
		failed, err := c.records.ListByState(ctx, symbol, domain.CollectionFailed)
		if err != nil {
			return nil, fmt.Errorf("stats %s: %w", symbol, err)
		}
		out = append(out, CoinStats{
			Coin:             symbol,
			AddressesWatched: rt.mon.WatchedCount(),
			Collected:        len(collected),
			Failed:           len(failed),
			Connected:        rt.mon.Connected(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coin < out[j].Coin })
	return out, nil
}

// Shutdown stops the engine: scans first, then the subscription
// streams, then the workers. Worker shutdown shares ctx as the grace
// period; attempts still in flight when it expires are canceled and
// their records recovered on next start.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.sched.Stop()

	for _, rt := range c.coins {
		if err := rt.mon.Close(); err != nil {
			c.log.WithError(err).WithField("coin", rt.desc.Symbol).Warn("monitor close failed")
		}
	}
	c.wg.Wait()

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for symbol, rt := range c.coins {
		wg.Add(1)
		go func(symbol domain.Coin, wrk *collector.Worker) {
			defer wg.Done()
			if err := wrk.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("worker %s: %w", symbol, err))
				mu.Unlock()
			}
		}(symbol, rt.wrk)
	}
	wg.Wait()

	c.log.Info("engine stopped")
	return errors.Join(errs...)
}

// collectedHook unwatches an address once its balance reached custody.
func (c *Coordinator) collectedHook(coin domain.Coin) func(ctx context.Context, address string) {
	return func(ctx context.Context, address string) {
		rt, ok := c.coins[coin]
		if !ok {
			return
		}
		if err := rt.mon.Unwatch(ctx, address); err != nil && !errors.Is(err, monitor.ErrNotWatched) {
			c.log.WithError(err).WithFields(logrus.Fields{"coin": coin, "address": address}).
				Warn("unwatch after collection failed")
			return
		}
		c.log.WithFields(logrus.Fields{"coin": coin, "address": address}).
			Info("address collected and unwatched")
	}
}
