// Package monitor maintains the live subscription set for one coin
// and delivers deduplicated transaction events, in arrival order per
// address, to a single downstream consumer.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/glebkoxan36/mypip/internal/chains"
	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/nodeapi"
	"github.com/glebkoxan36/mypip/internal/observability"
	"github.com/glebkoxan36/mypip/internal/store"
)

// ErrNotWatched reports an unwatch for an address that is not in the
// watch-set.
var ErrNotWatched = errors.New("address not watched")

// Subscription is the event stream the monitor consumes. It is
// satisfied by nodeapi.Channel.
type Subscription interface {
	Subscribe(ctx context.Context, address string) error
	Unsubscribe(ctx context.Context, address string) error
	SubscribeBlocks(ctx context.Context) error
	Transactions() <-chan nodeapi.AddressTx
	Blocks() <-chan nodeapi.BlockTick
	Reconnected() <-chan struct{}
	Connected() bool
	Close() error
}

// eventStreamBuffer absorbs bursts between the dispatch goroutine and
// the consumer.
const eventStreamBuffer = 1024

// upstreamTimeout bounds the store and subscribe calls made from the
// dispatch goroutine, where no caller context exists.
const upstreamTimeout = 30 * time.Second

// Config wires one monitor.
type Config struct {
	Descriptor domain.CoinDescriptor
	Capability chains.Capability
	Channel    Subscription
	Watches    store.WatchStore
	Logger     logrus.FieldLogger
}

// Monitor owns a coin's watch-set. The store copy is durable; the
// in-memory set is the hot path consulted on every incoming event.
// All events flow through one dispatch goroutine, which preserves
// per-address ordering without cross-address coordination.
type Monitor struct {
	desc    domain.CoinDescriptor
	coin    domain.Coin
	cap     chains.Capability
	channel Subscription
	watches store.WatchStore
	log     logrus.FieldLogger

	mu       sync.Mutex
	watchSet map[string]domain.WatchState
	// lastConf tracks the highest delivered confirmation count per
	// address and txid; an event at or below it is a duplicate.
	lastConf map[string]map[string]int

	events chan domain.TransactionEvent
	done   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

// New builds a monitor. Start must be called before events flow.
func New(cfg Config) (*Monitor, error) {
	if cfg.Descriptor.Symbol == "" {
		return nil, fmt.Errorf("monitor: empty coin symbol")
	}
	if cfg.Capability == nil {
		return nil, fmt.Errorf("monitor: nil capability")
	}
	if cfg.Channel == nil {
		return nil, fmt.Errorf("monitor: nil channel")
	}
	if cfg.Watches == nil {
		return nil, fmt.Errorf("monitor: nil watch store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Monitor{
		desc:     cfg.Descriptor,
		coin:     cfg.Descriptor.Symbol,
		cap:      cfg.Capability,
		channel:  cfg.Channel,
		watches:  cfg.Watches,
		log:      logger.WithField("coin", cfg.Descriptor.Symbol),
		watchSet: make(map[string]domain.WatchState),
		lastConf: make(map[string]map[string]int),
		events:   make(chan domain.TransactionEvent, eventStreamBuffer),
		done:     make(chan struct{}),
	}, nil
}

// Start restores the durable watch-set, replays its subscriptions and
// launches the dispatch goroutine. Watches left in Unsubscribing by a
// previous run are dropped, their unwatch intent already took effect.
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.resubscribe(ctx); err != nil {
		return err
	}

	if err := m.channel.SubscribeBlocks(ctx); err != nil {
		m.log.WithError(err).Warn("block subscription failed")
	}

	m.wg.Add(1)
	go m.run()
	return nil
}

// Watch adds an address to the watch-set. Validation failures are
// rejected before anything is persisted or sent upstream. Watching an
// already-watched address is a no-op.
func (m *Monitor) Watch(ctx context.Context, address string) error {
	if m.desc.CustodyAddress == "" {
		return &domain.ValidationError{Field: "custodyAddress", Reason: "not configured for " + string(m.coin)}
	}
	if err := m.cap.ValidateAddress(address); err != nil {
		return err
	}

	m.mu.Lock()
	if _, ok := m.watchSet[address]; ok {
		m.mu.Unlock()
		return nil
	}

	watch := &domain.AddressWatch{
		Coin:      m.coin,
		Address:   address,
		State:     domain.WatchPending,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := m.watches.Put(ctx, watch); err != nil {
		m.mu.Unlock()
		return err
	}
	m.watchSet[address] = domain.WatchPending
	size := len(m.watchSet)
	m.mu.Unlock()
	observability.SetWatchSetSize(string(m.coin), size)

	if err := m.channel.Subscribe(ctx, address); err != nil {
		if domain.IsTransient(err) {
			// The watch stays Pending; the reconnect replay sends the
			// subscribe once the stream is back.
			m.log.WithError(err).WithField("address", address).
				Warn("subscribe deferred to reconnect")
			return nil
		}
		m.dropWatch(ctx, address)
		return err
	}

	m.activate(ctx, address)
	return nil
}

// Unwatch removes an address from the watch-set. The removal is local
// and unconditional; the upstream unsubscribe is best-effort and
// skipped entirely while the stream is down.
func (m *Monitor) Unwatch(ctx context.Context, address string) error {
	m.mu.Lock()
	if _, ok := m.watchSet[address]; !ok {
		m.mu.Unlock()
		return ErrNotWatched
	}
	delete(m.watchSet, address)
	delete(m.lastConf, address)
	size := len(m.watchSet)
	m.mu.Unlock()
	observability.SetWatchSetSize(string(m.coin), size)

	unsubscribing := &domain.AddressWatch{
		Coin:      m.coin,
		Address:   address,
		State:     domain.WatchUnsubscribing,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := m.watches.Put(ctx, unsubscribing); err != nil {
		m.log.WithError(err).WithField("address", address).Warn("unwatch state write failed")
	}

	if m.channel.Connected() {
		if err := m.channel.Unsubscribe(ctx, address); err != nil {
			m.log.WithError(err).WithField("address", address).Debug("unsubscribe not acked")
		}
	}

	if err := m.watches.Delete(ctx, m.coin, address); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// Events is the stream of accepted notifications. It is consumed by
// exactly one goroutine; the channel closes when the monitor does.
func (m *Monitor) Events() <-chan domain.TransactionEvent {
	return m.events
}

// Connected reports whether the subscription stream currently holds a
// connection.
func (m *Monitor) Connected() bool {
	return m.channel.Connected()
}

// WatchedCount returns the current watch-set size.
func (m *Monitor) WatchedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchSet)
}

// Close stops the dispatch goroutine and tears the stream down. The
// events channel closes once dispatch has drained.
func (m *Monitor) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	close(m.done)
	err := m.channel.Close()
	m.wg.Wait()
	return err
}

// dropWatch removes a watch whose subscribe was declined permanently.
func (m *Monitor) dropWatch(ctx context.Context, address string) {
	m.mu.Lock()
	delete(m.watchSet, address)
	size := len(m.watchSet)
	m.mu.Unlock()
	observability.SetWatchSetSize(string(m.coin), size)

	if err := m.watches.Delete(ctx, m.coin, address); err != nil && !errors.Is(err, store.ErrNotFound) {
		m.log.WithError(err).WithField("address", address).Warn("declined watch not removed")
	}
}

// activate marks a watch Active after its subscribe ack, unless it was
// unwatched while the ack was in flight.
func (m *Monitor) activate(ctx context.Context, address string) {
	m.mu.Lock()
	if _, ok := m.watchSet[address]; !ok {
		m.mu.Unlock()
		return
	}
	m.watchSet[address] = domain.WatchActive
	m.mu.Unlock()

	active := &domain.AddressWatch{
		Coin:      m.coin,
		Address:   address,
		State:     domain.WatchActive,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := m.watches.Put(ctx, active); err != nil {
		m.log.WithError(err).WithField("address", address).Warn("watch activation write failed")
	}
}

// run is the dispatch goroutine: the single consumer of the stream and
// the single writer of the events channel.
func (m *Monitor) run() {
	defer m.wg.Done()
	defer close(m.events)

	for {
		select {
		case <-m.done:
			return
		case tx, ok := <-m.channel.Transactions():
			if !ok {
				return
			}
			m.handleTx(tx)
		case blk, ok := <-m.channel.Blocks():
			if !ok {
				return
			}
			m.handleBlock(blk)
		case <-m.channel.Reconnected():
			m.handleReconnect()
		}
	}
}

// handleTx filters one address notification against the watch-set and
// the dedup table, then forwards it.
func (m *Monitor) handleTx(tx nodeapi.AddressTx) {
	m.mu.Lock()
	if _, watched := m.watchSet[tx.Address]; !watched {
		m.mu.Unlock()
		return
	}
	byTx := m.lastConf[tx.Address]
	if byTx == nil {
		byTx = make(map[string]int)
		m.lastConf[tx.Address] = byTx
	}
	if last, seen := byTx[tx.Txid]; seen && tx.Confirmations <= last {
		m.mu.Unlock()
		observability.RecordEventDeduped(string(m.coin))
		return
	}
	byTx[tx.Txid] = tx.Confirmations
	m.mu.Unlock()

	observability.RecordEventReceived(string(m.coin))

	event := domain.TransactionEvent{
		Coin:          m.coin,
		Kind:          domain.EventTransaction,
		Address:       tx.Address,
		Txid:          tx.Txid,
		Amount:        tx.Amount,
		Confirmations: tx.Confirmations,
	}
	select {
	case m.events <- event:
	case <-m.done:
	}
}

// handleBlock forwards a new-block tick.
func (m *Monitor) handleBlock(blk nodeapi.BlockTick) {
	event := domain.TransactionEvent{
		Coin:   m.coin,
		Kind:   domain.EventBlock,
		Height: blk.Height,
	}
	select {
	case m.events <- event:
	case <-m.done:
	}
}

// handleReconnect replays the subscription set after the stream came
// back.
func (m *Monitor) handleReconnect() {
	observability.RecordReconnect(string(m.coin))

	ctx, cancel := context.WithTimeout(context.Background(), upstreamTimeout)
	defer cancel()

	if err := m.channel.SubscribeBlocks(ctx); err != nil {
		m.log.WithError(err).Warn("block re-subscription failed")
	}
	if err := m.resubscribe(ctx); err != nil {
		m.log.WithError(err).Warn("watch-set replay failed")
	}
}

// resubscribe reloads the durable watch-set, re-subscribes every
// Pending and Active watch and drops Unsubscribing leftovers. Failed
// subscribes stay Pending for the next replay.
func (m *Monitor) resubscribe(ctx context.Context) error {
	watches, err := m.watches.ListByCoin(ctx, m.coin)
	if err != nil {
		return fmt.Errorf("load watch-set: %w", err)
	}

	set := make(map[string]domain.WatchState, len(watches))
	for _, w := range watches {
		if !w.State.Resubscribable() {
			if err := m.watches.Delete(ctx, m.coin, w.Address); err != nil && !errors.Is(err, store.ErrNotFound) {
				m.log.WithError(err).WithField("address", w.Address).Warn("stale unsubscribing watch not removed")
			}
			continue
		}

		state := domain.WatchPending
		if err := m.channel.Subscribe(ctx, w.Address); err != nil {
			m.log.WithError(err).WithField("address", w.Address).Warn("re-subscribe failed")
		} else {
			state = domain.WatchActive
		}
		set[w.Address] = state

		if state != w.State {
			w.State = state
			if err := m.watches.Put(ctx, w); err != nil {
				m.log.WithError(err).WithField("address", w.Address).Warn("watch state write failed")
			}
		}
	}

	m.mu.Lock()
	m.watchSet = set
	m.mu.Unlock()
	observability.SetWatchSetSize(string(m.coin), len(set))

	m.log.WithField("watches", len(set)).Info("watch-set subscribed")
	return nil
}
