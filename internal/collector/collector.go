// Package collector drives the per-address sweep state machine: it
// observes deposits delivered by the monitor, promotes records through
// Observing and Eligible, and moves eligible balances to the custody
// address with build, sign and broadcast.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/glebkoxan36/mypip/internal/chains"
	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/keyring"
	"github.com/glebkoxan36/mypip/internal/observability"
	"github.com/glebkoxan36/mypip/internal/store"
)

var (
	// ErrNotEligible reports a sweep attempt on a record outside the
	// Eligible state.
	ErrNotEligible = errors.New("record not eligible")

	// ErrClosed reports a sweep attempt after shutdown began.
	ErrClosed = errors.New("collection worker closed")
)

const (
	defaultMaxAttempts  = 5
	defaultSweepDelay   = 2 * time.Second
	defaultSweepTimeout = 2 * time.Minute

	// feeTargetBlocks is the confirmation target used for dry-run fee
	// estimation.
	feeTargetBlocks = 2

	// completionTimeout bounds the record and archive writes after an
	// attempt finishes. Detached from the attempt context so a result
	// is recorded even when the attempt was canceled.
	completionTimeout = 10 * time.Second
)

// Config wires one collection worker.
type Config struct {
	Descriptor  domain.CoinDescriptor
	Capability  chains.Capability
	Records     store.RecordStore
	Archive     store.SweepArchive
	Credentials keyring.Source
	Logger      logrus.FieldLogger

	// Notify receives state-transition notifications. Optional.
	Notify func(domain.Notification)

	// OnCollected runs after a record reaches Collected. The
	// coordinator uses it to unwatch the swept address. Optional.
	OnCollected func(ctx context.Context, address string)

	// MaxAttempts caps transient sweep failures before Failed.
	// Zero means the default of 5.
	MaxAttempts int

	// SweepDelay is the pause between consecutive batch sweeps.
	// Zero means the default of 2s.
	SweepDelay time.Duration

	// SweepTimeout bounds one upstream sweep attempt. Zero means the
	// default of 2m.
	SweepTimeout time.Duration
}

// Estimate is a dry-run sweep evaluation. Eligible reflects the
// amount condition only; confirmation gating applies to live events,
// not to estimates.
type Estimate struct {
	Address   string
	Spendable int64 // confirmed balance, base units
	Fee       int64 // base units
	Net       int64 // spendable minus fee, may be negative
	Eligible  bool  // net meets the coin's minimum
	UtxoCount int   // confirmed utxos, 0 for account chains
}

// SweepResult is one address outcome of a batch sweep.
type SweepResult struct {
	Address string
	Txid    string
	Err     error
}

// Worker runs the collection state machine for one coin. All methods
// are safe for concurrent use; per-address mutual exclusion guarantees
// at most one sweep attempt in flight per record.
type Worker struct {
	desc    domain.CoinDescriptor
	coin    domain.Coin
	cap     chains.Capability
	records store.RecordStore
	archive store.SweepArchive
	creds   keyring.Source
	log     logrus.FieldLogger

	notifyFn    func(domain.Notification)
	onCollected func(ctx context.Context, address string)

	maxAttempts  int
	sweepDelay   time.Duration
	sweepTimeout time.Duration

	mu       sync.Mutex
	inflight map[string]bool
	closed   bool
	wg       sync.WaitGroup

	// baseCtx owns every upstream attempt; it is canceled only after
	// the shutdown grace expired.
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// New builds a worker. The descriptor must already be validated.
func New(cfg Config) (*Worker, error) {
	if cfg.Descriptor.Symbol == "" {
		return nil, fmt.Errorf("collector: empty coin symbol")
	}
	if cfg.Capability == nil {
		return nil, fmt.Errorf("collector: nil capability")
	}
	if cfg.Records == nil {
		return nil, fmt.Errorf("collector: nil record store")
	}
	if cfg.Archive == nil {
		return nil, fmt.Errorf("collector: nil sweep archive")
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("collector: nil credential source")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	sweepDelay := cfg.SweepDelay
	if sweepDelay <= 0 {
		sweepDelay = defaultSweepDelay
	}
	sweepTimeout := cfg.SweepTimeout
	if sweepTimeout <= 0 {
		sweepTimeout = defaultSweepTimeout
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Worker{
		desc:         cfg.Descriptor,
		coin:         cfg.Descriptor.Symbol,
		cap:          cfg.Capability,
		records:      cfg.Records,
		archive:      cfg.Archive,
		creds:        cfg.Credentials,
		log:          logger.WithField("coin", cfg.Descriptor.Symbol),
		notifyFn:     cfg.Notify,
		onCollected:  cfg.OnCollected,
		maxAttempts:  maxAttempts,
		sweepDelay:   sweepDelay,
		sweepTimeout: sweepTimeout,
		inflight:     make(map[string]bool),
		baseCtx:      baseCtx,
		baseCancel:   baseCancel,
	}, nil
}

// Track ensures a collection record exists for the address. A live
// record is left untouched; a terminal one is replaced so a re-watched
// address starts a fresh collection cycle.
func (w *Worker) Track(ctx context.Context, address string) error {
	existing, err := w.records.Get(ctx, w.coin, address)
	if err == nil {
		if !existing.State.Terminal() {
			return nil
		}
		if err := w.records.Delete(ctx, w.coin, address); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	now := time.Now().UnixMilli()
	rec := &domain.CollectionRecord{
		Coin:          w.coin,
		Address:       address,
		State:         domain.CollectionIdle,
		CredentialRef: credentialRef(w.coin, address),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return w.records.Put(ctx, rec)
}

// Recover returns records interrupted mid-sweep by a previous run to
// Eligible so the next scan re-attempts them.
func (w *Worker) Recover(ctx context.Context) error {
	interrupted, err := w.records.ListByState(ctx, w.coin, domain.CollectionSweeping)
	if err != nil {
		return fmt.Errorf("list interrupted sweeps: %w", err)
	}
	for _, rec := range interrupted {
		rec.State = domain.CollectionEligible
		rec.UpdatedAt = time.Now().UnixMilli()
		if err := w.records.Put(ctx, rec); err != nil {
			return fmt.Errorf("recover %s: %w", rec.Address, err)
		}
	}
	if len(interrupted) > 0 {
		w.log.WithField("records", len(interrupted)).Info("interrupted sweeps recovered")
	}
	return nil
}

// HandleEvent is the immediate trigger path: it advances the record
// for one delivered deposit event and, when the record becomes
// Eligible, starts a sweep attempt without waiting for the next scan.
func (w *Worker) HandleEvent(ctx context.Context, e domain.TransactionEvent) {
	if e.Kind != domain.EventTransaction {
		return
	}

	rec, err := w.records.Get(ctx, w.coin, e.Address)
	if errors.Is(err, store.ErrNotFound) {
		if err := w.Track(ctx, e.Address); err != nil {
			w.log.WithError(err).WithField("address", e.Address).Warn("record creation failed")
			return
		}
		rec, err = w.records.Get(ctx, w.coin, e.Address)
	}
	if err != nil {
		w.log.WithError(err).WithField("address", e.Address).Warn("record load failed")
		return
	}
	if rec.State.Terminal() || rec.State == domain.CollectionSweeping {
		return
	}

	if e.Confirmations > rec.Confirmations {
		rec.Confirmations = e.Confirmations
	}

	if e.Confirmations < w.desc.Confirmations {
		w.toObserving(ctx, rec)
		return
	}

	eligible, balance, err := w.spendable(ctx, e.Address)
	if err != nil {
		w.log.WithError(err).WithField("address", e.Address).Warn("balance check failed")
		w.toObserving(ctx, rec)
		return
	}
	rec.Balance = balance
	if !eligible {
		w.toObserving(ctx, rec)
		return
	}

	if err := w.transition(ctx, rec, domain.CollectionEligible, ""); err != nil {
		w.log.WithError(err).WithField("address", e.Address).Warn("eligible transition failed")
		return
	}

	go func() {
		_, err := w.Sweep(context.Background(), e.Address)
		if err != nil && !errors.Is(err, domain.ErrConcurrencyConflict) &&
			!errors.Is(err, ErrNotEligible) && !errors.Is(err, ErrClosed) {
			w.log.WithError(err).WithField("address", e.Address).Warn("immediate sweep failed")
		}
	}()
}

// Scan is the periodic trigger path. It re-evaluates Observing
// records whose confirmations already qualify (their balance may have
// grown, or an earlier balance check failed) and then sweeps every
// Eligible record sequentially.
func (w *Worker) Scan(ctx context.Context) error {
	observability.RecordScan(string(w.coin))

	observing, err := w.records.ListByState(ctx, w.coin, domain.CollectionObserving)
	if err != nil {
		return fmt.Errorf("list observing records: %w", err)
	}
	for _, rec := range observing {
		if rec.Confirmations < w.desc.Confirmations {
			continue
		}
		eligible, balance, err := w.spendable(ctx, rec.Address)
		if err != nil {
			w.log.WithError(err).WithField("address", rec.Address).Warn("balance check failed")
			continue
		}
		if !eligible {
			continue
		}
		rec.Balance = balance
		if err := w.transition(ctx, rec, domain.CollectionEligible, ""); err != nil {
			w.log.WithError(err).WithField("address", rec.Address).Warn("eligible transition failed")
		}
	}

	eligible, err := w.records.ListByState(ctx, w.coin, domain.CollectionEligible)
	if err != nil {
		return fmt.Errorf("list eligible records: %w", err)
	}
	observability.SetEligibleRecords(string(w.coin), len(eligible))

	for _, rec := range eligible {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := w.Sweep(ctx, rec.Address); err != nil {
			if errors.Is(err, domain.ErrConcurrencyConflict) ||
				errors.Is(err, ErrNotEligible) || errors.Is(err, ErrClosed) {
				continue
			}
			w.log.WithError(err).WithField("address", rec.Address).Warn("scan sweep failed")
		}
	}
	return nil
}

// Sweep runs one collection attempt for an Eligible record: build all
// confirmed value into a transaction, sign it with the address
// credential and broadcast to the custody address. The upstream
// attempt is bounded by the worker's sweep timeout and owned by the
// worker, so it survives caller cancellation until the shutdown grace
// expires. Returns the sweep txid on success, ErrConcurrencyConflict
// when an attempt is already in flight for the address.
func (w *Worker) Sweep(ctx context.Context, address string) (string, error) {
	if err := w.acquire(address); err != nil {
		return "", err
	}
	defer w.release(address)

	rec, err := w.records.Get(ctx, w.coin, address)
	if err != nil {
		return "", err
	}
	if rec.State != domain.CollectionEligible {
		return "", ErrNotEligible
	}

	startedAt := time.Now().UnixMilli()
	if err := w.transition(ctx, rec, domain.CollectionSweeping, ""); err != nil {
		return "", err
	}
	observability.RecordSweepAttempted(string(w.coin))

	attemptCtx, cancel := context.WithTimeout(w.baseCtx, w.sweepTimeout)
	txid, tx, attemptErr := w.attempt(attemptCtx, rec)
	cancel()

	return w.finish(rec, startedAt, txid, tx, attemptErr)
}

// attempt performs the credential, build, sign and broadcast pipeline.
func (w *Worker) attempt(ctx context.Context, rec *domain.CollectionRecord) (string, *chains.UnsignedTx, error) {
	cred, err := w.creds.CredentialFor(ctx, w.coin, rec.Address)
	if err != nil {
		return "", nil, fmt.Errorf("credential for %s: %w", rec.Address, err)
	}

	tx, err := w.cap.BuildSweepTransaction(ctx, rec.Address, w.desc.CustodyAddress, w.desc.CollectionFee)
	if err != nil {
		return "", nil, err
	}

	signed, err := w.cap.Sign(ctx, tx, cred.Reveal())
	if err != nil {
		return "", tx, err
	}

	txid, err := w.cap.Broadcast(ctx, signed)
	if err != nil {
		return "", tx, err
	}
	return txid, tx, nil
}

// finish writes the attempt result. The record is reloaded first: an
// operator Abandon may have raced the attempt, and a terminal record
// is never overwritten.
func (w *Worker) finish(rec *domain.CollectionRecord, startedAt int64, txid string, tx *chains.UnsignedTx, attemptErr error) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	fresh, err := w.records.Get(ctx, w.coin, rec.Address)
	if err != nil {
		w.log.WithError(err).WithField("address", rec.Address).Error("record reload failed, result not written")
		return "", attemptErr
	}
	if fresh.State != domain.CollectionSweeping {
		if txid != "" {
			w.log.WithFields(logrus.Fields{"address": rec.Address, "txid": txid}).
				Warn("sweep completed after record left Sweeping")
			return txid, nil
		}
		return "", attemptErr
	}
	rec = fresh

	switch {
	case attemptErr == nil:
		rec.Txid = txid
		rec.LastError = ""
		if tx != nil {
			rec.Balance = tx.Gross
		}
		if err := w.transition(ctx, rec, domain.CollectionCollected, ""); err != nil {
			w.log.WithError(err).WithField("address", rec.Address).Error("collected write failed")
			return txid, nil
		}
		observability.RecordSweepCollected(string(w.coin))
		w.archiveOutcome(ctx, rec, tx, startedAt)
		if w.onCollected != nil {
			w.onCollected(ctx, rec.Address)
		}
		return txid, nil

	case errors.Is(attemptErr, context.Canceled):
		// Shutdown interrupted the attempt; it does not count against
		// the cap and the record is re-attempted on next start.
		if err := w.transition(ctx, rec, domain.CollectionEligible, ""); err != nil {
			w.log.WithError(err).WithField("address", rec.Address).Error("interrupted sweep write failed")
		}
		return "", attemptErr

	case domain.IsTransient(attemptErr) || errors.Is(attemptErr, context.DeadlineExceeded):
		rec.Attempts++
		if rec.Attempts >= w.maxAttempts {
			w.fail(ctx, rec, tx, startedAt,
				fmt.Sprintf("retries exhausted after %d attempts: %s", rec.Attempts, attemptErr))
			return "", attemptErr
		}
		if err := w.transition(ctx, rec, domain.CollectionEligible, ""); err != nil {
			w.log.WithError(err).WithField("address", rec.Address).Error("retry write failed")
		}
		return "", attemptErr

	default:
		w.fail(ctx, rec, tx, startedAt, attemptErr.Error())
		return "", attemptErr
	}
}

// fail moves a record to terminal Failed and archives the outcome.
func (w *Worker) fail(ctx context.Context, rec *domain.CollectionRecord, tx *chains.UnsignedTx, startedAt int64, reason string) {
	rec.LastError = reason
	if err := w.transition(ctx, rec, domain.CollectionFailed, reason); err != nil {
		w.log.WithError(err).WithField("address", rec.Address).Error("failed write failed")
		return
	}
	observability.RecordSweepFailed(string(w.coin))
	w.archiveOutcome(ctx, rec, tx, startedAt)
}

// Abandon is the operator stop: the record goes terminal and no scan
// picks it up again. A stuck in-flight flag is cleared so the address
// is not wedged. Abandoning an already terminal record is a no-op.
func (w *Worker) Abandon(ctx context.Context, address string) error {
	w.mu.Lock()
	delete(w.inflight, address)
	w.mu.Unlock()

	rec, err := w.records.Get(ctx, w.coin, address)
	if err != nil {
		return err
	}
	if rec.State.Terminal() {
		return nil
	}

	startedAt := time.Now().UnixMilli()
	if err := w.transition(ctx, rec, domain.CollectionAbandoned, "operator stop"); err != nil {
		return err
	}
	w.archiveOutcome(ctx, rec, nil, startedAt)
	return nil
}

// Estimate is a dry-run: what a sweep of the address would move right
// now. No state changes, nothing is broadcast.
func (w *Worker) Estimate(ctx context.Context, address string) (*Estimate, error) {
	if err := w.cap.ValidateAddress(address); err != nil {
		return nil, err
	}

	bal, err := w.cap.GetBalance(ctx, address)
	if err != nil {
		return nil, err
	}

	fee, err := w.cap.EstimateFee(ctx, feeTargetBlocks)
	if err != nil {
		fee = w.desc.CollectionFee
	}

	est := &Estimate{
		Address:   address,
		Spendable: bal.Confirmed,
		Fee:       fee,
		Net:       bal.Confirmed - fee,
		Eligible:  bal.Confirmed-fee >= w.desc.MinCollection,
	}

	if lister, ok := w.cap.(chains.UtxoLister); ok {
		utxos, err := lister.ListUtxos(ctx, address)
		if err != nil {
			return nil, err
		}
		for _, u := range utxos {
			if u.Confirmations >= 1 {
				est.UtxoCount++
			}
		}
	}
	return est, nil
}

// SweepMany sweeps the addresses sequentially with a pause between
// attempts, so a batch does not hammer the upstream. A canceled
// context stops the batch; completed results are returned.
func (w *Worker) SweepMany(ctx context.Context, addresses []string) []SweepResult {
	results := make([]SweepResult, 0, len(addresses))
	for i, address := range addresses {
		if i > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(w.sweepDelay):
			}
		}
		txid, err := w.Sweep(ctx, address)
		results = append(results, SweepResult{Address: address, Txid: txid, Err: err})
	}
	return results
}

// Shutdown stops new sweeps and waits for in-flight attempts. When
// ctx expires first, the remaining attempts are canceled; their
// records return to Eligible (or are recovered on next start).
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		w.baseCancel()
		<-done
		err = ctx.Err()
	}
	w.baseCancel()
	return err
}

// acquire wins the per-address in-flight flag.
func (w *Worker) acquire(address string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.inflight[address] {
		return domain.ErrConcurrencyConflict
	}
	w.inflight[address] = true
	w.wg.Add(1)
	return nil
}

func (w *Worker) release(address string) {
	w.mu.Lock()
	delete(w.inflight, address)
	w.mu.Unlock()
	w.wg.Done()
}

// spendable checks the amount condition: confirmed balance minus the
// flat fee must reach the coin's minimum.
func (w *Worker) spendable(ctx context.Context, address string) (bool, int64, error) {
	bal, err := w.cap.GetBalance(ctx, address)
	if err != nil {
		return false, 0, err
	}
	confirmed := bal.Confirmed
	return confirmed-w.desc.CollectionFee >= w.desc.MinCollection, confirmed, nil
}

// toObserving keeps a record in Observing, entering it from Idle or
// demoting a stale Eligible record when a fresh unconfirmed deposit
// arrived.
func (w *Worker) toObserving(ctx context.Context, rec *domain.CollectionRecord) {
	if err := w.transition(ctx, rec, domain.CollectionObserving, ""); err != nil {
		w.log.WithError(err).WithField("address", rec.Address).Warn("observing write failed")
	}
}

// transition writes a state change and notifies subscribers. Writing
// the same state refreshes the record without a notification.
func (w *Worker) transition(ctx context.Context, rec *domain.CollectionRecord, to domain.CollectionState, reason string) error {
	from := rec.State
	rec.State = to
	rec.UpdatedAt = time.Now().UnixMilli()
	if err := w.records.Put(ctx, rec); err != nil {
		rec.State = from
		return err
	}

	if from != to && w.notifyFn != nil {
		w.notifyFn(domain.Notification{
			Coin:    w.coin,
			Address: rec.Address,
			Kind:    domain.NotifyStateTransition,
			From:    from,
			To:      to,
			Reason:  reason,
		})
	}
	return nil
}

// archiveOutcome appends the terminal outcome row. Archive failures
// are logged, not surfaced; the record itself already carries the
// result.
func (w *Worker) archiveOutcome(ctx context.Context, rec *domain.CollectionRecord, tx *chains.UnsignedTx, startedAt int64) {
	outcome := &domain.SweepOutcome{
		Coin:       w.coin,
		Address:    rec.Address,
		State:      rec.State,
		Txid:       rec.Txid,
		Gross:      rec.Balance,
		Fee:        w.desc.CollectionFee,
		Attempts:   rec.Attempts,
		Error:      rec.LastError,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UnixMilli(),
	}
	if tx != nil {
		outcome.Gross = tx.Gross
		outcome.Fee = tx.Fee
		outcome.UtxoCount = tx.Inputs
	}
	if err := w.archive.InsertOutcome(ctx, outcome); err != nil {
		w.log.WithError(err).WithField("address", rec.Address).Warn("outcome not archived")
	}
}

func credentialRef(coin domain.Coin, address string) string {
	return "keyring:" + string(coin) + "/" + address
}
