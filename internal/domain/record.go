package domain

// CollectionState is the sweep state machine position for one
// (coin, address) record.
type CollectionState string

const (
	// CollectionIdle: record exists, nothing observed yet.
	CollectionIdle CollectionState = "idle"

	// CollectionObserving: a deposit was seen but confirmations or
	// amount are still below the coin's thresholds.
	CollectionObserving CollectionState = "observing"

	// CollectionEligible: confirmations and net amount qualify; the
	// record is waiting for a scan or immediate trigger to sweep it.
	CollectionEligible CollectionState = "eligible"

	// CollectionSweeping: a sweep attempt is in flight. At most one
	// per record at any time.
	CollectionSweeping CollectionState = "sweeping"

	// CollectionCollected: terminal success, Txid holds the sweep
	// transaction.
	CollectionCollected CollectionState = "collected"

	// CollectionFailed: terminal failure after a permanent error or
	// the retry cap.
	CollectionFailed CollectionState = "failed"

	// CollectionAbandoned: terminal operator stop.
	CollectionAbandoned CollectionState = "abandoned"
)

// String returns the string representation of CollectionState.
func (s CollectionState) String() string {
	return string(s)
}

// Terminal reports whether no further transitions leave this state.
func (s CollectionState) Terminal() bool {
	return s == CollectionCollected || s == CollectionFailed || s == CollectionAbandoned
}

// CollectionRecord tracks the sweep progress of one watched address.
// One record per (coin, address), created on first watch, retained
// until a terminal state and then evictable to the archive.
type CollectionRecord struct {
	Coin          Coin
	Address       string
	State         CollectionState
	Balance       int64  // last observed confirmed balance, base units
	Confirmations int    // highest confirmation count seen
	CredentialRef string // opaque keyring reference, never logged
	Attempts      int    // transient sweep failures so far
	Txid          string // sweep transaction id, set on Collected
	LastError     string // reason for Failed, empty otherwise
	CreatedAt     int64  // Unix timestamp in milliseconds
	UpdatedAt     int64  // Unix timestamp in milliseconds
}

// Key returns the record's identity within a store.
func (r CollectionRecord) Key() string {
	return string(r.Coin) + "/" + r.Address
}
