package domain

// EventKind distinguishes the notification types a subscription
// channel produces.
type EventKind string

const (
	EventTransaction EventKind = "transaction"
	EventBlock       EventKind = "block"
)

// TransactionEvent is a single upstream notification for a watched
// address, or a new-block tick. Transient: produced by the
// subscription channel, consumed by the monitor and forwarded, never
// persisted by the engine.
type TransactionEvent struct {
	Coin          Coin
	Kind          EventKind
	Address       string // empty for block events
	Txid          string
	Amount        int64  // base units, 0 if the payload carried none
	Confirmations int
	Height        int64  // chain height, block events only
}

// Key returns the deduplication key for transaction events. Block
// events are not deduplicated.
func (e TransactionEvent) Key() string {
	return string(e.Coin) + "/" + e.Address + "/" + e.Txid
}
