package domain

// NotificationKind classifies hub notifications for subscribers.
type NotificationKind string

const (
	NotifyTransaction     NotificationKind = "transaction"
	NotifyBlock           NotificationKind = "block"
	NotifyStateTransition NotificationKind = "state-transition"
)

// Notification is the payload delivered to external subscribers
// (dashboards, chat relays) through the engine's event interface.
type Notification struct {
	Coin    Coin
	Address string
	Kind    NotificationKind

	// Transaction / block payload.
	Txid          string
	Amount        int64 // base units
	Confirmations int
	Height        int64

	// State-transition payload.
	From   CollectionState
	To     CollectionState
	Reason string // failure reason when To == CollectionFailed
}
