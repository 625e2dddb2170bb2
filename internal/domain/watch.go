package domain

// WatchState tracks a watched address through the subscription
// lifecycle.
type WatchState string

const (
	// WatchPending means the subscribe request was sent (or queued
	// behind a reconnect) and not yet acknowledged.
	WatchPending WatchState = "pending"

	// WatchActive means the upstream acknowledged the subscription.
	WatchActive WatchState = "active"

	// WatchUnsubscribing means unwatch was requested; the entry is
	// dropped on ack and never re-subscribed after a reconnect.
	WatchUnsubscribing WatchState = "unsubscribing"
)

// String returns the string representation of WatchState.
func (s WatchState) String() string {
	return string(s)
}

// Resubscribable reports whether a watch in this state is replayed to
// the upstream after a channel reconnect.
func (s WatchState) Resubscribable() bool {
	return s == WatchPending || s == WatchActive
}

// AddressWatch is one entry of a coin's watch-set. At most one exists
// per (coin, address); watching an already-watched address is a no-op.
type AddressWatch struct {
	Coin      Coin
	Address   string
	State     WatchState
	CreatedAt int64 // Unix timestamp in milliseconds
}
