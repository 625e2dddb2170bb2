// Package chains implements per-coin node capabilities: address
// validation, balance and UTXO queries, fee estimation, and the
// build/sign/broadcast pipeline used by sweeps. Two variants exist,
// one for UTXO chains served by the node-proxy data and RPC APIs and
// one for account chains served by an Ethereum-style JSON-RPC node.
package chains

import (
	"context"

	"github.com/glebkoxan36/mypip/internal/domain"
)

// Capability is the node access surface for one coin. Implementations
// hold no mutable state beyond connection handles and are safe for
// concurrent use.
type Capability interface {
	// Coin returns the coin symbol this capability serves.
	Coin() domain.Coin

	// Variant returns the transaction model of the chain.
	Variant() domain.Variant

	// ValidateAddress checks address shape offline, without touching
	// the upstream. Returns a ValidationError for malformed input.
	ValidateAddress(address string) error

	// GetBalance retrieves the address balance in base units.
	GetBalance(ctx context.Context, address string) (*Balance, error)

	// EstimateFee returns a fee for confirmation within targetBlocks,
	// in base units. Estimation is best-effort: on upstream failure
	// the coin's static fallback is returned instead of an error.
	EstimateFee(ctx context.Context, targetBlocks int) (int64, error)

	// BuildSweepTransaction constructs an unsigned transaction moving
	// everything spendable on source, minus fee, to destination.
	// Fails with InsufficientFundsError when the spendable amount
	// does not exceed the fee.
	BuildSweepTransaction(ctx context.Context, source, destination string, fee int64) (*UnsignedTx, error)

	// Sign signs a built transaction with the given key material.
	// Failures caused by a wrong or malformed credential are
	// permanent.
	Sign(ctx context.Context, tx *UnsignedTx, credential string) (string, error)

	// Broadcast submits a signed transaction and returns its txid.
	// Upstream rejection is permanent and never retried.
	Broadcast(ctx context.Context, signedTx string) (string, error)

	// Height returns the current chain height.
	Height(ctx context.Context) (int64, error)
}

// UtxoLister is implemented by UTXO-variant capabilities.
type UtxoLister interface {
	// ListUtxos returns the unspent outputs of an address, mempool
	// outputs included with zero confirmations.
	ListUtxos(ctx context.Context, address string) ([]Utxo, error)
}

// AccountReader is implemented by account-variant capabilities.
type AccountReader interface {
	// GetNonce returns the next usable nonce for an address.
	GetNonce(ctx context.Context, address string) (uint64, error)

	// GetAccountBalance returns the confirmed balance in base units.
	GetAccountBalance(ctx context.Context, address string) (int64, error)
}

// Balance is an address balance in base units. Unconfirmed is the
// mempool delta and may be negative while a spend is pending.
type Balance struct {
	Confirmed   int64
	Unconfirmed int64
}

// Total returns confirmed plus unconfirmed balance.
func (b Balance) Total() int64 {
	return b.Confirmed + b.Unconfirmed
}

// Utxo is one spendable output in base units.
type Utxo struct {
	Txid          string
	Vout          int
	Amount        int64
	Confirmations int
}

// UnsignedTx is a built, not yet signed sweep transaction. Raw is the
// chain's wire encoding in hex; Gross is the total input value the
// transaction consumes.
type UnsignedTx struct {
	Raw    string
	Gross  int64
	Fee    int64
	Inputs int
}
