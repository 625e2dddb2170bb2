package domain

import "time"

// Coin is an uppercase coin ticker symbol.
type Coin string

const (
	CoinBTC  Coin = "BTC"
	CoinLTC  Coin = "LTC"
	CoinDOGE Coin = "DOGE"
	CoinETH  Coin = "ETH"
)

// String returns the string representation of Coin.
func (c Coin) String() string {
	return string(c)
}

// Variant selects the capability implementation for a coin's
// transaction model.
type Variant string

const (
	VariantUTXO    Variant = "utxo"
	VariantAccount Variant = "account"
)

// IsValid checks if the variant is a known value.
func (v Variant) IsValid() bool {
	return v == VariantUTXO || v == VariantAccount
}

// CoinDescriptor holds the immutable per-coin parameters the engine
// operates with. Built once at startup from configuration plus the
// chain defaults below; runtime changes require re-registering the coin.
type CoinDescriptor struct {
	Symbol         Coin
	Variant        Variant
	Network        string        // chain network name, e.g. "litecoin"
	Decimals       int           // decimal places of the native unit
	MinCollection  int64         // minimum collectible amount, base units
	CollectionFee  int64         // flat sweep fee, base units
	Confirmations  int           // confirmations required for eligibility
	CustodyAddress string        // sweep destination
	ScanInterval   time.Duration // periodic collection scan interval
}

// Chain defaults recovered from the node-manager deployments. Fee and
// minimum are expressed in base units (1e8 for UTXO coins, wei for ETH).
var chainDefaults = map[Coin]CoinDescriptor{
	CoinBTC: {
		Symbol:        CoinBTC,
		Variant:       VariantUTXO,
		Network:       "bitcoin",
		Decimals:      8,
		MinCollection: 10_000,    // 0.0001 BTC
		CollectionFee: 1_000,     // 0.00001 BTC
		Confirmations: 2,
		ScanInterval:  30 * time.Minute,
	},
	CoinLTC: {
		Symbol:        CoinLTC,
		Variant:       VariantUTXO,
		Network:       "litecoin",
		Decimals:      8,
		MinCollection: 100_000,   // 0.001 LTC
		CollectionFee: 10_000,    // 0.0001 LTC
		Confirmations: 3,
		ScanInterval:  30 * time.Minute,
	},
	CoinDOGE: {
		Symbol:        CoinDOGE,
		Variant:       VariantUTXO,
		Network:       "dogecoin",
		Decimals:      8,
		MinCollection: 1_000_000_000, // 10 DOGE
		CollectionFee: 100_000_000,   // 1 DOGE
		Confirmations: 6,
		ScanInterval:  30 * time.Minute,
	},
	CoinETH: {
		Symbol:        CoinETH,
		Variant:       VariantAccount,
		Network:       "ethereum",
		Decimals:      18,
		MinCollection: 10_000_000_000_000_000, // 0.01 ETH
		CollectionFee: 420_000_000_000_000,    // 21000 gas at 20 gwei
		Confirmations: 12,
		ScanInterval:  30 * time.Minute,
	},
}

// DefaultDescriptor returns the chain defaults for a known coin.
// The second return is false for coins without a default profile.
func DefaultDescriptor(symbol Coin) (CoinDescriptor, bool) {
	d, ok := chainDefaults[symbol]
	return d, ok
}

// Validate checks that the descriptor is complete enough to run a
// monitor and a collection worker. A missing custody address is a
// validation failure here, at registration, not at sweep time.
func (d CoinDescriptor) Validate() error {
	if d.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "empty"}
	}
	if !d.Variant.IsValid() {
		return &ValidationError{Field: "variant", Reason: "unknown variant " + string(d.Variant)}
	}
	if d.Decimals < 0 || d.Decimals > 18 {
		return &ValidationError{Field: "decimals", Reason: "out of range"}
	}
	if d.CustodyAddress == "" {
		return &ValidationError{Field: "custodyAddress", Reason: "not configured for " + string(d.Symbol)}
	}
	if d.MinCollection <= 0 {
		return &ValidationError{Field: "minCollection", Reason: "must be positive"}
	}
	if d.CollectionFee < 0 {
		return &ValidationError{Field: "collectionFee", Reason: "negative"}
	}
	if d.Confirmations < 0 {
		return &ValidationError{Field: "confirmations", Reason: "negative"}
	}
	if d.ScanInterval <= 0 {
		return &ValidationError{Field: "scanInterval", Reason: "must be positive"}
	}
	return nil
}
