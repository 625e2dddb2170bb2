package chains

import "github.com/glebkoxan36/mypip/internal/domain"

// DefaultFeeTarget is the confirmation target used for fee estimation
// when the caller does not specify one.
const DefaultFeeTarget = 6

// chainParams is the offline validation and signing profile of a UTXO
// chain on mainnet.
type chainParams struct {
	// p2pkhVersions are the accepted base58check version bytes for
	// pay-to-pubkey-hash addresses.
	p2pkhVersions []byte
	// p2shVersions are the accepted version bytes for script hashes.
	p2shVersions []byte
	// bech32HRP is the segwit address prefix; empty for chains
	// without segwit.
	bech32HRP string
	// legacySign selects the pre-split signrawtransaction RPC for
	// daemons that never gained signrawtransactionwithkey.
	legacySign bool
}

var paramsBySymbol = map[domain.Coin]chainParams{
	domain.CoinBTC: {
		p2pkhVersions: []byte{0x00},
		p2shVersions:  []byte{0x05},
		bech32HRP:     "bc",
	},
	domain.CoinLTC: {
		// 0x05 script hashes are the deprecated shared-with-BTC
		// prefix still seen in the wild.
		p2pkhVersions: []byte{0x30},
		p2shVersions:  []byte{0x32, 0x05},
		bech32HRP:     "ltc",
	},
	domain.CoinDOGE: {
		p2pkhVersions: []byte{0x1e},
		p2shVersions:  []byte{0x16},
		legacySign:    true,
	},
}
