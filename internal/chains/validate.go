package chains

import (
	"bytes"
	"crypto/sha256"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/mr-tron/base58"

	"github.com/glebkoxan36/mypip/internal/domain"
)

// validateUtxoAddress dispatches between base58check and bech32 by
// shape: an address starting with the chain's bech32 prefix is
// checked as segwit, everything else as base58check.
func validateUtxoAddress(address string, params chainParams) error {
	if address == "" {
		return &domain.ValidationError{Field: "address", Reason: "empty"}
	}
	if params.bech32HRP != "" && strings.HasPrefix(strings.ToLower(address), params.bech32HRP+"1") {
		return validateBech32(address, params.bech32HRP)
	}
	return validateBase58Check(address, params)
}

// validateBase58Check verifies base58 shape, the double-sha256
// checksum, and that the version byte belongs to the chain.
func validateBase58Check(address string, params chainParams) error {
	raw, err := base58.Decode(address)
	if err != nil {
		return &domain.ValidationError{Field: "address", Reason: "not base58"}
	}
	// version byte + 20-byte hash + 4-byte checksum
	if len(raw) != 25 {
		return &domain.ValidationError{Field: "address", Reason: "wrong payload length"}
	}

	first := sha256.Sum256(raw[:21])
	second := sha256.Sum256(first[:])
	if !bytes.Equal(second[:4], raw[21:]) {
		return &domain.ValidationError{Field: "address", Reason: "checksum mismatch"}
	}

	version := raw[0]
	for _, v := range params.p2pkhVersions {
		if v == version {
			return nil
		}
	}
	for _, v := range params.p2shVersions {
		if v == version {
			return nil
		}
	}
	return &domain.ValidationError{Field: "address", Reason: "version byte not valid for chain"}
}

// validateBech32 verifies segwit address encoding, prefix, and
// witness program size.
func validateBech32(address, hrp string) error {
	gotHRP, data, err := bech32.Decode(address)
	if err != nil {
		return &domain.ValidationError{Field: "address", Reason: "malformed bech32"}
	}
	if gotHRP != hrp {
		return &domain.ValidationError{Field: "address", Reason: "prefix not valid for chain"}
	}
	if len(data) < 1 {
		return &domain.ValidationError{Field: "address", Reason: "missing witness version"}
	}

	version := data[0]
	if version > 16 {
		return &domain.ValidationError{Field: "address", Reason: "invalid witness version"}
	}

	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return &domain.ValidationError{Field: "address", Reason: "malformed witness program"}
	}
	if len(program) < 2 || len(program) > 40 {
		return &domain.ValidationError{Field: "address", Reason: "witness program size out of range"}
	}
	if version == 0 && len(program) != 20 && len(program) != 32 {
		return &domain.ValidationError{Field: "address", Reason: "invalid v0 witness program size"}
	}
	return nil
}
