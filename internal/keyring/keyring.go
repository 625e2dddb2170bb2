// Package keyring supplies signing credentials to the sweep engine.
// The engine never persists credentials; stores carry only the opaque
// reference a Source resolves at signing time, and Credential redacts
// itself in any formatted output.
package keyring

import (
	"context"
	"errors"
	"sync"

	"github.com/glebkoxan36/mypip/internal/domain"
)

// ErrNoCredential is returned when a source holds nothing for the
// requested address.
var ErrNoCredential = errors.New("keyring: no credential for address")

// Credential wraps raw signing material. Only Reveal returns the raw
// value; every formatting path prints a placeholder so credentials
// cannot leak through logs or error messages.
type Credential struct {
	value string
}

// NewCredential wraps raw signing material.
func NewCredential(value string) Credential {
	return Credential{value: value}
}

// Reveal returns the raw material for signing.
func (c Credential) Reveal() string {
	return c.value
}

// IsZero reports whether the credential is empty.
func (c Credential) IsZero() bool {
	return c.value == ""
}

// String implements fmt.Stringer with a redacted placeholder.
func (c Credential) String() string {
	return "[redacted]"
}

// GoString redacts %#v output as well.
func (c Credential) GoString() string {
	return "keyring.Credential{value: \"[redacted]\"}"
}

// Source resolves the signing credential for a watched address.
type Source interface {
	CredentialFor(ctx context.Context, coin domain.Coin, address string) (Credential, error)
}

// Func adapts a plain function to the Source interface.
type Func func(ctx context.Context, coin domain.Coin, address string) (Credential, error)

// CredentialFor calls f.
func (f Func) CredentialFor(ctx context.Context, coin domain.Coin, address string) (Credential, error) {
	return f(ctx, coin, address)
}

// Static serves credentials from an in-memory map keyed by
// (coin, address).
type Static struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// Compile-time interface check.
var _ Source = (*Static)(nil)

// NewStatic creates an empty static source.
func NewStatic() *Static {
	return &Static{creds: make(map[string]Credential)}
}

// Set stores the credential for one address, replacing any previous
// value.
func (s *Static) Set(coin domain.Coin, address string, cred Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[credKey(coin, address)] = cred
}

// CredentialFor returns the stored credential or ErrNoCredential.
func (s *Static) CredentialFor(ctx context.Context, coin domain.Coin, address string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[credKey(coin, address)]
	if !ok {
		return Credential{}, ErrNoCredential
	}
	return cred, nil
}

func credKey(coin domain.Coin, address string) string {
	return string(coin) + "/" + address
}
