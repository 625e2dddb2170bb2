package keyring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/glebkoxan36/mypip/internal/domain"
)

const rawKey = "cVt4o7BGAig1UXywgGSmARhxMdzP5qvQsxKkSsc1XEkw3tDTQFpy"

func TestCredentialRedaction(t *testing.T) {
	cred := NewCredential(rawKey)

	for _, format := range []string{"%v", "%+v", "%#v", "%s"} {
		out := fmt.Sprintf(format, cred)
		if strings.Contains(out, rawKey) {
			t.Errorf("format %s leaked raw material: %s", format, out)
		}
	}

	// Embedded in a larger value the raw material must stay hidden too.
	type carrier struct {
		Cred Credential
	}
	out := fmt.Sprintf("%+v", carrier{Cred: cred})
	if strings.Contains(out, rawKey) {
		t.Errorf("embedded format leaked raw material: %s", out)
	}

	if cred.Reveal() != rawKey {
		t.Errorf("Reveal() = %q, want the raw material back", cred.Reveal())
	}
}

func TestCredentialIsZero(t *testing.T) {
	if !NewCredential("").IsZero() {
		t.Error("empty credential should be zero")
	}
	if NewCredential(rawKey).IsZero() {
		t.Error("non-empty credential should not be zero")
	}
}

func TestStaticSetAndLookup(t *testing.T) {
	src := NewStatic()
	src.Set(domain.CoinDOGE, "DAddr1", NewCredential(rawKey))

	cred, err := src.CredentialFor(context.Background(), domain.CoinDOGE, "DAddr1")
	if err != nil {
		t.Fatalf("CredentialFor() error = %v", err)
	}
	if cred.Reveal() != rawKey {
		t.Errorf("CredentialFor() = %q, want %q", cred.Reveal(), rawKey)
	}
}

func TestStaticMissing(t *testing.T) {
	src := NewStatic()
	src.Set(domain.CoinDOGE, "DAddr1", NewCredential(rawKey))

	// Same address under another coin is a distinct entry.
	_, err := src.CredentialFor(context.Background(), domain.CoinLTC, "DAddr1")
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("CredentialFor() error = %v, want ErrNoCredential", err)
	}

	_, err = src.CredentialFor(context.Background(), domain.CoinDOGE, "unknown")
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("CredentialFor() error = %v, want ErrNoCredential", err)
	}
}

func TestStaticReplace(t *testing.T) {
	src := NewStatic()
	src.Set(domain.CoinDOGE, "DAddr1", NewCredential("old"))
	src.Set(domain.CoinDOGE, "DAddr1", NewCredential("new"))

	cred, err := src.CredentialFor(context.Background(), domain.CoinDOGE, "DAddr1")
	if err != nil {
		t.Fatalf("CredentialFor() error = %v", err)
	}
	if cred.Reveal() != "new" {
		t.Errorf("CredentialFor() = %q, want replacement value", cred.Reveal())
	}
}

func TestStaticConcurrentAccess(t *testing.T) {
	src := NewStatic()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			addr := fmt.Sprintf("DAddr%d", n)
			src.Set(domain.CoinDOGE, addr, NewCredential(rawKey))
		}(i)
		go func(n int) {
			defer wg.Done()
			addr := fmt.Sprintf("DAddr%d", n)
			_, _ = src.CredentialFor(context.Background(), domain.CoinDOGE, addr)
		}(i)
	}
	wg.Wait()
}

func TestFuncAdapter(t *testing.T) {
	var gotCoin domain.Coin
	var gotAddr string

	src := Func(func(ctx context.Context, coin domain.Coin, address string) (Credential, error) {
		gotCoin = coin
		gotAddr = address
		return NewCredential(rawKey), nil
	})

	cred, err := src.CredentialFor(context.Background(), domain.CoinLTC, "LAddr9")
	if err != nil {
		t.Fatalf("CredentialFor() error = %v", err)
	}
	if cred.Reveal() != rawKey {
		t.Errorf("CredentialFor() = %q, want passthrough value", cred.Reveal())
	}
	if gotCoin != domain.CoinLTC || gotAddr != "LAddr9" {
		t.Errorf("adapter forwarded (%s, %s), want (LTC, LAddr9)", gotCoin, gotAddr)
	}
}
