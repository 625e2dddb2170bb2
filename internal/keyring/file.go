package keyring

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/glebkoxan36/mypip/internal/domain"
)

// NewStaticFromFile loads a Static source from an operator-managed
// JSON file mapping "COIN/address" keys to raw signing material. The
// file is read once at startup; nothing is ever written back. Error
// messages name the offending key, never the material.
func NewStaticFromFile(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyring file: %w", err)
	}

	var entries map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse keyring file: %w", err)
	}

	s := NewStatic()
	for key, value := range entries {
		coin, address, ok := strings.Cut(key, "/")
		if !ok || coin == "" || address == "" {
			return nil, fmt.Errorf("keyring file: malformed entry %q", key)
		}
		if value == "" {
			return nil, fmt.Errorf("keyring file: empty credential for %q", key)
		}
		s.Set(domain.Coin(strings.ToUpper(coin)), address, NewCredential(value))
	}
	return s, nil
}
