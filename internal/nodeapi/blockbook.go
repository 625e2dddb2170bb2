package nodeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/glebkoxan36/mypip/internal/domain"
)

// BlockbookClient queries the Blockbook-style REST data API of the
// node-proxy service. Transient failures (transport errors, timeouts,
// 429, 5xx) are retried with exponential backoff; other HTTP errors
// and malformed payloads surface immediately as permanent.
type BlockbookClient struct {
	baseURL string
	apiKey  string
	clientConfig
}

// NewBlockbookClient creates a data API client for one coin endpoint.
func NewBlockbookClient(baseURL, apiKey string, opts ...Option) *BlockbookClient {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &BlockbookClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		clientConfig: cfg,
	}
}

// get fetches a JSON document with retries and exponential backoff.
func (c *BlockbookClient) get(ctx context.Context, op, path string, out interface{}) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &domain.UpstreamError{Op: op, Transient: true, Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return &domain.UpstreamError{Op: op, Err: fmt.Errorf("create request: %w", err)}
		}
		req.Header.Set(apiKeyHeader, c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if transientStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return &domain.UpstreamError{
				Op:  op,
				Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)),
			}
		}

		if err := json.Unmarshal(body, out); err != nil {
			return &domain.UpstreamError{Op: op, Err: fmt.Errorf("unmarshal response: %w", err)}
		}
		return nil
	}

	return &domain.UpstreamError{
		Op:        op,
		Transient: true,
		Err:       fmt.Errorf("max retries exceeded: %w", lastErr),
	}
}

// GetAddress retrieves the balance summary for an address.
func (c *BlockbookClient) GetAddress(ctx context.Context, address string) (*AddressInfo, error) {
	var info AddressInfo
	path := "/api/v2/address/" + url.PathEscape(address) + "?details=basic"
	if err := c.get(ctx, "getAddress", path, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetUtxos lists spendable outputs for an address. With confirmedOnly
// set, the upstream filters out mempool outputs.
func (c *BlockbookClient) GetUtxos(ctx context.Context, address string, confirmedOnly bool) ([]Utxo, error) {
	path := "/api/v2/utxo/" + url.PathEscape(address)
	if confirmedOnly {
		path += "?confirmed=true"
	}
	var utxos []Utxo
	if err := c.get(ctx, "getUtxos", path, &utxos); err != nil {
		return nil, err
	}
	return utxos, nil
}

// GetTransaction retrieves full transaction detail by txid.
func (c *BlockbookClient) GetTransaction(ctx context.Context, txid string) (*TxDetail, error) {
	var tx TxDetail
	if err := c.get(ctx, "getTransaction", "/api/v2/tx/"+url.PathEscape(txid), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetXpub retrieves the balance summary for an extended public key.
func (c *BlockbookClient) GetXpub(ctx context.Context, xpub string) (*XpubInfo, error) {
	var info XpubInfo
	if err := c.get(ctx, "getXpub", "/api/v2/xpub/"+url.PathEscape(xpub), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetBlock retrieves block metadata by height.
func (c *BlockbookClient) GetBlock(ctx context.Context, height int64) (*BlockInfo, error) {
	var block BlockInfo
	if err := c.get(ctx, "getBlock", "/api/v2/block/"+strconv.FormatInt(height, 10), &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetStatus retrieves indexer and backend state.
func (c *BlockbookClient) GetStatus(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.get(ctx, "getStatus", "/api/v2", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// WSEndpoint derives the subscription stream URL from the data API
// base: the scheme flips to WebSocket and the credential becomes a
// path segment.
func WSEndpoint(baseURL, apiKey string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", &domain.ValidationError{Field: "endpoint", Reason: "unparseable URL"}
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "wss", "ws":
	default:
		return "", &domain.ValidationError{Field: "endpoint", Reason: "unsupported scheme " + u.Scheme}
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/wss/" + apiKey
	return u.String(), nil
}

// truncate clips a body for error messages.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
