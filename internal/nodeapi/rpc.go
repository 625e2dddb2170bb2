package nodeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/glebkoxan36/mypip/internal/domain"
)

// rpcRequestID is the fixed id the proxy echoes back on every call.
const rpcRequestID = "sweepd"

// RPCClient speaks JSON-RPC 1.0 to the coin daemon behind the
// node-proxy service. Transport failures are retried with exponential
// backoff; errors returned by the daemon itself are permanent and
// carry the upstream code.
type RPCClient struct {
	endpoint string
	apiKey   string
	clientConfig
}

// NewRPCClient creates an RPC client for one coin endpoint.
func NewRPCClient(endpoint, apiKey string, opts ...Option) *RPCClient {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &RPCClient{
		endpoint:     endpoint,
		apiKey:       apiKey,
		clientConfig: cfg,
	}
}

// rpcRequest is a JSON-RPC 1.0 request envelope.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcResponse is a JSON-RPC 1.0 response envelope.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     string          `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call performs one RPC method with retries on transport failures.
// Daemon-reported errors are never retried.
func (c *RPCClient) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "1.0",
		ID:      rpcRequestID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &domain.UpstreamError{Op: method, Transient: true, Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return &domain.UpstreamError{Op: method, Err: fmt.Errorf("create request: %w", err)}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(apiKeyHeader, c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
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
				Op:  method,
				Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody, 200)),
			}
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return &domain.UpstreamError{Op: method, Err: fmt.Errorf("unmarshal response: %w", err)}
		}
		if rpcResp.Error != nil {
			return &domain.UpstreamError{
				Op:   method,
				Code: rpcResp.Error.Code,
				Err:  fmt.Errorf("%s", rpcResp.Error.Message),
			}
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return &domain.UpstreamError{Op: method, Err: fmt.Errorf("unmarshal result: %w", err)}
			}
		}
		return nil
	}

	return &domain.UpstreamError{
		Op:        method,
		Transient: true,
		Err:       fmt.Errorf("max retries exceeded: %w", lastErr),
	}
}

// EstimateSmartFee asks the daemon for a feerate targeting
// confirmation within the given number of blocks.
func (c *RPCClient) EstimateSmartFee(ctx context.Context, targetBlocks int) (*SmartFee, error) {
	var fee SmartFee
	if err := c.Call(ctx, "estimatesmartfee", []interface{}{targetBlocks}, &fee); err != nil {
		return nil, err
	}
	return &fee, nil
}

// GetBlockchainInfo retrieves the daemon's view of the chain.
func (c *RPCClient) GetBlockchainInfo(ctx context.Context) (*ChainInfo, error) {
	var info ChainInfo
	if err := c.Call(ctx, "getblockchaininfo", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ValidateAddress asks the daemon whether an address is well-formed
// for its chain.
func (c *RPCClient) ValidateAddress(ctx context.Context, address string) (*ValidateResult, error) {
	var res ValidateResult
	if err := c.Call(ctx, "validateaddress", []interface{}{address}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateRawTransaction builds an unsigned transaction spending the
// given inputs. Output amounts are decimal strings in coin units and
// are embedded as exact JSON numbers.
func (c *RPCClient) CreateRawTransaction(ctx context.Context, inputs []TxInput, outputs map[string]string) (string, error) {
	outs := make(map[string]json.RawMessage, len(outputs))
	for addr, amount := range outputs {
		outs[addr] = json.RawMessage(amount)
	}
	var raw string
	if err := c.Call(ctx, "createrawtransaction", []interface{}{inputs, outs}, &raw); err != nil {
		return "", err
	}
	return raw, nil
}

// SignRawTransactionWithKey signs a raw transaction with the given
// private keys (modern daemons).
func (c *RPCClient) SignRawTransactionWithKey(ctx context.Context, rawTx string, keys []string) (*SignedTx, error) {
	var signed SignedTx
	if err := c.Call(ctx, "signrawtransactionwithkey", []interface{}{rawTx, keys}, &signed); err != nil {
		return nil, err
	}
	return &signed, nil
}

// SignRawTransactionLegacy signs via the pre-split signrawtransaction
// call still served by older daemons such as Dogecoin Core.
func (c *RPCClient) SignRawTransactionLegacy(ctx context.Context, rawTx string, keys []string) (*SignedTx, error) {
	var signed SignedTx
	if err := c.Call(ctx, "signrawtransaction", []interface{}{rawTx, []interface{}{}, keys}, &signed); err != nil {
		return nil, err
	}
	return &signed, nil
}

// SendRawTransaction broadcasts a signed transaction and returns its
// txid.
func (c *RPCClient) SendRawTransaction(ctx context.Context, signedTx string) (string, error) {
	var txid string
	if err := c.Call(ctx, "sendrawtransaction", []interface{}{signedTx}, &txid); err != nil {
		return "", err
	}
	return txid, nil
}

// GetRawTransaction fetches the raw hex of a transaction.
func (c *RPCClient) GetRawTransaction(ctx context.Context, txid string) (string, error) {
	var raw string
	if err := c.Call(ctx, "getrawtransaction", []interface{}{txid}, &raw); err != nil {
		return "", err
	}
	return raw, nil
}
