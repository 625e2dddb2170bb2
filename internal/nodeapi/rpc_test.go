package nodeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebkoxan36/mypip/internal/domain"
)

// rawRequest mirrors the request envelope with params left unparsed
// so tests can assert the exact JSON the client sent.
type rawRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func TestRPCClient_EstimateSmartFee(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rawRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.JSONRPC != "1.0" {
			t.Errorf("expected jsonrpc 1.0, got %s", req.JSONRPC)
		}
		if req.ID != "sweepd" {
			t.Errorf("expected id sweepd, got %s", req.ID)
		}
		if req.Method != "estimatesmartfee" {
			t.Errorf("expected method estimatesmartfee, got %s", req.Method)
		}
		if len(req.Params) != 1 || string(req.Params[0]) != "2" {
			t.Errorf("unexpected params: %v", req.Params)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": {"feerate": 0.00012, "blocks": 2}, "error": null, "id": "sweepd"}`))
	}))
	defer server.Close()

	client := NewRPCClient(server.URL, "secret")
	ctx := context.Background()

	fee, err := client.EstimateSmartFee(ctx, 2)
	if err != nil {
		t.Fatalf("EstimateSmartFee: %v", err)
	}
	if fee.Feerate != 0.00012 {
		t.Errorf("expected feerate 0.00012, got %v", fee.Feerate)
	}
	if fee.Blocks != 2 {
		t.Errorf("expected blocks 2, got %d", fee.Blocks)
	}
}

func TestRPCClient_CreateRawTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rawRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != "createrawtransaction" {
			t.Errorf("expected method createrawtransaction, got %s", req.Method)
		}
		if len(req.Params) != 2 {
			t.Fatalf("expected 2 params, got %d", len(req.Params))
		}

		var inputs []TxInput
		if err := json.Unmarshal(req.Params[0], &inputs); err != nil {
			t.Fatalf("unmarshal inputs: %v", err)
		}
		if len(inputs) != 2 || inputs[0].Txid != "aa11" || inputs[1].Vout != 3 {
			t.Errorf("unexpected inputs: %+v", inputs)
		}

		// The amount must survive as the exact decimal token, not a
		// re-encoded float.
		var outputs map[string]json.RawMessage
		if err := json.Unmarshal(req.Params[1], &outputs); err != nil {
			t.Fatalf("unmarshal outputs: %v", err)
		}
		if string(outputs["DMasterAddr"]) != "14.0" {
			t.Errorf("expected amount token 14.0, got %s", outputs["DMasterAddr"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": "0200deadbeef", "error": null, "id": "sweepd"}`))
	}))
	defer server.Close()

	client := NewRPCClient(server.URL, "secret")
	ctx := context.Background()

	raw, err := client.CreateRawTransaction(ctx,
		[]TxInput{{Txid: "aa11", Vout: 0}, {Txid: "bb22", Vout: 3}},
		map[string]string{"DMasterAddr": "14.0"},
	)
	if err != nil {
		t.Fatalf("CreateRawTransaction: %v", err)
	}
	if raw != "0200deadbeef" {
		t.Errorf("expected raw hex, got %s", raw)
	}
}

func TestRPCClient_SignRawTransactionWithKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rawRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "signrawtransactionwithkey" {
			t.Errorf("expected signrawtransactionwithkey, got %s", req.Method)
		}
		if len(req.Params) != 2 {
			t.Fatalf("expected 2 params [hex, keys], got %d", len(req.Params))
		}
		var keys []string
		if err := json.Unmarshal(req.Params[1], &keys); err != nil || len(keys) != 1 {
			t.Errorf("unexpected keys param: %s", req.Params[1])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": {"hex": "0200signed", "complete": true}, "error": null, "id": "sweepd"}`))
	}))
	defer server.Close()

	client := NewRPCClient(server.URL, "secret")
	ctx := context.Background()

	signed, err := client.SignRawTransactionWithKey(ctx, "0200deadbeef", []string{"cKey"})
	if err != nil {
		t.Fatalf("SignRawTransactionWithKey: %v", err)
	}
	if !signed.Complete {
		t.Error("expected complete signature")
	}
	if signed.Hex != "0200signed" {
		t.Errorf("expected signed hex, got %s", signed.Hex)
	}
}

func TestRPCClient_SignRawTransactionLegacy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rawRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "signrawtransaction" {
			t.Errorf("expected signrawtransaction, got %s", req.Method)
		}
		// Legacy form is [hex, prevtxs, keys] with an empty middle.
		if len(req.Params) != 3 {
			t.Fatalf("expected 3 params, got %d", len(req.Params))
		}
		if string(req.Params[1]) != "[]" {
			t.Errorf("expected empty prevtxs, got %s", req.Params[1])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": {"hex": "0100signed", "complete": true}, "error": null, "id": "sweepd"}`))
	}))
	defer server.Close()

	client := NewRPCClient(server.URL, "secret")
	ctx := context.Background()

	signed, err := client.SignRawTransactionLegacy(ctx, "0100deadbeef", []string{"QKey"})
	if err != nil {
		t.Fatalf("SignRawTransactionLegacy: %v", err)
	}
	if signed.Hex != "0100signed" {
		t.Errorf("expected signed hex, got %s", signed.Hex)
	}
}

func TestRPCClient_SendRawTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rawRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "sendrawtransaction" {
			t.Errorf("expected sendrawtransaction, got %s", req.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": "txid1234", "error": null, "id": "sweepd"}`))
	}))
	defer server.Close()

	client := NewRPCClient(server.URL, "secret")
	ctx := context.Background()

	txid, err := client.SendRawTransaction(ctx, "0200signed")
	if err != nil {
		t.Fatalf("SendRawTransaction: %v", err)
	}
	if txid != "txid1234" {
		t.Errorf("expected txid1234, got %s", txid)
	}
}

func TestRPCClient_DaemonError(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": null, "error": {"code": -26, "message": "dust"}, "id": "sweepd"}`))
	}))
	defer server.Close()

	client := NewRPCClient(server.URL, "secret",
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)
	ctx := context.Background()

	_, err := client.SendRawTransaction(ctx, "0200bad")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %T", err)
	}
	if upstream.Transient {
		t.Error("daemon errors should be permanent")
	}
	if upstream.Code != -26 {
		t.Errorf("expected code -26, got %d", upstream.Code)
	}
	if attempts.Load() != 1 {
		t.Errorf("daemon errors should not retry, got %d attempts", attempts.Load())
	}
}

func TestRPCClient_TransportRetry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": {"chain": "main", "blocks": 5100000}, "error": null, "id": "sweepd"}`))
	}))
	defer server.Close()

	client := NewRPCClient(server.URL, "secret",
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)
	ctx := context.Background()

	info, err := client.GetBlockchainInfo(ctx)
	if err != nil {
		t.Fatalf("GetBlockchainInfo: %v", err)
	}
	if info.Blocks != 5100000 {
		t.Errorf("expected height 5100000, got %d", info.Blocks)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestRPCClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewRPCClient(server.URL, "secret")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetBlockchainInfo(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
