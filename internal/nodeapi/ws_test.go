package nodeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/glebkoxan36/mypip/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsTestConfig() *WSConfig {
	return &WSConfig{
		ReconnectDelay:    50 * time.Millisecond,
		MaxReconnectDelay: 500 * time.Millisecond,
		PingInterval:      5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		AckTimeout:        2 * time.Second,
	}
}

func TestChannel_SubscribeAndNotify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.ID != "sub_DTestAddr" {
			t.Errorf("expected id sub_DTestAddr, got %s", req.ID)
		}
		if req.Method != "subscribeAddresses" {
			t.Errorf("expected subscribeAddresses, got %s", req.Method)
		}

		conn.WriteJSON(map[string]interface{}{
			"id":   req.ID,
			"data": map[string]interface{}{"subscribed": true},
		})

		// Push a transaction touching the subscribed address. Only
		// the outputs paying it count toward the amount.
		conn.WriteJSON(map[string]interface{}{
			"method": "subscribeAddresses",
			"data": map[string]interface{}{
				"address": "DTestAddr",
				"tx": map[string]interface{}{
					"txid":          "tx01",
					"confirmations": 0,
					"vout": []map[string]interface{}{
						{"value": "1500000000", "addresses": []string{"DTestAddr"}},
						{"value": "99", "addresses": []string{"DChangeAddr"}},
					},
				},
			},
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	ch, err := NewChannel(ctx, wsURL, wsTestConfig())
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}
	defer ch.Close()

	if err := ch.Subscribe(ctx, "DTestAddr"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case tx := <-ch.Transactions():
		if tx.Address != "DTestAddr" {
			t.Errorf("expected DTestAddr, got %s", tx.Address)
		}
		if tx.Txid != "tx01" {
			t.Errorf("expected tx01, got %s", tx.Txid)
		}
		if tx.Amount != 1500000000 {
			t.Errorf("expected amount 1500000000, got %d", tx.Amount)
		}
		if tx.Confirmations != 0 {
			t.Errorf("expected 0 confirmations, got %d", tx.Confirmations)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for transaction event")
	}
}

func TestChannel_SubscribeDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req wsRequest
			if json.Unmarshal(msg, &req) == nil && req.ID != "" {
				conn.WriteJSON(map[string]interface{}{
					"id":   req.ID,
					"data": map[string]interface{}{"subscribed": false},
				})
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	ch, err := NewChannel(ctx, wsURL, wsTestConfig())
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}
	defer ch.Close()

	err = ch.Subscribe(ctx, "DTestAddr")
	if err == nil {
		t.Fatal("expected error for declined subscription")
	}
	if domain.IsTransient(err) {
		t.Error("declined subscription should be permanent")
	}

	// An unsubscribe ack with subscribed=false is the success shape.
	if err := ch.Unsubscribe(ctx, "DTestAddr"); err != nil {
		t.Errorf("Unsubscribe: %v", err)
	}
}

func TestChannel_Blocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			return
		}
		if req.Method != "subscribeNewBlock" {
			t.Errorf("expected subscribeNewBlock, got %s", req.Method)
		}

		conn.WriteJSON(map[string]interface{}{
			"id":   req.ID,
			"data": map[string]interface{}{"subscribed": true},
		})
		conn.WriteJSON(map[string]interface{}{
			"method": "subscribeNewBlock",
			"data":   map[string]interface{}{"height": 5100042, "hash": "blockhash42"},
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	ch, err := NewChannel(ctx, wsURL, wsTestConfig())
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}
	defer ch.Close()

	if err := ch.SubscribeBlocks(ctx); err != nil {
		t.Fatalf("SubscribeBlocks: %v", err)
	}

	select {
	case tick := <-ch.Blocks():
		if tick.Height != 5100042 {
			t.Errorf("expected height 5100042, got %d", tick.Height)
		}
		if tick.Hash != "blockhash42" {
			t.Errorf("expected blockhash42, got %s", tick.Hash)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for block event")
	}
}

func TestChannel_Reconnect(t *testing.T) {
	var connections atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		// Drop the first connection right away, hold the rest open.
		if connections.Add(1) == 1 {
			conn.Close()
			return
		}

		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	ch, err := NewChannel(ctx, wsURL, wsTestConfig())
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}
	defer ch.Close()

	select {
	case <-ch.Reconnected():
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for reconnect signal")
	}

	if !ch.Connected() {
		t.Error("channel should be connected after reconnect")
	}
	if connections.Load() < 2 {
		t.Errorf("expected at least 2 connections, got %d", connections.Load())
	}
}

func TestChannel_AckTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Swallow requests without acking.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	config := wsTestConfig()
	config.AckTimeout = 100 * time.Millisecond

	ctx := context.Background()
	ch, err := NewChannel(ctx, wsURL, config)
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}
	defer ch.Close()

	err = ch.Subscribe(ctx, "DTestAddr")
	if err == nil {
		t.Fatal("expected ack timeout error")
	}
	if !domain.IsTransient(err) {
		t.Errorf("ack timeout should be transient, got %v", err)
	}
}

func TestChannel_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	ch, err := NewChannel(ctx, wsURL, wsTestConfig())
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}

	if err := ch.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}

	if ch.Connected() {
		t.Error("channel should not report connected after Close")
	}

	if _, ok := <-ch.Transactions(); ok {
		t.Error("transaction stream should be closed")
	}
	if _, ok := <-ch.Blocks(); ok {
		t.Error("block stream should be closed")
	}

	if err := ch.Subscribe(ctx, "DTestAddr"); err == nil {
		t.Error("expected error subscribing after close")
	}
}
