package nodeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/glebkoxan36/mypip/internal/domain"
)

// WSConfig configures subscription channel behavior.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential reconnect backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is the keep-alive ping period.
	PingInterval time.Duration
	// ReadTimeout bounds a single read from the stream.
	ReadTimeout time.Duration
	// WriteTimeout bounds a single write to the stream.
	WriteTimeout time.Duration
	// AckTimeout bounds the wait for a subscribe/unsubscribe ack.
	AckTimeout time.Duration
	// Logger receives channel lifecycle logs.
	Logger logrus.FieldLogger
}

// DefaultWSConfig returns the default channel configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 60 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		AckTimeout:        30 * time.Second,
	}
}

// Stream buffer sizes. Sends block rather than drop, the buffers
// absorb bursts.
const (
	txStreamBuffer    = 4096
	blockStreamBuffer = 64
)

// AddressTx is one address notification from the stream: a
// transaction touching a subscribed address. Amount sums the outputs
// paying the address, in base units.
type AddressTx struct {
	Address       string
	Txid          string
	Amount        int64
	Confirmations int
}

// BlockTick is a new-block notification from the stream.
type BlockTick struct {
	Height int64
	Hash   string
}

// Channel is a long-lived Blockbook WebSocket subscription stream for
// one coin. It reconnects forever with capped exponential backoff and
// signals each recovery on Reconnected so the owner can replay its
// subscription set; the channel itself does not remember what was
// subscribed.
type Channel struct {
	endpoint string
	config   WSConfig
	log      logrus.FieldLogger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	connected atomic.Bool

	// pending maps request id to the ack waiter.
	pending   map[string]chan wsAckData
	pendingMu sync.Mutex

	txs         chan AddressTx
	blocks      chan BlockTick
	reconnected chan struct{}

	done chan struct{}
	wg   sync.WaitGroup
}

// NewChannel connects the subscription stream. The endpoint comes
// from WSEndpoint and already embeds the credential.
func NewChannel(ctx context.Context, endpoint string, config *WSConfig) (*Channel, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	c := &Channel{
		endpoint:    endpoint,
		config:      cfg,
		log:         cfg.Logger,
		pending:     make(map[string]chan wsAckData),
		txs:         make(chan AddressTx, txStreamBuffer),
		blocks:      make(chan BlockTick, blockStreamBuffer),
		reconnected: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes the WebSocket connection.
func (c *Channel) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return &domain.UpstreamError{Op: "connect", Transient: true, Err: err}
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.connected.Store(true)
	return nil
}

// Subscribe asks the upstream for notifications on one address and
// waits for the ack.
func (c *Channel) Subscribe(ctx context.Context, address string) error {
	return c.request(ctx, "sub_"+address, "subscribeAddresses", wsAddressesParams{Addresses: []string{address}})
}

// Unsubscribe stops notifications for one address and waits for the
// ack. When the stream is down the request fails transient; callers
// treat that as fire-and-forget.
func (c *Channel) Unsubscribe(ctx context.Context, address string) error {
	return c.request(ctx, "unsub_"+address, "unsubscribeAddresses", wsAddressesParams{Addresses: []string{address}})
}

// SubscribeBlocks asks the upstream for new-block notifications.
func (c *Channel) SubscribeBlocks(ctx context.Context) error {
	return c.request(ctx, "sub_newblock", "subscribeNewBlock", struct{}{})
}

// Transactions is the stream of address notifications.
func (c *Channel) Transactions() <-chan AddressTx {
	return c.txs
}

// Blocks is the stream of new-block notifications.
func (c *Channel) Blocks() <-chan BlockTick {
	return c.blocks
}

// Reconnected signals each successful reconnect. The owner replays
// its subscription set on every tick; signals coalesce.
func (c *Channel) Reconnected() <-chan struct{} {
	return c.reconnected
}

// Connected reports whether the stream currently holds a connection.
func (c *Channel) Connected() bool {
	return c.connected.Load()
}

// Close tears the stream down. Transactions and Blocks are closed
// once the loops have stopped.
func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.connected.Store(false)

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	c.wg.Wait()
	close(c.txs)
	close(c.blocks)
	return nil
}

// request writes one control message and waits for its ack.
func (c *Channel) request(ctx context.Context, id, method string, params interface{}) error {
	if c.closed.Load() {
		return &domain.UpstreamError{Op: method, Err: fmt.Errorf("channel closed")}
	}

	ack := make(chan wsAckData, 1)
	c.pendingMu.Lock()
	c.pending[id] = ack
	c.pendingMu.Unlock()

	drop := func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}

	if err := c.writeJSON(wsRequest{ID: id, Method: method, Params: params}); err != nil {
		drop()
		return &domain.UpstreamError{Op: method, Transient: true, Err: err}
	}

	select {
	case a, ok := <-ack:
		if !ok {
			return &domain.UpstreamError{Op: method, Err: fmt.Errorf("channel closed")}
		}
		if !a.Subscribed && method != "unsubscribeAddresses" {
			return &domain.UpstreamError{Op: method, Err: fmt.Errorf("upstream declined subscription")}
		}
		return nil
	case <-time.After(c.config.AckTimeout):
		drop()
		return &domain.UpstreamError{Op: method, Transient: true, Err: fmt.Errorf("ack timeout after %v", c.config.AckTimeout)}
	case <-ctx.Done():
		drop()
		return &domain.UpstreamError{Op: method, Transient: true, Err: ctx.Err()}
	case <-c.done:
		return &domain.UpstreamError{Op: method, Err: fmt.Errorf("channel closed")}
	}
}

// writeJSON writes one message under the connection lock.
func (c *Channel) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// readLoop owns the connection: it reads until failure, then runs the
// capped-backoff redial loop until the stream is back or the channel
// is closed.
func (c *Channel) readLoop() {
	defer c.wg.Done()

	delay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.config.MaxReconnectDelay {
				delay = c.config.MaxReconnectDelay
			}

			dialCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := c.connect(dialCtx)
			cancel()
			if err != nil {
				c.log.WithError(err).Warn("stream reconnect failed")
				continue
			}

			delay = c.config.ReconnectDelay
			c.log.Info("stream reconnected")
			select {
			case c.reconnected <- struct{}{}:
			default:
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.log.WithError(err).Warn("stream read failed")
			c.connected.Store(false)
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()
			continue
		}

		c.handleMessage(message)
	}
}

// handleMessage dispatches one incoming frame: acks to their waiters,
// notifications to the streams.
func (c *Channel) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.log.WithError(err).Debug("unparseable stream frame")
		return
	}

	if env.ID != "" {
		c.pendingMu.Lock()
		ch, ok := c.pending[env.ID]
		if ok {
			delete(c.pending, env.ID)
		}
		c.pendingMu.Unlock()

		if ok {
			var ack wsAckData
			if env.Data != nil {
				_ = json.Unmarshal(env.Data, &ack)
			}
			ch <- ack
			return
		}
	}

	switch env.Method {
	case "subscribeAddresses":
		c.handleAddressTx(env.Data)
	case "subscribeNewBlock":
		c.handleBlock(env.Data)
	}
}

// handleAddressTx parses an address notification and forwards it.
func (c *Channel) handleAddressTx(data json.RawMessage) {
	var payload wsAddressData
	if err := json.Unmarshal(data, &payload); err != nil || payload.Address == "" || payload.Tx == nil {
		return
	}

	// Sum the outputs paying the notified address. Values are base
	// unit strings; unparseable outputs are skipped.
	var amount int64
	for _, vout := range payload.Tx.Vout {
		for _, addr := range vout.Addresses {
			if addr == payload.Address {
				if v, err := strconv.ParseInt(vout.Value, 10, 64); err == nil {
					amount += v
				}
				break
			}
		}
	}

	event := AddressTx{
		Address:       payload.Address,
		Txid:          payload.Tx.Txid,
		Amount:        amount,
		Confirmations: payload.Tx.Confirmations,
	}

	select {
	case c.txs <- event:
	case <-c.done:
	}
}

// handleBlock parses a new-block notification and forwards it.
func (c *Channel) handleBlock(data json.RawMessage) {
	var payload wsBlockData
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	select {
	case c.blocks <- BlockTick{Height: payload.Height, Hash: payload.Hash}:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Channel) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Reader notices the dead connection and redials.
					c.log.WithError(err).Debug("ping failed")
				}
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type wsAddressesParams struct {
	Addresses []string `json:"addresses"`
}

type wsEnvelope struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data"`
}

type wsAckData struct {
	Subscribed bool `json:"subscribed"`
}

type wsAddressData struct {
	Address string `json:"address"`
	Tx      *wsTx  `json:"tx"`
}

type wsTx struct {
	Txid          string     `json:"txid"`
	Confirmations int        `json:"confirmations"`
	Vout          []wsTxVout `json:"vout"`
}

type wsTxVout struct {
	Value     string   `json:"value"`
	Addresses []string `json:"addresses"`
}

type wsBlockData struct {
	Height int64  `json:"height"`
	Hash   string `json:"hash"`
}
