// Package nodeapi implements the three wire surfaces of the upstream
// node-proxy service: the Blockbook-style REST data API, the coin
// daemon JSON-RPC API, and the Blockbook WebSocket subscription
// stream. The shared API credential is sent as the api-key header
// (or, for the WebSocket, as a path segment) and never logged.
package nodeapi

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// apiKeyHeader carries the shared upstream credential.
const apiKeyHeader = "api-key"

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// maxResponseBytes bounds how much of an upstream body is read.
	maxResponseBytes = 10 << 20
)

// clientConfig holds the knobs shared by the REST and RPC clients.
type clientConfig struct {
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	log         logrus.FieldLogger
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		log:         logrus.StandardLogger(),
	}
}

// Option configures a BlockbookClient or RPCClient.
type Option func(*clientConfig)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for transient failures.
func WithMaxRetries(n int) Option {
	return func(c *clientConfig) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *clientConfig) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets the maximum retry delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *clientConfig) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.client = client
	}
}

// WithLogger sets the client logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *clientConfig) {
		c.log = log
	}
}

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
