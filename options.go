package clamd

import (
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultPort is the port clamd listens on when TCPSocket is not configured otherwise.
	DefaultPort = 3310
	// DefaultChunkSize is the INSTREAM chunk size (128KB).
	DefaultChunkSize = 128 * 1024
	// DefaultMaxStreamSize matches clamd's default StreamMaxLength (25MB).
	DefaultMaxStreamSize = 25 * 1024 * 1024
)

// Dialer opens the TCP connection to clamd. *net.Dialer and the dialers of
// golang.org/x/net/proxy satisfy it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ClientOption configures the clamd client.
type ClientOption func(*Client)

// WithPort sets the clamd TCP port (default: 3310).
func WithPort(port int) ClientOption {
	return func(c *Client) {
		c.port = port
	}
}

// WithChunkSize sets the INSTREAM chunk size (default: 128KB).
// Non-positive values are ignored.
func WithChunkSize(size int) ClientOption {
	return func(c *Client) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithMaxStreamSize sets the maximum number of bytes sent with INSTREAM
// (default: 25MB). It should not exceed the daemon's StreamMaxLength.
// Non-positive values are ignored.
func WithMaxStreamSize(size int64) ClientOption {
	return func(c *Client) {
		if size > 0 {
			c.maxStreamSize = size
		}
	}
}

// WithTimeout sets a timeout applied to every operation whose context has no deadline.
// If a context with a deadline is provided to a method, that deadline takes precedence.
// Non-positive durations are ignored (no-op).
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDialer sets the dialer used to reach clamd, e.g. a SOCKS5 proxy dialer.
func WithDialer(d Dialer) ClientOption {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithLogger sets the logger used for per-command debug output.
// By default the client logs nothing.
func WithLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStrictResponses makes scan operations fail with an unknown response
// error instead of returning a StatusUnknown result.
func WithStrictResponses() ClientOption {
	return func(c *Client) {
		c.strict = true
	}
}
