package clamd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	cmdVersion      = "VERSION"
	cmdPing         = "PING"
	cmdScan         = "SCAN"
	cmdMultiScan    = "MULTISCAN"
	cmdContScan     = "CONTSCAN"
	cmdAllMatchScan = "ALLMATCHSCAN"
	cmdInstream     = "INSTREAM"
	cmdStats        = "STATS"
	cmdReload       = "RELOAD"
	cmdShutdown     = "SHUTDOWN"
)

// Client talks to clamd over TCP. Every operation opens its own connection,
// sends one command and reads the reply until clamd closes the connection.
// It is safe for concurrent use from multiple goroutines.
type Client struct {
	host          string
	port          int
	chunkSize     int
	maxStreamSize int64
	timeout       time.Duration
	dialer        Dialer
	logger        logrus.FieldLogger
	strict        bool
}

// NewClient creates a clamd client for the daemon at host, e.g. "localhost".
// The port defaults to 3310 and can be changed with WithPort.
func NewClient(host string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(host) == "" {
		return nil, NewValidationError("host is required", nil)
	}

	c := &Client{
		host:          host,
		port:          DefaultPort,
		chunkSize:     DefaultChunkSize,
		maxStreamSize: DefaultMaxStreamSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.port <= 0 || c.port > 65535 {
		return nil, NewValidationError(fmt.Sprintf("invalid port: %d", c.port), nil)
	}
	if c.dialer == nil {
		c.dialer = &net.Dialer{}
	}
	if c.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.logger = l
	}

	return c, nil
}

// Address returns the host:port the client connects to.
func (c *Client) Address() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Version returns the clamd version string, e.g. "ClamAV 1.4.1/27400/...".
func (c *Client) Version(ctx context.Context) (string, error) {
	return c.execute(ctx, cmdVersion, nil)
}

// Ping sends PING and reports whether clamd answered PONG.
// Transport failures are returned as errors; use TryPing to get false instead.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	reply, err := c.execute(ctx, cmdPing, nil)
	if err != nil {
		return false, err
	}
	return strings.ToLower(reply) == "pong", nil
}

// TryPing is like Ping but reports any failure as false.
func (c *Client) TryPing(ctx context.Context) bool {
	ok, err := c.Ping(ctx)
	return err == nil && ok
}

// ScanPath scans a file or directory on the clamd host.
func (c *Client) ScanPath(ctx context.Context, path string) (*ScanResult, error) {
	return c.scanPath(ctx, cmdScan, path)
}

// MultiScanPath scans a file or directory on the clamd host using multiple
// daemon threads.
func (c *Client) MultiScanPath(ctx context.Context, path string) (*ScanResult, error) {
	return c.scanPath(ctx, cmdMultiScan, path)
}

// ContScanPath scans a file or directory on the clamd host without stopping
// at the first infected file.
func (c *Client) ContScanPath(ctx context.Context, path string) (*ScanResult, error) {
	return c.scanPath(ctx, cmdContScan, path)
}

// AllMatchScanPath scans a file or directory on the clamd host and reports
// every matching signature, not only the first one per file.
func (c *Client) AllMatchScanPath(ctx context.Context, path string) (*ScanResult, error) {
	return c.scanPath(ctx, cmdAllMatchScan, path)
}

// ScanBytes uploads data with INSTREAM and scans it.
func (c *Client) ScanBytes(ctx context.Context, data []byte) (*ScanResult, error) {
	return c.ScanReader(ctx, bytes.NewReader(data))
}

// ScanReader uploads the content of r with INSTREAM and scans it.
// Streams chunks without buffering the entire content in memory.
func (c *Client) ScanReader(ctx context.Context, r io.Reader) (*ScanResult, error) {
	return c.scan(ctx, cmdInstream, func(w io.Writer) error {
		return writeStream(w, r, c.chunkSize, c.maxStreamSize)
	})
}

// ScanFilePath reads a local file and scans its content with INSTREAM.
func (c *Client) ScanFilePath(ctx context.Context, filePath string) (*ScanResult, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("failed to open file: %s", filePath), err)
	}
	defer f.Close()

	return c.ScanReader(ctx, f)
}

// Stats returns the raw STATS report of the daemon.
func (c *Client) Stats(ctx context.Context) (string, error) {
	return c.execute(ctx, cmdStats, nil)
}

// Reload asks clamd to reload its signature databases.
func (c *Client) Reload(ctx context.Context) error {
	reply, err := c.execute(ctx, cmdReload, nil)
	if err != nil {
		return err
	}
	if reply != "RELOADING" {
		return NewServiceError(fmt.Sprintf("unexpected reply to %s: %q", cmdReload, reply), reply)
	}
	return nil
}

// Shutdown asks clamd to terminate in an orderly fashion. The reply, if any, is discarded.
func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.execute(ctx, cmdShutdown, nil)
	return err
}

func (c *Client) scanPath(ctx context.Context, command, path string) (*ScanResult, error) {
	if path == "" {
		return nil, NewValidationError("path is required", nil)
	}
	if strings.IndexByte(path, 0) >= 0 {
		return nil, NewValidationError(fmt.Sprintf("path contains a NUL byte: %q", path), nil)
	}
	return c.scan(ctx, command+" "+path, nil)
}

// scan executes command and classifies the reply.
func (c *Client) scan(ctx context.Context, command string, upload func(io.Writer) error) (*ScanResult, error) {
	raw, err := c.execute(ctx, command, upload)
	if err != nil {
		return nil, err
	}
	if c.strict {
		return ParseScanResultStrict(raw)
	}
	return ParseScanResult(raw), nil
}

// execute dials clamd, sends "z<command>\0", runs upload on the open
// connection if given, and returns everything clamd writes until it closes
// the connection, minus the trailing NUL.
func (c *Client) execute(ctx context.Context, command string, upload func(io.Writer) error) (string, error) {
	ctx, cancel := c.contextWithTimeout(ctx)
	defer cancel()

	addr := c.Address()
	log := c.logger.WithFields(logrus.Fields{
		"command": command,
		"address": addr,
	})
	start := time.Now()

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.WithError(err).Debug("clamd dial failed")
		return "", classifyTransportError(ctx, err)
	}
	defer conn.Close()

	// Unblock pending reads and writes as soon as ctx is done.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0)) //nolint:errcheck
	})
	defer stop()

	if _, err := io.WriteString(conn, "z"+command+"\x00"); err != nil {
		log.WithError(err).Debug("clamd command write failed")
		return "", classifyTransportError(ctx, err)
	}

	if upload != nil {
		if err := upload(conn); err != nil {
			log.WithError(err).Debug("clamd upload failed")
			var sdkErr *Error
			if errors.As(err, &sdkErr) {
				return "", err
			}
			return "", classifyTransportError(ctx, err)
		}
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		log.WithError(err).Debug("clamd reply read failed")
		return "", classifyTransportError(ctx, err)
	}
	if n := len(reply); n > 0 && reply[n-1] == 0 {
		reply = reply[:n-1]
	}

	log.WithFields(logrus.Fields{
		"reply_bytes": len(reply),
		"elapsed":     time.Since(start),
	}).Debug("clamd command completed")

	return string(reply), nil
}

// contextWithTimeout applies the default timeout if the context has no deadline.
func (c *Client) contextWithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// classifyTransportError maps Go network errors to SDK error types.
func classifyTransportError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	// The connection deadline is forced when ctx ends, so report ctx's reason.
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return NewTimeoutError("request timed out", ctxErr)
		}
		return NewTimeoutError("request canceled", ctxErr)
	}
	if errors.Is(err, context.Canceled) {
		return NewTimeoutError("request canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("request timed out", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError("request timed out", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NewConnectionError("DNS resolution failed", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return NewConnectionError("connection failed", err)
	}

	return NewConnectionError("request failed", err)
}
