package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
	"gopkg.in/yaml.v3"

	clamd "github.com/DevHatRo/clamd-sdk-go"
)

// Config holds the settings of one clamdscan run. It is loaded from a YAML
// file and then overridden by command-line flags.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// ChunkSize and MaxStreamSize accept human sizes such as "128KiB" or "25MiB".
	ChunkSize     string        `yaml:"chunk_size"`
	MaxStreamSize string        `yaml:"max_stream_size"`
	Timeout       time.Duration `yaml:"timeout"`
	// Proxy is an optional SOCKS5 proxy URL, e.g. "socks5://bastion:1080".
	Proxy       string `yaml:"proxy"`
	LogLevel    string `yaml:"log_level"`
	Concurrency int    `yaml:"concurrency"`
}

// DefaultConfig returns the settings used when neither a file nor flags set them.
func DefaultConfig() *Config {
	return &Config{
		Host:          "localhost",
		Port:          clamd.DefaultPort,
		ChunkSize:     "128KiB",
		MaxStreamSize: "25MiB",
		LogLevel:      "warning",
		Concurrency:   4,
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
// Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values that cannot be caught by the YAML decoder.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be greater than 0, got %d", c.Concurrency)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if _, err := c.chunkSizeBytes(); err != nil {
		return err
	}
	if _, err := c.maxStreamSizeBytes(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) chunkSizeBytes() (int, error) {
	n, err := humanize.ParseBytes(c.ChunkSize)
	if err != nil {
		return 0, fmt.Errorf("chunk_size: %w", err)
	}
	// Chunk lengths travel as uint32.
	if n == 0 || n > 1<<31-1 {
		return 0, fmt.Errorf("chunk_size %q out of range", c.ChunkSize)
	}
	return int(n), nil
}

func (c *Config) maxStreamSizeBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.MaxStreamSize)
	if err != nil {
		return 0, fmt.Errorf("max_stream_size: %w", err)
	}
	if n == 0 || n > 1<<62 {
		return 0, fmt.Errorf("max_stream_size %q out of range", c.MaxStreamSize)
	}
	return int64(n), nil
}

// ClientOptions translates the config into clamd client options.
func (c *Config) ClientOptions(logger logrus.FieldLogger) ([]clamd.ClientOption, error) {
	chunkSize, err := c.chunkSizeBytes()
	if err != nil {
		return nil, err
	}
	maxStreamSize, err := c.maxStreamSizeBytes()
	if err != nil {
		return nil, err
	}

	opts := []clamd.ClientOption{
		clamd.WithPort(c.Port),
		clamd.WithChunkSize(chunkSize),
		clamd.WithMaxStreamSize(maxStreamSize),
		clamd.WithTimeout(c.Timeout),
		clamd.WithLogger(logger),
	}

	if c.Proxy != "" {
		dialer, err := proxyDialer(c.Proxy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, clamd.WithDialer(dialer))
	}
	return opts, nil
}

// proxyDialer builds a dialer that reaches clamd through the proxy at rawURL.
func proxyDialer(rawURL string) (clamd.Dialer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("proxy: %w", err)
	}
	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("proxy: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("proxy: scheme %q does not support cancellation", u.Scheme)
	}
	return cd, nil
}
