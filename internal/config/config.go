// Package config provides client configuration.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Default configuration values.
const (
	DefaultPageSize     = 0
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultAPIVersion   = "3.0.0"
	DefaultLogLevel     = "INFO"
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// ClientConfig holds the settings of a Datasync client.
type ClientConfig struct {
	endpoint     string
	pageSize     int
	timeout      time.Duration
	maxRetries   int
	initialDelay time.Duration
	apiVersion   string
	httpCacheDir string
	logLevel     string
	logFormat    LogFormat
}

// NewClientConfig creates a ClientConfig with defaults.
func NewClientConfig() ClientConfig {
	return ClientConfig{
		pageSize:     DefaultPageSize,
		timeout:      DefaultTimeout,
		maxRetries:   DefaultMaxRetries,
		initialDelay: DefaultInitialDelay,
		apiVersion:   DefaultAPIVersion,
		logLevel:     DefaultLogLevel,
		logFormat:    LogFormatPretty,
	}
}

// Endpoint returns the base URL of the service.
func (c ClientConfig) Endpoint() string { return c.endpoint }

// PageSize returns the preferred page size. Zero leaves it to the server.
func (c ClientConfig) PageSize() int { return c.pageSize }

// Timeout returns the per-request timeout.
func (c ClientConfig) Timeout() time.Duration { return c.timeout }

// MaxRetries returns the maximum retry count for a page request.
func (c ClientConfig) MaxRetries() int { return c.maxRetries }

// InitialDelay returns the delay before the first retry.
func (c ClientConfig) InitialDelay() time.Duration { return c.initialDelay }

// APIVersion returns the protocol version header value.
func (c ClientConfig) APIVersion() string { return c.apiVersion }

// HTTPCacheDir returns the response cache directory, or empty when caching
// is disabled.
func (c ClientConfig) HTTPCacheDir() string { return c.httpCacheDir }

// LogLevel returns the log verbosity level.
func (c ClientConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log output format.
func (c ClientConfig) LogFormat() LogFormat { return c.logFormat }

// Validate checks that the configuration can be used to reach a service.
func (c ClientConfig) Validate() error {
	if c.endpoint == "" {
		return fmt.Errorf("config: endpoint is required")
	}
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("config: invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: endpoint must use http or https, got %q", c.endpoint)
	}
	if c.pageSize < 0 {
		return fmt.Errorf("config: page size must be non-negative, got %d", c.pageSize)
	}
	if c.maxRetries < 0 {
		return fmt.Errorf("config: max retries must be non-negative, got %d", c.maxRetries)
	}
	return nil
}

// Option is a functional option for ClientConfig.
type Option func(*ClientConfig)

// WithEndpoint sets the service base URL.
func WithEndpoint(endpoint string) Option {
	return func(c *ClientConfig) { c.endpoint = endpoint }
}

// WithPageSize sets the preferred page size.
func WithPageSize(n int) Option {
	return func(c *ClientConfig) { c.pageSize = n }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *ClientConfig) { c.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) Option {
	return func(c *ClientConfig) { c.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) Option {
	return func(c *ClientConfig) { c.initialDelay = d }
}

// WithAPIVersion sets the protocol version header value.
func WithAPIVersion(v string) Option {
	return func(c *ClientConfig) { c.apiVersion = v }
}

// WithHTTPCacheDir enables the on-disk response cache.
func WithHTTPCacheDir(dir string) Option {
	return func(c *ClientConfig) { c.httpCacheDir = dir }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) Option {
	return func(c *ClientConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) Option {
	return func(c *ClientConfig) { c.logFormat = format }
}

// NewClientConfigWithOptions creates a ClientConfig with defaults and options
// applied in order.
func NewClientConfigWithOptions(opts ...Option) ClientConfig {
	cfg := NewClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Apply returns a copy of c with opts applied.
func (c ClientConfig) Apply(opts ...Option) ClientConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
