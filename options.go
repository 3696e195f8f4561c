package datasync

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/helixml/datasync/application/paging"
	"github.com/helixml/datasync/internal/config"
)

// TransportFactory builds the page transport for a table. It replaces the
// default HTTP transport, for example to serve tables from memory.
type TransportFactory func(table string) (paging.Transport, error)

// clientConfig holds configuration for Client construction.
type clientConfig struct {
	settings   config.ClientConfig
	httpClient *http.Client
	factory    TransportFactory
	logger     *slog.Logger
}

func newClientConfig() *clientConfig {
	return &clientConfig{settings: config.NewClientConfig()}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithConfig replaces all settings with cfg. Options applied after it still
// take effect.
func WithConfig(cfg config.ClientConfig) Option {
	return func(c *clientConfig) { c.settings = cfg }
}

// WithPageSize sets the preferred number of records per page request.
func WithPageSize(n int) Option {
	return func(c *clientConfig) { c.settings = c.settings.Apply(config.WithPageSize(n)) }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.settings = c.settings.Apply(config.WithTimeout(d)) }
}

// WithMaxRetries sets how many times a failed page request is retried.
func WithMaxRetries(n int) Option {
	return func(c *clientConfig) { c.settings = c.settings.Apply(config.WithMaxRetries(n)) }
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(c *clientConfig) { c.settings = c.settings.Apply(config.WithInitialDelay(d)) }
}

// WithAPIVersion sets the ZUMO-API-VERSION header value.
func WithAPIVersion(v string) Option {
	return func(c *clientConfig) { c.settings = c.settings.Apply(config.WithAPIVersion(v)) }
}

// WithHTTPCacheDir caches successful GET responses under dir.
func WithHTTPCacheDir(dir string) Option {
	return func(c *clientConfig) { c.settings = c.settings.Apply(config.WithHTTPCacheDir(dir)) }
}

// WithHTTPClient sets the HTTP client. Its timeout takes precedence over
// WithTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithTransportFactory replaces the HTTP transport.
func WithTransportFactory(f TransportFactory) Option {
	return func(c *clientConfig) { c.factory = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}
