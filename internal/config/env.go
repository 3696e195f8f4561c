package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv.
const EnvPrefix = "DATASYNC"

// EnvConfig holds environment-based configuration.
// Field names map to environment variables with the DATASYNC_ prefix.
type EnvConfig struct {
	// Endpoint is the service base URL.
	// Env: DATASYNC_ENDPOINT
	Endpoint string `envconfig:"ENDPOINT"`

	// PageSize is the preferred number of records per page.
	// Env: DATASYNC_PAGE_SIZE (default: 0, server decides)
	PageSize int `envconfig:"PAGE_SIZE" default:"0"`

	// Timeout is the request timeout in seconds.
	// Env: DATASYNC_TIMEOUT (default: 30)
	Timeout float64 `envconfig:"TIMEOUT" default:"30"`

	// MaxRetries is the maximum number of retries per page request.
	// Env: DATASYNC_MAX_RETRIES (default: 3)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"3"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: DATASYNC_INITIAL_DELAY (default: 0.5)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"0.5"`

	// APIVersion is sent as the ZUMO-API-VERSION header.
	// Env: DATASYNC_API_VERSION (default: 3.0.0)
	APIVersion string `envconfig:"API_VERSION" default:"3.0.0"`

	// HTTPCacheDir enables caching GET responses to disk.
	// Env: DATASYNC_HTTP_CACHE_DIR
	HTTPCacheDir string `envconfig:"HTTP_CACHE_DIR"`

	// LogLevel is the log verbosity level.
	// Env: DATASYNC_LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: DATASYNC_LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
}

// LoadFromEnv loads configuration from DATASYNC_ environment variables.
func LoadFromEnv() (EnvConfig, error) {
	return LoadFromEnvWithPrefix(EnvPrefix)
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToClientConfig converts EnvConfig to ClientConfig.
func (e EnvConfig) ToClientConfig() ClientConfig {
	opts := []Option{
		WithPageSize(e.PageSize),
		WithTimeout(seconds(e.Timeout)),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(seconds(e.InitialDelay)),
		WithLogFormat(parseLogFormat(e.LogFormat)),
	}
	if e.Endpoint != "" {
		opts = append(opts, WithEndpoint(strings.TrimSpace(e.Endpoint)))
	}
	if e.APIVersion != "" {
		opts = append(opts, WithAPIVersion(e.APIVersion))
	}
	if e.HTTPCacheDir != "" {
		opts = append(opts, WithHTTPCacheDir(e.HTTPCacheDir))
	}
	if e.LogLevel != "" {
		opts = append(opts, WithLogLevel(e.LogLevel))
	}
	return NewClientConfigWithOptions(opts...)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
