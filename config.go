// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/joeshaw/envdecode"
)

// Default values used by [NewConfig].
const (
	DefaultServiceURL = "https://suggestions.dadata.ru/suggestions/api/4_1/rs"
	DefaultTimeout    = 3 * time.Second
	DefaultCacheSize  = 512
	DefaultCount      = 10
	Version           = "21.12.0"
)

// Config holds common configuration for suggestion instances.
//
// Pass this to [NewFactory] or [NewTransport] to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Dialer is used by the default HTTP client.
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// HTTPClient performs the round trips. When nil, [NewTransport]
	// builds one on top of an [*ObservedDialer] wrapping Dialer.
	HTTPClient *http.Client

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewConfig] to [DefaultSLogger].
	Logger SLogger

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// ServiceURL is the default service base URL for instances whose
	// options do not set one.
	ServiceURL string

	// Token is the default API token.
	Token string

	// Partner is the default X-Partner header value.
	Partner string

	// Timeout is the default per-request timeout.
	Timeout time.Duration

	// CacheSize bounds the number of queries each provider caches.
	CacheSize int

	// Version is sent in the X-Version header.
	Version string
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{Timeout: 10 * time.Second},
		ErrClassifier: DefaultErrClassifier,
		Logger:        DefaultSLogger(),
		TimeNow:       time.Now,
		ServiceURL:    DefaultServiceURL,
		Timeout:       DefaultTimeout,
		CacheSize:     DefaultCacheSize,
		Version:       Version,
	}
}

// envConfig lists the settings [NewConfigFromEnv] reads.
type envConfig struct {
	ServiceURL string        `env:"SUGGESTIONS_SERVICE_URL"`
	Token      string        `env:"SUGGESTIONS_TOKEN"`
	Partner    string        `env:"SUGGESTIONS_PARTNER"`
	Timeout    time.Duration `env:"SUGGESTIONS_TIMEOUT"`
	CacheSize  int           `env:"SUGGESTIONS_CACHE_SIZE"`
}

// NewConfigFromEnv is like [NewConfig] but overrides the service URL,
// token, partner, timeout and cache size with the SUGGESTIONS_*
// environment variables that are set.
func NewConfigFromEnv() (*Config, error) {
	var env envConfig
	err := envdecode.Decode(&env)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, err
	}
	cfg := NewConfig()
	if env.ServiceURL != "" {
		cfg.ServiceURL = env.ServiceURL
	}
	if env.Token != "" {
		cfg.Token = env.Token
	}
	if env.Partner != "" {
		cfg.Partner = env.Partner
	}
	if env.Timeout > 0 {
		cfg.Timeout = env.Timeout
	}
	if env.CacheSize > 0 {
		cfg.CacheSize = env.CacheSize
	}
	return cfg, nil
}
