package client

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Default configuration values.
const (
	// DefaultAPIURL is the default enhancement service URL.
	DefaultAPIURL = "https://api.catalogboost.dev"

	// DefaultTimeout is the HTTP timeout for synchronous job calls.
	DefaultTimeout = 60 * time.Second

	// EnvAPIURL is the environment variable name for the API URL.
	EnvAPIURL = "CATALOGBOOST_API_URL"

	// EnvAPIKey is the environment variable name for the API key.
	EnvAPIKey = "CATALOGBOOST_API_KEY"

	// EnvTimeout is the environment variable name for the timeout duration.
	EnvTimeout = "CATALOGBOOST_TIMEOUT"
)

// Supported URL schemes.
const (
	schemeHTTP  = "http://"
	schemeHTTPS = "https://"
)

// Config holds the client configuration for the remote enhancement
// service: the endpoint URL, the bearer API key, and the timeout applied
// to synchronous job-lifecycle calls. Streaming calls are governed by
// context cancellation instead of a fixed timeout.
type Config struct {
	// APIURL is the base URL of the enhancement service. Must include the
	// scheme (http:// or https://).
	APIURL string

	// APIKey is the bearer token sent on every request.
	APIKey string

	// Timeout is the maximum duration for synchronous HTTP requests.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible default values. The API
// key has no default and must be supplied.
func DefaultConfig() Config {
	return Config{
		APIURL:  DefaultAPIURL,
		Timeout: DefaultTimeout,
	}
}

// LoadConfig loads configuration from environment variables, falling
// back to defaults.
//
// Environment variables:
//   - CATALOGBOOST_API_URL: service URL (optional)
//   - CATALOGBOOST_API_KEY: bearer API key (required)
//   - CATALOGBOOST_TIMEOUT: request timeout as a duration string (optional)
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if apiURL := os.Getenv(EnvAPIURL); apiURL != "" {
		cfg.APIURL = apiURL
	}
	cfg.APIKey = os.Getenv(EnvAPIKey)

	if timeoutStr, ok := os.LookupEnv(EnvTimeout); ok {
		if timeoutStr == "" {
			return nil, fmt.Errorf("environment variable %s is set but empty: timeout cannot be empty", EnvTimeout)
		}

		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout duration in %s: %w", EnvTimeout, err)
		}
		if timeout <= 0 {
			return nil, fmt.Errorf("invalid timeout value in %s: timeout must be positive, got %v", EnvTimeout, timeout)
		}
		cfg.Timeout = timeout
	}

	return &cfg, nil
}

// Validate validates the configuration and returns an error if any field
// is invalid.
//
// Validation rules:
//   - APIURL must not be empty and must start with http:// or https://
//   - APIKey must not be empty
//   - Timeout must be positive
func (c Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("invalid configuration: API URL cannot be empty")
	}
	if !strings.HasPrefix(c.APIURL, schemeHTTP) && !strings.HasPrefix(c.APIURL, schemeHTTPS) {
		return fmt.Errorf("invalid configuration: API URL must have http:// or https:// scheme, got %q", c.APIURL)
	}
	if c.APIKey == "" {
		return errors.New("invalid configuration: API key cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid configuration: timeout must be positive, got %v", c.Timeout)
	}
	return nil
}
