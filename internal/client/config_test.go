package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "valid https",
			config: Config{APIURL: "https://api.example.com", APIKey: "k", Timeout: time.Second},
		},
		{
			name:   "valid http",
			config: Config{APIURL: "http://localhost:8080", APIKey: "k", Timeout: time.Second},
		},
		{
			name:    "empty URL",
			config:  Config{APIKey: "k", Timeout: time.Second},
			wantErr: "API URL cannot be empty",
		},
		{
			name:    "missing scheme",
			config:  Config{APIURL: "api.example.com", APIKey: "k", Timeout: time.Second},
			wantErr: "must have http:// or https:// scheme",
		},
		{
			name:    "empty key",
			config:  Config{APIURL: "https://api.example.com", Timeout: time.Second},
			wantErr: "API key cannot be empty",
		},
		{
			name:    "zero timeout",
			config:  Config{APIURL: "https://api.example.com", APIKey: "k"},
			wantErr: "timeout must be positive",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv(EnvAPIURL, "")
		t.Setenv(EnvAPIKey, "secret")
		// Ensure the timeout variable is absent rather than empty.
		t.Setenv(EnvTimeout, "30s")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, DefaultAPIURL, cfg.APIURL)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.Equal(t, 30*time.Second, cfg.Timeout)
	})

	t.Run("custom URL", func(t *testing.T) {
		t.Setenv(EnvAPIURL, "https://staging.example.com")
		t.Setenv(EnvAPIKey, "secret")
		t.Setenv(EnvTimeout, "5s")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "https://staging.example.com", cfg.APIURL)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
	})

	t.Run("invalid timeout", func(t *testing.T) {
		t.Setenv(EnvAPIKey, "secret")
		t.Setenv(EnvTimeout, "not-a-duration")

		_, err := LoadConfig()
		require.Error(t, err)
	})

	t.Run("negative timeout", func(t *testing.T) {
		t.Setenv(EnvAPIKey, "secret")
		t.Setenv(EnvTimeout, "-5s")

		_, err := LoadConfig()
		require.Error(t, err)
	})
}
