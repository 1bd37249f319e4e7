package common

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_URL", "postgres://localhost/receipts")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("S3_BUCKET", "receipts")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/receipts", cfg.Database.URL)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, ":9090", cfg.Server.GRPCAddr)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, int64(10<<20), cfg.Receipts.MaxImageBytes)
	assert.Equal(t, 60*time.Second, cfg.Receipts.ExtractTimeout)
	assert.Equal(t, "NOTIFICATIONS", cfg.NATS.Stream)
	assert.Equal(t, 4, cfg.Notify.Workers)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("EXTRACT_TIMEOUT", "5s")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("OPENAI_TEMPERATURE", "0.2")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Receipts.ExtractTimeout)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-6)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: "postgres", URL: "postgres://x"},
			Server:   ServerConfig{HTTPAddr: ":8080", GRPCAddr: ":9090"},
			LLM:      LLMConfig{APIKey: "k"},
			Storage:  StorageConfig{Bucket: "b"},
			Auth:     AuthConfig{JWTSecret: "s"},
			Receipts: ReceiptsConfig{MaxImageBytes: 1, ExtractTimeout: time.Second},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing db url", func(c *Config) { c.Database.URL = "" }, "DB_URL"},
		{"sqlite needs no url", nil, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "DB_DRIVER"},
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }, "OPENAI_API_KEY"},
		{"missing bucket", func(c *Config) { c.Storage.Bucket = "" }, "S3_BUCKET"},
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, "JWT_SECRET"},
		{"zero timeout", func(c *Config) { c.Receipts.ExtractTimeout = 0 }, "EXTRACT_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			if tt.mutate == nil {
				c.Database = DatabaseConfig{Driver: "sqlite"}
				assert.NoError(t, c.Validate())
				return
			}
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}
