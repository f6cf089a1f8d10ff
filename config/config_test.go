package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ProviderYahoo, cfg.Provider.Name)
	assert.Equal(t, 5, cfg.Provider.LookbackPeriods)
	assert.Equal(t, 15*time.Second, cfg.Provider.FetchTimeout)
	assert.Equal(t, "https://query1.finance.yahoo.com", cfg.API.YahooApi.Url)
	assert.Equal(t, "US", cfg.API.EodhdApi.Exchange)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.QuotesExpiration)
	assert.Equal(t, "USD", cfg.Display.Currency)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PROVIDER_NAME", "eodhd")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("EODHD_API_KEY", "secret")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REFRESH_JOB_INTERVAL", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ProviderEodhd, cfg.Provider.Name)
	assert.Equal(t, 3*time.Second, cfg.Provider.FetchTimeout)
	assert.Equal(t, "secret", cfg.API.EodhdApi.Token)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, time.Minute, cfg.Jobs.RefreshInterval)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_LogValueMasksSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.API.EodhdApi.Token = "eodhd-token"
	cfg.Redis.Password = "redis-pass"
	cfg.Redis.Host = "cache.local"

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("config", slog.Any("cfg", cfg))

	out := buf.String()
	assert.NotContains(t, out, "eodhd-token")
	assert.NotContains(t, out, "redis-pass")
	assert.Contains(t, out, redacted)
	assert.Contains(t, out, "cache.local")

	assert.Equal(t, "eodhd-token", cfg.API.EodhdApi.Token)
	assert.Equal(t, "redis-pass", cfg.Redis.Password)
}

func TestConfig_LogValueLeavesEmptySecrets(t *testing.T) {
	v := Config{}.LogValue().Any().(redactedConfig)
	assert.Empty(t, v.API.EodhdApi.Token)
	assert.Empty(t, v.Redis.Password)
}
