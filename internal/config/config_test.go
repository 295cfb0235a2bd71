package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PULSE_API_KEY", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("EXTRACTION_SCHEMA_FIELDS", "")
	t.Setenv("EXTRACTION_CHUNKING", "")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 2*time.Second, cfg.PollInterval)
	require.Equal(t, 2, cfg.PollMaxRetries)
	require.Equal(t, 3*time.Second, cfg.PollRetryDelay)
	require.Equal(t, 5*time.Minute, cfg.MaxWait)
	require.Equal(t, "semantic", cfg.Chunking)
	require.Equal(t, DefaultSchemaFields, cfg.SchemaFields)
	require.Error(t, cfg.RequirePulse())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PULSE_API_KEY", "key")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("POLL_MAX_RETRIES", "4")
	t.Setenv("EXTRACTION_SCHEMA_FIELDS", "invoice_number, total ,")
	t.Setenv("EXTRACTION_CHUNKING", "recursive")

	cfg, err := Load()
	require.NoError(t, err)

	require.NoError(t, cfg.RequirePulse())
	require.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	require.Equal(t, 4, cfg.PollMaxRetries)
	require.Equal(t, []string{"invoice_number", "total"}, cfg.SchemaFields)
	require.Equal(t, "recursive", cfg.Chunking)
}

func TestLoadRateLimitsAreIndependent(t *testing.T) {
	t.Setenv("PULSE_RATE_LIMIT", "5")
	t.Setenv("NYCKEL_RATE_LIMIT", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5.0, cfg.PulseRateLimit)
	require.Zero(t, cfg.NyckelRateLimit)

	t.Setenv("NYCKEL_RATE_LIMIT", "1.5")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, 1.5, cfg.NyckelRateLimit)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("duration", func(t *testing.T) {
		t.Setenv("POLL_INTERVAL", "soon")
		_, err := Load()
		require.ErrorContains(t, err, "POLL_INTERVAL")
	})

	t.Run("chunking", func(t *testing.T) {
		t.Setenv("EXTRACTION_CHUNKING", "paragraph")
		_, err := Load()
		require.ErrorContains(t, err, "EXTRACTION_CHUNKING")
	})

	t.Run("retries", func(t *testing.T) {
		t.Setenv("POLL_MAX_RETRIES", "-1")
		_, err := Load()
		require.Error(t, err)
	})
}
