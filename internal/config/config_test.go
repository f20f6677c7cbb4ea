package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/taskqueue/internal/domain"
)

// clearEnvVars unsets every var Config reads, restoring the prior value
// (if any) when t ends, so tests that set custom values don't leak into
// later tests sharing the process environment.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "STORE_PATH", "LEASE_HORIZON", "MAX_CONCURRENCY",
		"POLL_INTERVAL", "BATCH_SIZE", "DEFAULT_RESULT_TIMEOUT",
		"ADMIN_ADDR", "ADMIN_USERNAME", "ADMIN_PASSWORD_HASH",
		"ADMIN_RATE_LIMIT_RPS", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_SERVICE_NAME",
	} {
		if v, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { _ = os.Setenv(key, v) })
		} else {
			t.Cleanup(func() { _ = os.Unsetenv(key) })
		}
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestConfig_Load_DefaultValues(t *testing.T) {
	clearEnvVars(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, "taskqueue.db", cfg.StorePath)
	assert.Equal(t, time.Duration(0), cfg.LeaseHorizon)
	assert.Equal(t, 1, cfg.MaxConcurrency)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, time.Duration(0), cfg.DefaultResultTimeout)
	assert.Equal(t, ":9090", cfg.AdminAddr)
	assert.Equal(t, "", cfg.AdminUsername)
	assert.Equal(t, "", cfg.AdminPasswordHash)
	assert.Equal(t, 20, cfg.AdminRateLimitRPS)
	assert.Equal(t, "", cfg.OTLPEndpoint)
	assert.Equal(t, "taskqueue-worker", cfg.OTELServiceName)
}

func TestConfig_Load_CustomValues(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORE_PATH", ":memory:")
	t.Setenv("LEASE_HORIZON", "5m")
	t.Setenv("MAX_CONCURRENCY", "8")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("BATCH_SIZE", "50")
	t.Setenv("DEFAULT_RESULT_TIMEOUT", "30s")
	t.Setenv("ADMIN_ADDR", ":8081")
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD_HASH", "argon2id$3$65536$2$salt$hash")
	t.Setenv("ADMIN_RATE_LIMIT_RPS", "5")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://otel:4317")
	t.Setenv("OTEL_SERVICE_NAME", "taskqueue-worker-prod")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.AppEnv)
	assert.Equal(t, ":memory:", cfg.StorePath)
	assert.Equal(t, 5*time.Minute, cfg.LeaseHorizon)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.DefaultResultTimeout)
	assert.Equal(t, ":8081", cfg.AdminAddr)
	assert.Equal(t, 5, cfg.AdminRateLimitRPS)
	assert.True(t, cfg.IsProd())
	assert.False(t, cfg.IsDev())
	assert.True(t, cfg.AdminEnabled())
}

func TestConfig_Validate_RejectsNonPositiveTunables(t *testing.T) {
	clearEnvVars(t)
	base, err := Load()
	require.NoError(t, err)

	cfg := base
	cfg.MaxConcurrency = 0
	err = Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	cfg = base
	cfg.PollInterval = 0
	require.Error(t, Validate(cfg))

	cfg = base
	cfg.BatchSize = -1
	require.Error(t, Validate(cfg))
}

func TestConfig_AdminEnabled_RequiresBothFields(t *testing.T) {
	cfg := Config{}
	assert.False(t, cfg.AdminEnabled())

	cfg.AdminUsername = "admin"
	assert.False(t, cfg.AdminEnabled())

	cfg.AdminPasswordHash = "argon2id$3$65536$2$salt$hash"
	assert.True(t, cfg.AdminEnabled())
}

func TestConfig_IsDev_IsProd_CaseInsensitive(t *testing.T) {
	assert.True(t, Config{AppEnv: "DEV"}.IsDev())
	assert.True(t, Config{AppEnv: "Prod"}.IsProd())
	assert.False(t, Config{AppEnv: "staging"}.IsDev())
	assert.False(t, Config{AppEnv: "staging"}.IsProd())
}

func TestConfig_LoadFile_MissingFileIsNotAnError(t *testing.T) {
	clearEnvVars(t)
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.AppEnv)
}

func TestConfig_LoadFile_OverlaysYAML(t *testing.T) {
	clearEnvVars(t)
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app_env: prod\nmax_concurrency: 16\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.AppEnv)
	assert.Equal(t, 16, cfg.MaxConcurrency)
}

func TestConfig_LoadFile_InvalidYAMLOverlayFails(t *testing.T) {
	clearEnvVars(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app_env: [not a scalar"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
}
