package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldkit/shieldkit/config"
)

func TestLoader_UsesDefaultsWhenNoFileOrEnv(t *testing.T) {
	cfg, err := config.NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 100, cfg.RateLimit.Limit)
}

func TestLoader_YAMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rate_limit:
  limit: 50
  algorithm: token_bucket
`), 0o644))

	cfg, err := config.NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.RateLimit.Limit)
	assert.Equal(t, "token_bucket", cfg.RateLimit.Algorithm)
}

func TestLoader_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.RateLimit.Limit)
}

func TestLoader_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("TESTPREFIX_RATE_LIMIT_LIMIT", "7")
	t.Setenv("TESTPREFIX_BREAKER_FAILURE_THRESHOLD", "9")

	cfg, err := config.NewLoader().WithEnvPrefix("TESTPREFIX").Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RateLimit.Limit)
	assert.Equal(t, 9, cfg.Breaker.FailureThreshold)
}

func TestLoader_EnvOverridesDuration(t *testing.T) {
	t.Setenv("TESTPREFIX2_RATE_LIMIT_WINDOW", "45s")

	cfg, err := config.NewLoader().WithEnvPrefix("TESTPREFIX2").Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.RateLimit.Window)
}

func TestLoader_RunsRegisteredValidators(t *testing.T) {
	_, err := config.NewLoader().WithValidator(func(c *config.Config) error {
		return assertAlwaysFails()
	}).Load()
	require.Error(t, err)
}

func assertAlwaysFails() error {
	return os.ErrInvalid
}

func TestConfig_ValidateCatchesOutOfRangeValues(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Breaker.FailureRateThresh = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failure_rate_threshold")
}

func TestConfig_ValidateAcceptsDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.NoError(t, cfg.Validate())
}
