package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFailsWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("EXPIRY_TIME", "")
	t.Setenv("PORT", "")

	res, err := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.NoError(t, err)

	assert.Equal(t, "test-secret", res.Config.Auth.Secret)
	assert.Equal(t, time.Hour, res.Config.Auth.TokenExpiry)
	assert.Equal(t, 24*time.Hour, res.Config.Auth.CookieMaxAge)
	assert.Equal(t, 8080, res.Config.Server.Port)
	assert.False(t, res.Config.IsProduction())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 9000\n  mode: development\nauth:\n  token_expiry: 2h\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	t.Setenv("JWT_SECRET", "s")
	t.Setenv("APP_ENV", "production")
	t.Setenv("EXPIRY_TIME", "30m")
	t.Setenv("PORT", "")

	res, err := NewLoader().WithDotEnv(false).WithPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, res.Config.Server.Port)
	assert.True(t, res.Config.IsProduction())
	assert.Equal(t, 30*time.Minute, res.Config.Auth.TokenExpiry)
	assert.Equal(t, path, res.Path)
}
