package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Defaults().Addr, cfg.Addr)
	assert.Equal(t, 5*time.Minute, cfg.ProfileCacheTTL)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphreview.yaml")
	contents := []byte("addr: \":9000\"\nredis_url: redis://cache:6379/1\nprofile_cache_ttl: 90s\n")
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	t.Setenv("REDIS_URL", "redis://override:6379/2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "redis://override:6379/2", cfg.RedisURL)
	assert.Equal(t, 90*time.Second, cfg.ProfileCacheTTL)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateReportsFields(t *testing.T) {
	cfg := Defaults()
	cfg.JWTSecret = " "
	cfg.RedisURL = "not a url"
	cfg.SMTPHost = "smtp.example.com"

	err := cfg.Validate()

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, "jwt_secret")
	assert.Contains(t, fields, "redis_url")
	assert.Contains(t, fields, "smtp_from")
}
