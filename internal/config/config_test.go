package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 168*time.Hour, cfg.Analysis.Lookback)
	assert.Equal(t, 30*time.Minute, cfg.Analysis.SessionGap)
	assert.Equal(t, 60*time.Second, cfg.Analysis.BatchGap)
	assert.InDelta(t, 0.4, cfg.Analysis.LinkFollowThreshold, 1e-9)
	assert.Equal(t, 3*time.Second, cfg.Verify.Timeout)
	assert.False(t, cfg.Server.TrustProxy)
	assert.True(t, cfg.UsesFallbackSalt())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  upstream: http://content:3000
  trust_proxy: true
analysis:
  session_gap: 45m
kafka:
  brokers: [k1:9092, k2:9092]
`), 0o600))

	t.Setenv("GEO_ANALYSIS_BATCH_GAP", "30s")
	t.Setenv("LOG_SALT", "pepper")
	t.Setenv("DATABASE_URL", "postgres://localhost/geo")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://content:3000", cfg.Server.Upstream)
	assert.True(t, cfg.Server.TrustProxy)
	assert.Equal(t, 45*time.Minute, cfg.Analysis.SessionGap)
	assert.Equal(t, 30*time.Second, cfg.Analysis.BatchGap)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "pepper", cfg.Salt)
	assert.Equal(t, "postgres://localhost/geo", cfg.DatabaseURL)
	assert.False(t, cfg.UsesFallbackSalt())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("GEO_ANALYSIS_LINK_FOLLOW_THRESHOLD", "1.5")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link_follow_threshold")

	t.Setenv("GEO_ANALYSIS_LINK_FOLLOW_THRESHOLD", "0.4")
	t.Setenv("GEO_ANALYSIS_SESSION_GAP", "0s")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_gap")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
