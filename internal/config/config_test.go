package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: memento
  user: memento
  password: memento
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 20, cfg.Database.MaxConns)
	assert.Equal(t, "rekognition", cfg.Recognition.Backend)
	assert.Equal(t, "memento_users", cfg.Recognition.DefaultCollection)
	assert.Equal(t, "memento_event_", cfg.Recognition.CollectionPrefix)
	assert.Equal(t, 80.0, cfg.Recognition.MatchThreshold)
	assert.Equal(t, 5, cfg.Recognition.MaxFaces)
	assert.Equal(t, 10*time.Second, cfg.Recognition.CallTimeout)
	assert.Equal(t, 20, cfg.Reconciler.WindowMinutes)
	assert.Equal(t, 5*time.Minute, cfg.Reconciler.Interval)
	assert.False(t, cfg.Reconciler.EvictOnRevoke)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  api_key: secret
recognition:
  backend: local
  embedder_url: http://embedder:8090
  match_threshold: 92.5
reconciler:
  window_minutes: 45
  evict_on_revoke: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.Equal(t, "local", cfg.Recognition.Backend)
	assert.Equal(t, "http://embedder:8090", cfg.Recognition.EmbedderURL)
	assert.Equal(t, 92.5, cfg.Recognition.MatchThreshold)
	assert.Equal(t, 45, cfg.Reconciler.WindowMinutes)
	assert.True(t, cfg.Reconciler.EvictOnRevoke)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MEMENTO_SERVER_PORT", "7070")
	t.Setenv("MEMENTO_API_KEY", "env-key")
	t.Setenv("MEMENTO_DB_HOST", "db.internal")
	t.Setenv("MEMENTO_RECOGNITION_BACKEND", "local")
	t.Setenv("MEMENTO_MATCH_THRESHOLD", "70")
	t.Setenv("MEMENTO_RECONCILE_WINDOW_MINUTES", "30")
	t.Setenv("MEMENTO_EVICT_ON_REVOKE", "true")

	path := writeConfig(t, `
server:
  port: 9090
database:
  host: localhost
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env-key", cfg.Server.APIKey)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "local", cfg.Recognition.Backend)
	assert.Equal(t, 70.0, cfg.Recognition.MatchThreshold)
	assert.Equal(t, 30, cfg.Reconciler.WindowMinutes)
	assert.True(t, cfg.Reconciler.EvictOnRevoke)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, Name: "memento", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@db:5433/memento?sslmode=disable", cfg.DSN())
}
