package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("DASHSYNC_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPollInterval, cfg.PollInterval.Std())
	assert.Equal(t, DefaultDismissTTL, cfg.Dismissal.TTL.Std())
	assert.Equal(t, ModeTTL, cfg.Dismissal.Mode)
	assert.Equal(t, StoreSQLite, cfg.Dismissal.Store)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"server_url": "http://dash.local",
		"current_user": "alice",
		"poll_interval": "2s",
		"dismissal": {"mode": "server"},
		"databases": {"sqlite3": {"dsn": "state.db"}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://dash.local", cfg.ServerURL)
	assert.Equal(t, "alice", cfg.CurrentUser)
	assert.Equal(t, 2*time.Second, cfg.PollInterval.Std())
	assert.Equal(t, ModeServer, cfg.Dismissal.Mode)
	assert.Equal(t, filepath.Join(dir, "state.db"), cfg.Databases[StoreSQLite].DSN)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "server_url: http://dash.local\npoll_interval: 750ms\ndismissal:\n  mode: ttl\n  ttl: 48h\n  store: memory\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.PollInterval.Std())
	assert.Equal(t, 48*time.Hour, cfg.Dismissal.TTL.Std())
	assert.Equal(t, StoreMemory, cfg.Dismissal.Store)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DASHSYNC_CONFIG", "")
	t.Setenv("DASHSYNC_SERVER_URL", "http://override")
	t.Setenv("DASHSYNC_STORE", "redis")
	t.Setenv("DASHSYNC_DISMISS_MODE", "ttl")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://override", cfg.ServerURL)
	assert.Equal(t, StoreRedis, cfg.Dismissal.Store)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Dismissal.Mode = "hybrid" }},
		{"unknown store", func(c *Config) { c.Dismissal.Store = "cookie" }},
		{"zero interval", func(c *Config) { c.PollInterval = 0 }},
		{"zero ttl", func(c *Config) { c.Dismissal.TTL = 0 }},
		{"no server", func(c *Config) { c.ServerURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationAcceptsNanoseconds(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte("1500000000")))
	assert.Equal(t, 1500*time.Millisecond, d.Std())
	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))
}
