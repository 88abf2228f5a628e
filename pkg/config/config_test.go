package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DEEPSEEK_API_KEY", "GOOGLE_APPLICATION_CREDENTIALS", "GOOGLE_CLOUD_PROJECT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".remindsync"), cfg.Store.Dir)
	assert.Equal(t, BackendAuto, cfg.Store.Backend)
	assert.Equal(t, 8*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "deepseek-chat", cfg.AI.Model)
	assert.Equal(t, time.Minute, cfg.Daemon.ResyncInterval)
	assert.Equal(t, ":8080", cfg.Fanout.ListenAddr)
	assert.Equal(t, "0 0 3 * * *", cfg.Fanout.SweepSchedule)
	assert.False(t, cfg.UseRemote())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  dir: /tmp/remindsync-test
remote:
  project_id: proj
  user_id: u1
ai:
  timeout: 3s
fanout:
  exclude_origin: false
`), 0o600))

	t.Setenv("REMINDSYNC_FANOUT__EXCLUDE_ORIGIN", "true")
	t.Setenv("REMINDSYNC_REMOTE__DEVICE_ID", "laptop")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/remindsync-test", cfg.Store.Dir)
	assert.Equal(t, 3*time.Second, cfg.AI.Timeout)
	assert.True(t, cfg.Fanout.ExcludeOrigin)
	assert.Equal(t, "laptop", cfg.Remote.DeviceID)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.True(t, cfg.UseRemote())
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMINDSYNC_LOG__LEVEL", "")
	os.Unsetenv("REMINDSYNC_LOG__LEVEL")

	require.NoError(t, os.WriteFile(".env", []byte("REMINDSYNC_LOG__LEVEL=debug\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFileIsIgnored(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:  StoreConfig{Dir: "/tmp/x", Backend: BackendLocal},
			AI:     AIConfig{Timeout: time.Second},
			Daemon: DaemonConfig{ResyncInterval: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }, true},
		{"remote without project", func(c *Config) { c.Store.Backend = BackendRemote; c.Remote.UserID = "u" }, true},
		{"remote without user", func(c *Config) { c.Store.Backend = BackendRemote; c.Remote.ProjectID = "p" }, true},
		{"remote complete", func(c *Config) {
			c.Store.Backend = BackendRemote
			c.Remote.ProjectID = "p"
			c.Remote.UserID = "u"
		}, false},
		{"missing dir", func(c *Config) { c.Store.Dir = "" }, true},
		{"ai without key", func(c *Config) { c.AI.Enabled = true }, true},
		{"zero timeout", func(c *Config) { c.AI.Timeout = 0 }, true},
		{"zero resync", func(c *Config) { c.Daemon.ResyncInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUseRemote(t *testing.T) {
	c := &Config{Store: StoreConfig{Backend: BackendLocal}, Remote: RemoteConfig{ProjectID: "p", UserID: "u"}}
	assert.False(t, c.UseRemote())
	c.Store.Backend = BackendAuto
	assert.True(t, c.UseRemote())
	c.Remote.UserID = ""
	assert.False(t, c.UseRemote())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "a/b"), ExpandPath("~/a/b"))
	assert.Equal(t, "/abs", ExpandPath("/abs"))
	assert.Equal(t, "", ExpandPath(""))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "fanout.exclude_origin", envKey("REMINDSYNC_FANOUT__EXCLUDE_ORIGIN"))
	assert.Equal(t, "log.level", envKey("REMINDSYNC_LOG__LEVEL"))
}
