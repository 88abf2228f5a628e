package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides. Nested keys use a double
// underscore: REMINDSYNC_FANOUT__EXCLUDE_ORIGIN=true sets fanout.exclude_origin.
const EnvPrefix = "REMINDSYNC_"

// Store backend selection
const (
	BackendAuto   = "auto"
	BackendLocal  = "local"
	BackendRemote = "remote"
)

type Config struct {
	Log    LogConfig    `koanf:"log"`
	Store  StoreConfig  `koanf:"store"`
	Remote RemoteConfig `koanf:"remote"`
	AI     AIConfig     `koanf:"ai"`
	Daemon DaemonConfig `koanf:"daemon"`
	Fanout FanoutConfig `koanf:"fanout"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

type StoreConfig struct {
	Dir     string `koanf:"dir"`     // shared storage group directory
	Backend string `koanf:"backend"` // auto, local or remote
}

type RemoteConfig struct {
	ProjectID       string `koanf:"project_id"`
	CredentialsFile string `koanf:"credentials_file"`
	UserID          string `koanf:"user_id"`
	DeviceID        string `koanf:"device_id"`
}

type AIConfig struct {
	Enabled bool          `koanf:"enabled"`
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

type DaemonConfig struct {
	ResyncInterval time.Duration `koanf:"resync_interval"`
	MetricsAddr    string        `koanf:"metrics_addr"`
}

type FanoutConfig struct {
	ListenAddr    string `koanf:"listen_addr"`
	ExcludeOrigin bool   `koanf:"exclude_origin"`
	SweepSchedule string `koanf:"sweep_schedule"`
	DryRun        bool   `koanf:"dry_run"`
}

// Load reads defaults, then the YAML file at configPath if it exists, then
// REMINDSYNC_ environment variables. A .env file in the working directory is
// loaded into the environment first; variables already set win.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		configPath = ExpandPath(configPath)

		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// Well-known variables used by the AI client and Google SDKs
	if apiKey := os.Getenv("DEEPSEEK_API_KEY"); apiKey != "" && k.String("ai.api_key") == "" {
		k.Set("ai.api_key", apiKey)
	}
	if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); creds != "" && k.String("remote.credentials_file") == "" {
		k.Set("remote.credentials_file", creds)
	}
	if project := os.Getenv("GOOGLE_CLOUD_PROJECT"); project != "" && k.String("remote.project_id") == "" {
		k.Set("remote.project_id", project)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Dir = ExpandPath(cfg.Store.Dir)
	cfg.Remote.CredentialsFile = ExpandPath(cfg.Remote.CredentialsFile)

	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate checks the configuration
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendAuto, BackendLocal:
	case BackendRemote:
		if c.Remote.ProjectID == "" {
			return fmt.Errorf("remote backend requires remote.project_id")
		}
		if c.Remote.UserID == "" {
			return fmt.Errorf("remote backend requires remote.user_id")
		}
	default:
		return fmt.Errorf("unknown store backend: %s (supported: %s, %s, %s)",
			c.Store.Backend, BackendAuto, BackendLocal, BackendRemote)
	}

	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir is required")
	}

	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("AI parsing requires an API key (set DEEPSEEK_API_KEY or ai.api_key)")
	}

	if c.AI.Timeout <= 0 {
		return fmt.Errorf("ai.timeout must be positive")
	}

	if c.Daemon.ResyncInterval <= 0 {
		return fmt.Errorf("daemon.resync_interval must be positive")
	}

	return nil
}

// UseRemote reports whether the remote backend should be opened
func (c *Config) UseRemote() bool {
	switch c.Store.Backend {
	case BackendRemote:
		return true
	case BackendAuto:
		return c.Remote.ProjectID != "" && c.Remote.UserID != ""
	default:
		return false
	}
}

// ExpandPath replaces a leading ~/ with the home directory
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}
