package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

// DefaultConfig returns the built-in configuration
func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"log": map[string]interface{}{
			"level": "info",
			"json":  false,
		},
		"store": map[string]interface{}{
			"dir":     "~/.remindsync",
			"backend": BackendAuto,
		},
		"remote": map[string]interface{}{
			"project_id":       "",
			"credentials_file": "",
			"user_id":          "",
			"device_id":        "",
		},
		"ai": map[string]interface{}{
			"enabled": false,
			"api_key": "",
			"model":   "deepseek-chat",
			"timeout": "8s",
		},
		"daemon": map[string]interface{}{
			"resync_interval": "1m",
			"metrics_addr":    "",
		},
		"fanout": map[string]interface{}{
			"listen_addr":    ":8080",
			"exclude_origin": false,
			"sweep_schedule": "0 0 3 * * *",
			"dry_run":        false,
		},
	}
}

// NewDefaultProvider returns a koanf provider for DefaultConfig
func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}

// DefaultConfigPath is read when no --config flag is given
func DefaultConfigPath() string {
	return "~/.remindsync/config.yaml"
}
