package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// DefaultConfigFile is the notifier config file name under the root.
const DefaultConfigFile = ".context-notifier-config.json"

// Toggles switch individual transports on or off.
type Toggles struct {
	Console bool `json:"console"`
	File    bool `json:"file"`
	Webhook bool `json:"webhook"`
}

// WebhookConfig configures the webhook transport. Timeout is in seconds.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Timeout int               `json:"timeout"`
}

// FileConfig configures the log file transport.
type FileConfig struct {
	LogFile   string `json:"log_file"`
	MaxSizeMB int    `json:"max_size_mb"`
}

// Config is the notifier configuration file.
type Config struct {
	Notifications Toggles       `json:"notifications"`
	Webhook       WebhookConfig `json:"webhook"`
	File          FileConfig    `json:"file"`
}

// DefaultConfig enables the console and file transports.
func DefaultConfig() Config {
	return Config{
		Notifications: Toggles{Console: true, File: true},
		Webhook:       WebhookConfig{Headers: map[string]string{}, Timeout: 30},
		File:          FileConfig{LogFile: "context-updates.log", MaxSizeMB: 10},
	}
}

// LoadConfig reads the notifier config at path on top of the defaults. When
// the file does not exist the defaults are written there and returned. The
// file may carry comments or trailing commas.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, SaveConfig(path, cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("notify: read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("notify: parse config %s: %w", path, err)
	}
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("notify: decode config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path atomically.
func SaveConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("notify: encode config: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("notify: mkdir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("notify: write config: %w", err)
	}
	return nil
}
