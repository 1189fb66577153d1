package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/brain/internal/changes"
	"github.com/starford/brain/internal/monitor"
	"github.com/starford/brain/internal/notify"
	"github.com/starford/brain/internal/regen"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig  `yaml:"app"`
	Store     StoreConfig        `yaml:"store"`
	State     StateConfig        `yaml:"state"`
	Watch     WatchConfig        `yaml:"watch"`
	Catalog   CatalogConfig      `yaml:"catalog"`
	Resources []changes.Resource `yaml:"resources"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.State.Validate(); err != nil {
		return fmt.Errorf("state: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := c.Catalog.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	seen := make(map[string]bool, len(c.Resources))
	for i := range c.Resources {
		r := &c.Resources[i]
		if err := validation.ValidateStruct(r,
			validation.Field(&r.Name, validation.Required),
			validation.Field(&r.Path, validation.Required),
			validation.Field(&r.Kind, validation.In(changes.KindFile, changes.KindDirectory)),
		); err != nil {
			return fmt.Errorf("resources[%d]: %w", i, err)
		}
		if seen[r.Name] {
			return fmt.Errorf("resources[%d]: duplicate name %q", i, r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// StoreConfig describes the knowledge base tree.
type StoreConfig struct {
	Root    string      `yaml:"root"`
	Exclude []string    `yaml:"exclude"`
	Paths   regen.Paths `yaml:"paths"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Exclude, validation.Each(validation.By(globPattern))),
	)
}

// ExcludePatterns returns the configured exclude globs plus every derived
// document, so scans never pick up generated output.
func (c *StoreConfig) ExcludePatterns() []string {
	out := append([]string{}, c.Exclude...)
	return append(out, c.Paths.Derived()...)
}

func globPattern(v any) error {
	s, _ := v.(string)
	if !doublestar.ValidatePattern(s) {
		return errors.New("invalid glob pattern")
	}
	return nil
}

// StateConfig locates the files that persist between runs. Relative paths
// are resolved against the store root.
type StateConfig struct {
	File           string `yaml:"file"`
	NotifierConfig string `yaml:"notifier_config"`
}

// Validate validates the state configuration.
func (c *StateConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.File, validation.Required),
		validation.Field(&c.NotifierConfig, validation.Required),
	)
}

// WatchConfig holds polling configuration.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

// CatalogConfig holds SQLite search catalog configuration.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// Resolve returns p joined to the store root unless it is already absolute.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Store.Root, p)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Store: StoreConfig{
			Root: ".",
			Exclude: []string{
				"**/README.md",
				"**/node_modules/**",
				"**/vendor/**",
				"**/venv/**",
			},
			Paths: regen.DefaultPaths(),
		},
		State: StateConfig{
			File:           ".brain/state.json",
			NotifierConfig: notify.DefaultConfigFile,
		},
		Watch: WatchConfig{
			Interval: monitor.DefaultInterval,
		},
		Catalog: CatalogConfig{
			Path: ".brain/catalog.db",
		},
		Resources: monitor.DefaultResources(),
	}
}
