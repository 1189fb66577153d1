package internal

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/starford/brain/internal/changes"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Watch.Interval != 5*time.Second {
		t.Errorf("interval = %v, want 5s", cfg.Watch.Interval)
	}
	if len(cfg.Resources) != 2 {
		t.Errorf("resources = %+v", cfg.Resources)
	}
}

func TestStoreConfig_InvalidGlob(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Exclude = append(cfg.Store.Exclude, "docs/[")
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid exclude pattern should fail validation")
	}
	if !strings.HasPrefix(err.Error(), "store:") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStoreConfig_RootRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Root = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty root should fail validation")
	}
}

func TestWatchConfig_Interval(t *testing.T) {
	cfg := WatchConfig{}
	if err := cfg.Validate(); err == nil {
		t.Error("zero interval should fail")
	}
	cfg.Interval = time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Error("1ms interval should fail")
	}
	cfg.Interval = time.Second
	if err := cfg.Validate(); err != nil {
		t.Errorf("1s interval should pass: %v", err)
	}
}

func TestResources_Validation(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Resources = []changes.Resource{{Name: "docs", Path: "docs", Kind: "socket"}}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown kind should fail")
	}

	cfg.Resources = []changes.Resource{
		{Name: "docs", Path: "docs", Kind: changes.KindDirectory},
		{Name: "docs", Path: "other.md"},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("duplicate name should fail, got %v", err)
	}

	cfg.Resources = []changes.Resource{{Name: "docs"}}
	if err := cfg.Validate(); err == nil {
		t.Error("missing path should fail")
	}
}

func TestResolve(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Root = "/srv/kb"
	if got := cfg.Resolve(".brain/state.json"); got != filepath.Join("/srv/kb", ".brain", "state.json") {
		t.Errorf("relative = %q", got)
	}
	if got := cfg.Resolve("/var/lib/state.json"); got != "/var/lib/state.json" {
		t.Errorf("absolute = %q", got)
	}
}

func TestExcludePatterns_IncludeDerived(t *testing.T) {
	cfg := NewDefaultConfig()
	got := cfg.Store.ExcludePatterns()
	for _, want := range []string{"**/README.md", "INDEX.md", "SYSTEM.md", "CHANGELOG.md"} {
		if !slices.Contains(got, want) {
			t.Errorf("exclude patterns %v missing %q", got, want)
		}
	}
	if len(cfg.Store.Exclude) != 4 {
		t.Errorf("ExcludePatterns mutated the config: %v", cfg.Store.Exclude)
	}
}
