package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Level int    `yaml:"level"`
}

func (s *sample) Validate() error {
	if s.Level < 0 {
		return errors.New("level must not be negative")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "brain")
	p := writeConfig(t, "name: ${SAMPLE_NAME}\n")

	cfg := sample{Level: 3}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "brain" || cfg.Level != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Validates(t *testing.T) {
	p := writeConfig(t, "level: -1\n")
	var cfg sample
	if err := Load(p, &cfg); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOptional_MissingFileKeepsDefaults(t *testing.T) {
	cfg := sample{Name: "default", Level: 1}
	if err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Name != "default" || cfg.Level != 1 {
		t.Errorf("cfg = %+v", cfg)
	}

	bad := sample{Level: -5}
	if err := LoadOptional("", &bad); err == nil {
		t.Error("defaults should still be validated")
	}
}

func TestLoadOptional_ExistingFile(t *testing.T) {
	p := writeConfig(t, "level: 7\n")
	cfg := sample{Name: "default"}
	if err := LoadOptional(p, &cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Name != "default" || cfg.Level != 7 {
		t.Errorf("cfg = %+v", cfg)
	}
}
