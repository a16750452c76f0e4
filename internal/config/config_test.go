package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func resetSingleton(t *testing.T, path string) {
	t.Helper()
	once = sync.Once{}
	appConfig, initErr = nil, nil
	configPath = path
}

func TestLoadConfigFallsBackToDefaultWhenFileMissing(t *testing.T) {
	resetSingleton(t, filepath.Join(t.TempDir(), "missing-config.yml"))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if *cfg != *Default() {
		t.Errorf("LoadConfig() = %+v, want Default()", cfg)
	}
}

func TestLoadConfigParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("ADDR: 0.0.0.0:9999\nPOOL_SIZE: 8\n"), 0644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	resetSingleton(t, path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.ADDR != "0.0.0.0:9999" || cfg.POOL_SIZE != 8 {
		t.Errorf("LoadConfig() = %+v, want ADDR/POOL_SIZE overridden", cfg)
	}
	// Fields absent from the YAML keep Default()'s value, since
	// LoadConfig unmarshals into a struct that already starts as Default().
	if cfg.ENGINE != "auto" {
		t.Errorf("LoadConfig() ENGINE = %q, want default %q", cfg.ENGINE, "auto")
	}
}
