package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigHasSaneValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Pool.MaxSize != 5 {
		t.Fatalf("Pool.MaxSize = %d, want 5", cfg.Pool.MaxSize)
	}
	if cfg.Docker.SandboxRuntime != "runsc" {
		t.Fatalf("Docker.SandboxRuntime = %q, want runsc", cfg.Docker.SandboxRuntime)
	}
	if cfg.Admission.Enabled {
		t.Fatalf("Admission.Enabled should default to false")
	}
}

func TestLoadFromFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"pool":{"max_size":10}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Pool.MaxSize != 10 {
		t.Fatalf("Pool.MaxSize = %d, want 10", cfg.Pool.MaxSize)
	}
	if cfg.Pool.IdleTimeout == 0 {
		t.Fatalf("Pool.IdleTimeout should keep its default, got 0")
	}
}

func TestLoadFromEnvOverridesConfig(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("FNRUN_POOL_MAX_SIZE", "3")
	t.Setenv("FNRUN_ADMISSION_ENABLED", "true")

	LoadFromEnv(cfg)

	if cfg.Pool.MaxSize != 3 {
		t.Fatalf("Pool.MaxSize = %d, want 3", cfg.Pool.MaxSize)
	}
	if !cfg.Admission.Enabled {
		t.Fatalf("Admission.Enabled should be true after env override")
	}
}
