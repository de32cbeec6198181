package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if cfg.Seed != 42 {
		t.Errorf("Expected default seed 42, got %d", cfg.Seed)
	}
	if cfg.Workers < 1 {
		t.Errorf("Expected at least one worker, got %d", cfg.Workers)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.json")
	content := `{"scene": "cover", "format": "webp", "samples": 20}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scene != "cover" || cfg.Format != "webp" || cfg.Samples != 20 {
		t.Errorf("File values not applied: %+v", cfg)
	}
	if cfg.Passes != DefaultPasses || cfg.Mode != ModeProgressive {
		t.Errorf("Defaults not kept for unset fields: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil || !strings.Contains(err.Error(), "config: read") {
		t.Errorf("Expected read error, got %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("Expected parse error, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"RAYTRACER_SCENE":                 "glass",
		"RAYTRACER_WORKERS":               "3",
		"RAYTRACER_SEED":                  "0",
		"RAYTRACER_ADAPTIVE_THRESHOLD":    "0.02",
		"RAYTRACER_ADAPTIVE_MIN_FRACTION": "0.25",
		"RAYTRACER_FORMAT":                "  ",
	}))
	if err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}
	if cfg.Scene != "glass" || cfg.Workers != 3 || cfg.Seed != 0 || cfg.AdaptiveThreshold != 0.02 {
		t.Errorf("Env values not applied: %+v", cfg)
	}
	if cfg.AdaptiveMinFraction != 0.25 {
		t.Errorf("Expected adaptive min fraction 0.25, got %v", cfg.AdaptiveMinFraction)
	}
	if cfg.Format != DefaultFormat {
		t.Errorf("Blank env value should be ignored, got %q", cfg.Format)
	}
}

func TestApplyEnvCollectsProblems(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"RAYTRACER_WORKERS": "zero",
		"RAYTRACER_PASSES":  "0",
		"RAYTRACER_SEED":    "abc",
		"RAYTRACER_SCENE":   "cover",
	}))
	if err == nil {
		t.Fatal("Expected error")
	}
	for _, want := range []string{"RAYTRACER_WORKERS", "RAYTRACER_PASSES", "RAYTRACER_SEED"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %s in error: %v", want, err)
		}
	}
	if cfg.Scene != "cover" {
		t.Error("Valid values should still be applied")
	}
}

func TestResolveFlagsWin(t *testing.T) {
	cfg := Config{Scene: "glass", Samples: 5, Seed: 9}
	cfg.Resolve(Flags{Samples: 50, Seed: 0, SeedSet: true, Format: "tga"})

	if cfg.Scene != "glass" {
		t.Errorf("Unset flag should keep existing value, got %q", cfg.Scene)
	}
	if cfg.Samples != 50 || cfg.Format != "tga" {
		t.Errorf("Flags not applied: %+v", cfg)
	}
	if cfg.Seed != 0 {
		t.Errorf("Explicit zero seed should win, got %d", cfg.Seed)
	}
	if cfg.Mode != ModeProgressive || cfg.Passes != DefaultPasses || cfg.TileSize != DefaultTileSize {
		t.Errorf("Empty fields should be defaulted: %+v", cfg)
	}
	if cfg.MaxDepth != nil {
		t.Errorf("Unset depth flag should keep the scene depth, got %d", *cfg.MaxDepth)
	}
}

func TestResolveZeroDepth(t *testing.T) {
	zero := 0
	cfg := Default()
	cfg.Resolve(Flags{MaxDepth: &zero})
	zero = 9

	if cfg.MaxDepth == nil || *cfg.MaxDepth != 0 {
		t.Fatalf("Expected explicit depth 0, got %v", cfg.MaxDepth)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Depth 0 should validate: %v", err)
	}
}

func TestApplyEnvZeroDepth(t *testing.T) {
	cfg := Default()
	if err := cfg.applyEnv(envMap(map[string]string{"RAYTRACER_MAX_DEPTH": "0"})); err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}
	if cfg.MaxDepth == nil || *cfg.MaxDepth != 0 {
		t.Errorf("Expected depth 0 from env, got %v", cfg.MaxDepth)
	}

	cfg = Default()
	if err := cfg.applyEnv(envMap(map[string]string{"RAYTRACER_MAX_DEPTH": "-2"})); err == nil {
		t.Error("Expected error for negative depth")
	}
	if cfg.MaxDepth != nil {
		t.Errorf("Rejected depth should not be applied, got %d", *cfg.MaxDepth)
	}
}

func TestValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Mode = "fast"
	cfg.Format = "gif"
	cfg.Workers = 0
	cfg.Resume = true
	cfg.LogLevel = "chatty"
	cfg.AdaptiveMinFraction = 1.5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"mode must be", "unknown output format", "workers", "checkpoint directory", "log level", "adaptive min fraction"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in error: %v", want, err)
		}
	}
}
