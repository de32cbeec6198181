package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/df07/go-sphere-tracer/pkg/checkpoint"
	"github.com/df07/go-sphere-tracer/pkg/config"
	"github.com/df07/go-sphere-tracer/pkg/output"
)

// tinyRender keeps end-to-end renders fast
var tinyRender = []string{"-scene", "default", "-width", "16", "-samples", "2", "-depth", "4", "-log-level", "error"}

func withArgs(extra ...string) []string {
	return append(append([]string{}, tinyRender...), extra...)
}

func TestCreateOutputPath(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	tests := []struct {
		name   string
		scene  string
		format output.Format
		want   string
	}{
		{"builtin png", "default", output.FormatPNG, filepath.Join("out", "default", "render_20240309_140507.png")},
		{"file scene", "file:saved", output.FormatWebP, filepath.Join("out", "saved", "render_20240309_140507.webp")},
		{"binary ppm", "cover", output.FormatPPMBinary, filepath.Join("out", "cover", "render_20240309_140507.ppm")},
		{"path traversal", "file:../../etc", output.FormatPNG, filepath.Join("out", "etc", "render_20240309_140507.png")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := createOutputPath("out", tt.scene, tt.format, now); got != tt.want {
				t.Errorf("createOutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	cfg, list, err := parseConfig([]string{"-scene", "glass", "-mode", "single", "-format", "tga", "-seed", "0", "-workers", "3"}, io.Discard)
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if list {
		t.Error("Expected list to be false")
	}
	if cfg.Scene != "glass" || cfg.Mode != config.ModeSingle || cfg.Format != "tga" {
		t.Errorf("Flags not applied: %+v", cfg)
	}
	if cfg.Seed != 0 {
		t.Errorf("Expected explicit seed 0, got %d", cfg.Seed)
	}
	if cfg.Workers != 3 {
		t.Errorf("Expected 3 workers, got %d", cfg.Workers)
	}
	if cfg.Passes != config.DefaultPasses {
		t.Errorf("Expected default passes %d, got %d", config.DefaultPasses, cfg.Passes)
	}
}

func TestParseConfig_DefaultSeed(t *testing.T) {
	cfg, _, err := parseConfig(nil, io.Discard)
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if cfg.Seed != config.DefaultSeed {
		t.Errorf("Expected seed %d, got %d", config.DefaultSeed, cfg.Seed)
	}
	if cfg.Mode != config.ModeProgressive {
		t.Errorf("Expected progressive mode by default, got %q", cfg.Mode)
	}
}

func TestRun_SingleModeZeroDepthIsBlack(t *testing.T) {
	var stdout bytes.Buffer
	if err := run(context.Background(), withArgs("-mode", "single", "-format", "ppm", "-o", "-", "-depth", "0"), &stdout, io.Discard); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 3+16*9 {
		t.Fatalf("Expected %d lines, got %d", 3+16*9, len(lines))
	}
	for i, line := range lines[3:] {
		if line != "0 0 0" {
			t.Fatalf("Pixel %d: expected black at depth 0, got %q", i, line)
		}
	}
}

func TestParseConfig_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.json")
	if err := os.WriteFile(path, []byte(`{"scene":"defocus","passes":3,"format":"bmp"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := parseConfig([]string{"-config", path, "-passes", "5"}, io.Discard)
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if cfg.Scene != "defocus" || cfg.Format != "bmp" {
		t.Errorf("Config file values not applied: %+v", cfg)
	}
	if cfg.Passes != 5 {
		t.Errorf("Expected flag to override config file passes, got %d", cfg.Passes)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad mode", []string{"-mode", "sideways"}},
		{"bad format", []string{"-format", "gif"}},
		{"resume without checkpoint", []string{"-resume"}},
		{"resume in single mode", []string{"-resume", "-checkpoint", "cp", "-mode", "single"}},
		{"bad log level", []string{"-log-level", "loud"}},
		{"unknown flag", []string{"-bogus"}},
		{"missing config file", []string{"-config", "does-not-exist.json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := parseConfig(tt.args, io.Discard); err == nil {
				t.Errorf("Expected error for args %v", tt.args)
			}
		})
	}
}

func TestParseConfig_Help(t *testing.T) {
	_, _, err := parseConfig([]string{"-help"}, io.Discard)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("Expected flag.ErrHelp, got %v", err)
	}
}

func TestCreateScene(t *testing.T) {
	tests := []struct {
		name        string
		scene       string
		expectError bool
	}{
		{"default scene", "default", false},
		{"glass scene", "glass", false},
		{"defocus scene", "defocus", false},
		{"cover scene", "cover", false},
		{"spheregrid scene", "spheregrid", false},
		{"unknown scene", "nonexistent", true},
		{"missing file scene", "file:nonexistent", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Scene = tt.scene
			cfg.ScenesDir = t.TempDir()
			cfg.Width = 32

			s, err := createScene(cfg)
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error for scene %q", tt.scene)
				}
				return
			}
			if err != nil {
				t.Fatalf("createScene(%q) failed: %v", tt.scene, err)
			}
			if s.CameraConfig.ImageWidth != 32 {
				t.Errorf("Expected width override 32, got %d", s.CameraConfig.ImageWidth)
			}
			if s.SphereCount() == 0 {
				t.Error("Expected scene to contain spheres")
			}
		})
	}
}

func TestRun_SingleModePPMToStdout(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), withArgs("-mode", "single", "-format", "ppm", "-o", "-"), &stdout, &stderr)
	if err != nil {
		t.Fatalf("run failed: %v (stderr: %s)", err, stderr.String())
	}

	if !strings.HasPrefix(stdout.String(), "P3\n16 9\n255\n") {
		t.Fatalf("Unexpected PPM header: %q", firstLines(stdout.String(), 3))
	}
}

func TestRun_SingleModeIsDeterministic(t *testing.T) {
	render := func() string {
		var stdout bytes.Buffer
		if err := run(context.Background(), withArgs("-mode", "single", "-format", "ppm", "-o", "-", "-seed", "7"), &stdout, io.Discard); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		return stdout.String()
	}

	if render() != render() {
		t.Error("Expected identical output for the same seed")
	}
}

func TestRun_ProgressiveWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "render.png")
	err := run(context.Background(), withArgs("-passes", "2", "-workers", "2", "-o", path), io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	img, format, err := output.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read render: %v", err)
	}
	if format != "png" {
		t.Errorf("Expected png, got %q", format)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 9 {
		t.Errorf("Expected 16x9 image, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestRun_ProgressiveCheckpoint(t *testing.T) {
	dir := t.TempDir()
	checkpointDir := filepath.Join(dir, "checkpoint")
	outPath := filepath.Join(dir, "render.bmp")

	args := withArgs("-passes", "2", "-workers", "2", "-format", "bmp", "-o", outPath, "-checkpoint", checkpointDir, "-resume")

	// Resuming from an empty directory starts fresh
	if err := run(context.Background(), args, io.Discard, io.Discard); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(checkpointDir, "manifest.json")); err != nil {
		t.Fatalf("Expected manifest to be written: %v", err)
	}

	store, err := checkpoint.Open(checkpointDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	manifest, stats, err := store.Load()
	if err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}
	if manifest.Scene != "default" || manifest.Width != 16 || manifest.Height != 9 {
		t.Errorf("Unexpected manifest: %+v", manifest)
	}
	if manifest.CompletedPass < 1 {
		t.Errorf("Expected at least one completed pass, got %d", manifest.CompletedPass)
	}
	if len(stats) != 9 || len(stats[0]) != 16 {
		t.Errorf("Expected 16x9 stats, got %dx%d", len(stats[0]), len(stats))
	}
}

func TestRun_ResumeRejectsMismatchedSeed(t *testing.T) {
	checkpointDir := filepath.Join(t.TempDir(), "checkpoint")
	outPath := filepath.Join(t.TempDir(), "render.png")

	first := withArgs("-passes", "2", "-o", outPath, "-checkpoint", checkpointDir, "-seed", "1")
	if err := run(context.Background(), first, io.Discard, io.Discard); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	second := withArgs("-passes", "2", "-o", outPath, "-checkpoint", checkpointDir, "-seed", "2", "-resume")
	err := run(context.Background(), second, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "seed") {
		t.Errorf("Expected seed mismatch error, got %v", err)
	}
}

func TestRun_ResumeRejectsMismatchedSettings(t *testing.T) {
	tests := []struct {
		name  string
		extra []string
		want  string
	}{
		{"depth", []string{"-depth", "2"}, "max depth"},
		{"zero depth", []string{"-depth", "0"}, "max depth"},
		{"adaptive threshold", []string{"-config", "adaptive.json"}, "adaptive sampling"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			checkpointDir := filepath.Join(dir, "checkpoint")
			outPath := filepath.Join(dir, "render.png")
			if err := os.WriteFile(filepath.Join(dir, "adaptive.json"), []byte(`{"adaptive_threshold":0.05,"adaptive_min_fraction":0.5}`), 0o644); err != nil {
				t.Fatal(err)
			}

			first := withArgs("-passes", "3", "-o", outPath, "-checkpoint", checkpointDir)
			if err := run(context.Background(), first, io.Discard, io.Discard); err != nil {
				t.Fatalf("first run failed: %v", err)
			}

			extra := append([]string{}, tt.extra...)
			for i, arg := range extra {
				if arg == "adaptive.json" {
					extra[i] = filepath.Join(dir, arg)
				}
			}
			second := append(withArgs("-passes", "3", "-o", outPath, "-checkpoint", checkpointDir, "-resume"), extra...)
			err := run(context.Background(), second, io.Discard, io.Discard)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected %q mismatch error, got %v", tt.want, err)
			}
		})
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "render.png")
	err := run(ctx, withArgs("-passes", "2", "-o", path), io.Discard, io.Discard)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		t.Error("Expected no image to be written after cancellation")
	}
}

func TestRun_List(t *testing.T) {
	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"-list", "-log-level", "error"}, &stdout, io.Discard); err != nil {
		t.Fatalf("run -list failed: %v", err)
	}

	listing := stdout.String()
	for _, want := range []string{"Built-in Scenes", "default", "cover", "spheregrid"} {
		if !strings.Contains(listing, want) {
			t.Errorf("Expected listing to contain %q, got:\n%s", want, listing)
		}
	}
}

func firstLines(s string, n int) string {
	lines := strings.SplitN(s, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
