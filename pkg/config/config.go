package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/df07/go-sphere-tracer/pkg/logging"
	"github.com/df07/go-sphere-tracer/pkg/output"
)

const (
	// ModeSingle renders scanline by scanline on one goroutine.
	ModeSingle = "single"
	// ModeProgressive renders tiles in parallel over several passes.
	ModeProgressive = "progressive"

	DefaultScene     = "default"
	DefaultScenesDir = "scenes"
	DefaultOutputDir = "output"
	DefaultFormat    = "png"
	DefaultPasses    = 7
	DefaultTileSize  = 64
	DefaultSeed      = 42
	DefaultLogLevel  = "info"
	DefaultAddr      = ":8080"

	envPrefix = "RAYTRACER_"
)

// Config holds every setting for a render run or the preview server.
// Zero-valued width, samples and depth leave the scene's own camera settings in place.
type Config struct {
	Scene     string `json:"scene"`
	ScenesDir string `json:"scenes_dir"`
	Mode      string `json:"mode"`

	Format    string `json:"format"`
	Output    string `json:"output"`
	OutputDir string `json:"output_dir"`

	Width   int `json:"width"`
	Samples int `json:"samples"`
	// MaxDepth is nil when the scene's depth should be kept; 0 is a valid depth.
	MaxDepth *int `json:"max_depth,omitempty"`

	Workers  int   `json:"workers"`
	Passes   int   `json:"passes"`
	TileSize int   `json:"tile_size"`
	Seed     int64 `json:"seed"`

	AdaptiveMinFraction float64 `json:"adaptive_min_fraction"`
	AdaptiveThreshold   float64 `json:"adaptive_threshold"`

	CheckpointDir string `json:"checkpoint_dir"`
	Resume        bool   `json:"resume"`

	LogLevel string `json:"log_level"`
	LogPath  string `json:"log_path"`

	Addr string `json:"addr"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Scene:     DefaultScene,
		ScenesDir: DefaultScenesDir,
		Mode:      ModeProgressive,
		Format:    DefaultFormat,
		OutputDir: DefaultOutputDir,
		Workers:   runtime.NumCPU(),
		Passes:    DefaultPasses,
		TileSize:  DefaultTileSize,
		Seed:      DefaultSeed,
		LogLevel:  DefaultLogLevel,
		Addr:      DefaultAddr,
	}
}

// Load reads a JSON config file on top of the defaults.
// Fields not set in the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from RAYTRACER_* environment variables.
// Every malformed value is reported; valid ones are still applied.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var problems []string

	get := func(name string) (string, bool) {
		raw, ok := lookup(envPrefix + name)
		raw = strings.TrimSpace(raw)
		return raw, ok && raw != ""
	}
	setInt := func(name string, dst *int, minVal int) {
		raw, ok := get(name)
		if !ok {
			return
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < minVal {
			problems = append(problems, fmt.Sprintf("%s%s must be an integer >= %d, got %q", envPrefix, name, minVal, raw))
			return
		}
		*dst = value
	}
	setString := func(name string, dst *string) {
		if raw, ok := get(name); ok {
			*dst = raw
		}
	}

	setString("SCENE", &c.Scene)
	setString("SCENES_DIR", &c.ScenesDir)
	setString("MODE", &c.Mode)
	setString("FORMAT", &c.Format)
	setString("OUTPUT_DIR", &c.OutputDir)
	setString("CHECKPOINT_DIR", &c.CheckpointDir)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("LOG_PATH", &c.LogPath)
	setString("ADDR", &c.Addr)

	setInt("WIDTH", &c.Width, 1)
	setInt("SAMPLES", &c.Samples, 1)
	if _, ok := get("MAX_DEPTH"); ok {
		depth := -1
		setInt("MAX_DEPTH", &depth, 0)
		if depth >= 0 {
			c.MaxDepth = &depth
		}
	}
	setInt("WORKERS", &c.Workers, 1)
	setInt("PASSES", &c.Passes, 1)
	setInt("TILE_SIZE", &c.TileSize, 1)

	if raw, ok := get("SEED"); ok {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%sSEED must be an integer, got %q", envPrefix, raw))
		} else {
			c.Seed = value
		}
	}

	if raw, ok := get("ADAPTIVE_THRESHOLD"); ok {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("%sADAPTIVE_THRESHOLD must be a non-negative number, got %q", envPrefix, raw))
		} else {
			c.AdaptiveThreshold = value
		}
	}

	if raw, ok := get("ADAPTIVE_MIN_FRACTION"); ok {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 || value > 1 {
			problems = append(problems, fmt.Sprintf("%sADAPTIVE_MIN_FRACTION must be a number within [0, 1], got %q", envPrefix, raw))
		} else {
			c.AdaptiveMinFraction = value
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Flags holds CLI flag values that override config file and environment settings.
// Zero values mean "not given"; SeedSet and a non-nil MaxDepth allow an explicit 0.
type Flags struct {
	Scene         string
	Mode          string
	Format        string
	Output        string
	Width         int
	Samples       int
	MaxDepth      *int // nil keeps the scene value
	Workers       int
	Passes        int
	Seed          int64
	SeedSet       bool
	CheckpointDir string
	Resume        bool
	LogLevel      string
	Addr          string
}

// Resolve applies CLI flags, which take priority when non-zero/non-empty,
// then fills anything still empty with defaults.
func (c *Config) Resolve(flags Flags) {
	if flags.Scene != "" {
		c.Scene = flags.Scene
	}
	if flags.Mode != "" {
		c.Mode = flags.Mode
	}
	if flags.Format != "" {
		c.Format = flags.Format
	}
	if flags.Output != "" {
		c.Output = flags.Output
	}
	if flags.Width > 0 {
		c.Width = flags.Width
	}
	if flags.Samples > 0 {
		c.Samples = flags.Samples
	}
	if flags.MaxDepth != nil {
		depth := *flags.MaxDepth
		c.MaxDepth = &depth
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Passes > 0 {
		c.Passes = flags.Passes
	}
	if flags.SeedSet {
		c.Seed = flags.Seed
	}
	if flags.CheckpointDir != "" {
		c.CheckpointDir = flags.CheckpointDir
	}
	if flags.Resume {
		c.Resume = true
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.Addr != "" {
		c.Addr = flags.Addr
	}

	defaults := Default()
	if c.Scene == "" {
		c.Scene = defaults.Scene
	}
	if c.Mode == "" {
		c.Mode = defaults.Mode
	}
	if c.Format == "" {
		c.Format = defaults.Format
	}
	if c.OutputDir == "" {
		c.OutputDir = defaults.OutputDir
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.Passes <= 0 {
		c.Passes = defaults.Passes
	}
	if c.TileSize <= 0 {
		c.TileSize = defaults.TileSize
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.Addr == "" {
		c.Addr = defaults.Addr
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Scene) == "" {
		errs = append(errs, errors.New("scene must be set"))
	}
	if c.Mode != ModeSingle && c.Mode != ModeProgressive {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeSingle, ModeProgressive, c.Mode))
	}
	if _, err := output.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Width < 0 {
		errs = append(errs, fmt.Errorf("width must not be negative, got %d", c.Width))
	}
	if c.Samples < 0 {
		errs = append(errs, fmt.Errorf("samples must not be negative, got %d", c.Samples))
	}
	if c.MaxDepth != nil && *c.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("max depth must not be negative, got %d", *c.MaxDepth))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.Passes < 1 {
		errs = append(errs, fmt.Errorf("passes must be at least 1, got %d", c.Passes))
	}
	if c.TileSize < 1 {
		errs = append(errs, fmt.Errorf("tile size must be at least 1, got %d", c.TileSize))
	}
	if c.AdaptiveThreshold < 0 {
		errs = append(errs, fmt.Errorf("adaptive threshold must not be negative, got %v", c.AdaptiveThreshold))
	}
	if c.AdaptiveMinFraction < 0 || c.AdaptiveMinFraction > 1 {
		errs = append(errs, fmt.Errorf("adaptive min fraction must be within [0, 1], got %v", c.AdaptiveMinFraction))
	}
	if c.Resume && c.CheckpointDir == "" {
		errs = append(errs, errors.New("resume requires a checkpoint directory"))
	}
	if c.Resume && c.Mode != ModeProgressive {
		errs = append(errs, errors.New("resume is only supported in progressive mode"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
