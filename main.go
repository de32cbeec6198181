package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/df07/go-sphere-tracer/pkg/checkpoint"
	"github.com/df07/go-sphere-tracer/pkg/config"
	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/logging"
	"github.com/df07/go-sphere-tracer/pkg/output"
	"github.com/df07/go-sphere-tracer/pkg/renderer"
	"github.com/df07/go-sphere-tracer/pkg/scene"
)

// stdoutPath selects standard output as the image destination
const stdoutPath = "-"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args, renders the chosen scene and writes the image
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, list, err := parseConfig(args, stderr)
	if err != nil {
		return err
	}

	if list {
		return listScenes(stdout, cfg.ScenesDir)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Path: cfg.LogPath, Output: stderr})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logger.Close()

	selected, err := createScene(cfg)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	outputPath := cfg.Output
	if outputPath == "" {
		outputPath = createOutputPath(cfg.OutputDir, cfg.Scene, format, time.Now())
	}

	logger = logger.With(logging.String("scene", cfg.Scene), logging.String("mode", cfg.Mode))
	logger.Info("render starting",
		logging.Int("width", selected.CameraConfig.ImageWidth),
		logging.Int("samples", selected.CameraConfig.SamplesPerPixel),
		logging.Int("max_depth", selected.CameraConfig.MaxDepth),
		logging.Int("spheres", selected.SphereCount()),
		logging.Int64("seed", cfg.Seed),
		logging.String("output", outputPath))

	start := time.Now()
	if cfg.Mode == config.ModeSingle {
		err = renderSingle(selected, cfg, format, outputPath, stdout, logger)
	} else {
		err = renderProgressive(ctx, selected, cfg, format, outputPath, stdout, logger)
	}
	if err != nil {
		return err
	}

	logger.Info("render saved", logging.String("output", outputPath), logging.Duration("elapsed", time.Since(start)))
	return nil
}

// parseConfig layers defaults, an optional config file, RAYTRACER_* variables and flags
func parseConfig(args []string, stderr io.Writer) (config.Config, bool, error) {
	fs := flag.NewFlagSet("sphere-tracer", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var flags config.Flags
	configPath := fs.String("config", "", "Path to a JSON config file")
	list := fs.Bool("list", false, "List available scenes and exit")
	fs.StringVar(&flags.Scene, "scene", "", "Scene name, or file:<name> for scenes/<name>.json")
	fs.StringVar(&flags.Mode, "mode", "", "Render mode: 'single' (scanline order) or 'progressive' (parallel tiles)")
	fs.StringVar(&flags.Format, "format", "", "Output format: "+formatList())
	fs.StringVar(&flags.Output, "o", "", "Output file path, or '-' for stdout (default output/<scene>/render_<timestamp>.<ext>)")
	fs.IntVar(&flags.Width, "width", 0, "Image width override")
	fs.IntVar(&flags.Samples, "samples", 0, "Samples per pixel override")
	depth := fs.Int("depth", 0, "Maximum bounce depth override (0 renders black)")
	fs.IntVar(&flags.Workers, "workers", 0, "Parallel workers for progressive mode (default CPU count)")
	fs.IntVar(&flags.Passes, "passes", 0, "Number of progressive passes")
	seed := fs.Int64("seed", config.DefaultSeed, "Random seed")
	fs.StringVar(&flags.CheckpointDir, "checkpoint", "", "Directory for progressive checkpoints")
	fs.BoolVar(&flags.Resume, "resume", false, "Resume from the checkpoint directory")
	fs.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, false, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			flags.Seed = *seed
			flags.SeedSet = true
		case "depth":
			flags.MaxDepth = depth
		}
	})

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return config.Config{}, false, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, false, err
	}
	cfg.Resolve(flags)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, false, err
	}
	return cfg, *list, nil
}

func formatList() string {
	names := make([]string, len(output.Formats))
	for i, f := range output.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func listScenes(w io.Writer, scenesDir string) error {
	response, err := scene.ListAllScenes(scenesDir)
	for _, group := range response.Groups {
		fmt.Fprintf(w, "%s:\n", group.Name)
		for _, info := range group.Scenes {
			fmt.Fprintf(w, "  %-20s %s\n", info.ID, info.Description)
		}
	}
	return err
}

// createScene resolves the configured scene and applies camera overrides
func createScene(cfg config.Config) (*scene.Scene, error) {
	selected, err := scene.Resolve(cfg.Scene, cfg.ScenesDir, cfg.Seed)
	if err != nil {
		return nil, err
	}
	selected.ApplyOverrides(scene.CameraOverrides{
		ImageWidth:      cfg.Width,
		SamplesPerPixel: cfg.Samples,
		MaxDepth:        cfg.MaxDepth,
	})
	return selected, nil
}

// createOutputPath builds output/<scene>/render_<timestamp>.<ext>
func createOutputPath(outputDir, sceneName string, format output.Format, now time.Time) string {
	base := strings.TrimPrefix(sceneName, "file:")
	base = filepath.Base(base)
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "scene"
	}
	filename := fmt.Sprintf("render_%s%s", now.Format("20060102_150405"), format.Extension())
	return filepath.Join(outputDir, base, filename)
}

// openOutput returns the destination writer; the close func is a no-op for stdout
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == stdoutPath {
		return stdout, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}

// renderSingle streams pixels in scanline order straight into the sink
func renderSingle(selected *scene.Scene, cfg config.Config, format output.Format, path string, stdout io.Writer, logger *logging.Logger) error {
	raytracer, err := selected.NewRaytracer(logging.NewPrintf(logger, logging.DebugLevel))
	if err != nil {
		return err
	}

	w, closeOutput, err := openOutput(path, stdout)
	if err != nil {
		return err
	}
	sink, err := output.NewSink(w, format)
	if err != nil {
		closeOutput()
		return err
	}

	if err := raytracer.Render(sink, core.NewSeededSampler(cfg.Seed)); err != nil {
		closeOutput()
		return err
	}
	return closeOutput()
}

// renderProgressive renders passes in parallel, checkpointing after each one
func renderProgressive(ctx context.Context, selected *scene.Scene, cfg config.Config, format output.Format, path string, stdout io.Writer, logger *logging.Logger) error {
	raytracer, err := selected.NewRaytracer(nil)
	if err != nil {
		return err
	}

	progressiveConfig := renderer.ProgressiveConfig{
		TileSize:           cfg.TileSize,
		InitialSamples:     1,
		MaxSamplesPerPixel: selected.CameraConfig.SamplesPerPixel,
		MaxPasses:          cfg.Passes,
		NumWorkers:         cfg.Workers,
		Seed:               cfg.Seed,
		Adaptive: renderer.AdaptiveConfig{
			MinSamples: cfg.AdaptiveMinFraction,
			Threshold:  cfg.AdaptiveThreshold,
		},
	}
	pr := renderer.NewProgressiveRaytracer(raytracer, progressiveConfig, logging.NewPrintf(logger, logging.DebugLevel))

	var options renderer.RenderOptions
	if cfg.CheckpointDir != "" {
		afterPass, err := setupCheckpoint(pr, cfg, selected.CameraConfig.MaxDepth, logger)
		if err != nil {
			return err
		}
		options.AfterPass = afterPass
	}

	if pr.CurrentPass() >= pr.Config().MaxPasses {
		return errors.New("checkpoint already holds every pass; nothing left to render")
	}

	passChan, _, errChan := pr.RenderProgressive(ctx, options)
	var final *image.RGBA
	for pass := range passChan {
		logger.Info("pass complete",
			logging.Int("pass", pass.PassNumber),
			logging.Float64("average_samples", pass.Stats.AverageSamples),
			logging.Duration("elapsed", pass.Duration))
		final = pass.Image
	}
	if err := <-errChan; err != nil {
		return err
	}
	if final == nil {
		return errors.New("render produced no passes")
	}

	if path == stdoutPath {
		return output.Encode(stdout, final, format)
	}
	return output.WriteFile(path, final, format)
}

// setupCheckpoint opens the store, resumes from it when asked, and returns the per-pass save hook
func setupCheckpoint(pr *renderer.ProgressiveRaytracer, cfg config.Config, maxDepth int, logger *logging.Logger) (func(renderer.PassResult, [][]renderer.PixelStats) error, error) {
	store, err := checkpoint.Open(cfg.CheckpointDir, nil)
	if err != nil {
		return nil, err
	}

	effective := pr.Config()
	stats := pr.PixelStats()
	want := checkpoint.Manifest{
		Scene:      cfg.Scene,
		Seed:       cfg.Seed,
		Width:      len(stats[0]),
		Height:     len(stats),
		TileSize:   effective.TileSize,
		MaxPasses:  effective.MaxPasses,
		MaxSamples: effective.MaxSamplesPerPixel,
		MaxDepth:   maxDepth,

		AdaptiveMinFraction: effective.Adaptive.MinSamples,
		AdaptiveThreshold:   effective.Adaptive.Threshold,
	}

	if cfg.Resume {
		saved, savedStats, err := store.Load()
		switch {
		case errors.Is(err, checkpoint.ErrNoCheckpoint):
			logger.Warn("no checkpoint found; starting fresh", logging.String("dir", store.Dir()))
		case err != nil:
			return nil, err
		default:
			if err := saved.Compatible(want); err != nil {
				return nil, err
			}
			if err := pr.Resume(saved.CompletedPass, savedStats); err != nil {
				return nil, err
			}
			logger.Info("resuming from checkpoint", logging.Int("completed_pass", saved.CompletedPass))
		}
	} else if err := store.Clear(); err != nil {
		return nil, err
	}

	return func(result renderer.PassResult, stats [][]renderer.PixelStats) error {
		return store.Save(want, result, stats)
	}, nil
}
