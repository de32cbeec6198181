package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/output"
)

// DefaultSeed is the base random seed used when none is configured
const DefaultSeed int64 = 42

// ProgressiveConfig contains configuration for progressive rendering
type ProgressiveConfig struct {
	TileSize           int            // Size of each tile (64x64 recommended)
	InitialSamples     int            // Samples for first pass (1 recommended)
	MaxSamplesPerPixel int            // Maximum total samples per pixel (0 = camera samples per pixel)
	MaxPasses          int            // Maximum number of passes
	NumWorkers         int            // Number of parallel workers (0 = use CPU count)
	Seed               int64          // Base seed; tile samplers derive from it
	Adaptive           AdaptiveConfig // Early termination of converged pixels
}

// DefaultProgressiveConfig returns sensible default values
func DefaultProgressiveConfig() ProgressiveConfig {
	return ProgressiveConfig{
		TileSize:           64,
		InitialSamples:     1,
		MaxSamplesPerPixel: 50,
		MaxPasses:          7, // 1, 9, 17, ... then the remainder up to 50
		NumWorkers:         0, // Auto-detect CPU count
		Seed:               DefaultSeed,
	}
}

// ProgressiveRaytracer manages progressive rendering with multiple passes
type ProgressiveRaytracer struct {
	raytracer     *Raytracer
	width, height int
	config        ProgressiveConfig
	tiles         []*Tile        // Tile management
	currentPass   int            // Last completed pass
	pixelStats    [][]PixelStats // Shared pixel statistics array (global image coordinates)
	workerPool    *WorkerPool    // Worker pool for parallel processing
	logger        core.Logger    // Logger for rendering output
}

// NewProgressiveRaytracer creates a new progressive raytracer
func NewProgressiveRaytracer(raytracer *Raytracer, config ProgressiveConfig, logger core.Logger) *ProgressiveRaytracer {
	if logger == nil {
		logger = core.NopLogger{}
	}
	if config.MaxSamplesPerPixel <= 0 {
		config.MaxSamplesPerPixel = raytracer.camera.SamplesPerPixel()
	}
	if config.TileSize <= 0 {
		config.TileSize = DefaultProgressiveConfig().TileSize
	}
	if config.MaxPasses <= 0 {
		config.MaxPasses = 1
	}
	config.InitialSamples = max(1, min(config.InitialSamples, config.MaxSamplesPerPixel))

	width, height := raytracer.camera.Width(), raytracer.camera.Height()
	tiles := NewTileGrid(width, height, config.TileSize, config.Seed)
	tileRenderer := NewTileRenderer(raytracer, config.Adaptive)

	return &ProgressiveRaytracer{
		raytracer:  raytracer,
		width:      width,
		height:     height,
		config:     config,
		tiles:      tiles,
		pixelStats: NewPixelStatsGrid(width, height),
		workerPool: NewWorkerPool(tileRenderer, len(tiles), config.NumWorkers),
		logger:     logger,
	}
}

// Config returns the effective configuration after defaults were applied
func (pr *ProgressiveRaytracer) Config() ProgressiveConfig {
	return pr.config
}

// CurrentPass returns the number of the last completed pass
func (pr *ProgressiveRaytracer) CurrentPass() int {
	return pr.currentPass
}

// PixelStats returns the shared accumulator grid. It must not be modified while a pass runs.
func (pr *ProgressiveRaytracer) PixelStats() [][]PixelStats {
	return pr.pixelStats
}

// Resume restores accumulators from a previous run so rendering continues after completedPass
func (pr *ProgressiveRaytracer) Resume(completedPass int, stats [][]PixelStats) error {
	if completedPass < 0 || completedPass > pr.config.MaxPasses {
		return fmt.Errorf("resume: pass %d outside 0..%d", completedPass, pr.config.MaxPasses)
	}
	if len(stats) != pr.height {
		return fmt.Errorf("resume: expected %d rows, got %d", pr.height, len(stats))
	}
	for y, row := range stats {
		if len(row) != pr.width {
			return fmt.Errorf("resume: row %d: expected %d pixels, got %d", y, pr.width, len(row))
		}
	}
	pr.pixelStats = stats
	pr.currentPass = completedPass
	return nil
}

// getSamplesForPass calculates the target total samples for a given pass
func (pr *ProgressiveRaytracer) getSamplesForPass(passNumber int) int {
	// Special case: if only 1 pass, use all samples
	if pr.config.MaxPasses == 1 {
		return pr.config.MaxSamplesPerPixel
	}

	// For multiple passes: first pass is quick preview
	if passNumber == 1 {
		return pr.config.InitialSamples
	}

	// Divide remaining samples evenly across remaining passes
	remainingSamples := pr.config.MaxSamplesPerPixel - pr.config.InitialSamples
	remainingPasses := pr.config.MaxPasses - 1
	samplesPerPass := remainingSamples / remainingPasses

	targetSamples := pr.config.InitialSamples + (passNumber-1)*samplesPerPass

	// For the final pass, use all remaining samples
	if passNumber == pr.config.MaxPasses {
		targetSamples = pr.config.MaxSamplesPerPixel
	}

	return targetSamples
}

// passSeed derives a tile's seed for a pass. Pass 1 uses base seed + tile id;
// later passes continue the sequence so a resumed render matches an uninterrupted one.
func (pr *ProgressiveRaytracer) passSeed(passNumber int, tile *Tile) int64 {
	return pr.config.Seed + int64(passNumber-1)*int64(len(pr.tiles)) + int64(tile.ID)
}

// RenderPass renders a single progressive pass using parallel processing
func (pr *ProgressiveRaytracer) RenderPass(passNumber int, tileCallback func(TileCompletionResult)) (*image.RGBA, RenderStats, error) {
	targetSamples := pr.getSamplesForPass(passNumber)

	pr.logger.Printf("Pass %d: Target %d samples per pixel (using %d workers)...\n",
		passNumber, targetSamples, pr.workerPool.GetNumWorkers())

	pr.workerPool.Start()

	for taskID, tile := range pr.tiles {
		tile.Sampler = core.NewSeededSampler(pr.passSeed(passNumber, tile))
		pr.workerPool.SubmitTask(TileTask{
			Tile:          tile,
			PassNumber:    passNumber,
			TargetSamples: targetSamples,
			TaskID:        taskID,
			Sampler:       tile.Sampler,
			PixelStats:    pr.pixelStats,
		})
	}

	// Wait for all tiles and dispatch callbacks from this goroutine only.
	// A failed tile still drains the rest so no stale result reaches a later pass.
	var tileErr error
	for i := 0; i < len(pr.tiles); i++ {
		result, ok := pr.workerPool.GetResult()
		if !ok {
			return nil, RenderStats{}, errors.New("worker pool closed unexpectedly")
		}
		if result.Error != nil {
			if tileErr == nil {
				tileErr = fmt.Errorf("pass %d: %w", passNumber, result.Error)
			}
			continue
		}
		if tileErr != nil {
			continue
		}

		tile := pr.tiles[result.TaskID]
		tile.PassesCompleted++

		if tileCallback != nil {
			tileCallback(TileCompletionResult{
				TileX:       tile.Bounds.Min.X / pr.config.TileSize,
				TileY:       tile.Bounds.Min.Y / pr.config.TileSize,
				TileImage:   pr.extractTileImage(tile),
				PassNumber:  passNumber,
				TileNumber:  i + 1,
				TotalTiles:  len(pr.tiles),
				TotalPasses: pr.config.MaxPasses,
			})
		}
	}

	if tileErr != nil {
		return nil, RenderStats{}, tileErr
	}

	pr.currentPass = passNumber
	img, stats := pr.assembleCurrentImage(targetSamples)
	return img, stats, nil
}

// extractTileImage extracts a tile image from the shared pixel stats array
func (pr *ProgressiveRaytracer) extractTileImage(tile *Tile) *image.RGBA {
	bounds := tile.Bounds
	tileImage := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			stats := &pr.pixelStats[y][x]
			if stats.SampleCount > 0 {
				pixelColor := output.ToRGBA(pr.raytracer.ToRGB(stats.GetColor()))
				tileImage.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, pixelColor)
			}
		}
	}

	return tileImage
}

// PassResult contains the result of a single pass
type PassResult struct {
	PassNumber int
	Image      *image.RGBA
	Stats      RenderStats
	Duration   time.Duration
	IsLast     bool
}

// TileCompletionResult contains information about a completed tile for callbacks
type TileCompletionResult struct {
	TileX      int // Tile coordinates (not pixel coordinates)
	TileY      int
	TileImage  *image.RGBA // Image data for just this tile
	PassNumber int         // Which pass this tile was rendered in

	// Progress information
	TileNumber  int // Current tile number in this pass (1-based)
	TotalTiles  int // Total number of tiles in the image
	TotalPasses int // Total number of passes planned
}

// RenderOptions configures progressive rendering behavior
type RenderOptions struct {
	TileUpdates bool // Whether to generate tile completion events

	// AfterPass runs on the render goroutine once a pass finishes and before the
	// next one starts, so the accumulators are stable while it reads them.
	// An error stops rendering and is reported on the error channel.
	AfterPass func(result PassResult, stats [][]PixelStats) error
}

// RenderProgressive renders the remaining passes in the background and reports
// them on the returned channels. If options.TileUpdates is false the tile
// channel is closed immediately. Cancelling ctx stops before the next pass.
func (pr *ProgressiveRaytracer) RenderProgressive(ctx context.Context, options RenderOptions) (<-chan PassResult, <-chan TileCompletionResult, <-chan error) {
	passChan := make(chan PassResult, 1)
	tileChan := make(chan TileCompletionResult, 100)
	errChan := make(chan error, 1)

	if !options.TileUpdates {
		close(tileChan)
	}

	go func() {
		defer close(passChan)
		if options.TileUpdates {
			defer close(tileChan)
		}
		defer close(errChan)
		defer pr.workerPool.Stop()

		firstPass := pr.currentPass + 1
		pr.logger.Printf("Starting progressive rendering: passes %d..%d\n", firstPass, pr.config.MaxPasses)

		for pass := firstPass; pass <= pr.config.MaxPasses; pass++ {
			select {
			case <-ctx.Done():
				pr.logger.Printf("Rendering cancelled before pass %d\n", pass)
				errChan <- ctx.Err()
				return
			default:
			}

			startTime := time.Now()

			var tileCallback func(TileCompletionResult)
			if options.TileUpdates {
				tileCallback = func(result TileCompletionResult) {
					select {
					case tileChan <- result:
					case <-ctx.Done():
					default:
						// Channel full; the pass image still carries this tile
					}
				}
			}

			img, stats, err := pr.RenderPass(pass, tileCallback)
			if err != nil {
				errChan <- err
				return
			}

			passTime := time.Since(startTime)
			actualSamples := int(stats.AverageSamples)

			pr.logger.Printf("Pass %d completed in %v (actual: %d samples/pixel)\n", pass, passTime, actualSamples)

			isLast := pass == pr.config.MaxPasses || stats.MinSamples >= pr.config.MaxSamplesPerPixel
			result := PassResult{
				PassNumber: pass,
				Image:      img,
				Stats:      stats,
				Duration:   passTime,
				IsLast:     isLast,
			}

			if options.AfterPass != nil {
				if err := options.AfterPass(result, pr.pixelStats); err != nil {
					errChan <- fmt.Errorf("after pass %d: %w", pass, err)
					return
				}
			}

			select {
			case passChan <- result:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}

			if isLast {
				break
			}
		}
	}()

	return passChan, tileChan, errChan
}

// assembleCurrentImage creates an image from the current pixel stats and
// calculates render statistics in a single pass
func (pr *ProgressiveRaytracer) assembleCurrentImage(targetSamples int) (*image.RGBA, RenderStats) {
	img := image.NewRGBA(image.Rect(0, 0, pr.width, pr.height))

	stats := RenderStats{
		TotalPixels: pr.width * pr.height,
		MaxSamples:  targetSamples,
		MinSamples:  pr.config.MaxSamplesPerPixel, // Start high, will be reduced
	}

	for y := 0; y < pr.height; y++ {
		for x := 0; x < pr.width; x++ {
			pixel := &pr.pixelStats[y][x]

			img.SetRGBA(x, y, output.ToRGBA(pr.raytracer.ToRGB(pixel.GetColor())))

			stats.TotalSamples += pixel.SampleCount
			stats.MinSamples = min(stats.MinSamples, pixel.SampleCount)
			stats.MaxSamplesUsed = max(stats.MaxSamplesUsed, pixel.SampleCount)
		}
	}

	stats.AverageSamples = float64(stats.TotalSamples) / float64(stats.TotalPixels)
	return img, stats
}

// Tile represents a rectangular region of the image to be rendered
type Tile struct {
	ID              int             // Unique tile identifier
	Bounds          image.Rectangle // Pixel bounds (x0,y0,x1,y1)
	PassesCompleted int             // Number of passes completed for this tile
	Sampler         core.Sampler    // Tile-specific random source for deterministic results
}

// NewTile creates a new tile seeded with seed + id
func NewTile(id int, bounds image.Rectangle, seed int64) *Tile {
	return &Tile{
		ID:      id,
		Bounds:  bounds,
		Sampler: core.NewSeededSampler(seed + int64(id)),
	}
}

// NewTileGrid creates a grid of tiles covering the entire image
func NewTileGrid(width, height, tileSize int, seed int64) []*Tile {
	var tiles []*Tile
	tileID := 0

	tilesX := (width + tileSize - 1) / tileSize // Ceiling division
	tilesY := (height + tileSize - 1) / tileSize

	for tileY := 0; tileY < tilesY; tileY++ {
		for tileX := 0; tileX < tilesX; tileX++ {
			x0 := tileX * tileSize
			y0 := tileY * tileSize
			x1 := min(x0+tileSize, width) // Don't exceed image bounds
			y1 := min(y0+tileSize, height)

			tiles = append(tiles, NewTile(tileID, image.Rect(x0, y0, x1, y1), seed))
			tileID++
		}
	}

	return tiles
}
