package checkpoint

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ManifestVersion is bumped whenever the on-disk layout changes.
const ManifestVersion = 1

const (
	manifestFile = "manifest.json"
	statsPattern = "stats-%04d.bin.zst"
	statsGlob    = "stats-*.bin.zst"
	journalFile  = "passes.jsonl.sz"
)

func statsFileName(pass int) string {
	return fmt.Sprintf(statsPattern, pass)
}

// Manifest identifies the render a checkpoint belongs to and how far it got.
type Manifest struct {
	Version       int    `json:"version"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	Scene         string `json:"scene"`
	Seed          int64  `json:"seed"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	TileSize      int    `json:"tile_size"`
	MaxPasses     int    `json:"max_passes"`
	MaxSamples    int    `json:"max_samples"`
	MaxDepth      int    `json:"max_depth"`

	AdaptiveMinFraction float64 `json:"adaptive_min_fraction"`
	AdaptiveThreshold   float64 `json:"adaptive_threshold"`

	CompletedPass int    `json:"completed_pass"`
	StatsPath     string `json:"stats_path"`
	JournalPath   string `json:"journal_path"`
}

// Validate ensures the manifest can be used to locate its artefacts.
func (m Manifest) Validate() error {
	if m.Version != ManifestVersion {
		return fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", m.Width, m.Height)
	}
	if strings.TrimSpace(m.StatsPath) == "" {
		return errors.New("stats_path must not be empty")
	}
	if filepath.Base(m.StatsPath) != m.StatsPath {
		return fmt.Errorf("stats_path %q must name a file in the checkpoint directory", m.StatsPath)
	}
	return nil
}

// Compatible reports why a checkpoint cannot continue the render described by want.
// Only the fields that change the sample sequence are compared.
func (m Manifest) Compatible(want Manifest) error {
	var problems []string
	if m.Scene != want.Scene {
		problems = append(problems, fmt.Sprintf("scene %q != %q", m.Scene, want.Scene))
	}
	if m.Seed != want.Seed {
		problems = append(problems, fmt.Sprintf("seed %d != %d", m.Seed, want.Seed))
	}
	if m.Width != want.Width || m.Height != want.Height {
		problems = append(problems, fmt.Sprintf("size %dx%d != %dx%d", m.Width, m.Height, want.Width, want.Height))
	}
	if m.TileSize != want.TileSize {
		problems = append(problems, fmt.Sprintf("tile size %d != %d", m.TileSize, want.TileSize))
	}
	if m.MaxPasses != want.MaxPasses || m.MaxSamples != want.MaxSamples {
		problems = append(problems, fmt.Sprintf("schedule %d passes/%d samples != %d/%d",
			m.MaxPasses, m.MaxSamples, want.MaxPasses, want.MaxSamples))
	}
	if m.MaxDepth != want.MaxDepth {
		problems = append(problems, fmt.Sprintf("max depth %d != %d", m.MaxDepth, want.MaxDepth))
	}
	if m.AdaptiveMinFraction != want.AdaptiveMinFraction || m.AdaptiveThreshold != want.AdaptiveThreshold {
		problems = append(problems, fmt.Sprintf("adaptive sampling %g/%g != %g/%g",
			m.AdaptiveMinFraction, m.AdaptiveThreshold, want.AdaptiveMinFraction, want.AdaptiveThreshold))
	}
	if len(problems) > 0 {
		return fmt.Errorf("checkpoint does not match render: %s", strings.Join(problems, "; "))
	}
	return nil
}
