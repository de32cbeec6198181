package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/df07/go-sphere-tracer/pkg/renderer"
)

// ErrNoCheckpoint is returned by Load when the directory holds no checkpoint.
var ErrNoCheckpoint = errors.New("no checkpoint")

// Store persists progressive render state in a directory:
// manifest.json, stats-NNNN.bin.zst (accumulators after pass NNNN) and
// passes.jsonl.sz (pass journal). The manifest names the live stats file.
type Store struct {
	dir string
	now func() time.Time
}

// Open prepares dir for checkpoints, creating it when needed.
func Open(dir string, clock func() time.Time) (*Store, error) {
	if dir == "" {
		return nil, errors.New("checkpoint directory must be provided")
	}
	if clock == nil {
		clock = time.Now
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &Store{dir: dir, now: clock}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// Save records a finished pass. Accumulators go to a file named for the pass
// and the manifest is swapped in last, so a crash mid-save leaves the previous
// manifest pointing at the previous, untouched stats file.
func (s *Store) Save(manifest Manifest, result renderer.PassResult, stats [][]renderer.PixelStats) error {
	now := s.now().UTC()
	stamp := now.Format(time.RFC3339Nano)

	previous, prevErr := s.readManifest()
	if prevErr == nil {
		manifest.CreatedAt = previous.CreatedAt
	} else {
		manifest.CreatedAt = stamp
	}
	statsName := statsFileName(result.PassNumber)
	manifest.Version = ManifestVersion
	manifest.UpdatedAt = stamp
	manifest.CompletedPass = result.PassNumber
	manifest.StatsPath = statsName
	manifest.JournalPath = journalFile

	if err := s.writeAtomic(statsName, func(f *os.File) error {
		return writeStats(f, stats)
	}); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}

	record := PassRecord{
		Pass:           result.PassNumber,
		CompletedAt:    stamp,
		DurationMs:     result.Duration.Milliseconds(),
		TotalSamples:   result.Stats.TotalSamples,
		AverageSamples: result.Stats.AverageSamples,
		MinSamples:     result.Stats.MinSamples,
		MaxSamples:     result.Stats.MaxSamplesUsed,
	}
	if err := appendJournal(filepath.Join(s.dir, journalFile), record); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := s.writeAtomic(manifestFile, func(f *os.File) error {
		_, err := f.Write(append(data, '\n'))
		return err
	}); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	if prevErr == nil && previous.StatsPath != statsName {
		if err := os.Remove(filepath.Join(s.dir, previous.StatsPath)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale stats: %w", err)
		}
	}
	return nil
}

// Load returns the latest manifest and its accumulators.
func (s *Store) Load() (Manifest, [][]renderer.PixelStats, error) {
	manifest, err := s.readManifest()
	if err != nil {
		return Manifest{}, nil, err
	}

	file, err := os.Open(filepath.Join(s.dir, manifest.StatsPath))
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("open stats: %w", err)
	}
	defer file.Close()

	stats, err := readStats(file)
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("load stats: %w", err)
	}
	if len(stats) != manifest.Height || (manifest.Height > 0 && len(stats[0]) != manifest.Width) {
		return Manifest{}, nil, fmt.Errorf("stats size does not match manifest %dx%d", manifest.Width, manifest.Height)
	}
	return manifest, stats, nil
}

// Journal returns one record per pass covered by the manifest, oldest first.
// Records past the manifest (a save cut short) and superseded duplicates of a
// re-rendered pass are dropped; the latest record for a pass wins.
func (s *Store) Journal() ([]PassRecord, error) {
	manifest, err := s.readManifest()
	if err != nil {
		return nil, err
	}
	records, err := readJournal(filepath.Join(s.dir, journalFile))
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	latest := make(map[int]PassRecord, len(records))
	for _, record := range records {
		if record.Pass >= 1 && record.Pass <= manifest.CompletedPass {
			latest[record.Pass] = record
		}
	}
	journal := make([]PassRecord, 0, len(latest))
	for pass := 1; pass <= manifest.CompletedPass; pass++ {
		if record, ok := latest[pass]; ok {
			journal = append(journal, record)
		}
	}
	return journal, nil
}

// Clear removes all checkpoint files so the next render starts fresh.
func (s *Store) Clear() error {
	statsFiles, err := filepath.Glob(filepath.Join(s.dir, statsGlob))
	if err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	for _, path := range statsFiles {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clear checkpoint: %w", err)
		}
	}
	for _, name := range []string{manifestFile, journalFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clear checkpoint: %w", err)
		}
	}
	return nil
}

func (s *Store) readManifest() (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, ErrNoCheckpoint
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("invalid manifest: %w", err)
	}
	return manifest, nil
}

// writeAtomic writes name through a temp file and renames it into place.
func (s *Store) writeAtomic(name string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, filepath.Join(s.dir, name))
}
