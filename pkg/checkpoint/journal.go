package checkpoint

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang/snappy"
)

// PassRecord is one line of the pass journal.
type PassRecord struct {
	Pass           int     `json:"pass"`
	CompletedAt    string  `json:"completed_at"`
	DurationMs     int64   `json:"duration_ms"`
	TotalSamples   int     `json:"total_samples"`
	AverageSamples float64 `json:"average_samples"`
	MinSamples     int     `json:"min_samples"`
	MaxSamples     int     `json:"max_samples"`
}

// CompletedTime parses CompletedAt.
func (r PassRecord) CompletedTime() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, r.CompletedAt)
}

// appendJournal adds one record to the snappy-framed journal. Each append
// starts a new snappy stream; the framing format allows them to be concatenated.
func appendJournal(path string, record PassRecord) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	stream := snappy.NewBufferedWriter(file)

	line, err := json.Marshal(record)
	if err != nil {
		file.Close()
		return err
	}
	if _, err := stream.Write(append(line, '\n')); err != nil {
		file.Close()
		return err
	}
	if err := stream.Close(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// readJournal returns every record in file order. A missing journal is empty.
func readJournal(path string) ([]PassRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(snappy.NewReader(file))
	var records []PassRecord
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record PassRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", len(records)+1, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
