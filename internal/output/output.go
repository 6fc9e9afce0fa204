// Package output writes the final BenchStatistics record to
// runs/redline-<unix-seconds-zero-padded-to-12>.json,
// creating the directory if missing.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Write serializes stats as indented JSON to dir/redline-<timestamp>.json,
// where timestamp is unixSeconds zero-padded to 12 digits.
func Write(dir string, unixSeconds int64, stats any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("output: create %s: %w", dir, err)
	}
	name := fmt.Sprintf("redline-%012d.json", unixSeconds)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return "", fmt.Errorf("output: marshal stats: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("output: write %s: %w", path, err)
	}
	return path, nil
}
