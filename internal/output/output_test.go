package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteCreatesDirAndZeroPadsTimestamp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "runs")
	path, err := Write(dir, 42, map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	wantName := "redline-000000000042.json"
	if filepath.Base(path) != wantName {
		t.Fatalf("file name = %q, want %q", filepath.Base(path), wantName)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["a"] != 1 {
		t.Fatalf("round-tripped content = %v, want a=1", got)
	}
}

func TestWriteOverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := Write(dir, 1, map[string]int{"a": 1}); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	path, err := Write(dir, 1, map[string]int{"a": 2})
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["a"] != 2 {
		t.Fatalf("second Write should overwrite, got %v", got)
	}
}
