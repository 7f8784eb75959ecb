// Package publish serializes a snapshot and swaps it into place atomically,
// so a polling reader sees either the previous document or the new one in
// full, never a mixture.
package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abratronix/pulse/engine/feed"
)

// Writer publishes snapshots to a fixed path.
type Writer struct {
	path string
}

// NewWriter creates a Writer for the given published path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the published location.
func (w *Writer) Path() string { return w.path }

// Publish validates, serializes, and atomically replaces the published
// snapshot. Any failure leaves the previously published document untouched.
func (w *Writer) Publish(snap feed.Snapshot) error {
	if err := feed.ValidateSnapshot(snap); err != nil {
		return fmt.Errorf("snapshot invalid: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure output dir: %w", err)
	}

	// Temp file in the same directory so the rename is a same-filesystem
	// atomic replace.
	tmp, err := os.CreateTemp(dir, ".feed-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}

	if err := os.Rename(tmpName, w.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the published snapshot back, whole-file.
func Load(path string) (feed.Snapshot, error) {
	var snap feed.Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, nil
}
