package data

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthropics/feishu-voice-summary/internal/biz/repo"
)

// fileSnapshot persists one concern as a single JSON document on disk.
// The whole file is rewritten on every Save; there is no locking and no
// atomic rename, matching the process's single-writer assumption.
type fileSnapshot struct {
	path string
}

// NewFileSnapshot creates a file-backed snapshot store.
func NewFileSnapshot(path string) repo.SnapshotStore {
	return &fileSnapshot{path: path}
}

func (f *fileSnapshot) Load(ctx context.Context, v any) (bool, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", f.path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return true, nil
}

func (f *fileSnapshot) Save(ctx context.Context, v any) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}
