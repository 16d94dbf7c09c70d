package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileSnapshot(filepath.Join(dir, "nested", "usage.json"))
	ctx := context.Background()

	in := map[string]int{"a": 1, "b": 2}
	if err := store.Save(ctx, in); err != nil {
		t.Fatal(err)
	}

	out := make(map[string]int)
	found, err := store.Load(ctx, &out)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected snapshot to exist")
	}
	if out["a"] != 1 || out["b"] != 2 {
		t.Fatalf("round trip mismatch: %v", out)
	}
}

func TestFileSnapshotMissingFile(t *testing.T) {
	store := NewFileSnapshot(filepath.Join(t.TempDir(), "absent.json"))

	out := make(map[string]int)
	found, err := store.Load(context.Background(), &out)
	if err != nil {
		t.Fatalf("missing file must not be an error: %v", err)
	}
	if found {
		t.Fatal("missing file reported as found")
	}
}

func TestFileSnapshotCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewFileSnapshot(path)
	out := make(map[string]int)
	if _, err := store.Load(context.Background(), &out); err == nil {
		t.Fatal("expected error for corrupt file")
	}
}

func TestSQLiteSnapshotRoundTrip(t *testing.T) {
	db, err := OpenSnapshotDB(filepath.Join(t.TempDir(), "snap.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	store := NewSQLiteSnapshot(db, "usage")

	out := make(map[string]int)
	found, err := store.Load(ctx, &out)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("fresh key reported as found")
	}

	if err := store.Save(ctx, map[string]int{"x": 7}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, map[string]int{"x": 8}); err != nil {
		t.Fatal(err)
	}

	found, err = store.Load(ctx, &out)
	if err != nil {
		t.Fatal(err)
	}
	if !found || out["x"] != 8 {
		t.Fatalf("expected latest value, got found=%v out=%v", found, out)
	}

	// Keys are independent
	other := make(map[string]int)
	found, err = NewSQLiteSnapshot(db, "other").Load(ctx, &other)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("unrelated key reported as found")
	}
}
