package repo

import "context"

// SnapshotStore persists one concern's full state as a single document.
// Load reads the whole document (reporting whether one existed); Save
// rewrites it completely. Backings: a JSON file or an embedded sqlite row.
// There is no partial update and no locking beyond the caller's own.
type SnapshotStore interface {
	Load(ctx context.Context, v any) (bool, error)
	Save(ctx context.Context, v any) error
}
