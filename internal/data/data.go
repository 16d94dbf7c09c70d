package data

import (
	"database/sql"
	"fmt"

	"github.com/anthropics/feishu-voice-summary/internal/biz/repo"
	"github.com/anthropics/feishu-voice-summary/internal/conf"
)

// Snapshots bundles the persistent snapshot stores, one per concern
type Snapshots struct {
	VoiceUsage   repo.SnapshotStore
	SummaryUsage repo.SnapshotStore
	History      repo.SnapshotStore
	Settings     repo.SnapshotStore

	db *sql.DB // nil for the file backend
}

// NewSnapshots creates the snapshot stores for the configured backend
func NewSnapshots(cfg *conf.StoreConfig) (*Snapshots, error) {
	switch cfg.Backend {
	case "sqlite":
		db, err := OpenSnapshotDB(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open snapshot db: %w", err)
		}
		fmt.Printf("[Data] Using sqlite snapshot store: %s\n", cfg.DBPath)
		return &Snapshots{
			VoiceUsage:   NewSQLiteSnapshot(db, "voice_usage"),
			SummaryUsage: NewSQLiteSnapshot(db, "summary_usage"),
			History:      NewSQLiteSnapshot(db, "message_history"),
			Settings:     NewSQLiteSnapshot(db, "admin_settings"),
			db:           db,
		}, nil
	default:
		fmt.Printf("[Data] Using file snapshot store: %s\n", cfg.DataDir)
		return &Snapshots{
			VoiceUsage:   NewFileSnapshot(cfg.VoiceUsagePath()),
			SummaryUsage: NewFileSnapshot(cfg.SummaryUsagePath()),
			History:      NewFileSnapshot(cfg.HistoryPath()),
			Settings:     NewFileSnapshot(cfg.SettingsPath()),
		}, nil
	}
}

// Close releases the underlying database handle, if any
func (s *Snapshots) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
