package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minerwatch/minerwatch/pkg/database"
)

func TestBackup_CreatesSnapshotOncePerDay(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	cfg.BackupDir = t.TempDir()
	cfg.BackupRetentionDays = 30
	r := NewRetention(cfg, db, discardLogger())
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, r.Backup(ctx, now))
	entries, err := os.ReadDir(cfg.BackupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "minerwatch_01032025_120000.db", entries[0].Name())

	// Within 24h nothing new is written.
	require.NoError(t, r.Backup(ctx, now.Add(23*time.Hour)))
	entries, err = os.ReadDir(cfg.BackupDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, r.Backup(ctx, now.Add(25*time.Hour)))
	entries, err = os.ReadDir(cfg.BackupDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestBackup_PrunesExpired(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	cfg.BackupDir = t.TempDir()
	cfg.BackupRetentionDays = 30
	r := NewRetention(cfg, db, discardLogger())
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// An old backup on disk and on record, past the retention window.
	oldPath := filepath.Join(cfg.BackupDir, "minerwatch_old.db")
	require.NoError(t, os.WriteFile(oldPath, []byte("stale"), 0o644))
	require.NoError(t, db.Store().InsertBackup(ctx, &database.Backup{
		Path:      oldPath,
		CreatedAt: now.Add(-31 * 24 * time.Hour),
	}))

	require.NoError(t, r.Backup(ctx, now))

	_, err := os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	expired, err := db.Store().BackupsBefore(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, expired, "pruned backups must leave no records behind")
}

func TestBackup_MissingFileDoesNotBlockPrune(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	cfg.BackupDir = t.TempDir()
	cfg.BackupRetentionDays = 30
	r := NewRetention(cfg, db, discardLogger())
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.Store().InsertBackup(ctx, &database.Backup{
		Path:      filepath.Join(cfg.BackupDir, "gone.db"),
		CreatedAt: now.Add(-40 * 24 * time.Hour),
	}))

	require.NoError(t, r.Backup(ctx, now))
	expired, err := db.Store().BackupsBefore(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, expired)
}
