package monitor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minerwatch/minerwatch/pkg/database"
)

const backupInterval = 24 * time.Hour

// Retention handles database backups and backup expiry. Failures here are
// reported but must never abort a monitoring run.
type Retention struct {
	cfg *Config
	db  *database.DB
	log logrus.FieldLogger
}

func NewRetention(cfg *Config, db *database.DB, log logrus.FieldLogger) *Retention {
	return &Retention{cfg: cfg, db: db, log: log}
}

// Backup snapshots the database into the backup directory, at most once per
// 24 hours, and removes backups past the retention window.
func (r *Retention) Backup(ctx context.Context, now time.Time) error {
	store := r.db.Store()

	last, err := store.LatestBackupTime(ctx)
	if err != nil {
		return fmt.Errorf("checking last backup: %w", err)
	}
	if !last.IsZero() && now.Sub(last) < backupInterval {
		return nil
	}

	if err := os.MkdirAll(r.cfg.BackupDir, 0o755); err != nil {
		return fmt.Errorf("creating backup dir: %w", err)
	}

	name := fmt.Sprintf("minerwatch_%s.db", now.UTC().Format("02012006_150405"))
	dest := filepath.Join(r.cfg.BackupDir, name)
	if err := r.db.VacuumInto(ctx, dest); err != nil {
		return fmt.Errorf("writing backup %s: %w", dest, err)
	}
	if err := store.InsertBackup(ctx, &database.Backup{Path: dest, CreatedAt: now}); err != nil {
		return fmt.Errorf("recording backup %s: %w", dest, err)
	}
	r.log.WithField("path", dest).Info("database backup created")

	return r.prune(ctx, now)
}

func (r *Retention) prune(ctx context.Context, now time.Time) error {
	store := r.db.Store()
	cutoff := now.Add(-time.Duration(r.cfg.BackupRetentionDays) * 24 * time.Hour)

	expired, err := store.BackupsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("listing expired backups: %w", err)
	}
	for _, b := range expired {
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.log.WithError(err).WithField("path", b.Path).Warn("could not remove expired backup")
			continue
		}
		if err := store.DeleteBackup(ctx, b.ID); err != nil {
			return fmt.Errorf("deleting backup record %d: %w", b.ID, err)
		}
	}
	if len(expired) > 0 {
		r.log.WithField("count", len(expired)).Info("expired backups pruned")
	}
	return nil
}
