package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minerwatch/minerwatch/pkg/database"
	"github.com/minerwatch/minerwatch/pkg/pool"
	"github.com/minerwatch/minerwatch/pkg/telegram"
)

// Runner executes one complete monitoring cycle: backup, fetch, reconcile,
// alert delivery, and the pinned summary refresh. It is built for cron-style
// invocation; overlapping runs exclude each other through the database lock
// and surface as database.ErrBusy.
type Runner struct {
	cfg  *Config
	db   *database.DB
	pool pool.Client
	tg   telegram.Client
	log  logrus.FieldLogger
}

func NewRunner(cfg *Config, db *database.DB, poolClient pool.Client, tg telegram.Client, log logrus.FieldLogger) *Runner {
	return &Runner{cfg: cfg, db: db, pool: poolClient, tg: tg, log: log}
}

// Run performs one cycle at the given time.
//
// Telemetry fetch errors abort the run before any state changes. Reconcile
// runs in a single transaction, so a run either applies completely or not at
// all; a concurrent run's lock surfaces as database.ErrBusy. Messaging and
// backup problems are logged and never fail the cycle.
func (r *Runner) Run(ctx context.Context, now time.Time) error {
	if err := NewRetention(r.cfg, r.db, r.log).Backup(ctx, now); err != nil {
		r.log.WithError(err).Warn("database backup failed")
	}

	client, err := r.pool.Workers(ctx)
	if err != nil {
		return fmt.Errorf("fetching pool telemetry: %w", err)
	}
	poolStats, err := r.pool.PoolStats(ctx)
	if err != nil {
		r.log.WithError(err).Warn("could not fetch pool stats")
		poolStats = nil
	}
	netStats, err := r.pool.NetworkStats(ctx)
	if err != nil {
		r.log.WithError(err).Warn("could not fetch network stats")
		netStats = nil
	}

	engine := NewEngine(r.cfg, r.log)
	var (
		alerts []Alert
		obs    []Observation
	)
	err = r.db.InTransaction(ctx, func(store *database.Store) error {
		known, err := store.ListWorkers(ctx)
		if err != nil {
			return err
		}
		ids := ResolveIdentities(client.Workers, known)
		obs = BuildObservations(client.Workers, ids, r.log)

		alerts, err = engine.Reconcile(ctx, store, obs, ids, poolStats, now)
		if err != nil {
			return err
		}

		cutoff := now.Add(-time.Duration(r.cfg.DataRetentionDays) * 24 * time.Hour)
		purged, err := store.PurgeHashrateBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		if purged > 0 {
			r.log.WithField("samples", purged).Info("purged old hashrate history")
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, alert := range alerts {
		if _, err := r.tg.SendMessage(ctx, alert.Body); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{
				"kind":   alert.Kind,
				"worker": alert.WorkerID,
			}).Error("could not deliver alert")
			continue
		}
		r.log.WithFields(logrus.Fields{
			"kind":   alert.Kind,
			"worker": alert.WorkerID,
		}).Info("alert sent")
	}

	body, err := BuildSummary(ctx, r.db.Store(), r.cfg, obs, client.WorkersCount, poolStats, netStats, now)
	if err != nil {
		return fmt.Errorf("building summary: %w", err)
	}
	if err := NewMessageManager(r.cfg, r.tg, r.log).Publish(ctx, r.db.Store(), body, now); err != nil {
		r.log.WithError(err).Error("could not publish summary message")
	}

	return nil
}
