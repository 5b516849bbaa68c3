package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minerwatch/minerwatch/pkg/database"
	"github.com/minerwatch/minerwatch/pkg/pool"
)

// Engine reconciles the current telemetry snapshot against persisted state.
// Every mutation it performs goes through the store it is handed, so running
// it inside DB.InTransaction makes the whole reconciliation atomic.
type Engine struct {
	cfg *Config
	log logrus.FieldLogger
}

func NewEngine(cfg *Config, log logrus.FieldLogger) *Engine {
	return &Engine{cfg: cfg, log: log}
}

// Reconcile compares the observations against prior state, applies all store
// mutations, and returns the derived alerts in delivery order.
//
// presentIDs is every worker ID resolved from the fetch response, including
// workers whose observation was dropped for partial telemetry: a worker that
// is present but unusable this run must not count as disappeared.
//
// Per worker the rule order is fixed: disconnection, offline, low hashrate,
// personal record (with its hall-of-fame companion), new miner. Workers
// absent from the snapshot come next, pool blocks last.
func (e *Engine) Reconcile(ctx context.Context, store *database.Store, obs []Observation, presentIDs []string, poolStats *pool.PoolStats, now time.Time) ([]Alert, error) {
	known, err := store.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing workers: %w", err)
	}
	knownByID := make(map[string]*database.Worker, len(known))
	for _, w := range known {
		knownByID[w.ID] = w
	}
	// On the very first run everything is new; alerting on the whole fleet
	// at once would just be noise.
	bootstrap := len(known) == 0

	present := make(map[string]bool, len(presentIDs))
	for _, id := range presentIDs {
		present[id] = true
	}

	var alerts []Alert
	for _, o := range obs {
		saved := knownByID[o.WorkerID]

		a, err := e.reconcileWorker(ctx, store, o, saved, bootstrap, now)
		if err != nil {
			return nil, fmt.Errorf("reconciling worker %s: %w", o.WorkerID, err)
		}
		alerts = append(alerts, a...)
	}

	// Workers that silently vanished from the response. Edge-triggered:
	// the flag is cleared again once the worker reappears.
	for _, w := range known {
		if present[w.ID] || w.ReportedMissing {
			continue
		}
		if err := store.SetWorkerMissingFlag(ctx, w.ID, true); err != nil {
			return nil, err
		}
		alerts = append(alerts, e.cfg.minerDisappearedAlert(w.ID))
	}

	blockAlerts, err := e.reconcileBlocks(ctx, store, poolStats, now)
	if err != nil {
		return nil, err
	}
	alerts = append(alerts, blockAlerts...)

	return alerts, nil
}

func (e *Engine) reconcileWorker(ctx context.Context, store *database.Store, o Observation, saved *database.Worker, bootstrap bool, now time.Time) ([]Alert, error) {
	// Baselines must come from state as it was before this run's sample
	// and telemetry are written.
	avg, samples, err := store.AvgHashrate(ctx, o.WorkerID, now.Add(-rollingWindow))
	if err != nil {
		return nil, err
	}
	priorBest, err := store.BestDifficulty(ctx, o.WorkerID)
	if err != nil {
		return nil, err
	}

	offline := now.Sub(o.LastSeen) > e.cfg.OfflineTimeout

	lastSeen := o.LastSeen
	w := &database.Worker{
		ID:              o.WorkerID,
		APIName:         o.APIName,
		FirstSeen:       now,
		LastSeen:        &lastSeen,
		LastSessionID:   o.SessionID,
		LastStartMarker: o.StartMarker,
		LastHashrate:    o.Hashrate,
		LastBestDiff:    o.BestDiff,
		FlaggedOffline:  offline,
	}
	if saved == nil {
		if err := store.CreateWorker(ctx, w); err != nil {
			return nil, err
		}
	} else {
		if err := store.UpdateWorkerObservation(ctx, w); err != nil {
			return nil, err
		}
	}

	if err := store.InsertHashrateSample(ctx, &database.HashrateSample{
		WorkerID:   o.WorkerID,
		Hashrate:   o.Hashrate,
		BestDiff:   o.BestDiff,
		RecordedAt: now,
	}); err != nil {
		return nil, err
	}

	var alerts []Alert

	// Disconnection: the pool handed out a new session-start marker.
	disconnected := saved != nil && saved.LastStartMarker != "" &&
		o.StartMarker != "" && o.StartMarker != saved.LastStartMarker
	if disconnected {
		alert, err := e.rolloverSession(ctx, store, o, saved, now)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	} else if o.StartMarker != "" {
		current, err := store.CurrentSession(ctx, o.WorkerID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			if err := store.OpenSession(ctx, &database.Session{
				WorkerID:    o.WorkerID,
				SessionID:   o.SessionID,
				StartMarker: o.StartMarker,
				StartedAt:   o.StartedAt,
			}); err != nil {
				return nil, err
			}
		}
	}

	// Offline: edge-triggered on the transition into the timeout.
	if offline && (saved == nil || !saved.FlaggedOffline) {
		alerts = append(alerts, e.cfg.offlineAlert(o.WorkerID))
	}

	// Low hashrate vs the trailing 24h average. One sample is no baseline.
	if samples >= 2 && avg > 0 && o.Hashrate > 0 {
		threshold := avg * (1 - e.cfg.HashrateDropPercent/100)
		if o.Hashrate < threshold {
			alerts = append(alerts, e.cfg.lowHashrateAlert(o.WorkerID, o.Hashrate, avg))
		}
	}

	// Personal record, strictly above everything previously recorded.
	if saved != nil && priorBest > 0 && o.BestDiff > priorBest {
		alerts = append(alerts, e.cfg.personalRecordAlert(o.WorkerID, o.BestDiff, priorBest))
		added, err := store.RecordFameEntry(ctx, o.WorkerID, o.BestDiff, now, o.SessionID)
		if err != nil {
			return nil, err
		}
		if added {
			alerts = append(alerts, e.cfg.hallOfFameAlert(o.WorkerID, o.BestDiff))
		}
	}

	if saved == nil && !bootstrap {
		alerts = append(alerts, e.cfg.newMinerAlert(o.WorkerID, o.Hashrate))
	}

	return alerts, nil
}

// rolloverSession closes the previous session at the worker's last known
// observation time, opens the new one, and offers the closed session's best
// difficulty to the hall of fame.
func (e *Engine) rolloverSession(ctx context.Context, store *database.Store, o Observation, saved *database.Worker, now time.Time) (Alert, error) {
	end := now
	if saved.LastSeen != nil {
		end = *saved.LastSeen
	}

	var prevDuration time.Duration
	current, err := store.CurrentSession(ctx, o.WorkerID)
	if err != nil {
		return Alert{}, err
	}
	if current != nil {
		if err := store.CloseSession(ctx, current.ID, end, saved.LastBestDiff); err != nil {
			return Alert{}, err
		}
		if current.StartedAt != nil {
			prevDuration = end.Sub(*current.StartedAt)
		}
	}

	// Downtime is estimated from the last sample before the gap, not from
	// when an offline alert may have fired in between.
	var downtime time.Duration
	if o.StartedAt != nil && saved.LastSeen != nil {
		downtime = o.StartedAt.Sub(*saved.LastSeen)
	}

	if err := store.OpenSession(ctx, &database.Session{
		WorkerID:    o.WorkerID,
		SessionID:   o.SessionID,
		StartMarker: o.StartMarker,
		StartedAt:   o.StartedAt,
	}); err != nil {
		return Alert{}, err
	}

	if saved.LastBestDiff > 0 {
		if _, err := store.RecordFameEntry(ctx, o.WorkerID, saved.LastBestDiff, end, saved.LastSessionID); err != nil {
			return Alert{}, err
		}
	}

	return e.cfg.disconnectionAlert(o.WorkerID, prevDuration, downtime, o.StartedAt), nil
}

// reconcileBlocks alerts on pool blocks not seen in previous runs.
func (e *Engine) reconcileBlocks(ctx context.Context, store *database.Store, poolStats *pool.PoolStats, now time.Time) ([]Alert, error) {
	if poolStats == nil || len(poolStats.BlocksFound) == 0 {
		return nil, nil
	}

	knownHeights, err := store.KnownBlockHeights(ctx)
	if err != nil {
		return nil, err
	}

	var alerts []Alert
	for _, block := range poolStats.BlocksFound {
		if knownHeights[block.Height] {
			continue
		}
		if err := store.InsertPoolBlock(ctx, &database.PoolBlock{
			Height:       block.Height,
			MinerAddress: block.MinerAddress,
			Worker:       block.Worker,
			DetectedAt:   now,
		}); err != nil {
			return nil, err
		}
		if block.MinerAddress == e.cfg.BTCAddress {
			alerts = append(alerts, e.cfg.blockFoundOwnAlert(block.Height, block.Worker))
		} else {
			alerts = append(alerts, e.cfg.blockFoundPoolAlert(block.Height))
		}
	}
	return alerts, nil
}
