package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the query layer. A Store handed out by DB.InTransaction runs
// every call inside that transaction.
type Store struct {
	q querier
}

// =============================================================================
// Workers
// =============================================================================

const workerColumns = `id, api_name, first_seen, last_seen, last_session_id,
	last_start_marker, last_hashrate, last_best_diff, flagged_offline, reported_missing`

func scanWorker(row interface{ Scan(...any) error }) (*Worker, error) {
	w := &Worker{}
	var lastSeen sql.NullTime
	var sessionID, startMarker sql.NullString
	err := row.Scan(&w.ID, &w.APIName, &w.FirstSeen, &lastSeen, &sessionID,
		&startMarker, &w.LastHashrate, &w.LastBestDiff, &w.FlaggedOffline, &w.ReportedMissing)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		w.LastSeen = &t
	}
	w.LastSessionID = sessionID.String
	w.LastStartMarker = startMarker.String
	return w, nil
}

func (s *Store) GetWorker(ctx context.Context, id string) (*Worker, error) {
	w, err := scanWorker(s.q.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

func (s *Store) ListWorkers(ctx context.Context) ([]*Worker, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+workerColumns+` FROM workers ORDER BY first_seen, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// ListWorkersByAPIName returns workers sharing a raw API name in the order
// their IDs were first assigned. The identity resolver depends on this order.
func (s *Store) ListWorkersByAPIName(ctx context.Context, apiName string) ([]*Worker, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE api_name = ? ORDER BY first_seen, id`, apiName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func (s *Store) CreateWorker(ctx context.Context, w *Worker) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO workers (id, api_name, first_seen, last_seen, last_session_id,
			last_start_marker, last_hashrate, last_best_diff, flagged_offline, reported_missing)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.APIName, w.FirstSeen, w.LastSeen, w.LastSessionID,
		w.LastStartMarker, w.LastHashrate, w.LastBestDiff, w.FlaggedOffline, w.ReportedMissing)
	return err
}

// UpdateWorkerObservation stores the latest telemetry for a worker.
func (s *Store) UpdateWorkerObservation(ctx context.Context, w *Worker) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE workers SET last_seen = ?, last_session_id = ?, last_start_marker = ?,
			last_hashrate = ?, last_best_diff = ?, flagged_offline = ?, reported_missing = ?
		WHERE id = ?`,
		w.LastSeen, w.LastSessionID, w.LastStartMarker,
		w.LastHashrate, w.LastBestDiff, w.FlaggedOffline, w.ReportedMissing, w.ID)
	return err
}

func (s *Store) SetWorkerMissingFlag(ctx context.Context, id string, missing bool) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE workers SET reported_missing = ? WHERE id = ?`, missing, id)
	return err
}

// =============================================================================
// Sessions
// =============================================================================

// CurrentSession returns the open session for a worker, or nil.
func (s *Store) CurrentSession(ctx context.Context, workerID string) (*Session, error) {
	sess := &Session{}
	var sessionID sql.NullString
	var startedAt, endedAt sql.NullTime
	var duration sql.NullFloat64
	err := s.q.QueryRowContext(ctx, `
		SELECT id, worker_id, session_id, start_marker, started_at, ended_at, duration_secs, best_difficulty
		FROM sessions WHERE worker_id = ? AND ended_at IS NULL
		ORDER BY id DESC LIMIT 1`, workerID).Scan(
		&sess.ID, &sess.WorkerID, &sessionID, &sess.StartMarker,
		&startedAt, &endedAt, &duration, &sess.BestDiff)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID.String
	if startedAt.Valid {
		t := startedAt.Time
		sess.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		sess.EndedAt = &t
	}
	if duration.Valid {
		d := duration.Float64
		sess.DurationSecs = &d
	}
	return sess, nil
}

func (s *Store) OpenSession(ctx context.Context, sess *Session) error {
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO sessions (worker_id, session_id, start_marker, started_at, best_difficulty)
		VALUES (?, ?, ?, ?, ?)`,
		sess.WorkerID, sess.SessionID, sess.StartMarker, sess.StartedAt, sess.BestDiff)
	if err != nil {
		return err
	}
	sess.ID, _ = result.LastInsertId()
	return nil
}

// CloseSession closes an open session at endedAt with its final best
// difficulty. The duration is measured from the session start when known.
func (s *Store) CloseSession(ctx context.Context, sessionID int64, endedAt time.Time, bestDiff float64) error {
	var startedAt sql.NullTime
	err := s.q.QueryRowContext(ctx,
		`SELECT started_at FROM sessions WHERE id = ?`, sessionID).Scan(&startedAt)
	if err != nil {
		return err
	}
	var duration sql.NullFloat64
	if startedAt.Valid {
		duration = sql.NullFloat64{Float64: endedAt.Sub(startedAt.Time).Seconds(), Valid: true}
	}
	_, err = s.q.ExecContext(ctx, `
		UPDATE sessions SET ended_at = ?, duration_secs = ?, best_difficulty = ?
		WHERE id = ?`, endedAt, duration, bestDiff, sessionID)
	return err
}

// =============================================================================
// Hashrate history
// =============================================================================

func (s *Store) InsertHashrateSample(ctx context.Context, sample *HashrateSample) error {
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO hashrate_history (worker_id, hashrate, best_difficulty, recorded_at)
		VALUES (?, ?, ?, ?)`,
		sample.WorkerID, sample.Hashrate, sample.BestDiff, sample.RecordedAt)
	if err != nil {
		return err
	}
	sample.ID, _ = result.LastInsertId()
	return nil
}

// AvgHashrate returns the average hashrate over samples recorded at or
// after since, along with the sample count.
func (s *Store) AvgHashrate(ctx context.Context, workerID string, since time.Time) (float64, int, error) {
	var avg sql.NullFloat64
	var count int
	err := s.q.QueryRowContext(ctx, `
		SELECT AVG(hashrate), COUNT(*) FROM hashrate_history
		WHERE worker_id = ? AND recorded_at >= ?`, workerID, since).Scan(&avg, &count)
	if err != nil {
		return 0, 0, err
	}
	return avg.Float64, count, nil
}

// PurgeHashrateBefore deletes samples recorded before cutoff.
// Returns the number of rows deleted.
func (s *Store) PurgeHashrateBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.q.ExecContext(ctx,
		`DELETE FROM hashrate_history WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// =============================================================================
// Hall of fame
// =============================================================================

const fameLimit = 10

// HallOfFame returns the top entries, best difficulty first, ties broken
// by earlier achievement.
func (s *Store) HallOfFame(ctx context.Context, limit int) ([]*FameEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, worker_id, difficulty, achieved_at, session_id
		FROM hall_of_fame ORDER BY difficulty DESC, achieved_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*FameEntry
	for rows.Next() {
		e := &FameEntry{}
		var sessionID sql.NullString
		if err := rows.Scan(&e.ID, &e.WorkerID, &e.Difficulty, &e.AchievedAt, &sessionID); err != nil {
			return nil, err
		}
		e.SessionID = sessionID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// BestDifficulty returns the best difficulty ever recorded for a worker,
// across closed sessions, the worker's running session best, and the
// hall of fame.
func (s *Store) BestDifficulty(ctx context.Context, workerID string) (float64, error) {
	var best sql.NullFloat64
	err := s.q.QueryRowContext(ctx, `
		SELECT MAX(v) FROM (
			SELECT COALESCE(MAX(best_difficulty), 0) AS v FROM sessions WHERE worker_id = ?1
			UNION ALL
			SELECT COALESCE(last_best_diff, 0) FROM workers WHERE id = ?1
			UNION ALL
			SELECT COALESCE(MAX(difficulty), 0) FROM hall_of_fame WHERE worker_id = ?1
		)`, workerID).Scan(&best)
	if err != nil {
		return 0, err
	}
	return best.Float64, nil
}

// RecordFameEntry inserts a difficulty into the hall of fame if it
// qualifies for the top ten, evicting the lowest-ranked entry when full.
// Reports whether the entry was added.
func (s *Store) RecordFameEntry(ctx context.Context, workerID string, difficulty float64, achievedAt time.Time, sessionID string) (bool, error) {
	// The same achievement observed twice must not produce two rows.
	var dup int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hall_of_fame WHERE worker_id = ? AND difficulty = ?`,
		workerID, difficulty).Scan(&dup)
	if err != nil {
		return false, err
	}
	if dup > 0 {
		return false, nil
	}

	var count int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM hall_of_fame`).Scan(&count); err != nil {
		return false, err
	}

	if count >= fameLimit {
		var lowestID int64
		var lowestDiff float64
		err := s.q.QueryRowContext(ctx, `
			SELECT id, difficulty FROM hall_of_fame
			ORDER BY difficulty ASC, achieved_at DESC LIMIT 1`).Scan(&lowestID, &lowestDiff)
		if err != nil {
			return false, err
		}
		if difficulty <= lowestDiff {
			return false, nil
		}
		if _, err := s.q.ExecContext(ctx, `DELETE FROM hall_of_fame WHERE id = ?`, lowestID); err != nil {
			return false, err
		}
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO hall_of_fame (worker_id, difficulty, achieved_at, session_id)
		VALUES (?, ?, ?, ?)`, workerID, difficulty, achievedAt, sessionID)
	if err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// Pinned message
// =============================================================================

func (s *Store) PinnedMessage(ctx context.Context) (*PinnedMessage, error) {
	m := &PinnedMessage{}
	var edited sql.NullTime
	err := s.q.QueryRowContext(ctx,
		`SELECT message_id, created_at, edited_at FROM pinned_message WHERE id = 1`).Scan(
		&m.MessageID, &m.CreatedAt, &edited)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if edited.Valid {
		t := edited.Time
		m.EditedAt = &t
	}
	return m, nil
}

// SavePinnedMessage records a freshly created live message.
func (s *Store) SavePinnedMessage(ctx context.Context, messageID int64, createdAt time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO pinned_message (id, message_id, created_at, edited_at)
		VALUES (1, ?, ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			message_id = excluded.message_id, created_at = excluded.created_at, edited_at = NULL`,
		messageID, createdAt)
	return err
}

// TouchPinnedMessage updates the last-edited time, leaving created_at alone.
func (s *Store) TouchPinnedMessage(ctx context.Context, editedAt time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE pinned_message SET edited_at = ? WHERE id = 1`, editedAt)
	return err
}

// =============================================================================
// Pool blocks
// =============================================================================

func (s *Store) KnownBlockHeights(ctx context.Context) (map[int64]bool, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT height FROM pool_blocks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	heights := make(map[int64]bool)
	for rows.Next() {
		var h int64
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		heights[h] = true
	}
	return heights, rows.Err()
}

func (s *Store) InsertPoolBlock(ctx context.Context, b *PoolBlock) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO pool_blocks (height, miner_address, worker, detected_at)
		VALUES (?, ?, ?, ?)`, b.Height, b.MinerAddress, b.Worker, b.DetectedAt)
	return err
}

// =============================================================================
// Backups
// =============================================================================

// LatestBackupTime returns the creation time of the newest recorded backup,
// or the zero time when none exists.
func (s *Store) LatestBackupTime(ctx context.Context) (time.Time, error) {
	var latest sql.NullTime
	err := s.q.QueryRowContext(ctx, `SELECT MAX(created_at) FROM backups`).Scan(&latest)
	if err != nil {
		return time.Time{}, err
	}
	return latest.Time, nil
}

func (s *Store) InsertBackup(ctx context.Context, b *Backup) error {
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO backups (path, created_at) VALUES (?, ?)`, b.Path, b.CreatedAt)
	if err != nil {
		return err
	}
	b.ID, _ = result.LastInsertId()
	return nil
}

// BackupsBefore lists backups created before cutoff, oldest first.
func (s *Store) BackupsBefore(ctx context.Context, cutoff time.Time) ([]*Backup, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, path, created_at FROM backups
		WHERE created_at < ? ORDER BY created_at`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var backups []*Backup
	for rows.Next() {
		b := &Backup{}
		if err := rows.Scan(&b.ID, &b.Path, &b.CreatedAt); err != nil {
			return nil, err
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}

func (s *Store) DeleteBackup(ctx context.Context, id int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM backups WHERE id = ?`, id)
	return err
}
