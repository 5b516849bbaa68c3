package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedWorker(t *testing.T, s *Store, id string, firstSeen time.Time) {
	t.Helper()
	require.NoError(t, s.CreateWorker(context.Background(), &Worker{
		ID:        id,
		APIName:   id,
		FirstSeen: firstSeen,
	}))
}

func TestWorkerRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s := db.Store()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	w, err := s.GetWorker(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, w, "unknown workers are nil, not an error")

	lastSeen := now.Add(-time.Minute)
	require.NoError(t, s.CreateWorker(ctx, &Worker{
		ID:              "worker_2",
		APIName:         "worker",
		FirstSeen:       now,
		LastSeen:        &lastSeen,
		LastSessionID:   "sid",
		LastStartMarker: "marker",
		LastHashrate:    512.5,
		LastBestDiff:    42,
	}))

	w, err = s.GetWorker(ctx, "worker_2")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "worker", w.APIName)
	assert.Equal(t, "marker", w.LastStartMarker)
	assert.Equal(t, 512.5, w.LastHashrate)
	require.NotNil(t, w.LastSeen)
	assert.True(t, w.LastSeen.Equal(lastSeen))
	assert.False(t, w.FlaggedOffline)
}

func TestListWorkersByAPINameOrder(t *testing.T) {
	db := openTestDB(t)
	s := db.Store()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seedWorker(t, s, "worker_2", base.Add(time.Hour))
	seedWorker(t, s, "worker", base)
	require.NoError(t, s.CreateWorker(ctx, &Worker{ID: "other", APIName: "other", FirstSeen: base}))

	workers, err := s.ListWorkersByAPIName(ctx, "worker")
	require.NoError(t, err)
	require.Len(t, workers, 2)
	assert.Equal(t, "worker", workers[0].ID)
	assert.Equal(t, "worker_2", workers[1].ID)
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)
	s := db.Store()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seedWorker(t, s, "ant", now)

	open, err := s.CurrentSession(ctx, "ant")
	require.NoError(t, err)
	assert.Nil(t, open)

	started := now.Add(-2 * time.Hour)
	sess := &Session{WorkerID: "ant", SessionID: "sid1", StartMarker: "m1", StartedAt: &started}
	require.NoError(t, s.OpenSession(ctx, sess))
	require.NotZero(t, sess.ID)

	open, err = s.CurrentSession(ctx, "ant")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, sess.ID, open.ID)
	assert.Nil(t, open.EndedAt)

	require.NoError(t, s.CloseSession(ctx, sess.ID, now, 77))

	open, err = s.CurrentSession(ctx, "ant")
	require.NoError(t, err)
	assert.Nil(t, open, "a closed session is no longer current")

	best, err := s.BestDifficulty(ctx, "ant")
	require.NoError(t, err)
	assert.Equal(t, 77.0, best)
}

func TestAvgHashrateWindow(t *testing.T) {
	db := openTestDB(t)
	s := db.Store()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seedWorker(t, s, "ant", now)

	for i, hr := range []float64{100, 200, 900} {
		require.NoError(t, s.InsertHashrateSample(ctx, &HashrateSample{
			WorkerID:   "ant",
			Hashrate:   hr,
			RecordedAt: now.Add(-time.Duration(i*12) * time.Hour),
		}))
	}

	// The 900 H/s sample sits 24h back, outside the window.
	avg, count, err := s.AvgHashrate(ctx, "ant", now.Add(-23*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 150.0, avg)

	avg, count, err = s.AvgHashrate(ctx, "ghost", now.Add(-23*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, avg)
}

func TestPurgeHashrateBefore(t *testing.T) {
	db := openTestDB(t)
	s := db.Store()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seedWorker(t, s, "ant", now)

	for _, age := range []time.Duration{time.Hour, 91 * 24 * time.Hour, 120 * 24 * time.Hour} {
		require.NoError(t, s.InsertHashrateSample(ctx, &HashrateSample{
			WorkerID:   "ant",
			Hashrate:   100,
			RecordedAt: now.Add(-age),
		}))
	}

	purged, err := s.PurgeHashrateBefore(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)
}

func TestRecordFameEntry(t *testing.T) {
	db := openTestDB(t)
	s := db.Store()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seedWorker(t, s, "ant", now)

	// Fill the board with difficulties 10..100.
	for i := 1; i <= 10; i++ {
		added, err := s.RecordFameEntry(ctx, "ant", float64(i*10), now.Add(time.Duration(i)*time.Minute), fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		assert.True(t, added)
	}

	t.Run("duplicate achievement is ignored", func(t *testing.T) {
		added, err := s.RecordFameEntry(ctx, "ant", 50, now.Add(time.Hour), "s99")
		require.NoError(t, err)
		assert.False(t, added)
	})

	t.Run("too low to qualify", func(t *testing.T) {
		added, err := s.RecordFameEntry(ctx, "ant", 5, now.Add(time.Hour), "s99")
		require.NoError(t, err)
		assert.False(t, added)
	})

	t.Run("qualifying entry evicts the lowest", func(t *testing.T) {
		added, err := s.RecordFameEntry(ctx, "ant", 55, now.Add(time.Hour), "s99")
		require.NoError(t, err)
		assert.True(t, added)

		entries, err := s.HallOfFame(ctx, 20)
		require.NoError(t, err)
		require.Len(t, entries, 10)
		assert.Equal(t, 100.0, entries[0].Difficulty)
		assert.Equal(t, 20.0, entries[9].Difficulty, "the lowest entry (10) is gone")
	})
}

func TestHallOfFameOrdering(t *testing.T) {
	db := openTestDB(t)
	s := db.Store()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seedWorker(t, s, "ant", now)
	seedWorker(t, s, "bee", now)

	_, err := s.RecordFameEntry(ctx, "ant", 40, now.Add(time.Minute), "s1")
	require.NoError(t, err)
	_, err = s.RecordFameEntry(ctx, "bee", 40, now, "s1")
	require.NoError(t, err)
	_, err = s.RecordFameEntry(ctx, "ant", 70, now, "s2")
	require.NoError(t, err)

	entries, err := s.HallOfFame(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 70.0, entries[0].Difficulty)
	// Equal difficulties rank by earlier achievement.
	assert.Equal(t, "bee", entries[1].WorkerID)
	assert.Equal(t, "ant", entries[2].WorkerID)
}

func TestPinnedMessageSingleton(t *testing.T) {
	db := openTestDB(t)
	s := db.Store()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	m, err := s.PinnedMessage(ctx)
	require.NoError(t, err)
	assert.Nil(t, m)

	require.NoError(t, s.SavePinnedMessage(ctx, 101, now))
	require.NoError(t, s.TouchPinnedMessage(ctx, now.Add(time.Minute)))

	m, err = s.PinnedMessage(ctx)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, int64(101), m.MessageID)
	require.NotNil(t, m.EditedAt)

	// Replacing the live message resets the edit clock.
	require.NoError(t, s.SavePinnedMessage(ctx, 102, now.Add(time.Hour)))
	m, err = s.PinnedMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(102), m.MessageID)
	assert.Nil(t, m.EditedAt)
}

func TestPoolBlocksAreDeduplicated(t *testing.T) {
	db := openTestDB(t)
	s := db.Store()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	b := &PoolBlock{Height: 880001, MinerAddress: "bc1q", Worker: "ant", DetectedAt: now}
	require.NoError(t, s.InsertPoolBlock(ctx, b))
	require.NoError(t, s.InsertPoolBlock(ctx, b))

	heights, err := s.KnownBlockHeights(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{880001: true}, heights)
}

func TestInTransactionRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	wantErr := fmt.Errorf("boom")
	err := db.InTransaction(ctx, func(s *Store) error {
		seedWorker(t, s, "ant", now)
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	w, err := db.Store().GetWorker(ctx, "ant")
	require.NoError(t, err)
	assert.Nil(t, w, "a failed transaction must leave no trace")
}
