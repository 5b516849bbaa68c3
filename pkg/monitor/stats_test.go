package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minerwatch/minerwatch/pkg/pool"
)

func TestBuildSummary(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	cfg.NameSubstitutions = map[string]string{"ant": "Attic Ant"}
	e := testEngine(cfg)
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	antStart := now.Add(-90 * time.Minute)
	beeStart := now.Add(-time.Hour)

	// Two runs so the 24h averages have data; bee stops reporting fresh
	// timestamps and shows up offline.
	first := now.Add(-time.Hour)
	runEngine(t, db, e, []Observation{
		onlineObs("ant", "s1", 500, 42, antStart, first),
		onlineObs("bee", "s1", 300, 7, beeStart, first),
	}, nil, first)

	obs := []Observation{
		onlineObs("ant", "s1", 500, 42, antStart, now),
		onlineObs("bee", "s1", 300, 7, beeStart, first),
	}
	runEngine(t, db, e, obs, nil, now)

	_, err := db.Store().RecordFameEntry(ctx, "ant", 42, now.Add(-24*time.Hour), "s0")
	require.NoError(t, err)

	poolStats := &pool.PoolStats{TotalHashRate: 8e6, TotalMiners: 1234}
	netStats := &pool.NetworkStats{Blocks: 880001, Difficulty: 110e12, NetworkHPS: 7.5e20}

	body, err := BuildSummary(ctx, db.Store(), cfg, obs, 2, poolStats, netStats, now)
	require.NoError(t, err)

	assert.Contains(t, body, "<b>Miner Fleet Stats</b>")
	assert.Contains(t, body, "01/03/2025 12:00:00 UTC")
	assert.Contains(t, body, "<b>Workers:</b> 2")
	assert.Contains(t, body, "<b>Total Hashrate:</b> 800.00 H/s")
	assert.Contains(t, body, "All-Time Best Diff")

	assert.Contains(t, body, "Total Miners: 1,234")
	assert.Contains(t, body, "Your contribution: 0.010000%")
	assert.Contains(t, body, "Block: #880,001")

	// Substituted display name, raw ID for the other worker.
	assert.Contains(t, body, "━━━ Attic Ant ━━━")
	assert.Contains(t, body, "━━━ bee ━━━")
	assert.Contains(t, body, "🔴 OFFLINE")
	assert.Contains(t, body, "🟢 Online")

	assert.Contains(t, body, "━━━ Hall of Fame ━━━")
	assert.Contains(t, body, "1. 42.00 - Attic Ant (28/02/2025)")
}

func TestBuildSummary_DegradedFetch(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	started := now.Add(-time.Hour)
	obs := []Observation{onlineObs("ant", "s1", 500, 10, started, now)}

	body, err := BuildSummary(context.Background(), db.Store(), cfg, obs, 1, nil, nil, now)
	require.NoError(t, err)
	assert.NotContains(t, body, "Pool Stats")
	assert.NotContains(t, body, "Bitcoin Network")
	assert.Contains(t, body, "━━━ ant ━━━")
}

func TestGroupDigits(t *testing.T) {
	assert.Equal(t, "0", groupDigits(0))
	assert.Equal(t, "999", groupDigits(999))
	assert.Equal(t, "1,000", groupDigits(1000))
	assert.Equal(t, "880,001", groupDigits(880001))
	assert.Equal(t, "-12,345", groupDigits(-12345))
}
