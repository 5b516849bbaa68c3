package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minerwatch/minerwatch/pkg/database"
	"github.com/minerwatch/minerwatch/pkg/pool"
)

const summaryTimeFormat = "02/01/2006 15:04:05 UTC"

// BuildSummary renders the HTML body of the pinned fleet summary: global
// totals, pool and network context, a block per worker, and the top of the
// hall of fame. Pool and network sections are skipped when their stats are
// unavailable so a degraded fetch still yields a useful message.
func BuildSummary(ctx context.Context, store *database.Store, cfg *Config, obs []Observation, workersCount int, poolStats *pool.PoolStats, netStats *pool.NetworkStats, now time.Time) (string, error) {
	var totalHashrate float64
	for _, o := range obs {
		totalHashrate += o.Hashrate
	}

	lines := []string{
		"<blockquote>⛏️ <b>Miner Fleet Stats</b></blockquote>",
		fmt.Sprintf("📅 %s", now.UTC().Format(summaryTimeFormat)),
		"━━━━━━━━━━━━━━",
	}

	top, err := store.HallOfFame(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(top) > 0 && top[0].Difficulty > 0 {
		entry := top[0]
		best := FormatDifficulty(entry.Difficulty)
		best += fmt.Sprintf(" (%s, %s)", cfg.DisplayName(entry.WorkerID), entry.AchievedAt.UTC().Format("02/01/2006"))
		lines = append(lines, fmt.Sprintf("   🏆 <b>All-Time Best Diff:</b> %s", best))
	}

	lines = append(lines,
		fmt.Sprintf("   👷 <b>Workers:</b> %d", workersCount),
		fmt.Sprintf("   ⚡ <b>Total Hashrate:</b> %s", FormatHashrate(totalHashrate)),
	)

	var totalAvg float64
	since := now.Add(-rollingWindow)
	avgByWorker := make(map[string]float64, len(obs))
	for _, o := range obs {
		avg, n, err := store.AvgHashrate(ctx, o.WorkerID, since)
		if err != nil {
			return "", err
		}
		if n > 0 {
			avgByWorker[o.WorkerID] = avg
			totalAvg += avg
		}
	}
	if totalAvg > 0 {
		lines = append(lines, fmt.Sprintf("   📊 <b>24h Avg Hashrate:</b> %s", FormatHashrate(totalAvg)))
	}

	if poolStats != nil {
		var contribution float64
		if poolStats.TotalHashRate > 0 {
			contribution = totalHashrate / poolStats.TotalHashRate * 100
		}
		lines = append(lines,
			"",
			"<b>━━━ Pool Stats ━━━</b>",
			fmt.Sprintf("   🌐 Pool Hashrate: %s", FormatHashrate(poolStats.TotalHashRate)),
			fmt.Sprintf("   👥 Total Miners: %s", groupDigits(int64(poolStats.TotalMiners))),
			fmt.Sprintf("   📊 Your contribution: %.6f%%", contribution),
		)
	}

	if netStats != nil {
		lines = append(lines,
			"",
			"<b>━━━ Bitcoin Network ━━━</b>",
			fmt.Sprintf("   🔗 Block: #%s", groupDigits(netStats.Blocks)),
			fmt.Sprintf("   💪 Difficulty: %s", FormatDifficulty(netStats.Difficulty)),
			fmt.Sprintf("   🌍 Network Hashrate: %s", FormatHashrate(netStats.NetworkHPS)),
		)
	}

	lines = append(lines, "")

	for _, o := range obs {
		status := "🟢 Online"
		if now.Sub(o.LastSeen) > cfg.OfflineTimeout {
			status = "🔴 OFFLINE"
		}

		allTimeBest, err := store.BestDifficulty(ctx, o.WorkerID)
		if err != nil {
			return "", err
		}
		if o.BestDiff > allTimeBest {
			allTimeBest = o.BestDiff
		}

		hashrateLine := fmt.Sprintf("   ⚡ Hashrate: %s", FormatHashrate(o.Hashrate))
		if avg := avgByWorker[o.WorkerID]; avg > 0 {
			hashrateLine += fmt.Sprintf(" (24h avg: %s)", FormatHashrate(avg))
		}

		uptime := "unknown"
		if o.StartedAt != nil {
			uptime = FormatDuration(now.Sub(*o.StartedAt))
		}

		lines = append(lines,
			fmt.Sprintf("<b>━━━ %s ━━━</b>", cfg.DisplayName(o.WorkerID)),
			fmt.Sprintf("   %s", status),
			hashrateLine,
			fmt.Sprintf("   🎯 Session Best: %s | All-Time: %s", FormatDifficulty(o.BestDiff), FormatDifficulty(allTimeBest)),
			fmt.Sprintf("   ⏱️ Uptime: %s (session)", uptime),
			"",
		)
	}

	fame, err := store.HallOfFame(ctx, 3)
	if err != nil {
		return "", err
	}
	if len(fame) > 0 {
		lines = append(lines, "<b>━━━ Hall of Fame ━━━</b>")
		for i, entry := range fame {
			lines = append(lines, fmt.Sprintf("   %d. %s - %s (%s)",
				i+1,
				FormatDifficulty(entry.Difficulty),
				cfg.DisplayName(entry.WorkerID),
				entry.AchievedAt.UTC().Format("02/01/2006")))
		}
	}

	return strings.Join(lines, "\n"), nil
}

// groupDigits renders n with thousands separators, e.g. 880001 -> "880,001".
func groupDigits(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
