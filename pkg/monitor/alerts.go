package monitor

import (
	"fmt"
	"html"
	"time"
)

// AlertKind identifies an alert condition.
type AlertKind string

const (
	AlertDisconnection    AlertKind = "disconnection"
	AlertOffline          AlertKind = "offline"
	AlertLowHashrate      AlertKind = "low_hashrate"
	AlertPersonalRecord   AlertKind = "personal_record"
	AlertHallOfFame       AlertKind = "hall_of_fame"
	AlertNewMiner         AlertKind = "new_miner"
	AlertMinerDisappeared AlertKind = "miner_disappeared"
	AlertBlockFoundOwn    AlertKind = "block_found_own"
	AlertBlockFoundPool   AlertKind = "block_found_pool"
)

// Alert is one event derived by the reconciliation engine. Alerts are
// delivered in the order they were derived, one message per alert.
type Alert struct {
	Kind     AlertKind
	WorkerID string
	Body     string
}

func (c *Config) disconnectionAlert(workerID string, prevDuration, downtime time.Duration, reconnectedAt *time.Time) Alert {
	prev := "N/A"
	if prevDuration > 0 {
		prev = FormatDuration(prevDuration)
	}
	down := "N/A"
	if downtime > 0 {
		down = "~" + FormatDuration(downtime)
	}
	reconnected := "N/A"
	if reconnectedAt != nil {
		reconnected = reconnectedAt.UTC().Format("02/01/2006 15:04 UTC")
	}
	return Alert{
		Kind:     AlertDisconnection,
		WorkerID: workerID,
		Body: fmt.Sprintf("⚠️ <b>DISCONNECTION DETECTED</b>\n"+
			"Miner: <b>%s</b>\n"+
			"Previous session: %s\n"+
			"Estimated downtime: %s\n"+
			"Reconnected at: %s",
			c.DisplayName(workerID), prev, down, reconnected),
	}
}

func (c *Config) offlineAlert(workerID string) Alert {
	return Alert{
		Kind:     AlertOffline,
		WorkerID: workerID,
		Body: fmt.Sprintf("🔴 <b>MINER OFFLINE</b>\n"+
			"Miner: <b>%s</b>\n"+
			"No activity for more than %s",
			c.DisplayName(workerID), FormatDuration(c.OfflineTimeout)),
	}
}

func (c *Config) lowHashrateAlert(workerID string, current, avg float64) Alert {
	drop := (avg - current) / avg * 100
	return Alert{
		Kind:     AlertLowHashrate,
		WorkerID: workerID,
		Body: fmt.Sprintf("📉 <b>LOW HASHRATE</b>\n"+
			"Miner: <b>%s</b>\n"+
			"Current: %s\n"+
			"24h average: %s\n"+
			"Drop: %.1f%%",
			c.DisplayName(workerID), FormatHashrate(current), FormatHashrate(avg), drop),
	}
}

func (c *Config) personalRecordAlert(workerID string, best, previous float64) Alert {
	return Alert{
		Kind:     AlertPersonalRecord,
		WorkerID: workerID,
		Body: fmt.Sprintf("🌟 <b>NEW PERSONAL RECORD!</b>\n"+
			"Miner: <b>%s</b>\n"+
			"Session Best: %s\n"+
			"Previous: %s",
			c.DisplayName(workerID), FormatDifficulty(best), FormatDifficulty(previous)),
	}
}

func (c *Config) hallOfFameAlert(workerID string, difficulty float64) Alert {
	return Alert{
		Kind:     AlertHallOfFame,
		WorkerID: workerID,
		Body: fmt.Sprintf("🏆 <b>HALL OF FAME ENTRY</b>\n"+
			"Miner: <b>%s</b>\n"+
			"Difficulty %s made the all-time top %d",
			c.DisplayName(workerID), FormatDifficulty(difficulty), 10),
	}
}

func (c *Config) newMinerAlert(workerID string, hashrate float64) Alert {
	return Alert{
		Kind:     AlertNewMiner,
		WorkerID: workerID,
		Body: fmt.Sprintf("🆕 <b>NEW MINER DETECTED</b>\n"+
			"Miner: <b>%s</b> (%s)\n"+
			"Hashrate: %s",
			c.DisplayName(workerID), html.EscapeString(workerID), FormatHashrate(hashrate)),
	}
}

func (c *Config) minerDisappearedAlert(workerID string) Alert {
	return Alert{
		Kind:     AlertMinerDisappeared,
		WorkerID: workerID,
		Body: fmt.Sprintf("⚠️ <b>MINER DISAPPEARED</b>\n"+
			"Miner: <b>%s</b> (%s)\n"+
			"No longer visible in the pool",
			c.DisplayName(workerID), html.EscapeString(workerID)),
	}
}

func (c *Config) blockFoundOwnAlert(height int64, worker string) Alert {
	display := "Unknown"
	if worker != "" {
		display = c.DisplayName(worker)
	}
	return Alert{
		Kind:     AlertBlockFoundOwn,
		WorkerID: worker,
		Body: fmt.Sprintf("🏆🏆🏆 <b>YOUR MINER FOUND A BLOCK!</b> 🏆🏆🏆\n\n"+
			"🎉 <b>CONGRATULATIONS!</b> 🎉\n"+
			"Block: <b>#%d</b>\n"+
			"Miner: <b>%s</b>", height, display),
	}
}

func (c *Config) blockFoundPoolAlert(height int64) Alert {
	return Alert{
		Kind: AlertBlockFoundPool,
		Body: fmt.Sprintf("⛏️ <b>BLOCK FOUND BY THE POOL</b>\n"+
			"Block: #%d\n"+
			"Unfortunately it was not one of your miners.", height),
	}
}
