package monitor

import "time"

// Config carries the thresholds and rendering inputs for one run.
// All values are pass-through from the process configuration.
type Config struct {
	// BTCAddress is the payout address; pool blocks discovered by this
	// address are attributed to the operator's own miners.
	BTCAddress string

	// OfflineTimeout is how long a worker may go without activity before
	// it is considered offline.
	OfflineTimeout time.Duration

	// HashrateDropPercent is the drop (vs the trailing 24h average, in
	// percent) below which a low-hashrate alert fires.
	HashrateDropPercent float64

	// MessageEditLimit is the maximum age of the live summary message
	// before it is retired and recreated. Must stay safely below the
	// messaging platform's 48h edit/delete ceiling.
	MessageEditLimit time.Duration

	// DataRetentionDays is how long hashrate samples are kept.
	DataRetentionDays int

	// BackupRetentionDays is how long database backup files are kept.
	BackupRetentionDays int

	// BackupDir is where database backups are written.
	BackupDir string

	// NameSubstitutions maps worker IDs to display names.
	NameSubstitutions map[string]string
}

// rollingWindow is the trailing window used for average-based comparisons.
const rollingWindow = 24 * time.Hour
