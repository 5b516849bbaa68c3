package database

import "time"

// Worker is one mining device, identified by its resolved internal ID.
// A worker that stops reporting is kept forever; only its flags change.
type Worker struct {
	ID              string
	APIName         string
	FirstSeen       time.Time
	LastSeen        *time.Time
	LastSessionID   string
	LastStartMarker string
	LastHashrate    float64
	LastBestDiff    float64
	FlaggedOffline  bool
	ReportedMissing bool
}

// Session is a contiguous connectivity period for a worker, bounded by the
// pool-reported start marker. EndedAt is nil while the session is open.
type Session struct {
	ID           int64
	WorkerID     string
	SessionID    string
	StartMarker  string
	StartedAt    *time.Time
	EndedAt      *time.Time
	DurationSecs *float64
	BestDiff     float64
}

// HashrateSample is one observation of a worker's instantaneous hashrate.
type HashrateSample struct {
	ID         int64
	WorkerID   string
	Hashrate   float64
	BestDiff   float64
	RecordedAt time.Time
}

// FameEntry is one hall-of-fame row.
type FameEntry struct {
	ID         int64
	WorkerID   string
	Difficulty float64
	AchievedAt time.Time
	SessionID  string
}

// PinnedMessage is the metadata of the live summary message. At most one
// row exists; a missing row means no live message.
type PinnedMessage struct {
	MessageID int64
	CreatedAt time.Time
	EditedAt  *time.Time
}

// PoolBlock is a pool-found block already alerted on.
type PoolBlock struct {
	Height       int64
	MinerAddress string
	Worker       string
	DetectedAt   time.Time
}

// Backup is a recorded database backup file.
type Backup struct {
	ID        int64
	Path      string
	CreatedAt time.Time
}
