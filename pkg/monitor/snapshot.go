package monitor

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minerwatch/minerwatch/pkg/pool"
)

// Observation is one worker's telemetry for the current run, with its
// identity resolved and timestamps parsed.
type Observation struct {
	WorkerID    string
	APIName     string
	SessionID   string
	StartMarker string
	StartedAt   *time.Time
	Hashrate    float64
	BestDiff    float64
	LastSeen    time.Time
}

// BuildObservations pairs raw reports with their resolved IDs and parses
// timestamps. A report without a usable lastSeen carries too little to
// reconcile against; it is skipped for this run and logged.
func BuildObservations(reports []pool.WorkerReport, ids []string, log logrus.FieldLogger) []Observation {
	obs := make([]Observation, 0, len(reports))
	for i, r := range reports {
		lastSeen, err := parseAPITime(r.LastSeen)
		if err != nil {
			log.WithFields(logrus.Fields{
				"worker":   ids[i],
				"lastSeen": r.LastSeen,
			}).Warn("skipping worker with partial telemetry")
			continue
		}

		o := Observation{
			WorkerID:    ids[i],
			APIName:     sanitizeName(r.Name),
			SessionID:   r.SessionID,
			StartMarker: r.StartTime,
			Hashrate:    r.HashRate,
			BestDiff:    r.BestDifficulty,
			LastSeen:    lastSeen,
		}
		if started, err := parseAPITime(r.StartTime); err == nil {
			o.StartedAt = &started
		}
		obs = append(obs, o)
	}
	return obs
}

// sanitizeName folds blank or missing worker names into a single bucket so
// they still group and resolve.
func sanitizeName(name string) string {
	if strings.TrimSpace(name) == "" {
		return unknownName
	}
	return name
}

// parseAPITime parses the pool's ISO-8601 timestamps.
func parseAPITime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
