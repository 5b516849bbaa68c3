package pool

// WorkerReport is one worker entry from the client endpoint.
//
// Timestamps (StartTime, LastSeen) arrive as ISO-8601 strings and may carry
// a trailing "Z"; the pool occasionally omits fields for freshly connected
// workers, so every field here is best-effort.
type WorkerReport struct {
	Name           string  `json:"name"`
	SessionID      string  `json:"sessionId"`
	HashRate       float64 `json:"hashRate"`
	StartTime      string  `json:"startTime"`
	BestDifficulty float64 `json:"bestDifficulty"`
	LastSeen       string  `json:"lastSeen"`
}

// ClientStats is the response of GET /client/{address}.
type ClientStats struct {
	WorkersCount int            `json:"workersCount"`
	Workers      []WorkerReport `json:"workers"`
}

// FoundBlock is one entry of the pool's found-blocks list.
type FoundBlock struct {
	Height       int64  `json:"height"`
	MinerAddress string `json:"minerAddress"`
	Worker       string `json:"worker"`
}

// PoolStats is the response of GET /pool.
type PoolStats struct {
	TotalHashRate float64      `json:"totalHashRate"`
	TotalMiners   int          `json:"totalMiners"`
	BlocksFound   []FoundBlock `json:"blocksFound"`
}

// NetworkStats is the response of GET /network.
type NetworkStats struct {
	Blocks     int64   `json:"blocks"`
	Difficulty float64 `json:"difficulty"`
	NetworkHPS float64 `json:"networkhashps"`
}
