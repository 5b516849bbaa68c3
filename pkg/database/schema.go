package database

// Schema contains the SQLite database schema.
const Schema = `
-- Workers table: stable identity for each mining device.
-- The id is the resolved internal ID (api name, possibly suffixed _2, _3, ...)
-- and never changes once assigned.
CREATE TABLE IF NOT EXISTS workers (
    id TEXT PRIMARY KEY,
    api_name TEXT NOT NULL,
    first_seen DATETIME NOT NULL,
    last_seen DATETIME,
    last_session_id TEXT,
    last_start_marker TEXT,
    last_hashrate REAL NOT NULL DEFAULT 0,
    last_best_diff REAL NOT NULL DEFAULT 0,
    flagged_offline INTEGER NOT NULL DEFAULT 0,
    reported_missing INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_workers_api_name ON workers(api_name);

-- Connectivity sessions, bounded by the pool-reported start marker.
-- An open session has ended_at IS NULL; at most one per worker.
CREATE TABLE IF NOT EXISTS sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    worker_id TEXT NOT NULL,
    session_id TEXT,
    start_marker TEXT NOT NULL,
    started_at DATETIME,
    ended_at DATETIME,
    duration_secs REAL,
    best_difficulty REAL NOT NULL DEFAULT 0,
    FOREIGN KEY (worker_id) REFERENCES workers(id)
);

CREATE INDEX IF NOT EXISTS idx_sessions_worker ON sessions(worker_id, ended_at);

-- One hashrate observation per worker per run.
CREATE TABLE IF NOT EXISTS hashrate_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    worker_id TEXT NOT NULL,
    hashrate REAL NOT NULL,
    best_difficulty REAL NOT NULL DEFAULT 0,
    recorded_at DATETIME NOT NULL,
    FOREIGN KEY (worker_id) REFERENCES workers(id)
);

CREATE INDEX IF NOT EXISTS idx_hashrate_worker_time
    ON hashrate_history(worker_id, recorded_at);

-- Top-10 best difficulties ever observed, across all workers.
CREATE TABLE IF NOT EXISTS hall_of_fame (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    worker_id TEXT NOT NULL,
    difficulty REAL NOT NULL,
    achieved_at DATETIME NOT NULL,
    session_id TEXT,
    FOREIGN KEY (worker_id) REFERENCES workers(id)
);

-- Singleton row holding the live summary message metadata.
CREATE TABLE IF NOT EXISTS pinned_message (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    message_id INTEGER NOT NULL,
    created_at DATETIME NOT NULL,
    edited_at DATETIME
);

-- Pool blocks already alerted on, keyed by height.
CREATE TABLE IF NOT EXISTS pool_blocks (
    height INTEGER PRIMARY KEY,
    miner_address TEXT,
    worker TEXT,
    detected_at DATETIME NOT NULL
);

-- Database backup files created by the retention manager.
CREATE TABLE IF NOT EXISTS backups (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

-- Schema version for migrations
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// Migrations contains SQL migrations indexed by version.
// Each migration upgrades from version N-1 to version N.
var Migrations = map[int]string{
	1: Schema, // Initial schema
}
