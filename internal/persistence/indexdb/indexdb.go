package indexdb

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/NeruoDissident/FracturedCity/internal/protocol"
)

// DB is a read-model index over the simulation's persistence artifacts:
// which snapshot covers which tick, and the per-tick job statistics history.
// Writes go through a single goroutine so the tick loop never blocks on
// sqlite.
type DB struct {
	db   *sql.DB
	ch   chan writeOp
	done chan struct{}
}

type writeOp struct {
	query string
	args  []interface{}
}

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	tick     INTEGER PRIMARY KEY,
	path     TEXT NOT NULL,
	digest   TEXT NOT NULL,
	saved_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS job_stats (
	tick              INTEGER PRIMARY KEY,
	pending           INTEGER NOT NULL,
	claimed           INTEGER NOT NULL,
	cooldown          INTEGER NOT NULL,
	completed         INTEGER NOT NULL,
	abandoned         INTEGER NOT NULL,
	expired           INTEGER NOT NULL,
	blocked_materials INTEGER NOT NULL,
	blocked_storage   INTEGER NOT NULL
);
`

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("index schema: %w", err)
	}

	d := &DB{db: db, ch: make(chan writeOp, 256), done: make(chan struct{})}
	go d.writer()
	return d, nil
}

func (d *DB) writer() {
	defer close(d.done)
	for op := range d.ch {
		if _, err := d.db.Exec(op.query, op.args...); err != nil {
			// The index is derived data; a failed write is logged by the
			// caller's recovery scan, not fatal to the simulation.
			continue
		}
	}
}

// Close drains pending writes before closing the handle.
func (d *DB) Close() error {
	close(d.ch)
	<-d.done
	return d.db.Close()
}

func (d *DB) RecordSnapshot(tick uint64, path, digest string) {
	d.ch <- writeOp{
		query: `INSERT OR REPLACE INTO snapshots (tick, path, digest, saved_at) VALUES (?, ?, ?, ?)`,
		args:  []interface{}{int64(tick), path, digest, time.Now().UTC().Format(time.RFC3339)},
	}
}

func (d *DB) RecordJobStats(tick uint64, s protocol.JobStats) {
	d.ch <- writeOp{
		query: `INSERT OR REPLACE INTO job_stats
			(tick, pending, claimed, cooldown, completed, abandoned, expired, blocked_materials, blocked_storage)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args: []interface{}{
			int64(tick), s.Pending, s.Claimed, s.Cooldown,
			int64(s.Completed), int64(s.Abandoned), int64(s.Expired),
			s.BlockedMaterials, s.BlockedStorage,
		},
	}
}

// SnapshotRef locates one stored snapshot.
type SnapshotRef struct {
	Tick   uint64
	Path   string
	Digest string
}

// LatestSnapshot returns the newest recorded snapshot, ok=false when none
// exist yet.
func (d *DB) LatestSnapshot() (SnapshotRef, bool, error) {
	var ref SnapshotRef
	var tick int64
	err := d.db.QueryRow(`SELECT tick, path, digest FROM snapshots ORDER BY tick DESC LIMIT 1`).
		Scan(&tick, &ref.Path, &ref.Digest)
	if err == sql.ErrNoRows {
		return ref, false, nil
	}
	if err != nil {
		return ref, false, err
	}
	ref.Tick = uint64(tick)
	return ref, true, nil
}

// StatsRange returns job stats for ticks in [from, to] ascending.
func (d *DB) StatsRange(from, to uint64) ([]protocol.JobStats, []uint64, error) {
	rows, err := d.db.Query(`SELECT tick, pending, claimed, cooldown, completed, abandoned, expired,
		blocked_materials, blocked_storage FROM job_stats WHERE tick BETWEEN ? AND ? ORDER BY tick`,
		int64(from), int64(to))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var stats []protocol.JobStats
	var ticks []uint64
	for rows.Next() {
		var t int64
		var s protocol.JobStats
		var completed, abandoned, expired int64
		if err := rows.Scan(&t, &s.Pending, &s.Claimed, &s.Cooldown, &completed, &abandoned, &expired,
			&s.BlockedMaterials, &s.BlockedStorage); err != nil {
			return nil, nil, err
		}
		s.Completed, s.Abandoned, s.Expired = uint64(completed), uint64(abandoned), uint64(expired)
		stats = append(stats, s)
		ticks = append(ticks, uint64(t))
	}
	return stats, ticks, rows.Err()
}
