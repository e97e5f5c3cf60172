package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelstream.dev/internal/sim/world"
)

// SQLiteIndex keeps a queryable secondary index of tick telemetry.
// All writes go through a bounded queue and a single writer goroutine,
// so the world loop never blocks on the database.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTickTotal atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqRun
)

type req struct {
	kind reqKind
	tick world.TickLogEntry
	run  runRow
}

// RunInfo describes one server run; it is recorded once at startup so
// tick rows can be interpreted later.
type RunInfo struct {
	Seed           int64  `json:"seed"`
	MeshMode       string `json:"mesh_mode"`
	TickRateHz     int    `json:"tick_rate_hz"`
	RenderDistance int    `json:"render_distance"`
	Workers        int    `json:"workers"`
}

type runRow struct {
	StartedAt string
	Info      RunInfo
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DropTickTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Big enough to ride out sqlite checkpoint stalls at 20 Hz.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			seed INTEGER NOT NULL,
			mesh_mode TEXT NOT NULL,
			tick_rate_hz INTEGER NOT NULL,
			render_distance INTEGER NOT NULL,
			workers INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			center_x INTEGER NOT NULL,
			center_y INTEGER NOT NULL,
			center_z INTEGER NOT NULL,
			loaded INTEGER NOT NULL,
			queued INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			despawned INTEGER NOT NULL,
			gen_ns INTEGER NOT NULL,
			mesh_ns INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_center ON ticks(center_x, center_z);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; the JSONL log remains the
		// source of truth.
		s.dropTickTotal.Add(1)
	}
	return nil
}

// RecordRun stores the run header. Called once at startup, before the
// tick stream begins.
func (s *SQLiteIndex) RecordRun(info RunInfo) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	r := runRow{
		StartedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Info:      info,
	}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTickTotal: s.dropTickTotal.Load(),
	}
}

// CountTicks reports how many tick rows the index holds.
func (s *SQLiteIndex) CountTicks() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM ticks`).Scan(&n)
	return n, err
}

// GetTick loads one tick row back from its raw JSON.
func (s *SQLiteIndex) GetTick(tick uint64) (world.TickLogEntry, error) {
	var raw string
	if err := s.db.QueryRow(`SELECT raw_json FROM ticks WHERE tick = ?`, int64(tick)).Scan(&raw); err != nil {
		return world.TickLogEntry{}, err
	}
	var entry world.TickLogEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return world.TickLogEntry{}, err
	}
	return entry, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,center_x,center_y,center_z,loaded,queued,spawned,despawned,gen_ns,mesh_ns,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertRun, _ := s.db.Prepare(`INSERT INTO runs(started_at,seed,mesh_mode,tick_rate_hz,render_distance,workers,raw_json) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertRun != nil {
			_ = insertRun.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			if insertTick == nil {
				continue
			}
			b, _ := json.Marshal(r.tick)
			if _, err := tx.Stmt(insertTick).Exec(
				int64(r.tick.Tick),
				r.tick.Digest,
				r.tick.Center[0],
				r.tick.Center[1],
				r.tick.Center[2],
				r.tick.Loaded,
				r.tick.Queued,
				r.tick.Spawned,
				r.tick.Despawned,
				r.tick.GenNs,
				r.tick.MeshNs,
				string(b),
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqRun:
			if insertRun == nil {
				continue
			}
			b, _ := json.Marshal(r.run.Info)
			if _, err := tx.Stmt(insertRun).Exec(
				r.run.StartedAt,
				r.run.Info.Seed,
				r.run.Info.MeshMode,
				r.run.Info.TickRateHz,
				r.run.Info.RenderDistance,
				r.run.Info.Workers,
				string(b),
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}
