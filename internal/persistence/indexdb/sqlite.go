// Package indexdb keeps a queryable SQLite read model of reset cycles,
// audit entries and snapshots. Writes are queued and applied by a single
// writer goroutine; when the queue is full entries are dropped and counted.
// The JSONL logs remain the source of truth.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"roguelite.ai/internal/persistence/snapshot"
	"roguelite.ai/internal/roguelite"
	"roguelite.ai/internal/sim/catalogs"
	"roguelite.ai/internal/sim/tuning"
	"roguelite.ai/internal/sim/world"
)

const defaultQueue = 65536

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAudit    atomic.Uint64
	dropCycle    atomic.Uint64
	dropSnapshot atomic.Uint64
	writeErrors  atomic.Uint64
}

type reqKind int

const (
	reqAudit reqKind = iota + 1
	reqCycle
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	audit    world.AuditEntry
	cycle    CycleRow
	snapshot snapshotRow
	done     chan struct{}
}

// CycleRow is one reset_cycles row.
type CycleRow struct {
	Tick           uint64 `json:"tick"`
	Day            int64  `json:"day"`
	TimeOfDay      int64  `json:"time_of_day"`
	Player         string `json:"player"`
	SlotsCleared   int    `json:"slots_cleared"`
	ItemsRemoved   int    `json:"items_removed"`
	StoragePurged  bool   `json:"storage_purged"`
	Chests         int    `json:"chests"`
	Furnaces       int    `json:"furnaces"`
	ChestBoats     int    `json:"chest_boats"`
	MinecartChests int    `json:"minecart_chests"`
	RecordedAt     string `json:"recorded_at"`
}

type snapshotRow struct {
	Tick     uint64
	Path     string
	Levels   int
	Chunks   int
	Entities int
	Players  int
}

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropAuditTotal    uint64 `json:"drop_audit_total"`
	DropCycleTotal    uint64 `json:"drop_cycle_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
	WriteErrorTotal   uint64 `json:"write_error_total"`
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

	s := &SQLiteIndex{db: db, ch: make(chan req, defaultQueue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
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
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS reset_cycles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			day INTEGER NOT NULL,
			time_of_day INTEGER NOT NULL,
			player TEXT NOT NULL,
			slots_cleared INTEGER NOT NULL,
			items_removed INTEGER NOT NULL,
			storage_purged INTEGER NOT NULL,
			chests INTEGER NOT NULL,
			furnaces INTEGER NOT NULL,
			chest_boats INTEGER NOT NULL,
			minecart_chests INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reset_cycles_day ON reset_cycles(day);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			level TEXT NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			from_block INTEGER NOT NULL,
			to_block INTEGER NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos_tick ON audits(level, x, z, y, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			levels INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			entities INTEGER NOT NULL,
			players INTEGER NOT NULL
		);`,
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

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropAuditTotal:    s.dropAudit.Load(),
		DropCycleTotal:    s.dropCycle.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		WriteErrorTotal:   s.writeErrors.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	s.enqueue(req{kind: reqAudit, audit: entry}, &s.dropAudit)
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	r := snapshotRow{Tick: snap.Header.Tick, Path: path, Levels: len(snap.Levels), Players: len(snap.Players)}
	for _, l := range snap.Levels {
		r.Chunks += len(l.Chunks)
		r.Entities += len(l.Entities)
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

func NewCycleRow(tick uint64, c roguelite.Cycle, at time.Time) CycleRow {
	t := c.Storage.Total
	return CycleRow{
		Tick:           tick,
		Day:            c.Day,
		TimeOfDay:      c.TimeOfDay,
		Player:         c.Player,
		SlotsCleared:   c.Inventory.Cleared,
		ItemsRemoved:   c.Items.Total,
		StoragePurged:  c.StoragePurged,
		Chests:         t.Chests,
		Furnaces:       t.Furnaces,
		ChestBoats:     t.ChestBoats,
		MinecartChests: t.MinecartChests,
		RecordedAt:     at.UTC().Format(time.RFC3339Nano),
	}
}

func (s *SQLiteIndex) RecordCycleRow(r CycleRow) {
	s.enqueue(req{kind: reqCycle, cycle: r}, &s.dropCycle)
}

// CycleSink adapts the index to roguelite.CycleSink, stamping each cycle
// with the server tick it ran on.
func (s *SQLiteIndex) CycleSink(tick func() uint64) roguelite.CycleSink {
	return cycleSink{s: s, tick: tick}
}

type cycleSink struct {
	s    *SQLiteIndex
	tick func() uint64
}

func (c cycleSink) RecordCycle(cy roguelite.Cycle) {
	c.s.RecordCycleRow(NewCycleRow(c.tick(), cy, time.Now()))
}

// Flush waits until everything queued before the call is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return errors.New("index closed")
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResetCycles returns the most recent cycles, newest first.
func (s *SQLiteIndex) ResetCycles(ctx context.Context, limit int) ([]CycleRow, error) {
	if limit <= 0 {
		limit = 50
	}
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick,day,time_of_day,player,slots_cleared,items_removed,storage_purged,
		chests,furnaces,chest_boats,minecart_chests,recorded_at FROM reset_cycles ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CycleRow
	for rows.Next() {
		var r CycleRow
		var tick int64
		if err := rows.Scan(&tick, &r.Day, &r.TimeOfDay, &r.Player, &r.SlotsCleared, &r.ItemsRemoved, &r.StoragePurged,
			&r.Chests, &r.Furnaces, &r.ChestBoats, &r.MinecartChests, &r.RecordedAt); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, err := os.ReadFile(filepath.Join(configDir, "blocks.json")); err == nil {
		rows = append(rows, kv{name: "blocks_defs", digest: cats.Blocks.DefsDigest, json: b})
	}
	if b, err := os.ReadFile(filepath.Join(configDir, "items.json")); err == nil {
		rows = append(rows, kv{name: "items_defs", digest: cats.Items.DefsDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Blocks.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cats.Blocks.PaletteDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Items.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "items_palette", digest: cats.Items.PaletteDigest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,level,actor,action,x,y,z,from_block,to_block,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertCycle, _ := s.db.Prepare(`INSERT INTO reset_cycles(tick,day,time_of_day,player,slots_cleared,items_removed,storage_purged,chests,furnaces,chest_boats,minecart_chests,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,levels,chunks,entities,players) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertAudit, insertCycle, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeErrors.Add(1)
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
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			s.writeErrors.Add(1)
			_ = tx.Rollback()
			tx = nil
			return
		}
		opCount++
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			exec(insertAudit, int64(a.Tick), seq, a.Level, a.Actor, a.Action,
				a.Pos[0], a.Pos[1], a.Pos[2], int64(a.From), int64(a.To), a.Reason, string(raw))

		case reqCycle:
			c := r.cycle
			exec(insertCycle, int64(c.Tick), c.Day, c.TimeOfDay, c.Player, c.SlotsCleared, c.ItemsRemoved,
				c.StoragePurged, c.Chests, c.Furnaces, c.ChestBoats, c.MinecartChests, c.RecordedAt)

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.Levels, sn.Chunks, sn.Entities, sn.Players)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}
	commit()
}
