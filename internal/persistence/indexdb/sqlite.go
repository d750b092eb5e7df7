package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelbend.ai/internal/protocol"
	"voxelbend.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index of engine events. Writes are
// queued and batched into transactions by one goroutine; the journal stays the
// source of truth when the queue overflows.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan protocol.Event
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool

	indexed   atomic.Uint64
	dropped   atomic.Uint64
	writeFail atomic.Uint64
}

type SQLiteStats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	IndexedTotal   uint64 `json:"indexed_total"`
	DropEventTotal uint64 `json:"drop_event_total"`
	WriteFailTotal uint64 `json:"write_fail_total"`
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
		// Collision-heavy ticks emit bursts of events.
		ch: make(chan protocol.Event, 262144),
	}
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
		"PRAGMA foreign_keys=ON;",
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
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			partition TEXT NOT NULL,
			tick INTEGER NOT NULL,
			type TEXT NOT NULL,
			user_id TEXT,
			ability TEXT,
			instance TEXT,
			other TEXT,
			reason TEXT,
			location TEXT,
			mutation TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_partition_tick ON events(partition, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_tick ON events(type, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_events_user_tick ON events(user_id, tick);`,
		`CREATE TABLE IF NOT EXISTS instances (
			partition TEXT NOT NULL,
			instance TEXT NOT NULL,
			ability TEXT NOT NULL,
			user_id TEXT,
			created_tick INTEGER,
			destroyed_tick INTEGER,
			reason TEXT,
			PRIMARY KEY (partition, instance)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_instances_ability ON instances(ability, created_tick);`,
		`CREATE TABLE IF NOT EXISTS mutations (
			partition TEXT NOT NULL,
			mutation TEXT NOT NULL,
			location TEXT NOT NULL,
			instance TEXT,
			state TEXT,
			applied_tick INTEGER,
			reverted_tick INTEGER,
			skipped INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (partition, mutation)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mutations_location ON mutations(partition, location);`,
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
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Publish queues ev for indexing. It never blocks the tick.
func (s *SQLiteIndex) Publish(ev protocol.Event) {
	if s == nil || ev.Proposal {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) Stats() SQLiteStats {
	return SQLiteStats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		IndexedTotal:   s.indexed.Load(),
		DropEventTotal: s.dropped.Load(),
		WriteFailTotal: s.writeFail.Load(),
	}
}

// UpsertTuning records the tuning and partition layout the server started with.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning, partitions []string) error {
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
	{
		b, _ := json.Marshal(tune)
		rows = append(rows, kv{name: "tuning", digest: digest(b), json: b})
	}
	{
		ids := append([]string(nil), partitions...)
		sort.Strings(ids)
		b, _ := json.Marshal(ids)
		rows = append(rows, kv{name: "partitions", digest: digest(b), json: b})
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
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(id,partition,tick,type,user_id,ability,instance,other,reason,location,mutation,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	createInstance, _ := s.db.Prepare(`INSERT INTO instances(partition,instance,ability,user_id,created_tick) VALUES(?,?,?,?,?)
		ON CONFLICT(partition,instance) DO UPDATE SET created_tick=excluded.created_tick`)
	destroyInstance, _ := s.db.Prepare(`INSERT INTO instances(partition,instance,ability,user_id,destroyed_tick,reason) VALUES(?,?,?,?,?,?)
		ON CONFLICT(partition,instance) DO UPDATE SET destroyed_tick=excluded.destroyed_tick, reason=excluded.reason`)
	applyMutation, _ := s.db.Prepare(`INSERT INTO mutations(partition,mutation,location,instance,state,applied_tick) VALUES(?,?,?,?,?,?)
		ON CONFLICT(partition,mutation) DO UPDATE SET applied_tick=excluded.applied_tick, state=excluded.state`)
	revertMutation, _ := s.db.Prepare(`INSERT INTO mutations(partition,mutation,location,instance,reverted_tick,skipped) VALUES(?,?,?,?,?,?)
		ON CONFLICT(partition,mutation) DO UPDATE SET reverted_tick=excluded.reverted_tick, skipped=excluded.skipped`)
	defer func() {
		for _, st := range []*sql.Stmt{insertEvent, createInstance, destroyInstance, applyMutation, revertMutation} {
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
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
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
			s.writeFail.Add(1)
		}
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
		s.writeFail.Add(1)
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return true
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for ev := range s.ch {
		begin()
		if tx == nil {
			s.writeFail.Add(1)
			continue
		}
		raw, _ := json.Marshal(ev)
		if !exec(insertEvent,
			ev.ID.String(),
			ev.Partition,
			int64(ev.Tick),
			ev.Type,
			nullable(ev.User),
			nullable(ev.Ability),
			nullable(ev.Instance),
			nullable(ev.Other),
			nullable(ev.Reason),
			nullable(ev.Location),
			nullable(ev.Mutation),
			string(raw),
		) {
			continue
		}

		ok := true
		switch ev.Type {
		case protocol.EventInstanceCreated:
			ok = exec(createInstance, ev.Partition, ev.Instance, ev.Ability, nullable(ev.User), int64(ev.Tick))
		case protocol.EventInstanceDestroyed:
			ok = exec(destroyInstance, ev.Partition, ev.Instance, ev.Ability, nullable(ev.User), int64(ev.Tick), ev.Reason)
		case protocol.EventMutationApplied:
			state, _ := ev.Data["state"].(string)
			ok = exec(applyMutation, ev.Partition, ev.Mutation, ev.Location, nullable(ev.Instance), nullable(state), int64(ev.Tick))
		case protocol.EventMutationReverted:
			skipped := 0
			if ev.Skipped {
				skipped = 1
			}
			ok = exec(revertMutation, ev.Partition, ev.Mutation, ev.Location, nullable(ev.Instance), int64(ev.Tick), skipped)
		}
		if !ok {
			continue
		}
		s.indexed.Add(1)
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
