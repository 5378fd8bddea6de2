// Package indexdb keeps a queryable sqlite index of what the agent did: task
// outcomes, decisions and snapshots. The JSONL logs stay the source of truth;
// the index drops writes rather than stall the tick loop.
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
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"idlecraft.ai/internal/persistence/snapshot"
	"idlecraft.ai/internal/sim/agent"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/tasks"
	"idlecraft.ai/internal/sim/tuning"
)

const defaultQueue = 16384

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropOutcome  atomic.Uint64
	dropDecision atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqOutcome reqKind = iota + 1
	reqDecision
	reqSnapshot
)

type req struct {
	kind reqKind

	outcome  tasks.Outcome
	decision agent.Decision
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick      uint64
	Path      string
	SessionID string
	Seed      int64
	SavedAt   time.Time
	Tasks     int
	BankItems int
}

// Stats reports queue pressure.
type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropOutcomeTotal  uint64
	DropDecisionTotal uint64
	DropSnapshotTotal uint64
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
		ch: make(chan req, defaultQueue),
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
		`CREATE TABLE IF NOT EXISTS outcomes (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			skill TEXT NOT NULL,
			activity TEXT NOT NULL,
			node TEXT NOT NULL,
			target INTEGER NOT NULL,
			done INTEGER NOT NULL,
			progress REAL NOT NULL,
			kind TEXT NOT NULL,
			reason TEXT,
			at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_kind ON outcomes(kind, seq);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			task_id TEXT,
			node TEXT,
			detail TEXT,
			at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_kind_tick ON decisions(kind, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			session_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			saved_at TEXT NOT NULL,
			tasks INTEGER NOT NULL,
			bank_items INTEGER NOT NULL
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
	if s == nil {
		return nil
	}
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
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropOutcomeTotal:  s.dropOutcome.Load(),
		DropDecisionTotal: s.dropDecision.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
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

// RecordOutcome is a tasks.OutcomeListener.
func (s *SQLiteIndex) RecordOutcome(o tasks.Outcome) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqOutcome, outcome: o}, &s.dropOutcome)
}

// RecordDecision implements agent.Recorder.
func (s *SQLiteIndex) RecordDecision(d agent.Decision) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqDecision, decision: d}, &s.dropDecision)
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	bankItems := 0
	for _, it := range snap.Bank {
		bankItems += it.Count
	}
	r := snapshotRow{
		Tick:      snap.Header.Tick,
		Path:      path,
		SessionID: snap.Header.SessionID.String(),
		Seed:      snap.Seed,
		SavedAt:   snap.Header.SavedAt,
		Tasks:     len(snap.Tasks),
		BankItems: bankItems,
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

// UpsertCatalogs stores the catalog files and the applied tuning alongside
// their digests so a session can be matched to its inputs.
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
	digests := cats.Digests()
	if configDir != "" {
		for name, digest := range digests {
			b, err := os.ReadFile(filepath.Join(configDir, name+".json"))
			if err != nil {
				continue
			}
			rows = append(rows, kv{name: name, digest: digest, json: b})
		}
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

	insertOutcome, _ := s.db.Prepare(`INSERT INTO outcomes(task_id,skill,activity,node,target,done,progress,kind,reason,at) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertDecision, _ := s.db.Prepare(`INSERT INTO decisions(tick,kind,task_id,node,detail,at) VALUES(?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,session_id,seed,saved_at,tasks,bank_items) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertOutcome, insertDecision, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
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
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqOutcome:
			o := r.outcome
			exec(insertOutcome, o.TaskID, o.Skill, o.ActivityID, o.NodeID, o.TargetCount, o.Done,
				o.Progress, string(o.Kind), o.Reason, o.At.UTC().Format(time.RFC3339Nano))
		case reqDecision:
			d := r.decision
			exec(insertDecision, int64(d.Tick), string(d.Kind), d.TaskID, d.Node, d.Detail,
				d.At.UTC().Format(time.RFC3339Nano))
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.SessionID, sn.Seed,
				sn.SavedAt.UTC().Format(time.RFC3339Nano), sn.Tasks, sn.BankItems)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
