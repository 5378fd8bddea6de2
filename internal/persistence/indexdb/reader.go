package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"
)

// Reader is a read-only handle for inspection. It opens its own connection so
// queries never wait on the writer's open transaction.
type Reader struct {
	db *sql.DB
}

type OutcomeRow struct {
	Seq      int64
	TaskID   string
	Skill    string
	Activity string
	Node     string
	Target   int
	Done     int
	Progress float64
	Kind     string
	Reason   string
	At       time.Time
}

type SnapshotRow struct {
	Tick      uint64
	Path      string
	SessionID string
	SavedAt   time.Time
	Tasks     int
}

func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA query_only=ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

// Outcomes returns the newest outcomes first. An empty kind matches all.
func (r *Reader) Outcomes(ctx context.Context, kind string, limit int) ([]OutcomeRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, task_id, skill, activity, node, target, done, progress, kind, COALESCE(reason,''), at
		FROM outcomes
		WHERE (? = '' OR kind = ?)
		ORDER BY seq DESC
		LIMIT ?`, kind, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRow
	for rows.Next() {
		var o OutcomeRow
		var at string
		if err := rows.Scan(&o.Seq, &o.TaskID, &o.Skill, &o.Activity, &o.Node, &o.Target,
			&o.Done, &o.Progress, &o.Kind, &o.Reason, &at); err != nil {
			return nil, err
		}
		o.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, o)
	}
	return out, rows.Err()
}

// SkipReasons counts skipped tasks by reason.
func (r *Reader) SkipReasons(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT COALESCE(reason,''), COUNT(*) FROM outcomes WHERE kind = 'skipped' GROUP BY reason`)
	if err != nil {
		return nil, fmt.Errorf("query skip reasons: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[reason] = n
	}
	return out, rows.Err()
}

// DecisionCounts counts decisions by kind.
func (r *Reader) DecisionCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM decisions GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// LatestSnapshot returns the most recent indexed snapshot.
func (r *Reader) LatestSnapshot(ctx context.Context) (SnapshotRow, bool, error) {
	var s SnapshotRow
	var savedAt string
	var tick int64
	err := r.db.QueryRowContext(ctx,
		`SELECT tick, path, session_id, saved_at, tasks FROM snapshots ORDER BY tick DESC LIMIT 1`).
		Scan(&tick, &s.Path, &s.SessionID, &savedAt, &s.Tasks)
	if err == sql.ErrNoRows {
		return s, false, nil
	}
	if err != nil {
		return s, false, err
	}
	s.Tick = uint64(tick)
	s.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
	return s, true, nil
}
