// Package runner drives an agent in real time: a fixed-rate ticker advances
// the simulation clock, ticks the agent, streams its state and writes
// periodic snapshots off the tick goroutine.
package runner

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"idlecraft.ai/internal/observerproto"
	"idlecraft.ai/internal/persistence/archive"
	"idlecraft.ai/internal/persistence/snapshot"
	"idlecraft.ai/internal/sim/agent"
	"idlecraft.ai/internal/sim/clock"
)

// Publisher receives one encoded state frame per tick.
type Publisher interface {
	Publish(tick uint64, b []byte)
}

// SnapshotIndex is told about every snapshot written.
type SnapshotIndex interface {
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

type Options struct {
	Interval      time.Duration
	SnapshotEvery uint64
	SnapshotDir   string
	Session       uuid.UUID

	// ArchiveDir receives the first snapshot of each simulated day.
	ArchiveDir string

	Publisher Publisher
	Index     SnapshotIndex
	Log       *zap.Logger
}

type Runner struct {
	agent *agent.Agent
	clk   *clock.Manual
	opts  Options
	log   *zap.Logger

	// Mirrors the agent's tick for readers off the tick goroutine.
	tick atomic.Uint64
}

func New(a *agent.Agent, clk *clock.Manual, opts Options) *Runner {
	if opts.Interval <= 0 {
		opts.Interval = 50 * time.Millisecond
	}
	if opts.Session == uuid.Nil {
		opts.Session = snapshot.NewSessionID()
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{agent: a, clk: clk, opts: opts, log: log.Named("runner")}
}

func (r *Runner) Session() uuid.UUID { return r.opts.Session }

// Tick is safe to call from any goroutine.
func (r *Runner) Tick() uint64 { return r.tick.Load() }

// Step advances the simulation by dt and reports whether a snapshot is due.
func (r *Runner) Step(dt time.Duration) bool {
	r.clk.Advance(dt)
	r.agent.Tick(dt)
	tick := r.agent.Ticks()
	r.tick.Store(tick)

	if r.opts.Publisher != nil {
		b, err := json.Marshal(observerproto.NewStateMsg(r.agent.View()))
		if err == nil {
			r.opts.Publisher.Publish(tick, b)
		}
	}
	return r.opts.SnapshotDir != "" && r.opts.SnapshotEvery > 0 && tick%r.opts.SnapshotEvery == 0
}

// Run ticks until ctx is cancelled, then writes a final snapshot.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	snaps := make(chan snapshot.SnapshotV1, 2)

	g.Go(func() error {
		defer close(snaps)
		ticker := time.NewTicker(r.opts.Interval)
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-gctx.Done():
				if r.opts.SnapshotDir != "" {
					snaps <- r.agent.ExportSnapshot(r.opts.Session)
				}
				return nil
			case now := <-ticker.C:
				dt := now.Sub(last)
				last = now
				// Clamp catch-up after a stall.
				if dt > 5*r.opts.Interval {
					dt = 5 * r.opts.Interval
				}
				if dt <= 0 {
					continue
				}
				if r.Step(dt) {
					select {
					case snaps <- r.agent.ExportSnapshot(r.opts.Session):
					default:
						r.log.Warn("snapshot writer behind, skipping", zap.Uint64("tick", r.agent.Ticks()))
					}
				}
			}
		}
	})
	g.Go(func() error {
		var firstErr error
		for snap := range snaps {
			if _, err := r.WriteSnapshot(snap); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})
	return g.Wait()
}

// WriteSnapshot persists snap under the snapshot dir and indexes it.
func (r *Runner) WriteSnapshot(snap snapshot.SnapshotV1) (string, error) {
	path := filepath.Join(r.opts.SnapshotDir, snapshot.FileName(snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		r.log.Error("snapshot failed", zap.String("path", path), zap.Error(err))
		return "", err
	}
	if r.opts.Index != nil {
		r.opts.Index.RecordSnapshot(path, snap)
	}
	r.log.Info("snapshot written", zap.String("path", path), zap.Uint64("tick", snap.Header.Tick))
	if r.opts.ArchiveDir != "" {
		day, archived, ok, err := archive.ArchiveDailySnapshot(r.opts.ArchiveDir, path, snap)
		if err != nil {
			r.log.Warn("archive snapshot", zap.String("path", path), zap.Error(err))
		} else if ok {
			r.log.Info("snapshot archived", zap.String("day", day), zap.String("path", archived))
		}
	}
	return path, nil
}

// Resume loads the newest snapshot from the snapshot dir, if any, and adopts
// its session id.
func (r *Runner) Resume() (bool, error) {
	if r.opts.SnapshotDir == "" {
		return false, nil
	}
	path := snapshot.Latest(r.opts.SnapshotDir)
	if path == "" {
		return false, nil
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return false, err
	}
	r.agent.ImportSnapshot(snap)
	r.opts.Session = snap.Header.SessionID
	r.tick.Store(r.agent.Ticks())
	return true, nil
}
