package runner

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"idlecraft.ai/internal/observerproto"
	"idlecraft.ai/internal/persistence/archive"
	"idlecraft.ai/internal/persistence/snapshot"
	"idlecraft.ai/internal/sim/simtest"
	"idlecraft.ai/internal/sim/tasks"
)

type framePublisher struct {
	mu     sync.Mutex
	frames map[uint64][]byte
}

func (p *framePublisher) Publish(tick uint64, b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frames == nil {
		p.frames = map[uint64][]byte{}
	}
	p.frames[tick] = b
}

func (p *framePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

type snapIndex struct {
	mu    sync.Mutex
	paths []string
}

func (s *snapIndex) RecordSnapshot(path string, _ snapshot.SnapshotV1) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
}

func TestStepPublishesAndSchedulesSnapshots(t *testing.T) {
	h := simtest.New(t, simtest.WithoutGenerator())
	h.AddTask("chop_tree", "trees_lumbridge", 3)
	pub := &framePublisher{}
	r := New(h.Agent, h.Clock, Options{SnapshotEvery: 10, SnapshotDir: t.TempDir(), Publisher: pub})

	var due []uint64
	for i := 0; i < 25; i++ {
		if r.Step(h.Interval()) {
			due = append(due, h.Agent.Ticks())
		}
	}
	assert.Equal(t, []uint64{10, 20}, due)
	assert.Equal(t, 25, pub.count())

	var msg observerproto.StateMsg
	require.NoError(t, json.Unmarshal(pub.frames[25], &msg))
	assert.Equal(t, "STATE", msg.Type)
	assert.Equal(t, uint64(25), msg.Agent.Tick)
	assert.Equal(t, "chop_tree", msg.Agent.TaskActivity)
}

func TestSnapshotResumeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	h := simtest.New(t, simtest.WithoutGenerator())
	h.AddTask("chop_tree", "trees_lumbridge", 20)
	idx := &snapIndex{}
	archiveDir := t.TempDir()
	r := New(h.Agent, h.Clock, Options{SnapshotDir: dir, Index: idx, ArchiveDir: archiveDir})

	h.RunUntil(2000, func() bool { return h.Ctx.Inventory.Count("logs") >= 2 })
	path, err := r.WriteSnapshot(h.Agent.ExportSnapshot(r.Session()))
	require.NoError(t, err)
	assert.Equal(t, []string{path}, idx.paths)
	meta, err := archive.ReadMeta(archiveDir, simtest.Epoch.Format("2006-01-02"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(path), meta.Snapshot)

	h2 := simtest.New(t, simtest.WithoutGenerator())
	r2 := New(h2.Agent, h2.Clock, Options{SnapshotDir: dir})
	ok, err := r2.Resume()
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, r.Session(), r2.Session())
	assert.Equal(t, h.Agent.Ticks(), h2.Agent.Ticks())
	assert.Equal(t, h.Ctx.Inventory.Snapshot(), h2.Ctx.Inventory.Snapshot())
	assert.Equal(t, h.Ctx.Levels.XP("woodcutting"), h2.Ctx.Levels.XP("woodcutting"))
	require.Equal(t, 1, h2.Ctx.Tasks.Len())
	resumed := h2.Ctx.Tasks.Tasks()[0]
	assert.Equal(t, h.Ctx.Tasks.Tasks()[0].Done, resumed.Done)
	assert.Equal(t, "trees_lumbridge", h2.Agent.CurrentNode())

	// The resumed agent picks the task up again and finishes it.
	h2.RunUntil(6000, func() bool { return len(h2.Outcomes) == 1 })
	assert.Equal(t, tasks.OutcomeCompleted, h2.Outcomes[0].Kind)
	assert.GreaterOrEqual(t, h2.Outcomes[0].Done, 20)
}

func TestResumeWithoutSnapshots(t *testing.T) {
	h := simtest.New(t, simtest.WithoutGenerator())
	r := New(h.Agent, h.Clock, Options{SnapshotDir: t.TempDir()})
	ok, err := r.Resume()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunStopsCleanlyAndWritesFinalSnapshot(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	dir := t.TempDir()
	h := simtest.New(t, simtest.WithoutGenerator())
	pub := &framePublisher{}
	r := New(h.Agent, h.Clock, Options{Interval: 5 * time.Millisecond, SnapshotDir: dir, Publisher: pub})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}

	latest := snapshot.Latest(dir)
	require.NotEmpty(t, latest)
	snap, err := snapshot.ReadSnapshot(latest)
	require.NoError(t, err)
	assert.Equal(t, r.Session(), snap.Header.SessionID)
	assert.Equal(t, filepath.Join(dir, snapshot.FileName(snap.Header.Tick)), latest)
}
