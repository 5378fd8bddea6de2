package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/geom"
	"idlecraft.ai/internal/sim/skills"
	"idlecraft.ai/internal/sim/tasks"
)

func sample(tick uint64) SnapshotV1 {
	return SnapshotV1{
		Header: Header{
			Version:   Version,
			SessionID: NewSessionID(),
			Tick:      tick,
			SavedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Seed:        42,
		Digests:     map[string]string{"items": "abc"},
		Pos:         geom.Vec{X: 15, Y: 5},
		CurrentNode: "tree",
		Inventory:   []catalogs.ItemCount{{Item: "logs", Count: 3}},
		Bank:        []catalogs.ItemCount{{Item: "raw", Count: 40}},
		Skills:      []skills.SkillXP{{Skill: "woodcutting", XP: 250}},
		Tasks: []tasks.Task{{
			ID: "task-000004", Skill: "woodcutting", ActivityID: "chop", NodeID: "tree",
			ItemID: "logs", TargetCount: 10, Done: 3, Progress: 0.3,
			CreatedAt: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
		}},
		NextTaskID: 5,
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", FileName(1200))
	want := sample(1200)
	require.NoError(t, WriteSnapshot(path, want))

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, want.Header.SessionID, h.SessionID)
	assert.Equal(t, uint64(1200), h.Tick)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestReadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName(1))
	s := sample(1)
	s.Header.Version = 9
	require.NoError(t, WriteSnapshot(path, s))

	_, err := ReadSnapshot(path)
	assert.ErrorIs(t, err, ErrVersion)
}

func TestLatestPicksHighestTick(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, Latest(dir))
	for _, tick := range []uint64{1200, 12000, 2400} {
		require.NoError(t, WriteSnapshot(filepath.Join(dir, FileName(tick)), sample(tick)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.snap.zst"), []byte("x"), 0o644))

	assert.Equal(t, filepath.Join(dir, "12000.snap.zst"), Latest(dir))
}
