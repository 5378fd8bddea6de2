package agent

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"idlecraft.ai/internal/persistence/snapshot"
)

// ExportSnapshot captures the resumable session state. Task refs, timers and
// in-flight movement are not saved; a resumed agent re-decides from its node.
func (a *Agent) ExportSnapshot(session uuid.UUID) snapshot.SnapshotV1 {
	c := a.ctx
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:   snapshot.Version,
			SessionID: session,
			Tick:      a.ticks,
			SavedAt:   c.Clock.Now(),
		},
		Seed:        c.Tuning.Seed,
		Digests:     c.Catalogs.Digests(),
		Pos:         a.move.Pos,
		CurrentNode: a.move.CurrentNode,
		Inventory:   c.Inventory.Snapshot(),
		Bank:        c.Bank.Snapshot(),
		Skills:      c.Levels.Snapshot(),
		Tasks:       c.Tasks.Tasks(),
		NextTaskID:  c.Tasks.NextID(),
	}
}

// ImportSnapshot restores a session captured by ExportSnapshot.
func (a *Agent) ImportSnapshot(s snapshot.SnapshotV1) {
	c := a.ctx
	for name, want := range s.Digests {
		if got := c.Catalogs.Digests()[name]; got != want {
			a.log.Warn("catalog changed since snapshot", zap.String("catalog", name))
		}
	}
	c.Inventory.Restore(s.Inventory)
	c.Bank.Restore(s.Bank)
	c.Levels.Restore(s.Skills)
	c.Tasks.Restore(s.Tasks, s.NextTaskID)
	a.Restore(s.Pos, s.CurrentNode)
	a.ticks = s.Header.Tick
	a.log.Info("session resumed",
		zap.Stringer("session", s.Header.SessionID),
		zap.Uint64("tick", s.Header.Tick),
		zap.Int("tasks", len(s.Tasks)))
}
