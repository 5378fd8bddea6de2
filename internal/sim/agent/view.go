package agent

import (
	"time"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/geom"
)

// View is a read-only copy of the agent's state for observers and snapshots.
type View struct {
	At   time.Time `json:"at"`
	Tick uint64    `json:"tick"`

	Pos         geom.Vec   `json:"pos"`
	Phase       string     `json:"phase"`
	CurrentNode string     `json:"current_node,omitempty"`
	TargetNode  string     `json:"target_node,omitempty"`
	Waypoints   []geom.Vec `json:"waypoints,omitempty"`

	Activity         string  `json:"activity,omitempty"`
	ActivityProgress float64 `json:"activity_progress,omitempty"`
	Banking          bool    `json:"banking"`

	TaskID       string  `json:"task_id,omitempty"`
	TaskRef      string  `json:"task_ref"`
	TaskActivity string  `json:"task_activity,omitempty"`
	TaskNode     string  `json:"task_node,omitempty"`
	TaskProgress float64 `json:"task_progress,omitempty"`
	Banked       bool    `json:"banked_for_task"`
	Queued       int     `json:"queued"`

	Inventory     []catalogs.ItemCount `json:"inventory"`
	InventoryUsed int                  `json:"inventory_used"`
	InventoryCap  int                  `json:"inventory_cap"`
	CooldownMs    int64                `json:"cooldown_ms"`
}

func (a *Agent) View() View {
	v := View{
		At:               a.ctx.Clock.Now(),
		Tick:             a.ticks,
		Pos:              a.move.Pos,
		Phase:            a.move.Phase().String(),
		CurrentNode:      a.move.CurrentNode,
		TargetNode:       a.move.TargetNode,
		Waypoints:        a.move.Remaining(),
		Activity:         a.act.ActivityID,
		ActivityProgress: a.act.Progress,
		Banking:          a.banking.Active(),
		TaskRef:          a.taskRef.String(),
		Banked:           a.hasBanked,
		Queued:           a.ctx.Tasks.Len(),
		Inventory:        a.ctx.Inventory.Snapshot(),
		InventoryUsed:    a.ctx.Inventory.UsedSlots(),
		InventoryCap:     a.ctx.Inventory.Capacity(),
		CooldownMs:       a.cooldown.Milliseconds(),
	}
	if t, err := a.ctx.Tasks.Get(a.taskRef); err == nil {
		v.TaskID = t.ID
		v.TaskActivity = t.ActivityID
		v.TaskNode = t.NodeID
		v.TaskProgress = t.Progress
	}
	return v
}
