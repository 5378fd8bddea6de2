package agent

import (
	"time"

	"go.uber.org/zap"

	"idlecraft.ai/internal/sim/agent/activity"
	"idlecraft.ai/internal/sim/agent/banking"
	"idlecraft.ai/internal/sim/agent/movement"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/geom"
	"idlecraft.ai/internal/sim/inventory"
	"idlecraft.ai/internal/sim/skills"
	"idlecraft.ai/internal/sim/tasks"
	"idlecraft.ai/internal/sim/worldmap"
)

// agentEnv adapts the agent to the env interfaces of its state machines.
type agentEnv struct {
	a *Agent
}

var (
	_ movement.Env = (*agentEnv)(nil)
	_ activity.Env = (*agentEnv)(nil)
	_ banking.Env  = (*agentEnv)(nil)
)

func (e *agentEnv) Inventory() *inventory.Inventory { return e.a.ctx.Inventory }
func (e *agentEnv) Bank() *inventory.Bank           { return e.a.ctx.Bank }
func (e *agentEnv) Catalogs() *catalogs.Catalogs    { return e.a.ctx.Catalogs }
func (e *agentEnv) Level(skill string) int          { return e.a.ctx.Levels.Level(skill) }
func (e *agentEnv) Now() time.Time                  { return e.a.ctx.Clock.Now() }
func (e *agentEnv) Rand() skills.Rand               { return e.a.ctx.Rand }
func (e *agentEnv) Logger() *zap.Logger             { return e.a.log }

func (e *agentEnv) Node(id string) (worldmap.Node, bool) { return e.a.ctx.World.Node(id) }

func (e *agentEnv) NodesOfType(t catalogs.NodeType) []worldmap.Node {
	return e.a.ctx.World.NodesOfType(t)
}

func (e *agentEnv) BuildWaypointPath(from, to string) ([]geom.Vec, bool) {
	return e.a.ctx.Nav.BuildWaypointPath(from, to)
}

func (e *agentEnv) FindPath(from, to geom.Vec) ([]geom.Vec, error) {
	return e.a.ctx.Nav.FindPath(from, to)
}

func (e *agentEnv) Speed(pos geom.Vec) float64 { return e.a.speed(pos) }

func (e *agentEnv) OnArrive(node string) {
	e.a.log.Debug("arrived", zap.String("node", node))
	e.a.cooldown = 0
}

func (e *agentEnv) Position() geom.Vec  { return e.a.move.Pos }
func (e *agentEnv) CurrentNode() string { return e.a.move.CurrentNode }

func (e *agentEnv) Skill(id string) (skills.Skill, bool) { return e.a.ctx.Skills.Get(id) }

func (e *agentEnv) GrantXP(skill string, xp float64) {
	if gained := e.a.ctx.Levels.GrantXP(skill, xp); gained > 0 {
		e.a.log.Info("level up", zap.String("skill", skill), zap.Int("level", e.a.ctx.Levels.Level(skill)))
	}
}

func (e *agentEnv) HeldTask() *tasks.Task {
	t, err := e.a.ctx.Tasks.Get(e.a.taskRef)
	if err != nil {
		return nil
	}
	return t
}

func (e *agentEnv) HeldSkill() (skills.Skill, bool) {
	t := e.HeldTask()
	if t == nil {
		return nil, false
	}
	return e.a.ctx.Skills.Get(t.Skill)
}

func (e *agentEnv) MoveTo(node string) error { return e.a.moveTo(node) }

func (e *agentEnv) SyncProgress() { e.a.ctx.Tasks.UpdateAllProgress() }

func (e *agentEnv) TaskStillCurrent() bool { return e.a.ctx.Tasks.IsCurrent(e.a.taskRef) }

func (e *agentEnv) PreparePath(node string) error {
	return movement.Prepare(e, &e.a.move, node)
}
