// Package agent is the decision loop that drives one autonomous player. Each
// Tick reconciles the held task with the task list, issues at most one command
// (move, bank, start, skip) and then advances the movement, activity and
// banking state machines by one tick.
package agent

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"idlecraft.ai/internal/sim/agent/activity"
	"idlecraft.ai/internal/sim/agent/banking"
	"idlecraft.ai/internal/sim/agent/movement"
	"idlecraft.ai/internal/sim/clock"
	"idlecraft.ai/internal/sim/geom"
	"idlecraft.ai/internal/sim/tasks"
)

const terrainCacheSize = 256

type terrainSample struct {
	water bool
	at    time.Time
}

type Agent struct {
	ctx *Context
	env *agentEnv
	log *zap.Logger

	taskRef   tasks.Ref
	hasBanked bool
	// wantsBank keeps a banking errand alive across the walk to the bank.
	wantsBank bool

	cooldown  time.Duration
	syncTimer clock.Timer
	redecide  bool
	// Set when a guard stopped a walk this pass; the agent re-paths from
	// where it stands instead of being treated as off path.
	cancelled bool
	ticks     uint64

	move    movement.State
	act     activity.State
	banking banking.State

	terrain *lru.Cache[geom.Cell, terrainSample]
}

func New(ctx *Context) (*Agent, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}
	if ctx.Log == nil {
		ctx.Log = zap.NewNop()
	}
	cache, err := lru.New[geom.Cell, terrainSample](terrainCacheSize)
	if err != nil {
		return nil, err
	}
	a := &Agent{
		ctx:     ctx,
		log:     ctx.Log.Named("agent"),
		terrain: cache,
	}
	a.env = &agentEnv{a: a}
	a.move.Teleport(ctx.Tuning.SafeLocation)
	a.syncTimer.Start(ctx.Tuning.ProgressSync())
	if ctx.Metrics != nil {
		ctx.Tasks.OnOutcome(ctx.Metrics.ObserveOutcome)
	}
	return a, nil
}

func (a *Agent) Context() *Context { return a.ctx }

func (a *Agent) TaskRef() tasks.Ref            { return a.taskRef }
func (a *Agent) HasBankedForCurrentTask() bool { return a.hasBanked }
func (a *Agent) Cooldown() time.Duration       { return a.cooldown }
func (a *Agent) IsMoving() bool                { return a.move.IsMoving() }
func (a *Agent) IsPerformingActivity() bool    { return a.act.IsPerforming() }
func (a *Agent) IsBanking() bool               { return a.banking.Active() }
func (a *Agent) Position() geom.Vec            { return a.move.Pos }
func (a *Agent) CurrentNode() string           { return a.move.CurrentNode }
func (a *Agent) TargetNode() string            { return a.move.TargetNode }
func (a *Agent) Ticks() uint64                 { return a.ticks }

// Restore places the agent after a resume. Task refs are not persisted; the
// next decision selects afresh.
func (a *Agent) Restore(pos geom.Vec, node string) {
	a.move.Teleport(pos)
	if _, ok := a.ctx.World.Node(node); ok {
		a.move.CurrentNode = node
	}
	a.taskRef = tasks.Ref{}
	a.hasBanked = false
	a.wantsBank = false
	a.cooldown = 0
}

// Tick advances the agent by dt of simulated time.
func (a *Agent) Tick(dt time.Duration) {
	a.ticks++
	a.cooldown -= dt
	if a.syncTimer.Advance(dt) {
		a.ctx.Tasks.UpdateAllProgress()
		a.syncTimer.Start(a.ctx.Tuning.ProgressSync())
	}
	if a.cooldown <= 0 {
		a.decide()
	}
	a.advance(dt)
	a.ctx.Metrics.queued(a.ctx.Tasks.Len())
}

// advance moves each leaf state machine forward by one tick. Completions only
// zero the cooldown; they are acted on next tick.
func (a *Agent) advance(dt time.Duration) {
	if a.banking.Advance(dt) {
		a.cooldown = 0
	}
	movement.Advance(a.env, &a.move, dt, a.banking.Active())

	res := activity.Tick(a.env, &a.act)
	switch {
	case res.Overflow:
		a.log.Debug("rewards did not fit, activity stopped",
			zap.String("activity", res.ActivityID), zap.Int("free_slots", a.ctx.Inventory.FreeSlots()))
		a.ctx.Metrics.recovered("overflow")
		a.cooldown = 0
	case res.Completed:
		a.ctx.Metrics.completed(res.Skill)
		a.onActivityComplete()
	}
}

func (a *Agent) onActivityComplete() {
	ref := a.taskRef
	if t, err := a.ctx.Tasks.Get(ref); err == nil {
		_ = a.ctx.Tasks.SetProgress(ref, t.DerivedProgress())
	}
	if ref.IsZero() || !a.ctx.Tasks.IsCurrent(ref) || a.ctx.Tasks.FirstIncomplete() != ref {
		activity.Stop(a.env, &a.act)
		a.record(DecisionDrop, "", "task no longer current")
		a.clearTask()
		a.cooldown = 0
		return
	}
	if err := activity.Restart(a.env, &a.act, a.ctx.Tuning.Activity.DebugMultiplier); err != nil {
		a.log.Debug("activity not restarted", zap.Error(err))
		a.cooldown = 0
	}
}

func (a *Agent) clearTask() {
	a.taskRef = tasks.Ref{}
	a.hasBanked = false
}

// isWater samples terrain at pos, reusing a sample younger than the cache TTL.
func (a *Agent) isWater(pos geom.Vec) bool {
	now := a.ctx.Clock.Now()
	cell := geom.CellOf(pos)
	if s, ok := a.terrain.Get(cell); ok && now.Sub(s.at) < a.ctx.Tuning.TerrainCacheTTL() {
		return s.water
	}
	w := a.ctx.World.IsWater(pos)
	a.terrain.Add(cell, terrainSample{water: w, at: now})
	return w
}

func (a *Agent) speed(pos geom.Vec) float64 {
	m := a.ctx.Tuning.Movement
	base := m.LandSpeed
	if a.isWater(pos) {
		base = m.WaterSpeed
	}
	agility := 1 + m.AgilityBonus*float64(a.ctx.Levels.Level("agility")-1)
	mult := m.DebugMultiplier
	if mult <= 0 {
		mult = 1
	}
	return base * agility * mult
}

func (a *Agent) movementConfig() movement.Config {
	return movement.Config{
		PathPrep:        a.ctx.Tuning.PathPrep(),
		WaypointEpsilon: a.ctx.Tuning.Movement.WaypointEpsilon,
	}
}

func (a *Agent) record(kind DecisionKind, node, detail string) {
	d := Decision{
		At:     a.ctx.Clock.Now(),
		Tick:   a.ticks,
		Kind:   kind,
		Node:   node,
		Detail: detail,
	}
	if t, err := a.ctx.Tasks.Get(a.taskRef); err == nil {
		d.TaskID = t.ID
	}
	a.ctx.Metrics.decision(kind)
	a.log.Debug("decision",
		zap.String("kind", string(kind)), zap.String("task", d.TaskID),
		zap.String("node", node), zap.String("detail", detail))
	if a.ctx.Recorder != nil {
		a.ctx.Recorder.RecordDecision(d)
	}
}
