// Package skills implements the contract every skill exposes to the agent: how
// it banks, whether a task can continue, and what an activity yields.
package skills

import (
	"time"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/inventory"
	"idlecraft.ai/internal/sim/tasks"
)

type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Env is the slice of agent state a skill may read or mutate.
type Env interface {
	Inventory() *inventory.Inventory
	Bank() *inventory.Bank
	Catalogs() *catalogs.Catalogs
	Level(skill string) int
	Now() time.Time
	Rand() Rand
}

type BankingResult int

const (
	// BankingDefault means the skill has no handler; the coordinator deposits everything.
	BankingDefault BankingResult = iota
	BankingOK
	BankingFailed
)

func (r BankingResult) String() string {
	switch r {
	case BankingOK:
		return "ok"
	case BankingFailed:
		return "failed"
	default:
		return "default"
	}
}

type Skill interface {
	ID() string
	IsProcessing() bool
	RequiresBankingBeforeTask() bool

	// NeedsBankingForTask returns decided=false when the skill has no opinion and
	// the inventory-full fallback applies. A decided answer is final.
	NeedsBankingForTask(env Env, t *tasks.Task) (needs, decided bool)
	CanContinueTask(env Env, t *tasks.Task) bool
	HandleBanking(env Env, t *tasks.Task) BankingResult
	HasMaterialsForCurrentTask(env Env, t *tasks.Task) bool
	// MaterialsNeededForTask lists the inputs for one unit of work, nil when none.
	MaterialsNeededForTask(env Env, t *tasks.Task) []catalogs.ItemCount

	BeforeActivityStart(env Env, act catalogs.ActivityDef) bool
	OnActivityStarted(env Env, act catalogs.ActivityDef, deadline time.Time)
	ProcessRewards(env Env, act catalogs.ActivityDef, level int) []catalogs.ItemCount
	ShouldGrantXP(env Env, act catalogs.ActivityDef, rewards []catalogs.ItemCount) bool
	XPToGrant(env Env, act catalogs.ActivityDef, rewards []catalogs.ItemCount) float64
	Duration(act catalogs.ActivityDef, level int) time.Duration
	OnActivityComplete(env Env, t *tasks.Task, act catalogs.ActivityDef, rewards []catalogs.ItemCount)
	OnActivityStopped(env Env, act catalogs.ActivityDef)
}

// Base supplies the gathering-style defaults. Embed it and override what differs.
type Base struct {
	SkillID string
}

func (b Base) ID() string                                                 { return b.SkillID }
func (Base) IsProcessing() bool                                           { return false }
func (Base) RequiresBankingBeforeTask() bool                              { return false }
func (Base) HandleBanking(Env, *tasks.Task) BankingResult                 { return BankingDefault }
func (Base) HasMaterialsForCurrentTask(Env, *tasks.Task) bool             { return true }
func (Base) MaterialsNeededForTask(Env, *tasks.Task) []catalogs.ItemCount { return nil }
func (Base) BeforeActivityStart(Env, catalogs.ActivityDef) bool           { return true }
func (Base) OnActivityStarted(Env, catalogs.ActivityDef, time.Time)       {}
func (Base) OnActivityStopped(Env, catalogs.ActivityDef)                  {}

func (Base) NeedsBankingForTask(Env, *tasks.Task) (bool, bool) { return false, false }

func (b Base) CanContinueTask(env Env, t *tasks.Task) bool {
	act, ok := env.Catalogs().Activity(t.ActivityID)
	return ok && env.Level(act.Skill) >= act.Level
}

// ProcessRewards rolls the activity's reward table.
func (Base) ProcessRewards(env Env, act catalogs.ActivityDef, _ int) []catalogs.ItemCount {
	var out []catalogs.ItemCount
	for _, r := range act.Rewards {
		if r.Chance > 0 && env.Rand().Float64() >= r.Chance {
			continue
		}
		n := r.Min
		if r.Max > r.Min {
			n += env.Rand().Intn(r.Max - r.Min + 1)
		}
		if n > 0 {
			out = append(out, catalogs.ItemCount{Item: r.Item, Count: n})
		}
	}
	return out
}

func (Base) ShouldGrantXP(_ Env, act catalogs.ActivityDef, rewards []catalogs.ItemCount) bool {
	return len(rewards) > 0 || len(act.Rewards) == 0
}

func (Base) XPToGrant(_ Env, act catalogs.ActivityDef, _ []catalogs.ItemCount) float64 {
	return act.XP
}

func (Base) Duration(act catalogs.ActivityDef, _ int) time.Duration {
	return time.Duration(act.DurationMs) * time.Millisecond
}

// OnActivityComplete credits the task with the rewards matching its item.
func (Base) OnActivityComplete(_ Env, t *tasks.Task, _ catalogs.ActivityDef, rewards []catalogs.ItemCount) {
	if t == nil {
		return
	}
	for _, r := range rewards {
		if r.Item == t.ItemID {
			t.Done += r.Count
		}
	}
}
