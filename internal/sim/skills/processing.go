package skills

import (
	"time"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/tasks"
)

// Processing turns recipe inputs into outputs. It decides banking itself,
// loads inputs at the bank, and counts task progress in inputs consumed.
type Processing struct {
	Base
	guard StartGuard
}

func NewProcessing(id string) *Processing {
	return &Processing{Base: Base{SkillID: id}}
}

func (*Processing) IsProcessing() bool              { return true }
func (*Processing) RequiresBankingBeforeTask() bool { return true }

func (p *Processing) Guard() *StartGuard { return &p.guard }

func recipeFor(env Env, t *tasks.Task) (catalogs.RecipeDef, bool) {
	act, ok := env.Catalogs().Activity(t.ActivityID)
	if !ok || act.RecipeID == "" {
		return catalogs.RecipeDef{}, false
	}
	return env.Catalogs().Recipe(act.RecipeID)
}

func (p *Processing) HasMaterialsForCurrentTask(env Env, t *tasks.Task) bool {
	r, ok := recipeFor(env, t)
	if !ok {
		return false
	}
	for _, in := range r.Inputs {
		if !env.Inventory().Has(in.Item, in.Count) {
			return false
		}
	}
	return true
}

func (p *Processing) MaterialsNeededForTask(env Env, t *tasks.Task) []catalogs.ItemCount {
	r, ok := recipeFor(env, t)
	if !ok {
		return nil
	}
	return append([]catalogs.ItemCount(nil), r.Inputs...)
}

func bankHasUnit(env Env, r catalogs.RecipeDef) bool {
	for _, in := range r.Inputs {
		if !env.Bank().Has(in.Item, in.Count) {
			return false
		}
	}
	return true
}

// NeedsBankingForTask: bank only when the inventory cannot cover the next unit
// and the bank can.
func (p *Processing) NeedsBankingForTask(env Env, t *tasks.Task) (bool, bool) {
	r, ok := recipeFor(env, t)
	if !ok {
		return false, true
	}
	if p.HasMaterialsForCurrentTask(env, t) {
		return false, true
	}
	return bankHasUnit(env, r), true
}

func (p *Processing) CanContinueTask(env Env, t *tasks.Task) bool {
	r, ok := recipeFor(env, t)
	if !ok || env.Level(p.SkillID) < r.Level {
		return false
	}
	return p.HasMaterialsForCurrentTask(env, t) || bankHasUnit(env, r)
}

// HandleBanking deposits everything, then withdraws as many whole units of
// input as the task still needs and the inventory can hold.
func (p *Processing) HandleBanking(env Env, t *tasks.Task) BankingResult {
	r, ok := recipeFor(env, t)
	if !ok {
		return BankingFailed
	}
	inv, bank := env.Inventory(), env.Bank()
	inv.DepositAll(bank)

	slotsPerUnit := 0
	for _, in := range r.Inputs {
		slotsPerUnit += in.Count
	}
	if slotsPerUnit == 0 {
		return BankingFailed
	}
	units := inv.FreeSlots() / slotsPerUnit
	if rem := t.Remaining(); rem < units {
		units = rem
	}
	for _, in := range r.Inputs {
		if avail := bank.Count(in.Item) / in.Count; avail < units {
			units = avail
		}
	}
	if units <= 0 {
		return BankingFailed
	}
	for _, in := range r.Inputs {
		inv.WithdrawUpTo(bank, in.Item, in.Count*units)
	}
	return BankingOK
}

func (p *Processing) BeforeActivityStart(env Env, act catalogs.ActivityDef) bool {
	return p.guard.TryStart(act.ID, env.Now())
}

func (p *Processing) OnActivityStarted(_ Env, act catalogs.ActivityDef, deadline time.Time) {
	p.guard.Commit(act.ID, deadline)
}

// ProcessRewards consumes one unit of inputs. If the outputs would not fit the
// inputs are put back and the outputs still returned, so the caller sees the
// overflow.
func (p *Processing) ProcessRewards(env Env, act catalogs.ActivityDef, level int) []catalogs.ItemCount {
	r, ok := env.Catalogs().Recipe(act.RecipeID)
	if !ok {
		return nil
	}
	inv := env.Inventory()
	for _, in := range r.Inputs {
		if !inv.Has(in.Item, in.Count) {
			return nil
		}
	}
	for _, in := range r.Inputs {
		inv.Remove(in.Item, in.Count)
	}

	out := append([]catalogs.ItemCount(nil), r.Outputs...)
	if r.FailItem != "" && env.Rand().Float64() < failChance(r, level) {
		out = []catalogs.ItemCount{{Item: r.FailItem, Count: 1}}
	}
	if !inv.CanAdd(out) {
		inv.AddAll(r.Inputs)
	}
	return out
}

// failChance falls linearly from FailChance at the recipe level to zero at SafeLevel.
func failChance(r catalogs.RecipeDef, level int) float64 {
	if r.FailChance <= 0 {
		return 0
	}
	if r.SafeLevel <= r.Level {
		return r.FailChance
	}
	if level >= r.SafeLevel {
		return 0
	}
	span := float64(r.SafeLevel - r.Level)
	over := float64(level - r.Level)
	if over < 0 {
		over = 0
	}
	return r.FailChance * (1 - over/span)
}

// ShouldGrantXP is false for a failed attempt.
func (p *Processing) ShouldGrantXP(env Env, act catalogs.ActivityDef, rewards []catalogs.ItemCount) bool {
	r, ok := env.Catalogs().Recipe(act.RecipeID)
	if !ok || len(rewards) == 0 {
		return false
	}
	return r.FailItem == "" || rewards[0].Item != r.FailItem
}

// OnActivityComplete counts one consumed unit whatever the outcome.
func (p *Processing) OnActivityComplete(_ Env, t *tasks.Task, _ catalogs.ActivityDef, rewards []catalogs.ItemCount) {
	p.guard.Reset()
	if t != nil && len(rewards) > 0 {
		t.Done++
	}
}

func (p *Processing) OnActivityStopped(Env, catalogs.ActivityDef) {
	p.guard.Reset()
}
