package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/inventory"
	"idlecraft.ai/internal/sim/skills"
	"idlecraft.ai/internal/sim/tasks"
)

type fixedRand struct{}

func (fixedRand) Float64() float64 { return 0.99 }
func (fixedRand) Intn(int) int     { return 0 }

type stubEnv struct {
	inv    *inventory.Inventory
	bank   *inventory.Bank
	cat    *catalogs.Catalogs
	levels *skills.Levels
	reg    *skills.Registry
	now    time.Time
	task   *tasks.Task
}

func (e *stubEnv) Inventory() *inventory.Inventory      { return e.inv }
func (e *stubEnv) Bank() *inventory.Bank                { return e.bank }
func (e *stubEnv) Catalogs() *catalogs.Catalogs         { return e.cat }
func (e *stubEnv) Level(s string) int                   { return e.levels.Level(s) }
func (e *stubEnv) Now() time.Time                       { return e.now }
func (e *stubEnv) Rand() skills.Rand                    { return fixedRand{} }
func (e *stubEnv) Skill(id string) (skills.Skill, bool) { return e.reg.Get(id) }
func (e *stubEnv) GrantXP(s string, xp float64)         { e.levels.GrantXP(s, xp) }
func (e *stubEnv) HeldTask() *tasks.Task                { return e.task }

func newStubEnv(capacity int) *stubEnv {
	c := &catalogs.Catalogs{}
	c.Items.ByID = map[string]catalogs.ItemDef{"bait": {ID: "bait", Stackable: true}}
	c.Activities.ByID = map[string]catalogs.ActivityDef{
		"chop": {ID: "chop", Skill: "woodcutting", Level: 1, DurationMs: 1000, XP: 25,
			Rewards: []catalogs.RewardDef{{Item: "logs", Min: 1}}},
		"oak": {ID: "oak", Skill: "woodcutting", Level: 15, DurationMs: 1000,
			Rewards: []catalogs.RewardDef{{Item: "oak_logs", Min: 1}}},
		"bait_fish": {ID: "bait_fish", Skill: "fishing", Level: 1, DurationMs: 1000, XP: 20,
			Rewards:  []catalogs.RewardDef{{Item: "sardine", Min: 1}},
			Requires: []catalogs.ItemCount{{Item: "rod", Count: 1}},
			Consumes: []catalogs.ItemCount{{Item: "bait", Count: 1}}},
		"cook":  {ID: "cook", Skill: "cooking", Level: 1, DurationMs: 1000, XP: 30, RecipeID: "cook"},
		"dance": {ID: "dance", Skill: "dancing", Level: 1, DurationMs: 1000},
	}
	c.Recipes.ByID = map[string]catalogs.RecipeDef{
		"cook": {ID: "cook", Skill: "cooking", Level: 1,
			Inputs:  []catalogs.ItemCount{{Item: "raw", Count: 1}},
			Outputs: []catalogs.ItemCount{{Item: "cooked", Count: 1}}},
	}
	return &stubEnv{
		inv:    inventory.FromCatalog(capacity, c.Items),
		bank:   inventory.NewBank(),
		cat:    c,
		levels: skills.NewLevels(),
		reg:    skills.DefaultRegistry(),
		now:    time.Unix(500, 0),
	}
}

func TestStartFailuresLeaveStateIdle(t *testing.T) {
	env := newStubEnv(28)
	var s State

	assert.ErrorIs(t, Start(env, &s, "nope", 1), ErrUnknownActivity)
	assert.ErrorIs(t, Start(env, &s, "dance", 1), ErrUnknownSkill)
	assert.ErrorIs(t, Start(env, &s, "oak", 1), ErrRequirement)
	assert.ErrorIs(t, Start(env, &s, "bait_fish", 1), ErrMissingItems)
	assert.ErrorIs(t, Start(env, &s, "cook", 1), ErrMissingItems, "recipe inputs count as required")
	assert.False(t, s.IsPerforming())

	env.inv.Add("rod", 1)
	env.inv.Add("bait", 5)
	require.NoError(t, Start(env, &s, "bait_fish", 1))
	assert.True(t, s.IsPerforming())
	assert.ErrorIs(t, Start(env, &s, "chop", 1), ErrRejected)
}

func TestProcessingGuardRejectsDuplicateStart(t *testing.T) {
	env := newStubEnv(28)
	env.inv.Add("raw", 3)
	var a, b State
	require.NoError(t, Start(env, &a, "cook", 1))
	assert.ErrorIs(t, Start(env, &b, "cook", 1), ErrRejected)
	assert.False(t, b.IsPerforming())

	Stop(env, &a)
	require.NoError(t, Start(env, &b, "cook", 1))
}

func TestTickCompletesAndGrantsRewards(t *testing.T) {
	env := newStubEnv(28)
	env.task = &tasks.Task{ItemID: "logs", TargetCount: 10}
	var s State
	require.NoError(t, Start(env, &s, "chop", 2))
	assert.Equal(t, 500*time.Millisecond, s.Duration, "speed multiplier halves the duration")

	env.now = env.now.Add(250 * time.Millisecond)
	res := Tick(env, &s)
	assert.False(t, res.Completed)
	assert.InDelta(t, 0.5, s.Progress, 1e-9)

	env.now = env.now.Add(250 * time.Millisecond)
	res = Tick(env, &s)
	require.True(t, res.Completed)
	assert.Equal(t, 25.0, res.XP)
	assert.Equal(t, 1, env.inv.Count("logs"))
	assert.Equal(t, 1, env.task.Done)
	assert.True(t, s.IsPerforming(), "caller decides to restart or stop")

	assert.Equal(t, Result{}, Tick(env, &s), "completion fires once")

	require.NoError(t, Restart(env, &s, 1))
	assert.Equal(t, env.now, s.StartTime)
	assert.Zero(t, s.Progress)
}

func TestTickConsumesAndRestartNeedsConsumables(t *testing.T) {
	env := newStubEnv(28)
	env.inv.Add("rod", 1)
	env.inv.Add("bait", 1)
	var s State
	require.NoError(t, Start(env, &s, "bait_fish", 1))
	env.now = env.now.Add(time.Second)
	require.True(t, Tick(env, &s).Completed)
	assert.Equal(t, 0, env.inv.Count("bait"))
	assert.Equal(t, 1, env.inv.Count("rod"), "tools are not consumed")

	assert.ErrorIs(t, Restart(env, &s, 1), ErrMissingItems)
	assert.False(t, s.IsPerforming())
}

func TestTickOverflowStops(t *testing.T) {
	env := newStubEnv(2)
	env.inv.Add("junk", 2)
	var s State
	require.NoError(t, Start(env, &s, "chop", 1))
	env.now = env.now.Add(time.Second)

	res := Tick(env, &s)
	assert.True(t, res.Overflow)
	assert.False(t, res.Completed)
	assert.False(t, s.IsPerforming())
	assert.Equal(t, 0, env.inv.Count("logs"))
	assert.Zero(t, env.levels.XP("woodcutting"))
}

func TestStopResetsProcessingGuard(t *testing.T) {
	env := newStubEnv(28)
	env.inv.Add("raw", 1)
	var s State
	require.NoError(t, Start(env, &s, "cook", 1))
	sk, _ := env.reg.Get("cooking")
	p := sk.(*skills.Processing)
	assert.Equal(t, skills.GuardInProgress, p.Guard().State())
	Stop(env, &s)
	assert.Equal(t, skills.GuardIdle, p.Guard().State())
	Stop(env, &s)
}
