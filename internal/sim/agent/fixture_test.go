package agent

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/clock"
	"idlecraft.ai/internal/sim/geom"
	"idlecraft.ai/internal/sim/tasks"
	"idlecraft.ai/internal/sim/tuning"
)

const tickDt = 50 * time.Millisecond

func fixtureCatalogs() *catalogs.Catalogs {
	c := &catalogs.Catalogs{}
	c.Items.ByID = map[string]catalogs.ItemDef{
		"logs":   {ID: "logs"},
		"raw":    {ID: "raw"},
		"cooked": {ID: "cooked"},
		"burnt":  {ID: "burnt"},
		"fish":   {ID: "fish"},
		"rod":    {ID: "rod", Buyable: true},
		"bait":   {ID: "bait", Stackable: true, Buyable: true},
		"gem":    {ID: "gem"},
		"junk":   {ID: "junk"},
	}
	c.Activities.ByID = map[string]catalogs.ActivityDef{
		"chop": {ID: "chop", Skill: "woodcutting", Level: 1, DurationMs: 2400, XP: 25,
			Rewards: []catalogs.RewardDef{{Item: "logs", Min: 1}}},
		"cook": {ID: "cook", Skill: "cooking", Level: 1, DurationMs: 1200, XP: 30, RecipeID: "cook"},
		"bait_fish": {ID: "bait_fish", Skill: "fishing", Level: 1, DurationMs: 1200, XP: 20,
			Rewards:  []catalogs.RewardDef{{Item: "fish", Min: 1}},
			Requires: []catalogs.ItemCount{{Item: "rod", Count: 1}},
			Consumes: []catalogs.ItemCount{{Item: "bait", Count: 1}}},
		"polish": {ID: "polish", Skill: "crafting", Level: 1, DurationMs: 1200,
			Rewards:  []catalogs.RewardDef{{Item: "junk", Min: 1}},
			Requires: []catalogs.ItemCount{{Item: "gem", Count: 1}}},
	}
	c.Recipes.ByID = map[string]catalogs.RecipeDef{
		"cook": {ID: "cook", Skill: "cooking", Level: 1,
			Inputs:  []catalogs.ItemCount{{Item: "raw", Count: 1}},
			Outputs: []catalogs.ItemCount{{Item: "cooked", Count: 1}}},
	}
	nodes := []catalogs.NodeDef{
		{ID: "bank", Type: catalogs.NodeBank, Pos: geom.Vec{X: 5, Y: 5}},
		{ID: "bank_far", Type: catalogs.NodeBank, Pos: geom.Vec{X: 105, Y: 5}},
		{ID: "tree", Type: catalogs.NodeResource, Pos: geom.Vec{X: 15, Y: 5}, Activities: []string{"chop"}},
		{ID: "range", Type: catalogs.NodeProcessing, Pos: geom.Vec{X: 25, Y: 5}, Activities: []string{"cook"}},
		{ID: "pond", Type: catalogs.NodeResource, Pos: geom.Vec{X: 5, Y: 15}, Activities: []string{"bait_fish"}},
		{ID: "bench", Type: catalogs.NodeProcessing, Pos: geom.Vec{X: 35, Y: 5}, Activities: []string{"polish"}},
		{ID: "island", Type: catalogs.NodeResource, Pos: geom.Vec{X: 60.5, Y: 40.5}, Activities: []string{"chop"}},
	}
	c.Nodes.ByID = map[string]catalogs.NodeDef{}
	for _, n := range nodes {
		c.Nodes.ByID[n.ID] = n
		c.Nodes.Order = append(c.Nodes.Order, n.ID)
	}
	c.Routes.Routes = []catalogs.RouteDef{
		{From: "bank", To: "tree", Waypoints: []geom.Vec{{X: 10, Y: 5}, {X: 15, Y: 5}}},
	}
	rect := func(x0, y0, x1, y1 float64) geom.Rect {
		return geom.Rect{Min: geom.Vec{X: x0, Y: y0}, Max: geom.Vec{X: x1, Y: y1}}
	}
	c.Terrain = catalogs.TerrainDef{
		Bounds: rect(0, 0, 120, 60),
		Water:  []geom.Rect{rect(0, 12, 10, 20)},
		Blocked: []geom.Rect{
			rect(58, 38, 63, 39), rect(58, 42, 63, 43),
			rect(58, 39, 59, 42), rect(62, 39, 63, 42),
		},
	}
	return c
}

type fixture struct {
	t       *testing.T
	clk     *clock.Manual
	ctx     *Context
	agent   *Agent
	logs    *observer.ObservedLogs
	metrics *Metrics
	outs    []tasks.Outcome
}

func newFixture(t *testing.T, mutate ...func(*tuning.Tuning)) *fixture {
	t.Helper()
	tun := tuning.Defaults()
	tun.SafeLocation = geom.Vec{X: 5, Y: 5}
	for _, m := range mutate {
		m(&tun)
	}
	core, logs := observer.New(zapcore.DebugLevel)
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))

	ctx, err := NewContext(fixtureCatalogs(), tun, clk, zap.New(core))
	require.NoError(t, err)
	ctx.Generator = nil
	ctx.Metrics = MustNewMetrics(prometheus.NewRegistry())

	f := &fixture{t: t, clk: clk, ctx: ctx, logs: logs, metrics: ctx.Metrics}
	ctx.Tasks.OnOutcome(func(o tasks.Outcome) { f.outs = append(f.outs, o) })

	f.agent, err = New(ctx)
	require.NoError(t, err)
	return f
}

func (f *fixture) addTask(activity, node string, target int) tasks.Ref {
	act := f.ctx.Catalogs.Activities.ByID[activity]
	item := act.PrimaryItem()
	if act.RecipeID != "" {
		item = f.ctx.Catalogs.Recipes.ByID[act.RecipeID].Outputs[0].Item
	}
	return f.ctx.Tasks.Add(tasks.Task{
		Skill:       act.Skill,
		ActivityID:  activity,
		NodeID:      node,
		ItemID:      item,
		TargetCount: target,
	})
}

func (f *fixture) tick() {
	f.clk.Advance(tickDt)
	f.agent.Tick(tickDt)
	f.checkInvariants()
}

func (f *fixture) checkInvariants() {
	f.t.Helper()
	a := f.agent
	wantMoving := len(a.move.Waypoints) > 0 && a.move.Index < len(a.move.Waypoints)
	require.Equal(f.t, wantMoving, a.IsMoving(), "isMoving invariant")
	if a.IsBanking() {
		require.False(f.t, a.IsMoving(), "moving while banking")
		require.False(f.t, a.IsPerformingActivity(), "activity while banking")
	}
	if a.IsMoving() {
		require.Empty(f.t, a.CurrentNode(), "current node while moving")
	}
}

// runUntil ticks until cond holds and fails after max ticks.
func (f *fixture) runUntil(max int, cond func() bool) int {
	f.t.Helper()
	for i := 1; i <= max; i++ {
		f.tick()
		if cond() {
			return i
		}
	}
	f.t.Fatalf("condition not met after %d ticks", max)
	return max
}

// placeAt puts the agent on node, idle, ready to decide.
func (f *fixture) placeAt(node string) {
	n, ok := f.ctx.World.Node(node)
	require.True(f.t, ok)
	f.agent.Restore(n.Pos, node)
}

func (f *fixture) fill(item string, n int) {
	require.True(f.t, f.ctx.Inventory.Add(item, n))
}
