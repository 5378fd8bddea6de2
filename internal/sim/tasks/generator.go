package tasks

import (
	"math/rand"
	"sort"

	"idlecraft.ai/internal/sim/catalogs"
)

type LevelFunc func(skill string) int

// Generator keeps the work list topped up with tasks drawn from the activity
// catalog. The same seed yields the same sequence.
type Generator struct {
	cat        *catalogs.Catalogs
	level      LevelFunc
	rng        *rand.Rand
	queueLen   int
	minTarget  int
	maxTarget  int
	candidates []candidate
}

type candidate struct {
	act  catalogs.ActivityDef
	node string
	item string
}

func NewGenerator(cat *catalogs.Catalogs, level LevelFunc, seed int64, queueLen, minTarget, maxTarget int) *Generator {
	g := &Generator{
		cat:       cat,
		level:     level,
		rng:       rand.New(rand.NewSource(seed)),
		queueLen:  queueLen,
		minTarget: minTarget,
		maxTarget: maxTarget,
	}
	if g.maxTarget < g.minTarget {
		g.maxTarget = g.minTarget
	}

	ids := make([]string, 0, len(cat.Activities.ByID))
	for id := range cat.Activities.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		act := cat.Activities.ByID[id]
		node := firstNodeOffering(cat.Nodes, id)
		if node == "" {
			continue
		}
		item := act.PrimaryItem()
		if item == "" && act.RecipeID != "" {
			if r, ok := cat.Recipe(act.RecipeID); ok && len(r.Outputs) > 0 {
				item = r.Outputs[0].Item
			}
		}
		g.candidates = append(g.candidates, candidate{act: act, node: node, item: item})
	}
	return g
}

func firstNodeOffering(nodes catalogs.NodeCatalog, activity string) string {
	for _, id := range nodes.Order {
		for _, a := range nodes.ByID[id].Activities {
			if a == activity {
				return id
			}
		}
	}
	return ""
}

// Next draws one task among the activities the agent has the level for.
func (g *Generator) Next() (Task, bool) {
	var eligible []candidate
	for _, c := range g.candidates {
		if g.level == nil || g.level(c.act.Skill) >= c.act.Level {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return Task{}, false
	}
	c := eligible[g.rng.Intn(len(eligible))]
	return Task{
		Skill:       c.act.Skill,
		ActivityID:  c.act.ID,
		NodeID:      c.node,
		ItemID:      c.item,
		TargetCount: g.minTarget + g.rng.Intn(g.maxTarget-g.minTarget+1),
	}, true
}

// Fill adds tasks until the list holds queueLen entries. It returns how many
// were added.
func (g *Generator) Fill(m *Manager) int {
	added := 0
	for m.Len() < g.queueLen {
		t, ok := g.Next()
		if !ok {
			break
		}
		m.Add(t)
		added++
	}
	return added
}
