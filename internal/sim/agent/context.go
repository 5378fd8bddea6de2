package agent

import (
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/clock"
	"idlecraft.ai/internal/sim/geom"
	"idlecraft.ai/internal/sim/inventory"
	"idlecraft.ai/internal/sim/nav"
	"idlecraft.ai/internal/sim/skills"
	"idlecraft.ai/internal/sim/tasks"
	"idlecraft.ai/internal/sim/tuning"
	"idlecraft.ai/internal/sim/worldmap"
)

// Context carries every collaborator the agent touches. It is built once per
// session and only the agent's tick goroutine mutates what it points to.
type Context struct {
	Catalogs  *catalogs.Catalogs
	World     *worldmap.Map
	Nav       *nav.Navigator
	Skills    *skills.Registry
	Tasks     *tasks.Manager
	Generator *tasks.Generator
	Inventory *inventory.Inventory
	Bank      *inventory.Bank
	Levels    *skills.Levels
	Clock     clock.Clock
	Rand      *rand.Rand
	Tuning    tuning.Tuning
	Log       *zap.Logger

	// Optional.
	Metrics  *Metrics
	Recorder Recorder
}

func (c *Context) validate() error {
	var errs []error
	need := func(ok bool, name string) {
		if !ok {
			errs = append(errs, fmt.Errorf("agent: context missing %s", name))
		}
	}
	need(c.Catalogs != nil, "catalogs")
	need(c.World != nil, "world")
	need(c.Nav != nil, "nav")
	need(c.Skills != nil, "skills")
	need(c.Tasks != nil, "tasks")
	need(c.Inventory != nil, "inventory")
	need(c.Bank != nil, "bank")
	need(c.Levels != nil, "levels")
	need(c.Clock != nil, "clock")
	need(c.Rand != nil, "rand")
	if c.World != nil {
		if _, ok := c.World.NearestNode(c.Tuning.SafeLocation, c.Tuning.Movement.NodeTolerance); !ok {
			errs = append(errs, fmt.Errorf("%w: %v", ErrSafeLocation, c.Tuning.SafeLocation))
		}
	}
	return errors.Join(errs...)
}

// ErrSafeLocation means the off-path recovery target is not at any node, so a
// teleported agent could never be tracked again.
var ErrSafeLocation = errors.New("agent: safe_location is not within node_tolerance of a node")

// NewContext wires the standard collaborators from loaded data.
func NewContext(cat *catalogs.Catalogs, tun tuning.Tuning, clk clock.Clock, log *zap.Logger) (*Context, error) {
	world, err := worldmap.New(cat)
	if err != nil {
		return nil, err
	}
	if _, ok := world.NearestNode(tun.SafeLocation, tun.Movement.NodeTolerance); !ok {
		return nil, fmt.Errorf("%w: %v", ErrSafeLocation, tun.SafeLocation)
	}
	if log == nil {
		log = zap.NewNop()
	}
	levels := skills.NewLevels()
	reg := skills.DefaultRegistry()
	c := &Context{
		Catalogs:  cat,
		World:     world,
		Nav:       nav.New(world, cat.Routes.Routes, nodePos(world)),
		Skills:    reg,
		Inventory: inventory.FromCatalog(tun.Inventory.Capacity, cat.Items),
		Bank:      inventory.NewBank(),
		Levels:    levels,
		Clock:     clk,
		Rand:      rand.New(rand.NewSource(tun.Seed)),
		Tuning:    tun,
		Log:       log,
	}
	c.Tasks = tasks.NewManager(clk, c.taskPossible)
	c.Generator = tasks.NewGenerator(cat, levels.Level, tun.Seed+1,
		tun.Tasks.QueueLength, tun.Tasks.MinTarget, tun.Tasks.MaxTarget)
	return c, nil
}

func nodePos(w *worldmap.Map) nav.NodeLookup {
	return func(id string) (geom.Vec, bool) {
		n, ok := w.Node(id)
		return n.Pos, ok
	}
}

// taskPossible: the node exists and offers the activity, the skill is known and
// the level requirement is met.
func (c *Context) taskPossible(t *tasks.Task) bool {
	if t.TargetCount <= 0 {
		return false
	}
	node, ok := c.World.Node(t.NodeID)
	if !ok {
		return false
	}
	offered := false
	for _, a := range node.Activities {
		if a == t.ActivityID {
			offered = true
			break
		}
	}
	if !offered {
		return false
	}
	act, ok := c.Catalogs.Activity(t.ActivityID)
	if !ok {
		return false
	}
	if _, ok := c.Skills.Get(act.Skill); !ok {
		return false
	}
	return c.Levels.Level(act.Skill) >= act.Level
}
