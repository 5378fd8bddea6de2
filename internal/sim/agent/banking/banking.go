// Package banking decides when and where the agent banks and runs the
// deposit/withdraw sequence once it is standing on a bank.
package banking

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/clock"
	"idlecraft.ai/internal/sim/geom"
	"idlecraft.ai/internal/sim/skills"
	"idlecraft.ai/internal/sim/tasks"
	"idlecraft.ai/internal/sim/worldmap"
)

var ErrNoReachableBank = errors.New("banking: no reachable bank")

type Env interface {
	skills.Env
	Logger() *zap.Logger

	Node(id string) (worldmap.Node, bool)
	NodesOfType(t catalogs.NodeType) []worldmap.Node
	Position() geom.Vec
	CurrentNode() string

	HeldTask() *tasks.Task
	HeldSkill() (skills.Skill, bool)

	MoveTo(node string) error
	// SyncProgress re-derives task progress after items moved.
	SyncProgress()
	// TaskStillCurrent reports whether the held task survived the sync.
	TaskStillCurrent() bool
	PreparePath(node string) error
}

type State struct {
	IsBanking bool
	Bank      string
	Timer     clock.Timer
}

func (s *State) Active() bool { return s.IsBanking }

// Advance runs the banking animation timer and reports whether it just ended.
func (s *State) Advance(dt time.Duration) bool {
	if !s.IsBanking {
		return false
	}
	if s.Timer.Advance(dt) {
		s.IsBanking = false
		return true
	}
	return false
}

func (s *State) Cancel() {
	s.IsBanking = false
	s.Timer.Stop()
}

// NeedsBanking asks the held skill first. A skill that decides is final; only
// an undecided skill falls back to the inventory being full.
func NeedsBanking(env Env) bool {
	if t := env.HeldTask(); t != nil {
		if sk, ok := env.HeldSkill(); ok {
			if needs, decided := sk.NeedsBankingForTask(env, t); decided {
				return needs
			}
		}
	}
	return env.Inventory().IsFull()
}

// Trip is where GoToBank sent the agent.
type Trip struct {
	Bank     string
	Fallback string
	// AtBank is set when the agent was already on a bank and no walk was needed.
	AtBank bool
}

// ChooseBank picks the primary and fallback banks for the agent's situation.
func ChooseBank(env Env) (primary, fallback string) {
	type cand struct {
		bank string
		dist float64
	}
	var cands []cand
	if cur, ok := env.Node(env.CurrentNode()); ok && cur.NearestBank != "" {
		cands = append(cands, cand{cur.NearestBank, cur.NearestBankDist})
	}
	if t := env.HeldTask(); t != nil {
		if n, ok := env.Node(t.NodeID); ok && n.NearestBank != "" {
			cands = append(cands, cand{n.NearestBank, n.NearestBankDist})
		}
	}

	switch len(cands) {
	case 0:
		return anyBanks(env)
	case 1:
		return cands[0].bank, ""
	}
	a, b := cands[0], cands[1]
	if a.bank == b.bank {
		return a.bank, ""
	}
	switch {
	case a.dist < b.dist:
		return a.bank, b.bank
	case b.dist < a.dist:
		return b.bank, a.bank
	case env.Rand().Intn(2) == 0:
		return a.bank, b.bank
	default:
		return b.bank, a.bank
	}
}

// anyBanks returns the two banks closest to the agent's position.
func anyBanks(env Env) (string, string) {
	pos := env.Position()
	best, second := "", ""
	bestD, secondD := math.Inf(1), math.Inf(1)
	for _, b := range env.NodesOfType(catalogs.NodeBank) {
		d := b.Pos.Dist(pos)
		switch {
		case d < bestD:
			second, secondD = best, bestD
			best, bestD = b.ID, d
		case d < secondD:
			second, secondD = b.ID, d
		}
	}
	return best, second
}

// GoToBank walks to the chosen bank, or reports AtBank when already on one. If
// both banks are unreachable the movement state is left as it was.
func GoToBank(env Env) (Trip, error) {
	if cur, ok := env.Node(env.CurrentNode()); ok && cur.IsBank() {
		return Trip{Bank: cur.ID, AtBank: true}, nil
	}
	primary, fallback := ChooseBank(env)
	if primary == "" {
		env.Logger().Error("no bank known to the world map")
		return Trip{}, ErrNoReachableBank
	}

	err := env.MoveTo(primary)
	if err == nil {
		return Trip{Bank: primary, Fallback: fallback}, nil
	}
	env.Logger().Warn("primary bank unreachable",
		zap.String("bank", primary), zap.String("fallback", fallback), zap.Error(err))
	if fallback != "" {
		ferr := env.MoveTo(fallback)
		if ferr == nil {
			return Trip{Bank: fallback}, nil
		}
		err = errors.Join(err, ferr)
	}

	fields := []zap.Field{
		zap.String("primary", primary),
		zap.String("fallback", fallback),
		zap.String("current_node", env.CurrentNode()),
		zap.Error(err),
	}
	if t := env.HeldTask(); t != nil {
		fields = append(fields, zap.String("task", t.ID), zap.String("task_node", t.NodeID))
	}
	env.Logger().Error("no route to any bank", fields...)
	return Trip{}, fmt.Errorf("%w: %v", ErrNoReachableBank, err)
}

type Result struct {
	OK        bool
	Handler   skills.BankingResult
	Deposited []catalogs.ItemCount
	Withdrawn []catalogs.ItemCount
}

// Perform banks at the current node. A skill with its own handler decides
// everything; otherwise everything is deposited and the activity's required
// items are taken out. On success the animation starts and the walk back to the
// task node is planned.
func Perform(env Env, s *State, animation time.Duration) Result {
	var res Result
	t := env.HeldTask()
	sk, hasSkill := env.HeldSkill()

	if t != nil && hasSkill {
		res.Handler = sk.HandleBanking(env, t)
	}
	switch res.Handler {
	case skills.BankingFailed:
		return res
	case skills.BankingDefault:
		res.Deposited = env.Inventory().DepositAll(env.Bank())
		if t != nil {
			res.Withdrawn = withdrawRequirements(env, t)
		}
	}
	res.OK = true

	env.SyncProgress()
	s.IsBanking = true
	s.Bank = env.CurrentNode()
	s.Timer.Start(animation)

	if t != nil && env.TaskStillCurrent() {
		if err := env.PreparePath(t.NodeID); err != nil {
			env.Logger().Debug("could not plan path back to task", zap.String("node", t.NodeID), zap.Error(err))
		}
	}
	return res
}

// withdrawRequirements takes tools once and enough consumables for the rest of the task.
func withdrawRequirements(env Env, t *tasks.Task) []catalogs.ItemCount {
	act, ok := env.Catalogs().Activity(t.ActivityID)
	if !ok {
		return nil
	}
	var out []catalogs.ItemCount
	inv, bank := env.Inventory(), env.Bank()
	for _, r := range act.Requires {
		if n := inv.WithdrawUpTo(bank, r.Item, r.Count-inv.Count(r.Item)); n > 0 {
			out = append(out, catalogs.ItemCount{Item: r.Item, Count: n})
		}
	}
	for _, c := range act.Consumes {
		want := c.Count * max(t.Remaining(), 1)
		if n := inv.WithdrawUpTo(bank, c.Item, want-inv.Count(c.Item)); n > 0 {
			out = append(out, catalogs.ItemCount{Item: c.Item, Count: n})
		}
	}
	return out
}
