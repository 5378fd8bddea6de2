package agent

import (
	"errors"

	"go.uber.org/zap"

	"idlecraft.ai/internal/sim/agent/activity"
	"idlecraft.ai/internal/sim/agent/banking"
	"idlecraft.ai/internal/sim/agent/movement"
	"idlecraft.ai/internal/sim/tasks"
)

// Skip reasons, also used as metric labels.
const (
	SkipImpossible       = "impossible"
	SkipUnknownSkill     = "unknown_skill"
	SkipCannotContinue   = "cannot_continue"
	SkipUnreachable      = "unreachable"
	SkipMissingMaterials = "missing_materials"
	SkipNeedsPurchase    = "needs_purchase"
	SkipUnobtainable     = "unobtainable"
	SkipBankingFailed    = "banking_failed"
	SkipStartFailed      = "start_failed"
)

// decide runs once the cooldown lapses: the three guards, the busy gate, then
// at most one command.
func (a *Agent) decide() {
	a.redecide = false
	a.cancelled = false

	a.guardOrphanedMovement()
	a.guardTaskChange()
	a.guardOrphanedActivity()

	if a.gateOpen() {
		a.makeDecision()
	}

	if a.redecide {
		a.cooldown = 0
	} else {
		a.cooldown = a.ctx.Tuning.DecisionQuantum()
	}
}

func (a *Agent) movingToBank() bool {
	return a.move.IsMoving() && a.ctx.World.IsBankNode(a.move.TargetNode)
}

func (a *Agent) guardOrphanedMovement() {
	if !a.taskRef.IsZero() || !a.move.IsMoving() || a.movingToBank() {
		return
	}
	a.record(DecisionCancel, a.move.TargetNode, "movement without a task")
	a.ctx.Metrics.recovered("orphaned_movement")
	a.move.Stop()
	a.cancelled = true
	a.redecide = true
}

// guardTaskChange drops a held ref the task list no longer considers current.
// A walk to a bank survives; banking on arrival is still useful.
func (a *Agent) guardTaskChange() {
	if a.taskRef.IsZero() || a.ctx.Tasks.IsCurrent(a.taskRef) {
		return
	}
	if a.movingToBank() {
		a.record(DecisionDrop, a.move.TargetNode, "task changed, still walking to bank")
	} else {
		if a.move.IsMoving() || a.move.PathPrep.Active() {
			a.move.Stop()
			a.cancelled = true
		}
		a.wantsBank = false
		activity.Stop(a.env, &a.act)
		a.record(DecisionDrop, "", "task changed")
	}
	a.clearTask()
}

func (a *Agent) guardOrphanedActivity() {
	if !a.taskRef.IsZero() || !a.act.IsPerforming() {
		return
	}
	a.record(DecisionCancel, a.move.CurrentNode, "activity without a task")
	a.ctx.Metrics.recovered("orphaned_activity")
	activity.Stop(a.env, &a.act)
}

// gateOpen: decide when nothing is in flight, or when standing still with a
// full inventory so a running activity cannot hide the need to bank.
func (a *Agent) gateOpen() bool {
	moving := a.move.IsMoving() || a.move.PathPrep.Active()
	busy := moving || a.act.IsPerforming() || a.banking.Active()
	if !busy {
		return true
	}
	return !moving && a.ctx.Inventory.IsFull()
}

func (a *Agent) makeDecision() {
	if a.banking.Active() {
		a.record(DecisionWait, a.banking.Bank, "banking")
		return
	}
	if a.move.CurrentNode == "" && !a.cancelled && !a.move.IsMoving() && !a.act.IsPerforming() {
		if !a.recoverOffPath() {
			return
		}
	}
	// Selecting is not a command; the held task's skill gets a say in banking.
	hasTask := a.ensureTask()
	if (a.wantsBank || banking.NeedsBanking(a.env)) && !a.movingToBank() {
		a.goToBank()
		return
	}
	if !hasTask {
		a.record(DecisionIdle, a.move.CurrentNode, "no task available")
		return
	}
	a.executeTask()
}

// recoverOffPath snaps an untracked agent onto a nearby node, or teleports it
// to the safe location. It reports whether the decision can continue.
func (a *Agent) recoverOffPath() bool {
	tol := a.ctx.Tuning.Movement.NodeTolerance
	if n, ok := a.ctx.World.NearestNode(a.move.Pos, tol); ok {
		a.move.CurrentNode = n.ID
		return true
	}
	a.log.Warn("agent off path, teleporting to safe location",
		zap.Float64("x", a.move.Pos.X), zap.Float64("y", a.move.Pos.Y))
	a.record(DecisionRecover, "", "off path")
	a.ctx.Metrics.recovered("off_path")
	a.move.Teleport(a.ctx.Tuning.SafeLocation)
	if n, ok := a.ctx.World.NearestNode(a.move.Pos, tol); ok {
		a.move.CurrentNode = n.ID
	}
	activity.Stop(a.env, &a.act)
	a.clearTask()
	a.wantsBank = false
	a.redecide = true
	return false
}

// ensureTask keeps a current held ref, selecting (and refilling) when needed.
func (a *Agent) ensureTask() bool {
	if !a.taskRef.IsZero() && a.ctx.Tasks.IsCurrent(a.taskRef) {
		return true
	}
	ref := a.ctx.Tasks.Current()
	if ref.IsZero() && a.ctx.Generator != nil {
		a.ctx.Generator.Fill(a.ctx.Tasks)
		ref = a.ctx.Tasks.Current()
	}
	if ref.IsZero() {
		a.clearTask()
		return false
	}
	a.selectTask(ref)
	return true
}

func (a *Agent) selectTask(ref tasks.Ref) {
	a.taskRef = ref
	a.hasBanked = false
	if t, err := a.ctx.Tasks.Get(ref); err == nil {
		a.log.Info("task selected", zap.String("task", t.String()), zap.Stringer("ref", ref))
		a.record(DecisionSelect, t.NodeID, t.ActivityID)
	}
}

// skipTask is the single path for tasks that cannot proceed.
func (a *Agent) skipTask(reason string) {
	if a.ctx.Tasks.IsCurrent(a.taskRef) {
		t, _ := a.ctx.Tasks.Get(a.taskRef)
		a.log.Info("task skipped", zap.String("task", t.String()), zap.String("reason", reason))
		a.record(DecisionSkip, t.NodeID, reason)
		a.ctx.Tasks.SkipCurrent(reason)
	}
	a.ctx.Metrics.skip(reason)
	a.clearTask()
	a.wantsBank = false
	a.redecide = true
}

// goToBank leaves a running activity alone when no bank can be reached.
func (a *Agent) goToBank() {
	trip, err := banking.GoToBank(a.env)
	if err != nil {
		a.wantsBank = false
		a.record(DecisionBank, "", "no reachable bank")
		return
	}
	activity.Stop(a.env, &a.act)
	if trip.AtBank {
		a.performBanking()
		return
	}
	a.wantsBank = true
	a.record(DecisionBank, trip.Bank, "walking to bank")
}

func (a *Agent) performBanking() {
	ref := a.taskRef
	res := banking.Perform(a.env, &a.banking, a.ctx.Tuning.BankingAnimation())
	a.wantsBank = false
	a.ctx.Metrics.banked(res.Handler.String())
	if !res.OK {
		a.skipTask(SkipBankingFailed)
		return
	}
	a.record(DecisionBank, a.banking.Bank, "banked")
	if ref.IsZero() {
		return
	}
	if !a.ctx.Tasks.IsCurrent(ref) {
		a.record(DecisionDrop, "", "task finished while banking")
		a.clearTask()
		return
	}
	a.hasBanked = true
}

func (a *Agent) moveTo(node string) error {
	if err := movement.MoveTo(a.env, &a.move, node, a.movementConfig()); err != nil {
		return err
	}
	a.record(DecisionMove, node, "")
	return nil
}

// executeTask runs the checks for the held task in order and commits the first
// command that applies.
func (a *Agent) executeTask() {
	ref := a.taskRef
	t, err := a.ctx.Tasks.Get(ref)
	if err != nil || !a.ctx.Tasks.IsCurrent(ref) || !a.ctx.Tasks.IsPossible(ref) {
		a.skipTask(SkipImpossible)
		return
	}
	sk, ok := a.ctx.Skills.Get(t.Skill)
	if !ok {
		a.skipTask(SkipUnknownSkill)
		return
	}
	if !sk.CanContinueTask(a.env, t) {
		a.skipTask(SkipCannotContinue)
		return
	}
	if sk.RequiresBankingBeforeTask() && !a.hasBanked {
		a.goToBank()
		return
	}

	if a.move.CurrentNode != t.NodeID {
		if a.move.IsMoving() && a.move.TargetNode == t.NodeID {
			return
		}
		a.travel(t.NodeID)
		return
	}
	node, _ := a.ctx.World.Node(t.NodeID)
	if d := a.move.Pos.Dist(node.Pos); d > a.ctx.Tuning.Movement.DesyncTolerance {
		a.log.Warn("tracked node disagrees with position",
			zap.String("node", t.NodeID), zap.Float64("distance", d))
		a.ctx.Metrics.recovered("desync")
		a.move.CurrentNode = ""
		a.travel(t.NodeID)
		return
	}

	if sk.IsProcessing() && !sk.HasMaterialsForCurrentTask(a.env, t) {
		for _, m := range sk.MaterialsNeededForTask(a.env, t) {
			if !a.ctx.Bank.Has(m.Item, m.Count) {
				a.skipTask(SkipMissingMaterials)
				return
			}
		}
		a.goToBank()
		return
	}

	act, ok := a.ctx.Catalogs.Activity(t.ActivityID)
	if !ok {
		a.skipTask(SkipImpossible)
		return
	}
	for _, m := range activity.MissingItems(a.env, act) {
		if a.ctx.Bank.Has(m.Item, m.Count) {
			a.goToBank()
			return
		}
		if item, ok := a.ctx.Catalogs.Item(m.Item); ok && item.Buyable {
			a.skipTask(SkipNeedsPurchase)
			return
		}
		a.skipTask(SkipUnobtainable)
		return
	}

	err = activity.Start(a.env, &a.act, act.ID, a.ctx.Tuning.Activity.DebugMultiplier)
	switch {
	case err == nil:
		a.record(DecisionStart, t.NodeID, act.ID)
	case errors.Is(err, activity.ErrRejected):
		a.log.Debug("duplicate start ignored", zap.String("activity", act.ID))
	default:
		a.log.Info("activity start failed", zap.Error(err))
		a.skipTask(SkipStartFailed)
	}
}

// travel walks to the task node. A node that cannot be reached makes the task
// impossible.
func (a *Agent) travel(node string) {
	if err := a.moveTo(node); err != nil {
		a.log.Error("no path to task node", zap.String("node", node), zap.Error(err))
		a.skipTask(SkipUnreachable)
	}
}
