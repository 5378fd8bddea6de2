// Package activity runs one timed, repeatable action at a time.
package activity

import (
	"errors"
	"fmt"
	"time"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/geom"
	"idlecraft.ai/internal/sim/skills"
	"idlecraft.ai/internal/sim/tasks"
)

var (
	ErrUnknownActivity = errors.New("activity: unknown activity")
	ErrUnknownSkill    = errors.New("activity: unknown skill")
	ErrRequirement     = errors.New("activity: level requirement not met")
	ErrMissingItems    = errors.New("activity: required items missing")
	// ErrRejected is the skill's duplicate-start veto. Callers treat it as a no-op.
	ErrRejected = errors.New("activity: start rejected")
)

type Env interface {
	skills.Env
	Skill(id string) (skills.Skill, bool)
	GrantXP(skill string, xp float64)
	// HeldTask is the task the agent is working on, nil when none.
	HeldTask() *tasks.Task
}

type State struct {
	ActivityID string
	Skill      string
	StartTime  time.Time
	Duration   time.Duration
	Progress   float64
}

func (s *State) IsPerforming() bool { return s.ActivityID != "" }

// Result describes what a Tick did.
type Result struct {
	Completed bool
	// Overflow means the rewards did not fit and the activity was stopped.
	Overflow   bool
	ActivityID string
	Skill      string
	Rewards    []catalogs.ItemCount
	XP         float64
}

// MissingItems lists the tools, consumables and recipe inputs the inventory
// lacks for one repetition of act.
func MissingItems(env skills.Env, act catalogs.ActivityDef) []catalogs.ItemCount {
	lists := [][]catalogs.ItemCount{act.Requires, act.Consumes}
	if act.RecipeID != "" {
		if r, ok := env.Catalogs().Recipe(act.RecipeID); ok {
			lists = append(lists, r.Inputs)
		}
	}
	var out []catalogs.ItemCount
	for _, list := range lists {
		for _, it := range list {
			if have := env.Inventory().Count(it.Item); have < it.Count {
				out = append(out, catalogs.ItemCount{Item: it.Item, Count: it.Count - have})
			}
		}
	}
	return out
}

// Start begins activityID. Any failure leaves s unchanged. speedMult > 1 shortens
// the action.
func Start(env Env, s *State, activityID string, speedMult float64) error {
	if s.IsPerforming() {
		return fmt.Errorf("%w: already performing %s", ErrRejected, s.ActivityID)
	}
	act, ok := env.Catalogs().Activity(activityID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownActivity, activityID)
	}
	sk, ok := env.Skill(act.Skill)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSkill, act.Skill)
	}
	level := env.Level(act.Skill)
	if level < act.Level {
		return fmt.Errorf("%w: %s needs %s %d, have %d", ErrRequirement, act.ID, act.Skill, act.Level, level)
	}
	if missing := MissingItems(env, act); len(missing) > 0 {
		return fmt.Errorf("%w: %s needs %s", ErrMissingItems, act.ID, missing[0].Item)
	}
	if !sk.BeforeActivityStart(env, act) {
		return fmt.Errorf("%w: %s", ErrRejected, act.ID)
	}

	d := sk.Duration(act, level)
	if speedMult > 0 && speedMult != 1 {
		d = time.Duration(float64(d) / speedMult)
	}
	now := env.Now()
	*s = State{ActivityID: act.ID, Skill: act.Skill, StartTime: now, Duration: d}
	sk.OnActivityStarted(env, act, now.Add(d))
	return nil
}

// Stop abandons the running activity. Safe to call when idle.
func Stop(env Env, s *State) {
	if !s.IsPerforming() {
		return
	}
	if act, ok := env.Catalogs().Activity(s.ActivityID); ok {
		if sk, ok := env.Skill(act.Skill); ok {
			sk.OnActivityStopped(env, act)
		}
	}
	*s = State{}
}

// Restart runs the just-completed activity again with a fresh start time. On
// failure the activity is stopped.
func Restart(env Env, s *State, speedMult float64) error {
	id := s.ActivityID
	*s = State{}
	if err := Start(env, s, id, speedMult); err != nil {
		*s = State{}
		return err
	}
	return nil
}

// Tick refreshes progress and resolves the activity when it is done. A completed
// activity stays set until the caller restarts or stops it.
func Tick(env Env, s *State) Result {
	if !s.IsPerforming() || s.Progress >= 1 {
		return Result{}
	}
	if s.Duration <= 0 {
		s.Progress = 1
	} else {
		s.Progress = geom.Clamp01(float64(env.Now().Sub(s.StartTime)) / float64(s.Duration))
	}
	if s.Progress < 1 {
		return Result{}
	}

	res := Result{ActivityID: s.ActivityID, Skill: s.Skill}
	act, ok := env.Catalogs().Activity(s.ActivityID)
	sk, ok2 := env.Skill(s.Skill)
	if !ok || !ok2 {
		*s = State{}
		return res
	}

	level := env.Level(act.Skill)
	rewards := sk.ProcessRewards(env, act, level)
	if !env.Inventory().AddAll(rewards) {
		Stop(env, s)
		res.Overflow = true
		res.Rewards = rewards
		return res
	}
	for _, c := range act.Consumes {
		env.Inventory().Remove(c.Item, c.Count)
	}
	if sk.ShouldGrantXP(env, act, rewards) {
		res.XP = sk.XPToGrant(env, act, rewards)
		env.GrantXP(act.Skill, res.XP)
	}
	sk.OnActivityComplete(env, env.HeldTask(), act, rewards)

	res.Completed = true
	res.Rewards = rewards
	return res
}
