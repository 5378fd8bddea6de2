package skills

import (
	"math"
	"sort"
)

const MaxLevel = 99

// xpTable[l] is the experience needed to reach level l.
var xpTable = func() [MaxLevel + 1]float64 {
	var t [MaxLevel + 1]float64
	points := 0.0
	for l := 1; l < MaxLevel; l++ {
		points += math.Floor(float64(l) + 300*math.Pow(2, float64(l)/7))
		t[l+1] = math.Floor(points / 4)
	}
	return t
}()

// XPForLevel returns the experience threshold of level l.
func XPForLevel(l int) float64 {
	if l <= 1 {
		return 0
	}
	if l > MaxLevel {
		l = MaxLevel
	}
	return xpTable[l]
}

func LevelForXP(xp float64) int {
	lvl := 1
	for l := 2; l <= MaxLevel; l++ {
		if xp < xpTable[l] {
			break
		}
		lvl = l
	}
	return lvl
}

// Levels tracks experience per skill. Unknown skills are level 1.
type Levels struct {
	xp map[string]float64
}

func NewLevels() *Levels { return &Levels{xp: map[string]float64{}} }

func (l *Levels) XP(skill string) float64 { return l.xp[skill] }

func (l *Levels) Level(skill string) int { return LevelForXP(l.xp[skill]) }

// GrantXP adds experience and returns how many levels were gained.
func (l *Levels) GrantXP(skill string, amount float64) int {
	if amount <= 0 {
		return 0
	}
	before := l.Level(skill)
	l.xp[skill] += amount
	return l.Level(skill) - before
}

// SetLevel jumps a skill straight to the start of level lvl.
func (l *Levels) SetLevel(skill string, lvl int) {
	l.xp[skill] = XPForLevel(lvl)
}

type SkillXP struct {
	Skill string  `json:"skill"`
	XP    float64 `json:"xp"`
}

func (l *Levels) Snapshot() []SkillXP {
	out := make([]SkillXP, 0, len(l.xp))
	for s, xp := range l.xp {
		out = append(out, SkillXP{Skill: s, XP: xp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Skill < out[j].Skill })
	return out
}

func (l *Levels) Restore(list []SkillXP) {
	l.xp = map[string]float64{}
	for _, s := range list {
		l.xp[s.Skill] = s.XP
	}
}
