package skills

import (
	"time"

	"idlecraft.ai/internal/sim/catalogs"
)

// Gathering pulls items out of resource nodes. It has no banking predicate,
// so a full inventory sends the agent to the bank.
type Gathering struct {
	Base
}

func NewGathering(id string) *Gathering {
	return &Gathering{Base: Base{SkillID: id}}
}

// Duration shortens by 1% per level above the requirement, down to half.
func (g *Gathering) Duration(act catalogs.ActivityDef, level int) time.Duration {
	base := g.Base.Duration(act, level)
	over := level - act.Level
	if over <= 0 {
		return base
	}
	cut := float64(over) * 0.01
	if cut > 0.5 {
		cut = 0.5
	}
	return time.Duration(float64(base) * (1 - cut))
}
