package skills

import "sort"

var (
	GatheringSkills  = []string{"woodcutting", "mining", "fishing"}
	ProcessingSkills = []string{"cooking", "smithing", "fletching", "crafting", "herblore", "firemaking", "farming"}
)

type Registry struct {
	byID map[string]Skill
}

func NewRegistry(list ...Skill) *Registry {
	r := &Registry{byID: map[string]Skill{}}
	for _, s := range list {
		r.Register(s)
	}
	return r
}

// DefaultRegistry wires every built-in skill.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, id := range GatheringSkills {
		r.Register(NewGathering(id))
	}
	for _, id := range ProcessingSkills {
		r.Register(NewProcessing(id))
	}
	return r
}

func (r *Registry) Register(s Skill) { r.byID[s.ID()] = s }

func (r *Registry) Get(id string) (Skill, bool) {
	s, ok := r.byID[id]
	return s, ok
}

func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
