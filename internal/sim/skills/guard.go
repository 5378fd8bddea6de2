package skills

import "time"

type GuardState int

const (
	GuardIdle GuardState = iota
	GuardStarting
	GuardInProgress
)

func (s GuardState) String() string {
	switch s {
	case GuardStarting:
		return "starting"
	case GuardInProgress:
		return "in_progress"
	default:
		return "idle"
	}
}

// StartGuard rejects a second start of the same skill while one is pending or
// running. InProgress carries the exact completion deadline.
type StartGuard struct {
	state    GuardState
	activity string
	deadline time.Time
}

func (g *StartGuard) State() GuardState   { return g.state }
func (g *StartGuard) Activity() string    { return g.activity }
func (g *StartGuard) Deadline() time.Time { return g.deadline }

// TryStart moves Idle to Starting. An InProgress guard past its deadline has
// nothing left to protect and is treated as Idle.
func (g *StartGuard) TryStart(activity string, now time.Time) bool {
	switch g.state {
	case GuardStarting:
		return false
	case GuardInProgress:
		if now.Before(g.deadline) {
			return false
		}
	}
	g.state = GuardStarting
	g.activity = activity
	g.deadline = time.Time{}
	return true
}

// Commit records the running action. It is a no-op unless Starting.
func (g *StartGuard) Commit(activity string, deadline time.Time) {
	if g.state != GuardStarting || g.activity != activity {
		return
	}
	g.state = GuardInProgress
	g.deadline = deadline
}

func (g *StartGuard) Reset() {
	*g = StartGuard{}
}
