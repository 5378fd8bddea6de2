// Package movement is the agent's walking state machine: path construction,
// the path preparation pause, per-tick interpolation and arrival.
package movement

import (
	"errors"
	"fmt"
	"time"

	"idlecraft.ai/internal/sim/clock"
	"idlecraft.ai/internal/sim/geom"
	"idlecraft.ai/internal/sim/worldmap"
)

var ErrUnknownNode = errors.New("movement: unknown node")

type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreparingPath
	PhaseMoving
	PhaseAtNode
)

func (p Phase) String() string {
	switch p {
	case PhasePreparingPath:
		return "preparing_path"
	case PhaseMoving:
		return "moving"
	case PhaseAtNode:
		return "at_node"
	default:
		return "idle"
	}
}

type Env interface {
	Node(id string) (worldmap.Node, bool)
	BuildWaypointPath(from, to string) ([]geom.Vec, bool)
	FindPath(from, to geom.Vec) ([]geom.Vec, error)
	// Speed is tiles per second at pos with every multiplier applied.
	Speed(pos geom.Vec) float64
	OnArrive(node string)
}

type Config struct {
	PathPrep        time.Duration
	WaypointEpsilon float64
}

// Prepared is a path computed ahead of time (while banking) for a later MoveTo.
type Prepared struct {
	Node      string
	From      geom.Vec
	Waypoints []geom.Vec
}

type State struct {
	Pos             geom.Vec
	Waypoints       []geom.Vec
	Index           int
	SegmentProgress float64
	CurrentNode     string
	TargetNode      string
	PathPrep        clock.Timer

	segStart geom.Vec
	prepared *Prepared
}

func (s *State) IsMoving() bool {
	return len(s.Waypoints) > 0 && s.Index < len(s.Waypoints)
}

func (s *State) Phase() Phase {
	switch {
	case s.PathPrep.Active():
		return PhasePreparingPath
	case s.IsMoving():
		return PhaseMoving
	case s.CurrentNode != "":
		return PhaseAtNode
	default:
		return PhaseIdle
	}
}

// Remaining returns the waypoints not yet reached.
func (s *State) Remaining() []geom.Vec {
	if !s.IsMoving() {
		return nil
	}
	return append([]geom.Vec(nil), s.Waypoints[s.Index:]...)
}

func (s *State) PreparedFor() string {
	if s.prepared == nil {
		return ""
	}
	return s.prepared.Node
}

// Stop cancels any walk in progress. The agent stays where it is.
func (s *State) Stop() {
	s.Waypoints = nil
	s.Index = 0
	s.SegmentProgress = 0
	s.TargetNode = ""
	s.PathPrep.Stop()
	s.prepared = nil
}

// Teleport drops all movement state and places the agent at pos.
func (s *State) Teleport(pos geom.Vec) {
	s.Stop()
	s.CurrentNode = ""
	s.Pos = pos
	s.segStart = pos
}

// Plan builds a path from the current state to node without moving.
func Plan(env Env, s *State, node string) ([]geom.Vec, error) {
	target, ok := env.Node(node)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, node)
	}
	if s.CurrentNode != "" {
		if wp, ok := env.BuildWaypointPath(s.CurrentNode, node); ok && len(wp) > 0 {
			return wp, nil
		}
	}
	wp, err := env.FindPath(s.Pos, target.Pos)
	if err != nil {
		return nil, fmt.Errorf("movement: path to %s: %w", node, err)
	}
	if len(wp) == 0 {
		wp = []geom.Vec{target.Pos}
	}
	return wp, nil
}

// Prepare stores a path for a later MoveTo to the same node from here.
func Prepare(env Env, s *State, node string) error {
	wp, err := Plan(env, s, node)
	if err != nil {
		return err
	}
	s.prepared = &Prepared{Node: node, From: s.Pos, Waypoints: wp}
	return nil
}

// MoveTo starts walking to node. On error nothing changes.
func MoveTo(env Env, s *State, node string, cfg Config) error {
	var wp []geom.Vec
	if p := s.prepared; p != nil && p.Node == node && p.From.Near(s.Pos, cfg.WaypointEpsilon) {
		wp = append([]geom.Vec(nil), p.Waypoints...)
	} else {
		var err error
		if wp, err = Plan(env, s, node); err != nil {
			return err
		}
	}
	if len(wp) > 1 && wp[0].Near(s.Pos, cfg.WaypointEpsilon) {
		wp = wp[1:]
	}

	departing := s.CurrentNode
	prep := false
	if departing != "" {
		if n, ok := env.Node(departing); ok && !n.IsBank() {
			prep = true
		}
	}

	s.Stop()
	s.CurrentNode = ""
	s.Waypoints = wp
	s.TargetNode = node
	s.segStart = s.Pos
	if prep && cfg.PathPrep > 0 {
		s.PathPrep.Start(cfg.PathPrep)
	}
	return nil
}

// Advance moves along the path by one tick. It returns the node arrived at, if any.
// Movement is frozen while the path preparation timer runs or paused is set.
func Advance(env Env, s *State, dt time.Duration, paused bool) string {
	if s.PathPrep.Active() {
		s.PathPrep.Advance(dt)
		return ""
	}
	if paused || !s.IsMoving() || dt <= 0 {
		return ""
	}

	dist := env.Speed(s.Pos) * dt.Seconds()
	next := s.Waypoints[s.Index]
	segLen := s.segStart.Dist(next)
	if segLen <= 1e-9 {
		s.SegmentProgress = 1
	} else {
		s.SegmentProgress += dist / segLen
	}

	if s.SegmentProgress < 1 {
		s.Pos = geom.Lerp(s.segStart, next, s.SegmentProgress)
		return ""
	}

	// Leftover distance past the waypoint is dropped.
	s.Pos = next
	s.segStart = next
	s.SegmentProgress = 0
	s.Index++
	if s.Index < len(s.Waypoints) {
		return ""
	}

	arrived := s.TargetNode
	s.Waypoints = nil
	s.Index = 0
	s.TargetNode = ""
	s.CurrentNode = arrived
	env.OnArrive(arrived)
	return arrived
}
