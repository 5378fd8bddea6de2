// Package worldmap is the static node graph and terrain the agent travels over.
package worldmap

import (
	"fmt"
	"math"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/geom"
)

type Node struct {
	catalogs.NodeDef

	// Precomputed once at load.
	NearestBank     string
	NearestBankDist float64
}

func (n Node) IsBank() bool { return n.Type == catalogs.NodeBank }

type Map struct {
	nodes   map[string]Node
	order   []string
	byType  map[catalogs.NodeType][]string
	terrain catalogs.TerrainDef
}

func New(c *catalogs.Catalogs) (*Map, error) {
	m := &Map{
		nodes:   make(map[string]Node, len(c.Nodes.Order)),
		byType:  map[catalogs.NodeType][]string{},
		terrain: c.Terrain,
	}
	for _, id := range c.Nodes.Order {
		def := c.Nodes.ByID[id]
		if !m.InBounds(def.Pos) {
			return nil, fmt.Errorf("worldmap: node %s out of bounds at (%.1f,%.1f)", id, def.Pos.X, def.Pos.Y)
		}
		m.nodes[id] = Node{NodeDef: def}
		m.order = append(m.order, id)
		m.byType[def.Type] = append(m.byType[def.Type], id)
	}
	banks := m.byType[catalogs.NodeBank]
	for _, id := range m.order {
		n := m.nodes[id]
		n.NearestBank, n.NearestBankDist = "", math.Inf(1)
		for _, bid := range banks {
			d := n.Pos.Dist(m.nodes[bid].Pos)
			if d < n.NearestBankDist {
				n.NearestBank, n.NearestBankDist = bid, d
			}
		}
		m.nodes[id] = n
	}
	return m, nil
}

func (m *Map) Node(id string) (Node, bool) {
	n, ok := m.nodes[id]
	return n, ok
}

func (m *Map) Nodes() []Node {
	out := make([]Node, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.nodes[id])
	}
	return out
}

func (m *Map) NodesOfType(t catalogs.NodeType) []Node {
	ids := m.byType[t]
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.nodes[id])
	}
	return out
}

// IsBankNode reports false for unknown ids.
func (m *Map) IsBankNode(id string) bool {
	n, ok := m.nodes[id]
	return ok && n.IsBank()
}

// NearestNode returns the closest node within tol of pos, in catalog order on ties.
func (m *Map) NearestNode(pos geom.Vec, tol float64) (Node, bool) {
	var (
		best  Node
		bestD = math.Inf(1)
		found bool
	)
	for _, id := range m.order {
		n := m.nodes[id]
		d := n.Pos.Dist(pos)
		if d <= tol && d < bestD {
			best, bestD, found = n, d, true
		}
	}
	return best, found
}

func (m *Map) Bounds() geom.Rect { return m.terrain.Bounds }

func (m *Map) InBounds(pos geom.Vec) bool { return m.terrain.Bounds.Contains(pos) }

// IsWater walks every water region; callers on the hot path should cache it.
func (m *Map) IsWater(pos geom.Vec) bool {
	for _, r := range m.terrain.Water {
		if r.Contains(pos) {
			return true
		}
	}
	return false
}

func (m *Map) Blocked(c geom.Cell) bool {
	p := c.Center()
	if !m.InBounds(p) {
		return true
	}
	for _, r := range m.terrain.Blocked {
		if r.Contains(p) {
			return true
		}
	}
	return false
}
