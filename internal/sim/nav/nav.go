// Package nav answers "how do I get from here to there" for the movement state
// machine: precomputed node routes first, then a bounded grid search.
package nav

import (
	"errors"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/geom"
)

// ErrUnreachable means the destination cannot be walked to at all. Callers must
// not fall back to a straight line in that case.
var ErrUnreachable = errors.New("nav: destination unreachable")

type Grid interface {
	Blocked(c geom.Cell) bool
}

type NodeLookup func(id string) (geom.Vec, bool)

type routeKey struct{ from, to string }

type Navigator struct {
	grid     Grid
	routes   map[routeKey][]geom.Vec
	maxCells int
}

const defaultMaxCells = 16384

func New(grid Grid, routes []catalogs.RouteDef, nodePos NodeLookup) *Navigator {
	n := &Navigator{
		grid:     grid,
		routes:   map[routeKey][]geom.Vec{},
		maxCells: defaultMaxCells,
	}
	for _, r := range routes {
		if len(r.Waypoints) == 0 {
			continue
		}
		n.routes[routeKey{r.From, r.To}] = append([]geom.Vec(nil), r.Waypoints...)
		if _, exists := n.routes[routeKey{r.To, r.From}]; exists {
			continue
		}
		start, ok := nodePos(r.From)
		if !ok {
			continue
		}
		rev := make([]geom.Vec, 0, len(r.Waypoints))
		for i := len(r.Waypoints) - 2; i >= 0; i-- {
			rev = append(rev, r.Waypoints[i])
		}
		rev = append(rev, start)
		n.routes[routeKey{r.To, r.From}] = rev
	}
	return n
}

// BuildWaypointPath returns a copy of the precomputed route between two nodes.
func (n *Navigator) BuildWaypointPath(from, to string) ([]geom.Vec, bool) {
	wp, ok := n.routes[routeKey{from, to}]
	if !ok {
		return nil, false
	}
	return append([]geom.Vec(nil), wp...), true
}

// FindPath searches the grid from → to. A nil path with a nil error means the
// search gave up (budget exhausted) without proving the target unreachable.
func (n *Navigator) FindPath(from, to geom.Vec) ([]geom.Vec, error) {
	start, goal := geom.CellOf(from), geom.CellOf(to)
	if n.grid.Blocked(goal) {
		return nil, ErrUnreachable
	}
	if start == goal {
		return []geom.Vec{to}, nil
	}

	// Fixed neighbor order keeps paths stable between runs.
	dirs := []geom.Cell{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}

	prev := map[geom.Cell]geom.Cell{start: start}
	queue := []geom.Cell{start}
	found := false
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		if cur == goal {
			found = true
			break
		}
		if len(prev) >= n.maxCells {
			return nil, nil
		}
		for _, d := range dirs {
			next := geom.Cell{X: cur.X + d.X, Y: cur.Y + d.Y}
			if _, seen := prev[next]; seen {
				continue
			}
			if n.grid.Blocked(next) {
				continue
			}
			prev[next] = cur
			queue = append(queue, next)
		}
	}
	if !found {
		return nil, ErrUnreachable
	}

	var cells []geom.Cell
	for c := goal; c != start; c = prev[c] {
		cells = append(cells, c)
	}
	cells = append(cells, start)
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	return simplify(cells, to), nil
}

// simplify keeps only turning cells, then ends exactly on the target point.
func simplify(cells []geom.Cell, to geom.Vec) []geom.Vec {
	var out []geom.Vec
	for i := 1; i < len(cells)-1; i++ {
		dx1, dy1 := cells[i].X-cells[i-1].X, cells[i].Y-cells[i-1].Y
		dx2, dy2 := cells[i+1].X-cells[i].X, cells[i+1].Y-cells[i].Y
		if dx1 != dx2 || dy1 != dy2 {
			out = append(out, cells[i].Center())
		}
	}
	return append(out, to)
}
