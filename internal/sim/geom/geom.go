package geom

import "math"

// Vec is a world-space position in tile units.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec) Add(o Vec) Vec       { return Vec{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec       { return Vec{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vec) Scale(f float64) Vec { return Vec{X: v.X * f, Y: v.Y * f} }
func (v Vec) Len() float64        { return math.Hypot(v.X, v.Y) }
func (v Vec) Dist(o Vec) float64  { return v.Sub(o).Len() }
func (v Vec) Near(o Vec, eps float64) bool {
	return v.Dist(o) <= eps
}

// Lerp returns the point at fraction t along a→b. t is not clamped.
func Lerp(a, b Vec, t float64) Vec {
	return Vec{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

// Cell is an integer grid cell, used for terrain and path search.
type Cell struct {
	X int
	Y int
}

func CellOf(v Vec) Cell {
	return Cell{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y))}
}

// Center returns the middle of the cell in world space.
func (c Cell) Center() Vec {
	return Vec{X: float64(c.X) + 0.5, Y: float64(c.Y) + 0.5}
}

// Rect is an axis aligned, inclusive-min exclusive-max region.
type Rect struct {
	Min Vec `json:"min"`
	Max Vec `json:"max"`
}

func (r Rect) Contains(v Vec) bool {
	return v.X >= r.Min.X && v.X < r.Max.X && v.Y >= r.Min.Y && v.Y < r.Max.Y
}

func Clamp01(f float64) float64 {
	if f < 0 || math.IsNaN(f) {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
