package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistAndLerp(t *testing.T) {
	a := Vec{X: 0, Y: 0}
	b := Vec{X: 3, Y: 4}
	assert.InDelta(t, 5.0, a.Dist(b), 1e-9)
	assert.Equal(t, Vec{X: 1.5, Y: 2}, Lerp(a, b, 0.5))
	assert.True(t, a.Near(Vec{X: 0.01}, 0.05))
	assert.False(t, a.Near(b, 4.99))
}

func TestCellOfNegative(t *testing.T) {
	assert.Equal(t, Cell{X: -1, Y: 2}, CellOf(Vec{X: -0.2, Y: 2.9}))
	assert.Equal(t, Vec{X: -0.5, Y: 2.5}, Cell{X: -1, Y: 2}.Center())
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-1))
	assert.Equal(t, 1.0, Clamp01(3))
	assert.Equal(t, 0.25, Clamp01(0.25))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
}

func TestRectContains(t *testing.T) {
	r := Rect{Min: Vec{X: 0, Y: 0}, Max: Vec{X: 2, Y: 2}}
	assert.True(t, r.Contains(Vec{X: 0, Y: 1.99}))
	assert.False(t, r.Contains(Vec{X: 2, Y: 1}))
}
