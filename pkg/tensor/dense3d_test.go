package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDense3DOffsetIndexingRoundTrip(t *testing.T) {
	d := NewDense3D([3]int{-1, -1, -1}, [3]int{5, 5, 5})
	d.Set(-1, 2, 3, 7.5)
	assert.Equal(t, 7.5, d.At(-1, 2, 3))
	assert.Equal(t, [3]int{-1, -1, -1}, d.Lo())
	assert.Equal(t, [3]int{3, 3, 3}, d.Hi())
}

func TestDense3DBoxArithmetic(t *testing.T) {
	lo := [3]int{0, 0, 0}
	size := [3]int{3, 3, 3}
	a := NewDense3D(lo, size)
	b := NewDense3D(lo, size)
	box := Box{{1, 1}, {1, 1}, {1, 1}}

	a.Set(1, 1, 1, 2.0)
	b.Set(1, 1, 1, 3.0)

	a.AddBox(box, b)
	assert.Equal(t, 5.0, a.At(1, 1, 1))

	a.SubBox(box, b)
	assert.Equal(t, 2.0, a.At(1, 1, 1))

	a.ScaleBox(box, 4.0)
	assert.Equal(t, 8.0, a.At(1, 1, 1))
}

func TestDense3DAddScaledBoxAndSubProductBox(t *testing.T) {
	lo := [3]int{0, 0, 0}
	size := [3]int{2, 2, 2}
	box := Box{{0, 1}, {0, 1}, {0, 1}}

	out := NewDense3D(lo, size)
	src := NewDense3D(lo, size)
	src.Fill(2.0)
	out.AddScaledBox(box, src, 3.0)
	assert.Equal(t, 6.0, out.At(0, 0, 0))

	a := NewDense3D(lo, size)
	c := NewDense3D(lo, size)
	a.Fill(2.0)
	c.Fill(3.0)
	out.Fill(10.0)
	out.SubProductBox(box, a, c)
	assert.Equal(t, 4.0, out.At(0, 0, 0))
}

func TestDense3DMaxAbsBoxIgnoresOutsideBox(t *testing.T) {
	d := NewDense3D([3]int{0, 0, 0}, [3]int{3, 3, 3})
	d.Fill(100.0)
	core := Box{{1, 1}, {1, 1}, {1, 1}}
	d.Set(1, 1, 1, -4.0)
	require.Equal(t, 4.0, d.MaxAbsBox(core))
}

func TestNewDense3DPanicsOnNonPositiveSize(t *testing.T) {
	assert.Panics(t, func() {
		NewDense3D([3]int{0, 0, 0}, [3]int{0, 1, 1})
	})
}
