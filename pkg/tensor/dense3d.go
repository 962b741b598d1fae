// Package tensor provides the dense, strided 3-D array that backs every
// field in the solver. It replaces the blitz::Array<real,3> of the
// original implementation: arbitrary lower-bound re-indexing, rectangular
// sub-views, element-wise in-place arithmetic, and reductions, without
// exposing the underlying storage to callers that only need raw pointers
// and strides for stencil loops.
package tensor

import "fmt"

// Range is an inclusive index range along one axis, expressed in the
// tensor's own (possibly negative) indexing space.
type Range struct {
	Lo, Hi int
}

func (r Range) Len() int { return r.Hi - r.Lo + 1 }

// Box is a rectangular sub-range of a Dense3D, e.g. the core region or a
// wall slice.
type Box [3]Range

// Dense3D is a dense 3-D array re-indexed so that index 0 of each axis
// falls at an arbitrary lower bound (the grid's halo width determines how
// far negative that bound typically is).
type Dense3D struct {
	lo     [3]int
	size   [3]int
	stride [3]int
	data   []float64
}

// NewDense3D allocates a zeroed array covering [lo[a], lo[a]+size[a]) on
// every axis a.
func NewDense3D(lo, size [3]int) *Dense3D {
	for a := 0; a < 3; a++ {
		if size[a] <= 0 {
			panic(fmt.Sprintf("tensor: non-positive size on axis %d: %d", a, size[a]))
		}
	}
	t := &Dense3D{lo: lo, size: size}
	t.stride[2] = 1
	t.stride[1] = size[2]
	t.stride[0] = size[1] * size[2]
	t.data = make([]float64, size[0]*size[1]*size[2])
	return t
}

func (t *Dense3D) Lo() [3]int   { return t.lo }
func (t *Dense3D) Size() [3]int { return t.size }

// Hi returns the inclusive upper bound on each axis.
func (t *Dense3D) Hi() [3]int {
	return [3]int{t.lo[0] + t.size[0] - 1, t.lo[1] + t.size[1] - 1, t.lo[2] + t.size[2] - 1}
}

// Strides returns the per-axis element strides into Raw(), for callers
// that want to drive their own pointer-and-stride inner loops.
func (t *Dense3D) Strides() [3]int { return t.stride }

// Raw exposes the backing slice for vectorisable stencil kernels. Callers
// must index it via Strides()/Lo(); Dense3D makes no further promises
// about layout beyond "row-major, z fastest".
func (t *Dense3D) Raw() []float64 { return t.data }

func (t *Dense3D) offset(i, j, k int) int {
	return (i-t.lo[0])*t.stride[0] + (j-t.lo[1])*t.stride[1] + (k - t.lo[2])
}

func (t *Dense3D) At(i, j, k int) float64 {
	return t.data[t.offset(i, j, k)]
}

func (t *Dense3D) Set(i, j, k int, v float64) {
	t.data[t.offset(i, j, k)] = v
}

func (t *Dense3D) Add(i, j, k int, v float64) {
	t.data[t.offset(i, j, k)] += v
}

// FullBox returns the box covering the entire padded array.
func (t *Dense3D) FullBox() Box {
	hi := t.Hi()
	return Box{{t.lo[0], hi[0]}, {t.lo[1], hi[1]}, {t.lo[2], hi[2]}}
}

// Fill sets every element, including halos, to v.
func (t *Dense3D) Fill(v float64) {
	for i := range t.data {
		t.data[i] = v
	}
}

// FillBox sets every element within b to v.
func (t *Dense3D) FillBox(b Box, v float64) {
	for i := b[0].Lo; i <= b[0].Hi; i++ {
		for j := b[1].Lo; j <= b[1].Hi; j++ {
			base := t.offset(i, j, b[2].Lo)
			for k := 0; k < b[2].Len(); k++ {
				t.data[base+k] = v
			}
		}
	}
}

// CopyFrom copies all elements (including halos) from src, which must
// have matching shape.
func (t *Dense3D) CopyFrom(src *Dense3D) {
	copy(t.data, src.data)
}

// CopyBox copies the box b from src into t.
func (t *Dense3D) CopyBox(b Box, src *Dense3D) {
	for i := b[0].Lo; i <= b[0].Hi; i++ {
		for j := b[1].Lo; j <= b[1].Hi; j++ {
			dBase := t.offset(i, j, b[2].Lo)
			sBase := src.offset(i, j, b[2].Lo)
			copy(t.data[dBase:dBase+b[2].Len()], src.data[sBase:sBase+b[2].Len()])
		}
	}
}

// AddBox adds src element-wise into t, restricted to box b.
func (t *Dense3D) AddBox(b Box, src *Dense3D) {
	for i := b[0].Lo; i <= b[0].Hi; i++ {
		for j := b[1].Lo; j <= b[1].Hi; j++ {
			for k := b[2].Lo; k <= b[2].Hi; k++ {
				t.Add(i, j, k, src.At(i, j, k))
			}
		}
	}
}

// SubBox subtracts src element-wise from t, restricted to box b.
func (t *Dense3D) SubBox(b Box, src *Dense3D) {
	for i := b[0].Lo; i <= b[0].Hi; i++ {
		for j := b[1].Lo; j <= b[1].Hi; j++ {
			for k := b[2].Lo; k <= b[2].Hi; k++ {
				t.Add(i, j, k, -src.At(i, j, k))
			}
		}
	}
}

// ScaleBox multiplies every element within b by k.
func (t *Dense3D) ScaleBox(b Box, k float64) {
	for i := b[0].Lo; i <= b[0].Hi; i++ {
		for j := b[1].Lo; j <= b[1].Hi; j++ {
			for k2 := b[2].Lo; k2 <= b[2].Hi; k2++ {
				t.Set(i, j, k2, t.At(i, j, k2)*k)
			}
		}
	}
}

// AddScaledBox computes t += k*src element-wise, restricted to box b.
func (t *Dense3D) AddScaledBox(b Box, src *Dense3D, k float64) {
	for i := b[0].Lo; i <= b[0].Hi; i++ {
		for j := b[1].Lo; j <= b[1].Hi; j++ {
			for k2 := b[2].Lo; k2 <= b[2].Hi; k2++ {
				t.Add(i, j, k2, k*src.At(i, j, k2))
			}
		}
	}
}

// SubProductBox subtracts the element-wise product a*c from t, restricted
// to box b — the advection-term accumulation computeNLin needs.
func (t *Dense3D) SubProductBox(b Box, a, c *Dense3D) {
	for i := b[0].Lo; i <= b[0].Hi; i++ {
		for j := b[1].Lo; j <= b[1].Hi; j++ {
			for k := b[2].Lo; k <= b[2].Hi; k++ {
				t.Add(i, j, k, -a.At(i, j, k)*c.At(i, j, k))
			}
		}
	}
}

// AddInPlace adds src element-wise (including halos) into t.
func (t *Dense3D) AddInPlace(src *Dense3D) {
	for i := range t.data {
		t.data[i] += src.data[i]
	}
}

// SubInPlace subtracts src element-wise (including halos) from t.
func (t *Dense3D) SubInPlace(src *Dense3D) {
	for i := range t.data {
		t.data[i] -= src.data[i]
	}
}

// ScaleInPlace multiplies every element (including halos) by k.
func (t *Dense3D) ScaleInPlace(k float64) {
	for i := range t.data {
		t.data[i] *= k
	}
}

// AddScaled computes t += k*src element-wise over the whole array.
func (t *Dense3D) AddScaled(src *Dense3D, k float64) {
	for i := range t.data {
		t.data[i] += k * src.data[i]
	}
}

// MaxAbsBox returns the maximum absolute value of t over box b — the
// local half of the two-stage (local max, then MPI_Allreduce(MAX))
// reduction used throughout the solver.
func (t *Dense3D) MaxAbsBox(b Box) float64 {
	max := 0.0
	for i := b[0].Lo; i <= b[0].Hi; i++ {
		for j := b[1].Lo; j <= b[1].Hi; j++ {
			base := t.offset(i, j, b[2].Lo)
			for k := 0; k < b[2].Len(); k++ {
				v := t.data[base+k]
				if v < 0 {
					v = -v
				}
				if v > max {
					max = v
				}
			}
		}
	}
	return max
}

// SumBox sums t over box b.
func (t *Dense3D) SumBox(b Box) float64 {
	sum := 0.0
	for i := b[0].Lo; i <= b[0].Hi; i++ {
		for j := b[1].Lo; j <= b[1].Hi; j++ {
			base := t.offset(i, j, b[2].Lo)
			for k := 0; k < b[2].Len(); k++ {
				sum += t.data[base+k]
			}
		}
	}
	return sum
}
