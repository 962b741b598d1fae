package diffop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roshansamuel/gpu-saras/pkg/grid"
	"github.com/roshansamuel/gpu-saras/pkg/tensor"
)

func uniformGrid(planar bool) *grid.StaggeredGrid {
	params := grid.Params{NThreads: 2, PadWidth: 1, Planar: planar}
	return grid.NewStaggeredGrid(params, 6, 6, 6, 1.0, 1.0, 1.0, 0.0)
}

// linearField fills every cell, including halos, with a linear ramp along
// axis so that centred differences have a known closed form.
func linearField(g grid.Grid, axis int) *tensor.Dense3D {
	full := g.FullBox()
	lo := [3]int{full[0].Lo, full[1].Lo, full[2].Lo}
	size := [3]int{full[0].Len(), full[1].Len(), full[2].Len()}
	f := tensor.NewDense3D(lo, size)
	for i := full[0].Lo; i <= full[0].Hi; i++ {
		for j := full[1].Lo; j <= full[1].Hi; j++ {
			for k := full[2].Lo; k <= full[2].Hi; k++ {
				idx := [3]int{i, j, k}
				f.Set(i, j, k, float64(idx[axis]))
			}
		}
	}
	return f
}

func TestD1OfLinearRampIsConstant(t *testing.T) {
	g := uniformGrid(false)
	op := New(g)
	dXi, _, _ := g.Spacing()

	F := linearField(g, 0)
	D := tensor.NewDense3D(F.Lo(), F.Size())
	op.D1(0, F, D)

	core := g.CoreBox()
	want := 1.0 / dXi
	for i := core[0].Lo; i <= core[0].Hi; i++ {
		require.InDelta(t, want, D.At(i, core[1].Lo, core[2].Lo), 1e-9)
	}
}

func TestD1SkipsYInPlanarMode(t *testing.T) {
	g := uniformGrid(true)
	op := New(g)

	F := linearField(g, 1)
	D := tensor.NewDense3D(F.Lo(), F.Size())
	op.D1(1, F, D)

	core := g.CoreBox()
	assert.Equal(t, 0.0, D.At(core[0].Lo, core[1].Lo, core[2].Lo))
}

func TestD2OfQuadraticIsConstantSecondDifference(t *testing.T) {
	g := uniformGrid(false)
	op := New(g)
	dXi, _, _ := g.Spacing()

	full := g.FullBox()
	lo := [3]int{full[0].Lo, full[1].Lo, full[2].Lo}
	size := [3]int{full[0].Len(), full[1].Len(), full[2].Len()}
	F := tensor.NewDense3D(lo, size)
	for i := full[0].Lo; i <= full[0].Hi; i++ {
		for j := full[1].Lo; j <= full[1].Hi; j++ {
			for k := full[2].Lo; k <= full[2].Hi; k++ {
				F.Set(i, j, k, float64(i*i))
			}
		}
	}

	D := tensor.NewDense3D(F.Lo(), F.Size())
	op.D2(0, F, D)

	core := g.CoreBox()
	want := 2.0 / (dXi * dXi)
	require.InDelta(t, want, D.At(core[0].Lo, core[1].Lo, core[2].Lo), 1e-9)
}

func TestFullLaplacianMatchesOffDiagMinusTwiceDiagTimesCentre(t *testing.T) {
	g := uniformGrid(false)
	op := New(g)
	F := linearField(g, 0)
	// Perturb one interior cell so the centre term is non-trivial.
	core := g.CoreBox()
	i, j, k := core[0].Lo+1, core[1].Lo+1, core[2].Lo+1
	F.Set(i, j, k, 42.0)

	full := op.FullLaplacian(F, i, j, k)
	off := op.OffDiagLaplacian(F, i, j, k)
	diag := op.DiagCoeff(i, j, k)
	centre := F.At(i, j, k)

	assert.InDelta(t, off-2*diag*centre, full, 1e-9)
}
