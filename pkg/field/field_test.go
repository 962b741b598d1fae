package field

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roshansamuel/gpu-saras/pkg/bc"
	"github.com/roshansamuel/gpu-saras/pkg/diffop"
	"github.com/roshansamuel/gpu-saras/pkg/grid"
	"github.com/roshansamuel/gpu-saras/pkg/transport"
)

func testGrid(planar bool) *grid.StaggeredGrid {
	params := grid.Params{NThreads: 2, PadWidth: 1, Planar: planar}
	return grid.NewStaggeredGrid(params, 6, 6, 6, 1.0, 1.0, 1.0, 0.0)
}

func wallBCs(g grid.Grid) [6]bc.BoundaryCondition {
	return [6]bc.BoundaryCondition{
		bc.NewWall(g, grid.XMinus), bc.NewWall(g, grid.XPlus),
		bc.NewWall(g, grid.YMinus), bc.NewWall(g, grid.YPlus),
		bc.NewWall(g, grid.ZMinus), bc.NewWall(g, grid.ZPlus),
	}
}

func TestScalarComputeDiffOfQuadraticIsConstant(t *testing.T) {
	g := testGrid(false)
	comm := transport.NewSerialComm()
	op := diffop.New(g)
	s := NewScalar("T", g, comm, op, wallBCs(g))

	full := g.FullBox()
	for i := full[0].Lo; i <= full[0].Hi; i++ {
		for j := full[1].Lo; j <= full[1].Hi; j++ {
			for k := full[2].Lo; k <= full[2].Hi; k++ {
				s.Store.Data().Set(i, j, k, float64(i*i+j*j+k*k))
			}
		}
	}

	out := NewPlain("diff", g, comm)
	s.ComputeDiff(out)

	dXi, _, _ := g.Spacing()
	want := 3.0 * 2.0 / (dXi * dXi)
	core := g.CoreBox()
	require.InDelta(t, want, out.Data().At(core[0].Lo+1, core[1].Lo+1, core[2].Lo+1), 1e-6)
}

func TestVectorDivergenceOfUniformFlowIsZero(t *testing.T) {
	g := testGrid(false)
	comm := transport.NewSerialComm()
	op := diffop.New(g)
	faces := [3][6]bc.BoundaryCondition{wallBCs(g), wallBCs(g), wallBCs(g)}
	v := NewVector("V", g, comm, op, faces)

	v.Vx.Data().Fill(1.0)
	v.Vy.Data().Fill(2.0)
	v.Vz.Data().Fill(-3.0)

	out := NewPlain("div", g, comm)
	v.Divergence(out)

	core := g.CoreBox()
	require.InDelta(t, 0.0, out.Data().At(core[0].Lo+1, core[1].Lo+1, core[2].Lo+1), 1e-9)
}

func TestScalarImposeBCsWritesWallLayer(t *testing.T) {
	g := testGrid(false)
	comm := transport.NewSerialComm()
	op := diffop.New(g)
	faces := [6]bc.BoundaryCondition{
		bc.NewDirichlet(g, grid.XMinus, 7.0), bc.NewWall(g, grid.XPlus),
		bc.NewWall(g, grid.YMinus), bc.NewWall(g, grid.YPlus),
		bc.NewWall(g, grid.ZMinus), bc.NewWall(g, grid.ZPlus),
	}
	s := NewScalar("T", g, comm, op, faces)

	require.NoError(t, s.ImposeBCs(context.Background()))

	// Probe a cell of the x-minus wall that no other face's wall shares:
	// the y-/z- walls span the full padded x range and, imposed after
	// x-minus, overwrite the shared corner cells.
	wall := g.WallBox(grid.XMinus)
	core := g.CoreBox()
	require.Equal(t, 7.0, s.Store.Data().At(wall[0].Lo, core[1].Lo, core[2].Lo))
}

func TestPlainArithmetic(t *testing.T) {
	g := testGrid(false)
	comm := transport.NewSerialComm()
	a := NewPlain("a", g, comm)
	b := NewPlain("b", g, comm)

	core := g.CoreBox()
	a.Data().FillBox(core, 2.0)
	b.Data().FillBox(core, 3.0)

	a.AddScaled(b, 2.0)
	require.Equal(t, 8.0, a.Data().At(core[0].Lo, core[1].Lo, core[2].Lo))

	a.Scale(0.5)
	require.Equal(t, 4.0, a.Data().At(core[0].Lo, core[1].Lo, core[2].Lo))
}
