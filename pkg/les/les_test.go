package les

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roshansamuel/gpu-saras/pkg/bc"
	"github.com/roshansamuel/gpu-saras/pkg/diffop"
	"github.com/roshansamuel/gpu-saras/pkg/field"
	"github.com/roshansamuel/gpu-saras/pkg/grid"
	"github.com/roshansamuel/gpu-saras/pkg/transport"
)

func wallFaces(g grid.Grid) [6]bc.BoundaryCondition {
	return [6]bc.BoundaryCondition{
		bc.NewWall(g, grid.XMinus), bc.NewWall(g, grid.XPlus),
		bc.NewWall(g, grid.YMinus), bc.NewWall(g, grid.YPlus),
		bc.NewWall(g, grid.ZMinus), bc.NewWall(g, grid.ZPlus),
	}
}

func TestUniformFlowHasNoSubgridDissipation(t *testing.T) {
	g := grid.NewStaggeredGrid(grid.Params{NThreads: 2, PadWidth: 1}, 6, 6, 6, 1.0, 1.0, 1.0, 0.0)
	comm := transport.NewSerialComm()
	op := diffop.New(g)
	faces := [3][6]bc.BoundaryCondition{wallFaces(g), wallFaces(g), wallFaces(g)}
	V := field.NewVector("V", g, comm, op, faces)
	V.Vx.Data().Fill(1.0)
	V.Vy.Data().Fill(2.0)
	V.Vz.Data().Fill(3.0)

	model := New(g, op, 0.17, 0.7)
	rhs := field.NewPlainVector("nseRHS", g, comm)
	ke, err := model.ComputeSG(rhs, V)

	require.NoError(t, err)
	require.InDelta(t, 0.0, ke, 1e-9)
}
