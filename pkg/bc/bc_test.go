package bc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roshansamuel/gpu-saras/pkg/grid"
	"github.com/roshansamuel/gpu-saras/pkg/tensor"
)

func smallGrid() *grid.StaggeredGrid {
	return grid.NewStaggeredGrid(grid.Params{PadWidth: 1}, 4, 4, 4, 1.0, 1.0, 1.0, 0.0)
}

func TestParseKindDefaultsToWall(t *testing.T) {
	assert.Equal(t, Wall, ParseKind("no_such_kind"))
	assert.Equal(t, Dirichlet, ParseKind(" Dirichlet "))
	assert.Equal(t, Inflow, ParseKind("inlet"))
	assert.Equal(t, Outflow, ParseKind("OUTFLOW"))
}

func TestDirichletFillsWallWithConstant(t *testing.T) {
	g := smallGrid()
	d := NewDirichlet(g, grid.XMinus, 3.5)

	full := g.FullBox()
	lo := [3]int{full[0].Lo, full[1].Lo, full[2].Lo}
	data := tensor.NewDense3D(lo, [3]int{full[0].Len(), full[1].Len(), full[2].Len()})

	d.ImposeBC(data)

	wall := g.WallBox(grid.XMinus)
	for j := wall[1].Lo; j <= wall[1].Hi; j++ {
		for k := wall[2].Lo; k <= wall[2].Hi; k++ {
			require.Equal(t, 3.5, data.At(wall[0].Lo, j, k))
		}
	}
}

func TestNeumannMirrorsInteriorLayer(t *testing.T) {
	g := smallGrid()
	n := NewNeumann(g, grid.XPlus)

	full := g.FullBox()
	lo := [3]int{full[0].Lo, full[1].Lo, full[2].Lo}
	data := tensor.NewDense3D(lo, [3]int{full[0].Len(), full[1].Len(), full[2].Len()})

	core := g.CoreBox()
	for j := full[1].Lo; j <= full[1].Hi; j++ {
		for k := full[2].Lo; k <= full[2].Hi; k++ {
			data.Set(core[0].Hi, j, k, 9.0)
		}
	}

	n.ImposeBC(data)

	wall := g.WallBox(grid.XPlus)
	for j := wall[1].Lo; j <= wall[1].Hi; j++ {
		for k := wall[2].Lo; k <= wall[2].Hi; k++ {
			require.Equal(t, 9.0, data.At(wall[0].Lo, j, k))
		}
	}
}

func TestWallBCZeroesWallLayer(t *testing.T) {
	g := smallGrid()
	w := NewWall(g, grid.ZMinus)

	full := g.FullBox()
	lo := [3]int{full[0].Lo, full[1].Lo, full[2].Lo}
	data := tensor.NewDense3D(lo, [3]int{full[0].Len(), full[1].Len(), full[2].Len()})
	data.Fill(5.0)

	w.ImposeBC(data)

	wall := g.WallBox(grid.ZMinus)
	assert.Equal(t, 0.0, data.At(wall[0].Lo, wall[1].Lo, wall[2].Lo))
}

func TestPeriodicBCIsNoOp(t *testing.T) {
	g := smallGrid()
	p := NewPeriodic(g, grid.YMinus)

	full := g.FullBox()
	lo := [3]int{full[0].Lo, full[1].Lo, full[2].Lo}
	data := tensor.NewDense3D(lo, [3]int{full[0].Len(), full[1].Len(), full[2].Len()})
	data.Fill(1.0)

	p.ImposeBC(data)

	assert.Equal(t, Periodic, p.Kind())
	assert.Equal(t, 1.0, data.At(lo[0], lo[1], lo[2]))
}
