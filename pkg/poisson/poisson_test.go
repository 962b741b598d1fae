package poisson

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roshansamuel/gpu-saras/pkg/diffop"
	"github.com/roshansamuel/gpu-saras/pkg/field"
	"github.com/roshansamuel/gpu-saras/pkg/grid"
	"github.com/roshansamuel/gpu-saras/pkg/transport"
)

func TestSolveWithZeroRHSLeavesFieldAtZero(t *testing.T) {
	g := grid.NewStaggeredGrid(grid.Params{NThreads: 2, PadWidth: 1, XPeriodic: true, YPeriodic: true, ZPeriodic: true}, 6, 6, 6, 1.0, 1.0, 1.0, 0.0)
	comm := transport.NewSerialComm()
	op := diffop.New(g)
	solver := New(g, op, comm, 1e-9)

	out := field.NewPlain("P", g, comm)
	rhs := field.NewPlain("rhs", g, comm)

	require.NoError(t, solver.Solve(context.Background(), out, rhs))

	core := g.CoreBox()
	require.InDelta(t, 0.0, out.Data().At(core[0].Lo, core[1].Lo, core[2].Lo), 1e-9)
}

func TestNonConvergenceErrorMessage(t *testing.T) {
	err := &NonConvergenceError{Cycles: 5, Residual: 0.01}
	require.Contains(t, err.Error(), "5 cycles")
}
