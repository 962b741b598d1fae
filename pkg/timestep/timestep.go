// Package timestep implements the time-advance core: the single
// orchestration point that owns no persistent field state of its own but
// drives V, P (and optionally T) through one semi-implicit
// predictor/projection step (spec 4.3). Every other package in this
// module is a pure collaborator given its inputs; this is the one place
// that sequences them.
//
// Grounded on original_source/lib/timestep/eulerCN_d3.cc's two
// timeAdvance overloads and its four near-identical solveVx/solveVy/
// solveVz/solveT Jacobi loops, collapsed here into one generic
// jacobiSolve parameterized by diffusivity, data buffer and BC imposer,
// still surfaced as four distinct call sites (solveVx, solveVy, solveVz,
// solveT) for parity with the original naming and per-component error
// messages. The outer step sequencing also mirrors the shape of the
// teacher's Fluid.Simulate (pkg/fluid/fluid.go): zero scratch, accumulate
// RHS contributions, solve, correct, impose boundaries.
package timestep

import (
	"context"
	"fmt"
	"math"

	"github.com/roshansamuel/gpu-saras/pkg/diffop"
	"github.com/roshansamuel/gpu-saras/pkg/field"
	"github.com/roshansamuel/gpu-saras/pkg/forcing"
	"github.com/roshansamuel/gpu-saras/pkg/grid"
	"github.com/roshansamuel/gpu-saras/pkg/les"
	"github.com/roshansamuel/gpu-saras/pkg/poisson"
	"github.com/roshansamuel/gpu-saras/pkg/tensor"
	"github.com/roshansamuel/gpu-saras/pkg/transport"
	"github.com/roshansamuel/gpu-saras/pkg/workpool"
)

// lesWarmupFactor is the multiple of dt simulation time must exceed
// before the LES closure activates (spec 4.3 step 5). Named rather than
// inlined as "5" because, per SPEC_FULL's open-question resolution, the
// gate reads simTime rather than step count: a restart with a nonzero
// simTime makes LES active from the very first step after the restart,
// which is very likely the intended behaviour (warm-up is about flow
// development time, not wall-clock step count) but deserves to be
// visible to a reader rather than buried in an inequality.
const lesWarmupFactor = 5

// ConvergenceError replaces the original's fatal MPI_Finalize()+exit on
// Jacobi non-convergence (spec 4.5, REDESIGN FLAG 3): TimeAdvance returns
// this instead of terminating the process, leaving the decision to abort
// to the driver.
type ConvergenceError struct {
	Component string
	Rank      int
	Iteration int
	Residual  float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("timestep: Jacobi iterations for %s not converging on rank %d after %d iterations (residual %g)",
		e.Component, e.Rank, e.Iteration, e.Residual)
}

// Core is the time-advance orchestrator. It holds no field state besides
// its own single-allocation scratch buffers, reused every step per
// spec 3's lifecycle rule.
type Core struct {
	Grid    grid.Grid
	Op      *diffop.Operator
	Comm    transport.Comm
	Poisson poisson.PoissonSolver
	LES     les.LESModel

	VForcing forcing.VectorForcing
	TForcing forcing.ScalarForcing

	Nu, Kappa float64
	Dt        float64
	// SimTime is read (never advanced) by TimeAdvance for the LES
	// warm-up gate; the driver is responsible for incrementing it
	// between steps.
	SimTime float64

	// TestPoissonMode freezes the pressure RHS to 1 and zeroes P before
	// the correction (spec 6's compile-time TEST_POISSON switch,
	// REDESIGN FLAG 4: now a runtime field set only by test code).
	TestPoissonMode bool

	maxIterations int

	nseRHS           *field.PlainVector
	tmpRHS           *field.Plain
	pressureGradient *field.PlainVector
	mgRHS            *field.Plain
	pp               *field.Plain
	gradScratch      *tensor.Dense3D

	tempVx, tempVy, tempVz, tempT *tensor.Dense3D
}

// New builds a Core over g. maxIterations is computed once here as
// ceil(ln(Nx*Ny*Nz)^3) of the grid's local core sizes (spec 4.4),
// clamped to g.Params().MaxIterCap when that cap is positive (REDESIGN
// FLAG 2: the heuristic stays, but is now overridable).
func New(g grid.Grid, op *diffop.Operator, comm transport.Comm, ps poisson.PoissonSolver, lesModel les.LESModel, vf forcing.VectorForcing, tf forcing.ScalarForcing, nu, kappa, dt float64) *Core {
	if lesModel == nil {
		lesModel = les.None{}
	}
	if vf == nil {
		vf = forcing.ZeroVectorForcing{}
	}
	if tf == nil {
		tf = forcing.ZeroScalarForcing{}
	}

	c := &Core{
		Grid: g, Op: op, Comm: comm, Poisson: ps, LES: lesModel,
		VForcing: vf, TForcing: tf,
		Nu: nu, Kappa: kappa, Dt: dt,

		nseRHS:           field.NewPlainVector("nseRHS", g, comm),
		tmpRHS:           field.NewPlain("tmpRHS", g, comm),
		pressureGradient: field.NewPlainVector("pressureGradient", g, comm),
		mgRHS:            field.NewPlain("mgRHS", g, comm),
		pp:               field.NewPlain("Pp", g, comm),

		tempVx: newScratch(g), tempVy: newScratch(g), tempVz: newScratch(g), tempT: newScratch(g),
		gradScratch: newScratch(g),
	}
	c.maxIterations = computeMaxIterations(g)
	return c
}

func newScratch(g grid.Grid) *tensor.Dense3D {
	full := g.FullBox()
	lo := [3]int{full[0].Lo, full[1].Lo, full[2].Lo}
	size := [3]int{full[0].Len(), full[1].Len(), full[2].Len()}
	return tensor.NewDense3D(lo, size)
}

func computeMaxIterations(g grid.Grid) int {
	core := g.CoreBox()
	n := float64(core[0].Len() * core[1].Len() * core[2].Len())
	heuristic := int(math.Ceil(math.Pow(math.Log(n), 3)))
	if cap := g.Params().MaxIterCap; cap > 0 && heuristic > cap {
		return cap
	}
	return heuristic
}

// MaxIterations returns the configured Jacobi iteration cap.
func (c *Core) MaxIterations() int { return c.maxIterations }

// TimeAdvance advances velocity and pressure by one step (spec 4.3,
// hydrodynamics-only overload).
func (c *Core) TimeAdvance(ctx context.Context, V *field.Vector, P *field.Scalar) (subgridKE float64, err error) {
	c.nseRHS.Zero()

	V.ComputeDiff(c.nseRHS)
	c.nseRHS.Scale(c.Nu / 2)

	V.ComputeNLin(V, c.nseRHS)

	c.VForcing.AddForcing(c.nseRHS)

	if c.Grid.Params().LESModel != 0 && c.SimTime > lesWarmupFactor*c.Dt {
		subgridKE, err = c.LES.ComputeSG(c.nseRHS, V)
		if err != nil {
			return 0, fmt.Errorf("timestep: LES closure: %w", err)
		}
	}

	c.pressureGradient.Zero()
	P.Gradient(c.pressureGradient)
	c.nseRHS.SubVector(c.pressureGradient)

	c.nseRHS.Scale(c.Dt)
	c.nseRHS.X.AddFromStore(V.Vx)
	c.nseRHS.Y.AddFromStore(V.Vy)
	c.nseRHS.Z.AddFromStore(V.Vz)

	if err := c.syncRHS(ctx); err != nil {
		return subgridKE, err
	}

	if err := c.solveVx(ctx, V); err != nil {
		return subgridKE, err
	}
	if err := c.solveVy(ctx, V); err != nil {
		return subgridKE, err
	}
	if err := c.solveVz(ctx, V); err != nil {
		return subgridKE, err
	}

	if err := c.projectPressure(ctx, V, P); err != nil {
		return subgridKE, err
	}

	if err := V.ImposeBCs(ctx); err != nil {
		return subgridKE, fmt.Errorf("timestep: imposing velocity BCs: %w", err)
	}
	if err := P.ImposeBCs(ctx); err != nil {
		return subgridKE, fmt.Errorf("timestep: imposing pressure BCs: %w", err)
	}

	return subgridKE, nil
}

// TimeAdvanceScalar advances velocity, pressure and a transported scalar
// by one step (spec 4.3, coupled overload; the original's second
// timeAdvance(V, P, T) overload).
func (c *Core) TimeAdvanceScalar(ctx context.Context, V *field.Vector, P, T *field.Scalar) (subgridKE float64, err error) {
	c.nseRHS.Zero()
	c.tmpRHS.Zero()

	V.ComputeDiff(c.nseRHS)
	c.nseRHS.Scale(c.Nu / 2)

	T.ComputeDiff(c.tmpRHS)
	c.tmpRHS.Scale(c.Kappa / 2)

	V.ComputeNLin(V, c.nseRHS)
	T.ComputeNLin(V, c.tmpRHS)

	c.VForcing.AddForcing(c.nseRHS)
	c.TForcing.AddForcing(c.tmpRHS)

	if c.Grid.Params().LESModel != 0 && c.SimTime > lesWarmupFactor*c.Dt {
		switch c.Grid.Params().LESModel {
		case 1:
			subgridKE, err = c.LES.ComputeSG(c.nseRHS, V)
		default:
			subgridKE, err = c.LES.ComputeSGCoupled(c.nseRHS, c.tmpRHS, V, T)
		}
		if err != nil {
			return 0, fmt.Errorf("timestep: LES closure: %w", err)
		}
	}

	c.pressureGradient.Zero()
	P.Gradient(c.pressureGradient)
	c.nseRHS.SubVector(c.pressureGradient)

	c.nseRHS.Scale(c.Dt)
	c.nseRHS.X.AddFromStore(V.Vx)
	c.nseRHS.Y.AddFromStore(V.Vy)
	c.nseRHS.Z.AddFromStore(V.Vz)

	c.tmpRHS.Scale(c.Dt)
	c.tmpRHS.AddFromStore(T.Store)

	if err := c.syncRHS(ctx); err != nil {
		return subgridKE, err
	}
	if err := c.tmpRHS.Sync(ctx); err != nil {
		return subgridKE, fmt.Errorf("timestep: syncing scalar RHS: %w", err)
	}

	if err := c.solveVx(ctx, V); err != nil {
		return subgridKE, err
	}
	if err := c.solveVy(ctx, V); err != nil {
		return subgridKE, err
	}
	if err := c.solveVz(ctx, V); err != nil {
		return subgridKE, err
	}
	if err := c.solveT(ctx, T); err != nil {
		return subgridKE, err
	}

	if err := c.projectPressure(ctx, V, P); err != nil {
		return subgridKE, err
	}

	if err := V.ImposeBCs(ctx); err != nil {
		return subgridKE, fmt.Errorf("timestep: imposing velocity BCs: %w", err)
	}
	if err := P.ImposeBCs(ctx); err != nil {
		return subgridKE, fmt.Errorf("timestep: imposing pressure BCs: %w", err)
	}
	if err := T.ImposeBCs(ctx); err != nil {
		return subgridKE, fmt.Errorf("timestep: imposing scalar BCs: %w", err)
	}

	return subgridKE, nil
}

func (c *Core) syncRHS(ctx context.Context) error {
	if err := c.nseRHS.X.Sync(ctx); err != nil {
		return fmt.Errorf("timestep: syncing momentum RHS x: %w", err)
	}
	if err := c.nseRHS.Y.Sync(ctx); err != nil {
		return fmt.Errorf("timestep: syncing momentum RHS y: %w", err)
	}
	if err := c.nseRHS.Z.Sync(ctx); err != nil {
		return fmt.Errorf("timestep: syncing momentum RHS z: %w", err)
	}
	return nil
}

// projectPressure implements spec 4.3 steps 9-11: the divergence RHS,
// the Poisson solve, and the velocity/pressure correction.
func (c *Core) projectPressure(ctx context.Context, V *field.Vector, P *field.Scalar) error {
	c.mgRHS.Zero()
	V.Divergence(c.mgRHS)
	c.mgRHS.Scale(1.0 / c.Dt)

	core := c.Grid.CoreBox()
	if c.TestPoissonMode {
		c.mgRHS.Data().FillBox(core, 1.0)
	}

	c.pp.Zero()
	if err := c.Poisson.Solve(ctx, c.pp, c.mgRHS); err != nil {
		return fmt.Errorf("timestep: pressure Poisson solve: %w", err)
	}
	if err := c.pp.Sync(ctx); err != nil {
		return fmt.Errorf("timestep: syncing pressure correction: %w", err)
	}

	if c.TestPoissonMode {
		P.Store.Data().FillBox(core, 0)
	}
	P.Store.Data().AddBox(core, c.pp.Data())

	c.pressureGradient.Zero()
	c.gradientOf(c.pressureGradient, c.pp.Data())
	c.pressureGradient.Scale(c.Dt)

	V.Vx.Data().SubBox(core, c.pressureGradient.X.Data())
	V.Vy.Data().SubBox(core, c.pressureGradient.Y.Data())
	V.Vz.Data().SubBox(core, c.pressureGradient.Z.Data())

	return nil
}

// gradientOf writes the three partials of src into out, the same
// computation field.Scalar.Gradient performs but over a raw Dense3D
// (the pressure correction Pp has no BC/operator wrapper of its own —
// it is a spec "plain" field).
func (c *Core) gradientOf(out *field.PlainVector, src *tensor.Dense3D) {
	core := c.Grid.CoreBox()
	c.Op.D1(0, src, c.gradScratch)
	out.X.Data().CopyBox(core, c.gradScratch)
	if c.Grid.Params().Planar {
		out.Y.Zero()
	} else {
		c.Op.D1(1, src, c.gradScratch)
		out.Y.Data().CopyBox(core, c.gradScratch)
	}
	c.Op.D1(2, src, c.gradScratch)
	out.Z.Data().CopyBox(core, c.gradScratch)
}

func (c *Core) solveVx(ctx context.Context, V *field.Vector) error {
	imposeBC := func(context.Context) error { V.ImposeVxBC(); return nil }
	return c.jacobiSolve(ctx, "Vx", c.Nu, V.Vx.Data(), c.nseRHS.X.Data(), c.tempVx, imposeBC)
}

func (c *Core) solveVy(ctx context.Context, V *field.Vector) error {
	imposeBC := func(context.Context) error { V.ImposeVyBC(); return nil }
	return c.jacobiSolve(ctx, "Vy", c.Nu, V.Vy.Data(), c.nseRHS.Y.Data(), c.tempVy, imposeBC)
}

func (c *Core) solveVz(ctx context.Context, V *field.Vector) error {
	imposeBC := func(context.Context) error { V.ImposeVzBC(); return nil }
	return c.jacobiSolve(ctx, "Vz", c.Nu, V.Vz.Data(), c.nseRHS.Z.Data(), c.tempVz, imposeBC)
}

func (c *Core) solveT(ctx context.Context, T *field.Scalar) error {
	return c.jacobiSolve(ctx, "T", c.Kappa, T.Store.Data(), c.tmpRHS.Data(), c.tempT, T.ImposeBCs)
}

// jacobiSolve implements spec 4.4's per-component iteration: the
// four near-identical solveVx/solveVy/solveVz/solveT functions of the
// original collapse into this one generic routine, parameterized by
// diffusivity, the field being updated in place, the fixed RHS, a
// private scratch buffer, and the BC imposer to run each sweep.
func (c *Core) jacobiSolve(ctx context.Context, name string, diffusivity float64, current, rhs, temp *tensor.Dense3D, imposeBC func(context.Context) error) error {
	core := c.Grid.CoreBox()
	nThreads := c.Grid.Params().NThreads

	iterCount := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		workpool.Range(nThreads, core[0].Lo, core[0].Hi, func(i int) {
			for j := core[1].Lo; j <= core[1].Hi; j++ {
				for k := core[2].Lo; k <= core[2].Hi; k++ {
					off := c.Op.OffDiagLaplacian(current, i, j, k)
					diag := c.Op.DiagCoeff(i, j, k)
					v := (c.Dt*diffusivity/2*off + rhs.At(i, j, k)) / (1 + c.Dt*diffusivity*diag)
					temp.Set(i, j, k, v)
				}
			}
		})

		current.CopyBox(core, temp)
		if err := imposeBC(ctx); err != nil {
			return fmt.Errorf("timestep: imposing BC during %s Jacobi sweep: %w", name, err)
		}

		for i := core[0].Lo; i <= core[0].Hi; i++ {
			for j := core[1].Lo; j <= core[1].Hi; j++ {
				for k := core[2].Lo; k <= core[2].Hi; k++ {
					full := c.Dt * diffusivity / 2 * c.Op.FullLaplacian(current, i, j, k)
					resid := current.At(i, j, k) - (full + rhs.At(i, j, k))
					if resid < 0 {
						resid = -resid
					}
					temp.Set(i, j, k, resid)
				}
			}
		}

		localMax := temp.MaxAbsBox(core)
		globalMax, err := c.Comm.AllreduceMax(ctx, localMax)
		if err != nil {
			return fmt.Errorf("timestep: reducing %s residual: %w", name, err)
		}

		if globalMax < c.Grid.Params().CNTolerance {
			return nil
		}

		iterCount++
		if iterCount > c.maxIterations {
			return &ConvergenceError{
				Component: name,
				Rank:      c.Comm.Rank(),
				Iteration: iterCount,
				Residual:  globalMax,
			}
		}
	}
}
