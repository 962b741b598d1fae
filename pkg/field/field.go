// Package field implements the storage and operator-decorated field types
// the time-advance core composes: Store (backing array + halo identity),
// Plain/PlainVector (BC-free value-semantic scratch), and Scalar/Vector
// (Store(s) decorated with a differential operator, BC set, and transport
// handle). Grounded on the original's field/sfield/vfield split, realized
// in Go as storage-sharing composition rather than inheritance.
package field

import (
	"context"
	"math"

	"github.com/roshansamuel/gpu-saras/pkg/bc"
	"github.com/roshansamuel/gpu-saras/pkg/diffop"
	"github.com/roshansamuel/gpu-saras/pkg/grid"
	"github.com/roshansamuel/gpu-saras/pkg/tensor"
	"github.com/roshansamuel/gpu-saras/pkg/transport"
)

// Store owns one backing array and the grid that describes its
// core/wall/halo geometry, implementing transport.HaloField directly so
// the time-advance core can hand it to a Comm without further wrapping.
type Store struct {
	id   string
	data *tensor.Dense3D
	grid grid.Grid
	comm transport.Comm
}

// NewStore allocates a zeroed array covering g's full padded range.
func NewStore(id string, g grid.Grid, comm transport.Comm) *Store {
	return &Store{id: id, data: newBacking(g), grid: g, comm: comm}
}

func newBacking(g grid.Grid) *tensor.Dense3D {
	full := g.FullBox()
	lo := [3]int{full[0].Lo, full[1].Lo, full[2].Lo}
	size := [3]int{full[0].Len(), full[1].Len(), full[2].Len()}
	return tensor.NewDense3D(lo, size)
}

func (s *Store) ID() string            { return s.id }
func (s *Store) Data() *tensor.Dense3D { return s.data }
func (s *Store) Grid() grid.Grid       { return s.grid }

// Sync exchanges this store's halo pad with its face-neighbours.
func (s *Store) Sync(ctx context.Context) error {
	return s.comm.SyncHalo(ctx, s)
}

// Max returns the global (all-rank) maximum absolute value over the core
// region, the two-stage local-max-then-Allreduce pattern used throughout.
func (s *Store) Max(ctx context.Context) (float64, error) {
	local := s.data.MaxAbsBox(s.grid.CoreBox())
	return s.comm.AllreduceMax(ctx, local)
}

// Plain is a BC-free, value-semantic dual of Store: the time-advance
// core's scratch buffer, freely zeroed, scaled, and added to. It shares no
// storage with any Store, implements transport.HaloField under its own
// identity, and is the only type the core copies and composes
// arithmetically (spec's "plain scalar/vector field" component).
type Plain struct {
	id   string
	data *tensor.Dense3D
	grid grid.Grid
	comm transport.Comm
}

func NewPlain(id string, g grid.Grid, comm transport.Comm) *Plain {
	return &Plain{id: id, data: newBacking(g), grid: g, comm: comm}
}

func (p *Plain) ID() string            { return p.id }
func (p *Plain) Data() *tensor.Dense3D { return p.data }
func (p *Plain) Grid() grid.Grid       { return p.grid }

func (p *Plain) Sync(ctx context.Context) error {
	return p.comm.SyncHalo(ctx, p)
}

// Zero clears the core region.
func (p *Plain) Zero() { p.data.FillBox(p.grid.CoreBox(), 0) }

// Scale multiplies the core region by k.
func (p *Plain) Scale(k float64) { p.data.ScaleBox(p.grid.CoreBox(), k) }

// AddScaled computes p += k*src over the core region.
func (p *Plain) AddScaled(src *Plain, k float64) {
	p.data.AddScaledBox(p.grid.CoreBox(), src.data, k)
}

// Add computes p += src over the core region.
func (p *Plain) Add(src *Plain) { p.data.AddBox(p.grid.CoreBox(), src.data) }

// Sub computes p -= src over the core region.
func (p *Plain) Sub(src *Plain) { p.data.SubBox(p.grid.CoreBox(), src.data) }

// CopyFromStore overwrites p's core region with s's.
func (p *Plain) CopyFromStore(s *Store) { p.data.CopyBox(p.grid.CoreBox(), s.data) }

// AddFromStore adds s's core region into p, e.g. step 4.3.7's "+V" once
// the diffusion/advection/forcing accumulation has already been scaled.
func (p *Plain) AddFromStore(s *Store) { p.data.AddBox(p.grid.CoreBox(), s.data) }

// CopyToStore overwrites s's core region with p's, used after a Jacobi
// solve has produced the new field value into scratch storage.
func (p *Plain) CopyToStore(s *Store) { s.data.CopyBox(p.grid.CoreBox(), p.data) }

// PlainVector bundles three Plain scratch buffers, the RHS type the
// vector-valued steps of the time-advance core operate on.
type PlainVector struct {
	X, Y, Z *Plain
}

// NewPlainVector allocates three Plain buffers sharing one id prefix.
func NewPlainVector(idPrefix string, g grid.Grid, comm transport.Comm) *PlainVector {
	return &PlainVector{
		X: NewPlain(idPrefix+".x", g, comm),
		Y: NewPlain(idPrefix+".y", g, comm),
		Z: NewPlain(idPrefix+".z", g, comm),
	}
}

func (v *PlainVector) Zero() {
	v.X.Zero()
	v.Y.Zero()
	v.Z.Zero()
}

func (v *PlainVector) Scale(k float64) {
	v.X.Scale(k)
	v.Y.Scale(k)
	v.Z.Scale(k)
}

// AddVector computes v += src component-wise.
func (v *PlainVector) AddVector(src *PlainVector) {
	v.X.Add(src.X)
	v.Y.Add(src.Y)
	v.Z.Add(src.Z)
}

// SubVector computes v -= src component-wise.
func (v *PlainVector) SubVector(src *PlainVector) {
	v.X.Sub(src.X)
	v.Y.Sub(src.Y)
	v.Z.Sub(src.Z)
}

// AddScaledVector computes v += k*src component-wise.
func (v *PlainVector) AddScaledVector(src *PlainVector, k float64) {
	v.X.AddScaled(src.X, k)
	v.Y.AddScaled(src.Y, k)
	v.Z.AddScaled(src.Z, k)
}

// Scalar decorates one Store with a differential operator, a six-face BC
// set, and the transport handle needed for imposeBCs, plus a reusable
// scratch buffer for per-axis derivative accumulation (allocated once,
// reused every call — spec's single-allocation scratch policy).
type Scalar struct {
	Store *Store
	BC    [6]bc.BoundaryCondition

	op      *diffop.Operator
	scratch *tensor.Dense3D
}

// NewScalar builds a Scalar over a freshly allocated Store.
func NewScalar(id string, g grid.Grid, comm transport.Comm, op *diffop.Operator, faces [6]bc.BoundaryCondition) *Scalar {
	return &Scalar{
		Store:   NewStore(id, g, comm),
		BC:      faces,
		op:      op,
		scratch: newBacking(g),
	}
}

func (s *Scalar) Grid() grid.Grid { return s.Store.grid }

// ComputeDiff sums the second derivative along each active axis into out
// over the core region (spec 4.2's computeDiff).
func (s *Scalar) ComputeDiff(out *Plain) {
	core := s.Grid().CoreBox()
	out.data.FillBox(core, 0)
	forActiveAxes(s.op, func(axis int) {
		s.op.D2(axis, s.Store.data, s.scratch)
		out.data.AddBox(core, s.scratch)
	})
}

// ComputeNLin subtracts Uadv . grad(self) from out over the core region
// (spec 4.2's vfield.computeNLin, scalar case).
func (s *Scalar) ComputeNLin(V *Vector, out *Plain) {
	core := s.Grid().CoreBox()
	comps := V.components()
	forActiveAxes(s.op, func(axis int) {
		s.op.D1(axis, s.Store.data, s.scratch)
		out.data.SubProductBox(core, comps[axis], s.scratch)
	})
}

// Gradient writes the three partials of self into out's components (spec
// 4.2's sfield.gradient).
func (s *Scalar) Gradient(out *PlainVector) {
	core := s.Grid().CoreBox()
	s.op.D1(0, s.Store.data, s.scratch)
	out.X.data.CopyBox(core, s.scratch)
	if s.op.Grid.Params().Planar {
		out.Y.Zero()
	} else {
		s.op.D1(1, s.Store.data, s.scratch)
		out.Y.data.CopyBox(core, s.scratch)
	}
	s.op.D1(2, s.Store.data, s.scratch)
	out.Z.data.CopyBox(core, s.scratch)
}

// ImposeBCs syncs halos, then invokes each face's BC object on the
// non-periodic axes only (spec 4.2's imposeBCs).
func (s *Scalar) ImposeBCs(ctx context.Context) error {
	if err := s.Store.Sync(ctx); err != nil {
		return err
	}
	imposeFaces(s.Grid(), s.Store.data, s.BC)
	return nil
}

// ExtremeValues returns the min and max of self over the core region, a
// read-only diagnostic helper (not part of the mandatory step).
func (s *Scalar) ExtremeValues() (min, max float64) {
	core := s.Grid().CoreBox()
	min, max = math.MaxFloat64, -math.MaxFloat64
	for i := core[0].Lo; i <= core[0].Hi; i++ {
		for j := core[1].Lo; j <= core[1].Hi; j++ {
			for k := core[2].Lo; k <= core[2].Hi; k++ {
				v := s.Store.data.At(i, j, k)
				if v < min {
					min = v
				}
				if v > max {
					max = v
				}
			}
		}
	}
	return min, max
}

// Vector decorates three Stores (Vx, Vy, Vz) sharing one differential
// operator, with a per-component BC set and a reusable scratch buffer.
type Vector struct {
	Vx, Vy, Vz *Store
	BC         [3][6]bc.BoundaryCondition

	op      *diffop.Operator
	scratch *tensor.Dense3D
}

// NewVector builds a Vector over three freshly allocated Stores.
func NewVector(idPrefix string, g grid.Grid, comm transport.Comm, op *diffop.Operator, faces [3][6]bc.BoundaryCondition) *Vector {
	return &Vector{
		Vx:      NewStore(idPrefix+".vx", g, comm),
		Vy:      NewStore(idPrefix+".vy", g, comm),
		Vz:      NewStore(idPrefix+".vz", g, comm),
		BC:      faces,
		op:      op,
		scratch: newBacking(g),
	}
}

func (v *Vector) Grid() grid.Grid { return v.Vx.grid }

func (v *Vector) components() [3]*tensor.Dense3D {
	return [3]*tensor.Dense3D{v.Vx.data, v.Vy.data, v.Vz.data}
}

// ComputeDiff sums the second derivative of each component along every
// active axis into the matching out component.
func (v *Vector) ComputeDiff(out *PlainVector) {
	v.computeDiffComponent(v.Vx.data, out.X)
	v.computeDiffComponent(v.Vy.data, out.Y)
	v.computeDiffComponent(v.Vz.data, out.Z)
}

func (v *Vector) computeDiffComponent(src *tensor.Dense3D, out *Plain) {
	core := out.grid.CoreBox()
	out.data.FillBox(core, 0)
	forActiveAxes(v.op, func(axis int) {
		v.op.D2(axis, src, v.scratch)
		out.data.AddBox(core, v.scratch)
	})
}

// ComputeNLin subtracts Uadv . grad(Vi) from each out component — the
// three momentum advection terms.
func (v *Vector) ComputeNLin(Uadv *Vector, out *PlainVector) {
	comps := Uadv.components()
	v.computeNLinComponent(comps, v.Vx.data, out.X)
	v.computeNLinComponent(comps, v.Vy.data, out.Y)
	v.computeNLinComponent(comps, v.Vz.data, out.Z)
}

func (v *Vector) computeNLinComponent(advComps [3]*tensor.Dense3D, src *tensor.Dense3D, out *Plain) {
	core := out.grid.CoreBox()
	forActiveAxes(v.op, func(axis int) {
		v.op.D1(axis, src, v.scratch)
		out.data.SubProductBox(core, advComps[axis], v.scratch)
	})
}

// Divergence writes dVx/dx + dVy/dy + dVz/dz into out over the core
// region (spec 4.2's vfield.divergence).
func (v *Vector) Divergence(out *Plain) {
	core := out.grid.CoreBox()
	out.data.FillBox(core, 0)
	comps := v.components()
	forActiveAxes(v.op, func(axis int) {
		v.op.D1(axis, comps[axis], v.scratch)
		out.data.AddBox(core, v.scratch)
	})
}

// ImposeVxBC, ImposeVyBC, ImposeVzBC impose one component's own BC set
// without a halo sync — the per-component imposer the Jacobi solve calls
// after each sweep (spec 4.4 step 2), distinct from ImposeBCs which syncs
// all three components together.
func (v *Vector) ImposeVxBC() { imposeFaces(v.Grid(), v.Vx.data, v.BC[0]) }
func (v *Vector) ImposeVyBC() { imposeFaces(v.Grid(), v.Vy.data, v.BC[1]) }
func (v *Vector) ImposeVzBC() { imposeFaces(v.Grid(), v.Vz.data, v.BC[2]) }

// ImposeBCs syncs all three components' halos, then imposes every
// component's BC set on the non-periodic axes.
func (v *Vector) ImposeBCs(ctx context.Context) error {
	if err := v.Vx.Sync(ctx); err != nil {
		return err
	}
	if err := v.Vy.Sync(ctx); err != nil {
		return err
	}
	if err := v.Vz.Sync(ctx); err != nil {
		return err
	}
	v.ImposeVxBC()
	v.ImposeVyBC()
	v.ImposeVzBC()
	return nil
}

// Curl computes the vorticity component (dVz/dy - dVy/dz, dVx/dz -
// dVz/dx, dVy/dx - dVx/dy) into out over the core region, grounded on the
// teacher's Vorticity() — a read-only post-processing helper, not part of
// the mandatory step.
func (v *Vector) Curl(out *PlainVector) {
	core := out.X.grid.CoreBox()
	p := v.op.Grid.Params()

	v.op.D1(1, v.Vz.data, v.scratch)
	out.X.data.CopyBox(core, v.scratch)
	v.op.D1(2, v.Vy.data, v.scratch)
	out.X.data.SubBox(core, v.scratch)

	v.op.D1(2, v.Vx.data, v.scratch)
	out.Y.data.CopyBox(core, v.scratch)
	v.op.D1(0, v.Vz.data, v.scratch)
	out.Y.data.SubBox(core, v.scratch)

	if p.Planar {
		out.X.Zero()
		out.Y.Zero()
	}

	v.op.D1(0, v.Vy.data, v.scratch)
	out.Z.data.CopyBox(core, v.scratch)
	v.op.D1(1, v.Vx.data, v.scratch)
	out.Z.data.SubBox(core, v.scratch)
}

// Magnitude writes sqrt(Vx^2 + Vy^2 + Vz^2) into out over the core
// region, grounded on the teacher's VelocityMagnitude().
func (v *Vector) Magnitude(out *Plain) {
	core := out.grid.CoreBox()
	for i := core[0].Lo; i <= core[0].Hi; i++ {
		for j := core[1].Lo; j <= core[1].Hi; j++ {
			for k := core[2].Lo; k <= core[2].Hi; k++ {
				ux, uy, uz := v.Vx.data.At(i, j, k), v.Vy.data.At(i, j, k), v.Vz.data.At(i, j, k)
				out.data.Set(i, j, k, math.Sqrt(ux*ux+uy*uy+uz*uz))
			}
		}
	}
}

// forActiveAxes invokes fn once per axis not disabled by planar mode.
func forActiveAxes(op *diffop.Operator, fn func(axis int)) {
	p := op.Grid.Params()
	fn(0)
	if !p.Planar {
		fn(1)
	}
	fn(2)
}

// imposeFaces invokes every non-nil BC in faces whose axis is not
// periodic, the shared body of Scalar.ImposeBCs and the per-component
// Vector imposers.
func imposeFaces(g grid.Grid, data *tensor.Dense3D, faces [6]bc.BoundaryCondition) {
	p := g.Params()
	periodic := [3]bool{p.XPeriodic, p.YPeriodic, p.ZPeriodic}
	for _, b := range faces {
		if b == nil {
			continue
		}
		if periodic[bc.AxisOf(b.Face())] {
			continue
		}
		b.ImposeBC(data)
	}
}
