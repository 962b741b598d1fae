// Package grid defines the metric/geometry collaborator the time-advance
// core consumes: sub-domain bounds, spacings, the per-axis metric arrays
// that encode a stretched coordinate map, the input parameter bundle, and
// this rank's position in the processor grid. Grid generation itself
// (how a stretching function is chosen, how ranks are mapped onto a
// physical domain) is a collaborator concern, out of scope for the
// solver core — StaggeredGrid below is one concrete, reference
// implementation of the Grid contract, not "the" grid.
package grid

import (
	"fmt"
	"math"

	"github.com/roshansamuel/gpu-saras/pkg/tensor"
)

// Face names one of the six sub-domain faces a wall slice or boundary
// condition is attached to.
type Face int

const (
	XMinus Face = iota
	XPlus
	YMinus
	YPlus
	ZMinus
	ZPlus
)

func (f Face) String() string {
	switch f {
	case XMinus:
		return "x-"
	case XPlus:
		return "x+"
	case YMinus:
		return "y-"
	case YPlus:
		return "y+"
	case ZMinus:
		return "z-"
	case ZPlus:
		return "z+"
	}
	return "unknown"
}

// Params is the input configuration bundle the original's grid class
// carries alongside the metric data: thread count, Jacobi tolerance,
// LES model selector, nominal timestep (carried for configuration only:
// neither stepping nor the LES warm-up gate reads it; the gate uses the
// time-advance core's own Dt), and per-axis periodicity.
type Params struct {
	NThreads     int
	CNTolerance  float64
	LESModel     int // 0 = off, 1 = momentum-only, 2 = momentum+scalar coupled
	TStp         float64
	XPeriodic    bool
	YPeriodic    bool
	ZPeriodic    bool
	Planar       bool // disables the y-axis everywhere (REDESIGN: runtime replacement for #ifdef PLANAR)
	MaxIterCap   int  // 0 = use the ceil(ln(N)^3) heuristic unmodified
	PadWidth     int  // halo width per face; 1 is sufficient for the 2nd-order stencils used throughout
}

// Grid is the narrow metric/geometry contract the rest of the solver
// depends on. It never mutates field data.
type Grid interface {
	// FullBox is the padded range [flBound, flBound+fSize) of every field's
	// backing array on this sub-domain.
	FullBox() tensor.Box
	// CoreBox is the sub-range PDE updates are computed over.
	CoreBox() tensor.Box
	// WallBox is the one-cell-thick BC write target for the given face.
	WallBox(f Face) tensor.Box
	// HaloBox is the PadWidth-thick pad region on the given face, the
	// target of halo exchange (as opposed to WallBox's single BC layer).
	HaloBox(f Face) tensor.Box

	// Spacing returns the uniform computational-space spacings dXi, dEt, dZt.
	Spacing() (dXi, dEt, dZt float64)

	// J2 and Jxx are the per-index metric arrays on the given axis
	// (0=x, 1=y, 2=z), defined over the full padded range.
	J2(axis, i int) float64
	Jxx(axis, i int) float64

	Rank() int
	Coords() [3]int
	Params() Params
}

// StaggeredGrid is a reference Grid implementation: a single logically
// rectangular sub-domain with a tanh-stretched coordinate map, owned by
// one rank in a Cartesian processor grid. Real deployments plug in
// whatever grid/metric generator their mesh pipeline produces; nothing
// in the solver core depends on StaggeredGrid directly.
type StaggeredGrid struct {
	params Params
	rank   int
	coords [3]int

	// Local core sizes (this sub-domain only) and padded lower bounds.
	coreSize [3]int
	padLo    [3]int // lower bound of the padded range on each axis

	dXi, dEt, dZt float64

	j2  [3][]float64 // metric arrays, indexed by (axis)(i - padLo[axis])
	jxx [3][]float64
}

// NewStaggeredGrid builds a single-rank grid covering the full global
// domain [0,Lx]x[0,Ly]x[0,Lz] with nx,ny,nz core points per axis and a
// tanh stretching of strength beta (beta=0 gives a uniform grid). For a
// multi-rank layout, partition a global StaggeredGrid's index ranges
// externally and call NewStaggeredGridSubdomain per rank.
func NewStaggeredGrid(params Params, nx, ny, nz int, lx, ly, lz, beta float64) *StaggeredGrid {
	return NewStaggeredGridSubdomain(params, 0, [3]int{0, 0, 0}, [3]int{nx, ny, nz}, [3]int{0, 0, 0}, [3]int{nx - 1, ny - 1, nz - 1}, lx, ly, lz, beta)
}

// NewStaggeredGridSubdomain builds the Grid collaborator for one rank of
// a Cartesian decomposition. globalSize is the full-domain core point
// count per axis; localLo/localHi (inclusive) is this rank's slice of
// the global core index range.
func NewStaggeredGridSubdomain(params Params, rank int, coords [3]int, globalSize [3]int, localLo, localHi [3]int, lx, ly, lz, beta float64) *StaggeredGrid {
	if params.PadWidth <= 0 {
		params.PadWidth = 1
	}
	g := &StaggeredGrid{params: params, rank: rank, coords: coords}
	for a := 0; a < 3; a++ {
		g.coreSize[a] = localHi[a] - localLo[a] + 1
		g.padLo[a] = localLo[a] - params.PadWidth
	}

	g.dXi = 1.0 / float64(globalSize[0]-1)
	g.dEt = 1.0 / float64(globalSize[1]-1)
	g.dZt = 1.0 / float64(globalSize[2]-1)

	g.j2[0], g.jxx[0] = buildMetric(globalSize[0], localLo[0], g.coreSize[0]+2*params.PadWidth, params.PadWidth, lx, beta)
	if params.Planar {
		g.j2[1] = flatMetric(g.coreSize[1]+2*params.PadWidth, 1.0)
		g.jxx[1] = flatMetric(g.coreSize[1]+2*params.PadWidth, 0.0)
	} else {
		g.j2[1], g.jxx[1] = buildMetric(globalSize[1], localLo[1], g.coreSize[1]+2*params.PadWidth, params.PadWidth, ly, beta)
	}
	g.j2[2], g.jxx[2] = buildMetric(globalSize[2], localLo[2], g.coreSize[2]+2*params.PadWidth, params.PadWidth, lz, beta)

	return g
}

// buildMetric computes J2(i) = (dxi/dx)^2 and Jxx(i) = d2xi/dx2 for a
// tanh-stretched map x(xi) over n points spanning localLo-pad..localLo+
// size-pad-1 in the global index space, physical length L.
func buildMetric(globalN, localLo, size, pad int, length, beta float64) ([]float64, []float64) {
	j2 := make([]float64, size)
	jxx := make([]float64, size)
	if beta == 0 {
		// Uniform map x = L*xi: dxi/dx = 1/L, J2 = 1/L^2, Jxx = 0.
		for i := range j2 {
			j2[i] = 1.0 / (length * length)
			jxx[i] = 0.0
		}
		return j2, jxx
	}
	n := float64(globalN - 1)
	for idx := 0; idx < size; idx++ {
		gi := localLo - pad + idx
		xi := float64(gi) / n // in [0,1] (extends slightly beyond for halo cells)
		// x(xi) = L * (1 + tanh(beta*(xi-0.5))/tanh(beta/2)) / 2
		th := math.Tanh(beta / 2)
		s := beta * (xi - 0.5)
		sech2 := 1.0 / (math.Cosh(s) * math.Cosh(s))
		dxdxi := length * beta * sech2 / (2 * th)
		d2xdxi2 := -length * beta * beta * sech2 * math.Tanh(s) / th
		dxidx := 1.0 / dxdxi
		j2[idx] = dxidx * dxidx
		jxx[idx] = -d2xdxi2 * dxidx * dxidx * dxidx
	}
	return j2, jxx
}

func flatMetric(size int, v float64) []float64 {
	m := make([]float64, size)
	for i := range m {
		m[i] = v
	}
	return m
}

func (g *StaggeredGrid) FullBox() tensor.Box {
	pad := g.params.PadWidth
	return tensor.Box{
		{Lo: g.padLo[0], Hi: g.padLo[0] + g.coreSize[0] + 2*pad - 1},
		{Lo: g.padLo[1], Hi: g.padLo[1] + g.coreSize[1] + 2*pad - 1},
		{Lo: g.padLo[2], Hi: g.padLo[2] + g.coreSize[2] + 2*pad - 1},
	}
}

func (g *StaggeredGrid) CoreBox() tensor.Box {
	pad := g.params.PadWidth
	return tensor.Box{
		{Lo: g.padLo[0] + pad, Hi: g.padLo[0] + pad + g.coreSize[0] - 1},
		{Lo: g.padLo[1] + pad, Hi: g.padLo[1] + pad + g.coreSize[1] - 1},
		{Lo: g.padLo[2] + pad, Hi: g.padLo[2] + pad + g.coreSize[2] - 1},
	}
}

func (g *StaggeredGrid) WallBox(f Face) tensor.Box {
	b := g.FullBox()
	c := g.CoreBox()
	switch f {
	case XMinus:
		b[0] = tensor.Range{Lo: c[0].Lo - 1, Hi: c[0].Lo - 1}
	case XPlus:
		b[0] = tensor.Range{Lo: c[0].Hi + 1, Hi: c[0].Hi + 1}
	case YMinus:
		b[1] = tensor.Range{Lo: c[1].Lo - 1, Hi: c[1].Lo - 1}
	case YPlus:
		b[1] = tensor.Range{Lo: c[1].Hi + 1, Hi: c[1].Hi + 1}
	case ZMinus:
		b[2] = tensor.Range{Lo: c[2].Lo - 1, Hi: c[2].Lo - 1}
	case ZPlus:
		b[2] = tensor.Range{Lo: c[2].Hi + 1, Hi: c[2].Hi + 1}
	default:
		panic(fmt.Sprintf("grid: invalid face %d", f))
	}
	return b
}

func (g *StaggeredGrid) HaloBox(f Face) tensor.Box {
	b := g.FullBox()
	c := g.CoreBox()
	pad := g.params.PadWidth
	switch f {
	case XMinus:
		b[0] = tensor.Range{Lo: c[0].Lo - pad, Hi: c[0].Lo - 1}
	case XPlus:
		b[0] = tensor.Range{Lo: c[0].Hi + 1, Hi: c[0].Hi + pad}
	case YMinus:
		b[1] = tensor.Range{Lo: c[1].Lo - pad, Hi: c[1].Lo - 1}
	case YPlus:
		b[1] = tensor.Range{Lo: c[1].Hi + 1, Hi: c[1].Hi + pad}
	case ZMinus:
		b[2] = tensor.Range{Lo: c[2].Lo - pad, Hi: c[2].Lo - 1}
	case ZPlus:
		b[2] = tensor.Range{Lo: c[2].Hi + 1, Hi: c[2].Hi + pad}
	default:
		panic(fmt.Sprintf("grid: invalid face %d", f))
	}
	return b
}

func (g *StaggeredGrid) Spacing() (float64, float64, float64) { return g.dXi, g.dEt, g.dZt }

func (g *StaggeredGrid) J2(axis, i int) float64  { return g.j2[axis][i-g.padLo[axis]] }
func (g *StaggeredGrid) Jxx(axis, i int) float64 { return g.jxx[axis][i-g.padLo[axis]] }

func (g *StaggeredGrid) Rank() int      { return g.rank }
func (g *StaggeredGrid) Coords() [3]int { return g.coords }
func (g *StaggeredGrid) Params() Params { return g.params }

// CoreSize returns the local (this sub-domain's) core point counts, the
// quantity the Jacobi solver's maxIterations heuristic is based on.
func (g *StaggeredGrid) CoreSize() [3]int { return g.coreSize }
