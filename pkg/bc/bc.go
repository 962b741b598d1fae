// Package bc defines the boundary-condition collaborator each field
// consults on its six faces: a narrow single-method interface plus a
// small taxonomy of condition kinds and concrete implementations over
// a wall slice of a field's store.
package bc

import (
	"strings"

	"github.com/roshansamuel/gpu-saras/pkg/grid"
	"github.com/roshansamuel/gpu-saras/pkg/tensor"
)

// Kind classifies a boundary condition, grounded on the same taxonomy
// shape as other_examples' BCType enum, trimmed to what a structured
// finite-difference Navier-Stokes solver actually imposes.
type Kind int

const (
	Dirichlet Kind = iota
	Neumann
	Periodic
	Wall
	Inflow
	Outflow
)

func (k Kind) String() string {
	switch k {
	case Dirichlet:
		return "Dirichlet"
	case Neumann:
		return "Neumann"
	case Periodic:
		return "Periodic"
	case Wall:
		return "Wall"
	case Inflow:
		return "Inflow"
	case Outflow:
		return "Outflow"
	default:
		return "Unknown"
	}
}

// nameMap mirrors other_examples' lower-cased BCNameMap convention.
var nameMap = map[string]Kind{
	"dirichlet": Dirichlet,
	"neumann":   Neumann,
	"periodic":  Periodic,
	"wall":      Wall,
	"no_slip":   Wall,
	"noslip":    Wall,
	"inlet":     Inflow,
	"inflow":    Inflow,
	"outlet":    Outflow,
	"outflow":   Outflow,
}

// ParseKind converts a config-file BC name to a Kind, defaulting to
// Wall for anything unrecognised (matches other_examples' ParseBCName
// default-to-wall fallback).
func ParseKind(name string) Kind {
	if k, ok := nameMap[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k
	}
	return Wall
}

// BoundaryCondition is the per-face collaborator contract: ImposeBC
// writes into the wall slice of data, using core as the one-deep
// interior layer it may read from (e.g. a Neumann condition mirrors
// the adjacent core value).
type BoundaryCondition interface {
	ImposeBC(data *tensor.Dense3D)
	Kind() Kind
	Face() grid.Face
}

type base struct {
	face grid.Face
	g    grid.Grid
}

func (b base) Face() grid.Face { return b.face }

func (b base) wallAndCore() (tensor.Box, tensor.Box) {
	return b.g.WallBox(b.face), b.g.CoreBox()
}

// AxisOf returns the axis index (0=x, 1=y, 2=z) the face lies on.
func AxisOf(f grid.Face) int {
	switch f {
	case grid.XMinus, grid.XPlus:
		return 0
	case grid.YMinus, grid.YPlus:
		return 1
	default:
		return 2
	}
}

// interiorLayer returns the one-deep core layer adjacent to the wall on
// this face, box-for-box aligned with the wall (same shape, shifted one
// cell inward along the face's axis).
func interiorLayer(wall, core tensor.Box, f grid.Face) tensor.Box {
	b := wall
	axis := AxisOf(f)
	switch f {
	case grid.XMinus, grid.YMinus, grid.ZMinus:
		b[axis] = tensor.Range{Lo: core[axis].Lo, Hi: core[axis].Lo}
	default:
		b[axis] = tensor.Range{Lo: core[axis].Hi, Hi: core[axis].Hi}
	}
	return b
}

// DirichletBC fixes the wall layer to a constant value, the basic
// no-slip/isothermal building block.
type DirichletBC struct {
	base
	Value float64
}

func NewDirichlet(g grid.Grid, f grid.Face, value float64) *DirichletBC {
	return &DirichletBC{base: base{face: f, g: g}, Value: value}
}

func (d *DirichletBC) Kind() Kind { return Dirichlet }

func (d *DirichletBC) ImposeBC(data *tensor.Dense3D) {
	wall, _ := d.wallAndCore()
	data.FillBox(wall, d.Value)
}

// NeumannBC mirrors the adjacent interior layer into the wall, i.e. a
// zero-gradient condition: wall value = interior value.
type NeumannBC struct {
	base
}

func NewNeumann(g grid.Grid, f grid.Face) *NeumannBC {
	return &NeumannBC{base: base{face: f, g: g}}
}

func (n *NeumannBC) Kind() Kind { return Neumann }

func (n *NeumannBC) ImposeBC(data *tensor.Dense3D) {
	wall, core := n.wallAndCore()
	interior := interiorLayer(wall, core, n.face)
	shiftInto(data, wall, interior, AxisOf(n.face))
}

// shiftInto builds a view helper: since Dense3D has no aliasing sub-view
// type, Neumann copies element-by-element from the interior box into
// the wall box instead of through CopyBox's matching-box contract.
func shiftInto(data *tensor.Dense3D, wall, interior tensor.Box, axis int) {
	for i := interior[0].Lo; i <= interior[0].Hi; i++ {
		for j := interior[1].Lo; j <= interior[1].Hi; j++ {
			for k := interior[2].Lo; k <= interior[2].Hi; k++ {
				wi, wj, wk := i, j, k
				switch axis {
				case 0:
					wi = wall[0].Lo
				case 1:
					wj = wall[1].Lo
				default:
					wk = wall[2].Lo
				}
				data.Set(wi, wj, wk, data.At(i, j, k))
			}
		}
	}
}

// WallBC is the no-slip velocity condition: the wall layer is pinned to
// zero, same write pattern as Dirichlet with Value 0 but kept distinct
// so config/telemetry can tell "no-slip wall" apart from "fixed value".
type WallBC struct {
	base
}

func NewWall(g grid.Grid, f grid.Face) *WallBC { return &WallBC{base: base{face: f, g: g}} }

func (w *WallBC) Kind() Kind { return Wall }

func (w *WallBC) ImposeBC(data *tensor.Dense3D) {
	wall, _ := w.wallAndCore()
	data.FillBox(wall, 0)
}

// InflowBC prescribes a fixed inflow value, identical mechanics to
// Dirichlet but named for the role it plays at a domain inlet.
type InflowBC struct {
	base
	Value float64
}

func NewInflow(g grid.Grid, f grid.Face, value float64) *InflowBC {
	return &InflowBC{base: base{face: f, g: g}, Value: value}
}

func (b *InflowBC) Kind() Kind { return Inflow }

func (b *InflowBC) ImposeBC(data *tensor.Dense3D) {
	wall, _ := b.wallAndCore()
	data.FillBox(wall, b.Value)
}

// OutflowBC is a zero-gradient (Neumann) outlet.
type OutflowBC struct {
	base
}

func NewOutflow(g grid.Grid, f grid.Face) *OutflowBC { return &OutflowBC{base: base{face: f, g: g}} }

func (b *OutflowBC) Kind() Kind { return Outflow }

func (b *OutflowBC) ImposeBC(data *tensor.Dense3D) {
	wall, core := b.wallAndCore()
	interior := interiorLayer(wall, core, b.face)
	shiftInto(data, wall, interior, AxisOf(b.face))
}

// PeriodicBC is a no-op: periodic faces are never in the per-axis BC
// list the core consults (spec 4.2's imposeBCs skips periodic axes
// entirely), but a PeriodicBC value lets config code build a uniform
// [6]BoundaryCondition array without a nil case.
type PeriodicBC struct {
	base
}

func NewPeriodic(g grid.Grid, f grid.Face) *PeriodicBC { return &PeriodicBC{base: base{face: f, g: g}} }

func (p *PeriodicBC) Kind() Kind          { return Periodic }
func (p *PeriodicBC) ImposeBC(*tensor.Dense3D) {}
