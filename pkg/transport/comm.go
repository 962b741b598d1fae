// Package transport provides the halo-exchange and collective-reduction
// collaborator the time-advance core depends on (spec §6: "Halo
// transport"). The core never sends a message itself; it calls
// Comm.SyncHalo on a field and Comm.AllreduceMax once per Jacobi
// iteration per unknown. Two implementations are provided: SerialComm
// (one rank, the common case) and LocalComm (several ranks simulated as
// goroutines in one process, for exercising the parallel-invariance
// property without an actual MPI runtime).
package transport

import (
	"context"
	"fmt"

	"github.com/roshansamuel/gpu-saras/pkg/grid"
	"github.com/roshansamuel/gpu-saras/pkg/tensor"
)

// HaloField is the narrow view a Comm needs of a field to exchange its
// pad layers: a stable identity (shared across every rank's copy of the
// "same" field), the backing storage, and the grid that describes its
// core/halo geometry.
type HaloField interface {
	ID() string
	Data() *tensor.Dense3D
	Grid() grid.Grid
}

// Comm is the collaborator contract for distributed halo exchange and
// reduction. Implementations must treat AllreduceMax and SyncHalo as
// collective barriers: every rank must call them in the same order.
type Comm interface {
	SyncHalo(ctx context.Context, f HaloField) error
	AllreduceMax(ctx context.Context, local float64) (float64, error)
	Rank() int
	NumRanks() int
	// Abort is the structured replacement for the original's
	// MPI_Finalize()+exit: it is the driver's call, not the core's.
	Abort(code int)
}

// AbortError is returned by an Abort call that a caller chose to treat
// as an error instead of terminating the process, e.g. in tests.
type AbortError struct{ Code int }

func (e *AbortError) Error() string { return fmt.Sprintf("transport: aborted with code %d", e.Code) }

// SerialComm is the single-rank Comm: halo exchange only wraps periodic
// axes onto themselves, and reduction is the identity.
type SerialComm struct {
	aborted  bool
	abortErr error
}

func NewSerialComm() *SerialComm { return &SerialComm{} }

func (c *SerialComm) Rank() int     { return 0 }
func (c *SerialComm) NumRanks() int { return 1 }

func (c *SerialComm) SyncHalo(ctx context.Context, f HaloField) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g := f.Grid()
	p := g.Params()
	data := f.Data()
	faces := []struct {
		lo, hi grid.Face
		per    bool
	}{
		{grid.XMinus, grid.XPlus, p.XPeriodic},
		{grid.YMinus, grid.YPlus, p.YPeriodic && !p.Planar},
		{grid.ZMinus, grid.ZPlus, p.ZPeriodic},
	}
	for _, pair := range faces {
		if !pair.per {
			continue
		}
		wrapHaloPeriodic(data, g, pair.lo, pair.hi)
	}
	return nil
}

// wrapHaloPeriodic copies the core layers adjacent to one face into the
// halo pad of the opposite face and vice versa, the single-rank
// degenerate case of the general neighbour exchange.
func wrapHaloPeriodic(data *tensor.Dense3D, g grid.Grid, loFace, hiFace grid.Face) {
	loHalo := g.HaloBox(loFace)
	hiHalo := g.HaloBox(hiFace)
	core := g.CoreBox()
	width := loHalo[axisOf(loFace)].Len()

	// Halo on the low face mirrors the high-side core boundary layers.
	srcHi := hiCoreSlab(core, axisOf(hiFace), width)
	copyBoxOffset(data, loHalo, srcHi, axisOf(loFace))

	// Halo on the high face mirrors the low-side core boundary layers.
	srcLo := loCoreSlab(core, axisOf(loFace), width)
	copyBoxOffset(data, hiHalo, srcLo, axisOf(hiFace))
}

func axisOf(f grid.Face) int {
	switch f {
	case grid.XMinus, grid.XPlus:
		return 0
	case grid.YMinus, grid.YPlus:
		return 1
	default:
		return 2
	}
}

func loCoreSlab(core tensor.Box, axis, width int) tensor.Box {
	b := core
	b[axis] = tensor.Range{Lo: core[axis].Lo, Hi: core[axis].Lo + width - 1}
	return b
}

func hiCoreSlab(core tensor.Box, axis, width int) tensor.Box {
	b := core
	b[axis] = tensor.Range{Lo: core[axis].Hi - width + 1, Hi: core[axis].Hi}
	return b
}

// copyBoxOffset copies values from src box (in data's own index space)
// into dst box, both boxes equal in shape but offset along axis.
func copyBoxOffset(data *tensor.Dense3D, dst, src tensor.Box, axis int) {
	shift := dst[axis].Lo - src[axis].Lo
	for i := src[0].Lo; i <= src[0].Hi; i++ {
		for j := src[1].Lo; j <= src[1].Hi; j++ {
			for k := src[2].Lo; k <= src[2].Hi; k++ {
				di, dj, dk := i, j, k
				switch axis {
				case 0:
					di += shift
				case 1:
					dj += shift
				case 2:
					dk += shift
				}
				data.Set(di, dj, dk, data.At(i, j, k))
			}
		}
	}
}

func (c *SerialComm) AllreduceMax(ctx context.Context, local float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return local, nil
}

func (c *SerialComm) Abort(code int) {
	c.aborted = true
	c.abortErr = &AbortError{Code: code}
}

// Aborted reports whether Abort has been called, and the error it
// recorded, for tests that want to assert on abort behaviour without
// terminating the process.
func (c *SerialComm) Aborted() (bool, error) { return c.aborted, c.abortErr }
