package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/roshansamuel/gpu-saras/pkg/grid"
	"github.com/roshansamuel/gpu-saras/pkg/tensor"
)

// cyclicBarrier is a reusable N-way rendezvous: every participant blocks
// in Wait until all N have arrived, then all are released together and
// the barrier resets for the next round. Unlike sync.WaitGroup it can be
// reused indefinitely, which is what a per-timestep, per-iteration
// collective needs.
type cyclicBarrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	arrived    int
	generation uint64
}

func newCyclicBarrier(n int) *cyclicBarrier {
	b := &cyclicBarrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until n goroutines have called Wait in the current
// generation, then releases them all. ctx is checked only on entry: once
// a rank is blocked it is committed to waiting for its peers, the same
// as a real MPI collective.
func (b *cyclicBarrier) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	gen := b.generation
	b.arrived++
	if b.arrived == b.n {
		b.arrived = 0
		b.generation++
		b.cond.Broadcast()
		return nil
	}
	for gen == b.generation {
		b.cond.Wait()
	}
	return nil
}

// World is the shared state behind every rank's LocalComm: the barrier
// the ranks rendezvous on, a registry of each rank's HaloField instances
// keyed by field ID (so SyncHalo can find a neighbour rank's copy of
// "the same field" to copy from), and the scratch state for the
// AllreduceMax collective.
type World struct {
	n       int
	barrier *cyclicBarrier

	mu     sync.Mutex
	fields map[string]map[int]HaloField // fieldID -> rank -> field

	reduceMu     sync.Mutex
	reduceCond   *sync.Cond
	reduceGen    uint64
	reduceN      int
	reduceMax    float64
	reduceResult float64
}

// NewWorld creates the shared state for an n-rank in-process simulation.
func NewWorld(n int) *World {
	w := &World{
		n:       n,
		barrier: newCyclicBarrier(n),
		fields:  make(map[string]map[int]HaloField),
	}
	w.reduceCond = sync.NewCond(&w.reduceMu)
	return w
}

// Register associates a rank's concrete HaloField instance with its
// logical ID, once per field per rank, before the first SyncHalo call
// that touches it.
func (w *World) Register(rank int, f HaloField) {
	w.mu.Lock()
	defer w.mu.Unlock()
	m := w.fields[f.ID()]
	if m == nil {
		m = make(map[int]HaloField)
		w.fields[f.ID()] = m
	}
	m[rank] = f
}

func (w *World) lookup(id string, rank int) (HaloField, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, ok := w.fields[id]
	if !ok {
		return nil, false
	}
	f, ok := m[rank]
	return f, ok
}

// allreduceMax implements the collective: every rank contributes its
// local value, the last arrival computes the max over all contributions,
// and every rank reads the same result back before leaving.
func (w *World) allreduceMax(ctx context.Context, local float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w.reduceMu.Lock()
	gen := w.reduceGen
	if w.reduceN == 0 || local > w.reduceMax {
		w.reduceMax = local
	}
	w.reduceN++
	if w.reduceN == w.n {
		w.reduceResult = w.reduceMax
		w.reduceN = 0
		w.reduceMax = 0
		w.reduceGen++
		w.reduceCond.Broadcast()
		result := w.reduceResult
		w.reduceMu.Unlock()
		return result, nil
	}
	for gen == w.reduceGen {
		w.reduceCond.Wait()
	}
	result := w.reduceResult
	w.reduceMu.Unlock()
	return result, nil
}

// LocalComm is a Comm backed by a World shared with the other simulated
// ranks, each expected to run in its own goroutine. It assumes a 1-D
// slab decomposition along the x axis: rank r's x-minus neighbour is
// r-1 and its x-plus neighbour is r+1, wrapping when the grid is
// x-periodic. Y and z halos never cross a rank boundary under this
// decomposition, so they are handled exactly as SerialComm would.
type LocalComm struct {
	world *World
	rank  int
}

// NewLocalComm returns the Comm for one rank of an n-rank World.
func NewLocalComm(world *World, rank int) *LocalComm {
	return &LocalComm{world: world, rank: rank}
}

func (c *LocalComm) Rank() int     { return c.rank }
func (c *LocalComm) NumRanks() int { return c.world.n }

func (c *LocalComm) Abort(code int) {
	panic(fmt.Sprintf("transport: rank %d aborted with code %d", c.rank, code))
}

func (c *LocalComm) AllreduceMax(ctx context.Context, local float64) (float64, error) {
	return c.world.allreduceMax(ctx, local)
}

func (c *LocalComm) SyncHalo(ctx context.Context, f HaloField) error {
	c.world.Register(c.rank, f)
	if err := c.world.barrier.Wait(ctx); err != nil {
		return err
	}

	g := f.Grid()
	p := g.Params()
	data := f.Data()
	n := c.world.n

	if down, ok := c.neighbour(-1, n, p.XPeriodic); ok {
		if err := c.pullFaceFromNeighbour(f.ID(), down, data, g, grid.XMinus, grid.XPlus); err != nil {
			return err
		}
	}
	if up, ok := c.neighbour(1, n, p.XPeriodic); ok {
		if err := c.pullFaceFromNeighbour(f.ID(), up, data, g, grid.XPlus, grid.XMinus); err != nil {
			return err
		}
	}
	if n == 1 && p.XPeriodic {
		wrapHaloPeriodic(data, g, grid.XMinus, grid.XPlus)
	}
	if p.YPeriodic && !p.Planar {
		wrapHaloPeriodic(data, g, grid.YMinus, grid.YPlus)
	}
	if p.ZPeriodic {
		wrapHaloPeriodic(data, g, grid.ZMinus, grid.ZPlus)
	}

	return c.world.barrier.Wait(ctx)
}

// neighbour returns the rank at offset delta from c.rank along the
// decomposition axis, wrapping if periodic is set; ok is false if there
// is no such neighbour (a non-periodic domain boundary, left for the
// boundary-condition step to fill instead).
func (c *LocalComm) neighbour(delta, n int, periodic bool) (int, bool) {
	r := c.rank + delta
	if r >= 0 && r < n {
		return r, true
	}
	if periodic {
		return ((r % n) + n) % n, true
	}
	return 0, false
}

// pullFaceFromNeighbour fills this rank's halo on myFace with the layer
// of core data adjacent to theirFace on the neighbour rank's own array.
// Both arrays are indexed in the same global coordinate space, so no
// translation is needed: the neighbour's core-adjacent slab and this
// rank's halo slab differ only by the pad-width shift along the axis.
func (c *LocalComm) pullFaceFromNeighbour(fieldID string, neighbourRank int, data *tensor.Dense3D, g grid.Grid, myFace, theirFace grid.Face) error {
	nf, ok := c.world.lookup(fieldID, neighbourRank)
	if !ok {
		return fmt.Errorf("transport: rank %d has no registered field %q from neighbour rank %d", c.rank, fieldID, neighbourRank)
	}
	src := nf.Data()

	dst := g.HaloBox(myFace)
	width := dst[axisOf(myFace)].Len()
	neighbourCore := nf.Grid().CoreBox()
	var srcBox tensor.Box
	if theirFace == grid.XMinus || theirFace == grid.YMinus || theirFace == grid.ZMinus {
		srcBox = loCoreSlab(neighbourCore, axisOf(theirFace), width)
	} else {
		srcBox = hiCoreSlab(neighbourCore, axisOf(theirFace), width)
	}

	copyBoxAcross(data, src, dst, srcBox, axisOf(myFace))
	return nil
}

// copyBoxAcross copies values from src (another rank's array, src box
// given in src's own global index space) into dst's box on data, both
// boxes equal in shape but offset along axis.
func copyBoxAcross(data, src *tensor.Dense3D, dst, srcBox tensor.Box, axis int) {
	shift := dst[axis].Lo - srcBox[axis].Lo
	for i := srcBox[0].Lo; i <= srcBox[0].Hi; i++ {
		for j := srcBox[1].Lo; j <= srcBox[1].Hi; j++ {
			for k := srcBox[2].Lo; k <= srcBox[2].Hi; k++ {
				di, dj, dk := i, j, k
				switch axis {
				case 0:
					di += shift
				case 1:
					dj += shift
				case 2:
					dk += shift
				}
				data.Set(di, dj, dk, src.At(i, j, k))
			}
		}
	}
}
