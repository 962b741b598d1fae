package transport

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roshansamuel/gpu-saras/pkg/grid"
	"github.com/roshansamuel/gpu-saras/pkg/tensor"
)

type fakeField struct {
	id   string
	data *tensor.Dense3D
	grid grid.Grid
}

func (f *fakeField) ID() string            { return f.id }
func (f *fakeField) Data() *tensor.Dense3D { return f.data }
func (f *fakeField) Grid() grid.Grid       { return f.grid }

func newFakeField(id string, g grid.Grid, fill float64) *fakeField {
	full := g.FullBox()
	lo := [3]int{full[0].Lo, full[1].Lo, full[2].Lo}
	size := [3]int{full[0].Len(), full[1].Len(), full[2].Len()}
	d := tensor.NewDense3D(lo, size)
	d.FillBox(g.CoreBox(), fill)
	return &fakeField{id: id, data: d, grid: g}
}

func TestSerialCommWrapsPeriodicHalo(t *testing.T) {
	g := grid.NewStaggeredGrid(grid.Params{PadWidth: 1, XPeriodic: true}, 6, 6, 6, 1.0, 1.0, 1.0, 0.0)
	comm := NewSerialComm()
	f := newFakeField("V", g, 5.0)

	require.NoError(t, comm.SyncHalo(context.Background(), f))

	core := g.CoreBox()
	haloLo := g.HaloBox(grid.XMinus)
	require.Equal(t, 5.0, f.Data().At(haloLo[0].Lo, core[1].Lo, core[2].Lo))
}

func TestSerialCommAllreduceMaxIsIdentity(t *testing.T) {
	comm := NewSerialComm()
	got, err := comm.AllreduceMax(context.Background(), 3.5)
	require.NoError(t, err)
	require.Equal(t, 3.5, got)
}

func TestSerialCommRecordsAbort(t *testing.T) {
	comm := NewSerialComm()
	comm.Abort(2)
	aborted, err := comm.Aborted()
	require.True(t, aborted)
	require.ErrorContains(t, err, "code 2")
}

func TestLocalCommExchangesHaloAcrossRanks(t *testing.T) {
	params := grid.Params{PadWidth: 1, XPeriodic: false}
	globalSize := [3]int{12, 4, 4}

	g0 := grid.NewStaggeredGridSubdomain(params, 0, [3]int{0, 0, 0}, globalSize, [3]int{0, 0, 0}, [3]int{5, 3, 3}, 1.0, 1.0, 1.0, 0.0)
	g1 := grid.NewStaggeredGridSubdomain(params, 1, [3]int{1, 0, 0}, globalSize, [3]int{6, 0, 0}, [3]int{11, 3, 3}, 1.0, 1.0, 1.0, 0.0)

	world := NewWorld(2)
	c0 := NewLocalComm(world, 0)
	c1 := NewLocalComm(world, 1)

	f0 := newFakeField("V", g0, 1.0)
	f1 := newFakeField("V", g1, 2.0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = c0.SyncHalo(context.Background(), f0) }()
	go func() { defer wg.Done(); errs[1] = c1.SyncHalo(context.Background(), f1) }()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	core0 := g0.CoreBox()
	haloPlus := g0.HaloBox(grid.XPlus)
	require.Equal(t, 2.0, f0.Data().At(haloPlus[0].Lo, core0[1].Lo, core0[2].Lo),
		"rank 0's x-plus halo should carry rank 1's core values")

	core1 := g1.CoreBox()
	haloMinus := g1.HaloBox(grid.XMinus)
	require.Equal(t, 1.0, f1.Data().At(haloMinus[0].Lo, core1[1].Lo, core1[2].Lo),
		"rank 1's x-minus halo should carry rank 0's core values")
}

func TestLocalCommAllreduceMaxAgreesAcrossRanks(t *testing.T) {
	world := NewWorld(3)
	comms := []*LocalComm{NewLocalComm(world, 0), NewLocalComm(world, 1), NewLocalComm(world, 2)}
	locals := []float64{1.0, 7.0, 3.0}

	results := make([]float64, 3)
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		i := i
		go func() {
			defer wg.Done()
			r, err := comms[i].AllreduceMax(context.Background(), locals[i])
			require.NoError(t, err)
			results[i] = r
		}()
	}
	wg.Wait()

	for i, r := range results {
		require.Equal(t, 7.0, r, "rank %d should see the global max", i)
	}
}
