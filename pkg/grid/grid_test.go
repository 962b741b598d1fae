package grid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUniformGridHasUnitMetric(t *testing.T) {
	g := NewStaggeredGrid(Params{PadWidth: 1}, 6, 6, 6, 1.0, 1.0, 1.0, 0.0)
	core := g.CoreBox()
	require.Equal(t, 1.0, g.J2(0, core[0].Lo))
	require.Equal(t, 0.0, g.Jxx(0, core[0].Lo))
}

func TestStretchedGridHasNonTrivialMetric(t *testing.T) {
	g := NewStaggeredGrid(Params{PadWidth: 1}, 10, 10, 10, 1.0, 1.0, 1.0, 1.5)
	core := g.CoreBox()
	mid := (core[0].Lo + core[0].Hi) / 2
	require.NotEqual(t, 1.0, g.J2(0, mid))
}

func TestCoreBoxSizeMatchesRequestedPoints(t *testing.T) {
	g := NewStaggeredGrid(Params{PadWidth: 2}, 8, 5, 3, 1.0, 1.0, 1.0, 0.0)
	core := g.CoreBox()
	require.Equal(t, 8, core[0].Len())
	require.Equal(t, 5, core[1].Len())
	require.Equal(t, 3, core[2].Len())
}

func TestHaloBoxWidthMatchesPadWidth(t *testing.T) {
	g := NewStaggeredGrid(Params{PadWidth: 2}, 6, 6, 6, 1.0, 1.0, 1.0, 0.0)
	halo := g.HaloBox(XMinus)
	require.Equal(t, 2, halo[0].Len())
}

func TestSubdomainPartitioningPreservesGlobalSpacing(t *testing.T) {
	full := NewStaggeredGrid(Params{PadWidth: 1}, 12, 4, 4, 2.0, 1.0, 1.0, 0.0)
	dxFull, _, _ := full.Spacing()

	sub := NewStaggeredGridSubdomain(Params{PadWidth: 1}, 1, [3]int{1, 0, 0},
		[3]int{12, 4, 4}, [3]int{6, 0, 0}, [3]int{11, 3, 3}, 2.0, 1.0, 1.0, 0.0)
	dxSub, _, _ := sub.Spacing()

	require.Equal(t, dxFull, dxSub)
	require.Equal(t, 1, sub.Rank())
}
