package domain

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rect returns a counter-clockwise rectangle polygon.
func rect(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
		{X: x0, Y: y1},
	}}
}

func TestMeanWithin(t *testing.T) {
	// Values by pixel: (0,0)=1 (1,0)=2 / (0,1)=3 (1,1)=4 in grid layout,
	// covering the square x:[0,2], y:[0,2].
	grid := mustGrid(t, []float32{1, 2, 3, 4}, 2, 2, f64ptr(-9999))

	t.Run("full coverage is the plain mean", func(t *testing.T) {
		mean, ok := grid.MeanWithin(rect(0, 0, 2, 2))
		require.True(t, ok)
		assert.InDelta(t, 2.5, mean, 1e-9)
	})

	t.Run("single pixel footprint", func(t *testing.T) {
		mean, ok := grid.MeanWithin(rect(0, 1, 1, 2))
		require.True(t, ok)
		assert.InDelta(t, 1.0, mean, 1e-9)
	})

	t.Run("partial pixels weight by overlap area", func(t *testing.T) {
		// Covers all of pixel value 1 and the left half of pixel value 2:
		// (1*1 + 0.5*2) / 1.5.
		mean, ok := grid.MeanWithin(rect(0, 1, 1.5, 2))
		require.True(t, ok)
		assert.InDelta(t, 4.0/3.0, mean, 1e-9)
	})

	t.Run("equal slivers across the top row", func(t *testing.T) {
		mean, ok := grid.MeanWithin(rect(0, 1.5, 2, 2))
		require.True(t, ok)
		assert.InDelta(t, 1.5, mean, 1e-9)
	})

	t.Run("nodata pixels are excluded from the weighting", func(t *testing.T) {
		g := mustGrid(t, []float32{1, -9999, 3, 4}, 2, 2, f64ptr(-9999))
		// Top row only: the nodata pixel contributes neither value nor weight.
		mean, ok := g.MeanWithin(rect(0, 1, 2, 2))
		require.True(t, ok)
		assert.InDelta(t, 1.0, mean, 1e-9)
	})

	t.Run("polygon entirely over nodata is undefined", func(t *testing.T) {
		nan := float32(math.NaN())
		g := mustGrid(t, []float32{-9999, nan, 3, 4}, 2, 2, f64ptr(-9999))
		_, ok := g.MeanWithin(rect(0, 1, 2, 2))
		assert.False(t, ok, "must report undefined, not zero")
	})

	t.Run("polygon outside the raster is undefined", func(t *testing.T) {
		_, ok := grid.MeanWithin(rect(10, 10, 12, 12))
		assert.False(t, ok)
	})

	t.Run("nil polygon is undefined", func(t *testing.T) {
		_, ok := grid.MeanWithin(nil)
		assert.False(t, ok)
	})

	t.Run("cells outside a diagonal polygon contribute nothing", func(t *testing.T) {
		// Triangle below the line x+y=2. Its bounding box spans all four
		// cells, but the top-right cell only touches it at a corner point,
		// so that cell must fall out of the weighting entirely:
		// (1*3 + 0.5*1 + 0.5*4) / 2.
		triangle := geom.Polygon{{
			{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2},
		}}
		mean, ok := grid.MeanWithin(triangle)
		require.True(t, ok)
		assert.InDelta(t, 2.75, mean, 1e-9)
	})

	t.Run("multi-part polygons aggregate all parts", func(t *testing.T) {
		multi := geom.MultiPolygon{rect(0, 1, 1, 2), rect(1, 0, 2, 1)}
		mean, ok := grid.MeanWithin(multi)
		require.True(t, ok)
		assert.InDelta(t, 2.5, mean, 1e-9) // pixels 1 and 4, equal weight
	})

	t.Run("deterministic across invocations", func(t *testing.T) {
		poly := rect(0.3, 0.7, 1.9, 1.8)
		first, ok := grid.MeanWithin(poly)
		require.True(t, ok)
		for i := 0; i < 5; i++ {
			again, ok := grid.MeanWithin(poly)
			require.True(t, ok)
			assert.Equal(t, first, again, "zonal mean must be bit-for-bit stable")
		}
	})
}
