package domain

import (
	"fmt"
	"math"
)

// NoDataValue is the sentinel written into aggregated monthly composites.
// Tropospheric NO2 column densities are small positive mol/m², so -9999
// can never collide with a valid measurement.
const NoDataValue = -9999.0

// GeoTransform is a GDAL-order affine transform mapping pixel indices to
// geographic coordinates:
//
//	X = t[0] + col*t[1] + row*t[2]
//	Y = t[3] + col*t[4] + row*t[5]
type GeoTransform [6]float64

// Apply maps fractional pixel coordinates to geographic coordinates.
func (t GeoTransform) Apply(col, row float64) (x, y float64) {
	return t[0] + col*t[1] + row*t[2], t[3] + col*t[4] + row*t[5]
}

// axisAligned reports whether the transform has no rotation terms, which
// lets zonal sampling invert it per axis instead of scanning the whole grid.
func (t GeoTransform) axisAligned() bool {
	return t[2] == 0 && t[4] == 0
}

// RasterGrid is a single-band float32 raster in memory: the sample grid,
// its geotransform, and an optional nodata sentinel. Grids are immutable
// once constructed; all accessors treat nodata and non-finite samples as
// absent.
type RasterGrid struct {
	samples   []float32
	cols      int
	rows      int
	transform GeoTransform
	nodata    float64
	hasNodata bool
}

// NewRasterGrid builds a grid from row-major samples. Pass nodata=nil for
// rasters without an explicit sentinel (non-finite samples are still
// treated as absent). The sample slice is copied.
func NewRasterGrid(samples []float32, cols, rows int, transform GeoTransform, nodata *float64) (*RasterGrid, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("invalid raster shape %dx%d", cols, rows)
	}
	if len(samples) != cols*rows {
		return nil, fmt.Errorf("raster shape %dx%d needs %d samples, got %d", cols, rows, cols*rows, len(samples))
	}
	g := &RasterGrid{
		samples:   append([]float32(nil), samples...),
		cols:      cols,
		rows:      rows,
		transform: transform,
	}
	if nodata != nil {
		g.nodata = *nodata
		g.hasNodata = true
	}
	return g, nil
}

// Cols returns the grid width in pixels.
func (g *RasterGrid) Cols() int { return g.cols }

// Rows returns the grid height in pixels.
func (g *RasterGrid) Rows() int { return g.rows }

// Transform returns the pixel-to-geographic affine transform.
func (g *RasterGrid) Transform() GeoTransform { return g.transform }

// NoData returns the nodata sentinel and whether one is set.
func (g *RasterGrid) NoData() (float64, bool) { return g.nodata, g.hasNodata }

// Value returns the sample at (col, row) and whether it is a valid
// measurement. Nodata and non-finite samples report ok=false.
func (g *RasterGrid) Value(col, row int) (float64, bool) {
	v := float64(g.samples[row*g.cols+col])
	if g.hasNodata && v == g.nodata {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Samples returns a copy of the row-major sample grid, nodata included.
func (g *RasterGrid) Samples() []float32 {
	return append([]float32(nil), g.samples...)
}

// ValidFraction returns the share of samples holding a valid measurement.
func (g *RasterGrid) ValidFraction() float64 {
	valid := 0
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			if _, ok := g.Value(col, row); ok {
				valid++
			}
		}
	}
	return float64(valid) / float64(g.cols*g.rows)
}

// Mean returns the unweighted mean of all valid samples, with ok=false
// when the grid holds none. Used for per-day acquisition reports; the
// polygon-weighted statistic lives in MeanWithin.
func (g *RasterGrid) Mean() (float64, bool) {
	var sum float64
	var n int
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			if v, ok := g.Value(col, row); ok {
				sum += v
				n++
			}
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// shape describes the grid for mismatch diagnostics.
func (g *RasterGrid) shape() string {
	return fmt.Sprintf("%dx%d@%v", g.cols, g.rows, g.transform)
}

// sameLayout reports whether two grids share pixel shape and transform.
func (g *RasterGrid) sameLayout(o *RasterGrid) bool {
	return g.cols == o.cols && g.rows == o.rows && g.transform == o.transform
}
