package domain

import (
	"math"

	"github.com/ctessum/geom"
)

// MeanWithin computes the area-weighted mean of the grid's valid samples
// inside poly. Every pixel cell overlapping the polygon contributes its
// value weighted by the fractional overlap area, so partially covered
// boundary pixels are neither dropped nor counted in full. Nodata and
// non-finite pixels are excluded before weighting.
//
// The result is ok=false when no valid pixel overlaps the polygon, which
// callers must treat as "no measurement", never as zero.
//
// Accumulation is sequential in row-major order, so identical inputs
// always produce bit-identical results.
func (g *RasterGrid) MeanWithin(poly geom.Polygonal) (float64, bool) {
	if poly == nil {
		return 0, false
	}
	bounds := poly.Bounds()
	col0, col1, row0, row1 := g.pixelRange(bounds)

	var weighted, weight float64
	for row := row0; row <= row1; row++ {
		for col := col0; col <= col1; col++ {
			v, ok := g.Value(col, row)
			if !ok {
				continue
			}
			cell := g.cellPolygon(col, row)
			if !cell.Bounds().Overlaps(bounds) {
				continue
			}
			overlap := cell.Intersection(poly)
			if overlap == nil {
				continue
			}
			w := overlap.Area()
			if w <= 0 {
				continue
			}
			weighted += w * v
			weight += w
		}
	}
	if weight == 0 {
		return 0, false
	}
	return weighted / weight, true
}

// cellPolygon returns the geographic footprint of pixel (col, row) as a
// counter-clockwise quadrilateral.
func (g *RasterGrid) cellPolygon(col, row int) geom.Polygon {
	x0, y0 := g.transform.Apply(float64(col), float64(row))
	x1, y1 := g.transform.Apply(float64(col+1), float64(row))
	x2, y2 := g.transform.Apply(float64(col+1), float64(row+1))
	x3, y3 := g.transform.Apply(float64(col), float64(row+1))
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x3, Y: y3},
		{X: x2, Y: y2},
		{X: x1, Y: y1},
	}}
}

// pixelRange returns the inclusive pixel index window covering the given
// geographic bounds. Rotated transforms cannot be inverted per axis, so
// they fall back to the whole grid.
func (g *RasterGrid) pixelRange(b *geom.Bounds) (col0, col1, row0, row1 int) {
	if !g.transform.axisAligned() {
		return 0, g.cols - 1, 0, g.rows - 1
	}
	ca := (b.Min.X - g.transform[0]) / g.transform[1]
	cb := (b.Max.X - g.transform[0]) / g.transform[1]
	ra := (b.Min.Y - g.transform[3]) / g.transform[5]
	rb := (b.Max.Y - g.transform[3]) / g.transform[5]

	col0 = clampIndex(int(math.Floor(math.Min(ca, cb))), g.cols)
	col1 = clampIndex(int(math.Ceil(math.Max(ca, cb))), g.cols)
	row0 = clampIndex(int(math.Floor(math.Min(ra, rb))), g.rows)
	row1 = clampIndex(int(math.Ceil(math.Max(ra, rb))), g.rows)
	return col0, col1, row0, row1
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}
