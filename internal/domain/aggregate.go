package domain

// AggregateMonth folds an ordered sequence of daily grids into one monthly
// composite by per-pixel mean across time, counting only valid samples.
// A pixel with no valid sample on any day becomes NoDataValue in the
// output. The output grid reuses the first grid's geotransform.
//
// When requireFullMonth is set and the number of daily grids differs from
// the month's day count, the aggregation is skipped and (nil, true, nil)
// is returned: months with coverage gaps are deliberately excluded from
// the composite product so partial months cannot bias the average. A skip
// is a data-completeness outcome, not an error.
//
// All grids must share shape and geotransform; the first violation aborts
// with a GridMismatchError.
func AggregateMonth(grids []*RasterGrid, p Period, requireFullMonth bool) (*RasterGrid, bool, error) {
	if requireFullMonth && len(grids) != p.Days() {
		return nil, true, nil
	}
	if len(grids) == 0 {
		return nil, true, nil
	}

	ref := grids[0]
	for i, g := range grids[1:] {
		if !g.sameLayout(ref) {
			return nil, false, &GridMismatchError{
				Day:  p.Day(i + 2),
				Want: ref.shape(),
				Got:  g.shape(),
			}
		}
	}

	cols, rows := ref.Cols(), ref.Rows()
	sums := make([]float64, cols*rows)
	counts := make([]int, cols*rows)
	for _, g := range grids {
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				v, ok := g.Value(col, row)
				if !ok {
					continue
				}
				i := row*cols + col
				sums[i] += v
				counts[i]++
			}
		}
	}

	out := make([]float32, cols*rows)
	for i := range out {
		if counts[i] == 0 {
			out[i] = NoDataValue
			continue
		}
		out[i] = float32(sums[i] / float64(counts[i]))
	}

	nodata := float64(NoDataValue)
	grid, err := NewRasterGrid(out, cols, rows, ref.Transform(), &nodata)
	if err != nil {
		return nil, false, err
	}
	return grid, false, nil
}
