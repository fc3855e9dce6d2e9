package domain

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ctessum/geom"
)

// RasterSource loads the raster for one calendar day. Implementations
// return an error wrapping ErrRasterNotFound when no file exists for that
// day, and any other error for unreadable data.
type RasterSource interface {
	DailyRaster(ctx context.Context, day time.Time) (*RasterGrid, error)
}

// ExtractDailySeries walks every calendar day of the period and collects
// the polygon's zonal mean for each day that has one. Days are dropped
// when the raster file is missing (an expected gap in satellite coverage),
// when it cannot be read (logged, tolerated in this path), or when the
// zonal mean is undefined because no valid pixel overlaps the polygon.
//
// The returned series contains only defined values; its length is the true
// sample size for the significance test and may be anything from 0 to the
// month's day count. An empty series means "no data", never zero pollution.
func ExtractDailySeries(ctx context.Context, source RasterSource, poly geom.Polygonal, p Period, logger *slog.Logger) ([]float64, error) {
	series := make([]float64, 0, p.Days())
	for day := 1; day <= p.Days(); day++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		date := p.Day(day)
		grid, err := source.DailyRaster(ctx, date)
		if err != nil {
			if errors.Is(err, ErrRasterNotFound) {
				continue
			}
			logger.Warn("skipping unreadable daily raster",
				"date", date.Format("2006-01-02"),
				"error", err,
			)
			continue
		}
		mean, ok := grid.MeanWithin(poly)
		if !ok {
			continue
		}
		series = append(series, mean)
	}
	return series, nil
}
