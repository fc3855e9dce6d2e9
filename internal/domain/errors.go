package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrRasterNotFound marks a raster file that does not exist on disk.
// The daily-series path treats it as an expected gap; the monthly-lookup
// path surfaces it so the caller can pick a fallback value.
var ErrRasterNotFound = errors.New("raster file not found")

// PeriodFormatError reports a period representation that matches none of
// the accepted formats.
type PeriodFormatError struct {
	Input string
}

func (e *PeriodFormatError) Error() string {
	return fmt.Sprintf("cannot parse period %q: want YYYY_MM, YYYY-MM, or a bare year", e.Input)
}

// GridMismatchError reports a daily grid whose shape or geotransform
// differs from the first grid of the month being aggregated.
type GridMismatchError struct {
	Day  time.Time
	Want string
	Got  string
}

func (e *GridMismatchError) Error() string {
	return fmt.Sprintf("grid for %s does not match month reference: want %s, got %s",
		e.Day.Format("2006-01-02"), e.Want, e.Got)
}
