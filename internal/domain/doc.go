// Package domain holds the core computations for preparing city-level NO2
// time series from Sentinel-5P TROPOMI rasters.
//
// # Data Source
//
// Daily tropospheric NO2 column densities come from the Copernicus Data
// Space Sentinel Hub Process API as single-band float32 GeoTIFFs, one per
// day over the area of interest. Pixels without a valid retrieval (cloud
// cover, no overpass) are NaN in the provider output; aggregated monthly
// composites additionally use the explicit nodata sentinel -9999.
//
// # Periods
//
// A period is one calendar month, written two ways in external inputs:
//
//	"2021_04"  underscore form, used in file names
//	"2021-04"  dash form, used in record timestamps
//	"2019"     bare year, resolved against the target month for
//	           baseline-by-year requests
//
// Parsing tries a fixed priority order of format matchers and never
// defaults silently; an unrecognized form is a PeriodFormatError.
//
// # Zonal statistics
//
// The per-city measurement is the area-weighted mean of raster pixels
// inside the city boundary polygon. Boundary pixels contribute in
// proportion to the overlap area between their cell footprint and the
// polygon. A polygon that overlaps no valid pixel has an undefined mean,
// which is distinct from a mean of zero.
//
// # Significance testing
//
// Pandemic-era months are compared against pooled pre-pandemic baselines
// (same calendar month) with Welch's two-sample t-test. Verdicts carry the
// p-value, Cohen's d, percent change, and a banded textual interpretation.
// Groups with fewer than three daily samples yield the insufficient-data
// sentinel verdict (p=1, not significant) instead of an error.
package domain
