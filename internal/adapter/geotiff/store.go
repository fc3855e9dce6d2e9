// Package geotiff stores daily and monthly NO2 rasters as single-band
// float32 GeoTIFF files, read and written through GDAL.
package geotiff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/airbusgeo/godal"

	"github.com/cleanskies/no2-data-prep/internal/domain"
)

const (
	filePrefix = "no2_data_"
	fileSuffix = ".tif"
	dailyForm  = "2006-01-02"
)

var registerOnce sync.Once

// register loads the GDAL drivers exactly once per process.
func register() {
	registerOnce.Do(godal.RegisterAll)
}

// Store reads and writes the flat raster directory layout:
//
//	<dailyDir>/no2_data_YYYY-MM-DD.tif
//	<monthlyDir>/no2_data_YYYY_MM.tif
type Store struct {
	dailyDir   string
	monthlyDir string
	logger     *slog.Logger
}

// NewStore creates a Store over the two raster directories.
func NewStore(dailyDir, monthlyDir string, logger *slog.Logger) *Store {
	return &Store{dailyDir: dailyDir, monthlyDir: monthlyDir, logger: logger}
}

// DailyPath returns the file path for one day's raster.
func (s *Store) DailyPath(day time.Time) string {
	return filepath.Join(s.dailyDir, filePrefix+day.Format(dailyForm)+fileSuffix)
}

// MonthlyPath returns the file path for a monthly composite.
func (s *Store) MonthlyPath(p domain.Period) string {
	return filepath.Join(s.monthlyDir, filePrefix+p.String()+fileSuffix)
}

// DailyRaster implements domain.RasterSource.
func (s *Store) DailyRaster(ctx context.Context, day time.Time) (*domain.RasterGrid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readGrid(s.DailyPath(day))
}

// MonthlyRaster loads a precomputed monthly composite.
func (s *Store) MonthlyRaster(ctx context.Context, p domain.Period) (*domain.RasterGrid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readGrid(s.MonthlyPath(p))
}

// WriteMonthly stores a monthly composite, preserving the grid's
// geotransform and nodata sentinel. Each composite has exactly one
// producer, so no write coordination is needed.
func (s *Store) WriteMonthly(ctx context.Context, p domain.Period, grid *domain.RasterGrid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.monthlyDir, 0o755); err != nil {
		return fmt.Errorf("create monthly dir: %w", err)
	}
	return writeGrid(s.MonthlyPath(p), grid)
}

// DailyDates scans the daily directory for raster files and returns their
// dates in ascending order. Files that do not match the naming scheme are
// ignored.
func (s *Store) DailyDates() ([]time.Time, error) {
	entries, err := os.ReadDir(s.dailyDir)
	if err != nil {
		return nil, fmt.Errorf("scan daily dir: %w", err)
	}
	dates := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if day, ok := ParseDailyFilename(e.Name()); ok {
			dates = append(dates, day)
		}
	}
	return dates, nil
}

// ParseDailyFilename extracts the date from a daily raster file name,
// e.g. "no2_data_2021-04-07.tif".
func ParseDailyFilename(name string) (time.Time, bool) {
	if len(name) != len(filePrefix)+len(dailyForm)+len(fileSuffix) {
		return time.Time{}, false
	}
	if name[:len(filePrefix)] != filePrefix || name[len(name)-len(fileSuffix):] != fileSuffix {
		return time.Time{}, false
	}
	day, err := time.Parse(dailyForm, name[len(filePrefix):len(name)-len(fileSuffix)])
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// Flatten copies provider download output into the flat daily layout. The
// provider writes one directory per day containing a single request-hash
// subdirectory with a response.tiff inside:
//
//	<downloadDir>/YYYY-MM-DD/<hash>/response.tiff
//
// Days with an unexpected structure are logged and skipped; the count of
// copied files is returned.
func (s *Store) Flatten(downloadDir string) (int, error) {
	days, err := os.ReadDir(downloadDir)
	if err != nil {
		return 0, fmt.Errorf("scan download dir: %w", err)
	}
	if err := os.MkdirAll(s.dailyDir, 0o755); err != nil {
		return 0, fmt.Errorf("create daily dir: %w", err)
	}

	copied := 0
	for _, dayEntry := range days {
		if !dayEntry.IsDir() {
			continue
		}
		day, err := time.Parse(dailyForm, dayEntry.Name())
		if err != nil {
			s.logger.Warn("skipping non-date download directory", "name", dayEntry.Name())
			continue
		}

		src, err := findResponseTIFF(filepath.Join(downloadDir, dayEntry.Name()))
		if err != nil {
			s.logger.Warn("skipping malformed download directory",
				"date", dayEntry.Name(), "error", err)
			continue
		}

		if err := copyFile(src, s.DailyPath(day)); err != nil {
			return copied, fmt.Errorf("copy %s: %w", src, err)
		}
		copied++
	}
	return copied, nil
}

// findResponseTIFF locates the response.tiff under a day's single
// request-hash subdirectory.
func findResponseTIFF(dayDir string) (string, error) {
	entries, err := os.ReadDir(dayDir)
	if err != nil {
		return "", err
	}
	var subdirs []string
	for _, e := range entries {
		if e.IsDir() {
			subdirs = append(subdirs, e.Name())
		}
	}
	if len(subdirs) != 1 {
		return "", fmt.Errorf("want exactly 1 subdirectory, found %d", len(subdirs))
	}
	path := filepath.Join(dayDir, subdirs[0], "response.tiff")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no response.tiff: %w", err)
	}
	return path, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// readGrid loads a single-band GeoTIFF into an immutable RasterGrid. A
// missing file maps to domain.ErrRasterNotFound so series extraction can
// distinguish expected coverage gaps from real read failures.
func readGrid(path string) (*domain.RasterGrid, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRasterNotFound, path)
	}
	register()

	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster %s: %w", path, err)
	}
	defer ds.Close()

	structure := ds.Structure()
	if structure.NBands < 1 {
		return nil, fmt.Errorf("raster %s has no bands", path)
	}
	transform, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("read geotransform of %s: %w", path, err)
	}

	band := ds.Bands()[0]
	samples := make([]float32, structure.SizeX*structure.SizeY)
	if err := band.Read(0, 0, samples, structure.SizeX, structure.SizeY); err != nil {
		return nil, fmt.Errorf("read band of %s: %w", path, err)
	}

	var nodata *float64
	if nd, ok := band.NoData(); ok {
		nodata = &nd
	}
	return domain.NewRasterGrid(samples, structure.SizeX, structure.SizeY, domain.GeoTransform(transform), nodata)
}

// writeGrid stores a grid as a LZW-compressed float32 GeoTIFF with an
// explicit nodata value.
func writeGrid(path string, grid *domain.RasterGrid) error {
	register()

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, grid.Cols(), grid.Rows(),
		godal.CreationOption("COMPRESS=LZW"))
	if err != nil {
		return fmt.Errorf("create raster %s: %w", path, err)
	}

	if err := ds.SetGeoTransform([6]float64(grid.Transform())); err != nil {
		ds.Close()
		return fmt.Errorf("set geotransform of %s: %w", path, err)
	}
	band := ds.Bands()[0]
	if nd, ok := grid.NoData(); ok {
		if err := band.SetNoData(nd); err != nil {
			ds.Close()
			return fmt.Errorf("set nodata of %s: %w", path, err)
		}
	}
	if err := band.Write(0, 0, grid.Samples(), grid.Cols(), grid.Rows()); err != nil {
		ds.Close()
		return fmt.Errorf("write band of %s: %w", path, err)
	}
	return ds.Close()
}
