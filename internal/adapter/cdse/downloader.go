package cdse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cleanskies/no2-data-prep/internal/domain"
	"github.com/cleanskies/no2-data-prep/internal/observability"
)

// RasterStore is the slice of the GeoTIFF store the downloader needs: a
// destination path per day and a read-back for post-download statistics.
type RasterStore interface {
	DailyPath(day time.Time) string
	DailyRaster(ctx context.Context, day time.Time) (*domain.RasterGrid, error)
}

// Downloader fetches a date range of daily rasters and records a per-day
// acquisition report.
type Downloader struct {
	client  *Client
	store   RasterStore
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewDownloader wires a Process API client to the raster store.
func NewDownloader(client *Client, store RasterStore, metrics *observability.Metrics, logger *slog.Logger) *Downloader {
	return &Downloader{client: client, store: store, metrics: metrics, logger: logger}
}

// Report summarizes one acquisition run.
type Report struct {
	GeneratedAt string      `json:"generated_at"`
	Succeeded   int         `json:"succeeded"`
	Failed      int         `json:"failed"`
	Days        []DayReport `json:"days"`
}

// DayReport records the outcome of a single day's download.
type DayReport struct {
	Date            string  `json:"date"`
	Success         bool    `json:"success"`
	DurationSeconds float64 `json:"duration_seconds"`
	ValidFraction   float64 `json:"valid_fraction,omitempty"`
	Mean            float64 `json:"mean,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Run downloads every day in [from, to] inclusive. A failed day is
// reported and skipped; only a context cancellation aborts the run.
func (d *Downloader) Run(ctx context.Context, from, to time.Time) (*Report, error) {
	report := &Report{GeneratedAt: clock.Now().UTC().Format(time.RFC3339)}

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		entry := d.downloadDay(ctx, day)
		if entry.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.Days = append(report.Days, entry)
	}

	d.logger.Info("acquisition run finished",
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
		"succeeded", report.Succeeded,
		"failed", report.Failed)
	return report, nil
}

func (d *Downloader) downloadDay(ctx context.Context, day time.Time) DayReport {
	entry := DayReport{Date: day.Format("2006-01-02")}
	start := clock.Now()

	tiff, err := d.client.DownloadDay(ctx, day)
	entry.DurationSeconds = clock.Now().Sub(start).Seconds()
	d.metrics.DownloadDuration.Observe(entry.DurationSeconds)
	if err != nil {
		entry.Error = err.Error()
		d.logger.Error("day download failed", "date", entry.Date, "error", err)
		return entry
	}

	path := d.store.DailyPath(day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		entry.Error = err.Error()
		return entry
	}
	if err := os.WriteFile(path, tiff, 0o644); err != nil {
		entry.Error = err.Error()
		d.logger.Error("day raster write failed", "date", entry.Date, "error", err)
		return entry
	}
	entry.Success = true

	// Read-back statistics are informational; a failure here does not
	// invalidate the stored raster.
	grid, err := d.store.DailyRaster(ctx, day)
	if err != nil {
		d.logger.Warn("stored raster not readable for statistics", "date", entry.Date, "error", err)
		return entry
	}
	entry.ValidFraction = grid.ValidFraction()
	if mean, ok := grid.Mean(); ok {
		entry.Mean = mean
	}
	d.logger.Info("day downloaded",
		"date", entry.Date,
		"valid_fraction", entry.ValidFraction,
		"mean", entry.Mean)
	return entry
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode download report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write download report: %w", err)
	}
	return nil
}
