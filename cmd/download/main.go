// Command download fetches daily NO2 rasters from the Copernicus Data
// Space Ecosystem for a date range and writes an acquisition report.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cleanskies/no2-data-prep/internal/adapter/cdse"
	"github.com/cleanskies/no2-data-prep/internal/adapter/geotiff"
	httpadapter "github.com/cleanskies/no2-data-prep/internal/adapter/http"
	"github.com/cleanskies/no2-data-prep/internal/config"
	"github.com/cleanskies/no2-data-prep/internal/observability"
)

func main() {
	fromFlag := flag.String("from", "", "first day to download (YYYY-MM-DD)")
	toFlag := flag.String("to", "", "last day to download, inclusive (YYYY-MM-DD)")
	flag.Parse()

	// A local .env is optional; in deployment the environment is set by
	// the orchestrator.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	from, to, err := parseRange(*fromFlag, *toFlag)
	if err != nil {
		logger.Error("invalid date range", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DailyDir, 0o755); err != nil {
		logger.Error("failed to create daily dir", "error", err)
		os.Exit(1)
	}

	store := geotiff.NewStore(cfg.DailyDir, cfg.MonthlyDir, logger)
	client, err := cdse.NewClient(cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to create acquisition client", "error", err)
		os.Exit(1)
	}
	downloader := cdse.NewDownloader(client, store, metrics, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr,
		&httpadapter.DirChecker{Dirs: []string{cfg.DailyDir}}, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, runErr := downloader.Run(ctx, from, to)
	if report != nil {
		reportPath := filepath.Join(cfg.DailyDir, "download_report.json")
		if err := report.Save(reportPath); err != nil {
			logger.Error("failed to save download report", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	if runErr != nil {
		logger.Error("download run failed", "error", runErr)
		os.Exit(1)
	}
	logger.Info("download run complete")
}

func parseRange(from, to string) (time.Time, time.Time, error) {
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, errors.New("-from and -to are required")
	}
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("-to must not be before -from")
	}
	return start, end, nil
}
