// Command postprocess flattens raw provider downloads into the daily
// raster layout and composes monthly composite rasters.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cleanskies/no2-data-prep/internal/adapter/geotiff"
	httpadapter "github.com/cleanskies/no2-data-prep/internal/adapter/http"
	"github.com/cleanskies/no2-data-prep/internal/config"
	"github.com/cleanskies/no2-data-prep/internal/observability"
	"github.com/cleanskies/no2-data-prep/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	store := geotiff.NewStore(cfg.DailyDir, cfg.MonthlyDir, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr,
		&httpadapter.DirChecker{Dirs: []string{cfg.DailyDir}}, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The provider download tree is optional; a deployment downloading
	// straight into the daily layout has nothing to flatten.
	if _, err := os.Stat(cfg.DownloadDir); err == nil {
		copied, err := store.Flatten(cfg.DownloadDir)
		if err != nil {
			logger.Error("flatten failed", "error", err)
			os.Exit(1)
		}
		logger.Info("provider downloads flattened", "copied", copied)
	} else {
		logger.Info("no download dir, skipping flatten", "dir", cfg.DownloadDir)
	}

	p := pipeline.NewPostprocess(store, cfg.RequireFullMonth, metrics, logger)
	runErr := p.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	if runErr != nil {
		logger.Error("postprocess run failed", "error", runErr)
		os.Exit(1)
	}
	logger.Info("postprocess run complete")
}
