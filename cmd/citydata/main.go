// Command citydata builds the per-period city timepoint files: monthly
// NO2 values per city, COVID incidence, and significance verdicts.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cleanskies/no2-data-prep/internal/adapter/cities"
	"github.com/cleanskies/no2-data-prep/internal/adapter/geotiff"
	httpadapter "github.com/cleanskies/no2-data-prep/internal/adapter/http"
	"github.com/cleanskies/no2-data-prep/internal/adapter/incidence"
	"github.com/cleanskies/no2-data-prep/internal/adapter/jsonfile"
	kafkaadapter "github.com/cleanskies/no2-data-prep/internal/adapter/kafka"
	"github.com/cleanskies/no2-data-prep/internal/config"
	"github.com/cleanskies/no2-data-prep/internal/domain"
	"github.com/cleanskies/no2-data-prep/internal/observability"
	"github.com/cleanskies/no2-data-prep/internal/pipeline"
)

func main() {
	periodsFlag := flag.String("periods", "",
		"comma-separated periods to reprocess (e.g. 2021_04,2021-05); default all with daily coverage")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	cityList, err := cities.Load(cfg.CitiesGeoJSON)
	if err != nil {
		logger.Error("failed to load city boundaries", "error", err)
		os.Exit(1)
	}
	logger.Info("city boundaries loaded", "cities", len(cityList))

	var incidenceSource pipeline.IncidenceSource
	if cfg.IncidenceCSV != "" {
		table, err := incidence.Load(cfg.IncidenceCSV)
		if err != nil {
			logger.Error("failed to load incidence table", "error", err)
			os.Exit(1)
		}
		logger.Info("incidence table loaded", "districts", table.Districts())
		incidenceSource = table
	} else {
		logger.Info("no incidence table configured, records carry zero incidence")
	}

	store := geotiff.NewStore(cfg.DailyDir, cfg.MonthlyDir, logger)
	fileSink := jsonfile.NewSink(cfg.CityDataDir, logger)

	sinks := []pipeline.TimepointSink{fileSink}
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sinks = append(sinks, writer)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr,
		&httpadapter.DirChecker{Dirs: []string{cfg.DailyDir, cfg.MonthlyDir}}, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := run(ctx, cfg, store, cityList, incidenceSource, sinks, fileSink, *periodsFlag, metrics, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	if runErr != nil {
		logger.Error("city data run failed", "error", runErr)
		os.Exit(1)
	}
	logger.Info("city data run complete")
}

func run(
	ctx context.Context,
	cfg *config.Config,
	store *geotiff.Store,
	cityList []domain.City,
	incidenceSource pipeline.IncidenceSource,
	sinks []pipeline.TimepointSink,
	fileSink *jsonfile.Sink,
	periodsArg string,
	metrics *observability.Metrics,
	logger *slog.Logger,
) error {
	if err := fileSink.WriteMarkers(cityList); err != nil {
		return err
	}

	periods, err := selectPeriods(store, periodsArg)
	if err != nil {
		return err
	}
	if len(periods) == 0 {
		logger.Warn("no daily rasters found, nothing to process")
		return nil
	}

	cd := pipeline.NewCityData(store, store, incidenceSource, cityList, sinks,
		cfg.BaselinePeriods, cfg.Alpha, cfg.Workers, metrics, logger)
	return cd.Run(ctx, periods)
}

// selectPeriods resolves the explicit -periods list, or falls back to
// every month with daily raster coverage.
func selectPeriods(store *geotiff.Store, periodsArg string) ([]domain.Period, error) {
	if periodsArg != "" {
		var periods []domain.Period
		for _, s := range strings.Split(periodsArg, ",") {
			p, err := domain.ParsePeriod(s)
			if err != nil {
				return nil, err
			}
			periods = append(periods, p)
		}
		return periods, nil
	}

	dates, err := store.DailyDates()
	if err != nil {
		return nil, err
	}
	return pipeline.PeriodsFromDates(dates), nil
}
