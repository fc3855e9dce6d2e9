package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cleanskies/no2-data-prep/internal/domain"
	"github.com/cleanskies/no2-data-prep/internal/observability"
)

// MonthlySource loads precomputed monthly composites.
type MonthlySource interface {
	MonthlyRaster(ctx context.Context, p domain.Period) (*domain.RasterGrid, error)
}

// IncidenceSource provides the per-district monthly incidence mean.
type IncidenceSource interface {
	MonthlyMean(districtKey string, p domain.Period) float64
}

// TimepointSink receives one period's finished records.
type TimepointSink interface {
	WriteTimepoints(ctx context.Context, p domain.Period, records []domain.CityTimepoint) error
}

// CityData builds per-city timepoint records for each period: the monthly
// zonal NO2 value, the district incidence, and for pandemic-era periods a
// significance verdict against the historical baseline.
type CityData struct {
	daily         domain.RasterSource
	monthly       MonthlySource
	incidence     IncidenceSource
	cities        []domain.City
	sinks         []TimepointSink
	baselineSpecs []string
	alpha         float64
	workers       int
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// NewCityData wires the city record run. incidence may be nil when no
// incidence table is configured; records then carry a zero incidence.
// baselineSpecs optionally overrides the default baseline selection; an
// entry may be a full period or a bare year resolved against each
// target's month.
func NewCityData(
	daily domain.RasterSource,
	monthly MonthlySource,
	incidence IncidenceSource,
	cities []domain.City,
	sinks []TimepointSink,
	baselineSpecs []string,
	alpha float64,
	workers int,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *CityData {
	if workers < 1 {
		workers = 1
	}
	return &CityData{
		daily:         daily,
		monthly:       monthly,
		incidence:     incidence,
		cities:        cities,
		sinks:         sinks,
		baselineSpecs: baselineSpecs,
		alpha:         alpha,
		workers:       workers,
		metrics:       metrics,
		logger:        logger,
	}
}

// Run processes every period and fans the finished batches out to the
// sinks. Record order within a batch follows the city list regardless of
// worker scheduling.
func (c *CityData) Run(ctx context.Context, periods []domain.Period) error {
	c.metrics.PipelineRunning.Set(1)
	defer c.metrics.PipelineRunning.Set(0)

	c.logger.Info("city data run started",
		"periods", len(periods),
		"cities", len(c.cities),
		"workers", c.workers)

	for _, p := range periods {
		records, err := c.processPeriod(ctx, p)
		if err != nil {
			return fmt.Errorf("period %s: %w", p, err)
		}
		for _, sink := range c.sinks {
			if err := sink.WriteTimepoints(ctx, p, records); err != nil {
				return fmt.Errorf("period %s: %w", p, err)
			}
		}
		c.metrics.TimepointsWritten.Add(float64(len(records)))
	}
	return nil
}

func (c *CityData) processPeriod(ctx context.Context, p domain.Period) ([]domain.CityTimepoint, error) {
	composite, err := c.monthly.MonthlyRaster(ctx, p)
	if err != nil {
		if !errors.Is(err, domain.ErrRasterNotFound) {
			return nil, fmt.Errorf("load composite: %w", err)
		}
		// Without a composite every city's monthly value falls back
		// to 0, matching the published record contract.
		c.logger.Warn("monthly composite missing, values default to 0", "period", p.String())
		composite = nil
	}

	records := make([]domain.CityTimepoint, len(c.cities))
	jobs := make(chan int)
	errc := make(chan error, c.workers)

	var wg sync.WaitGroup
	for w := 0; w < c.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				record, err := c.processCity(ctx, c.cities[i], p, composite)
				if err != nil {
					select {
					case errc <- err:
					default:
					}
					continue
				}
				records[i] = record
			}
		}()
	}

feed:
	for i := range c.cities {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case err := <-errc:
		return nil, err
	default:
	}
	return records, nil
}

func (c *CityData) processCity(ctx context.Context, city domain.City, p domain.Period, composite *domain.RasterGrid) (domain.CityTimepoint, error) {
	value := c.zonalValue(city, composite)
	c.metrics.CitiesProcessed.Inc()

	if !domain.CovidEra(p) {
		return domain.NewCityTimepoint(city.Name, p, value, 0, 1.0, domain.PrecovidInterpretation), nil
	}

	var incidence float64
	if c.incidence != nil {
		incidence = c.incidence.MonthlyMean(city.DistrictKey, p)
	}

	verdict, err := c.significance(ctx, city, p)
	if err != nil {
		return domain.CityTimepoint{}, err
	}
	return domain.NewCityTimepoint(city.Name, p, value, incidence, verdict.PValue, verdict.Interpretation), nil
}

// zonalValue computes the city's area-weighted mean over the monthly
// composite. An absent composite or a city without valid pixel overlap
// yields 0, the record contract's defined fallback.
func (c *CityData) zonalValue(city domain.City, composite *domain.RasterGrid) float64 {
	if composite == nil {
		return 0
	}
	start := time.Now()
	value, ok := composite.MeanWithin(city.Boundary)
	c.metrics.ZonalDuration.Observe(time.Since(start).Seconds())
	if !ok {
		c.logger.Warn("no valid pixels under city boundary", "city", city.Name)
		return 0
	}
	return value
}

// significance extracts the target and pooled baseline daily series and
// runs the two-sample comparison.
func (c *CityData) significance(ctx context.Context, city domain.City, p domain.Period) (domain.Verdict, error) {
	target, err := domain.ExtractDailySeries(ctx, c.daily, city.Boundary, p, c.logger)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("city %s target series: %w", city.Name, err)
	}
	c.metrics.DaysSkipped.WithLabelValues("unavailable").Add(float64(p.Days() - len(target)))

	baselinePeriods, err := c.resolveBaselines(p)
	if err != nil {
		return domain.Verdict{}, err
	}
	baselines := make([][]float64, 0, len(baselinePeriods))
	for _, bp := range baselinePeriods {
		series, err := domain.ExtractDailySeries(ctx, c.daily, city.Boundary, bp, c.logger)
		if err != nil {
			return domain.Verdict{}, fmt.Errorf("city %s baseline series %s: %w", city.Name, bp, err)
		}
		baselines = append(baselines, series)
	}

	verdict := domain.CompareSeries(target, baselines, c.alpha)
	verdict.TargetPeriod = p.Timestamp()
	verdict.BaselinePeriod = domain.FormatBaselinePeriods(baselinePeriods)
	c.metrics.SignificanceTests.WithLabelValues(verdictOutcome(verdict)).Inc()
	return verdict, nil
}

// resolveBaselines returns the reference periods for a target: the
// configured override specs resolved against the target's month, or the
// default same-month historical selection.
func (c *CityData) resolveBaselines(p domain.Period) ([]domain.Period, error) {
	if len(c.baselineSpecs) == 0 {
		return domain.BaselinePeriods(p.Month), nil
	}
	periods := make([]domain.Period, 0, len(c.baselineSpecs))
	for _, spec := range c.baselineSpecs {
		bp, err := domain.ParsePeriodWithFallback(spec, p.Month)
		if err != nil {
			return nil, fmt.Errorf("baseline period: %w", err)
		}
		periods = append(periods, bp)
	}
	return periods, nil
}

func verdictOutcome(v domain.Verdict) string {
	switch {
	case v.InsufficientData():
		return "insufficient_data"
	case v.Significant:
		return "significant"
	default:
		return "not_significant"
	}
}
