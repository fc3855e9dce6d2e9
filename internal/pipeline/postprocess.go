// Package pipeline orchestrates the raster preparation runs: monthly
// compositing of daily rasters and per-city timepoint assembly.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cleanskies/no2-data-prep/internal/domain"
	"github.com/cleanskies/no2-data-prep/internal/observability"
)

// MonthlyStore is the raster storage surface the postprocess run needs.
type MonthlyStore interface {
	DailyRaster(ctx context.Context, day time.Time) (*domain.RasterGrid, error)
	WriteMonthly(ctx context.Context, p domain.Period, grid *domain.RasterGrid) error
	DailyDates() ([]time.Time, error)
}

// Postprocess composes the available daily rasters into monthly files.
type Postprocess struct {
	store            MonthlyStore
	requireFullMonth bool
	metrics          *observability.Metrics
	logger           *slog.Logger
}

// NewPostprocess creates the monthly compositing run.
func NewPostprocess(store MonthlyStore, requireFullMonth bool, metrics *observability.Metrics, logger *slog.Logger) *Postprocess {
	return &Postprocess{
		store:            store,
		requireFullMonth: requireFullMonth,
		metrics:          metrics,
		logger:           logger,
	}
}

// Run scans the daily directory, groups rasters by month, and writes one
// composite per month that passes the coverage gate. Unreadable daily
// rasters abort the run; at this stage every scanned file is expected to
// load.
func (p *Postprocess) Run(ctx context.Context) error {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	dates, err := p.store.DailyDates()
	if err != nil {
		return fmt.Errorf("list daily rasters: %w", err)
	}
	if len(dates) == 0 {
		p.logger.Warn("no daily rasters found, nothing to compose")
		return nil
	}

	byPeriod := groupByPeriod(dates)
	periods := sortedPeriods(byPeriod)
	p.logger.Info("compositing run started",
		"days", len(dates),
		"months", len(periods),
		"require_full_month", p.requireFullMonth)

	for _, period := range periods {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.composeMonth(ctx, period, byPeriod[period]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postprocess) composeMonth(ctx context.Context, period domain.Period, days []time.Time) error {
	grids := make([]*domain.RasterGrid, 0, len(days))
	for _, day := range days {
		grid, err := p.store.DailyRaster(ctx, day)
		if err != nil {
			return fmt.Errorf("load daily raster %s: %w", day.Format("2006-01-02"), err)
		}
		p.metrics.RastersRead.Inc()
		grids = append(grids, grid)
	}
	p.metrics.DaysSkipped.WithLabelValues("missing").Add(float64(period.Days() - len(days)))

	composite, skipped, err := domain.AggregateMonth(grids, period, p.requireFullMonth)
	if err != nil {
		return fmt.Errorf("compose %s: %w", period, err)
	}
	if skipped {
		p.metrics.MonthsSkipped.Inc()
		p.logger.Info("month skipped, incomplete coverage",
			"period", period.String(),
			"days_available", len(days),
			"days_in_month", period.Days())
		return nil
	}

	if err := p.store.WriteMonthly(ctx, period, composite); err != nil {
		return fmt.Errorf("write composite %s: %w", period, err)
	}
	p.metrics.MonthsComposed.Inc()
	p.logger.Info("month composed", "period", period.String(), "days", len(days))
	return nil
}

// groupByPeriod buckets dates by calendar month, keeping each bucket in
// ascending date order.
func groupByPeriod(dates []time.Time) map[domain.Period][]time.Time {
	byPeriod := make(map[domain.Period][]time.Time)
	for _, d := range dates {
		p := domain.PeriodOf(d)
		byPeriod[p] = append(byPeriod[p], d)
	}
	for _, days := range byPeriod {
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	}
	return byPeriod
}

func sortedPeriods(byPeriod map[domain.Period][]time.Time) []domain.Period {
	periods := make([]domain.Period, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	return periods
}

// PeriodsFromDates returns the distinct months covered by the given
// dates, in chronological order.
func PeriodsFromDates(dates []time.Time) []domain.Period {
	return sortedPeriods(groupByPeriod(dates))
}
