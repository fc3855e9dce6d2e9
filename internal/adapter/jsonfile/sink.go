// Package jsonfile writes the per-period city timepoint files and the
// lightweight city marker index consumed by the frontend.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cleanskies/no2-data-prep/internal/domain"
)

// Sink writes city timepoint batches into a directory, one JSON array per
// period. It implements pipeline.TimepointSink.
type Sink struct {
	dir    string
	logger *slog.Logger
}

// NewSink creates a sink rooted at the city data directory.
func NewSink(dir string, logger *slog.Logger) *Sink {
	return &Sink{dir: dir, logger: logger}
}

// PeriodPath returns the output file for one period, e.g.
// city_timepoints_2021_04.json.
func (s *Sink) PeriodPath(p domain.Period) string {
	return filepath.Join(s.dir, fmt.Sprintf("city_timepoints_%s.json", p))
}

// WriteTimepoints stores one period's records, replacing any previous
// file for that period. Each period has a single producer.
func (s *Sink) WriteTimepoints(ctx context.Context, p domain.Period, records []domain.CityTimepoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create city data dir: %w", err)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode timepoints for %s: %w", p, err)
	}
	path := s.PeriodPath(p)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	s.logger.Info("timepoint file written", "period", p.String(), "cities", len(records))
	return nil
}

// WriteMarkers stores the cities.json marker index.
func (s *Sink) WriteMarkers(cities []domain.City) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create city data dir: %w", err)
	}

	markers := make([]domain.CityMarker, len(cities))
	for i, c := range cities {
		markers[i] = c.Marker()
	}
	data, err := json.Marshal(markers)
	if err != nil {
		return fmt.Errorf("encode city markers: %w", err)
	}

	path := filepath.Join(s.dir, "cities.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
