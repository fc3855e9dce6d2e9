package domain

import (
	"fmt"
	"time"

	"github.com/ctessum/geom"
)

// City is one administrative unit whose boundary polygon is evaluated
// against the rasters. DistrictKey is the 5-digit district key (AGS
// prefix) joining the city to the incidence table. The boundary is shared
// read-only input and is never mutated or re-projected; it must be in the
// rasters' coordinate reference system.
type City struct {
	Name        string
	DistrictKey string
	Population  int
	Boundary    geom.Polygonal
}

// Marker returns the lightweight map representation of the city, placed
// at the boundary centroid.
func (c City) Marker() CityMarker {
	center := c.Boundary.Centroid()
	return CityMarker{
		Name:       c.Name,
		Lat:        center.Y,
		Lng:        center.X,
		Population: c.Population,
	}
}

// CityMarker is the cities.json entry consumed by the map frontend.
type CityMarker struct {
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Population int     `json:"population"`
}

// CityTimepoint is one output record per (city, period): the monthly NO2
// value, the incidence for that month, and the significance verdict
// against the historical baseline.
type CityTimepoint struct {
	CityName       string    `json:"cityName"`
	Timestamp      string    `json:"timestamp"`
	Value          float64   `json:"value"`
	Incidence      float64   `json:"incidence"`
	PValue         float64   `json:"pValue"`
	Interpretation string    `json:"interpretation"`
	ProcessedAt    time.Time `json:"-"`
}

// NewCityTimepoint assembles a record and stamps it with the package clock.
func NewCityTimepoint(city string, p Period, value, incidence, pValue float64, interpretation string) CityTimepoint {
	return CityTimepoint{
		CityName:       city,
		Timestamp:      p.Timestamp(),
		Value:          value,
		Incidence:      incidence,
		PValue:         pValue,
		Interpretation: interpretation,
		ProcessedAt:    clock.Now(),
	}
}

// Key returns a deterministic identity for the record, stable across
// reprocessing so downstream consumers can upsert idempotently.
func (t CityTimepoint) Key() string {
	return fmt.Sprintf("%s|%s", t.CityName, t.Timestamp)
}

// PrecovidInterpretation labels records for periods before the pandemic
// era, which carry no incidence value and no significance verdict.
const PrecovidInterpretation = "Precovid baseline"

// covidEraStart is the first period carrying incidence data and a
// significance verdict; earlier periods are pre-pandemic baseline records.
var covidEraStart = Period{Year: 2020, Month: time.March}

// CovidEra reports whether the period falls in the pandemic era
// (2020-03 onwards).
func CovidEra(p Period) bool {
	return !p.Before(covidEraStart)
}

// BaselinePeriods returns the historical reference periods for a target
// month: the same month of 2019, plus the same month of 2020 for January
// and February targets since those 2020 months predate the pandemic era.
func BaselinePeriods(month time.Month) []Period {
	periods := []Period{{Year: 2019, Month: month}}
	if month == time.January || month == time.February {
		periods = append(periods, Period{Year: 2020, Month: month})
	}
	return periods
}

// FormatBaselinePeriods renders the pooled baseline label for a verdict,
// e.g. "2019-04" or "2019-01, 2020-01".
func FormatBaselinePeriods(periods []Period) string {
	var s string
	for i, p := range periods {
		if i > 0 {
			s += ", "
		}
		s += p.Timestamp()
	}
	return s
}
