// Package incidence loads the published 7-day COVID incidence per
// district and exposes monthly means for merging into city records.
package incidence

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cleanskies/no2-data-prep/internal/domain"
)

const (
	colDistrict = "Landkreis_id"
	colDate     = "Meldedatum"
	colValue    = "Inzidenz_7-Tage"
)

type entry struct {
	date  time.Time
	value float64
}

// Table holds per-district daily incidence values keyed by the five-digit
// district key.
type Table struct {
	rows map[string][]entry
}

// Load parses the incidence CSV. Columns are located by header name, so
// column order and extra columns in the published file do not matter.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open incidence file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read incidence header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, col := range []string{colDistrict, colDate, colValue} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("incidence file missing column %q", col)
		}
	}

	t := &Table{rows: make(map[string][]entry)}
	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read incidence row: %w", err)
		}
		line++
		district, date, value, err := parseRecord(record, idx)
		if err != nil {
			return nil, fmt.Errorf("incidence line %d: %w", line, err)
		}
		t.rows[district] = append(t.rows[district], entry{date: date, value: value})
	}
	return t, nil
}

func parseRecord(record []string, idx map[string]int) (string, time.Time, float64, error) {
	max := idx[colDistrict]
	for _, i := range []int{idx[colDate], idx[colValue]} {
		if i > max {
			max = i
		}
	}
	if len(record) <= max {
		return "", time.Time{}, 0, fmt.Errorf("want at least %d fields, got %d", max+1, len(record))
	}

	district := record[idx[colDistrict]]
	if district == "" {
		return "", time.Time{}, 0, fmt.Errorf("empty %s", colDistrict)
	}
	date, err := time.Parse("2006-01-02", record[idx[colDate]])
	if err != nil {
		return "", time.Time{}, 0, fmt.Errorf("parse %s: %w", colDate, err)
	}
	value, err := strconv.ParseFloat(record[idx[colValue]], 64)
	if err != nil {
		return "", time.Time{}, 0, fmt.Errorf("parse %s: %w", colValue, err)
	}
	return district, date, value, nil
}

// MonthlyMean averages a district's daily incidence over one calendar
// month. Districts or months without data yield 0.
func (t *Table) MonthlyMean(districtKey string, p domain.Period) float64 {
	var sum float64
	var n int
	for _, e := range t.rows[districtKey] {
		if e.date.Year() == p.Year && e.date.Month() == p.Month {
			sum += e.value
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Districts returns the number of distinct districts loaded.
func (t *Table) Districts() int {
	return len(t.rows)
}
