package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is a canonical (year, month) pair identifying one calendar month
// of satellite coverage.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Days returns the number of calendar days in the period's month,
// accounting for leap years. Day 0 of the following month normalizes to
// the last day of this one.
func (p Period) Days() int {
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Day returns the UTC midnight time of the given 1-based day of the month.
func (p Period) Day(day int) time.Time {
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

// String renders the underscore file form, e.g. "2021_04".
func (p Period) String() string {
	return fmt.Sprintf("%04d_%02d", p.Year, int(p.Month))
}

// Timestamp renders the dash record form, e.g. "2021-04".
func (p Period) Timestamp() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Before reports whether p is chronologically before q.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Month < q.Month
}

// periodMatcher attempts one textual period format. It returns ok=false
// when the input is not in its format; a matcher never guesses.
type periodMatcher func(s string) (Period, bool)

// matchUnderscore parses "YYYY_MM".
func matchUnderscore(s string) (Period, bool) {
	return matchSeparated(s, "_")
}

// matchDash parses "YYYY-MM".
func matchDash(s string) (Period, bool) {
	return matchSeparated(s, "-")
}

func matchSeparated(s, sep string) (Period, bool) {
	year, month, found := strings.Cut(s, sep)
	if !found || len(year) != 4 {
		return Period{}, false
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return Period{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return Period{}, false
	}
	return Period{Year: y, Month: time.Month(m)}, true
}

// bareYearMatcher parses a 4-digit year, resolving the month from the
// caller-supplied fallback. Used for baseline requests given as a year only.
func bareYearMatcher(month time.Month) periodMatcher {
	return func(s string) (Period, bool) {
		if len(s) != 4 || month == 0 {
			return Period{}, false
		}
		y, err := strconv.Atoi(s)
		if err != nil {
			return Period{}, false
		}
		return Period{Year: y, Month: month}, true
	}
}

// ParsePeriod resolves "YYYY_MM" or "YYYY-MM" into a Period. A bare year is
// rejected here because there is no month to resolve it against; use
// ParsePeriodWithFallback for that form.
func ParsePeriod(s string) (Period, error) {
	return resolve(s, matchUnderscore, matchDash)
}

// ParsePeriodWithFallback resolves the same formats as ParsePeriod plus a
// bare 4-digit year, which takes the supplied month.
func ParsePeriodWithFallback(s string, month time.Month) (Period, error) {
	return resolve(s, matchUnderscore, matchDash, bareYearMatcher(month))
}

// resolve tries the matchers in priority order and fails with a
// PeriodFormatError when none accepts the input.
func resolve(s string, matchers ...periodMatcher) (Period, error) {
	s = strings.TrimSpace(s)
	for _, match := range matchers {
		if p, ok := match(s); ok {
			return p, nil
		}
	}
	return Period{}, &PeriodFormatError{Input: s}
}
