package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Period
	}{
		{"underscore form", "2021_04", Period{2021, time.April}},
		{"dash form", "2021-04", Period{2021, time.April}},
		{"december", "2019_12", Period{2019, time.December}},
		{"single digit month", "2019_4", Period{2019, time.April}},
		{"surrounding whitespace", " 2020_11 ", Period{2020, time.November}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePeriod(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}

	t.Run("rejects bare year without fallback month", func(t *testing.T) {
		_, err := ParsePeriod("2019")
		var perr *PeriodFormatError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "2019", perr.Input)
	})

	invalid := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"garbage", "aprilish"},
		{"month out of range", "2021_13"},
		{"zero month", "2021_00"},
		{"two digit year", "21_04"},
		{"non-numeric month", "2021_ab"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePeriod(tt.input)
			var perr *PeriodFormatError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestParsePeriodWithFallback(t *testing.T) {
	t.Run("bare year takes target month", func(t *testing.T) {
		p, err := ParsePeriodWithFallback("2019", time.April)
		require.NoError(t, err)
		assert.Equal(t, Period{2019, time.April}, p)
	})

	t.Run("full forms ignore the fallback", func(t *testing.T) {
		p, err := ParsePeriodWithFallback("2020_01", time.April)
		require.NoError(t, err)
		assert.Equal(t, Period{2020, time.January}, p)
	})
}

func TestPeriodRoundTrip(t *testing.T) {
	periods := []Period{
		{2019, time.January},
		{2020, time.February},
		{2021, time.December},
	}
	for _, want := range periods {
		underscore, err := ParsePeriod(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, underscore)

		dash, err := ParsePeriod(want.Timestamp())
		require.NoError(t, err)
		assert.Equal(t, want, dash)

		assert.Equal(t, want, PeriodOf(want.Day(1)))
	}
}

func TestPeriodDays(t *testing.T) {
	tests := []struct {
		period Period
		days   int
	}{
		{Period{2021, time.April}, 30},
		{Period{2021, time.December}, 31},
		{Period{2021, time.February}, 28},
		{Period{2020, time.February}, 29}, // leap year
		{Period{2100, time.February}, 28}, // century non-leap
	}
	for _, tt := range tests {
		assert.Equal(t, tt.days, tt.period.Days(), "days in %s", tt.period)
	}
}

func TestPeriodBefore(t *testing.T) {
	assert.True(t, Period{2019, time.December}.Before(Period{2020, time.January}))
	assert.True(t, Period{2020, time.February}.Before(Period{2020, time.March}))
	assert.False(t, Period{2020, time.March}.Before(Period{2020, time.March}))
	assert.False(t, Period{2021, time.January}.Before(Period{2020, time.June}))
}
