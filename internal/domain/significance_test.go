package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareSeries(t *testing.T) {
	t.Run("large pandemic-era decrease", func(t *testing.T) {
		target := []float64{10, 12, 11, 13, 9}
		baseline := []float64{20, 22, 19, 21, 20}

		v := CompareSeries(target, [][]float64{baseline}, DefaultAlpha)

		assert.True(t, v.Significant)
		assert.Less(t, v.PValue, 0.001)
		assert.Negative(t, v.TStatistic)
		assert.InDelta(t, 11.0, v.TargetMean, 1e-9)
		assert.InDelta(t, 20.4, v.BaselineMean, 1e-9)
		assert.Less(t, v.CohensD, -0.8, "standardized difference must be strongly negative")
		assert.InDelta(t, -46.08, v.PercentChange, 0.01)
		assert.Equal(t, 5, v.NTarget)
		assert.Equal(t, 5, v.NBaseline)
		assert.Contains(t, v.Interpretation, "significant")
		assert.Contains(t, v.Interpretation, "large effect size")
		assert.False(t, v.InsufficientData())
	})

	t.Run("small target sample forces the sentinel", func(t *testing.T) {
		v := CompareSeries([]float64{10, 12}, [][]float64{{20, 21, 19, 22, 20, 21}}, DefaultAlpha)

		assert.False(t, v.Significant)
		assert.Equal(t, 1.0, v.PValue)
		assert.Zero(t, v.CohensD)
		assert.Zero(t, v.PercentChange)
		assert.Equal(t, 2, v.NTarget)
		assert.Equal(t, 6, v.NBaseline)
		assert.True(t, v.InsufficientData())
	})

	t.Run("small pooled baseline forces the sentinel", func(t *testing.T) {
		v := CompareSeries([]float64{10, 12, 11, 9}, [][]float64{{20}, {21}}, DefaultAlpha)

		assert.False(t, v.Significant)
		assert.Equal(t, 1.0, v.PValue)
		assert.True(t, v.InsufficientData())
	})

	t.Run("empty inputs never panic", func(t *testing.T) {
		v := CompareSeries(nil, nil, DefaultAlpha)
		assert.Equal(t, 1.0, v.PValue)
		assert.True(t, v.InsufficientData())
	})

	t.Run("identical constant groups are handled", func(t *testing.T) {
		v := CompareSeries([]float64{10, 10, 10}, [][]float64{{10, 10, 10}}, DefaultAlpha)

		assert.False(t, v.Significant)
		assert.Equal(t, 1.0, v.PValue)
		assert.Zero(t, v.CohensD, "zero pooled deviation must define d as 0")
		assert.Zero(t, v.PercentChange)
	})

	t.Run("distinct constant groups are handled", func(t *testing.T) {
		// Zero variance in both groups makes the t-statistic infinite;
		// the comparison must fall back to the sentinel, not blow up.
		v := CompareSeries([]float64{10, 10, 10}, [][]float64{{20, 20, 20}}, DefaultAlpha)

		assert.False(t, v.Significant)
		assert.Equal(t, 1.0, v.PValue)
	})

	t.Run("zero baseline mean defines percent change as 0", func(t *testing.T) {
		v := CompareSeries([]float64{1, 2, 3, 2}, [][]float64{{-1, 1, -1, 1}}, DefaultAlpha)
		assert.Zero(t, v.PercentChange)
		assert.False(t, math.IsNaN(v.PValue))
	})

	t.Run("symmetry under group swap", func(t *testing.T) {
		a := []float64{10, 12, 11, 13, 9}
		b := []float64{20, 22, 19, 21, 20}

		forward := CompareSeries(a, [][]float64{b}, DefaultAlpha)
		reverse := CompareSeries(b, [][]float64{a}, DefaultAlpha)

		assert.InDelta(t, forward.PValue, reverse.PValue, 1e-12)
		assert.Equal(t, forward.Significant, reverse.Significant)
		assert.InDelta(t, -forward.CohensD, reverse.CohensD, 1e-12)
		assert.True(t, forward.PercentChange*reverse.PercentChange < 0,
			"percent change must flip sign when groups swap")
	})

	t.Run("multiple baseline periods pool into one sample", func(t *testing.T) {
		target := []float64{10, 12, 11, 13, 9}
		b2019 := []float64{20, 22, 19, 21, 20}
		b2020 := []float64{18, 21, 20, 22, 19}

		v := CompareSeries(target, [][]float64{b2019, b2020}, DefaultAlpha)

		assert.Equal(t, 10, v.NBaseline, "baselines must pool, not average per-period tests")
		assert.True(t, v.Significant)
	})

	t.Run("all verdict numbers are finite", func(t *testing.T) {
		v := CompareSeries([]float64{10, 12, 11}, [][]float64{{10.5, 11.5, 12}}, DefaultAlpha)
		for name, value := range map[string]float64{
			"p_value":        v.PValue,
			"t_statistic":    v.TStatistic,
			"target_mean":    v.TargetMean,
			"baseline_mean":  v.BaselineMean,
			"target_std":     v.TargetStd,
			"baseline_std":   v.BaselineStd,
			"percent_change": v.PercentChange,
			"cohens_d":       v.CohensD,
		} {
			assert.False(t, math.IsNaN(value) || math.IsInf(value, 0), "%s must be finite", name)
		}
	})
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		name        string
		significant bool
		p           float64
		d           float64
		want        string
	}{
		{"highly significant large", true, 0.0004, -6.8, "highly significant (p < 0.001), large effect size (d=-6.80)"},
		{"very significant medium", true, 0.004, 0.6, "very significant (p < 0.01), medium effect size (d=0.60)"},
		{"significant small", true, 0.03, 0.3, "significant (p = 0.030), small effect size (d=0.30)"},
		{"not significant negligible", false, 0.4, 0.1, "not statistically significant (p = 0.400), negligible effect size (d=0.10)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, interpret(tt.significant, tt.p, tt.d))
		})
	}
}

func TestWelchTTest(t *testing.T) {
	// Same-variance case agrees with the classic pooled test to within
	// rounding: equal group sizes and spreads make Welch and Student match.
	tstat, p := welchTTest(11, 20.4, math.Sqrt(2.5), math.Sqrt(1.3), 5, 5)
	require.False(t, math.IsNaN(p))
	assert.InDelta(t, -10.78, tstat, 0.01)
	assert.Less(t, p, 1e-4)
}
