package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultAlpha is the significance level used when the caller does not
// override it.
const DefaultAlpha = 0.05

// minGroupSamples is the smallest sample size per group for which the
// t-test is attempted. Below it the comparison is ill-conditioned and the
// insufficient-data verdict is returned instead.
const minGroupSamples = 3

// insufficientDataText is the fixed interpretation for verdicts that could
// not be backed by a test.
const insufficientDataText = "Insufficient data for this month for a statistical test."

// Verdict is the structured outcome of comparing a target month's daily
// pollution series against a pooled historical baseline.
type Verdict struct {
	Significant    bool    `json:"significant"`
	PValue         float64 `json:"p_value"`
	TStatistic     float64 `json:"t_statistic"`
	TargetMean     float64 `json:"target_mean"`
	BaselineMean   float64 `json:"baseline_mean"`
	TargetStd      float64 `json:"target_std"`
	BaselineStd    float64 `json:"baseline_std"`
	PercentChange  float64 `json:"percent_change"`
	CohensD        float64 `json:"cohens_d"`
	NTarget        int     `json:"n_target"`
	NBaseline      int     `json:"n_baseline"`
	TargetPeriod   string  `json:"target_period,omitempty"`
	BaselinePeriod string  `json:"baseline_period,omitempty"`
	Interpretation string  `json:"interpretation"`
}

// InsufficientData reports whether the verdict is the insufficient-data
// sentinel rather than a real test result.
func (v Verdict) InsufficientData() bool {
	return v.Interpretation == insufficientDataText
}

// CompareSeries tests whether the target month's daily zonal means differ
// from one or more baseline months' series. All baseline series are pooled
// into a single sample before testing; two baselines of five days each form
// one baseline of ten.
//
// The test is Welch's unequal-variance two-sample t-test with a two-sided
// p-value. Effect size is Cohen's d using the degrees-of-freedom-weighted
// pooled standard deviation, defined as 0 when that pooled deviation is 0.
// Percent change is relative to the baseline mean, defined as 0 when the
// baseline mean is exactly 0.
//
// When either group has fewer than three samples, or any intermediate
// value is non-finite (for example both groups constant, making the
// t-statistic undefined), the insufficient-data verdict (p=1, not
// significant) is returned instead of a partial result.
func CompareSeries(target []float64, baselines [][]float64, alpha float64) Verdict {
	baseline := poolBaselines(baselines)
	nt, nb := len(target), len(baseline)
	if nt < minGroupSamples || nb < minGroupSamples {
		return insufficientVerdict(nt, nb)
	}

	targetMean := stat.Mean(target, nil)
	baselineMean := stat.Mean(baseline, nil)
	targetStd := stat.StdDev(target, nil)
	baselineStd := stat.StdDev(baseline, nil)

	t, p := welchTTest(targetMean, baselineMean, targetStd, baselineStd, nt, nb)

	pooledStd := math.Sqrt(
		(float64(nb-1)*baselineStd*baselineStd + float64(nt-1)*targetStd*targetStd) /
			float64(nb+nt-2))
	d := 0.0
	if pooledStd > 0 {
		d = (targetMean - baselineMean) / pooledStd
	}

	percentChange := 0.0
	if baselineMean != 0 {
		percentChange = (targetMean - baselineMean) / baselineMean * 100
	}

	if !allFinite(t, p, targetMean, baselineMean, targetStd, baselineStd, d, percentChange) {
		return insufficientVerdict(nt, nb)
	}

	significant := p < alpha
	return Verdict{
		Significant:    significant,
		PValue:         p,
		TStatistic:     t,
		TargetMean:     targetMean,
		BaselineMean:   baselineMean,
		TargetStd:      targetStd,
		BaselineStd:    baselineStd,
		PercentChange:  percentChange,
		CohensD:        d,
		NTarget:        nt,
		NBaseline:      nb,
		Interpretation: interpret(significant, p, d),
	}
}

// poolBaselines concatenates all baseline series into one sample in the
// order given.
func poolBaselines(baselines [][]float64) []float64 {
	var n int
	for _, b := range baselines {
		n += len(b)
	}
	pooled := make([]float64, 0, n)
	for _, b := range baselines {
		pooled = append(pooled, b...)
	}
	return pooled
}

// welchTTest returns Welch's t-statistic for the difference of means and
// the two-sided p-value from the Student's t distribution with
// Welch-Satterthwaite degrees of freedom. Zero-variance inputs yield a
// non-finite statistic, which the caller converts into the
// insufficient-data verdict.
func welchTTest(mean1, mean2, std1, std2 float64, n1, n2 int) (t, p float64) {
	v1 := std1 * std1 / float64(n1)
	v2 := std2 * std2 / float64(n2)
	se := math.Sqrt(v1 + v2)
	t = (mean1 - mean2) / se

	df := (v1 + v2) * (v1 + v2) /
		(v1*v1/float64(n1-1) + v2*v2/float64(n2-1))
	if !allFinite(t, df) || df <= 0 {
		return t, math.NaN()
	}

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * (1 - dist.CDF(math.Abs(t)))
	return t, p
}

func insufficientVerdict(nTarget, nBaseline int) Verdict {
	return Verdict{
		Significant:    false,
		PValue:         1.0,
		NTarget:        nTarget,
		NBaseline:      nBaseline,
		Interpretation: insufficientDataText,
	}
}

// interpret renders the human-readable summary: a significance band
// followed by a Cohen's d effect-size band.
func interpret(significant bool, p, d float64) string {
	var sigText string
	switch {
	case significant && p < 0.001:
		sigText = "highly significant (p < 0.001)"
	case significant && p < 0.01:
		sigText = "very significant (p < 0.01)"
	case significant:
		sigText = fmt.Sprintf("significant (p = %.3f)", p)
	default:
		sigText = fmt.Sprintf("not statistically significant (p = %.3f)", p)
	}

	var effectText string
	switch absD := math.Abs(d); {
	case absD < 0.2:
		effectText = "negligible effect size"
	case absD < 0.5:
		effectText = "small effect size"
	case absD < 0.8:
		effectText = "medium effect size"
	default:
		effectText = "large effect size"
	}

	return fmt.Sprintf("%s, %s (d=%.2f)", sigText, effectText, d)
}

func allFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
