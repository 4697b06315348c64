// Package intermittency derives demand-suppression policies for zero-inflated
// sales series.
//
// Recursive forecasting on intermittent demand tends to smear small positive
// noise across every day instead of reproducing the bursty true pattern. The
// policy here decides, per forecast day, whether a raw prediction should be
// suppressed to zero. The tiered thresholds are empirical calibrations traded
// against bias, not a principled distributional model.
package intermittency

// Tier classifies a series by its fraction of zero-valued observations.
type Tier int

const (
	// Regular demand: under 30% zeros, predictions pass through.
	Regular Tier = iota
	// Mild sparsity: 30-70% zeros.
	Mild
	// Moderate sparsity: 70-90% zeros.
	Moderate
	// VerySparse: 90% zeros or more.
	VerySparse
)

// recentWindow bounds the lookback used for the empirical order gap.
const recentWindow = 14

// Policy is the suppression decision function derived from one historical
// series. ForceZero marks the all-zero-history case, where every prediction
// is zeroed regardless of model output.
type Policy struct {
	ForceZero bool
	Tier      Tier

	ZeroRatio   float64
	MeanNonzero float64
	MinNonzero  float64
	AvgGapDays  float64
	Threshold   float64
}

// Analyze inspects a historical series and derives its suppression policy.
// An empty series behaves like an all-zero one.
func Analyze(values []float64) Policy {
	if len(values) == 0 {
		return Policy{ForceZero: true, ZeroRatio: 1}
	}

	var zeros int
	var sum, min float64
	var nonzero int
	for _, v := range values {
		if v == 0 {
			zeros++
			continue
		}
		nonzero++
		sum += v
		if nonzero == 1 || v < min {
			min = v
		}
	}

	ratio := float64(zeros) / float64(len(values))
	if nonzero == 0 {
		return Policy{ForceZero: true, ZeroRatio: 1}
	}

	p := Policy{
		ZeroRatio:   ratio,
		MeanNonzero: sum / float64(nonzero),
		MinNonzero:  min,
		AvgGapDays:  averageGap(values, ratio),
	}

	switch {
	case ratio >= 0.9:
		p.Tier = VerySparse
		p.Threshold = 0.2 * p.MinNonzero
	case ratio >= 0.7:
		p.Tier = Moderate
		p.Threshold = 0.3 * p.MinNonzero
	case ratio >= 0.3:
		p.Tier = Mild
		p.Threshold = 0.4 * p.MinNonzero
	default:
		p.Tier = Regular
	}
	return p
}

// averageGap measures the mean spacing in days between consecutive non-zero
// observations within the most recent window. With fewer than two recent
// orders it falls back to the gap implied by the zero ratio.
func averageGap(values []float64, zeroRatio float64) float64 {
	start := 0
	if len(values) > recentWindow {
		start = len(values) - recentWindow
	}

	last := -1
	var total float64
	var gaps int
	for i := start; i < len(values); i++ {
		if values[i] <= 0 {
			continue
		}
		if last >= 0 {
			total += float64(i - last)
			gaps++
		}
		last = i
	}

	if gaps > 0 {
		return total / float64(gaps)
	}
	if zeroRatio < 1 {
		return 1 / (1 - zeroRatio)
	}
	return 7
}

// Apply runs a raw model prediction through the policy.
// daysSinceLastOrder counts days since the last non-suppressed prediction in
// the current forecast run. Returns the adjusted prediction (floored at zero)
// and whether suppression fired.
func (p Policy) Apply(raw float64, daysSinceLastOrder int) (float64, bool) {
	if p.ForceZero {
		return 0, true
	}
	if raw < 0 {
		raw = 0
	}

	switch p.Tier {
	case VerySparse:
		// Threshold filter plus an independent mean-relative trigger.
		if raw < p.Threshold || raw < 0.3*p.MeanNonzero {
			return 0, true
		}
	case Moderate:
		// Too soon after the last order: demand only passes when it clearly
		// exceeds the typical magnitude.
		if float64(daysSinceLastOrder) < 0.7*p.AvgGapDays && raw < 0.5*p.MeanNonzero {
			return 0, true
		}
		if raw < p.Threshold {
			return 0, true
		}
	case Mild:
		if raw > 0 && raw < p.Threshold {
			return 0, true
		}
	case Regular:
		// Raw predictions pass through, floored at zero.
	}
	return raw, false
}
