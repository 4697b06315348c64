package models

import (
	"fmt"
	"math"

	"github.com/quantaleaf/demandcast/pkg/features"
)

// hwPeriod is the seasonal period in days. Demand series repeat weekly.
const hwPeriod = 7

// HoltWintersModel is additive triple exponential smoothing fitted on the
// training series. Unlike the point-predictor families it produces the whole
// horizon in one pass, with native prediction intervals that widen with the
// forecast distance.
type HoltWintersModel struct {
	Level     float64
	Trend     float64
	Seasonals []float64
	Alpha     float64
	Beta      float64
	Gamma     float64
	Period    int
	TrainLen  int
	Residual  float64
}

func (m *HoltWintersModel) Name() string { return TypeHoltWinters }

// ForecastRange extrapolates level and trend with the seasonal phase carried
// forward from the end of training. Values and lower bounds never go
// negative; intervals widen with sqrt of the step distance.
func (m *HoltWintersModel) ForecastRange(steps int) (values, lower, upper []float64, err error) {
	if steps <= 0 {
		return nil, nil, nil, fmt.Errorf("steps must be positive, got %d", steps)
	}
	if m.Period <= 0 || len(m.Seasonals) != m.Period {
		return nil, nil, nil, fmt.Errorf("model not fitted")
	}

	values = make([]float64, steps)
	lower = make([]float64, steps)
	upper = make([]float64, steps)
	for h := 0; h < steps; h++ {
		v := m.Level + float64(h+1)*m.Trend + m.Seasonals[(m.TrainLen+h)%m.Period]
		if v < 0 {
			v = 0
		}
		margin := 1.96 * m.Residual * math.Sqrt(float64(h+1))
		values[h] = v
		lower[h] = math.Max(0, v-margin)
		upper[h] = v + margin
	}
	return values, lower, upper, nil
}

// trainHoltWinters fits the smoothing state on a gap-filled daily series.
// Tuning searches a small parameter grid by in-sample SSE; otherwise fixed
// defaults are used.
func trainHoltWinters(history features.Series, tuning bool) (*HoltWintersModel, Accuracy, error) {
	daily := features.FillDaily(history)
	values := daily.Values()
	if len(values) < 2*hwPeriod {
		return nil, Accuracy{}, fmt.Errorf("need at least %d days of history, have %d", 2*hwPeriod, len(values))
	}

	type params struct{ alpha, beta, gamma float64 }
	candidates := []params{{0.3, 0.1, 0.1}}
	if tuning {
		candidates = candidates[:0]
		for _, a := range []float64{0.1, 0.3, 0.5, 0.7} {
			for _, b := range []float64{0.05, 0.1, 0.3} {
				for _, g := range []float64{0.05, 0.1, 0.3} {
					candidates = append(candidates, params{a, b, g})
				}
			}
		}
	}

	var best *HoltWintersModel
	var bestFitted []float64
	bestSSE := math.Inf(1)
	for _, p := range candidates {
		m, fitted := fitHoltWinters(values, p.alpha, p.beta, p.gamma)
		var sse float64
		for i := hwPeriod; i < len(values); i++ {
			d := values[i] - fitted[i]
			sse += d * d
		}
		if sse < bestSSE {
			best, bestFitted, bestSSE = m, fitted, sse
		}
	}

	actual := values[hwPeriod:]
	preds := bestFitted[hwPeriod:]
	best.Residual = residualStd(actual, preds)
	return best, accuracy(actual, preds), nil
}

// fitHoltWinters runs the level/trend/seasonal recursions over the series
// and returns the fitted one-step-ahead values alongside the final state.
func fitHoltWinters(values []float64, alpha, beta, gamma float64) (*HoltWintersModel, []float64) {
	m := hwPeriod

	// Initial level: mean of the first season. Initial trend: average
	// season-over-season change. Initial seasonals: first-season deviations.
	var levelSum float64
	for i := 0; i < m; i++ {
		levelSum += values[i]
	}
	level := levelSum / float64(m)

	var trend float64
	if len(values) >= 2*m {
		for i := 0; i < m; i++ {
			trend += (values[i+m] - values[i]) / float64(m)
		}
		trend /= float64(m)
	}

	seasonals := make([]float64, m)
	for i := 0; i < m; i++ {
		seasonals[i] = values[i] - level
	}

	fitted := make([]float64, len(values))
	for t := 0; t < len(values); t++ {
		idx := t % m
		fitted[t] = level + trend + seasonals[idx]

		prevLevel := level
		level = alpha*(values[t]-seasonals[idx]) + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
		seasonals[idx] = gamma*(values[t]-level) + (1-gamma)*seasonals[idx]
	}

	return &HoltWintersModel{
		Level:     level,
		Trend:     trend,
		Seasonals: seasonals,
		Alpha:     alpha,
		Beta:      beta,
		Gamma:     gamma,
		Period:    m,
		TrainLen:  len(values),
	}, fitted
}
