package models

import (
	"fmt"

	"github.com/quantaleaf/demandcast/pkg/features"
)

// SmoothingModel blends the short and long rolling means of the working
// history, with an optional day-of-week seasonality adjustment learned at
// training time. It needs no iterative fitting and serves as the baseline
// family.
type SmoothingModel struct {
	Features []string
	// Seasonality maps weekday (0=Sunday) to the mean demand observed on
	// that weekday, present only where at least two observations existed.
	Seasonality map[int]float64
	Residual    float64

	shortIdx, longIdx, weekdayIdx int
	indexed                       bool
}

func (m *SmoothingModel) Name() string { return TypeSmoothing }

func (m *SmoothingModel) FeatureNames() []string { return m.Features }

func (m *SmoothingModel) ResidualStd() float64 { return m.Residual }

// Predict blends 0.7*ma_7 + 0.3*ma_30, then pulls 20% toward the weekday
// mean when one is known.
func (m *SmoothingModel) Predict(vec []float64) (float64, error) {
	if len(vec) != len(m.Features) {
		return 0, fmt.Errorf("feature count mismatch: got %d, trained on %d", len(vec), len(m.Features))
	}
	if err := m.resolveIndices(); err != nil {
		return 0, err
	}

	base := 0.7*vec[m.shortIdx] + 0.3*vec[m.longIdx]
	if base < 0 {
		base = 0
	}

	if m.weekdayIdx >= 0 && len(m.Seasonality) > 0 {
		if seasonal, ok := m.Seasonality[int(vec[m.weekdayIdx])]; ok {
			base = 0.8*base + 0.2*seasonal
		}
	}
	return base, nil
}

// resolveIndices locates the columns the blend reads. Cached across calls;
// gob decoding resets the cache since the fields are unexported.
func (m *SmoothingModel) resolveIndices() error {
	if m.indexed {
		return nil
	}
	m.shortIdx, m.longIdx, m.weekdayIdx = -1, -1, -1
	for i, name := range m.Features {
		switch name {
		case "ma_7":
			m.shortIdx = i
		case "ma_30":
			m.longIdx = i
		case "day_of_week":
			m.weekdayIdx = i
		}
	}
	if m.shortIdx < 0 || m.longIdx < 0 {
		return fmt.Errorf("recipe lacks the rolling means the smoothing model needs")
	}
	m.indexed = true
	return nil
}

// trainSmoothing learns weekday seasonality and the in-sample residual from
// a gap-filled daily series.
func trainSmoothing(history features.Series, recipe features.Recipe) (*SmoothingModel, Accuracy, error) {
	daily := features.FillDaily(history)
	if len(daily) < 3 {
		return nil, Accuracy{}, fmt.Errorf("need at least 3 days of history, have %d", len(daily))
	}

	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, p := range daily {
		wd := int(p.Date.Weekday())
		sums[wd] += p.Value
		counts[wd]++
	}
	seasonality := make(map[int]float64)
	for wd, count := range counts {
		if count >= 2 {
			seasonality[wd] = sums[wd] / float64(count)
		}
	}

	m := &SmoothingModel{
		Features:    recipe.Names(),
		Seasonality: seasonality,
	}

	values := daily.Values()
	var y, preds []float64
	for t := 2; t < len(values); t++ {
		vec, err := recipe.Next(values[:t], daily[t].Date)
		if err != nil {
			return nil, Accuracy{}, err
		}
		pred, err := m.Predict(vec)
		if err != nil {
			return nil, Accuracy{}, err
		}
		y = append(y, values[t])
		preds = append(preds, pred)
	}

	m.Residual = residualStd(y, preds)
	return m, accuracy(y, preds), nil
}
