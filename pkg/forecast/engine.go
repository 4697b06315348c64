// Package forecast produces day-by-day demand forecasts from trained model
// artifacts and orchestrates batch requests against the model cache.
package forecast

import (
	"log/slog"
	"math"
	"time"

	"github.com/quantaleaf/demandcast/pkg/features"
	"github.com/quantaleaf/demandcast/pkg/intermittency"
	"github.com/quantaleaf/demandcast/pkg/models"
)

// zScore95 converts a residual standard deviation into a 95% interval margin.
const zScore95 = 1.96

// Result is one item's forecast. Dates, Values, Lower and Upper always have
// equal length; the length is the requested horizon unless generation was
// aborted early, in which case Partial is set and the caller decides whether
// a shorter forecast is acceptable.
type Result struct {
	Item       string      `json:"item"`
	Dates      []time.Time `json:"dates"`
	Values     []float64   `json:"values"`
	Lower      []float64   `json:"lower"`
	Upper      []float64   `json:"upper"`
	Partial    bool        `json:"partial,omitempty"`
	Suppressed int         `json:"suppressed,omitempty"`
}

// Engine rolls a trained point-in-time model forward day by day, regenerating
// features from its own prior predictions and applying the intermittency
// policy derived from the item's history.
type Engine struct {
	recipe features.Recipe
	logger *slog.Logger
}

// NewEngine creates an engine using the given feature recipe.
func NewEngine(recipe features.Recipe, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{recipe: recipe, logger: logger}
}

// Forecast generates up to horizon daily predictions from the artifact.
//
// The anchor is the day the forecast starts after; the zero time means "last
// date in the history". Callers forecasting many items against one shared
// calendar pass a common anchor so items with different last-observed dates
// stay aligned.
//
// Feature-construction failures stop generation early and return the steps
// produced so far as a partial result; they are never surfaced as errors.
func (e *Engine) Forecast(item string, artifact models.Artifact, history features.Series, horizon int, anchor time.Time) Result {
	daily := features.FillDaily(history)
	values := daily.Values()
	policy := intermittency.Analyze(values)

	if anchor.IsZero() {
		anchor = daily.LastDate()
	}

	res := Result{
		Item:   item,
		Dates:  make([]time.Time, 0, horizon),
		Values: make([]float64, 0, horizon),
		Lower:  make([]float64, 0, horizon),
		Upper:  make([]float64, 0, horizon),
	}
	if horizon <= 0 {
		return res
	}

	// All-zero history forces a zero forecast regardless of model output.
	if policy.ForceZero {
		for step := 1; step <= horizon; step++ {
			res.append(anchor.AddDate(0, 0, step), 0, 0, 0)
		}
		res.Suppressed = horizon
		return res
	}

	switch m := artifact.(type) {
	case models.RangeForecaster:
		e.forecastRange(&res, m, policy, anchor, horizon)
	case models.PointPredictor:
		e.forecastRecursive(&res, m, policy, values, anchor, horizon)
	case models.WindowPredictor:
		e.forecastWindow(&res, m, policy, values, anchor, horizon)
	default:
		e.logger.Error("unsupported model artifact", "item", item, "model", artifact.Name())
		res.Partial = true
	}

	if len(res.Values) < horizon {
		res.Partial = true
	}
	return res
}

// forecastRange serves families with native prediction intervals: one call
// for the whole horizon, suppression applied per day on top.
func (e *Engine) forecastRange(res *Result, m models.RangeForecaster, policy intermittency.Policy, anchor time.Time, horizon int) {
	vals, lower, upper, err := m.ForecastRange(horizon)
	if err != nil {
		e.logger.Warn("range forecast failed, returning partial result", "item", res.Item, "model", m.Name(), "error", err)
		return
	}

	daysSinceOrder := 0
	for i := 0; i < horizon; i++ {
		daysSinceOrder++
		adjusted, suppressed := policy.Apply(math.Max(0, vals[i]), daysSinceOrder)

		date := anchor.AddDate(0, 0, i+1)
		if adjusted == 0 {
			res.append(date, 0, 0, 0)
		} else {
			res.append(date, adjusted, math.Max(0, lower[i]), math.Max(adjusted, upper[i]))
		}
		if suppressed {
			res.Suppressed++
		}
		if adjusted > 0 {
			daysSinceOrder = 0
		}
	}
}

// forecastRecursive is the general case: rebuild the feature vector from the
// working history (observations plus prior predictions), predict, suppress,
// append, repeat.
func (e *Engine) forecastRecursive(res *Result, m models.PointPredictor, policy intermittency.Policy, values []float64, anchor time.Time, horizon int) {
	working := append(make([]float64, 0, len(values)+horizon), values...)
	margin := zScore95 * m.ResidualStd()

	daysSinceOrder := 0
	for step := 1; step <= horizon; step++ {
		date := anchor.AddDate(0, 0, step)

		vec, err := e.recipe.Next(working, date)
		if err != nil {
			e.logger.Warn("feature construction failed, stopping forecast early",
				"item", res.Item, "step", step, "error", err)
			return
		}
		raw, err := m.Predict(vec)
		if err != nil {
			e.logger.Warn("prediction failed, stopping forecast early",
				"item", res.Item, "step", step, "error", err)
			return
		}

		daysSinceOrder++
		adjusted, suppressed := policy.Apply(math.Max(0, raw), daysSinceOrder)

		if adjusted == 0 {
			res.append(date, 0, 0, 0)
		} else {
			res.append(date, adjusted, math.Max(0, adjusted-margin), adjusted+margin)
		}
		if suppressed {
			res.Suppressed++
		}
		if adjusted > 0 {
			daysSinceOrder = 0
		}

		working = append(working, adjusted)
	}
}

// forecastWindow serves fixed-window families: the input is the trailing
// window of the working history itself, sliding one day per step. A history
// shorter than the window is padded with leading zero-demand days.
func (e *Engine) forecastWindow(res *Result, m models.WindowPredictor, policy intermittency.Policy, values []float64, anchor time.Time, horizon int) {
	size := m.WindowSize()
	window := make([]float64, 0, size)
	if len(values) < size {
		window = append(window, make([]float64, size-len(values))...)
		window = append(window, values...)
	} else {
		window = append(window, values[len(values)-size:]...)
	}
	margin := zScore95 * m.ResidualStd()

	daysSinceOrder := 0
	for step := 1; step <= horizon; step++ {
		raw, err := m.PredictWindow(window)
		if err != nil {
			e.logger.Warn("window prediction failed, stopping forecast early",
				"item", res.Item, "step", step, "error", err)
			return
		}

		daysSinceOrder++
		adjusted, suppressed := policy.Apply(math.Max(0, raw), daysSinceOrder)

		date := anchor.AddDate(0, 0, step)
		if adjusted == 0 {
			res.append(date, 0, 0, 0)
		} else {
			res.append(date, adjusted, math.Max(0, adjusted-margin), adjusted+margin)
		}
		if suppressed {
			res.Suppressed++
		}
		if adjusted > 0 {
			daysSinceOrder = 0
		}

		window = append(window[1:], adjusted)
	}
}

func (r *Result) append(date time.Time, value, lower, upper float64) {
	r.Dates = append(r.Dates, date)
	r.Values = append(r.Values, value)
	r.Lower = append(r.Lower, lower)
	r.Upper = append(r.Upper, upper)
}
