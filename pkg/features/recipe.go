package features

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Recipe describes how feature vectors are built from a demand series. The
// same recipe must be used at training time and at forecast time; the
// canonical column order is whatever Names returns.
type Recipe struct {
	// Lags are the fixed day offsets fed back as inputs.
	Lags []int
	// Calendar adds day-of-week, day-of-month and month components.
	Calendar bool
}

// DefaultRecipe is the standard demand recipe: lags at 1/7/14/30 days,
// 7- and 30-day rolling means, 7-day rolling std, trend, momentum, and
// calendar features.
func DefaultRecipe() Recipe {
	return Recipe{Lags: []int{1, 7, 14, 30}, Calendar: true}
}

// Names returns the feature columns in vector order.
func (r Recipe) Names() []string {
	names := make([]string, 0, len(r.Lags)+8)
	for _, lag := range r.Lags {
		names = append(names, "lag_"+strconv.Itoa(lag))
	}
	names = append(names, "ma_7", "ma_30", "std_7", "trend_7", "momentum")
	if r.Calendar {
		names = append(names, "day_of_week", "day_of_month", "month")
	}
	return names
}

// Next builds the feature vector for the day immediately after the working
// history. history holds observed values plus any predictions already
// appended by the recursive loop; date is the calendar day being predicted.
//
// Lags reaching past the start of the history borrow the earliest value, and
// rolling windows shrink to the data available, but a history too short to
// anchor any feature at all is an error: the caller treats that as the end of
// usable horizon, not a fault.
func (r Recipe) Next(history []float64, date time.Time) ([]float64, error) {
	n := len(history)
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 history points to build features, have %d", n)
	}

	vec := make([]float64, 0, len(r.Lags)+8)
	for _, lag := range r.Lags {
		idx := n - lag
		if idx < 0 {
			idx = 0
		}
		vec = append(vec, history[idx])
	}

	ma7 := mean(tail(history, 7))
	ma30 := mean(tail(history, 30))
	vec = append(vec,
		ma7,
		ma30,
		std(tail(history, 7)),
		history[n-1]-ma7,
		history[n-1]-history[n-2],
	)

	if r.Calendar {
		vec = append(vec,
			float64(date.Weekday()),
			float64(date.Day()),
			float64(date.Month()),
		)
	}
	return vec, nil
}

func tail(values []float64, n int) []float64 {
	if len(values) > n {
		return values[len(values)-n:]
	}
	return values
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func std(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}
