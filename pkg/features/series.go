// Package features turns daily sales history into the feature vectors the
// forecasting models consume: fixed lag offsets, rolling statistics, trend
// and momentum, and calendar components.
package features

import (
	"sort"
	"time"
)

// Point is one observed day of demand.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is a date-ordered sequence of daily demand points. Series are owned
// by the caller; nothing in this package mutates one in place.
type Series []Point

// Values extracts the quantity column.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// LastDate returns the date of the final point, or the zero time for an
// empty series.
func (s Series) LastDate() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Date
}

// FillDaily returns a copy of the series with exactly one point per calendar
// day: dates truncated to midnight UTC, duplicate days summed, and gaps
// filled with zero-demand points. Models assume this shape before feature
// creation.
func FillDaily(s Series) Series {
	if len(s) == 0 {
		return Series{}
	}

	byDay := make(map[time.Time]float64, len(s))
	for _, p := range s {
		byDay[day(p.Date)] += p.Value
	}

	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	first, last := days[0], days[len(days)-1]
	out := make(Series, 0, int(last.Sub(first).Hours()/24)+1)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, Point{Date: d, Value: byDay[d]})
	}
	return out
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
