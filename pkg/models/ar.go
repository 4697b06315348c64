package models

import (
	"fmt"

	"github.com/quantaleaf/demandcast/pkg/features"
)

// arWindow is the fixed trailing-window length the autoregressive family
// consumes. The recursive loop slides this window by one day per step.
const arWindow = 14

// ARModel is a linear autoregression over a fixed trailing window of the
// series itself, the stand-in for recursive sequence models that take a raw
// window rather than engineered features.
type ARModel struct {
	Window   int
	Weights  []float64 // one per window position, bias last
	Residual float64
}

func (m *ARModel) Name() string { return TypeAR }

func (m *ARModel) WindowSize() int { return m.Window }

func (m *ARModel) ResidualStd() float64 { return m.Residual }

// PredictWindow maps one trailing window to the next value.
func (m *ARModel) PredictWindow(window []float64) (float64, error) {
	if len(window) != m.Window {
		return 0, fmt.Errorf("window length mismatch: got %d, trained on %d", len(window), m.Window)
	}
	out := m.Weights[len(m.Weights)-1]
	for i, v := range window {
		out += m.Weights[i] * v
	}
	return out, nil
}

// trainAR fits the window weights by ridge least squares over every sliding
// window in the gap-filled daily series.
func trainAR(history features.Series, tuning bool) (*ARModel, Accuracy, error) {
	daily := features.FillDaily(history)
	values := daily.Values()
	if len(values) < arWindow+7 {
		return nil, Accuracy{}, fmt.Errorf("need at least %d days of history, have %d", arWindow+7, len(values))
	}

	var X [][]float64
	var y []float64
	for t := arWindow; t < len(values); t++ {
		window := make([]float64, arWindow)
		copy(window, values[t-arWindow:t])
		X = append(X, window)
		y = append(y, values[t])
	}

	lambda := 1.0
	if tuning {
		lambda = tuneLambda(X, y)
	}

	weights, err := ridgeSolve(X, y, lambda)
	if err != nil {
		return nil, Accuracy{}, err
	}

	m := &ARModel{Window: arWindow, Weights: weights}
	preds := make([]float64, len(X))
	for i, row := range X {
		preds[i], _ = m.PredictWindow(row)
	}
	m.Residual = residualStd(y, preds)
	return m, accuracy(y, preds), nil
}
