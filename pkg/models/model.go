// Package models provides the trained-model artifacts behind the forecast
// engine: a smoothing baseline, a ridge regression over the feature recipe,
// Holt-Winters exponential smoothing with native intervals, and a
// fixed-window autoregression.
//
// Artifacts are opaque to the model cache; Encode and Decode translate them
// to and from the cached payload bytes.
package models

// Model type identifiers accepted by Train.
const (
	TypeSmoothing   = "smoothing"
	TypeRidge       = "ridge"
	TypeHoltWinters = "holtwinters"
	TypeAR          = "ar"
)

// Artifact is a trained model of any family.
type Artifact interface {
	// Name returns the model family identifier.
	Name() string
}

// PointPredictor produces one prediction per feature vector. The recursive
// forecast loop drives this family step by step, rebuilding features from its
// own prior predictions.
type PointPredictor interface {
	Artifact

	// Predict maps one feature vector to a raw demand prediction. The vector
	// must match FeatureNames in length and order.
	Predict(features []float64) (float64, error)

	// FeatureNames is the column order the model was trained on.
	FeatureNames() []string

	// ResidualStd is the standard deviation of in-sample training residuals,
	// used to derive confidence bounds for families without native intervals.
	ResidualStd() float64
}

// RangeForecaster produces a whole horizon in one call with native
// prediction intervals (the ARIMA/Prophet analog).
type RangeForecaster interface {
	Artifact

	// ForecastRange returns point forecasts and interval bounds for the next
	// steps days. All three slices have length steps.
	ForecastRange(steps int) (values, lower, upper []float64, err error)
}

// WindowPredictor consumes a fixed-length trailing window of the series
// itself instead of a feature vector (the recursive sequence-model shape).
type WindowPredictor interface {
	Artifact

	// WindowSize is the exact input window length.
	WindowSize() int

	// PredictWindow maps the trailing window to the next value.
	PredictWindow(window []float64) (float64, error)

	ResidualStd() float64
}

// Accuracy is the in-sample fit summary computed at training time.
type Accuracy struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	MAPE float64 `json:"mape"`
}
