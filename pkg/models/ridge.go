package models

import (
	"fmt"
	"math"

	"github.com/quantaleaf/demandcast/pkg/features"
)

// ridgeMinPoints is the minimum daily history required to fit the regression.
const ridgeMinPoints = 14

// RidgeModel is an L2-regularized linear regression over the feature recipe,
// with a standard scaler fitted alongside. The last weight is the bias term
// applied after scaling.
type RidgeModel struct {
	Features []string
	Weights  []float64
	Scaler   *Scaler
	Lambda   float64
	Residual float64
}

func (m *RidgeModel) Name() string { return TypeRidge }

func (m *RidgeModel) FeatureNames() []string { return m.Features }

func (m *RidgeModel) ResidualStd() float64 { return m.Residual }

// Predict scales the vector and applies the linear weights.
func (m *RidgeModel) Predict(vec []float64) (float64, error) {
	if len(vec) != len(m.Features) {
		return 0, fmt.Errorf("feature count mismatch: got %d, trained on %d", len(vec), len(m.Features))
	}
	scaled, err := m.Scaler.Transform(vec)
	if err != nil {
		return 0, err
	}
	out := m.Weights[len(m.Weights)-1] // bias
	for j, v := range scaled {
		out += m.Weights[j] * v
	}
	return out, nil
}

// trainRidge fits the regression on a gap-filled daily series. With tuning
// enabled the regularization strength is chosen on a trailing holdout split;
// otherwise a fixed default is used.
func trainRidge(history features.Series, recipe features.Recipe, tuning bool) (*RidgeModel, Accuracy, error) {
	daily := features.FillDaily(history)
	if len(daily) < ridgeMinPoints {
		return nil, Accuracy{}, fmt.Errorf("need at least %d days of history, have %d", ridgeMinPoints, len(daily))
	}

	X, y, err := designMatrix(daily, recipe)
	if err != nil {
		return nil, Accuracy{}, err
	}

	lambda := 1.0
	if tuning {
		lambda = tuneLambda(X, y)
	}

	scaler := FitScaler(X)
	scaled := make([][]float64, len(X))
	for i, row := range X {
		scaled[i], _ = scaler.Transform(row)
	}

	weights, err := ridgeSolve(scaled, y, lambda)
	if err != nil {
		return nil, Accuracy{}, err
	}

	m := &RidgeModel{
		Features: recipe.Names(),
		Weights:  weights,
		Scaler:   scaler,
		Lambda:   lambda,
	}

	preds := make([]float64, len(X))
	for i, row := range X {
		preds[i], _ = m.Predict(row)
	}
	m.Residual = residualStd(y, preds)
	return m, accuracy(y, preds), nil
}

// designMatrix builds one (features, target) row per day, each row's features
// computed only from the days before it.
func designMatrix(daily features.Series, recipe features.Recipe) ([][]float64, []float64, error) {
	values := daily.Values()

	var X [][]float64
	var y []float64
	for t := 2; t < len(values); t++ {
		vec, err := recipe.Next(values[:t], daily[t].Date)
		if err != nil {
			return nil, nil, err
		}
		X = append(X, vec)
		y = append(y, values[t])
	}
	if len(X) == 0 {
		return nil, nil, fmt.Errorf("history too short to build a training set")
	}
	return X, y, nil
}

// tuneLambda picks the regularization strength with the lowest RMSE on the
// trailing 20% of the training rows.
func tuneLambda(X [][]float64, y []float64) float64 {
	split := len(X) * 4 / 5
	if split < 1 || split >= len(X) {
		return 1.0
	}
	trainX, trainY := X[:split], y[:split]
	testX, testY := X[split:], y[split:]

	best, bestErr := 1.0, math.Inf(1)
	for _, lambda := range []float64{0.01, 0.1, 1, 10} {
		scaler := FitScaler(trainX)
		scaled := make([][]float64, len(trainX))
		for i, row := range trainX {
			scaled[i], _ = scaler.Transform(row)
		}
		weights, err := ridgeSolve(scaled, trainY, lambda)
		if err != nil {
			continue
		}

		var sq float64
		for i, row := range testX {
			s, _ := scaler.Transform(row)
			pred := weights[len(weights)-1]
			for j, v := range s {
				pred += weights[j] * v
			}
			sq += (pred - testY[i]) * (pred - testY[i])
		}
		if rmse := math.Sqrt(sq / float64(len(testX))); rmse < bestErr {
			best, bestErr = lambda, rmse
		}
	}
	return best
}

// ridgeSolve solves (XᵀX + λI)w = Xᵀy over the scaled design matrix with an
// unregularized bias column appended.
func ridgeSolve(X [][]float64, y []float64, lambda float64) ([]float64, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("empty design matrix")
	}
	d := len(X[0]) + 1 // bias

	A := make([][]float64, d)
	b := make([]float64, d)
	for i := range A {
		A[i] = make([]float64, d)
	}

	for r, row := range X {
		full := append(append(make([]float64, 0, d), row...), 1)
		for i := 0; i < d; i++ {
			b[i] += full[i] * y[r]
			for j := 0; j < d; j++ {
				A[i][j] += full[i] * full[j]
			}
		}
	}
	for i := 0; i < d-1; i++ { // bias stays unregularized
		A[i][i] += lambda
	}

	return solveLinear(A, b)
}

// solveLinear is Gaussian elimination with partial pivoting; A and b are
// modified in place.
func solveLinear(A [][]float64, b []float64) ([]float64, error) {
	n := len(A)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(A[r][col]) > math.Abs(A[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(A[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular system at column %d", col)
		}
		A[col], A[pivot] = A[pivot], A[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			f := A[r][col] / A[col][col]
			for c := col; c < n; c++ {
				A[r][c] -= f * A[col][c]
			}
			b[r] -= f * b[col]
		}
	}

	w := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		w[i] = b[i]
		for j := i + 1; j < n; j++ {
			w[i] -= A[i][j] * w[j]
		}
		w[i] /= A[i][i]
	}
	return w, nil
}
