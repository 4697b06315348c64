package models

import "math"

// nearZero guards the MAPE denominator on intermittent series.
const nearZero = 1e-6

// accuracy computes MAE / RMSE / MAPE over in-sample predictions. Days with
// (near-)zero actual demand are excluded from MAPE; when every actual is
// near zero, the normalized RMSE stands in so the metric stays meaningful.
func accuracy(actual, predicted []float64) Accuracy {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return Accuracy{}
	}

	var absSum, sqSum float64
	var pctSum float64
	var pctCount int
	var maxActual float64
	for i := range actual {
		diff := predicted[i] - actual[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
		if actual[i] > maxActual {
			maxActual = actual[i]
		}
		if math.Abs(actual[i]) > nearZero {
			pctSum += math.Abs(diff / actual[i])
			pctCount++
		}
	}

	n := float64(len(actual))
	acc := Accuracy{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
	}
	if pctCount > 0 {
		acc.MAPE = 100 * pctSum / float64(pctCount)
	} else if maxActual > 0 {
		acc.MAPE = 100 * acc.RMSE / maxActual
	}
	return acc
}

// residualStd is the standard deviation of in-sample residuals, the basis
// for confidence bounds in families without native intervals.
func residualStd(actual, predicted []float64) float64 {
	if len(actual) < 2 || len(actual) != len(predicted) {
		return 0
	}
	residuals := make([]float64, len(actual))
	var sum float64
	for i := range actual {
		residuals[i] = actual[i] - predicted[i]
		sum += residuals[i]
	}
	m := sum / float64(len(residuals))
	var sq float64
	for _, r := range residuals {
		sq += (r - m) * (r - m)
	}
	return math.Sqrt(sq / float64(len(residuals)))
}
