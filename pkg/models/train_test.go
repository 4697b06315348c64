package models

import (
	"math"
	"testing"
	"time"

	"github.com/quantaleaf/demandcast/pkg/features"
)

// dailySeries builds n consecutive days starting 2025-01-01 with values from
// fn(day index).
func dailySeries(n int, fn func(i int) float64) features.Series {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(features.Series, n)
	for i := range s {
		s[i] = features.Point{Date: start.AddDate(0, 0, i), Value: fn(i)}
	}
	return s
}

func TestTrain_Families(t *testing.T) {
	history := dailySeries(90, func(i int) float64 {
		return 20 + 5*math.Sin(2*math.Pi*float64(i)/7) + float64(i%3)
	})
	recipe := features.DefaultRecipe()

	for _, modelType := range []string{TypeSmoothing, TypeRidge, TypeHoltWinters, TypeAR} {
		t.Run(modelType, func(t *testing.T) {
			artifact, acc, err := Train(modelType, history, recipe, false)
			if err != nil {
				t.Fatalf("Train(%s) error = %v", modelType, err)
			}
			if artifact.Name() != modelType {
				t.Errorf("Name() = %q, want %q", artifact.Name(), modelType)
			}
			if acc.RMSE <= 0 {
				t.Errorf("RMSE = %v, want > 0 on a noisy series", acc.RMSE)
			}
			if acc.MAE <= 0 || acc.MAPE <= 0 {
				t.Errorf("accuracy = %+v, want all metrics populated", acc)
			}
		})
	}
}

func TestTrain_UnknownType(t *testing.T) {
	_, _, err := Train("prophet9000", dailySeries(30, func(int) float64 { return 1 }), features.DefaultRecipe(), false)
	if err == nil {
		t.Fatal("expected an error for an unknown model type")
	}
	if KnownType("prophet9000") {
		t.Error("KnownType(unknown) = true")
	}
	if !KnownType(TypeRidge) {
		t.Error("KnownType(ridge) = false")
	}
}

func TestTrain_InsufficientHistory(t *testing.T) {
	short := dailySeries(5, func(int) float64 { return 3 })
	for _, modelType := range []string{TypeRidge, TypeHoltWinters, TypeAR} {
		if _, _, err := Train(modelType, short, features.DefaultRecipe(), false); err == nil {
			t.Errorf("Train(%s) with 5 days expected an error", modelType)
		}
	}
}

func TestRidge_LearnsLevel(t *testing.T) {
	// A flat series should be predicted close to its level.
	history := dailySeries(60, func(int) float64 { return 50 })
	artifact, _, err := Train(TypeRidge, history, features.DefaultRecipe(), false)
	if err != nil {
		t.Fatal(err)
	}

	model := artifact.(*RidgeModel)
	vec, err := features.DefaultRecipe().Next(history.Values(), history.LastDate().AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	pred, err := model.Predict(vec)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pred-50) > 5 {
		t.Errorf("Predict() on flat series = %v, want ~50", pred)
	}
}

func TestRidge_FeatureCountMismatch(t *testing.T) {
	history := dailySeries(60, func(i int) float64 { return float64(i) })
	artifact, _, err := Train(TypeRidge, history, features.DefaultRecipe(), false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := artifact.(*RidgeModel).Predict([]float64{1, 2, 3}); err == nil {
		t.Error("Predict() with wrong vector length expected an error")
	}
}

func TestHoltWinters_ForecastRange(t *testing.T) {
	history := dailySeries(56, func(i int) float64 {
		return 30 + 10*math.Sin(2*math.Pi*float64(i)/7)
	})
	artifact, _, err := Train(TypeHoltWinters, history, features.DefaultRecipe(), false)
	if err != nil {
		t.Fatal(err)
	}

	values, lower, upper, err := artifact.(*HoltWintersModel).ForecastRange(14)
	if err != nil {
		t.Fatalf("ForecastRange() error = %v", err)
	}
	if len(values) != 14 || len(lower) != 14 || len(upper) != 14 {
		t.Fatalf("lengths = %d/%d/%d, want 14", len(values), len(lower), len(upper))
	}
	for i := range values {
		if values[i] < 0 || lower[i] < 0 {
			t.Errorf("step %d: negative output (value %v, lower %v)", i, values[i], lower[i])
		}
		if lower[i] > values[i] || values[i] > upper[i] {
			t.Errorf("step %d: bounds out of order: %v <= %v <= %v", i, lower[i], values[i], upper[i])
		}
	}
	// Intervals widen with distance.
	if upper[13]-lower[13] < upper[0]-lower[0] {
		t.Error("interval at step 14 narrower than at step 1")
	}
}

func TestAR_WindowContract(t *testing.T) {
	history := dailySeries(60, func(i int) float64 { return 10 + float64(i%7) })
	artifact, _, err := Train(TypeAR, history, features.DefaultRecipe(), false)
	if err != nil {
		t.Fatal(err)
	}
	model := artifact.(*ARModel)

	if model.WindowSize() != arWindow {
		t.Errorf("WindowSize() = %d, want %d", model.WindowSize(), arWindow)
	}
	if _, err := model.PredictWindow(make([]float64, 3)); err == nil {
		t.Error("PredictWindow() with short window expected an error")
	}
	if _, err := model.PredictWindow(make([]float64, arWindow)); err != nil {
		t.Errorf("PredictWindow() error = %v", err)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	history := dailySeries(60, func(i int) float64 { return 15 + float64(i%5) })
	recipe := features.DefaultRecipe()

	for _, modelType := range []string{TypeSmoothing, TypeRidge, TypeHoltWinters, TypeAR} {
		t.Run(modelType, func(t *testing.T) {
			artifact, _, err := Train(modelType, history, recipe, false)
			if err != nil {
				t.Fatal(err)
			}

			blob, err := Encode(artifact)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			decoded, err := Decode(blob)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if decoded.Name() != modelType {
				t.Errorf("decoded Name() = %q, want %q", decoded.Name(), modelType)
			}

			// Decoded point predictors must still predict.
			if pp, ok := decoded.(PointPredictor); ok {
				vec, err := recipe.Next(history.Values(), history.LastDate().AddDate(0, 0, 1))
				if err != nil {
					t.Fatal(err)
				}
				if _, err := pp.Predict(vec); err != nil {
					t.Errorf("decoded Predict() error = %v", err)
				}
			}
		})
	}
}

func TestDecode_CorruptBlob(t *testing.T) {
	if _, err := Decode([]byte("not a gob payload")); err == nil {
		t.Error("Decode(garbage) expected an error")
	}
}
