package models

import (
	"fmt"

	"github.com/quantaleaf/demandcast/pkg/features"
)

// Train fits a model of the requested family on the history and returns the
// artifact with its in-sample accuracy. The recipe applies to the
// feature-driven families; window and range families derive their inputs
// from the series directly. tuning enables the family's hyperparameter
// search.
func Train(modelType string, history features.Series, recipe features.Recipe, tuning bool) (Artifact, Accuracy, error) {
	switch modelType {
	case TypeSmoothing:
		return trainSmoothing(history, recipe)
	case TypeRidge:
		return trainRidge(history, recipe, tuning)
	case TypeHoltWinters:
		return trainHoltWinters(history, tuning)
	case TypeAR:
		return trainAR(history, tuning)
	default:
		return nil, Accuracy{}, fmt.Errorf("unknown model type %q", modelType)
	}
}

// KnownType reports whether the model type has a built-in trainer.
func KnownType(modelType string) bool {
	switch modelType {
	case TypeSmoothing, TypeRidge, TypeHoltWinters, TypeAR:
		return true
	}
	return false
}
