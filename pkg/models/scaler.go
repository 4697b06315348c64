package models

import (
	"fmt"
	"math"
)

// Scaler standardizes feature vectors to zero mean and unit variance using
// statistics captured at training time. Columns with zero variance pass
// through centered only.
type Scaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler computes column statistics over the training design matrix.
func FitScaler(rows [][]float64) *Scaler {
	if len(rows) == 0 {
		return &Scaler{}
	}
	cols := len(rows[0])
	s := &Scaler{
		Mean: make([]float64, cols),
		Std:  make([]float64, cols),
	}

	for _, row := range rows {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= float64(len(rows))
	}

	for _, row := range rows {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Std[j] += d * d
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j] / float64(len(rows)))
	}
	return s
}

// Transform standardizes one vector.
func (s *Scaler) Transform(vec []float64) ([]float64, error) {
	if len(vec) != len(s.Mean) {
		return nil, fmt.Errorf("feature count mismatch: vector has %d, scaler expects %d", len(vec), len(s.Mean))
	}
	out := make([]float64, len(vec))
	for j, v := range vec {
		out[j] = v - s.Mean[j]
		if s.Std[j] > 0 {
			out[j] /= s.Std[j]
		}
	}
	return out, nil
}
