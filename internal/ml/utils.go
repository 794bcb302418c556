package ml

import (
	"fmt"
	"math"
	"math/rand"
)

func InitUniform(rnd *rand.Rand, data []float64, variance float64) {
	var uniformVariance = 1.0 / 12
	var scale = math.Sqrt(variance / uniformVariance)
	for i := range data {
		data[i] = (rnd.Float64() - 0.5) * scale
	}
}

// Snapshot copies parameter values keyed by name.
func Snapshot(params []*Param) map[string][]float64 {
	var result = make(map[string][]float64, len(params))
	for _, p := range params {
		result[p.Name] = append([]float64(nil), p.Data...)
	}
	return result
}

// Restore loads values saved by Snapshot. Every parameter must be present.
func Restore(params []*Param, snapshot map[string][]float64) error {
	for _, p := range params {
		var data, ok = snapshot[p.Name]
		if !ok {
			return fmt.Errorf("parameter %v not found", p.Name)
		}
		if len(data) != len(p.Data) {
			return fmt.Errorf("parameter %v: size %v, want %v", p.Name, len(data), len(p.Data))
		}
		copy(p.Data, data)
	}
	return nil
}

func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
