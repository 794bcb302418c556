package ml

import "math"

// ReLU applies max(x, 0) in place.
func ReLU(x []float64) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}

// ReLUPrime zeroes grad where the activation output was not positive.
func ReLUPrime(out, grad []float64) {
	for i, v := range out {
		if v <= 0 {
			grad[i] = 0
		}
	}
}

// Tanh applies tanh in place.
func Tanh(x []float64) {
	for i, v := range x {
		x[i] = math.Tanh(v)
	}
}

func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
