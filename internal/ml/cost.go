package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// SoftmaxCrossEntropy returns -sum(target * log_softmax(logits)) and adds
// scale times its gradient with respect to logits into grad.
func SoftmaxCrossEntropy(logits, target, grad []float64, scale float64) float64 {
	var m = floats.Max(logits)
	var sum float64
	for _, v := range logits {
		sum += math.Exp(v - m)
	}
	var logSum = m + math.Log(sum)
	var mass = floats.Sum(target)
	var loss float64
	for i, v := range logits {
		var logp = v - logSum
		loss -= target[i] * logp
		grad[i] += scale * (math.Exp(logp)*mass - target[i])
	}
	return loss
}

// MSE returns sum((pred-target)^2) and adds scale times its gradient into grad.
func MSE(pred, target, grad []float64, scale float64) float64 {
	var loss float64
	for i := range pred {
		var d = pred[i] - target[i]
		loss += d * d
		grad[i] += scale * 2 * d
	}
	return loss
}

// LossTerm is one named component of the training loss.
type LossTerm struct {
	Name  string
	Value float64
}
