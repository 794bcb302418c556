package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Param is one trainable tensor with its gradient buffer.
type Param struct {
	Name  string
	Shape []int
	Data  []float64
	Grad  []float64
}

func NewParam(name string, shape ...int) *Param {
	var size = 1
	for _, d := range shape {
		size *= d
	}
	return &Param{
		Name:  name,
		Shape: append([]int(nil), shape...),
		Data:  make([]float64, size),
		Grad:  make([]float64, size),
	}
}

// ParamGroup shares learning rate and weight decay.
type ParamGroup struct {
	Params      []*Param
	LR          float64
	WeightDecay float64
}

func ZeroGrad(params []*Param) {
	for _, p := range params {
		for i := range p.Grad {
			p.Grad[i] = 0
		}
	}
}

// AddGradients sums the gradients of src into dst and clears src.
func AddGradients(dst, src []*Param) {
	for i := range dst {
		floats.Add(dst[i].Grad, src[i].Grad)
		for j := range src[i].Grad {
			src[i].Grad[j] = 0
		}
	}
}

func CopyData(dst, src []*Param) {
	for i := range dst {
		copy(dst[i].Data, src[i].Data)
	}
}

// GradNorm returns the global L2 norm over all gradients.
func GradNorm(params []*Param) float64 {
	var sum float64
	for _, p := range params {
		var n = floats.Norm(p.Grad, 2)
		sum += n * n
	}
	return math.Sqrt(sum)
}

// ClipGradNorm rescales all gradients so that the global norm does not exceed maxNorm.
// It returns the norm before clipping.
func ClipGradNorm(params []*Param, maxNorm float64) float64 {
	var total = GradNorm(params)
	if total > maxNorm {
		var scale = maxNorm / (total + 1e-6)
		for _, p := range params {
			floats.Scale(scale, p.Grad)
		}
	}
	return total
}

// AccumulateSWA folds cur into the running average swa.
// count is the number of models already averaged after this one is added; 0 replaces.
func AccumulateSWA(swa, cur []*Param, count int) {
	if count <= 0 {
		CopyData(swa, cur)
		return
	}
	var c = float64(count)
	for i := range swa {
		floats.Scale(c/(c+1), swa[i].Data)
		floats.AddScaled(swa[i].Data, 1/(c+1), cur[i].Data)
	}
}
