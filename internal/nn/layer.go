package nn

import (
	"math/rand"

	"github.com/ChizhovVadim/weiqitrain/internal/ml"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Layer is a fully connected layer y = W*x + b.
type Layer struct {
	Weight *ml.Param
	Bias   *ml.Param
	rows   int
	cols   int
}

func NewLayer(name string, inputSize, outputSize int) *Layer {
	return &Layer{
		Weight: ml.NewParam(name+".weight", outputSize, inputSize),
		Bias:   ml.NewParam(name+".bias", outputSize),
		rows:   outputSize,
		cols:   inputSize,
	}
}

func (l *Layer) InitWeightsReLU(rnd *rand.Rand) *Layer {
	ml.InitUniform(rnd, l.Weight.Data, 2.0/float64(l.cols))
	return l
}

func (l *Layer) InitWeightsLinear(rnd *rand.Rand) *Layer {
	ml.InitUniform(rnd, l.Weight.Data, 1.0/float64(l.cols+l.rows))
	return l
}

// ThreadCopy shares weights and owns its gradients.
func (l *Layer) ThreadCopy() *Layer {
	return &Layer{
		Weight: shareParam(l.Weight),
		Bias:   shareParam(l.Bias),
		rows:   l.rows,
		cols:   l.cols,
	}
}

func (l *Layer) Params() []*ml.Param {
	return []*ml.Param{l.Weight, l.Bias}
}

func (l *Layer) weights() *mat.Dense {
	return mat.NewDense(l.rows, l.cols, l.Weight.Data)
}

func (l *Layer) Forward(x, out []float64) {
	var y = mat.NewVecDense(l.rows, out)
	y.MulVec(l.weights(), mat.NewVecDense(l.cols, x))
	floats.Add(out, l.Bias.Data)
}

// Backward accumulates the gradients for dOut and adds W^T*dOut into dx when dx is not nil.
func (l *Layer) Backward(x, dOut, dx []float64) {
	var d = mat.NewVecDense(l.rows, dOut)
	var g = mat.NewDense(l.rows, l.cols, l.Weight.Grad)
	g.RankOne(g, 1, d, mat.NewVecDense(l.cols, x))
	floats.Add(l.Bias.Grad, dOut)
	if dx != nil {
		var back = mat.NewVecDense(l.cols, nil)
		back.MulVec(l.weights().T(), d)
		floats.Add(dx, back.RawVector().Data)
	}
}

// Spatial computes one logit per intersection and head:
// a 1x1 convolution over the input planes plus a per-head term from the trunk.
type Spatial struct {
	Weight *ml.Param // [heads, channels]
	Global *Layer
	heads  int
	chans  int
}

func NewSpatial(name string, channels, hidden, heads int) *Spatial {
	return &Spatial{
		Weight: ml.NewParam(name+".weight", heads, channels),
		Global: NewLayer(name+".global", hidden, heads),
		heads:  heads,
		chans:  channels,
	}
}

func (s *Spatial) ThreadCopy() *Spatial {
	return &Spatial{
		Weight: shareParam(s.Weight),
		Global: s.Global.ThreadCopy(),
		heads:  s.heads,
		chans:  s.chans,
	}
}

func (s *Spatial) Params() []*ml.Param {
	return append([]*ml.Param{s.Weight}, s.Global.Params()...)
}

// Forward returns logits [heads, area] for planes [channels, area] and trunk output h.
func (s *Spatial) Forward(planes *mat.Dense, h []float64) *mat.Dense {
	var _, area = planes.Dims()
	var logits = mat.NewDense(s.heads, area, nil)
	logits.Mul(mat.NewDense(s.heads, s.chans, s.Weight.Data), planes)
	var global = make([]float64, s.heads)
	s.Global.Forward(h, global)
	for k := 0; k < s.heads; k++ {
		floats.AddConst(global[k], logits.RawRowView(k))
	}
	return logits
}

func (s *Spatial) Backward(planes, dLogits *mat.Dense, h, dh []float64) {
	var g = mat.NewDense(s.heads, s.chans, s.Weight.Grad)
	var tmp = mat.NewDense(s.heads, s.chans, nil)
	tmp.Mul(dLogits, planes.T())
	g.Add(g, tmp)
	var dGlobal = make([]float64, s.heads)
	for k := range dGlobal {
		dGlobal[k] = floats.Sum(dLogits.RawRowView(k))
	}
	s.Global.Backward(h, dGlobal, dh)
}

func shareParam(p *ml.Param) *ml.Param {
	return &ml.Param{
		Name:  p.Name,
		Shape: p.Shape,
		Data:  p.Data,
		Grad:  make([]float64, len(p.Data)),
	}
}
