package nn

import (
	"math"
	"math/rand"

	"github.com/ChizhovVadim/weiqitrain/internal/batch"
	"github.com/ChizhovVadim/weiqitrain/internal/ml"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// spatial heads, the first numPolicyHeads also have a pass logit
const (
	headProb = iota
	headAuxProb
	headSoftProb
	headSoftAuxProb
	headOptimistic
	headOwnership
	numSpatialHeads
)

const numPolicyHeads = headOwnership

// loss indices, the first numSpatialHeads match the heads
const (
	lossWDL = numSpatialHeads + iota
	lossQVals
	lossScores
	lossErrors
	numLosses
)

var LossNames = [numLosses]string{
	"prob_loss",
	"aux_prob_loss",
	"soft_prob_loss",
	"soft_aux_prob_loss",
	"optimistic_loss",
	"ownership_loss",
	"wdl_loss",
	"q_vals_loss",
	"scores_loss",
	"errors_loss",
}

const (
	scoreScale     = 20
	softExponent   = 0.25
	maskedLogit    = -1e9
	optimismFactor = 4
)

type Model struct {
	channels int
	area     int
	hidden   int

	trunk   *Layer
	spatial *Spatial
	pass    *Layer
	wdl     *Layer
	qVals   *Layer
	scores  *Layer
	errors  *Layer
}

func NewModel(channels, boardSize, hidden int, rnd *rand.Rand) *Model {
	return &Model{
		channels: channels,
		area:     boardSize * boardSize,
		hidden:   hidden,
		trunk:    NewLayer("trunk", channels, hidden).InitWeightsReLU(rnd),
		spatial:  newSpatialInit(channels, hidden, rnd),
		pass:     NewLayer("pass", hidden, numPolicyHeads).InitWeightsLinear(rnd),
		wdl:      NewLayer("wdl", hidden, 3).InitWeightsLinear(rnd),
		qVals:    NewLayer("q_vals", hidden, 5).InitWeightsLinear(rnd),
		scores:   NewLayer("scores", hidden, 5).InitWeightsLinear(rnd),
		errors:   NewLayer("errors", hidden, 2).InitWeightsLinear(rnd),
	}
}

func newSpatialInit(channels, hidden int, rnd *rand.Rand) *Spatial {
	var s = NewSpatial("spatial", channels, hidden, numSpatialHeads)
	ml.InitUniform(rnd, s.Weight.Data, 1.0/float64(channels))
	s.Global.InitWeightsLinear(rnd)
	return s
}

func (m *Model) ThreadCopy() *Model {
	return &Model{
		channels: m.channels,
		area:     m.area,
		hidden:   m.hidden,
		trunk:    m.trunk.ThreadCopy(),
		spatial:  m.spatial.ThreadCopy(),
		pass:     m.pass.ThreadCopy(),
		wdl:      m.wdl.ThreadCopy(),
		qVals:    m.qVals.ThreadCopy(),
		scores:   m.scores.ThreadCopy(),
		errors:   m.errors.ThreadCopy(),
	}
}

func (m *Model) Params() []*ml.Param {
	var result []*ml.Param
	result = append(result, m.trunk.Params()...)
	result = append(result, m.spatial.Params()...)
	for _, l := range []*Layer{m.pass, m.wdl, m.qVals, m.scores, m.errors} {
		result = append(result, l.Params()...)
	}
	return result
}

// train adds scale times the loss terms of example i into losses
// and scale times their gradients into the parameter gradients.
func (m *Model) train(b *batch.MacroBatch, i int, softWeight, scale float64, losses []float64) {
	var area = m.area
	var x = toFloat64(b.Planes.Row(i))
	var planes = mat.NewDense(m.channels, area, x)
	// the last input plane is one on the board and zero on the padding
	var mask = x[(m.channels-1)*area:]

	var pooled = make([]float64, m.channels)
	for c := range pooled {
		pooled[c] = floats.Sum(x[c*area:(c+1)*area]) / float64(area)
	}
	var h = make([]float64, m.hidden)
	m.trunk.Forward(pooled, h)
	ml.ReLU(h)
	var dh = make([]float64, m.hidden)

	var logits = m.spatial.Forward(planes, h)
	var dLogits = mat.NewDense(numSpatialHeads, area, nil)
	var passLogits = make([]float64, numPolicyHeads)
	m.pass.Forward(h, passLogits)
	var dPass = make([]float64, numPolicyHeads)

	var prob = toFloat64(b.Prob.Row(i))
	var auxProb = toFloat64(b.AuxProb.Row(i))
	var qTarget = toFloat64(b.QVals.Row(i))
	var scoreTarget = toFloat64(b.Scores.Row(i))
	floats.Scale(1.0/scoreScale, scoreTarget)

	var targets = [numPolicyHeads][]float64{
		prob,
		auxProb,
		softTarget(prob),
		softTarget(auxProb),
		prob,
	}
	var weights = [numPolicyHeads]float64{
		1,
		1,
		softWeight,
		softWeight,
		optimisticWeight(qTarget),
	}
	var grad = make([]float64, area+1)
	for k := 0; k < numPolicyHeads; k++ {
		if weights[k] == 0 {
			continue
		}
		var full = policyLogits(logits.RawRowView(k), passLogits[k], mask)
		for j := range grad {
			grad[j] = 0
		}
		var loss = ml.SoftmaxCrossEntropy(full, targets[k], grad, weights[k]*scale)
		losses[k] += weights[k] * scale * loss
		copy(dLogits.RawRowView(k), grad[:area])
		dPass[k] = grad[area]
	}

	losses[headOwnership] += m.ownership(
		logits.RawRowView(headOwnership),
		toFloat64(b.Ownership.Row(i)),
		mask,
		dLogits.RawRowView(headOwnership),
		scale)

	var wdlLogits = make([]float64, 3)
	m.wdl.Forward(h, wdlLogits)
	var dWDL = make([]float64, 3)
	losses[lossWDL] += scale * ml.SoftmaxCrossEntropy(wdlLogits, toFloat64(b.WDL.Row(i)), dWDL, scale)

	var q = make([]float64, 5)
	m.qVals.Forward(h, q)
	ml.Tanh(q)
	var dq = make([]float64, 5)
	losses[lossQVals] += scale * ml.MSE(q, qTarget, dq, scale)
	for j := range dq {
		dq[j] *= 1 - q[j]*q[j]
	}

	var s = make([]float64, 5)
	m.scores.Forward(h, s)
	var ds = make([]float64, 5)
	losses[lossScores] += scale * ml.MSE(s, scoreTarget, ds, scale)

	// errors head predicts the squared error of the average q and score heads
	var e = make([]float64, 2)
	m.errors.Forward(h, e)
	var eTarget = []float64{
		square(q[1] - qTarget[1]),
		square(s[1] - scoreTarget[1]),
	}
	var de = make([]float64, 2)
	losses[lossErrors] += scale * ml.MSE(e, eTarget, de, scale)

	m.pass.Backward(h, dPass, dh)
	m.wdl.Backward(h, dWDL, dh)
	m.qVals.Backward(h, dq, dh)
	m.scores.Backward(h, ds, dh)
	m.errors.Backward(h, de, dh)
	m.spatial.Backward(planes, dLogits, h, dh)
	ml.ReLUPrime(h, dh)
	m.trunk.Backward(pooled, dh, nil)
}

// ownership is the mean squared error of tanh(logits) over the board cells.
func (m *Model) ownership(logits, target, mask, dLogits []float64, scale float64) float64 {
	var cells = floats.Sum(mask)
	if cells == 0 {
		return 0
	}
	var loss float64
	for j, l := range logits {
		if mask[j] == 0 {
			continue
		}
		var y = math.Tanh(l)
		var d = y - target[j]
		loss += d * d
		dLogits[j] = scale * 2 * d * (1 - y*y) / cells
	}
	return scale * loss / cells
}

func policyLogits(board []float64, pass float64, mask []float64) []float64 {
	var result = make([]float64, len(board)+1)
	for j, v := range board {
		if mask[j] != 0 {
			result[j] = v
		} else {
			result[j] = maskedLogit
		}
	}
	result[len(board)] = pass
	return result
}

// softTarget flattens a distribution with p^(1/4).
func softTarget(prob []float64) []float64 {
	var result = make([]float64, len(prob))
	for j, p := range prob {
		if p > 0 {
			result[j] = math.Pow(p, softExponent)
		}
	}
	var sum = floats.Sum(result)
	if sum > 0 {
		floats.Scale(1/sum, result)
	}
	return result
}

// optimisticWeight favours positions where the short term value beat the average.
func optimisticWeight(q []float64) float64 {
	return ml.Sigmoid(optimismFactor * (q[2] - q[1]))
}

func toFloat64(data []float32) []float64 {
	var result = make([]float64, len(data))
	for i, v := range data {
		result[i] = float64(v)
	}
	return result
}

func square(x float64) float64 {
	return x * x
}
