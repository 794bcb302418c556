package batch

const (
	RolePlanes    = "planes"
	RoleProb      = "prob"
	RoleAuxProb   = "aux_prob"
	RoleOwnership = "ownership"
	RoleWDL       = "wdl"
	RoleQVals     = "q_vals"
	RoleScores    = "scores"
)

// Tensor is a dense row-major float32 array.
type Tensor struct {
	Shape []int
	Data  []float32
}

func NewTensor(shape ...int) *Tensor {
	var size = 1
	for _, d := range shape {
		size *= d
	}
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, size),
	}
}

// Row returns the i-th slice along the leading dimension.
func (t *Tensor) Row(i int) []float32 {
	var stride = len(t.Data) / t.Shape[0]
	return t.Data[i*stride : (i+1)*stride]
}

// Slice returns rows [from, to) sharing the underlying data.
func (t *Tensor) Slice(from, to int) *Tensor {
	var stride = len(t.Data) / t.Shape[0]
	var shape = append([]int(nil), t.Shape...)
	shape[0] = to - from
	return &Tensor{
		Shape: shape,
		Data:  t.Data[from*stride : to*stride],
	}
}

// MacroBatch is one forward/backward unit.
type MacroBatch struct {
	Size      int
	Planes    *Tensor // [size, channels, board, board]
	Prob      *Tensor // [size, board*board+1]
	AuxProb   *Tensor // [size, board*board+1]
	Ownership *Tensor // [size, board*board]
	WDL       *Tensor // [size, 3]
	QVals     *Tensor // [size, 5]
	Scores    *Tensor // [size, 5]
}

func (b *MacroBatch) Tensors() map[string]*Tensor {
	return map[string]*Tensor{
		RolePlanes:    b.Planes,
		RoleProb:      b.Prob,
		RoleAuxProb:   b.AuxProb,
		RoleOwnership: b.Ownership,
		RoleWDL:       b.WDL,
		RoleQVals:     b.QVals,
		RoleScores:    b.Scores,
	}
}

// Slice returns examples [from, to) as a batch sharing storage with b.
func (b *MacroBatch) Slice(from, to int) *MacroBatch {
	return &MacroBatch{
		Size:      to - from,
		Planes:    b.Planes.Slice(from, to),
		Prob:      b.Prob.Slice(from, to),
		AuxProb:   b.AuxProb.Slice(from, to),
		Ownership: b.Ownership.Slice(from, to),
		WDL:       b.WDL.Slice(from, to),
		QVals:     b.QVals.Slice(from, to),
		Scores:    b.Scores.Slice(from, to),
	}
}
