package batch

import (
	"fmt"

	"github.com/ChizhovVadim/weiqitrain/internal/domain"
)

// number of planes derived from scalars, appended after the semantic planes
const derivedPlanes = 6

const fullBoardArea = 361

// Generator pads examples to a BoardSize canvas and stacks them.
type Generator struct {
	BoardSize     int
	InputChannels int
}

func (g *Generator) numIntersections() int {
	return g.BoardSize * g.BoardSize
}

// Check reports whether ex fits the canvas and carries the expected number of planes.
func (g *Generator) Check(ex *domain.TrainingExample) error {
	if ex.BoardSize <= 0 || ex.BoardSize > g.BoardSize {
		return fmt.Errorf("board size %v does not fit canvas %v", ex.BoardSize, g.BoardSize)
	}
	if len(ex.Planes) != g.InputChannels-derivedPlanes {
		return fmt.Errorf("got %v feature planes, want %v", len(ex.Planes), g.InputChannels-derivedPlanes)
	}
	var n = ex.NumIntersections()
	for i, plane := range ex.Planes {
		if len(plane) != n {
			return fmt.Errorf("plane %v has %v cells, want %v", i, len(plane), n)
		}
	}
	if len(ex.Prob) != n+1 || len(ex.AuxProb) != n+1 || len(ex.Ownership) != n {
		return fmt.Errorf("target sizes %v/%v/%v do not match board size %v",
			len(ex.Prob), len(ex.AuxProb), len(ex.Ownership), ex.BoardSize)
	}
	if ex.Result < -1 || ex.Result > 1 {
		return fmt.Errorf("result %v out of range", ex.Result)
	}
	return nil
}

// Generate stacks examples that passed Check.
func (g *Generator) Generate(examples []domain.TrainingExample) *MacroBatch {
	var size = len(examples)
	var canvas = g.numIntersections()
	var b = &MacroBatch{
		Size:      size,
		Planes:    NewTensor(size, g.InputChannels, g.BoardSize, g.BoardSize),
		Prob:      NewTensor(size, canvas+1),
		AuxProb:   NewTensor(size, canvas+1),
		Ownership: NewTensor(size, canvas),
		WDL:       NewTensor(size, 3),
		QVals:     NewTensor(size, 5),
		Scores:    NewTensor(size, 5),
	}
	for i := range examples {
		var ex = &examples[i]
		g.fillPlanes(b.Planes.Row(i), ex)
		g.fillProb(b.Prob.Row(i), ex.BoardSize, ex.Prob)
		g.fillProb(b.AuxProb.Row(i), ex.BoardSize, ex.AuxProb)
		g.fillGrid(b.Ownership.Row(i), ex.BoardSize, ex.Ownership)
		fillWDL(b.WDL.Row(i), ex.Result)

		var q = b.QVals.Row(i)
		q[0] = float32(ex.Result)
		q[1] = ex.AvgQ
		q[2] = ex.ShortAvgQ
		q[3] = ex.MidAvgQ
		q[4] = ex.LongAvgQ

		var scores = b.Scores.Row(i)
		scores[0] = ex.FinalScore
		scores[1] = ex.AvgScore
		scores[2] = ex.ShortAvgScore
		scores[3] = ex.MidAvgScore
		scores[4] = ex.LongAvgScore
	}
	return b
}

func (g *Generator) fillPlanes(dst []float32, ex *domain.TrainingExample) {
	var canvas = g.numIntersections()
	var channels = g.InputChannels
	var plane = func(c int) []float32 {
		return dst[c*canvas : (c+1)*canvas]
	}

	for p := 0; p < channels-derivedPlanes; p++ {
		g.fillGrid(plane(p), ex.BoardSize, ex.Planes[p])
	}

	// komi planes are signed from white's side: +komi/20 then -komi/20 when white
	// is to move, swapped when black is to move
	var komi = ex.Komi / 20
	var firstKomi, secondKomi = komi, -komi
	if ex.ToMove != domain.White {
		firstKomi, secondKomi = -komi, komi
	}
	var area = float32(ex.BoardSize*ex.BoardSize) / fullBoardArea

	g.fillConst(plane(channels-6), ex.BoardSize, ex.Rule)
	g.fillConst(plane(channels-5), ex.BoardSize, ex.Wave)
	g.fillConst(plane(channels-4), ex.BoardSize, firstKomi)
	g.fillConst(plane(channels-3), ex.BoardSize, secondKomi)
	g.fillConst(plane(channels-2), ex.BoardSize, area)
	g.fillConst(plane(channels-1), ex.BoardSize, 1)
}

// fillGrid embeds a boardSize x boardSize grid top-left into the canvas.
func (g *Generator) fillGrid(dst []float32, boardSize int, src []float32) {
	for y := 0; y < boardSize; y++ {
		copy(dst[y*g.BoardSize:y*g.BoardSize+boardSize], src[y*boardSize:(y+1)*boardSize])
	}
}

func (g *Generator) fillConst(dst []float32, boardSize int, v float32) {
	if v == 0 {
		return
	}
	for y := 0; y < boardSize; y++ {
		var row = dst[y*g.BoardSize : y*g.BoardSize+boardSize]
		for x := range row {
			row[x] = v
		}
	}
}

// fillProb remaps the grid part and copies the trailing pass slot.
func (g *Generator) fillProb(dst []float32, boardSize int, src []float32) {
	var n = boardSize * boardSize
	g.fillGrid(dst, boardSize, src[:n])
	dst[g.numIntersections()] = src[n]
}

func fillWDL(dst []float32, result int) {
	dst[1-result] = 1
}
