package dataset

import (
	"math/rand"

	"github.com/ChizhovVadim/weiqitrain/internal/domain"
)

// RandomExample builds a structurally valid record with random content.
// Used for smoke runs and tests.
func RandomExample(rnd *rand.Rand, boardSize, numPlanes int) *domain.RawExample {
	var n = boardSize * boardSize
	var ex = &domain.RawExample{
		BoardSize: boardSize,
		ToMove:    rnd.Intn(2),
		Komi:      float32(rnd.Intn(16)) - 0.5,
		Rule:      float32(rnd.Intn(2)),
		Wave:      0,
		Planes:    make([][]float32, numPlanes),
		Prob:      randomDistribution(rnd, n+1),
		AuxProb:   randomDistribution(rnd, n+1),
		Ownership: make([]float32, n),
		Result:    rnd.Intn(3) - 1,
	}
	for p := range ex.Planes {
		var plane = make([]float32, n)
		for i := range plane {
			if rnd.Intn(4) == 0 {
				plane[i] = 1
			}
		}
		ex.Planes[p] = plane
	}
	for i := range ex.Ownership {
		ex.Ownership[i] = float32(rnd.Intn(3) - 1)
	}
	ex.FinalScore = float32(rnd.Intn(41) - 20)
	ex.AvgQ = float32(rnd.Float64()*2 - 1)
	ex.ShortAvgQ = float32(rnd.Float64()*2 - 1)
	ex.MidAvgQ = float32(rnd.Float64()*2 - 1)
	ex.LongAvgQ = float32(rnd.Float64()*2 - 1)
	ex.AvgScore = float32(rnd.Intn(41) - 20)
	ex.ShortAvgScore = float32(rnd.Intn(41) - 20)
	ex.MidAvgScore = float32(rnd.Intn(41) - 20)
	ex.LongAvgScore = float32(rnd.Intn(41) - 20)
	return ex
}

func randomDistribution(rnd *rand.Rand, size int) []float32 {
	var result = make([]float32, size)
	// a few non zero entries like a visit distribution
	var total float32
	for k := 0; k < 4; k++ {
		var v = float32(rnd.Intn(100) + 1)
		result[rnd.Intn(size)] += v
		total += v
	}
	for i := range result {
		result[i] /= total
	}
	return result
}
