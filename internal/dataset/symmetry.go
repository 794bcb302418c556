package dataset

import (
	"sync"

	"github.com/ChizhovVadim/weiqitrain/internal/domain"
)

const NumSymmetries = 8

// (board size, symmetry) -> destination index for each source index
var symmetryTables sync.Map

func symmetryTable(boardSize, symm int) []int {
	type key struct{ size, symm int }
	var k = key{boardSize, symm}
	if v, ok := symmetryTables.Load(k); ok {
		return v.([]int)
	}
	var n = boardSize * boardSize
	var table = make([]int, n)
	for y := 0; y < boardSize; y++ {
		for x := 0; x < boardSize; x++ {
			var ty, tx = transformVertex(boardSize, symm, y, x)
			table[y*boardSize+x] = ty*boardSize + tx
		}
	}
	symmetryTables.Store(k, table)
	return table
}

func transformVertex(size, symm, y, x int) (int, int) {
	var last = size - 1
	switch symm {
	case 1:
		return x, last - y
	case 2:
		return last - y, last - x
	case 3:
		return last - x, y
	case 4:
		return y, last - x
	case 5:
		return last - y, x
	case 6:
		return x, y
	case 7:
		return last - x, last - y
	default:
		return y, x
	}
}

func transformPlane(table []int, src []float32) []float32 {
	var dst = make([]float32, len(src))
	for i := range table {
		dst[table[i]] = src[i]
	}
	// pass slot and anything beyond the grid is position independent
	copy(dst[len(table):], src[len(table):])
	return dst
}

// ApplySymmetry returns a copy of ex with every spatial field transformed.
func ApplySymmetry(ex *domain.RawExample, symm int) domain.TrainingExample {
	var result = domain.TrainingExample{
		RawExample: *ex,
		Symmetry:   symm,
	}
	if symm == 0 {
		return result
	}
	var table = symmetryTable(ex.BoardSize, symm)
	result.Planes = make([][]float32, len(ex.Planes))
	for i, plane := range ex.Planes {
		result.Planes[i] = transformPlane(table, plane)
	}
	result.Prob = transformPlane(table, ex.Prob)
	result.AuxProb = transformPlane(table, ex.AuxProb)
	result.Ownership = transformPlane(table, ex.Ownership)
	return result
}
