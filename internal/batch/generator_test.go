package batch

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ChizhovVadim/weiqitrain/internal/dataset"
	"github.com/ChizhovVadim/weiqitrain/internal/domain"
)

const testChannels = 8

func example(seed int64, boardSize int) domain.TrainingExample {
	var rnd = rand.New(rand.NewSource(seed))
	return domain.TrainingExample{RawExample: *dataset.RandomExample(rnd, boardSize, testChannels-derivedPlanes)}
}

func TestCanvasPadding(t *testing.T) {
	var g = &Generator{BoardSize: 19, InputChannels: testChannels}
	var ex = example(1, 9)
	var b = g.Generate([]domain.TrainingExample{ex})

	var prob = b.Prob.Row(0)
	var own = b.Ownership.Row(0)
	var aux = b.AuxProb.Row(0)
	for y := 0; y < 19; y++ {
		for x := 0; x < 19; x++ {
			var i = y*19 + x
			if y < 9 && x < 9 {
				var j = y*9 + x
				if prob[i] != ex.Prob[j] || aux[i] != ex.AuxProb[j] || own[i] != ex.Ownership[j] {
					t.Fatalf("cell (%v,%v) not copied", y, x)
				}
			} else if prob[i] != 0 || aux[i] != 0 || own[i] != 0 {
				t.Fatalf("cell (%v,%v) outside the board is not zero", y, x)
			}
		}
	}
	if prob[361] != ex.Prob[81] || aux[361] != ex.AuxProb[81] {
		t.Errorf("pass slot = %v, want %v", prob[361], ex.Prob[81])
	}

	var sumCanvas, sumSource float64
	for _, v := range prob {
		sumCanvas += float64(v)
	}
	for _, v := range ex.Prob {
		sumSource += float64(v)
	}
	if math.Abs(sumCanvas-sumSource) > 1e-6 {
		t.Errorf("probability mass %v, want %v", sumCanvas, sumSource)
	}
}

func TestDerivedPlanes(t *testing.T) {
	var g = &Generator{BoardSize: 19, InputChannels: testChannels}
	var ex = example(2, 9)
	ex.Komi = 7.5
	ex.Rule = 1
	ex.Wave = 0.5
	ex.ToMove = domain.White
	var b = g.Generate([]domain.TrainingExample{ex})
	var row = b.Planes.Row(0)
	var at = func(c, y, x int) float32 {
		return row[c*361+y*19+x]
	}
	tests := []struct {
		name    string
		channel int
		want    float32
	}{
		{"rule", testChannels - 6, 1},
		{"wave", testChannels - 5, 0.5},
		{"first komi", testChannels - 4, 7.5 / 20},
		{"second komi", testChannels - 3, -7.5 / 20},
		{"area", testChannels - 2, 81.0 / 361},
		{"ones", testChannels - 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := at(tt.channel, 4, 4); got != tt.want {
				t.Errorf("inside = %v, want %v", got, tt.want)
			}
			if got := at(tt.channel, 10, 10); got != 0 {
				t.Errorf("outside = %v, want 0", got)
			}
		})
	}

	ex.ToMove = domain.Black
	b = g.Generate([]domain.TrainingExample{ex})
	row = b.Planes.Row(0)
	if got := at(testChannels-4, 0, 0); got != -7.5/20 {
		t.Errorf("black to move first komi plane = %v", got)
	}
	if got := at(testChannels-3, 0, 0); got != 7.5/20 {
		t.Errorf("black to move second komi plane = %v", got)
	}
}

func TestWDL(t *testing.T) {
	tests := []struct {
		result int
		index  int
	}{
		{1, 0},
		{0, 1},
		{-1, 2},
	}
	var g = &Generator{BoardSize: 9, InputChannels: testChannels}
	for _, tt := range tests {
		var ex = example(3, 9)
		ex.Result = tt.result
		var wdl = g.Generate([]domain.TrainingExample{ex}).WDL.Row(0)
		var ones int
		for i, v := range wdl {
			if v == 1 {
				ones++
				if i != tt.index {
					t.Errorf("result %v: one-hot at %v, want %v", tt.result, i, tt.index)
				}
			} else if v != 0 {
				t.Errorf("result %v: unexpected value %v", tt.result, v)
			}
		}
		if ones != 1 {
			t.Errorf("result %v: %v ones", tt.result, ones)
		}
	}
}

func TestStacking(t *testing.T) {
	var g = &Generator{BoardSize: 9, InputChannels: testChannels}
	var examples = []domain.TrainingExample{example(4, 9), example(5, 7), example(6, 9)}
	var b = g.Generate(examples)
	if b.Size != 3 || b.Planes.Shape[0] != 3 || b.QVals.Shape[1] != 5 {
		t.Fatalf("unexpected shapes %v %v", b.Planes.Shape, b.QVals.Shape)
	}
	for i, ex := range examples {
		var q = b.QVals.Row(i)
		if q[0] != float32(ex.Result) || q[1] != ex.AvgQ || q[4] != ex.LongAvgQ {
			t.Errorf("q values row %v = %v", i, q)
		}
		var s = b.Scores.Row(i)
		if s[0] != ex.FinalScore || s[2] != ex.ShortAvgScore {
			t.Errorf("scores row %v = %v", i, s)
		}
	}
	var half = b.Slice(1, 3)
	if half.Size != 2 || half.QVals.Row(0)[1] != examples[1].AvgQ {
		t.Errorf("Slice() does not share rows")
	}
}

func TestCheck(t *testing.T) {
	var g = &Generator{BoardSize: 9, InputChannels: testChannels}
	var rnd = rand.New(rand.NewSource(9))
	var shortProb = example(4, 9)
	shortProb.Prob = shortProb.Prob[:81]
	var badResult = example(5, 9)
	badResult.Result = 2
	tests := []struct {
		name    string
		ex      domain.TrainingExample
		wantErr bool
	}{
		{"native board", example(1, 9), false},
		{"smaller board", example(2, 7), false},
		{"larger board", example(3, 11), true},
		{"extra planes", domain.TrainingExample{RawExample: *dataset.RandomExample(rnd, 9, 4)}, true},
		{"missing planes", domain.TrainingExample{RawExample: *dataset.RandomExample(rnd, 9, 1)}, true},
		{"short prob", shortProb, true},
		{"result", badResult, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err = g.Check(&tt.ex)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				g.Generate([]domain.TrainingExample{tt.ex})
			}
		})
	}
}
