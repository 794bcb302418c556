package nn

import (
	"bufio"
	"bytes"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/ChizhovVadim/weiqitrain/internal/batch"
	"github.com/ChizhovVadim/weiqitrain/internal/dataset"
	"github.com/ChizhovVadim/weiqitrain/internal/domain"
	"github.com/ChizhovVadim/weiqitrain/internal/ml"
)

const (
	testBoard    = 7
	testChannels = 8
)

func testConfig(replicas int) Config {
	return Config{
		BoardSize:     testBoard,
		InputChannels: testChannels,
		HiddenSize:    6,
		Replicas:      replicas,
		Seed:          1,
	}
}

func testBatch(seed int64, size int) *batch.MacroBatch {
	var rnd = rand.New(rand.NewSource(seed))
	var examples = make([]domain.TrainingExample, size)
	for i := range examples {
		var boardSize = testBoard
		if i%2 == 1 {
			boardSize = 5
		}
		examples[i] = dataset.ApplySymmetry(dataset.RandomExample(rnd, boardSize, testChannels-6), 0)
	}
	var g = &batch.Generator{BoardSize: testBoard, InputChannels: testChannels}
	return g.Generate(examples)
}

func totalLoss(terms []ml.LossTerm) float64 {
	var sum float64
	for _, t := range terms {
		sum += t.Value
	}
	return sum
}

func findParam(params []*ml.Param, name string) *ml.Param {
	for _, p := range params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func TestForwardLossTerms(t *testing.T) {
	var n = New(testConfig(1))
	terms, err := n.Forward(testBatch(1, 4), map[string]float64{SoftWeightKey: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(terms) != len(LossNames) {
		t.Fatalf("got %v terms, want %v", len(terms), len(LossNames))
	}
	for i, term := range terms {
		if term.Name != LossNames[i] {
			t.Errorf("term %v = %v, want %v", i, term.Name, LossNames[i])
		}
		if !ml.IsFinite(term.Value) || term.Value < 0 {
			t.Errorf("%v = %v", term.Name, term.Value)
		}
	}
	if terms[headProb].Value <= 0 {
		t.Errorf("prob_loss = %v, want positive", terms[headProb].Value)
	}
}

func TestForwardRejectsShape(t *testing.T) {
	var n = New(testConfig(1))
	var g = &batch.Generator{BoardSize: 9, InputChannels: testChannels}
	var ex = dataset.ApplySymmetry(dataset.RandomExample(rand.New(rand.NewSource(1)), 9, 2), 0)
	var truncated = testBatch(6, 2)
	truncated.WDL = batch.NewTensor(2, 2)
	var missing = testBatch(7, 2)
	missing.Scores = nil
	tests := []struct {
		name string
		b    *batch.MacroBatch
	}{
		{"9x9 canvas", g.Generate([]domain.TrainingExample{ex})},
		{"truncated wdl", truncated},
		{"missing scores", missing},
		{"empty", &batch.MacroBatch{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := n.Forward(tt.b, nil); err == nil {
				t.Errorf("Forward() accepted the batch")
			}
		})
	}
}

// Parameters that do not feed the q and score heads have exact gradients:
// the errors head treats its targets as constants.
func TestGradientMatchesFiniteDifference(t *testing.T) {
	var b = testBatch(2, 3)
	var weights = map[string]float64{SoftWeightKey: 0.7}
	tests := []struct {
		param string
		index int
	}{
		{"pass.bias", 0},
		{"pass.bias", 4},
		{"wdl.weight", 3},
		{"spatial.weight", 2},
		{"spatial.weight", 5*testChannels + 1},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			var n = New(testConfig(1))
			var p = findParam(n.Params(), tt.param)
			if p == nil {
				t.Fatalf("parameter %v not found", tt.param)
			}
			terms, err := n.Forward(b, weights)
			if err != nil {
				t.Fatal(err)
			}
			n.Backward(1)
			var analytic = p.Grad[tt.index]

			const h = 1e-6
			var base = totalLoss(terms)
			p.Data[tt.index] += h
			shifted, _ := n.Forward(b, weights)
			p.Data[tt.index] -= h
			var numeric = (totalLoss(shifted) - base) / h
			if math.Abs(numeric-analytic) > 1e-4*math.Max(1, math.Abs(numeric)) {
				t.Errorf("gradient = %v, numeric %v", analytic, numeric)
			}
		})
	}
}

func TestReplicasMatchSingleThread(t *testing.T) {
	var b = testBatch(3, 5)
	var single = New(testConfig(1))
	var multi = New(testConfig(3))

	t1, err := single.Forward(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	t2, err := multi.Forward(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range t1 {
		if math.Abs(t1[i].Value-t2[i].Value) > 1e-9 {
			t.Errorf("%v: %v != %v", t1[i].Name, t1[i].Value, t2[i].Value)
		}
	}
	single.Backward(1)
	multi.Backward(1)
	var p1, p2 = single.Params(), multi.Params()
	for i := range p1 {
		for j := range p1[i].Grad {
			if math.Abs(p1[i].Grad[j]-p2[i].Grad[j]) > 1e-9 {
				t.Fatalf("%v[%v]: %v != %v", p1[i].Name, j, p1[i].Grad[j], p2[i].Grad[j])
			}
		}
	}
}

func TestBackwardAccumulates(t *testing.T) {
	var b = testBatch(4, 2)
	var n = New(testConfig(2))
	var p = findParam(n.Params(), "wdl.bias")

	n.Forward(b, nil)
	n.Backward(1)
	var once = p.Grad[0]

	n.Forward(b, nil)
	n.Backward(0.5)
	if math.Abs(p.Grad[0]-1.5*once) > 1e-12 {
		t.Errorf("accumulated gradient = %v, want %v", p.Grad[0], 1.5*once)
	}

	// validation style forward without backward does not touch gradients
	n.Forward(testBatch(5, 2), nil)
	if math.Abs(p.Grad[0]-1.5*once) > 1e-12 {
		t.Errorf("Forward() changed the parameter gradients")
	}
}

func TestExportFormat(t *testing.T) {
	var n = New(testConfig(1))
	n.UpdateParameters(42)
	var buf bytes.Buffer
	if err := n.Export(&buf); err != nil {
		t.Fatal(err)
	}

	var lines []string
	var scanner = bufio.NewScanner(&buf)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	var params = n.Params()
	if lines[0] != "get main" || lines[1] != "get info" || lines[len(lines)-1] != "end" {
		t.Fatalf("unexpected framing %q ... %q", lines[:2], lines[len(lines)-1])
	}

	var section = func(name string) []string {
		for i, l := range lines {
			if l == "get "+name {
				for j := i + 1; j < len(lines); j++ {
					if lines[j] == "end" {
						return lines[i+1 : j]
					}
				}
			}
		}
		t.Fatalf("section %v not found", name)
		return nil
	}
	var info = section("info")
	if !contains(info, "Steps 42") || !contains(info, "BoardSize 7") {
		t.Errorf("info = %v", info)
	}
	var structure = section("struct")
	if len(structure) != len(params) || structure[0] != "trunk.weight 6 8" {
		t.Errorf("struct = %v", structure)
	}
	var values = section("parameters")
	if len(values) != len(params) {
		t.Fatalf("got %v parameter lines, want %v", len(values), len(params))
	}
	for i, p := range params {
		if got := len(strings.Fields(values[i])); got != len(p.Data) {
			t.Errorf("%v: %v values, want %v", p.Name, got, len(p.Data))
		}
	}
}

func contains(lines []string, s string) bool {
	for _, l := range lines {
		if l == s {
			return true
		}
	}
	return false
}
