package nn

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"slices"
	"strconv"
	"strings"

	"github.com/ChizhovVadim/weiqitrain/internal/batch"
	"github.com/ChizhovVadim/weiqitrain/internal/ml"

	"gonum.org/v1/gonum/floats"
	"golang.org/x/sync/errgroup"
)

const (
	networkName = "weiqitrain-pooled"
	// SoftWeightKey selects the weight of the soft policy terms.
	SoftWeightKey = "soft"
)

type Config struct {
	BoardSize     int
	InputChannels int
	HiddenSize    int
	// Replicas is the number of goroutines a batch is split across.
	Replicas int
	Seed     int64
}

// Network is the reference policy/value network.
type Network struct {
	cfg      Config
	model    *Model
	replicas []*Model
	active   int
	steps    int
}

func New(cfg Config) *Network {
	if cfg.Replicas <= 0 {
		cfg.Replicas = 1
	}
	var model = NewModel(cfg.InputChannels, cfg.BoardSize, cfg.HiddenSize, rand.New(rand.NewSource(cfg.Seed)))
	var replicas = make([]*Model, cfg.Replicas)
	for i := range replicas {
		replicas[i] = model.ThreadCopy()
	}
	return &Network{
		cfg:      cfg,
		model:    model,
		replicas: replicas,
	}
}

func (n *Network) Params() []*ml.Param {
	return n.model.Params()
}

// Forward computes the loss terms averaged over the batch.
// Gradients are kept until the next Forward and added to the parameters by Backward.
func (n *Network) Forward(b *batch.MacroBatch, weights map[string]float64) ([]ml.LossTerm, error) {
	if err := n.checkBatch(b); err != nil {
		return nil, err
	}
	var softWeight = 1.0
	if w, ok := weights[SoftWeightKey]; ok {
		softWeight = w
	}

	var shards = min(len(n.replicas), b.Size)
	var results = make([][]float64, shards)
	var scale = 1 / float64(b.Size)
	var g errgroup.Group
	for r := 0; r < shards; r++ {
		r := r
		var replica = n.replicas[r]
		var shard = b.Slice(r*b.Size/shards, (r+1)*b.Size/shards)
		g.Go(func() error {
			ml.ZeroGrad(replica.Params())
			var losses = make([]float64, numLosses)
			for i := 0; i < shard.Size; i++ {
				replica.train(shard, i, softWeight, scale, losses)
			}
			results[r] = losses
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	n.active = shards

	var terms = make([]ml.LossTerm, numLosses)
	for k := range terms {
		terms[k].Name = LossNames[k]
		for _, losses := range results {
			terms[k].Value += losses[k]
		}
	}
	return terms, nil
}

// Backward adds scale times the gradients of the last Forward to the parameter gradients.
func (n *Network) Backward(scale float64) {
	var params = n.model.Params()
	for _, replica := range n.replicas[:n.active] {
		for i, p := range replica.Params() {
			floats.AddScaled(params[i].Grad, scale, p.Grad)
		}
	}
	n.active = 0
}

// UpdateParameters records the optimizer step count.
func (n *Network) UpdateParameters(steps int) {
	n.steps = steps
}

func (n *Network) checkBatch(b *batch.MacroBatch) error {
	if b == nil || b.Size == 0 {
		return fmt.Errorf("empty batch")
	}
	var area = n.cfg.BoardSize * n.cfg.BoardSize
	var want = map[string][]int{
		batch.RolePlanes:    {b.Size, n.cfg.InputChannels, n.cfg.BoardSize, n.cfg.BoardSize},
		batch.RoleProb:      {b.Size, area + 1},
		batch.RoleAuxProb:   {b.Size, area + 1},
		batch.RoleOwnership: {b.Size, area},
		batch.RoleWDL:       {b.Size, 3},
		batch.RoleQVals:     {b.Size, 5},
		batch.RoleScores:    {b.Size, 5},
	}
	for role, tensor := range b.Tensors() {
		if tensor == nil || !slices.Equal(tensor.Shape, want[role]) {
			var shape []int
			if tensor != nil {
				shape = tensor.Shape
			}
			return fmt.Errorf("%v shape %v does not match network shape %v", role, shape, want[role])
		}
	}
	return nil
}

func (n *Network) info() [][2]string {
	return [][2]string{
		{"NAME", networkName},
		{"BoardSize", strconv.Itoa(n.cfg.BoardSize)},
		{"InputChannels", strconv.Itoa(n.cfg.InputChannels)},
		{"HiddenSize", strconv.Itoa(n.cfg.HiddenSize)},
		{"PolicyHeads", strconv.Itoa(numPolicyHeads)},
		{"Steps", strconv.Itoa(n.steps)},
	}
}

func (n *Network) Describe() string {
	var sb strings.Builder
	for _, kv := range n.info() {
		fmt.Fprintf(&sb, "%v: %v\n", kv[0], kv[1])
	}
	var count int
	for _, p := range n.Params() {
		count += len(p.Data)
	}
	fmt.Fprintf(&sb, "Parameters: %v\n", count)
	fmt.Fprintf(&sb, "Replicas: %v\n", len(n.replicas))
	return sb.String()
}

// Export writes the weights as text:
// get main / get info / get struct / get parameters / end.
func (n *Network) Export(w io.Writer) error {
	var bw = bufio.NewWriter(w)
	fmt.Fprintln(bw, "get main")

	fmt.Fprintln(bw, "get info")
	for _, kv := range n.info() {
		fmt.Fprintln(bw, kv[0], kv[1])
	}
	fmt.Fprintln(bw, "end")

	var params = n.Params()
	fmt.Fprintln(bw, "get struct")
	for _, p := range params {
		fmt.Fprint(bw, p.Name)
		for _, d := range p.Shape {
			fmt.Fprint(bw, " ", d)
		}
		fmt.Fprintln(bw)
	}
	fmt.Fprintln(bw, "end")

	fmt.Fprintln(bw, "get parameters")
	for _, p := range params {
		for i, v := range p.Data {
			if i != 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.FormatFloat(v, 'g', 7, 64))
		}
		bw.WriteByte('\n')
	}
	fmt.Fprintln(bw, "end")

	fmt.Fprintln(bw, "end")
	return bw.Flush()
}
