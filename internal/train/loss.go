package train

import (
	"fmt"
	"strings"

	"github.com/ChizhovVadim/weiqitrain/internal/ml"
)

// RunningLoss sums loss terms between two reports.
type RunningLoss struct {
	names  []string
	values map[string]float64
	total  float64
}

func (r *RunningLoss) Add(terms []ml.LossTerm) {
	if r.values == nil {
		r.values = make(map[string]float64)
	}
	for _, term := range terms {
		if _, ok := r.values[term.Name]; !ok {
			r.names = append(r.names, term.Name)
		}
		r.values[term.Name] += term.Value
		r.total += term.Value
	}
}

func (r *RunningLoss) Total() float64 {
	return r.total
}

func (r *RunningLoss) Value(name string) float64 {
	return r.values[name]
}

func (r *RunningLoss) Reset() {
	for k := range r.values {
		r.values[k] = 0
	}
	r.total = 0
}

// Format prints the total and every term divided by n, in the order they first appeared.
func (r *RunningLoss) Format(n int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\tloss: %.4f", r.total/float64(n))
	for _, name := range r.names {
		fmt.Fprintf(&sb, "\n\t%v: %.4f", strings.ReplaceAll(name, "_", " "), r.values[name]/float64(n))
	}
	return sb.String()
}
