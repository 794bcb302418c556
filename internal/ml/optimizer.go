package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	SGDName  = "SGD"
	AdamName = "Adam"

	sgdMomentum = 0.9
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEps     = 1e-8
)

type Optimizer interface {
	Name() string
	Groups() []*ParamGroup
	// Step applies the accumulated gradients. Gradients are left untouched.
	Step()
	ZeroGrad()
	State() OptimizerState
	LoadState(state OptimizerState) error
}

// OptimizerState is the serializable part of an optimizer.
type OptimizerState struct {
	Name  string
	Steps int
	Slots map[string][]float64
}

// NewOptimizer returns nil for an unknown name.
func NewOptimizer(name string, groups []*ParamGroup) Optimizer {
	switch name {
	case SGDName:
		return &SGD{
			groups:   groups,
			Momentum: sgdMomentum,
			Nesterov: true,
			buffers:  make(map[*Param][]float64),
		}
	case AdamName:
		return &Adam{
			groups: groups,
			Beta1:  adamBeta1,
			Beta2:  adamBeta2,
			Eps:    adamEps,
			m:      make(map[*Param][]float64),
			v:      make(map[*Param][]float64),
		}
	}
	return nil
}

// SetRate updates learning rate and weight decay of every group.
func SetRate(opt Optimizer, lr, weightDecay float64) {
	for _, g := range opt.Groups() {
		g.LR = lr
		g.WeightDecay = weightDecay
	}
}

// LR returns the learning rate of the first group.
func LR(opt Optimizer) float64 {
	var groups = opt.Groups()
	if len(groups) == 0 {
		return 0
	}
	return groups[0].LR
}

type SGD struct {
	Momentum float64
	Nesterov bool
	groups   []*ParamGroup
	steps    int
	buffers  map[*Param][]float64
}

func (opt *SGD) Name() string          { return SGDName }
func (opt *SGD) Groups() []*ParamGroup { return opt.groups }

func (opt *SGD) ZeroGrad() {
	for _, g := range opt.groups {
		ZeroGrad(g.Params)
	}
}

func (opt *SGD) Step() {
	opt.steps++
	for _, group := range opt.groups {
		for _, p := range group.Params {
			var d = decayedGrad(p, group.WeightDecay)
			var buf, ok = opt.buffers[p]
			if !ok {
				buf = append([]float64(nil), d...)
				opt.buffers[p] = buf
			} else {
				floats.Scale(opt.Momentum, buf)
				floats.Add(buf, d)
			}
			if opt.Nesterov {
				floats.AddScaled(d, opt.Momentum, buf)
			} else {
				copy(d, buf)
			}
			floats.AddScaled(p.Data, -group.LR, d)
		}
	}
}

func (opt *SGD) State() OptimizerState {
	var slots = make(map[string][]float64)
	for p, buf := range opt.buffers {
		slots[p.Name+"/momentum"] = append([]float64(nil), buf...)
	}
	return OptimizerState{Name: SGDName, Steps: opt.steps, Slots: slots}
}

func (opt *SGD) LoadState(state OptimizerState) error {
	if state.Name != SGDName {
		return fmt.Errorf("optimizer state %v does not match %v", state.Name, SGDName)
	}
	opt.steps = state.Steps
	return loadSlots(opt.groups, state.Slots, map[string]map[*Param][]float64{
		"momentum": opt.buffers,
	})
}

type Adam struct {
	Beta1  float64
	Beta2  float64
	Eps    float64
	groups []*ParamGroup
	steps  int
	m, v   map[*Param][]float64
}

func (opt *Adam) Name() string          { return AdamName }
func (opt *Adam) Groups() []*ParamGroup { return opt.groups }

func (opt *Adam) ZeroGrad() {
	for _, g := range opt.groups {
		ZeroGrad(g.Params)
	}
}

func (opt *Adam) Step() {
	opt.steps++
	var bc1 = 1 - math.Pow(opt.Beta1, float64(opt.steps))
	var bc2 = 1 - math.Pow(opt.Beta2, float64(opt.steps))
	for _, group := range opt.groups {
		for _, p := range group.Params {
			var d = decayedGrad(p, group.WeightDecay)
			var m = slot(opt.m, p)
			var v = slot(opt.v, p)
			for i, g := range d {
				m[i] = opt.Beta1*m[i] + (1-opt.Beta1)*g
				v[i] = opt.Beta2*v[i] + (1-opt.Beta2)*g*g
				var mHat = m[i] / bc1
				var vHat = v[i] / bc2
				p.Data[i] -= group.LR * mHat / (math.Sqrt(vHat) + opt.Eps)
			}
		}
	}
}

func (opt *Adam) State() OptimizerState {
	var slots = make(map[string][]float64)
	for p, m := range opt.m {
		slots[p.Name+"/m"] = append([]float64(nil), m...)
	}
	for p, v := range opt.v {
		slots[p.Name+"/v"] = append([]float64(nil), v...)
	}
	return OptimizerState{Name: AdamName, Steps: opt.steps, Slots: slots}
}

func (opt *Adam) LoadState(state OptimizerState) error {
	if state.Name != AdamName {
		return fmt.Errorf("optimizer state %v does not match %v", state.Name, AdamName)
	}
	opt.steps = state.Steps
	return loadSlots(opt.groups, state.Slots, map[string]map[*Param][]float64{
		"m": opt.m,
		"v": opt.v,
	})
}

// decayedGrad returns grad + weightDecay*data as a new slice.
func decayedGrad(p *Param, weightDecay float64) []float64 {
	var d = append([]float64(nil), p.Grad...)
	if weightDecay != 0 {
		floats.AddScaled(d, weightDecay, p.Data)
	}
	return d
}

func slot(slots map[*Param][]float64, p *Param) []float64 {
	var s, ok = slots[p]
	if !ok {
		s = make([]float64, len(p.Data))
		slots[p] = s
	}
	return s
}

func loadSlots(
	groups []*ParamGroup,
	saved map[string][]float64,
	targets map[string]map[*Param][]float64,
) error {
	for _, g := range groups {
		for _, p := range g.Params {
			for suffix, target := range targets {
				var data, ok = saved[p.Name+"/"+suffix]
				if !ok {
					continue
				}
				if len(data) != len(p.Data) {
					return fmt.Errorf("optimizer slot %v/%v: size %v, want %v", p.Name, suffix, len(data), len(p.Data))
				}
				target[p] = append([]float64(nil), data...)
			}
		}
	}
	return nil
}
