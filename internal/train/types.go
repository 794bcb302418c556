package train

import (
	"context"
	"io"
	"log"

	"github.com/ChizhovVadim/weiqitrain/internal/batch"
	"github.com/ChizhovVadim/weiqitrain/internal/checkpoint"
	"github.com/ChizhovVadim/weiqitrain/internal/loader"
	"github.com/ChizhovVadim/weiqitrain/internal/ml"
)

type Network interface {
	// Forward returns the named loss terms of b; gradients stay pending.
	Forward(b *batch.MacroBatch, weights map[string]float64) ([]ml.LossTerm, error)
	// Backward adds scale times the pending gradients to the parameter gradients.
	Backward(scale float64)
	Params() []*ml.Param
	UpdateParameters(steps int)
	Export(w io.Writer) error
}

type Queue interface {
	Pull(ctx context.Context) (*batch.MacroBatch, error)
	Close() error
}

// QueueFactory builds the training queue and an optional validation queue
// whose workers observe stop.
type QueueFactory func(ctx context.Context, stop *loader.StopSignal) (training, validation Queue, err error)

type Store interface {
	LoadStatus(v any) (bool, error)
	Commit(steps int, status any, model, swa checkpoint.Exporter) error
	AppendLog(text string) error
}

// Device places a batch where the network computes.
type Device interface {
	Place(b *batch.MacroBatch) *batch.MacroBatch
}

type CPU struct{}

func (CPU) Place(b *batch.MacroBatch) *batch.MacroBatch { return b }

// State is everything a resumed run needs.
type State struct {
	Steps     int
	SWACount  int
	Model     map[string][]float64
	SWA       map[string][]float64
	Optimizer ml.OptimizerState
}

type Options struct {
	MacroFactor     int
	MacroBatchSize  int
	MaxSteps        int
	VerboseSteps    int
	StepsPerEpoch   int
	SWASteps        int
	SWAMaxCount     int
	ValidationSteps int
	Schedule        ml.Schedule
	WeightDecay     float64
	// ClipGradNorm limits the global gradient norm to maxGradNorm.
	ClipGradNorm bool
	LossWeights  map[string]float64
	Device       Device
	Logger       *log.Logger
	// MemoryUsage reports resident memory in bytes for the verbose report.
	MemoryUsage func() (uint64, error)
}

type Phase int

const (
	PhaseInit Phase = iota
	PhaseRunning
	PhaseDiverged
	PhaseMaxStepsReached
	PhaseFinalizing
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "INIT"
	case PhaseRunning:
		return "RUNNING"
	case PhaseDiverged:
		return "DIVERGED"
	case PhaseMaxStepsReached:
		return "MAX_STEPS_REACHED"
	case PhaseFinalizing:
		return "FINALIZING"
	case PhaseStopped:
		return "STOPPED"
	}
	return "UNKNOWN"
}

// Outcome describes how a run ended.
type Outcome struct {
	Steps    int
	Diverged bool
	Canceled bool
}
