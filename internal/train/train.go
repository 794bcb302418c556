package train

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ChizhovVadim/weiqitrain/internal/loader"
	"github.com/ChizhovVadim/weiqitrain/internal/ml"
)

const maxGradNorm = 400.0

type Trainer struct {
	opts   Options
	net    Network
	swaNet Network
	opt    ml.Optimizer
	store  Store
	queues QueueFactory
	logger *log.Logger

	state State
	phase Phase
}

func New(
	opts Options,
	net, swaNet Network,
	opt ml.Optimizer,
	store Store,
	queues QueueFactory,
) (*Trainer, error) {
	if opt == nil {
		return nil, errors.New("train: no optimizer")
	}
	if opts.MacroFactor <= 0 || opts.VerboseSteps <= 0 || opts.StepsPerEpoch <= 0 || opts.SWASteps <= 0 {
		return nil, fmt.Errorf("train: invalid step options %+v", opts)
	}
	if opts.Device == nil {
		opts.Device = CPU{}
	}
	var logger = opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Trainer{
		opts:   opts,
		net:    net,
		swaNet: swaNet,
		opt:    opt,
		store:  store,
		queues: queues,
		logger: logger,
	}, nil
}

func (t *Trainer) State() State {
	return t.state
}

func (t *Trainer) Phase() Phase {
	return t.phase
}

func (t *Trainer) setPhase(p Phase) {
	t.phase = p
	t.logger.Println("phase", p, "steps", t.state.Steps)
}

// FitAndStore trains until max steps, divergence or ctx cancellation.
func (t *Trainer) FitAndStore(ctx context.Context) (Outcome, error) {
	t.setPhase(PhaseInit)
	if err := t.loadStatus(); err != nil {
		return Outcome{}, err
	}

	var stop = loader.NewStopSignal()
	training, validation, err := t.queues(ctx, stop)
	if err != nil {
		return Outcome{}, err
	}
	defer func() {
		stop.Set()
		training.Close()
		if validation != nil {
			validation.Close()
		}
	}()

	if _, err := training.Pull(ctx); err != nil {
		return Outcome{}, fmt.Errorf("warm up training queue: %w", err)
	}
	if validation != nil {
		if _, err := validation.Pull(ctx); err != nil {
			return Outcome{}, fmt.Errorf("warm up validation queue: %w", err)
		}
	}

	t.setPhase(PhaseRunning)
	outcome, runErr := t.run(ctx, training, validation)

	t.setPhase(PhaseFinalizing)
	stop.Set()
	if _, err := training.Pull(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, loader.ErrEndOfIteration) {
		t.logger.Println("drain training queue", "err", err)
	}
	t.setPhase(PhaseStopped)
	return outcome, runErr
}

// loadStatus restores the last checkpoint and applies the learning rate for the resumed step.
// The learning rate is applied even when the optimizer state cannot be restored.
func (t *Trainer) loadStatus() error {
	ml.AccumulateSWA(t.swaNet.Params(), t.net.Params(), 0)

	var state State
	found, err := t.store.LoadStatus(&state)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	var restoreErr error
	if found {
		t.state = state
		if err := ml.Restore(t.net.Params(), state.Model); err != nil {
			restoreErr = fmt.Errorf("restore model: %w", err)
		} else if err := ml.Restore(t.swaNet.Params(), state.SWA); err != nil {
			restoreErr = fmt.Errorf("restore swa model: %w", err)
		} else if err := t.opt.LoadState(state.Optimizer); err != nil {
			restoreErr = fmt.Errorf("restore optimizer: %w", err)
		}
	}

	var lr = t.opts.Schedule.Rate(t.state.Steps)
	ml.SetRate(t.opt, lr, t.opts.WeightDecay)
	t.net.UpdateParameters(t.state.Steps)
	t.swaNet.UpdateParameters(t.state.Steps)
	if found {
		t.logger.Println("resume",
			"steps", t.state.Steps,
			"swaCount", t.state.SWACount,
			"lr", lr)
	}
	return restoreErr
}

func (t *Trainer) run(ctx context.Context, training, validation Queue) (Outcome, error) {
	var initSteps = t.state.Steps
	var scale = 1 / float64(t.opts.MacroFactor)
	var running RunningLoss
	var microSteps int
	var lastCommit = -1
	var clock = time.Now()

	for {
		if ctx.Err() != nil {
			t.logger.Println("training canceled", "steps", t.state.Steps)
			return Outcome{Steps: t.state.Steps, Canceled: true}, nil
		}
		b, err := training.Pull(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return Outcome{Steps: t.state.Steps}, err
		}
		b = t.opts.Device.Place(b)

		terms, err := t.net.Forward(b, t.opts.LossWeights)
		if err != nil {
			return Outcome{Steps: t.state.Steps}, err
		}
		for i := range terms {
			terms[i].Value *= scale
		}
		t.net.Backward(scale)
		running.Add(terms)
		microSteps++

		if !ml.IsFinite(running.Total()) {
			t.setPhase(PhaseDiverged)
			t.logger.Println("the loss is not finite, stop the training", "loss", running.Total())
			return Outcome{Steps: t.state.Steps, Diverged: true}, nil
		}

		if microSteps%t.opts.MacroFactor != 0 {
			continue
		}

		if t.opts.ClipGradNorm {
			ml.ClipGradNorm(t.net.Params(), maxGradNorm)
		}
		t.opt.Step()
		t.opt.ZeroGrad()
		t.state.Steps++
		t.net.UpdateParameters(t.state.Steps)

		if t.state.Steps%t.opts.VerboseSteps == 0 {
			var elapsed = time.Since(clock).Seconds()
			clock = time.Now()
			t.report(&running, elapsed)
			running.Reset()
		}

		if t.state.Steps%t.opts.SWASteps == 0 {
			t.state.SWACount = min(t.state.SWACount+1, t.opts.SWAMaxCount)
			ml.AccumulateSWA(t.swaNet.Params(), t.net.Params(), t.state.SWACount)
		}

		ml.SetRate(t.opt, t.opts.Schedule.Rate(t.state.Steps), t.opts.WeightDecay)

		if t.state.Steps%t.opts.StepsPerEpoch == 0 {
			if err := t.checkpoint(ctx, validation); err != nil {
				return Outcome{Steps: t.state.Steps}, err
			}
			lastCommit = t.state.Steps
		}

		if t.state.Steps >= initSteps+t.opts.MaxSteps {
			t.setPhase(PhaseMaxStepsReached)
			if lastCommit != t.state.Steps {
				if err := t.checkpoint(ctx, validation); err != nil {
					return Outcome{Steps: t.state.Steps}, err
				}
			}
			return Outcome{Steps: t.state.Steps}, nil
		}
	}
}

func (t *Trainer) report(running *RunningLoss, elapsed float64) {
	var speed float64
	if elapsed > 0 {
		speed = float64(t.opts.VerboseSteps) / elapsed
	}
	var text = fmt.Sprintf("steps: %d -> speed: %.2f, opt: %v, learning rate: %v, batch size: %d\n",
		t.state.Steps,
		speed,
		t.opt.Name(),
		ml.LR(t.opt),
		t.opts.MacroBatchSize*t.opts.MacroFactor)
	text += running.Format(t.opts.VerboseSteps)
	if t.opts.MemoryUsage != nil {
		if rss, err := t.opts.MemoryUsage(); err == nil {
			text += fmt.Sprintf("\n\tmemory: %d MiB", rss>>20)
		}
	}
	t.logger.Print(text)
	if err := t.store.AppendLog(text); err != nil {
		t.logger.Println("append training log", "err", err)
	}
}

func (t *Trainer) checkpoint(ctx context.Context, validation Queue) error {
	t.validate(ctx, validation)

	t.state.Model = ml.Snapshot(t.net.Params())
	t.state.SWA = ml.Snapshot(t.swaNet.Params())
	t.state.Optimizer = t.opt.State()
	t.swaNet.UpdateParameters(t.state.Steps)
	if err := t.store.Commit(t.state.Steps, &t.state, t.net, t.swaNet); err != nil {
		return fmt.Errorf("checkpoint at %v steps: %w", t.state.Steps, err)
	}
	t.logger.Println("checkpoint saved", "steps", t.state.Steps)
	return nil
}

// validate logs the average loss of the live model over ValidationSteps batches.
// It never affects checkpointing.
func (t *Trainer) validate(ctx context.Context, validation Queue) {
	if validation == nil || t.opts.ValidationSteps <= 0 {
		return
	}
	var running RunningLoss
	for i := 0; i < t.opts.ValidationSteps; i++ {
		b, err := validation.Pull(ctx)
		if err != nil {
			t.logger.Println("validation", "err", err)
			return
		}
		terms, err := t.net.Forward(t.opts.Device.Place(b), t.opts.LossWeights)
		if err != nil {
			t.logger.Println("validation", "err", err)
			return
		}
		running.Add(terms)
	}
	t.logger.Println("validation",
		"steps", t.state.Steps,
		"loss", running.Total()/float64(t.opts.ValidationSteps))
}
