package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"

	"github.com/ChizhovVadim/weiqitrain/internal/batch"
	"github.com/ChizhovVadim/weiqitrain/internal/checkpoint"
	"github.com/ChizhovVadim/weiqitrain/internal/config"
	"github.com/ChizhovVadim/weiqitrain/internal/dataset"
	"github.com/ChizhovVadim/weiqitrain/internal/loader"
	"github.com/ChizhovVadim/weiqitrain/internal/ml"
	"github.com/ChizhovVadim/weiqitrain/internal/nn"
	"github.com/ChizhovVadim/weiqitrain/internal/sysinfo"
	"github.com/ChizhovVadim/weiqitrain/internal/train"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var configPath string
	var overrides config.Config
	flag.StringVar(&configPath, "config", "", "Path to JSON config")
	flag.StringVar(&overrides.TrainDir, "td", "", "Path to training chunks")
	flag.StringVar(&overrides.ValidationDir, "vd", "", "Path to validation chunks")
	flag.StringVar(&overrides.StorePath, "store", "", "Path to store directory")
	flag.IntVar(&overrides.Replicas, "threads", 0, "Number of network replicas")
	flag.IntVar(&overrides.MaxSteps, "max-steps", 0, "Number of steps in this run")
	flag.Parse()

	var cfg = config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	applyOverrides(&cfg, overrides)
	cfg.Normalize()
	log.Printf("%+v", cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	outcome, err := run(ctx, cfg, log.Default())
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
	log.Println("training finished",
		"steps", outcome.Steps,
		"diverged", outcome.Diverged,
		"canceled", outcome.Canceled)
	if outcome.Diverged {
		os.Exit(2)
	}
}

func applyOverrides(cfg *config.Config, o config.Config) {
	if o.TrainDir != "" {
		cfg.TrainDir = o.TrainDir
	}
	if o.ValidationDir != "" {
		cfg.ValidationDir = o.ValidationDir
	}
	if o.StorePath != "" {
		cfg.StorePath = o.StorePath
	}
	if o.Replicas != 0 {
		cfg.Replicas = o.Replicas
	}
	if o.MaxSteps != 0 {
		cfg.MaxSteps = o.MaxSteps
	}
}

func run(ctx context.Context, cfg config.Config, logger *log.Logger) (train.Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return train.Outcome{}, err
	}

	store, err := checkpoint.Open(cfg.StorePath)
	if err != nil {
		return train.Outcome{}, err
	}

	var replicas = cfg.Replicas
	if replicas <= 0 {
		replicas = sysinfo.DefaultReplicas()
	}
	var netConfig = nn.Config{
		BoardSize:     cfg.BoardSize,
		InputChannels: cfg.InputChannels,
		HiddenSize:    cfg.HiddenSize,
		Replicas:      replicas,
		Seed:          cfg.Seed,
	}
	var net = nn.New(netConfig)
	netConfig.Replicas = 1
	var swaNet = nn.New(netConfig)

	if err := store.WriteInfo(net.Describe() + "\n" + sysinfo.Describe()); err != nil {
		return train.Outcome{}, err
	}

	var groups = []*ml.ParamGroup{{Params: net.Params(), WeightDecay: cfg.WeightDecay}}
	var opt = ml.NewOptimizer(cfg.Optimizer, groups)
	if opt == nil {
		return train.Outcome{}, fmt.Errorf("%w: %q", config.ErrUnsupportedOptimizer, cfg.Optimizer)
	}

	trainer, err := train.New(train.Options{
		MacroFactor:     cfg.MacroFactor,
		MacroBatchSize:  cfg.MacroBatchSize,
		MaxSteps:        cfg.MaxSteps,
		VerboseSteps:    cfg.VerboseSteps,
		StepsPerEpoch:   cfg.StepsPerEpoch,
		SWASteps:        cfg.SWASteps,
		SWAMaxCount:     cfg.SWAMaxCount,
		ValidationSteps: cfg.ValidationSteps,
		Schedule:        cfg.Schedule(),
		WeightDecay:     cfg.WeightDecay,
		ClipGradNorm:    cfg.FixupBatchNorm,
		LossWeights:     cfg.LossWeights(),
		Logger:          logger,
		MemoryUsage:     sysinfo.ProcessRSS,
	}, net, swaNet, opt, store, queueFactory(cfg, logger))
	if err != nil {
		return train.Outcome{}, err
	}
	return trainer.FitAndStore(ctx)
}

func queueFactory(cfg config.Config, logger *log.Logger) train.QueueFactory {
	return func(ctx context.Context, stop *loader.StopSignal) (train.Queue, train.Queue, error) {
		var rnd = rand.New(rand.NewSource(cfg.Seed))
		var generator = &batch.Generator{BoardSize: cfg.BoardSize, InputChannels: cfg.InputChannels}
		var streams = &dataset.StreamLoader{Logger: logger}

		var trainFiles = dataset.GatherFiles(cfg.TrainDir, cfg.NumChunks, dataset.ByModTime, rnd)
		logger.Println("training chunks", "count", len(trainFiles))
		training, err := loader.New(ctx, loader.Options{
			Files:      dataset.Paths(trainFiles),
			Loader:     streams,
			Parser:     dataset.NewStreamParser(cfg.DownSampleRate, nil, rand.New(rand.NewSource(rnd.Int63()))),
			Batcher:    generator,
			Workers:    cfg.NumWorkers,
			BufferSize: cfg.BufferSize,
			BatchSize:  cfg.MacroBatchSize,
			Stop:       stop,
			Seed:       cfg.Seed,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("training queue: %w", err)
		}
		if cfg.ValidationDir == "" {
			return training, nil, nil
		}

		var validationFiles = dataset.GatherFiles(cfg.ValidationDir, max(1, cfg.NumChunks/10), dataset.ByModTime, rnd)
		var validationSeed int64
		if cfg.Seed != 0 {
			validationSeed = cfg.Seed + 1
		}
		validation, err := loader.New(ctx, loader.Options{
			Files:      dataset.Paths(validationFiles),
			Loader:     streams,
			Parser:     dataset.NewStreamParser(cfg.DownSampleRate, nil, rand.New(rand.NewSource(rnd.Int63()))),
			Batcher:    generator,
			Workers:    max(1, cfg.NumWorkers/4),
			BufferSize: cfg.BufferSize / 10,
			BatchSize:  cfg.MacroBatchSize,
			Stop:       stop,
			Seed:       validationSeed,
			Logger:     logger,
		})
		if errors.Is(err, loader.ErrNoFiles) {
			logger.Println("no validation chunks", "dir", cfg.ValidationDir)
			return training, nil, nil
		}
		if err != nil {
			training.Close()
			return nil, nil, fmt.Errorf("validation queue: %w", err)
		}
		return training, validation, nil
	}
}
