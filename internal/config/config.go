package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/ChizhovVadim/weiqitrain/internal/ml"
)

var ErrUnsupportedOptimizer = errors.New("config: unsupported optimizer")

const minVerboseSteps = 100

// Config mirrors the JSON training configuration.
type Config struct {
	BoardSize      int    `json:"boardsize"`
	InputChannels  int    `json:"input_channels"`
	HiddenSize     int    `json:"hidden_size"`
	BatchSize      int    `json:"batchsize"`
	MacroBatchSize int    `json:"macrobatchsize"`
	MacroFactor    int    `json:"macrofactor"`
	NumWorkers     int    `json:"num_workers"`
	Replicas       int    `json:"replicas"`
	TrainDir       string `json:"train_dir"`
	ValidationDir  string `json:"validation_dir"`
	StorePath      string `json:"store_path"`
	NumChunks      int    `json:"num_chunks"`
	BufferSize     int    `json:"buffersize"`
	DownSampleRate int    `json:"down_sample_rate"`

	StepsPerEpoch   int `json:"steps_per_epoch"`
	VerboseSteps    int `json:"verbose_steps"`
	ValidationSteps int `json:"validation_steps"`
	MaxSteps        int `json:"max_steps"`
	SWASteps        int `json:"swa_steps"`
	SWAMaxCount     int `json:"swa_max_count"`

	Optimizer      string       `json:"optimizer"`
	WeightDecay    float64      `json:"weight_decay"`
	LRSchedule     [][2]float64 `json:"lr_schedule"`
	FixupBatchNorm bool         `json:"fixup_batch_norm"`
	SoftLossWeight float64      `json:"soft_loss_weight"`
	Device         string       `json:"device"`
	Seed           int64        `json:"seed"`
}

func Default() Config {
	return Config{
		BoardSize:       19,
		InputChannels:   38,
		HiddenSize:      64,
		BatchSize:       256,
		MacroBatchSize:  256,
		MacroFactor:     1,
		NumWorkers:      4,
		StorePath:       "workspace",
		NumChunks:       1000,
		BufferSize:      65536,
		DownSampleRate:  16,
		StepsPerEpoch:   1000,
		VerboseSteps:    1000,
		ValidationSteps: 100,
		MaxSteps:        100000,
		SWASteps:        100,
		SWAMaxCount:     16,
		Optimizer:       ml.SGDName,
		WeightDecay:     1e-4,
		LRSchedule:      [][2]float64{{0, 0.02}},
		FixupBatchNorm:  true,
		SoftLossWeight:  0.1,
		Device:          "cpu",
	}
}

// Load overlays the JSON file at path on Default.
func Load(path string) (Config, error) {
	var cfg = Default()
	data, err := os.ReadFile(MapPath(path))
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %v: %w", path, err)
	}
	return cfg, nil
}

// Normalize expands paths and raises the report interval to its minimum.
func (c *Config) Normalize() {
	c.TrainDir = MapPath(c.TrainDir)
	c.ValidationDir = MapPath(c.ValidationDir)
	c.StorePath = MapPath(c.StorePath)
	c.VerboseSteps = max(minVerboseSteps, c.VerboseSteps)
}

func (c *Config) Validate() error {
	if c.MacroBatchSize <= 0 || c.MacroFactor <= 0 {
		return fmt.Errorf("config: macrobatchsize %v and macrofactor %v must be positive", c.MacroBatchSize, c.MacroFactor)
	}
	if c.MacroBatchSize*c.MacroFactor != c.BatchSize {
		return fmt.Errorf("config: macrobatchsize %v * macrofactor %v != batchsize %v",
			c.MacroBatchSize, c.MacroFactor, c.BatchSize)
	}
	if c.Optimizer != ml.SGDName && c.Optimizer != ml.AdamName {
		return fmt.Errorf("%w: %q", ErrUnsupportedOptimizer, c.Optimizer)
	}
	if c.Device != "" && c.Device != "cpu" {
		return fmt.Errorf("config: unsupported device %q", c.Device)
	}
	if c.TrainDir == "" {
		return errors.New("config: train_dir is empty")
	}
	if c.BoardSize <= 0 || c.InputChannels <= 6 {
		return fmt.Errorf("config: boardsize %v, input_channels %v", c.BoardSize, c.InputChannels)
	}
	for _, n := range []int{c.StepsPerEpoch, c.VerboseSteps, c.SWASteps, c.MaxSteps} {
		if n <= 0 {
			return fmt.Errorf("config: step intervals must be positive: %+v", c)
		}
	}
	for i := 1; i < len(c.LRSchedule); i++ {
		if c.LRSchedule[i][0] < c.LRSchedule[i-1][0] {
			return errors.New("config: lr_schedule must be ordered by step")
		}
	}
	return nil
}

func (c *Config) Schedule() ml.Schedule {
	var result = make(ml.Schedule, len(c.LRSchedule))
	for i, p := range c.LRSchedule {
		result[i] = ml.RatePoint{Step: int(p[0]), Rate: p[1]}
	}
	return result
}

func (c *Config) LossWeights() map[string]float64 {
	return map[string]float64{"soft": c.SoftLossWeight}
}

// MapPath expands ~/ to the home directory and ./ to the executable directory.
func MapPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		curUser, err := user.Current()
		if err != nil {
			return path
		}
		return filepath.Join(curUser.HomeDir, strings.TrimPrefix(path, "~/"))
	}
	if strings.HasPrefix(path, "./") {
		var exePath, err = os.Executable()
		if err != nil {
			return path
		}
		return filepath.Join(filepath.Dir(exePath), strings.TrimPrefix(path, "./"))
	}
	return path
}
