package config

import (
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "cfg.json")
	var text = `{
		"boardsize": 9,
		"batchsize": 128,
		"macrobatchsize": 32,
		"macrofactor": 4,
		"train_dir": "/data/train",
		"optimizer": "Adam",
		"lr_schedule": [[0, 0.1], [5000, 0.01]],
		"verbose_steps": 10
	}`
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.BoardSize != 9 || cfg.InputChannels != Default().InputChannels {
		t.Errorf("unexpected sizes %+v", cfg)
	}
	if cfg.VerboseSteps != minVerboseSteps {
		t.Errorf("VerboseSteps = %v, want %v", cfg.VerboseSteps, minVerboseSteps)
	}
	var s = cfg.Schedule()
	if s.Rate(4999) != 0.1 || s.Rate(5000) != 0.01 {
		t.Errorf("Schedule() = %v", s)
	}
	if cfg.LossWeights()["soft"] != Default().SoftLossWeight {
		t.Errorf("LossWeights() = %v", cfg.LossWeights())
	}
}

func TestValidate(t *testing.T) {
	var valid = Default()
	valid.TrainDir = "/data"
	tests := []struct {
		name    string
		change  func(c *Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"batch mismatch", func(c *Config) { c.MacroFactor = 3 }, errAny},
		{"unknown optimizer", func(c *Config) { c.Optimizer = "RMSprop" }, ErrUnsupportedOptimizer},
		{"no train dir", func(c *Config) { c.TrainDir = "" }, errAny},
		{"gpu", func(c *Config) { c.Device = "cuda" }, errAny},
		{"unordered schedule", func(c *Config) { c.LRSchedule = [][2]float64{{10, 0.1}, {5, 0.2}} }, errAny},
		{"zero steps per epoch", func(c *Config) { c.StepsPerEpoch = 0 }, errAny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c = valid
			tt.change(&c)
			var err = c.Validate()
			switch {
			case tt.wantErr == nil && err != nil:
				t.Errorf("Validate() = %v", err)
			case tt.wantErr == errAny && err == nil:
				t.Errorf("Validate() accepted %+v", c)
			case tt.wantErr != nil && tt.wantErr != errAny && !errors.Is(err, tt.wantErr):
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

var errAny = errors.New("any error")

func TestMapPath(t *testing.T) {
	curUser, err := user.Current()
	if err != nil {
		t.Skip(err)
	}
	if got := MapPath("~/go/data"); got != filepath.Join(curUser.HomeDir, "go", "data") {
		t.Errorf("MapPath(~/go/data) = %v", got)
	}
	if got := MapPath("/abs/path"); got != "/abs/path" {
		t.Errorf("MapPath(/abs/path) = %v", got)
	}
}
