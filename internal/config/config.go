// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config loads settings from an optional YAML file, overrides them
// from VIEWSYNTH_* environment variables and fills in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/kelseyhightower/envconfig"
	"github.com/pbnjay/memory"
	"gopkg.in/yaml.v3"

	"github.com/mlnoga/viewsynth/internal/warp"
)

const EnvPrefix = "VIEWSYNTH"

type Config struct {
	Dataset   string        `yaml:"dataset"`
	OutputDir string        `yaml:"outputDir" split_words:"true"`
	LogFile   string        `yaml:"logFile" split_words:"true"`
	LogLevel  string        `yaml:"logLevel" split_words:"true"`
	Tolerance float64       `yaml:"tolerance"`
	Median    *int          `yaml:"median"`
	Threads   int           `yaml:"threads"`
	MemoryMB  int64         `yaml:"memoryMB" envconfig:"MEMORY_MB"`
	Sweep     SweepOptions  `yaml:"sweep"`
	FFmpeg    FFmpegOptions `yaml:"ffmpeg"`
	Server    ServerOptions `yaml:"server"`
}

type SweepOptions struct {
	Start *float64 `yaml:"start"`
	End   *float64 `yaml:"end"`
	Step  float64  `yaml:"step"`
	FPS   float64  `yaml:"fps"`
}

type FFmpegOptions struct {
	Binary string `yaml:"binary"`
	Codec  string `yaml:"codec"`
}

type ServerOptions struct {
	BindAddress string `yaml:"bindAddress" split_words:"true"`
	Port        int32  `yaml:"port"`
	Sandbox     string `yaml:"sandbox"` // directory to chroot into, empty for none
}

// Verify config and set defaults
func verifyConfig(config *Config) error {
	if config == nil {
		return errors.New("cannot verify config, config is nil")
	}

	if config.OutputDir == "" {
		config.OutputDir = "results"
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	if config.Tolerance == 0 {
		config.Tolerance = warp.DefaultTolerance
	} else if config.Tolerance < 0 {
		return fmt.Errorf("tolerance %g must not be negative", config.Tolerance)
	}

	if config.Median == nil {
		defaultVal := warp.DefaultMedianSize
		config.Median = &defaultVal
	} else if *config.Median < 0 {
		return fmt.Errorf("median size %d must not be negative", *config.Median)
	}

	if config.Threads <= 0 {
		config.Threads = runtime.GOMAXPROCS(0)
	}

	if config.MemoryMB <= 0 {
		config.MemoryMB = int64(memory.TotalMemory()*7/10) / 1024 / 1024
	}

	if config.Sweep.Start == nil {
		defaultVal := -0.3
		config.Sweep.Start = &defaultVal
	}

	if config.Sweep.End == nil {
		defaultVal := 1.3
		config.Sweep.End = &defaultVal
	}

	if config.Sweep.Step == 0 {
		config.Sweep.Step = 0.1
	} else if config.Sweep.Step < 0 {
		return fmt.Errorf("sweep step %g must be positive", config.Sweep.Step)
	}

	if config.Sweep.FPS == 0 {
		config.Sweep.FPS = 10
	} else if config.Sweep.FPS < 0 {
		return fmt.Errorf("frame rate %g must be positive", config.Sweep.FPS)
	}

	if config.FFmpeg.Binary == "" {
		config.FFmpeg.Binary = "ffmpeg"
	}

	if config.FFmpeg.Codec == "" {
		config.FFmpeg.Codec = "libx264"
	}

	if config.Server.BindAddress == "" {
		config.Server.BindAddress = "127.0.0.1"
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}

	return nil
}

// Reads the config file at path, if any, applies environment overrides and defaults
func GetConfig(path string) (Config, error) {
	config := Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	// Override with env variables if they are passed in
	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return Config{}, err
	}

	if err := verifyConfig(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Render parameters from the config
func (c Config) Params() warp.Params {
	median := warp.DefaultMedianSize
	if c.Median != nil {
		median = *c.Median
	}
	return warp.Params{Tolerance: c.Tolerance, MedianSize: median, Threads: c.Threads}
}
