// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package config holds all recognized options of taxonomy estimation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/scgtax/scgtax/cmd/refdata"
	"gopkg.in/yaml.v2"
)

// Config contains options of searching and estimation.
type Config struct {
	DataDir   string `yaml:"data_dir"`
	RemoteURL string `yaml:"remote_url"`
	Diamond   string `yaml:"diamond"`

	NumWorkers    int     `yaml:"num_workers"`
	NumThreads    int     `yaml:"num_threads"`
	MaxTargetSeqs int     `yaml:"max_target_seqs"`
	Evalue        float64 `yaml:"evalue"`
	MinPctID      float64 `yaml:"min_pct_id"`

	WriteBufferSize int `yaml:"write_buffer_size"`

	MetagenomeMode           bool    `yaml:"metagenome_mode"`
	SCGNameForMetagenomeMode string  `yaml:"scg_name_for_metagenome_mode"`
	JustDoIt                 bool    `yaml:"just_do_it"`
	MaxRedundancy            float64 `yaml:"max_redundancy"`
}

// Default returns the default options.
func Default() Config {
	return Config{
		DataDir:   refdata.DefaultDataDir,
		RemoteURL: refdata.DefaultRemoteURL,
		Diamond:   "diamond",

		NumWorkers:    1,
		NumThreads:    1,
		MaxTargetSeqs: 20,
		Evalue:        1e-05,
		MinPctID:      90,

		WriteBufferSize: 1000,

		MaxRedundancy: 0.2,
	}
}

// LoadFile reads options from a YAML file, on top of the default ones.
func LoadFile(file string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(file)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config file: %s", file)
	}
	if err = yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config file: %s", file)
	}
	return cfg, nil
}

// WriteTo dumps options to a YAML file.
func (c Config) WriteTo(file string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return os.WriteFile(file, data, 0644)
}

// InvalidError reports invalid options.
type InvalidError struct {
	Problems []string
}

func (e *InvalidError) Error() string {
	return "invalid option(s): " + strings.Join(e.Problems, "; ")
}

// Validate checks all options once.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, a ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, a...))
	}

	if c.DataDir == "" {
		add("data_dir should not be empty")
	}
	if c.Diamond == "" {
		add("diamond should not be empty")
	}
	if c.NumWorkers < 1 {
		add("num_workers should be positive: %d", c.NumWorkers)
	}
	if c.NumThreads < 1 {
		add("num_threads should be positive: %d", c.NumThreads)
	}
	if c.MaxTargetSeqs < 1 {
		add("max_target_seqs should be positive: %d", c.MaxTargetSeqs)
	}
	if c.Evalue <= 0 {
		add("evalue should be positive: %g", c.Evalue)
	}
	if c.MinPctID < 0 || c.MinPctID > 100 {
		add("min_pct_id should be in range [0, 100]: %g", c.MinPctID)
	}
	if c.WriteBufferSize < 1 {
		add("write_buffer_size should be positive: %d", c.WriteBufferSize)
	}
	if c.MaxRedundancy < 0 || c.MaxRedundancy > 1 {
		add("max_redundancy should be in range [0, 1]: %g", c.MaxRedundancy)
	}
	if c.SCGNameForMetagenomeMode != "" {
		if !c.MetagenomeMode {
			add("scg_name_for_metagenome_mode is only valid in metagenome mode (--metagenome-mode)")
		} else if !refdata.IsSCG(c.SCGNameForMetagenomeMode) {
			add("unknown SCG %q, available: %s", c.SCGNameForMetagenomeMode, strings.Join(refdata.SCGs(), ", "))
		}
	}

	if len(problems) > 0 {
		return &InvalidError{Problems: problems}
	}
	return nil
}
