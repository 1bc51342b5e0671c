// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jit

import (
	"time"

	"github.com/xyproto/env/v2"
	"go.uber.org/zap"
)

const (
	// EnvNumWarps is the environment variable setting the default number of warps.
	EnvNumWarps = "TILEJIT_NUM_WARPS"
	// EnvBenchReps is the environment variable setting the number of repetitions of a benchmark.
	EnvBenchReps = "TILEJIT_BENCH_REPS"

	defaultNumWarps  = 4
	defaultBenchReps = 3
)

type (
	// Option configures a module and the kernels it declares.
	Option func(*options)

	// BenchmarkFunc measures the latency of a kernel launch.
	// run launches the kernel and waits for its completion.
	BenchmarkFunc func(run func() error) (time.Duration, error)

	options struct {
		logger    *zap.Logger
		numWarps  int
		benchReps int
		bench     BenchmarkFunc
	}
)

// DefaultNumWarps returns the number of warps of a launch when none is given:
// the value of $TILEJIT_NUM_WARPS if set, 4 otherwise.
func DefaultNumWarps() int {
	return env.Int(EnvNumWarps, defaultNumWarps)
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:    zap.NewNop(),
		numWarps:  DefaultNumWarps(),
		benchReps: env.Int(EnvBenchReps, defaultBenchReps),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.bench == nil {
		o.bench = medianLatency(o.benchReps)
	}
	return o
}

// WithLogger sets the logger reporting compilations and autotuning decisions.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithNumWarps sets the number of warps of kernels launched without an explicit number.
func WithNumWarps(numWarps int) Option {
	return func(o *options) {
		o.numWarps = numWarps
	}
}

// WithBenchReps sets the number of measured launches of a benchmark.
func WithBenchReps(reps int) Option {
	return func(o *options) {
		o.benchReps = reps
	}
}

// WithBenchmark replaces the function used by autotuners to measure configurations.
func WithBenchmark(bench BenchmarkFunc) Option {
	return func(o *options) {
		o.bench = bench
	}
}
