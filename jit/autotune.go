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
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gx-org/tilejit/build/fmterr"
	"github.com/gx-org/tilejit/golang/backend/platform"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/singleflight"
)

// Config is a candidate configuration of a kernel for the autotuner.
type Config struct {
	// Meta are meta-parameters added to the meta-parameters of the launch.
	Meta Meta `toml:"meta"`
	// NumWarps is the number of warps of a program instance.
	// The default number of warps is used if it is 0.
	NumWarps int `toml:"num_warps"`
}

func (c Config) String() string {
	names := lo.Keys(c.Meta)
	slices.Sort(names)
	kvs := lo.Map(names, func(name string, _ int) string {
		return fmt.Sprintf("%s=%v", name, c.Meta[name])
	})
	return fmt.Sprintf("{%s num_warps=%d}", strings.Join(kvs, " "), c.NumWarps)
}

// Autotuner selects the fastest configuration of a kernel for every runtime key.
// The runtime key is the value of a subset of the kernel arguments.
// Configurations are benchmarked on the first launch with a new runtime key and
// the fastest one is reused by all subsequent launches with the same key.
type Autotuner struct {
	kernel  *Kernel
	configs []Config
	keys    []string
	keyIdx  []int
	opts    *options

	mu    sync.Mutex
	best  map[string]Config
	group singleflight.Group
}

var _ Launcher = (*Autotuner)(nil)

// NewAutotuner returns an autotuner for a kernel.
// key are names of kernel parameters. If no configuration is given,
// a single configuration with no meta-parameter and the default number
// of warps is used.
func NewAutotuner(kernel *Kernel, configs []Config, key []string) (*Autotuner, error) {
	opts := kernel.fn.mod.opts
	if len(configs) == 0 {
		configs = []Config{{Meta: Meta{}}}
	}
	configs = slices.Clone(configs)
	for i := range configs {
		if configs[i].NumWarps == 0 {
			configs[i].NumWarps = opts.numWarps
		}
	}
	params := kernel.fn.Params()
	keyIdx := make([]int, len(key))
	for i, name := range key {
		keyIdx[i] = slices.Index(params, name)
		if keyIdx[i] < 0 {
			return nil, fmterr.Usagef("autotuning key %s is not a parameter of kernel %s %v", name, kernel.fn.Name(), params)
		}
	}
	return &Autotuner{
		kernel:  kernel,
		configs: configs,
		keys:    slices.Clone(key),
		keyIdx:  keyIdx,
		opts:    opts,
		best:    make(map[string]Config),
	}, nil
}

// Autotune returns a decorator autotuning the kernels of a function.
func Autotune(configs []Config, key ...string) Decorator {
	return func(l Launcher) (Launcher, error) {
		kernel, ok := l.(*Kernel)
		if !ok {
			return nil, fmterr.Usagef("cannot autotune %T: the autotuner must be the first decorator", l)
		}
		return NewAutotuner(kernel, configs, key)
	}
}

// Configs returns the configurations explored by the autotuner.
func (a *Autotuner) Configs() []Config {
	return slices.Clone(a.configs)
}

// keyArg returns the value of an argument in a runtime key.
// Tensors are represented by their data type and dimensions.
func keyArg(arg any) any {
	tensor, ok := arg.(*platform.Tensor)
	if !ok {
		return arg
	}
	return []any{typeTags[tensor.DType()], tensor.Dims()}
}

func (a *Autotuner) runtimeKey(args []any) (string, error) {
	vals := make([]any, len(a.keyIdx))
	for i, idx := range a.keyIdx {
		if idx >= len(args) {
			return "", fmterr.Usagef("missing argument %s of kernel %s", a.keys[i], a.kernel.fn.Name())
		}
		vals[i] = keyArg(args[idx])
	}
	data, err := msgpack.Marshal(vals)
	if err != nil {
		return "", fmterr.Usagef("invalid autotuning key %v: %v", a.keys, err)
	}
	return string(data), nil
}

// Best returns the configuration selected for the runtime key of a set of arguments.
func (a *Autotuner) Best(args []any) (Config, bool) {
	rk, err := a.runtimeKey(args)
	if err != nil {
		return Config{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cfg, ok := a.best[rk]
	return cfg, ok
}

// Invoke launches the kernel with the best configuration for its arguments,
// benchmarking all the configurations first if necessary.
func (a *Autotuner) Invoke(args []any, meta Meta) error {
	if err := a.conflicts(meta); err != nil {
		return err
	}
	rk, err := a.runtimeKey(args)
	if err != nil {
		return err
	}
	a.mu.Lock()
	cfg, ok := a.best[rk]
	a.mu.Unlock()
	if !ok {
		res, err, _ := a.group.Do(rk, func() (any, error) {
			return a.tune(rk, args, meta)
		})
		if err != nil {
			return err
		}
		cfg = res.(Config)
	}
	return a.kernel.Invoke(args, cfg.NumWarps, merge(meta, cfg.Meta))
}

// Launch is an alias for Invoke.
func (a *Autotuner) Launch(args []any, meta Meta) error {
	return a.Invoke(args, meta)
}

func merge(meta, extra Meta) Meta {
	merged := maps.Clone(meta)
	if merged == nil {
		merged = make(Meta, len(extra))
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// conflicts returns an error for every configuration redefining a meta-parameter of the launch.
func (a *Autotuner) conflicts(meta Meta) error {
	var err error
	for i, cfg := range a.configs {
		names := lo.Filter(lo.Keys(cfg.Meta), func(name string, _ int) bool {
			_, ok := meta[name]
			return ok
		})
		if len(names) == 0 {
			continue
		}
		slices.Sort(names)
		err = multierr.Append(err, errors.Errorf("config %d %s: conflicting meta-parameters: %s", i, cfg, strings.Join(names, ", ")))
	}
	if err != nil {
		return fmterr.Usagef("%v: make sure that autotuned meta-parameters are not redefined", err)
	}
	return nil
}

func (a *Autotuner) tune(rk string, args []any, meta Meta) (Config, error) {
	a.mu.Lock()
	cfg, ok := a.best[rk]
	a.mu.Unlock()
	if ok {
		return cfg, nil
	}
	streams := streamsOf(args)
	timings := make([]time.Duration, len(a.configs))
	for i, cfg := range a.configs {
		merged := merge(meta, cfg.Meta)
		run := func() error {
			if err := a.kernel.Invoke(args, cfg.NumWarps, merged); err != nil {
				return err
			}
			for _, s := range streams {
				if err := s.Synchronize(); err != nil {
					return err
				}
			}
			return nil
		}
		var err error
		if timings[i], err = a.opts.bench(run); err != nil {
			return Config{}, err
		}
	}
	best := 0
	for i, t := range timings {
		if t < timings[best] {
			best = i
		}
	}
	cfg = a.configs[best]
	a.mu.Lock()
	a.best[rk] = cfg
	a.mu.Unlock()
	a.opts.logger.Info("kernel autotuned",
		zap.String("kernel", a.kernel.fn.Name()),
		zap.Strings("key", a.keys),
		zap.Durations("timings", timings),
		zap.Stringer("config", cfg),
	)
	return cfg, nil
}

// streamsOf returns the current streams of the devices of the tensor arguments.
func streamsOf(args []any) []*platform.Stream {
	var streams []*platform.Stream
	for _, arg := range args {
		tensor, ok := arg.(*platform.Tensor)
		if !ok {
			continue
		}
		s := tensor.GoDevice().Stream()
		if !slices.Contains(streams, s) {
			streams = append(streams, s)
		}
	}
	return streams
}

// medianLatency returns a benchmark running a launch once to warm up,
// then reps times, and returning the median latency.
func medianLatency(reps int) BenchmarkFunc {
	reps = max(reps, 1)
	return func(run func() error) (time.Duration, error) {
		if err := run(); err != nil {
			return 0, err
		}
		latencies := make([]time.Duration, reps)
		for i := range latencies {
			start := time.Now()
			if err := run(); err != nil {
				return 0, err
			}
			latencies[i] = time.Since(start)
		}
		slices.Sort(latencies)
		return latencies[len(latencies)/2], nil
	}
}
