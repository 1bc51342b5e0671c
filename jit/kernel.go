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

	"github.com/gx-org/tilejit/build/builder"
	"github.com/gx-org/tilejit/build/fmterr"
	"github.com/gx-org/tilejit/golang/backend"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
)

// GridFunc returns the number of programs along each axis of the launch grid
// given the meta-parameters of the launch. It returns 1 to 3 entries.
type GridFunc func(meta Meta) []int

// Kernel launches the specializations of a kernel function over a grid.
type Kernel struct {
	fn   *Func
	grid GridFunc
}

var _ Launcher = (*Kernel)(nil)

// NewKernel returns a kernel launching a function over a grid.
func NewKernel(fn *Func, grid GridFunc) *Kernel {
	return &Kernel{fn: fn, grid: grid}
}

// Func returns the function of the kernel.
func (k *Kernel) Func() *Func {
	return k.fn
}

// Lookup returns the binary of a specialization if it has already been compiled.
func (k *Kernel) Lookup(key Key) (*Binary, bool) {
	return k.fn.cache.Lookup(key)
}

// Key returns the specialization key of a launch.
func (k *Kernel) Key(args []any, numWarps int, meta Meta) (Key, error) {
	spec, err := specialize(args, numWarps, meta)
	if err != nil {
		return Key{}, err
	}
	return spec.key, nil
}

// Warmup compiles the specialization of a launch without running it.
func (k *Kernel) Warmup(args []any, numWarps int, meta Meta) (*Binary, error) {
	spec, err := specialize(args, numWarps, meta)
	if err != nil {
		return nil, err
	}
	return k.binary(spec, numWarps, meta)
}

// Invoke launches the kernel on the current stream of the device of its first
// tensor argument. It returns without waiting for the kernel to complete.
func (k *Kernel) Invoke(args []any, numWarps int, meta Meta) error {
	spec, err := specialize(args, numWarps, meta)
	if err != nil {
		return err
	}
	bin, err := k.binary(spec, numWarps, meta)
	if err != nil {
		return err
	}
	params, err := pack(args, spec.types)
	if err != nil {
		return err
	}
	grid, err := gridOf(k.grid(meta))
	if err != nil {
		return err
	}
	return bin.Launch(spec.dev.Stream(), params, grid)
}

// Launch invokes the kernel with the default number of warps.
func (k *Kernel) Launch(args []any, meta Meta) error {
	return k.Invoke(args, k.fn.mod.opts.numWarps, meta)
}

func gridOf(dims []int) ([3]int, error) {
	grid := [3]int{1, 1, 1}
	if len(dims) < 1 || len(dims) > 3 {
		return grid, fmterr.Usagef("grid %v must have 1 to 3 dimensions", dims)
	}
	for i, d := range dims {
		if d < 1 {
			return grid, fmterr.Usagef("grid %v: dimension %d must be at least 1", dims, i)
		}
		grid[i] = d
	}
	return grid, nil
}

// binary returns the binary of a specialization, compiling it on a cache miss.
func (k *Kernel) binary(spec *specialization, numWarps int, meta Meta) (*Binary, error) {
	logger := k.fn.mod.opts.logger
	bin, hit, err := k.fn.cache.get(spec.key, func() (*Binary, error) {
		start := time.Now()
		mod, err := builder.Build(k.fn, builder.Specialization{
			Params: spec.types,
			Attrs:  spec.attrs,
			Meta:   maps.Clone(meta),
		})
		if err != nil {
			return nil, err
		}
		compiled, err := backend.New(spec.dev.GoPlatform()).Compile(mod, spec.dev, numWarps)
		if err != nil {
			return nil, err
		}
		logger.Info("kernel compiled",
			zap.String("kernel", k.fn.Name()),
			zap.String("types", spec.key.Types),
			zap.String("attrs", spec.key.Attrs),
			zap.Int("num_warps", numWarps),
			zap.Stringer("device", spec.dev),
			zap.Duration("duration", time.Since(start)),
		)
		return &Binary{compiled: compiled}, nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot compile kernel %s", k.fn.Name())
	}
	if hit {
		logger.Debug("kernel cache hit", zap.String("kernel", k.fn.Name()), zap.Stringer("key", spec.key))
	}
	return bin, nil
}
