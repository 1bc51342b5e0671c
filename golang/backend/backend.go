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

// Package backend compiles kernel modules into programs executed by the
// simulated accelerator of the native Go platform.
package backend

import (
	"github.com/gx-org/tilejit/build/fmterr"
	"github.com/gx-org/tilejit/build/ir"
	"github.com/gx-org/tilejit/golang/backend/kernels"
	"github.com/gx-org/tilejit/golang/backend/platform"
	"github.com/pkg/errors"
)

// WarpSize is the number of threads in a warp.
const WarpSize = 32

// Compiler compiles IR modules for the devices of a platform.
type Compiler struct {
	plat *platform.Platform
}

// New returns a compiler for a platform.
func New(plat *platform.Platform) *Compiler {
	return &Compiler{plat: plat}
}

// Platform targeted by the compiler.
func (c *Compiler) Platform() *platform.Platform {
	return c.plat
}

// Compiled is a module compiled for a device.
type Compiled struct {
	mod       *ir.Module
	fn        *ir.Function
	dev       *platform.Device
	numWarps  int
	sharedMem int

	offsets []int
	argSize int
	prog    *program
}

var _ platform.Program = (*Compiled)(nil)

// Compile verifies a module and compiles its kernel for a device.
// The module must contain a single function, the kernel entry point.
// Errors are returned as a *fmterr.BackendCompilationError.
func (c *Compiler) Compile(mod *ir.Module, dev *platform.Device, numWarps int) (*Compiled, error) {
	if dev == nil {
		return nil, &fmterr.BackendCompilationError{Err: errors.Errorf("no target device")}
	}
	if dev.Platform() != c.plat {
		return nil, &fmterr.BackendCompilationError{Err: errors.Errorf("device %s does not belong to the platform of the compiler", dev)}
	}
	fn, err := verify(mod, numWarps)
	if err != nil {
		return nil, &fmterr.BackendCompilationError{Err: err}
	}
	prog, err := lower(fn)
	if err != nil {
		return nil, &fmterr.BackendCompilationError{Err: err}
	}
	params := fn.Params()
	types := make([]ir.Type, len(params))
	for i, p := range params {
		types[i] = p.Type()
	}
	offsets, size := ir.Layout(types)
	return &Compiled{
		mod:       mod,
		fn:        fn,
		dev:       dev,
		numWarps:  numWarps,
		sharedMem: sharedMemory(fn),
		offsets:   offsets,
		argSize:   size,
		prog:      prog,
	}, nil
}

// sharedMemory returns the number of bytes required to exchange the
// largest block value between the threads of a program.
func sharedMemory(fn *ir.Function) int {
	largest := 0
	for _, block := range fn.Blocks() {
		for _, inst := range block.Instructions() {
			typ := inst.Type()
			if !typ.IsBlock() {
				continue
			}
			largest = max(largest, typ.Size()*typ.ByteSize())
		}
	}
	return largest
}

// Name of the kernel.
func (c *Compiled) Name() string {
	return c.fn.Name()
}

// Module from which the program has been compiled.
func (c *Compiled) Module() *ir.Module {
	return c.mod
}

// Device for which the program has been compiled.
func (c *Compiled) Device() *platform.Device {
	return c.dev
}

// NumWarps returns the number of warps of a program instance.
func (c *Compiled) NumWarps() int {
	return c.numWarps
}

// Threads returns the thread geometry of a program instance.
func (c *Compiled) Threads() [3]int {
	return [3]int{c.numWarps * WarpSize, 1, 1}
}

// SharedMem returns the number of bytes of shared memory of a program instance.
func (c *Compiled) SharedMem() int {
	return c.sharedMem
}

// ArgsSize returns the number of bytes of the packed arguments.
func (c *Compiled) ArgsSize() int {
	return c.argSize
}

// Run executes the program instance id of a grid.
func (c *Compiled) Run(mem kernels.Memory, id, grid [3]int, args []byte) error {
	if len(args) != c.argSize {
		return errors.Errorf("kernel %s expects %d bytes of arguments, got %d", c.fn.Name(), c.argSize, len(args))
	}
	return c.prog.run(&frame{
		mem:  mem,
		id:   id,
		grid: grid,
	}, c.offsets, args)
}
