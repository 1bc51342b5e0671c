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
	"github.com/gx-org/tilejit/build/ir"
	"github.com/gx-org/tilejit/golang/backend"
	"github.com/gx-org/tilejit/golang/backend/platform"
)

// Binary is a kernel specialization compiled for a device.
// Binaries are immutable.
type Binary struct {
	compiled *backend.Compiled
}

// Module returns the IR from which the binary has been compiled.
func (b *Binary) Module() *ir.Module {
	return b.compiled.Module()
}

// Entry returns the name of the kernel entry point.
func (b *Binary) Entry() string {
	return b.compiled.Name()
}

// NumWarps returns the number of warps of a program instance.
func (b *Binary) NumWarps() int {
	return b.compiled.NumWarps()
}

// SharedMem returns the number of bytes of shared memory of a program instance.
func (b *Binary) SharedMem() int {
	return b.compiled.SharedMem()
}

// Launch enqueues the execution of the binary over a grid on a stream.
func (b *Binary) Launch(stream *platform.Stream, args []byte, grid [3]int) error {
	return stream.Enqueue(platform.Launch{
		Program:   b.compiled,
		Grid:      grid,
		Threads:   b.compiled.Threads(),
		SharedMem: b.compiled.SharedMem(),
		Args:      args,
	})
}
