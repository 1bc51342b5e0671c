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

package jit_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/tilejit/build/fmterr"
	"github.com/gx-org/tilejit/golang/backend/platform"
	"github.com/gx-org/tilejit/jit"
	"go.uber.org/zap"
)

const scaleSrc = `
package kernels

const BLOCK = 8

func offsets() Value {
	return tl.ProgramID(0)*BLOCK + tl.Arange(0, BLOCK)
}

func scale(x, y *float32, n int32) {
	offs := offsets()
	mask := offs < n
	tl.Store(y+offs, tl.Load(x+offs, mask)*SCALE, mask)
}
`

func TestModule(t *testing.T) {
	mod, err := jit.Parse("scale.go", scaleSrc, map[string]any{"SCALE": 3.0}, jit.WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"offsets", "scale"}, mod.Funcs()); diff != "" {
		t.Errorf("unexpected kernels (-want +got):\n%s", diff)
	}
	_, err = mod.Func("missing")
	var nameErr *fmterr.NameResolutionError
	if !errors.As(err, &nameErr) {
		t.Errorf("got error %v but want a name resolution error", err)
	}
	fn, err := mod.Func("scale")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"x", "y", "n"}, fn.Params()); diff != "" {
		t.Errorf("unexpected parameters (-want +got):\n%s", diff)
	}

	dev := newDevice(t)
	xs := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	x, err := platform.FromSlice(dev, xs)
	if err != nil {
		t.Fatal(err)
	}
	y, err := platform.FromSlice(dev, make([]float32, len(xs)))
	if err != nil {
		t.Fatal(err)
	}
	kernel := jit.NewKernel(fn, func(jit.Meta) []int { return []int{2} })
	if err := kernel.Launch([]any{x, y, len(xs)}, nil); err != nil {
		t.Fatalf("cannot launch kernel: %+v", err)
	}
	if err := dev.Stream().Synchronize(); err != nil {
		t.Fatalf("kernel failed: %+v", err)
	}
	got, err := platform.ToSlice[float32](y)
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{3, 6, 9, 12, 15, 18, 21, 24, 27, 30}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "syntax",
			src:  "package kernels\nfunc f( {",
		},
		{
			name: "non-literal constant",
			src:  "package kernels\nconst N = 2 * 4\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := jit.Parse("bad.go", test.src, nil); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
