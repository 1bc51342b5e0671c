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
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/tilejit/build/fmterr"
	"github.com/gx-org/tilejit/golang/backend/platform"
	"github.com/gx-org/tilejit/jit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const addSrc = `
package kernels

func add(x, y, z *float32, n int32, meta Meta) {
	pid := tl.ProgramID(0)
	block := meta["BLOCK"]
	offsets := pid*block + tl.Arange(0, block)
	mask := offsets < n
	a := tl.Load(x+offsets, mask)
	b := tl.Load(y+offsets, mask)
	tl.Store(z+offsets, a+b, mask)
}
`

func parseFunc(t *testing.T, src, name string, opts ...jit.Option) *jit.Func {
	t.Helper()
	opts = append([]jit.Option{jit.WithLogger(zap.NewNop()), jit.WithNumWarps(4)}, opts...)
	mod, err := jit.Parse(name+".go", src, nil, opts...)
	if err != nil {
		t.Fatalf("cannot parse %s: %+v", name, err)
	}
	fn, err := mod.Func(name)
	if err != nil {
		t.Fatal(err)
	}
	return fn
}

func blocks(n int) jit.GridFunc {
	return func(meta jit.Meta) []int {
		block := meta["BLOCK"].(int)
		return []int{(n + block - 1) / block}
	}
}

type addCase struct {
	x, y, z *platform.Tensor
	n       int
	want    []float32
}

func newDevice(t *testing.T) *platform.Device {
	t.Helper()
	dev, err := platform.New().GoDevice(0)
	if err != nil {
		t.Fatal(err)
	}
	return dev
}

func newAddCase(t *testing.T, dev *platform.Device, n int) *addCase {
	t.Helper()
	c := &addCase{n: n, want: make([]float32, n)}
	xs := make([]float32, n)
	ys := make([]float32, n)
	for i := range n {
		xs[i] = float32(i)
		ys[i] = float32(10 * i)
		c.want[i] = xs[i] + ys[i]
	}
	var err error
	if c.x, err = platform.FromSlice(dev, xs); err != nil {
		t.Fatal(err)
	}
	if c.y, err = platform.FromSlice(dev, ys); err != nil {
		t.Fatal(err)
	}
	if c.z, err = platform.FromSlice(dev, make([]float32, n)); err != nil {
		t.Fatal(err)
	}
	return c
}

func (c *addCase) args() []any {
	return []any{c.x, c.y, c.z, c.n}
}

func (c *addCase) check(t *testing.T) {
	t.Helper()
	if err := c.z.GoDevice().Stream().Synchronize(); err != nil {
		t.Fatalf("kernel failed: %+v", err)
	}
	got, err := platform.ToSlice[float32](c.z)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(c.want, got); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestAddKernel(t *testing.T) {
	fn := parseFunc(t, addSrc, "add")
	dev := newDevice(t)
	c := newAddCase(t, dev, 1000)
	kernel := jit.NewKernel(fn, blocks(c.n))
	meta := jit.Meta{"BLOCK": 128}
	for range 2 {
		if err := kernel.Launch(c.args(), meta); err != nil {
			t.Fatalf("cannot launch kernel: %+v", err)
		}
	}
	c.check(t)
	if got := fn.Cache().Compilations(); got != 1 {
		t.Errorf("got %d compilations but want 1", got)
	}
	key, err := kernel.Key(c.args(), 4, meta)
	if err != nil {
		t.Fatal(err)
	}
	want := "Pf32,Pf32,Pf32,I"
	if key.Types != want {
		t.Errorf("got type tags %q but want %q", key.Types, want)
	}
	bin, ok := kernel.Lookup(key)
	if !ok {
		t.Fatalf("binary of %s not found in the cache", key)
	}
	if got := bin.NumWarps(); got != 4 {
		t.Errorf("got %d warps but want 4", got)
	}
	if got := bin.Entry(); got != "add" {
		t.Errorf("got entry %q but want add", got)
	}
}

func TestSpecializeOnAlignment(t *testing.T) {
	fn := parseFunc(t, addSrc, "add")
	dev := newDevice(t)
	c := newAddCase(t, dev, 64)
	kernel := jit.NewKernel(fn, blocks(c.n))
	meta := jit.Meta{"BLOCK": 32}
	aligned, err := kernel.Key(c.args(), 4, meta)
	if err != nil {
		t.Fatal(err)
	}
	if err := kernel.Launch(c.args(), meta); err != nil {
		t.Fatalf("cannot launch kernel: %+v", err)
	}
	c.check(t)

	out, err := platform.FromSlice(dev, make([]float32, c.n))
	if err != nil {
		t.Fatal(err)
	}
	views := &addCase{n: c.n - 1, want: c.want[1:]}
	for _, v := range []struct {
		dst **platform.Tensor
		src *platform.Tensor
	}{{&views.x, c.x}, {&views.y, c.y}, {&views.z, out}} {
		if *v.dst, err = v.src.View(1); err != nil {
			t.Fatal(err)
		}
	}
	misaligned, err := kernel.Key(views.args(), 4, meta)
	if err != nil {
		t.Fatal(err)
	}
	if aligned == misaligned {
		t.Fatalf("same key %s for aligned and misaligned tensors", aligned)
	}
	if want := "0:16,1:16,2:16,3:16"; aligned.Attrs != want {
		t.Errorf("got attributes %q but want %q", aligned.Attrs, want)
	}
	if want := "0:4,1:4,2:4,3:1"; misaligned.Attrs != want {
		t.Errorf("got attributes %q but want %q", misaligned.Attrs, want)
	}
	kernel = jit.NewKernel(fn, blocks(views.n))
	if err := kernel.Launch(views.args(), meta); err != nil {
		t.Fatalf("cannot launch kernel: %+v", err)
	}
	views.check(t)
	if got := fn.Cache().Compilations(); got != 2 {
		t.Errorf("got %d compilations but want 2", got)
	}
}

func TestSpecializeOnMeta(t *testing.T) {
	fn := parseFunc(t, addSrc, "add")
	dev := newDevice(t)
	c := newAddCase(t, dev, 100)
	kernel := jit.NewKernel(fn, blocks(c.n))
	for _, block := range []int{16, 64, 16} {
		if err := kernel.Launch(c.args(), jit.Meta{"BLOCK": block}); err != nil {
			t.Fatalf("cannot launch kernel: %+v", err)
		}
	}
	c.check(t)
	if got := fn.Cache().Len(); got != 2 {
		t.Errorf("got %d cached binaries but want 2", got)
	}
}

const reduceSrc = `
package kernels

func scale(v, f Value) Value {
	return v * f
}

func sumRows(x, out *float32, meta Meta) {
	offs := tl.Arange(0, meta["BLOCK"])
	acc := tl.Zeros(tl.Float32, meta["BLOCK"])
	for i := range Range(meta["ROWS"]) {
		acc = acc + scale(tl.Load(x+i*meta["BLOCK"]+offs), 2.0)
	}
	tl.Store(out+offs, acc)
}
`

func TestLoopAndInlining(t *testing.T) {
	fn := parseFunc(t, reduceSrc, "sumRows")
	dev := newDevice(t)
	xs := make([]float32, 12)
	for i := range xs {
		xs[i] = float32(i)
	}
	x, err := platform.FromSlice(dev, xs, 3, 4)
	if err != nil {
		t.Fatal(err)
	}
	out, err := platform.FromSlice(dev, make([]float32, 4))
	if err != nil {
		t.Fatal(err)
	}
	kernel := jit.NewKernel(fn, func(jit.Meta) []int { return []int{1} })
	if err := kernel.Launch([]any{x, out}, jit.Meta{"BLOCK": 4, "ROWS": 3}); err != nil {
		t.Fatalf("cannot launch kernel: %+v", err)
	}
	if err := dev.Stream().Synchronize(); err != nil {
		t.Fatalf("kernel failed: %+v", err)
	}
	got, err := platform.ToSlice[float32](out)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float32{24, 30, 36, 42}, got); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func checkUsageError(t *testing.T, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error containing %q", substr)
	}
	var usage *fmterr.UsageError
	if !errors.As(err, &usage) {
		t.Errorf("got error %T (%v) but want a usage error", err, err)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Errorf("error %q does not contain %q", err.Error(), substr)
	}
}

func TestUsageErrors(t *testing.T) {
	fn := parseFunc(t, addSrc, "add")
	dev := newDevice(t)
	c := newAddCase(t, dev, 8)
	meta := jit.Meta{"BLOCK": 8}
	tests := []struct {
		name string
		args []any
		grid jit.GridFunc
		want string
	}{
		{
			name: "no tensor",
			args: []any{1, 2, 3, 4},
			grid: blocks(8),
			want: "no tensor argument found",
		},
		{
			name: "unsupported argument",
			args: []any{c.x, c.y, c.z, "8"},
			grid: blocks(8),
			want: "argument 3",
		},
		{
			name: "integer overflow",
			args: []any{c.x, c.y, c.z, 1 << 40},
			grid: blocks(8),
			want: "argument 3",
		},
		{
			name: "empty grid",
			args: c.args(),
			grid: func(jit.Meta) []int { return nil },
			want: "must have 1 to 3 dimensions",
		},
		{
			name: "negative grid",
			args: c.args(),
			grid: func(jit.Meta) []int { return []int{1, 0} },
			want: "dimension 1 must be at least 1",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := jit.NewKernel(fn, test.grid).Launch(test.args, meta)
			checkUsageError(t, err, test.want)
		})
	}
}

func TestCompilationErrorsAreNotCached(t *testing.T) {
	fn := parseFunc(t, `
package kernels

func broken(x *float32, meta Meta) {
	tl.Store(x+tl.Arange(0, 4), undefined)
}
`, "broken")
	dev := newDevice(t)
	x, err := platform.FromSlice(dev, make([]float32, 4))
	if err != nil {
		t.Fatal(err)
	}
	kernel := jit.NewKernel(fn, func(jit.Meta) []int { return []int{1} })
	for range 2 {
		err := kernel.Launch([]any{x}, nil)
		var nameErr *fmterr.NameResolutionError
		if !errors.As(err, &nameErr) {
			t.Fatalf("got error %v but want a name resolution error", err)
		}
	}
	if got := fn.Cache().Len(); got != 0 {
		t.Errorf("got %d cached binaries but want 0", got)
	}
}

const countSrc = `
package kernels

func count(out *int32, start, stop, step int32) {
	n := 0
	for range Range(start, stop, step) {
		n = n + 1
	}
	tl.Store(out, n)
}
`

func TestLoopIterationCount(t *testing.T) {
	fn := parseFunc(t, countSrc, "count")
	dev := newDevice(t)
	kernel := jit.NewKernel(fn, func(jit.Meta) []int { return []int{1} })
	tests := []struct {
		start, stop, step int
		want              int32
	}{
		{start: 0, stop: 10, step: 3, want: 4},
		{start: 10, stop: 0, step: -3, want: 4},
		{start: 0, stop: 5, step: 5, want: 1},
		{start: 5, stop: 0, step: -5, want: 1},
		{start: 3, stop: 3, step: 1, want: 0},
		{start: 0, stop: 7, step: 1, want: 7},
	}
	for _, test := range tests {
		out, err := platform.FromSlice(dev, []int32{-1})
		if err != nil {
			t.Fatal(err)
		}
		if err := kernel.Launch([]any{out, test.start, test.stop, test.step}, nil); err != nil {
			t.Fatalf("cannot launch kernel: %+v", err)
		}
		if err := dev.Stream().Synchronize(); err != nil {
			t.Fatalf("kernel failed: %+v", err)
		}
		got, err := platform.ToSlice[int32](out)
		if err != nil {
			t.Fatal(err)
		}
		if got[0] != test.want {
			t.Errorf("Range(%d, %d, %d): got %d iterations but want %d", test.start, test.stop, test.step, got[0], test.want)
		}
	}
}

const nestedSrc = `
package kernels

func nested(out *int32, n int32) {
	acc := 0
	for range Range(n) {
		for range Range(n) {
			acc = acc + 1
		}
		for range Range(n) {
		}
	}
	tl.Store(out, acc)
	tl.Store(out+1, n)
}
`

func TestNestedLoops(t *testing.T) {
	fn := parseFunc(t, nestedSrc, "nested")
	dev := newDevice(t)
	kernel := jit.NewKernel(fn, func(jit.Meta) []int { return []int{1} })
	out, err := platform.FromSlice(dev, []int32{-1, -1})
	if err != nil {
		t.Fatal(err)
	}
	if err := kernel.Launch([]any{out, 3}, nil); err != nil {
		t.Fatalf("cannot launch kernel: %+v", err)
	}
	if err := dev.Stream().Synchronize(); err != nil {
		t.Fatalf("kernel failed: %+v", err)
	}
	got, err := platform.ToSlice[int32](out)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int32{9, 3}, got); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestConcurrentWarmup(t *testing.T) {
	fn := parseFunc(t, addSrc, "add")
	dev := newDevice(t)
	c := newAddCase(t, dev, 256)
	kernel := jit.NewKernel(fn, blocks(c.n))
	meta := jit.Meta{"BLOCK": 64}
	const callers = 32
	bins := make([]*jit.Binary, callers)
	var g errgroup.Group
	for i := range callers {
		g.Go(func() error {
			var err error
			bins[i], err = kernel.Warmup(c.args(), 4, meta)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("cannot warm up kernel: %+v", err)
	}
	if got := fn.Cache().Compilations(); got != 1 {
		t.Errorf("got %d compilations but want 1", got)
	}
	for i, bin := range bins {
		if bin != bins[0] {
			t.Errorf("caller %d got a different binary", i)
		}
	}
}

func TestMetaFingerprint(t *testing.T) {
	fn := parseFunc(t, addSrc, "add")
	dev := newDevice(t)
	c := newAddCase(t, dev, 16)
	kernel := jit.NewKernel(fn, blocks(c.n))
	key := func(meta jit.Meta) jit.Key {
		t.Helper()
		k, err := kernel.Key(c.args(), 4, meta)
		if err != nil {
			t.Fatalf("cannot compute key: %+v", err)
		}
		return k
	}
	table := make(map[string]int)
	byInt := make(map[int]string)
	for i := range 32 {
		table[strconv.Itoa(i)] = i
		byInt[i] = strconv.Itoa(i)
	}
	first := key(jit.Meta{"BLOCK": 16, "TABLE": table, "BY_INT": byInt, "ACT": strings.ToUpper})
	for range 10 {
		if got := key(jit.Meta{"BLOCK": 16, "TABLE": table, "BY_INT": byInt, "ACT": strings.ToUpper}); got != first {
			t.Fatalf("keys of the same meta-parameters differ:\n%s\n%s", first, got)
		}
	}
	if other := key(jit.Meta{"BLOCK": 16, "TABLE": table, "BY_INT": byInt, "ACT": strings.ToLower}); other == first {
		t.Errorf("different functions give the same key %s", other)
	}
}
