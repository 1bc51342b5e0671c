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

package builder_test

import (
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/tilejit/build/builder"
	"github.com/gx-org/tilejit/build/builtins"
	"github.com/gx-org/tilejit/build/fmterr"
	"github.com/gx-org/tilejit/build/ir"
	"github.com/gx-org/tilejit/internal/base/scope"
)

type kernel struct {
	fset    *token.FileSet
	decl    *ast.FuncDecl
	globals scope.Scope[any]
}

func (k *kernel) FuncDecl() *ast.FuncDecl   { return k.decl }
func (k *kernel) FileSet() *token.FileSet   { return k.fset }
func (k *kernel) Globals() scope.Scope[any] { return k.globals }

// parse returns the kernels declared in a source.
func parse(t *testing.T, src string, globals map[string]any) map[string]*kernel {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "kernel.go", "package kernels\n"+src, 0)
	if err != nil {
		t.Fatal(err)
	}
	vals := make(map[string]any)
	for name, val := range globals {
		vals[name] = val
	}
	kernels := make(map[string]*kernel)
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		k := &kernel{fset: fset, decl: fn}
		kernels[fn.Name.Name] = k
		vals[fn.Name.Name] = k
	}
	gscope := scope.NewReadOnly(builtins.Scope(), vals)
	for _, k := range kernels {
		k.globals = gscope
	}
	return kernels
}

func build(t *testing.T, src, name string, spec builder.Specialization, globals map[string]any) (*ir.Module, error) {
	kernels := parse(t, src, globals)
	k, ok := kernels[name]
	if !ok {
		t.Fatalf("kernel %s not found", name)
	}
	return builder.Build(k, spec)
}

func mustBuild(t *testing.T, src, name string, spec builder.Specialization, globals map[string]any) *ir.Module {
	mod, err := build(t, src, name, spec, globals)
	if err != nil {
		t.Fatalf("cannot build kernel %s: %+v", name, err)
	}
	return mod
}

var f32Ptr = ir.Pointer(dtype.Float32)

const addSrc = `
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

func TestBuildAdd(t *testing.T) {
	mod := mustBuild(t, addSrc, "add", builder.Specialization{
		Params: []ir.Type{f32Ptr, f32Ptr, f32Ptr, ir.Int32()},
		Attrs:  map[int][]ir.Attr{0: {{Kind: ir.AttrAligned, Value: 16}}},
		Meta:   map[string]any{"BLOCK": 128},
	}, nil)
	fn := mod.Func("add")
	if fn == nil {
		t.Fatalf("function add not found in:\n%s", mod)
	}
	if got := len(fn.Blocks()); got != 1 {
		t.Errorf("got %d blocks but want 1", got)
	}
	listing := fn.String()
	for _, want := range []string{
		"%x *f32 aligned(16)",
		"arange [0 128] : <128 x i32>",
		"load",
		"store",
		"ret",
	} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing does not contain %q:\n%s", want, listing)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		desc   string
		src    string
		params []ir.Type
		check  func(error) bool
	}{
		{
			desc: "undefined name",
			src:  `func k() { a := foo }`,
			check: func(err error) bool {
				var nErr *fmterr.NameResolutionError
				return errors.As(err, &nErr) && nErr.Name == "foo"
			},
		},
		{
			desc: "logical operator",
			src:  `func k() { a := true && false }`,
			check: func(err error) bool {
				var uErr *fmterr.UnsupportedConstructError
				return errors.As(err, &uErr) && strings.Contains(uErr.Construct, "&&")
			},
		},
		{
			desc: "switch statement",
			src:  `func k() { switch { } }`,
			check: func(err error) bool {
				var uErr *fmterr.UnsupportedConstructError
				return errors.As(err, &uErr) && strings.Contains(uErr.Construct, "switch")
			},
		},
		{
			desc:   "data-dependent if",
			src:    `func k(n int32) { if tl.ProgramID(0) < n { tl.ProgramID(1) } }`,
			params: []ir.Type{ir.Int32()},
			check: func(err error) bool {
				var uErr *fmterr.UnsupportedConstructError
				return errors.As(err, &uErr) && strings.Contains(uErr.Construct, "data-dependent if condition on n")
			},
		},
		{
			desc: "incompatible shapes",
			src:  `func k() { a := tl.Arange(0, 4) + tl.Arange(0, 8) }`,
			check: func(err error) bool {
				var sErr *fmterr.ShapeBroadcastError
				return errors.As(err, &sErr) && sErr.Dim == 0 && sErr.X == 4 && sErr.Y == 8
			},
		},
		{
			desc: "unknown tl member",
			src:  `func k() { tl.Foo(0) }`,
			check: func(err error) bool {
				var nErr *fmterr.NameResolutionError
				return errors.As(err, &nErr) && nErr.Name == "tl.Foo"
			},
		},
		{
			desc: "Range outside of a loop",
			src:  `func k() { r := Range(4) }`,
			check: func(err error) bool {
				var uErr *fmterr.UnsupportedConstructError
				return errors.As(err, &uErr)
			},
		},
		{
			desc: "IR value passed to a host function",
			src:  `func k() { double(tl.ProgramID(0)) }`,
			check: func(err error) bool {
				var uErr *fmterr.UnsupportedConstructError
				return errors.As(err, &uErr)
			},
		},
		{
			desc: "index on IR value",
			src:  `func k() { a := tl.Arange(0, 4)[2] }`,
			check: func(err error) bool {
				var uErr *fmterr.UnsupportedConstructError
				return errors.As(err, &uErr)
			},
		},
		{
			desc:   "integer literal overflow",
			src:    `func k(x *int32) { tl.Store(x, 3000000000) }`,
			params: []ir.Type{ir.Pointer(dtype.Int32)},
			check: func(err error) bool {
				return strings.Contains(err.Error(), "integer constant 3000000000 overflows int32")
			},
		},
		{
			desc:   "host integer overflow",
			src:    `func k(x *int32) { tl.Store(x, BIG) }`,
			params: []ir.Type{ir.Pointer(dtype.Int32)},
			check: func(err error) bool {
				return strings.Contains(err.Error(), "overflows int32")
			},
		},
	}
	globals := map[string]any{
		"double": func(x int) int { return 2 * x },
		"BIG":    int64(1 << 40),
	}
	for _, test := range tests {
		_, err := build(t, test.src, "k", builder.Specialization{Params: test.params}, globals)
		if err == nil {
			t.Errorf("%s: got no error", test.desc)
			continue
		}
		if !test.check(err) {
			t.Errorf("%s: unexpected error %T: %v", test.desc, err, err)
		}
		if !strings.Contains(err.Error(), "kernel.go:") {
			t.Errorf("%s: error %q has no position", test.desc, err.Error())
		}
	}
}

func TestStaticIf(t *testing.T) {
	src := `
func k(x *float32, meta Meta) {
	if meta["EVEN"] {
		tl.Store(x, 1.0)
	} else if meta["BLOCK"] > 64 {
		tl.Store(x, 2.0)
	} else {
		tl.Store(x, 3.0)
	}
}
`
	tests := []struct {
		meta map[string]any
		want string
	}{
		{map[string]any{"EVEN": true, "BLOCK": 32}, "f32 1"},
		{map[string]any{"EVEN": false, "BLOCK": 128}, "f32 2"},
		{map[string]any{"EVEN": false, "BLOCK": 32}, "f32 3"},
	}
	for _, test := range tests {
		mod := mustBuild(t, src, "k", builder.Specialization{
			Params: []ir.Type{f32Ptr},
			Meta:   test.meta,
		}, nil)
		listing := mod.String()
		if !strings.Contains(listing, "store %x, "+test.want) {
			t.Errorf("meta %v: listing does not store %s:\n%s", test.meta, test.want, listing)
		}
		if got := strings.Count(listing, "store"); got != 1 {
			t.Errorf("meta %v: got %d stores but want 1:\n%s", test.meta, got, listing)
		}
	}
}

func TestInline(t *testing.T) {
	src := `
func offsets(meta Meta) {
	return tl.ProgramID(0)*meta["BLOCK"] + tl.Arange(0, meta["BLOCK"])
}

func k(x *float32, meta Meta) {
	tl.Store(x+offsets(), 0.0)
}
`
	mod := mustBuild(t, src, "k", builder.Specialization{
		Params: []ir.Type{f32Ptr},
		Meta:   map[string]any{"BLOCK": 32},
	}, nil)
	if got := len(mod.Funcs()); got != 1 {
		t.Errorf("got %d functions but want 1", got)
	}
	if !strings.Contains(mod.String(), "arange [0 32]") {
		t.Errorf("inlined kernel not found in:\n%s", mod)
	}
}

func phis(block *ir.Block) []*ir.Value {
	var phis []*ir.Value
	for _, inst := range block.Instructions() {
		if inst.Op() == ir.OpPhi {
			phis = append(phis, inst)
		}
	}
	return phis
}

func TestLoopPhis(t *testing.T) {
	src := `
func k(x *float32, n int32) {
	acc := 0.0
	scale := 2.0
	for i := range Range(0, n, 1) {
		acc = acc + scale
	}
	tl.Store(x, acc)
}
`
	mod := mustBuild(t, src, "k", builder.Specialization{
		Params: []ir.Type{f32Ptr, ir.Int32()},
	}, nil)
	blocks := mod.Func("k").Blocks()
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks but want 3:\n%s", len(blocks), mod)
	}
	loop, post := blocks[1], blocks[2]
	if got := len(phis(loop)); got != 2 {
		t.Errorf("got %d phis in the loop block but want 2 (acc and i):\n%s", got, mod)
	}
	if got := len(phis(post)); got != 1 {
		t.Errorf("got %d phis after the loop but want 1 (acc):\n%s", got, mod)
	}
	for _, block := range blocks {
		if !block.Sealed() {
			t.Errorf("block %s not sealed", block.Name())
		}
	}
}

func TestNestedLoops(t *testing.T) {
	src := `
func k(x *float32, n int32) {
	acc := 0
	for i := range Range(n) {
		for j := range Range(0, n) {
			acc += i * j
		}
	}
	tl.Store(x, acc)
}
`
	mod := mustBuild(t, src, "k", builder.Specialization{
		Params: []ir.Type{f32Ptr, ir.Int32()},
	}, nil)
	blocks := mod.Func("k").Blocks()
	if len(blocks) != 5 {
		t.Fatalf("got %d blocks but want 5:\n%s", len(blocks), mod)
	}
	for _, block := range blocks {
		if !block.Sealed() {
			t.Errorf("block %s not sealed", block.Name())
		}
		if block.Terminator() == nil {
			t.Errorf("block %s has no terminator:\n%s", block.Name(), mod)
		}
	}
}

// checkDefined fails if an instruction reads a value that no block defines.
func checkDefined(t *testing.T, mod *ir.Module, fn *ir.Function) {
	t.Helper()
	defined := make(map[*ir.Value]bool)
	for _, param := range fn.Params() {
		defined[param] = true
	}
	for _, block := range fn.Blocks() {
		for _, inst := range block.Instructions() {
			defined[inst] = true
		}
	}
	for _, block := range fn.Blocks() {
		for _, inst := range block.Instructions() {
			for _, arg := range inst.Args() {
				if arg.Op() == ir.OpConst || defined[arg] {
					continue
				}
				t.Errorf("%s in block %s reads undefined value %s:\n%s", inst.Instruction(), block.Name(), arg, mod)
			}
		}
	}
}

func TestNestedLoopsKeepDefinitions(t *testing.T) {
	tests := []struct {
		desc string
		src  string
	}{
		{
			desc: "empty nested loops",
			src: `
func k(out *int32, n int32) {
	for range Range(n) {
		for range Range(n) {
		}
	}
	tl.Store(out, 1)
}
`,
		},
		{
			desc: "invariant read after nested loops",
			src: `
func k(out *int32, n int32) {
	acc := 0
	for range Range(n) {
		for range Range(n) {
			acc = acc + 1
		}
		for range Range(2) {
		}
	}
	tl.Store(out, acc+n)
}
`,
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			mod := mustBuild(t, test.src, "k", builder.Specialization{
				Params: []ir.Type{ir.Pointer(dtype.Int32), ir.Int32()},
			}, nil)
			checkDefined(t, mod, mod.Func("k"))
		})
	}
}

func TestInt32Bounds(t *testing.T) {
	src := `
func k(x *int32) {
	tl.Store(x, -2147483648)
	tl.Store(x+1, 2147483647)
}
`
	mod := mustBuild(t, src, "k", builder.Specialization{
		Params: []ir.Type{ir.Pointer(dtype.Int32)},
	}, nil)
	var got []int64
	for _, inst := range mod.Func("k").Blocks()[0].Instructions() {
		if inst.Op() != ir.OpStore {
			continue
		}
		if c, ok := inst.Args()[1].ConstInt(); ok {
			got = append(got, c)
		}
	}
	if diff := cmp.Diff([]int64{-2147483648, 2147483647}, got); diff != "" {
		t.Errorf("unexpected stored constants (-want +got):\n%s", diff)
	}
}

func TestHostValues(t *testing.T) {
	src := `
func k(x *float32, meta Meta) {
	n := double(meta["BLOCK"])
	idx := tl.Arange(0, n)
	tl.Store(x+idx, idx.To(tl.Float32))
}
`
	globals := map[string]any{"double": func(x int) int { return 2 * x }}
	mod := mustBuild(t, src, "k", builder.Specialization{
		Params: []ir.Type{f32Ptr},
		Meta:   map[string]any{"BLOCK": 16},
	}, globals)
	if !strings.Contains(mod.String(), "arange [0 32]") {
		t.Errorf("host call not evaluated at lowering time:\n%s", mod)
	}
}

func TestNewAxis(t *testing.T) {
	src := `
func k(x *float32) {
	rows := tl.Arange(0, 4)[All, nil]
	cols := tl.Arange(0, 8)[nil, All]
	tl.Store(x+rows*8+cols, 0.0)
}
`
	mod := mustBuild(t, src, "k", builder.Specialization{Params: []ir.Type{f32Ptr}}, nil)
	if !strings.Contains(mod.String(), "<4x8 x *f32>") {
		t.Errorf("pointers not broadcast to 4x8:\n%s", mod)
	}
}

func TestWrongArgumentCount(t *testing.T) {
	_, err := build(t, addSrc, "add", builder.Specialization{Params: []ir.Type{f32Ptr}}, nil)
	var uErr *fmterr.UsageError
	if !errors.As(err, &uErr) {
		t.Errorf("got error %v: want a UsageError", err)
	}
}

func TestSignature(t *testing.T) {
	k := parse(t, addSrc, nil)["add"]
	params, meta, err := builder.Signature(k.fset, k.decl)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := strings.Join(params, ","), "x,y,z,n"; got != want {
		t.Errorf("got parameters %s but want %s", got, want)
	}
	if meta != "meta" {
		t.Errorf("got meta parameter %q but want meta", meta)
	}
}
