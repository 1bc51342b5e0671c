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

// Package jit compiles kernels declared in Go source files just in time.
//
// A kernel is specialized for the types, the alignment and the device
// of its arguments, for a number of warps and for a set of
// meta-parameters. Every specialization is compiled once and cached
// by the function declaring the kernel.
//
// Example:
//
//	mod, err := jit.Parse("add.go", src, nil)
//	fn, err := mod.Func("add")
//	kernel := jit.NewKernel(fn, func(meta jit.Meta) []int { return []int{n / meta["BLOCK"].(int)} })
//	err = kernel.Invoke([]any{x, y, z, n}, 4, jit.Meta{"BLOCK": 128})
package jit

import (
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"

	"github.com/gx-org/tilejit/base/ordered"
	"github.com/gx-org/tilejit/build/builder"
	"github.com/gx-org/tilejit/build/builtins"
	"github.com/gx-org/tilejit/build/fmterr"
	"github.com/gx-org/tilejit/internal/base/scope"
	"github.com/pkg/errors"
)

// Module is a source file declaring kernels.
type Module struct {
	fset    *token.FileSet
	file    *ast.File
	globals scope.Scope[any]
	funcs   *ordered.Map[string, *Func]
	opts    *options
}

// Parse parses a kernel source file. src is passed to [parser.ParseFile]:
// if it is nil, the source is read from filename.
// globals are host values visible from all the kernels of the file.
func Parse(filename string, src any, globals map[string]any, opts ...Option) (*Module, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse %s", filename)
	}
	return NewModule(fset, file, globals, opts...)
}

// NewModule returns a module given a parsed source file.
// Every function declared in the file is a kernel. Constants declared
// with literal values are visible from the kernels as host values.
func NewModule(fset *token.FileSet, file *ast.File, globals map[string]any, opts ...Option) (*Module, error) {
	m := &Module{
		fset:  fset,
		file:  file,
		funcs: ordered.NewMap[string, *Func](),
		opts:  newOptions(opts),
	}
	vals := make(map[string]any, len(globals))
	for name, val := range globals {
		vals[name] = val
	}
	for _, decl := range file.Decls {
		switch declT := decl.(type) {
		case *ast.FuncDecl:
			fn, err := newFunc(m, declT)
			if err != nil {
				return nil, err
			}
			m.funcs.Store(fn.Name(), fn)
			vals[fn.Name()] = fn
		case *ast.GenDecl:
			if declT.Tok != token.CONST {
				continue
			}
			if err := m.constants(declT, vals); err != nil {
				return nil, err
			}
		}
	}
	m.globals = scope.NewReadOnly(builtins.Scope(), vals)
	return m, nil
}

// constants adds the constants of a declaration to the global values.
func (m *Module) constants(decl *ast.GenDecl, vals map[string]any) error {
	fset := fmterr.FileSet{FSet: m.fset}
	for _, spec := range decl.Specs {
		vspec := spec.(*ast.ValueSpec)
		if len(vspec.Values) != len(vspec.Names) {
			return fset.Unsupported(vspec, "constant declaration without values")
		}
		for i, name := range vspec.Names {
			lit, ok := vspec.Values[i].(*ast.BasicLit)
			if !ok {
				return fset.Unsupported(vspec.Values[i], "constant declaration with a non-literal value")
			}
			val, err := literal(lit)
			if err != nil {
				return fset.Position(lit, err)
			}
			vals[name.Name] = val
		}
	}
	return nil
}

func literal(lit *ast.BasicLit) (any, error) {
	val := constant.MakeFromLiteral(lit.Value, lit.Kind, 0)
	switch val.Kind() {
	case constant.Int:
		i, exact := constant.Int64Val(val)
		if !exact {
			return nil, errors.Errorf("integer constant %s overflows int64", lit.Value)
		}
		return int(i), nil
	case constant.Float:
		f, _ := constant.Float64Val(val)
		return f, nil
	case constant.String:
		return constant.StringVal(val), nil
	}
	return nil, errors.Errorf("constant %s not supported", lit.Value)
}

// FileSet returns the file set of the module source.
func (m *Module) FileSet() *token.FileSet {
	return m.fset
}

// Func returns a kernel given its name.
func (m *Module) Func(name string) (*Func, error) {
	fn, ok := m.funcs.Load(name)
	if !ok {
		return nil, &fmterr.NameResolutionError{Name: name}
	}
	return fn, nil
}

// Funcs returns the names of the kernels of the module in declaration order.
func (m *Module) Funcs() []string {
	var names []string
	for name := range m.funcs.Keys() {
		names = append(names, name)
	}
	return names
}

var _ builder.Inliner = (*Func)(nil)
