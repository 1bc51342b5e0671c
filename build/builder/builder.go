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

// Package builder lowers kernel functions to the IR.
// Kernels are Go functions parsed with [go/parser]. This package
// walks the [go/ast] tree of a kernel in a single pass, specialized
// for the types of the arguments it is called with:
//  1. names are resolved in the local, global and builtin scopes,
//  2. expressions and statements are lowered to IR instructions,
//     broadcasting the operands of element-wise operations,
//  3. variables are read and written through the IR module value table
//     so that the SSA form is built while the control-flow graph is.
//
// Calls to other kernels are inlined. Host values (numbers, strings, maps,
// Go functions) are evaluated at lowering time.
package builder

import (
	"go/ast"
	"go/token"

	"github.com/gx-org/tilejit/base/uname"
	"github.com/gx-org/tilejit/build/fmterr"
	"github.com/gx-org/tilejit/build/ir"
	"github.com/gx-org/tilejit/internal/base/scope"
	"github.com/pkg/errors"
)

// MetaTypeName is the name of the type declaring the parameter
// receiving the meta-parameters of a kernel.
const MetaTypeName = "Meta"

// maxInlineDepth bounds the number of nested inlined calls.
const maxInlineDepth = 64

type (
	// Inliner is a kernel function whose body can be lowered into its callers.
	Inliner interface {
		// FuncDecl returns the declaration of the kernel.
		FuncDecl() *ast.FuncDecl
		// FileSet returns the set of files in which the kernel is declared.
		FileSet() *token.FileSet
		// Globals returns the global scope of the kernel.
		Globals() scope.Scope[any]
	}

	// Specialization are the properties of the arguments a kernel is built for.
	Specialization struct {
		// Params are the types of the kernel parameters, excluding the meta parameter.
		Params []ir.Type
		// Attrs are the attributes of the parameters, keyed by parameter index.
		Attrs map[int][]ir.Attr
		// Meta are the meta-parameters bound to the meta parameter of the kernel.
		Meta map[string]any
	}

	// lowerer is the state shared by all the frames of a build.
	lowerer struct {
		mod   *ir.Module
		fn    *ir.Function
		b     *ir.Builder
		slots *uname.Unique
		meta  map[string]any
	}

	// frame lowers the body of one kernel: the entry kernel or an inlined kernel.
	frame struct {
		*lowerer
		fset  fmterr.FileSet
		local *scope.RWScope[any]
		depth int
		loops int

		returned bool
		result   any
	}
)

// Signature returns the names of the parameters of a kernel, excluding
// the meta parameter, and the name of the meta parameter (empty if none).
func Signature(fset *token.FileSet, decl *ast.FuncDecl) (params []string, meta string, err error) {
	if decl.Recv != nil {
		return nil, "", fmterr.Errorf(fset, decl, "kernel %s cannot be a method", decl.Name.Name)
	}
	if decl.Type.TypeParams != nil {
		return nil, "", fmterr.Errorf(fset, decl.Type.TypeParams, "kernel %s cannot be generic", decl.Name.Name)
	}
	for _, field := range decl.Type.Params.List {
		if _, isEllipsis := field.Type.(*ast.Ellipsis); isEllipsis {
			return nil, "", fmterr.FileSet{FSet: fset}.Unsupported(field, "variadic kernel parameter")
		}
		isMeta := isMetaType(field.Type)
		for _, name := range field.Names {
			if !isMeta {
				params = append(params, name.Name)
				continue
			}
			if meta != "" {
				return nil, "", fmterr.Errorf(fset, name, "kernel %s has more than one %s parameter", decl.Name.Name, MetaTypeName)
			}
			meta = name.Name
		}
	}
	return params, meta, nil
}

func isMetaType(expr ast.Expr) bool {
	ident, ok := expr.(*ast.Ident)
	return ok && ident.Name == MetaTypeName
}

// Build lowers a kernel to a new IR module given the properties of its arguments.
func Build(kernel Inliner, spec Specialization) (*ir.Module, error) {
	fset := kernel.FileSet()
	decl := kernel.FuncDecl()
	params, meta, err := Signature(fset, decl)
	if err != nil {
		return nil, err
	}
	if len(params) != len(spec.Params) {
		return nil, fmterr.Usagef("kernel %s expects %d argument(s) but got %d", decl.Name.Name, len(params), len(spec.Params))
	}
	mod := ir.NewModule(decl.Name.Name)
	fn, err := mod.NewFunction(decl.Name.Name, spec.Params)
	if err != nil {
		return nil, err
	}
	for i, attrs := range spec.Attrs {
		for _, attr := range attrs {
			fn.AddAttr(i, attr)
		}
	}
	lw := &lowerer{
		mod:   mod,
		fn:    fn,
		b:     ir.NewBuilder(mod),
		slots: uname.New(),
		meta:  spec.Meta,
	}
	entry := fn.NewBlock("entry")
	if err := mod.SealBlock(entry); err != nil {
		return nil, err
	}
	lw.b.SetInsertBlock(entry)
	f := lw.newFrame(kernel, 0)
	for i, name := range params {
		fn.SetParamName(i, name)
		f.define(name, fn.Params()[i])
	}
	if meta != "" {
		f.define(meta, spec.Meta)
	}
	if err := f.stmts(decl.Body.List); err != nil {
		return nil, err
	}
	if f.result != nil {
		return nil, errors.Errorf("kernel %s cannot return a value", decl.Name.Name)
	}
	if lw.b.InsertBlock().Terminator() == nil {
		if err := lw.b.Ret(); err != nil {
			return nil, err
		}
	}
	return mod, nil
}

func (lw *lowerer) newFrame(kernel Inliner, depth int) *frame {
	return &frame{
		lowerer: lw,
		fset:    fmterr.FileSet{FSet: kernel.FileSet()},
		local:   scope.NewScope(kernel.Globals()),
		depth:   depth,
	}
}
