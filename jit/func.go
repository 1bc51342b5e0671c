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
	"go/ast"
	"go/token"

	"github.com/gx-org/tilejit/build/builder"
	"github.com/gx-org/tilejit/internal/base/scope"
)

type (
	// Launcher launches a kernel with a set of meta-parameters.
	Launcher interface {
		Launch(args []any, meta Meta) error
	}

	// Decorator wraps a launcher, for example to autotune its configuration.
	// Decorators are applied in registration order, the first one receiving a *Kernel.
	Decorator func(Launcher) (Launcher, error)

	// Func is a kernel function declared in a module.
	// Calls to a Func from another kernel are inlined.
	Func struct {
		mod        *Module
		decl       *ast.FuncDecl
		params     []string
		meta       string
		cache      *Cache
		decorators []Decorator
	}
)

func newFunc(mod *Module, decl *ast.FuncDecl) (*Func, error) {
	params, meta, err := builder.Signature(mod.fset, decl)
	if err != nil {
		return nil, err
	}
	return &Func{
		mod:    mod,
		decl:   decl,
		params: params,
		meta:   meta,
		cache:  NewCache(),
	}, nil
}

// Name of the kernel.
func (f *Func) Name() string {
	return f.decl.Name.Name
}

// Params returns the names of the parameters of the kernel, excluding the meta parameter.
func (f *Func) Params() []string {
	return append([]string{}, f.params...)
}

// FuncDecl returns the declaration of the kernel.
func (f *Func) FuncDecl() *ast.FuncDecl {
	return f.decl
}

// FileSet returns the file set of the module declaring the kernel.
func (f *Func) FileSet() *token.FileSet {
	return f.mod.fset
}

// Globals returns the global scope of the module declaring the kernel.
func (f *Func) Globals() scope.Scope[any] {
	return f.mod.globals
}

// Cache returns the cache of the compiled specializations of the kernel.
func (f *Func) Cache() *Cache {
	return f.cache
}

// Use registers decorators applied to the kernels returned by [Func.Kernel].
func (f *Func) Use(decorators ...Decorator) *Func {
	f.decorators = append(f.decorators, decorators...)
	return f
}

// Kernel returns a launcher for a grid, wrapped by the decorators of the function.
func (f *Func) Kernel(grid GridFunc) (Launcher, error) {
	var launcher Launcher = NewKernel(f, grid)
	for _, dec := range f.decorators {
		var err error
		if launcher, err = dec(launcher); err != nil {
			return nil, err
		}
	}
	return launcher, nil
}
