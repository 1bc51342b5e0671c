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

// Package builtins provides the names predeclared in kernels:
// the Range loop iterator, the min and max functions, boolean constants,
// slicing markers and the tl namespace of IR primitives.
package builtins

import (
	"maps"
	"slices"

	"github.com/gx-org/tilejit/build/ir"
	"github.com/gx-org/tilejit/internal/base/scope"
)

type (
	// Primitive is a function building IR instructions when called from a kernel.
	// Arguments are IR values or host values.
	Primitive struct {
		name string
		impl func(b *ir.Builder, args []any) (any, error)
	}

	// Namespace is a named set of values accessed with a selector, e.g. tl.Load.
	Namespace struct {
		name    string
		members map[string]any
	}

	// RangeFunc is the type of the Range builtin.
	// Range can only be used as the iterator of a counted for loop.
	RangeFunc struct{}
)

// Range is the iterator of counted loops:
//
//	for i := range Range(start, stop, step) {...}
var Range = &RangeFunc{}

// NewPrimitive returns a new primitive given its name and implementation.
func NewPrimitive(name string, impl func(*ir.Builder, []any) (any, error)) *Primitive {
	return &Primitive{name: name, impl: impl}
}

// Name of the primitive.
func (p *Primitive) Name() string { return p.name }

// Call the primitive with the insertion point of a builder.
func (p *Primitive) Call(b *ir.Builder, args []any) (any, error) {
	return p.impl(b, args)
}

func (p *Primitive) String() string { return p.name }

// NewNamespace returns a namespace given its members.
func NewNamespace(name string, members map[string]any) *Namespace {
	return &Namespace{name: name, members: members}
}

// Name of the namespace.
func (ns *Namespace) Name() string { return ns.name }

// Member returns a member of the namespace given its name.
func (ns *Namespace) Member(name string) (any, bool) {
	v, ok := ns.members[name]
	return v, ok
}

// Members returns the sorted names of the members of the namespace.
func (ns *Namespace) Members() []string {
	return slices.Sorted(maps.Keys(ns.members))
}

func (ns *Namespace) String() string { return ns.name }

func (*RangeFunc) String() string { return "Range" }

var builtinScope = scope.NewReadOnly(nil, map[string]any{
	"Range": Range,
	"min":   NewPrimitive("min", binaryPrimitive((*ir.Builder).Minimum)),
	"max":   NewPrimitive("max", binaryPrimitive((*ir.Builder).Maximum)),
	"true":  true,
	"false": false,
	"nil":   ir.NewAxis,
	"All":   ir.All,
	"tl":    TL,
})

// Scope returns the read-only builtin scope.
func Scope() scope.Scope[any] {
	return builtinScope
}
