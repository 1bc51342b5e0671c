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

package builder

import (
	"go/ast"
	"reflect"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/tilejit/build/builtins"
	"github.com/gx-org/tilejit/build/fmterr"
	"github.com/gx-org/tilejit/build/ir"
)

// slot is the unique name of a variable in the IR value table.
// Local scopes bind the names of IR variables to slots.
type slot string

func (f *frame) pushScope() func() {
	parent := f.local
	f.local = parent.NewChild()
	return func() { f.local = parent }
}

// define binds a name in the innermost scope.
// IR values are stored in a fresh slot of the value table.
func (f *frame) define(name string, val any) {
	if name == "_" {
		return
	}
	v, isIR := val.(*ir.Value)
	if !isIR {
		f.local.Define(name, val)
		return
	}
	s := slot(f.slots.Name(name))
	f.local.Define(name, s)
	f.write(s, v)
}

func (f *frame) write(s slot, v *ir.Value) {
	f.mod.SetType(string(s), v.Type())
	f.mod.SetValue(string(s), f.b.InsertBlock(), v)
}

// assign rebinds a name already defined in a local scope.
func (f *frame) assign(node ast.Node, name string, val any) error {
	if name == "_" {
		return nil
	}
	owner, ok := f.local.Owner(name)
	if !ok {
		if _, found := f.local.Find(name); found {
			return f.fset.Errorf(node, "cannot assign to %s: not a local variable", name)
		}
		return f.fset.NameError(node, name)
	}
	current, _ := owner.Find(name)
	v, isIR := val.(*ir.Value)
	if !isIR {
		return owner.Assign(name, val)
	}
	s, isSlot := current.(slot)
	if !isSlot {
		s = slot(f.slots.Name(name))
		if err := owner.Assign(name, s); err != nil {
			return err
		}
	}
	f.write(s, v)
	return nil
}

// resolve returns the value bound to a name, searching the local scopes
// (innermost first), then the global scope and finally the builtin scope.
func (f *frame) resolve(node ast.Node, name string) (any, error) {
	val, ok := f.local.Find(name)
	if !ok {
		return nil, f.fset.NameError(node, name)
	}
	if s, isSlot := val.(slot); isSlot {
		v, err := f.mod.GetValue(string(s), f.b.InsertBlock())
		if err != nil {
			return nil, f.fset.Position(node, err)
		}
		return v, nil
	}
	return f.materialize(val), nil
}

// materialize converts host numbers to IR constants.
// A new constant is created at every use.
func (f *frame) materialize(val any) any {
	switch val.(type) {
	case ir.Slice, dtype.DataType, bool:
		return val
	}
	rv := reflect.ValueOf(val)
	if !rv.IsValid() {
		return val
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		v, err := builtins.ToValue(f.b, val)
		if err != nil {
			return val
		}
		return v
	}
	return val
}

// toValue converts the result of an expression to an IR value.
func (f *frame) toValue(node ast.Node, val any) (*ir.Value, error) {
	v, err := builtins.ToValue(f.b, val)
	if err != nil {
		return nil, f.fset.Position(node, err)
	}
	return v, nil
}

func unsupported(construct string) error {
	return &fmterr.UnsupportedConstructError{Construct: construct}
}
