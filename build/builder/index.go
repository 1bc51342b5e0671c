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

	"github.com/gx-org/tilejit/build/builtins"
	"github.com/gx-org/tilejit/build/ir"
	"github.com/pkg/errors"
)

func (f *frame) indexExpr(expr ast.Expr, x ast.Expr, indices []ast.Expr) (any, error) {
	val, err := f.expr(x)
	if err != nil {
		return nil, err
	}
	if v, isIR := val.(*ir.Value); isIR {
		return f.getElement(expr, v, indices)
	}
	if len(indices) != 1 {
		return nil, f.fset.Errorf(expr, "cannot index %T with %d indices", val, len(indices))
	}
	index, err := f.expr(indices[0])
	if err != nil {
		return nil, err
	}
	res, err := hostIndex(val, index)
	if err != nil {
		return nil, f.fset.Position(expr, err)
	}
	return res, nil
}

// sliceExpr lowers x[:], keeping all the dimensions of x.
func (f *frame) sliceExpr(expr *ast.SliceExpr) (any, error) {
	if expr.Low != nil || expr.High != nil || expr.Max != nil {
		return nil, f.fset.Unsupported(expr, "slice with bounds")
	}
	v, err := f.value(expr.X)
	if err != nil {
		return nil, err
	}
	return f.buildGetElement(expr, v, []ir.Slice{ir.All})
}

// getElement indexes an IR value: nil inserts a new axis, All (or :) keeps a dimension.
func (f *frame) getElement(expr ast.Expr, v *ir.Value, indices []ast.Expr) (*ir.Value, error) {
	slices := make([]ir.Slice, len(indices))
	for i, index := range indices {
		val, err := f.expr(index)
		if err != nil {
			return nil, err
		}
		s, ok := val.(ir.Slice)
		if !ok {
			return nil, f.fset.Unsupported(index, "index other than nil or All on an IR value")
		}
		slices[i] = s
	}
	return f.buildGetElement(expr, v, slices)
}

func (f *frame) buildGetElement(expr ast.Expr, v *ir.Value, slices []ir.Slice) (*ir.Value, error) {
	res, err := f.b.GetElement(v, slices)
	if err != nil {
		return nil, f.fset.Position(expr, err)
	}
	return res, nil
}

// hostIndex evaluates an index expression on a host value:
// a map, a slice, an array or a string.
func hostIndex(x, index any) (any, error) {
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Map:
		key, err := hostArg(index, rv.Type().Key())
		if err != nil {
			return nil, err
		}
		elem := rv.MapIndex(key)
		if !elem.IsValid() {
			return nil, errors.Errorf("key %v not found", index)
		}
		return elem.Interface(), nil
	case reflect.Slice, reflect.Array, reflect.String:
		i, err := builtins.Int(index)
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= rv.Len() {
			return nil, errors.Errorf("index %d out of range [0:%d]", i, rv.Len())
		}
		return rv.Index(i).Interface(), nil
	}
	return nil, errors.Errorf("cannot index %v (%T)", x, x)
}
