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
	"github.com/gx-org/tilejit/build/fmterr"
	"github.com/gx-org/tilejit/build/ir"
	"github.com/pkg/errors"
)

func (f *frame) selectorExpr(expr *ast.SelectorExpr) (any, error) {
	x, err := f.expr(expr.X)
	if err != nil {
		return nil, err
	}
	name := expr.Sel.Name
	switch xT := x.(type) {
	case *builtins.Namespace:
		member, ok := xT.Member(name)
		if !ok {
			return nil, f.fset.Position(expr, &fmterr.NameResolutionError{Name: xT.Name() + "." + name})
		}
		return f.materialize(member), nil
	case *ir.Value:
		attr, ok := builtins.Attr(xT, name)
		if !ok {
			return nil, f.fset.Errorf(expr.Sel, "%s (type %s) has no field or method %s", xT, xT.Type(), name)
		}
		return attr, nil
	}
	attr, err := hostAttr(x, name)
	if err != nil {
		return nil, f.fset.Position(expr, err)
	}
	return f.materialize(attr), nil
}

// hostAttr returns an exported field or method of a host value.
func hostAttr(x any, name string) (any, error) {
	rv := reflect.ValueOf(x)
	if !rv.IsValid() {
		return nil, errors.Errorf("cannot select %s on nil", name)
	}
	if method := rv.MethodByName(name); method.IsValid() {
		return method.Interface(), nil
	}
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		field, ok := rv.Type().FieldByName(name)
		if ok && field.IsExported() {
			return rv.FieldByIndex(field.Index).Interface(), nil
		}
	}
	return nil, errors.Errorf("%T has no exported field or method %s", x, name)
}
