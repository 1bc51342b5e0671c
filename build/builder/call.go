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
	"fmt"
	"go/ast"
	"reflect"

	gxfmt "github.com/gx-org/tilejit/base/fmt"
	"github.com/gx-org/tilejit/build/builtins"
	"github.com/gx-org/tilejit/build/ir"
	"github.com/pkg/errors"
)

type callKind int

const (
	inlineCall callKind = iota
	primitiveCall
	hostCall
)

// dispatch determines how a callee is called.
func dispatch(callee any) (callKind, bool) {
	switch callee.(type) {
	case Inliner:
		return inlineCall, true
	case *builtins.Primitive:
		return primitiveCall, true
	}
	if rv := reflect.ValueOf(callee); rv.IsValid() && rv.Kind() == reflect.Func {
		return hostCall, true
	}
	return 0, false
}

func (f *frame) callExpr(expr *ast.CallExpr) (any, error) {
	if expr.Ellipsis.IsValid() {
		return nil, f.fset.Unsupported(expr, "variadic call")
	}
	callee, err := f.expr(expr.Fun)
	if err != nil {
		return nil, err
	}
	if callee == builtins.Range {
		return nil, f.fset.Unsupported(expr, "Range outside of a for loop")
	}
	kind, ok := dispatch(callee)
	if !ok {
		return nil, f.fset.Errorf(expr.Fun, "cannot call non-function %v (%T)", callee, callee)
	}
	args := make([]any, len(expr.Args))
	for i, arg := range expr.Args {
		if args[i], err = f.expr(arg); err != nil {
			return nil, err
		}
	}
	var res any
	switch kind {
	case inlineCall:
		res, err = f.inline(expr, callee.(Inliner), args)
	case primitiveCall:
		res, err = callee.(*builtins.Primitive).Call(f.b, args)
	case hostCall:
		res, err = callHost(callee, args)
	}
	if err != nil {
		return nil, f.fset.Position(expr, err)
	}
	return res, nil
}

// inline lowers the body of a kernel at the current insertion point
// with a new local scope binding the parameters to the arguments.
func (f *frame) inline(expr *ast.CallExpr, callee Inliner, args []any) (any, error) {
	decl := callee.FuncDecl()
	if f.depth >= maxInlineDepth {
		return nil, errors.Errorf("cannot inline %s: too many nested calls (recursive kernel?)", decl.Name.Name)
	}
	params, meta, err := Signature(callee.FileSet(), decl)
	if err != nil {
		return nil, err
	}
	if len(params) != len(args) {
		return nil, errors.Errorf("wrong number of arguments in call to %s: got %d but want %d", decl.Name.Name, len(args), len(params))
	}
	child := f.newFrame(callee, f.depth+1)
	for i, name := range params {
		child.define(name, args[i])
	}
	if meta != "" {
		child.define(meta, f.meta)
	}
	if err := child.stmts(decl.Body.List); err != nil {
		return nil, err
	}
	return child.result, nil
}

func hostArg(arg any, want reflect.Type) (reflect.Value, error) {
	if v, isIR := arg.(*ir.Value); isIR {
		cst, isConst := v.Const()
		if !isConst {
			return reflect.Value{}, unsupported(fmt.Sprintf("IR value %s passed to a host function", v))
		}
		arg = cst
	}
	if arg == nil {
		return reflect.Zero(want), nil
	}
	rv := reflect.ValueOf(arg)
	if rv.Type().AssignableTo(want) {
		return rv, nil
	}
	if rv.CanConvert(want) {
		return rv.Convert(want), nil
	}
	return reflect.Value{}, errors.Errorf("cannot use %v (%T) as %s argument", arg, arg, want)
}

var errorType = reflect.TypeFor[error]()

// callHost calls a Go function at lowering time.
func callHost(callee any, args []any) (any, error) {
	fn := reflect.ValueOf(callee)
	typ := fn.Type()
	numIn := typ.NumIn()
	if typ.IsVariadic() {
		if len(args) < numIn-1 {
			return nil, errors.Errorf("not enough arguments in call to %s", gxfmt.Func(callee))
		}
	} else if len(args) != numIn {
		return nil, errors.Errorf("wrong number of arguments in call to %s: got %d but want %d", gxfmt.Func(callee), len(args), numIn)
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		want := typ.In(min(i, numIn-1))
		if typ.IsVariadic() && i >= numIn-1 {
			want = want.Elem()
		}
		var err error
		if in[i], err = hostArg(arg, want); err != nil {
			return nil, err
		}
	}
	out := fn.Call(in)
	if len(out) > 0 && typ.Out(len(out)-1) == errorType {
		if err, _ := out[len(out)-1].Interface().(error); err != nil {
			return nil, err
		}
		out = out[:len(out)-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	}
	return nil, unsupported(fmt.Sprintf("host function %s returning %d values", gxfmt.Func(callee), len(out)))
}
