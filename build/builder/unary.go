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
	"go/token"
)

func (f *frame) unaryExpr(expr *ast.UnaryExpr) (any, error) {
	switch expr.Op {
	case token.ADD:
		return f.value(expr.X)
	case token.SUB:
		if lit, ok := expr.X.(*ast.BasicLit); ok && lit.Kind == token.INT {
			return f.intLit(lit, true)
		}
	default:
		return nil, f.fset.Unsupported(expr, "unary operator "+expr.Op.String())
	}
	x, err := f.value(expr.X)
	if err != nil {
		return nil, err
	}
	zero, err := f.b.Zero(x.Type().Elem())
	if err != nil {
		return nil, f.fset.Position(expr, err)
	}
	return f.binary(expr, token.SUB, zero, x)
}
