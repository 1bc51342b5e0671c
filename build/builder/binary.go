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

	"github.com/gx-org/tilejit/build/ir"
)

func isArithmetic(op token.Token) bool {
	switch op {
	case token.ADD, token.SUB, token.MUL, token.QUO, token.REM,
		token.AND, token.OR, token.XOR, token.SHL, token.SHR:
		return true
	}
	return false
}

func isComparison(op token.Token) bool {
	switch op {
	case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
		return true
	}
	return false
}

func (f *frame) binaryExpr(expr *ast.BinaryExpr) (any, error) {
	if !isArithmetic(expr.Op) && !isComparison(expr.Op) {
		return nil, f.fset.Unsupported(expr, "operator "+expr.Op.String())
	}
	x, err := f.value(expr.X)
	if err != nil {
		return nil, err
	}
	y, err := f.value(expr.Y)
	if err != nil {
		return nil, err
	}
	return f.binary(expr, expr.Op, x, y)
}

// binary promotes and broadcasts the operands of a binary operator
// before building the matching IR instruction.
func (f *frame) binary(node ast.Node, op token.Token, x, y *ir.Value) (*ir.Value, error) {
	if op == token.ADD && y.Type().IsPtr() && !x.Type().IsPtr() {
		x, y = y, x
	}
	if cst, ok := f.fold(op, x, y); ok {
		return cst, nil
	}
	x, y, err := f.b.Unify(x, y)
	if err != nil {
		return nil, f.fset.Position(node, err)
	}
	var res *ir.Value
	if isComparison(op) {
		res, err = f.b.Compare(op, x, y)
	} else {
		res, err = f.b.Binary(op, x, y)
	}
	if err != nil {
		return nil, f.fset.Position(node, err)
	}
	return res, nil
}
