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

var assignOps = map[token.Token]token.Token{
	token.ADD_ASSIGN: token.ADD,
	token.SUB_ASSIGN: token.SUB,
	token.MUL_ASSIGN: token.MUL,
	token.QUO_ASSIGN: token.QUO,
	token.REM_ASSIGN: token.REM,
	token.AND_ASSIGN: token.AND,
	token.OR_ASSIGN:  token.OR,
	token.XOR_ASSIGN: token.XOR,
	token.SHL_ASSIGN: token.SHL,
	token.SHR_ASSIGN: token.SHR,
}

func (f *frame) assignStmt(stmt *ast.AssignStmt) error {
	if stmt.Tok == token.DEFINE || stmt.Tok == token.ASSIGN {
		return f.parallelAssign(stmt)
	}
	op, ok := assignOps[stmt.Tok]
	if !ok {
		return f.fset.Unsupported(stmt, "assignment operator "+stmt.Tok.String())
	}
	if len(stmt.Lhs) != 1 || len(stmt.Rhs) != 1 {
		return f.fset.Errorf(stmt, "assignment operator %s requires single-valued expressions", stmt.Tok)
	}
	x, err := f.value(stmt.Lhs[0])
	if err != nil {
		return err
	}
	y, err := f.value(stmt.Rhs[0])
	if err != nil {
		return err
	}
	res, err := f.binary(stmt, op, x, y)
	if err != nil {
		return err
	}
	return f.store(token.ASSIGN, stmt.Lhs[0], res)
}

// parallelAssign evaluates all the right-hand side expressions
// before binding any name on the left-hand side.
func (f *frame) parallelAssign(stmt *ast.AssignStmt) error {
	if len(stmt.Lhs) != len(stmt.Rhs) {
		return f.fset.Errorf(stmt, "assignment mismatch: %d variable(s) but %d value(s)", len(stmt.Lhs), len(stmt.Rhs))
	}
	vals := make([]any, len(stmt.Rhs))
	for i, rhs := range stmt.Rhs {
		var err error
		if vals[i], err = f.expr(rhs); err != nil {
			return err
		}
		if vals[i] == nil {
			return f.fset.Errorf(rhs, "expression has no value")
		}
	}
	for i, lhs := range stmt.Lhs {
		if err := f.store(stmt.Tok, lhs, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

// store binds a value to the name on the left-hand side of an assignment.
// := defines a new variable unless the name is already defined in the
// innermost scope. = rebinds an existing variable.
func (f *frame) store(tok token.Token, lhs ast.Expr, val any) error {
	ident, ok := lhs.(*ast.Ident)
	if !ok {
		return f.fset.Unsupported(lhs, "assignment to "+nodeName(lhs))
	}
	if tok == token.DEFINE && !f.local.IsLocal(ident.Name) {
		f.define(ident.Name, val)
		return nil
	}
	return f.fset.Position(ident, f.assign(ident, ident.Name, val))
}
