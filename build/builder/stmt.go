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

// stmts lowers a list of statements, stopping at the first return.
func (f *frame) stmts(list []ast.Stmt) error {
	for _, stmt := range list {
		if err := f.stmt(stmt); err != nil {
			return err
		}
		if f.returned {
			return nil
		}
	}
	return nil
}

func (f *frame) stmt(stmt ast.Stmt) error {
	switch stmtT := stmt.(type) {
	case *ast.ExprStmt:
		_, err := f.expr(stmtT.X)
		return err
	case *ast.AssignStmt:
		return f.assignStmt(stmtT)
	case *ast.IncDecStmt:
		return f.incDecStmt(stmtT)
	case *ast.BlockStmt:
		return f.blockStmt(stmtT)
	case *ast.IfStmt:
		return f.ifStmt(stmtT)
	case *ast.RangeStmt:
		return f.rangeStmt(stmtT)
	case *ast.ReturnStmt:
		return f.returnStmt(stmtT)
	case *ast.EmptyStmt:
		return nil
	}
	return f.fset.Unsupported(stmt, nodeName(stmt))
}

func (f *frame) blockStmt(block *ast.BlockStmt) error {
	defer f.pushScope()()
	return f.stmts(block.List)
}

func (f *frame) returnStmt(stmt *ast.ReturnStmt) error {
	if f.loops > 0 {
		return f.fset.Unsupported(stmt, "return inside a loop")
	}
	switch len(stmt.Results) {
	case 0:
	case 1:
		res, err := f.expr(stmt.Results[0])
		if err != nil {
			return err
		}
		f.result = res
	default:
		return f.fset.Unsupported(stmt, "return of multiple values")
	}
	f.returned = true
	return nil
}

func (f *frame) incDecStmt(stmt *ast.IncDecStmt) error {
	op := token.ADD
	if stmt.Tok == token.DEC {
		op = token.SUB
	}
	x, err := f.value(stmt.X)
	if err != nil {
		return err
	}
	res, err := f.binary(stmt, op, x, f.b.Int32(1))
	if err != nil {
		return err
	}
	return f.store(token.ASSIGN, stmt.X, res)
}
