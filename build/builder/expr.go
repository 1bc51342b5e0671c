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
	"go/token"
	"strconv"

	"github.com/gx-org/tilejit/build/builtins"
	"github.com/gx-org/tilejit/build/ir"
)

// expr lowers an expression. The result is either an IR value or a host value.
func (f *frame) expr(expr ast.Expr) (any, error) {
	switch exprT := expr.(type) {
	case *ast.Ident:
		return f.resolve(exprT, exprT.Name)
	case *ast.BasicLit:
		return f.basicLit(exprT)
	case *ast.ParenExpr:
		return f.expr(exprT.X)
	case *ast.BinaryExpr:
		return f.binaryExpr(exprT)
	case *ast.UnaryExpr:
		return f.unaryExpr(exprT)
	case *ast.CallExpr:
		return f.callExpr(exprT)
	case *ast.IndexExpr:
		return f.indexExpr(exprT, exprT.X, []ast.Expr{exprT.Index})
	case *ast.IndexListExpr:
		return f.indexExpr(exprT, exprT.X, exprT.Indices)
	case *ast.SliceExpr:
		return f.sliceExpr(exprT)
	case *ast.SelectorExpr:
		return f.selectorExpr(exprT)
	}
	return nil, f.fset.Unsupported(expr, nodeName(expr))
}

// basicLit lowers a literal: integers to 32-bit integer constants,
// floats to 32-bit floating-point constants and strings to host strings.
func (f *frame) basicLit(lit *ast.BasicLit) (any, error) {
	switch lit.Kind {
	case token.INT:
		return f.intLit(lit, false)
	case token.FLOAT:
		x, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return nil, f.fset.Errorf(lit, "invalid float literal %s: %v", lit.Value, err)
		}
		return f.b.Float32(x), nil
	case token.STRING:
		s, err := strconv.Unquote(lit.Value)
		if err != nil {
			return nil, f.fset.Errorf(lit, "invalid string literal %s: %v", lit.Value, err)
		}
		return s, nil
	}
	return nil, f.fset.Unsupported(lit, lit.Kind.String()+" literal")
}

// intLit lowers an integer literal, negated if neg is set.
func (f *frame) intLit(lit *ast.BasicLit, neg bool) (*ir.Value, error) {
	i, err := strconv.ParseInt(lit.Value, 0, 64)
	if err != nil {
		return nil, f.fset.Errorf(lit, "invalid integer literal %s: %v", lit.Value, err)
	}
	if neg {
		i = -i
	}
	v, err := builtins.IntConst(f.b, i)
	if err != nil {
		return nil, f.fset.Position(lit, err)
	}
	return v, nil
}

// value lowers an expression which must result in an IR value.
func (f *frame) value(expr ast.Expr) (*ir.Value, error) {
	val, err := f.expr(expr)
	if err != nil {
		return nil, err
	}
	return f.toValue(expr, val)
}

var nodeNames = map[string]string{
	"*ast.CompositeLit":   "composite literal",
	"*ast.FuncLit":        "function literal",
	"*ast.StarExpr":       "pointer dereference",
	"*ast.TypeAssertExpr": "type assertion",
	"*ast.KeyValueExpr":   "key-value expression",
	"*ast.ForStmt":        "for statement (use a range over Range)",
	"*ast.SwitchStmt":     "switch statement",
	"*ast.TypeSwitchStmt": "type switch statement",
	"*ast.SelectStmt":     "select statement",
	"*ast.GoStmt":         "go statement",
	"*ast.DeferStmt":      "defer statement",
	"*ast.BranchStmt":     "branch statement",
	"*ast.LabeledStmt":    "labeled statement",
	"*ast.DeclStmt":       "declaration statement",
	"*ast.SendStmt":       "send statement",
}

// nodeName returns a human readable name for a syntax node kind.
func nodeName(node ast.Node) string {
	kind := fmt.Sprintf("%T", node)
	if name, ok := nodeNames[kind]; ok {
		return name
	}
	return kind
}
