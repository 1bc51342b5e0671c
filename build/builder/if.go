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
	"strings"

	"github.com/gx-org/tilejit/build/ir"
	"github.com/gx-org/tilejit/internal/exprdeps"
)

// ifStmt lowers the arm selected by a condition known at lowering time.
// The other arm is not lowered.
func (f *frame) ifStmt(stmt *ast.IfStmt) error {
	defer f.pushScope()()
	if stmt.Init != nil {
		if err := f.stmt(stmt.Init); err != nil {
			return err
		}
	}
	cond, err := f.expr(stmt.Cond)
	if err != nil {
		return err
	}
	taken, err := f.staticCond(stmt.Cond, cond)
	if err != nil {
		return err
	}
	switch {
	case taken:
		return f.blockStmt(stmt.Body)
	case stmt.Else != nil:
		return f.stmt(stmt.Else)
	}
	return nil
}

func (f *frame) staticCond(node ast.Expr, cond any) (bool, error) {
	switch condT := cond.(type) {
	case bool:
		return condT, nil
	case *ir.Value:
		if !condT.Type().IsBool() || condT.Type().IsBlock() {
			return false, f.fset.Errorf(node, "non-boolean condition of type %s in if statement", condT.Type())
		}
		if cst, ok := condT.Const(); ok {
			return cst.(bool), nil
		}
		construct := "data-dependent if condition"
		if deps := f.runtimeDeps(node); len(deps) > 0 {
			construct += " on " + strings.Join(deps, ", ")
		}
		return false, f.fset.Unsupported(node, construct+" (use tl.Where)")
	}
	return false, f.fset.Errorf(node, "non-boolean condition %v (%T) in if statement", cond, cond)
}

// runtimeDeps returns the variables of an expression holding values
// only known when the kernel runs.
func (f *frame) runtimeDeps(expr ast.Expr) []string {
	var deps []string
	for _, ident := range exprdeps.Idents(expr) {
		val, err := f.resolve(ident, ident.Name)
		if err != nil {
			continue
		}
		if v, ok := val.(*ir.Value); ok {
			if _, isConst := v.Const(); isConst {
				continue
			}
			deps = append(deps, ident.Name)
		}
	}
	return deps
}
