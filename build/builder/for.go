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

	"github.com/gx-org/tilejit/build/builtins"
	"github.com/gx-org/tilejit/build/ir"
)

// rangeLoop is a counted loop: for i := range Range(start, stop, step).
type rangeLoop struct {
	src               *ast.RangeStmt
	call              *ast.CallExpr
	start, stop, step ast.Expr
	iter              slot
}

func (f *frame) newRangeLoop(stmt *ast.RangeStmt) (*rangeLoop, error) {
	call, ok := stmt.X.(*ast.CallExpr)
	if !ok {
		return nil, f.fset.Unsupported(stmt.X, "range over "+nodeName(stmt.X)+" (use Range)")
	}
	callee, err := f.expr(call.Fun)
	if err != nil {
		return nil, err
	}
	if callee != builtins.Range {
		return nil, f.fset.Unsupported(call, "range over a call other than Range")
	}
	if stmt.Value != nil {
		return nil, f.fset.Unsupported(stmt.Value, "range value variable")
	}
	if stmt.Tok == token.ASSIGN {
		return nil, f.fset.Unsupported(stmt, "range loop assigning an existing variable")
	}
	loop := &rangeLoop{src: stmt, call: call}
	switch len(call.Args) {
	case 1:
		loop.stop = call.Args[0]
	case 2:
		loop.start, loop.stop = call.Args[0], call.Args[1]
	case 3:
		loop.start, loop.stop, loop.step = call.Args[0], call.Args[1], call.Args[2]
	default:
		return nil, f.fset.Errorf(call, "wrong number of arguments in call to Range: got %d but want 1, 2 or 3", len(call.Args))
	}
	return loop, nil
}

// bound lowers a Range argument, defaulting to the 32-bit integer def.
func (f *frame) bound(expr ast.Expr, def int64) (*ir.Value, error) {
	if expr == nil {
		return f.b.Int32(def), nil
	}
	return f.value(expr)
}

// cond builds select(step > 0, i < stop, i > stop) in the current block.
// stop and step are lowered again at every call.
func (f *frame) cond(loop *rangeLoop) (*ir.Value, error) {
	i, err := f.mod.GetValue(string(loop.iter), f.b.InsertBlock())
	if err != nil {
		return nil, f.fset.Position(loop.src, err)
	}
	stop, err := f.bound(loop.stop, 0)
	if err != nil {
		return nil, err
	}
	step, err := f.bound(loop.step, 1)
	if err != nil {
		return nil, err
	}
	pos, err := f.binary(loop.call, token.GTR, step, f.b.Int32(0))
	if err != nil {
		return nil, err
	}
	lt, err := f.binary(loop.call, token.LSS, i, stop)
	if err != nil {
		return nil, err
	}
	gt, err := f.binary(loop.call, token.GTR, i, stop)
	if err != nil {
		return nil, err
	}
	cond, err := f.b.Select(pos, lt, gt)
	if err != nil {
		return nil, f.fset.Position(loop.call, err)
	}
	return cond, nil
}

// rangeStmt lowers a counted loop:
//  1. the loop variable is initialized with start,
//  2. the condition is evaluated to branch to the loop body or after the loop,
//  3. the body is lowered in the loop block,
//  4. the loop variable is incremented by step,
//  5. the condition is evaluated again to branch back to the loop block or after the loop,
//  6. the block ending the body (if different from the loop block), the loop block and the block after the loop are sealed,
//  7. instructions are inserted after the loop.
func (f *frame) rangeStmt(stmt *ast.RangeStmt) error {
	loop, err := f.newRangeLoop(stmt)
	if err != nil {
		return err
	}
	defer f.pushScope()()
	name, named := "iter", false
	if stmt.Key != nil {
		ident, ok := stmt.Key.(*ast.Ident)
		if !ok {
			return f.fset.Unsupported(stmt.Key, "loop variable "+nodeName(stmt.Key))
		}
		if ident.Name != "_" {
			name, named = ident.Name, true
		}
	}
	loop.iter = slot(f.slots.Name(name))
	if named {
		f.local.Define(name, loop.iter)
	}
	start, err := f.bound(loop.start, 0)
	if err != nil {
		return err
	}
	f.write(loop.iter, start)

	cond, err := f.cond(loop)
	if err != nil {
		return err
	}
	body := f.fn.NewBlock("loop")
	post := f.fn.NewBlock("postloop")
	if err := f.b.CondBr(cond, body, post); err != nil {
		return f.fset.Position(stmt, err)
	}

	f.b.SetInsertBlock(body)
	f.loops++
	if err := f.blockStmt(stmt.Body); err != nil {
		return err
	}
	f.loops--
	i, err := f.mod.GetValue(string(loop.iter), f.b.InsertBlock())
	if err != nil {
		return f.fset.Position(stmt, err)
	}
	step, err := f.bound(loop.step, 1)
	if err != nil {
		return err
	}
	next, err := f.binary(loop.call, token.ADD, i, step)
	if err != nil {
		return err
	}
	f.write(loop.iter, next)
	if cond, err = f.cond(loop); err != nil {
		return err
	}
	if err := f.b.CondBr(cond, body, post); err != nil {
		return f.fset.Position(stmt, err)
	}

	if err := f.sealLoop(stmt, body, post); err != nil {
		return err
	}
	f.b.SetInsertBlock(post)
	return nil
}

func (f *frame) sealLoop(stmt *ast.RangeStmt, body, post *ir.Block) error {
	backEdge := f.b.InsertBlock()
	blocks := []*ir.Block{body, post}
	if backEdge != body && !backEdge.Sealed() {
		blocks = append([]*ir.Block{backEdge}, blocks...)
	}
	for _, block := range blocks {
		if err := f.mod.SealBlock(block); err != nil {
			return f.fset.Position(stmt, err)
		}
	}
	return nil
}
