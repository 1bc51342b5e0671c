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
	"go/token"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/tilejit/build/ir"
)

// fold evaluates a binary operator on two scalar constants at lowering time
// so that conditions on compile-time values can select the arm of an if statement.
func (f *frame) fold(op token.Token, x, y *ir.Value) (*ir.Value, bool) {
	xc, xOk := x.Const()
	yc, yOk := y.Const()
	if !xOk || !yOk {
		return nil, false
	}
	switch xT := xc.(type) {
	case bool:
		yT, ok := yc.(bool)
		if !ok {
			return nil, false
		}
		return f.foldBool(op, xT, yT)
	case int64:
		switch yT := yc.(type) {
		case int64:
			return f.foldInt(op, x.Type(), y.Type(), xT, yT)
		case float64:
			return f.foldFloat(op, y.Type(), float64(xT), yT)
		}
	case float64:
		switch yT := yc.(type) {
		case int64:
			return f.foldFloat(op, x.Type(), xT, float64(yT))
		case float64:
			typ := x.Type()
			if y.Type().DType() == dtype.Float64 {
				typ = y.Type()
			}
			return f.foldFloat(op, typ, xT, yT)
		}
	}
	return nil, false
}

func (f *frame) foldBool(op token.Token, x, y bool) (*ir.Value, bool) {
	switch op {
	case token.EQL:
		return f.b.Bool(x == y), true
	case token.NEQ, token.XOR:
		return f.b.Bool(x != y), true
	case token.AND:
		return f.b.Bool(x && y), true
	case token.OR:
		return f.b.Bool(x || y), true
	}
	return nil, false
}

func compare[T int64 | float64](op token.Token, x, y T) (bool, bool) {
	switch op {
	case token.EQL:
		return x == y, true
	case token.NEQ:
		return x != y, true
	case token.LSS:
		return x < y, true
	case token.LEQ:
		return x <= y, true
	case token.GTR:
		return x > y, true
	case token.GEQ:
		return x >= y, true
	}
	return false, false
}

func (f *frame) foldInt(op token.Token, xt, yt ir.Type, x, y int64) (*ir.Value, bool) {
	if res, ok := compare(op, x, y); ok {
		return f.b.Bool(res), true
	}
	typ := xt
	if ir.IntWidth(yt.DType()) > ir.IntWidth(xt.DType()) {
		typ = yt
	}
	var res int64
	switch op {
	case token.ADD:
		res = x + y
	case token.SUB:
		res = x - y
	case token.MUL:
		res = x * y
	case token.QUO, token.REM:
		if y == 0 {
			return nil, false
		}
		if op == token.QUO {
			res = x / y
		} else {
			res = x % y
		}
	case token.AND:
		res = x & y
	case token.OR:
		res = x | y
	case token.XOR:
		res = x ^ y
	case token.SHL, token.SHR:
		if y < 0 || y >= int64(ir.IntWidth(typ.DType())) {
			return nil, false
		}
		if op == token.SHL {
			res = x << y
		} else {
			res = x >> y
		}
	default:
		return nil, false
	}
	switch typ.DType() {
	case dtype.Int32:
		res = int64(int32(res))
	case dtype.Uint32:
		res = int64(uint32(res))
	}
	return f.b.Const(typ, res), true
}

func (f *frame) foldFloat(op token.Token, typ ir.Type, x, y float64) (*ir.Value, bool) {
	if res, ok := compare(op, x, y); ok {
		return f.b.Bool(res), true
	}
	var res float64
	switch op {
	case token.ADD:
		res = x + y
	case token.SUB:
		res = x - y
	case token.MUL:
		res = x * y
	case token.QUO:
		res = x / y
	default:
		return nil, false
	}
	if typ.DType() == dtype.Float32 {
		res = float64(float32(res))
	}
	return f.b.Const(typ, res), true
}
