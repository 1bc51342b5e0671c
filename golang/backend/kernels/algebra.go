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

package kernels

import (
	"go/token"
	"math"

	"github.com/gx-org/backend/dtype"
	"github.com/pkg/errors"
)

type (
	goAlgebra interface {
		dtype.Float | dtype.IntegerType
	}

	// numericFactory implements the kernels shared by integers and floats.
	numericFactory[T goAlgebra] struct {
		arrayFactory[T]
	}

	floatFactory[T dtype.Float] struct {
		numericFactory[T]
	}

	integerFactory[T dtype.IntegerType] struct {
		numericFactory[T]
	}
)

var (
	_ Factory = floatFactory[float32]{}
	_ Factory = integerFactory[int32]{}
)

func (numericFactory[T]) Atom(v any) (Array, error) {
	var x T
	switch vT := v.(type) {
	case int64:
		x = T(vT)
	case float64:
		x = T(vT)
	case bool:
		if vT {
			x = 1
		}
	default:
		return nil, errors.Errorf("cannot convert %T to %s", v, dtype.Generic[T]().String())
	}
	return ToArray([]T{x}, nil), nil
}

func (numericFactory[T]) Compare(op token.Token) (Binary, error) {
	switch op {
	case token.EQL:
		return elementwise(func(x, y T) bool { return x == y }), nil
	case token.NEQ:
		return elementwise(func(x, y T) bool { return x != y }), nil
	case token.LSS:
		return elementwise(func(x, y T) bool { return x < y }), nil
	case token.LEQ:
		return elementwise(func(x, y T) bool { return x <= y }), nil
	case token.GTR:
		return elementwise(func(x, y T) bool { return x > y }), nil
	case token.GEQ:
		return elementwise(func(x, y T) bool { return x >= y }), nil
	}
	return nil, errors.Errorf("comparison %s not supported on %s", op, dtype.Generic[T]().String())
}

func (numericFactory[T]) MinMax(max bool) (Binary, error) {
	if max {
		return elementwise(func(x, y T) T {
			if x > y {
				return x
			}
			return y
		}), nil
	}
	return elementwise(func(x, y T) T {
		if x < y {
			return x
		}
		return y
	}), nil
}

func (numericFactory[T]) Cast(target dtype.DataType) (Unary, error) {
	switch target {
	case dtype.Bool:
		return unary(func(x T) bool { return x != 0 }), nil
	case dtype.Float32:
		return unary(func(x T) float32 { return float32(x) }), nil
	case dtype.Float64:
		return unary(func(x T) float64 { return float64(x) }), nil
	case dtype.Int32:
		return unary(func(x T) int32 { return int32(x) }), nil
	case dtype.Int64:
		return unary(func(x T) int64 { return int64(x) }), nil
	case dtype.Uint32:
		return unary(func(x T) uint32 { return uint32(x) }), nil
	case dtype.Uint64:
		return unary(func(x T) uint64 { return uint64(x) }), nil
	}
	return nil, errors.Errorf("cannot cast %s to %s", dtype.Generic[T]().String(), target.String())
}

func (f numericFactory[T]) arithmetic(op token.Token) (Binary, bool) {
	switch op {
	case token.ADD:
		return elementwise(func(x, y T) T { return x + y }), true
	case token.SUB:
		return elementwise(func(x, y T) T { return x - y }), true
	case token.MUL:
		return elementwise(func(x, y T) T { return x * y }), true
	}
	return nil, false
}

func (f floatFactory[T]) BinaryOp(op token.Token) (Binary, error) {
	if kernel, ok := f.arithmetic(op); ok {
		return kernel, nil
	}
	switch op {
	case token.QUO:
		return elementwise(func(x, y T) T { return x / y }), nil
	case token.REM:
		return elementwise(func(x, y T) T { return T(math.Mod(float64(x), float64(y))) }), nil
	}
	return nil, errors.Errorf("operator %s not supported on %s", op, dtype.Generic[T]().String())
}

// BinaryOp returns integer kernels. Division by zero yields zero
// since masked-off lanes are evaluated as well.
func (f integerFactory[T]) BinaryOp(op token.Token) (Binary, error) {
	if kernel, ok := f.arithmetic(op); ok {
		return kernel, nil
	}
	switch op {
	case token.QUO:
		return elementwise(func(x, y T) T {
			if y == 0 {
				return 0
			}
			return x / y
		}), nil
	case token.REM:
		return elementwise(func(x, y T) T {
			if y == 0 {
				return 0
			}
			return x % y
		}), nil
	case token.AND:
		return elementwise(func(x, y T) T { return x & y }), nil
	case token.OR:
		return elementwise(func(x, y T) T { return x | y }), nil
	case token.XOR:
		return elementwise(func(x, y T) T { return x ^ y }), nil
	case token.SHL:
		return elementwise(func(x, y T) T {
			if y < 0 {
				return 0
			}
			return x << y
		}), nil
	case token.SHR:
		return elementwise(func(x, y T) T {
			if y < 0 {
				return 0
			}
			return x >> y
		}), nil
	}
	return nil, errors.Errorf("operator %s not supported on %s", op, dtype.Generic[T]().String())
}
