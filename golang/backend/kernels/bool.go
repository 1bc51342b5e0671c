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

	"github.com/gx-org/backend/dtype"
	"github.com/pkg/errors"
)

type boolFactory struct {
	arrayFactory[bool]
}

var _ Factory = boolFactory{}

func (boolFactory) Atom(v any) (Array, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, errors.Errorf("cannot convert %T to bool", v)
	}
	return ToArray([]bool{b}, nil), nil
}

func (boolFactory) BinaryOp(op token.Token) (Binary, error) {
	switch op {
	case token.AND:
		return elementwise(func(x, y bool) bool { return x && y }), nil
	case token.OR:
		return elementwise(func(x, y bool) bool { return x || y }), nil
	case token.XOR:
		return elementwise(func(x, y bool) bool { return x != y }), nil
	}
	return nil, errors.Errorf("operator %s not supported on bool", op)
}

func (boolFactory) Compare(op token.Token) (Binary, error) {
	switch op {
	case token.EQL:
		return elementwise(func(x, y bool) bool { return x == y }), nil
	case token.NEQ:
		return elementwise(func(x, y bool) bool { return x != y }), nil
	}
	return nil, errors.Errorf("comparison %s not supported on bool", op)
}

func (boolFactory) MinMax(bool) (Binary, error) {
	return nil, errors.Errorf("min and max not supported on bool")
}

func toNumber[T goAlgebra](x bool) T {
	if x {
		return 1
	}
	return 0
}

func (boolFactory) Cast(target dtype.DataType) (Unary, error) {
	switch target {
	case dtype.Bool:
		return unary(func(x bool) bool { return x }), nil
	case dtype.Float32:
		return unary(toNumber[float32]), nil
	case dtype.Float64:
		return unary(toNumber[float64]), nil
	case dtype.Int32:
		return unary(toNumber[int32]), nil
	case dtype.Int64:
		return unary(toNumber[int64]), nil
	case dtype.Uint32:
		return unary(toNumber[uint32]), nil
	case dtype.Uint64:
		return unary(toNumber[uint64]), nil
	}
	return nil, errors.Errorf("cannot cast bool to %s", target.String())
}

func (boolFactory) Math(fn string) (Unary, error) {
	return nil, errors.Errorf("math function %s not supported on bool", fn)
}
