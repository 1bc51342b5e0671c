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

package ir

import (
	"slices"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/tilejit/build/fmterr"
)

// Promote converts the scalar kinds of two operands to a common kind.
// An integer operand is converted to the floating-point kind of the other
// operand and the narrower of two integers or floats is widened.
// Pointers and booleans are left unchanged.
func (b *Builder) Promote(x, y *Value) (*Value, *Value, error) {
	xt, yt := x.typ, y.typ
	if xt.IsPtr() || yt.IsPtr() || xt.dt == yt.dt {
		return x, y, nil
	}
	target, ok := promoted(xt, yt)
	if !ok {
		return x, y, nil
	}
	var err error
	if x, err = b.Cast(x, target); err != nil {
		return nil, nil, err
	}
	if y, err = b.Cast(y, target); err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

func promoted(x, y Type) (dtype.DataType, bool) {
	switch {
	case x.IsFloat() && y.IsInt():
		return x.dt, true
	case x.IsInt() && y.IsFloat():
		return y.dt, true
	case x.IsFloat() && y.IsFloat():
		if x.dt == dtype.Float64 || y.dt == dtype.Float64 {
			return dtype.Float64, true
		}
		return dtype.Float32, true
	case x.IsInt() && y.IsInt():
		if IntWidth(x.dt) >= IntWidth(y.dt) {
			if IntWidth(x.dt) == IntWidth(y.dt) && !isSigned(y.dt) {
				return y.dt, true
			}
			return x.dt, true
		}
		return y.dt, true
	}
	return dtype.Invalid, false
}

func isSigned(dt dtype.DataType) bool {
	return dt == dtype.Int32 || dt == dtype.Int64
}

// BroadcastShapes returns the shape to which two shapes broadcast.
// Scalars (empty shapes) broadcast to any shape. Blocks must have the same
// rank and, along each dimension, the same size or a size of 1.
func BroadcastShapes(xs, ys []int) ([]int, error) {
	switch {
	case len(xs) == 0:
		return ys, nil
	case len(ys) == 0:
		return xs, nil
	}
	if len(xs) != len(ys) {
		dim := min(len(xs), len(ys))
		err := &fmterr.ShapeBroadcastError{Dim: dim, X: -1, Y: -1, XS: xs, YS: ys}
		if dim < len(xs) {
			err.X = xs[dim]
		} else {
			err.Y = ys[dim]
		}
		return nil, err
	}
	shape := make([]int, len(xs))
	for i, x := range xs {
		y := ys[i]
		switch {
		case x == y, y == 1:
			shape[i] = x
		case x == 1:
			shape[i] = y
		default:
			return nil, &fmterr.ShapeBroadcastError{Dim: i, X: x, Y: y, XS: xs, YS: ys}
		}
	}
	return shape, nil
}

// BroadcastTo converts a value to a given shape, splatting scalars.
func (b *Builder) BroadcastTo(x *Value, shape []int) (*Value, error) {
	if slices.Equal(x.typ.shape, shape) {
		return x, nil
	}
	if !x.typ.IsBlock() {
		return b.Splat(x, shape)
	}
	return b.Broadcast(x, shape)
}

// BroadcastPair broadcasts two values to a common shape.
func (b *Builder) BroadcastPair(x, y *Value) (*Value, *Value, error) {
	shape, err := BroadcastShapes(x.typ.shape, y.typ.shape)
	if err != nil {
		return nil, nil, err
	}
	if x, err = b.BroadcastTo(x, shape); err != nil {
		return nil, nil, err
	}
	if y, err = b.BroadcastTo(y, shape); err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// Unify promotes and broadcasts two operands of an element-wise operation.
func (b *Builder) Unify(x, y *Value) (*Value, *Value, error) {
	x, y, err := b.Promote(x, y)
	if err != nil {
		return nil, nil, err
	}
	return b.BroadcastPair(x, y)
}
