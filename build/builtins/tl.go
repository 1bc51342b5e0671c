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

package builtins

import (
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/tilejit/build/ir"
	"github.com/pkg/errors"
)

// TL is the namespace of IR primitives available in kernels.
var TL = NewNamespace("tl", map[string]any{
	"ProgramID":   NewPrimitive("ProgramID", axisPrimitive((*ir.Builder).ProgramID)),
	"NumPrograms": NewPrimitive("NumPrograms", axisPrimitive((*ir.Builder).NumPrograms)),
	"Arange":      NewPrimitive("Arange", arange),
	"Load":        NewPrimitive("Load", load),
	"Store":       NewPrimitive("Store", store),
	"Where":       NewPrimitive("Where", where),
	"Zeros":       NewPrimitive("Zeros", zeros),
	"Cast":        NewPrimitive("Cast", cast),
	"Reshape":     NewPrimitive("Reshape", shapePrimitive((*ir.Builder).Reshape)),
	"Broadcast":   NewPrimitive("Broadcast", shapePrimitive((*ir.Builder).BroadcastTo)),
	"Minimum":     NewPrimitive("Minimum", binaryPrimitive((*ir.Builder).Minimum)),
	"Maximum":     NewPrimitive("Maximum", binaryPrimitive((*ir.Builder).Maximum)),
	"Abs":         NewPrimitive("Abs", mathPrimitive("abs")),
	"Cos":         NewPrimitive("Cos", mathPrimitive("cos")),
	"Exp":         NewPrimitive("Exp", mathPrimitive("exp")),
	"Log":         NewPrimitive("Log", mathPrimitive("log")),
	"Sin":         NewPrimitive("Sin", mathPrimitive("sin")),
	"Sqrt":        NewPrimitive("Sqrt", mathPrimitive("sqrt")),

	"Bool":    dtype.Bool,
	"Int32":   dtype.Int32,
	"Int64":   dtype.Int64,
	"Uint32":  dtype.Uint32,
	"Uint64":  dtype.Uint64,
	"Float32": dtype.Float32,
	"Float64": dtype.Float64,
})

func axisPrimitive(f func(*ir.Builder, int) (*ir.Value, error)) func(*ir.Builder, []any) (any, error) {
	return func(b *ir.Builder, args []any) (any, error) {
		if err := checkArgs("axis function", args, 1, 1); err != nil {
			return nil, err
		}
		axis, err := Int(args[0])
		if err != nil {
			return nil, err
		}
		return f(b, axis)
	}
}

func arange(b *ir.Builder, args []any) (any, error) {
	if err := checkArgs("Arange", args, 2, 2); err != nil {
		return nil, err
	}
	bounds, err := Ints(args)
	if err != nil {
		return nil, err
	}
	return b.Arange(bounds[0], bounds[1])
}

func binaryPrimitive(f func(*ir.Builder, *ir.Value, *ir.Value) (*ir.Value, error)) func(*ir.Builder, []any) (any, error) {
	return func(b *ir.Builder, args []any) (any, error) {
		if err := checkArgs("binary function", args, 2, 2); err != nil {
			return nil, err
		}
		vals, err := values(b, args)
		if err != nil {
			return nil, err
		}
		x, y, err := b.Unify(vals[0], vals[1])
		if err != nil {
			return nil, err
		}
		return f(b, x, y)
	}
}

func mathPrimitive(fn string) func(*ir.Builder, []any) (any, error) {
	return func(b *ir.Builder, args []any) (any, error) {
		if err := checkArgs(fn, args, 1, 1); err != nil {
			return nil, err
		}
		x, err := ToValue(b, args[0])
		if err != nil {
			return nil, err
		}
		return b.Math(fn, x)
	}
}

func shapePrimitive(f func(*ir.Builder, *ir.Value, []int) (*ir.Value, error)) func(*ir.Builder, []any) (any, error) {
	return func(b *ir.Builder, args []any) (any, error) {
		if len(args) < 2 {
			return nil, errors.Errorf("missing shape in call with %d argument(s)", len(args))
		}
		x, err := ToValue(b, args[0])
		if err != nil {
			return nil, err
		}
		shape, err := Ints(args[1:])
		if err != nil {
			return nil, err
		}
		return f(b, x, shape)
	}
}

// load reads memory: Load(ptr), Load(ptr, mask) or Load(ptr, mask, other).
func load(b *ir.Builder, args []any) (any, error) {
	if err := checkArgs("Load", args, 1, 3); err != nil {
		return nil, err
	}
	vals, err := values(b, args)
	if err != nil {
		return nil, err
	}
	ptr := vals[0]
	if len(vals) == 1 {
		return b.Load(ptr, nil, nil)
	}
	shape := ptr.Type().Shape()
	for _, v := range vals[1:] {
		if shape, err = ir.BroadcastShapes(shape, v.Type().Shape()); err != nil {
			return nil, err
		}
	}
	if ptr, err = b.BroadcastTo(ptr, shape); err != nil {
		return nil, err
	}
	mask, err := b.BroadcastTo(vals[1], shape)
	if err != nil {
		return nil, err
	}
	var other *ir.Value
	if len(vals) == 3 {
		if other, err = b.Cast(vals[2], ptr.Type().DType()); err != nil {
			return nil, err
		}
		if other, err = b.BroadcastTo(other, shape); err != nil {
			return nil, err
		}
	}
	return b.Load(ptr, mask, other)
}

// store writes memory: Store(ptr, val) or Store(ptr, val, mask).
func store(b *ir.Builder, args []any) (any, error) {
	if err := checkArgs("Store", args, 2, 3); err != nil {
		return nil, err
	}
	vals, err := values(b, args)
	if err != nil {
		return nil, err
	}
	ptr, val := vals[0], vals[1]
	shape := ptr.Type().Shape()
	for _, v := range vals[1:] {
		if shape, err = ir.BroadcastShapes(shape, v.Type().Shape()); err != nil {
			return nil, err
		}
	}
	if ptr, err = b.BroadcastTo(ptr, shape); err != nil {
		return nil, err
	}
	if val, err = b.Cast(val, ptr.Type().DType()); err != nil {
		return nil, err
	}
	if val, err = b.BroadcastTo(val, shape); err != nil {
		return nil, err
	}
	var mask *ir.Value
	if len(vals) == 3 {
		if mask, err = b.BroadcastTo(vals[2], shape); err != nil {
			return nil, err
		}
	}
	return b.Store(ptr, val, mask)
}

func where(b *ir.Builder, args []any) (any, error) {
	if err := checkArgs("Where", args, 3, 3); err != nil {
		return nil, err
	}
	vals, err := values(b, args)
	if err != nil {
		return nil, err
	}
	x, y, err := b.Unify(vals[1], vals[2])
	if err != nil {
		return nil, err
	}
	shape, err := ir.BroadcastShapes(vals[0].Type().Shape(), x.Type().Shape())
	if err != nil {
		return nil, err
	}
	if x, err = b.BroadcastTo(x, shape); err != nil {
		return nil, err
	}
	if y, err = b.BroadcastTo(y, shape); err != nil {
		return nil, err
	}
	cond, err := b.BroadcastTo(vals[0], shape)
	if err != nil {
		return nil, err
	}
	return b.Select(cond, x, y)
}

// zeros returns a block of zeros: Zeros(dtype, dims...).
func zeros(b *ir.Builder, args []any) (any, error) {
	if len(args) < 1 {
		return nil, errors.Errorf("missing data type in call to Zeros")
	}
	dt, err := DType(args[0])
	if err != nil {
		return nil, err
	}
	shape, err := Ints(args[1:])
	if err != nil {
		return nil, err
	}
	zero, err := b.Zero(ir.Scalar(dt))
	if err != nil {
		return nil, err
	}
	if len(shape) == 0 {
		return zero, nil
	}
	return b.Splat(zero, shape)
}

func cast(b *ir.Builder, args []any) (any, error) {
	if err := checkArgs("Cast", args, 2, 2); err != nil {
		return nil, err
	}
	x, err := ToValue(b, args[0])
	if err != nil {
		return nil, err
	}
	dt, err := DType(args[1])
	if err != nil {
		return nil, err
	}
	return b.Cast(x, dt)
}
