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
	"reflect"

	"fortio.org/safecast"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/tilejit/build/ir"
	"github.com/pkg/errors"
)

// IntConst returns a 32-bit integer constant.
// It fails if i cannot be represented on 32 bits.
func IntConst[T safecast.Integer](b *ir.Builder, i T) (*ir.Value, error) {
	v, err := safecast.Conv[int32](i)
	if err != nil {
		return nil, errors.Errorf("integer constant %d overflows int32", i)
	}
	return b.Int32(int64(v)), nil
}

// ToValue materializes a host value as an IR constant.
// Host integers become 32-bit integer constants, host floats 32-bit
// floating-point constants and host booleans boolean constants.
// IR values are returned unchanged.
func ToValue(b *ir.Builder, v any) (*ir.Value, error) {
	switch vT := v.(type) {
	case *ir.Value:
		return vT, nil
	case ir.Slice, dtype.DataType:
		return nil, errors.Errorf("cannot convert %v to an IR value", v)
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, errors.Errorf("cannot convert %v to an IR value", v)
	}
	switch rv.Kind() {
	case reflect.Bool:
		return b.Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntConst(b, rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return IntConst(b, rv.Uint())
	case reflect.Float32, reflect.Float64:
		return b.Float32(rv.Float()), nil
	}
	return nil, errors.Errorf("cannot convert %T to an IR value", v)
}

// Int returns the Go integer of a host integer or of an IR integer constant.
func Int(v any) (int, error) {
	if val, ok := v.(*ir.Value); ok {
		i, isConst := val.ConstInt()
		if !isConst {
			return 0, errors.Errorf("%s is not a compile-time integer constant", val)
		}
		return int(i), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), nil
	}
	return 0, errors.Errorf("%v (%T) is not an integer", v, v)
}

// Ints converts a list of arguments to Go integers.
func Ints(args []any) ([]int, error) {
	ints := make([]int, len(args))
	for i, arg := range args {
		var err error
		if ints[i], err = Int(arg); err != nil {
			return nil, err
		}
	}
	return ints, nil
}

// DType returns the data type referred to by an argument.
func DType(v any) (dtype.DataType, error) {
	dt, ok := v.(dtype.DataType)
	if !ok {
		return dtype.Invalid, errors.Errorf("%v (%T) is not a data type", v, v)
	}
	return dt, nil
}

func checkArgs(name string, args []any, minArgs, maxArgs int) error {
	if len(args) >= minArgs && len(args) <= maxArgs {
		return nil
	}
	if minArgs == maxArgs {
		return errors.Errorf("wrong number of arguments in call to %s: got %d but want %d", name, len(args), minArgs)
	}
	return errors.Errorf("wrong number of arguments in call to %s: got %d but want between %d and %d", name, len(args), minArgs, maxArgs)
}

func values(b *ir.Builder, args []any) ([]*ir.Value, error) {
	vals := make([]*ir.Value, len(args))
	for i, arg := range args {
		var err error
		if vals[i], err = ToValue(b, arg); err != nil {
			return nil, err
		}
	}
	return vals, nil
}
