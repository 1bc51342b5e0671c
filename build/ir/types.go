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
	"fmt"
	"slices"
	"strings"

	"github.com/gx-org/backend/dtype"
)

// Kind of a type.
type Kind int

const (
	// VoidKind is the type of instructions without a result.
	VoidKind Kind = iota
	// ScalarKind is the kind of boolean, integer and floating-point values.
	ScalarKind
	// PointerKind is the kind of addresses in device global memory.
	PointerKind
)

// Type is the static type of an IR value: a scalar kind or a pointer
// to a scalar kind, optionally arranged as a block with a multi-dimensional shape.
type Type struct {
	kind  Kind
	dt    dtype.DataType
	shape []int
}

// Void returns the type of instructions producing no value.
func Void() Type {
	return Type{kind: VoidKind}
}

// Scalar returns a scalar type given a data type.
func Scalar(dt dtype.DataType) Type {
	return Type{kind: ScalarKind, dt: dt}
}

// Pointer returns the type of a pointer to a data type.
func Pointer(dt dtype.DataType) Type {
	return Type{kind: PointerKind, dt: dt}
}

// Int32 returns the 32-bit integer type.
func Int32() Type { return Scalar(dtype.Int32) }

// Float32 returns the 32-bit floating-point type.
func Float32() Type { return Scalar(dtype.Float32) }

// Bool returns the boolean type.
func Bool() Type { return Scalar(dtype.Bool) }

// Block returns a block type with the same element type and the given shape.
// An empty shape returns the element type.
func (t Type) Block(shape ...int) Type {
	if len(shape) == 0 {
		return t.Elem()
	}
	return Type{kind: t.kind, dt: t.dt, shape: slices.Clone(shape)}
}

// Elem returns the type of the elements of a block, or the type itself if it is not a block.
func (t Type) Elem() Type {
	return Type{kind: t.kind, dt: t.dt}
}

// Kind returns the kind of the type.
func (t Type) Kind() Kind { return t.kind }

// DType returns the data type of the scalar elements, or the pointee for pointers.
func (t Type) DType() dtype.DataType { return t.dt }

// Shape returns the shape of a block type, nil for scalars.
func (t Type) Shape() []int { return slices.Clone(t.shape) }

// Rank returns the number of dimensions of a block type.
func (t Type) Rank() int { return len(t.shape) }

// Size returns the number of elements in the type.
func (t Type) Size() int {
	n := 1
	for _, d := range t.shape {
		n *= d
	}
	return n
}

// IsVoid returns true for the void type.
func (t Type) IsVoid() bool { return t.kind == VoidKind }

// IsBlock returns true if the type has a multi-dimensional shape.
func (t Type) IsBlock() bool { return len(t.shape) > 0 }

// IsPtr returns true if the (element) type is a pointer.
func (t Type) IsPtr() bool { return t.kind == PointerKind }

// IsBool returns true if the (element) type is a boolean.
func (t Type) IsBool() bool { return t.kind == ScalarKind && t.dt == dtype.Bool }

// IsFloat returns true if the (element) type is a floating-point number.
func (t Type) IsFloat() bool {
	return t.kind == ScalarKind && IsFloatDType(t.dt)
}

// IsInt returns true if the (element) type is an integer.
func (t Type) IsInt() bool {
	return t.kind == ScalarKind && IsIntDType(t.dt)
}

// Equal returns true if both types are the same.
func (t Type) Equal(o Type) bool {
	return t.kind == o.kind && (t.kind == VoidKind || t.dt == o.dt) && slices.Equal(t.shape, o.shape)
}

// ByteSize returns the number of bytes of a scalar value of the type
// when passed as a kernel argument.
func (t Type) ByteSize() int {
	switch t.kind {
	case PointerKind:
		return 8
	case ScalarKind:
		if t.dt == dtype.Bool {
			return 1
		}
		return dtype.Sizeof(t.dt)
	}
	return 0
}

// IsFloatDType returns true if a data type is a floating-point type.
func IsFloatDType(dt dtype.DataType) bool {
	switch dt {
	case dtype.Bfloat16, dtype.Float32, dtype.Float64:
		return true
	}
	return false
}

// IsIntDType returns true if a data type is an integer type.
func IsIntDType(dt dtype.DataType) bool {
	switch dt {
	case dtype.Int32, dtype.Int64, dtype.Uint32, dtype.Uint64:
		return true
	}
	return false
}

// IntWidth returns the number of bits of an integer data type, 0 if the data type is not an integer.
func IntWidth(dt dtype.DataType) int {
	switch dt {
	case dtype.Int32, dtype.Uint32:
		return 32
	case dtype.Int64, dtype.Uint64:
		return 64
	}
	return 0
}

var dtypeNames = map[dtype.DataType]string{
	dtype.Bool:     "i1",
	dtype.Int32:    "i32",
	dtype.Int64:    "i64",
	dtype.Uint32:   "u32",
	dtype.Uint64:   "u64",
	dtype.Bfloat16: "bf16",
	dtype.Float32:  "f32",
	dtype.Float64:  "f64",
}

// DTypeName returns the short IR name of a data type, for example f32 or i1.
func DTypeName(dt dtype.DataType) string {
	if name, ok := dtypeNames[dt]; ok {
		return name
	}
	return dt.String()
}

// String representation of the type, for example <128 x *f32>.
func (t Type) String() string {
	var elem string
	switch t.kind {
	case VoidKind:
		return "void"
	case PointerKind:
		elem = "*" + DTypeName(t.dt)
	default:
		elem = DTypeName(t.dt)
	}
	if !t.IsBlock() {
		return elem
	}
	dims := make([]string, len(t.shape))
	for i, d := range t.shape {
		dims[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("<%s x %s>", strings.Join(dims, "x"), elem)
}
