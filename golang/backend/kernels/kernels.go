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

// Package kernels implement the element-wise kernels of the native Go backend.
//
// Values are multi-dimensional arrays stored as flat slices in row-major
// order. Pointers are arrays of uint64 device addresses.
package kernels

import (
	"go/token"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/pkg/errors"
)

type (
	// Array is a value computed by a kernel.
	Array interface {
		// Factory returns the kernels available for the array.
		Factory() Factory

		// Shape returns the data type and the dimensions of the array.
		Shape() *shape.Shape

		// Buffer returns the data of the array as a generic []byte buffer.
		Buffer() []byte

		// ToAtom returns the value of an array with a single element.
		ToAtom() (any, error)

		// String representation of the array.
		String() string

		reshape(dims []int) Array
		broadcast(dims []int) (Array, error)
		selectFrom(cond []bool, y Array) (Array, error)
		store(mem Memory, addrs []uint64, mask []bool) error
	}

	// Unary kernel like a cast or a math function.
	Unary func(Array) (Array, error)

	// Binary kernel like +, -, * or a comparison.
	Binary func(Array, Array) (Array, error)

	// Factory creates kernels for arrays of a given data type.
	Factory interface {
		// DType returns the data type of the arrays processed by the factory.
		DType() dtype.DataType

		// Atom returns an array with a single element given an int64, a float64 or a bool.
		Atom(v any) (Array, error)

		// Zeros returns an array filled with zeros.
		Zeros(dims []int) Array

		// BinaryOp returns the kernel of an arithmetic or bitwise operator.
		BinaryOp(token.Token) (Binary, error)

		// Compare returns the kernel of a comparison operator.
		Compare(token.Token) (Binary, error)

		// MinMax returns the element-wise minimum, or maximum if max is true.
		MinMax(max bool) (Binary, error)

		// Cast returns a kernel converting arrays to another data type.
		Cast(target dtype.DataType) (Unary, error)

		// Math returns the kernel of a math function.
		Math(fn string) (Unary, error)

		fromRaw(data []byte, dims []int) Array
		load(mem Memory, addrs []uint64, mask []bool, other Array) (Array, error)
	}

	// Memory is an addressable memory from which arrays are loaded.
	Memory interface {
		// Read returns a copy of n bytes at an address.
		Read(addr uint64, n int) ([]byte, error)
		// Write copies data at an address.
		Write(addr uint64, data []byte) error
	}
)

// FactoryFor returns a factory given a data type.
func FactoryFor(dt dtype.DataType) (Factory, error) {
	switch dt {
	case dtype.Bool:
		return boolFactory{}, nil
	case dtype.Float32:
		return floatFactory[float32]{}, nil
	case dtype.Float64:
		return floatFactory[float64]{}, nil
	case dtype.Uint32:
		return integerFactory[uint32]{}, nil
	case dtype.Uint64:
		return integerFactory[uint64]{}, nil
	case dtype.Int32:
		return integerFactory[int32]{}, nil
	case dtype.Int64:
		return integerFactory[int64]{}, nil
	default:
		return nil, errors.Errorf("no kernels for data type %s", dt.String())
	}
}

// NewArrayFromRaw returns a new array from raw data.
func NewArrayFromRaw(data []byte, sh *shape.Shape) (Array, error) {
	if len(data) != sh.ByteSize() {
		return nil, errors.Errorf("buffer size is %d but shape %s requires %d bytes", len(data), sh.String(), sh.ByteSize())
	}
	f, err := FactoryFor(sh.DType)
	if err != nil {
		return nil, err
	}
	return f.fromRaw(data, sh.AxisLengths), nil
}

// Reshape returns an array with the same values and new dimensions.
func Reshape(a Array, dims []int) (Array, error) {
	size := 1
	for _, d := range dims {
		size *= d
	}
	if size != a.Shape().Size() {
		return nil, errors.Errorf("cannot reshape %s to %v", a.Shape().String(), dims)
	}
	return a.reshape(dims), nil
}

// Broadcast replicates an array along its axes of size 1.
// An array with a single element is broadcast to any dimensions.
func Broadcast(a Array, dims []int) (Array, error) {
	return a.broadcast(dims)
}

// Select returns the values of x where cond is true, the values of y otherwise.
// cond is either an atom or has the same number of elements as x and y.
func Select(cond, x, y Array) (Array, error) {
	mask, err := Values[bool](cond)
	if err != nil {
		return nil, err
	}
	return x.selectFrom(mask, y)
}

// Load reads the values of type dt at a set of addresses.
// Where mask is false, the value of other is used instead.
// mask and other are either both nil or both set.
func Load(mem Memory, dt dtype.DataType, addrs, mask, other Array) (Array, error) {
	f, err := FactoryFor(dt)
	if err != nil {
		return nil, err
	}
	ptrs, err := Values[uint64](addrs)
	if err != nil {
		return nil, err
	}
	var maskVals []bool
	if mask != nil {
		if maskVals, err = Values[bool](mask); err != nil {
			return nil, err
		}
	}
	out, err := f.load(mem, ptrs, maskVals, other)
	if err != nil {
		return nil, err
	}
	return out.reshape(addrs.Shape().AxisLengths), nil
}

// Store writes values at a set of addresses where mask is true. mask can be nil.
func Store(mem Memory, addrs, val, mask Array) error {
	ptrs, err := Values[uint64](addrs)
	if err != nil {
		return err
	}
	if len(ptrs) != val.Shape().Size() {
		return errors.Errorf("cannot store %s at %d addresses", val.Shape().String(), len(ptrs))
	}
	var maskVals []bool
	if mask != nil {
		if maskVals, err = Values[bool](mask); err != nil {
			return err
		}
	}
	return val.store(mem, ptrs, maskVals)
}

// Offset returns the addresses ptrs moved by a number of elements of a given byte size.
func Offset(ptrs, offsets Array, elemSize int) (Array, error) {
	addrs, err := Values[uint64](ptrs)
	if err != nil {
		return nil, err
	}
	toInt64, err := offsets.Factory().Cast(dtype.Int64)
	if err != nil {
		return nil, err
	}
	offsets, err = toInt64(offsets)
	if err != nil {
		return nil, err
	}
	offs := toArray[int64](offsets).values
	if len(offs) != len(addrs) {
		return nil, errors.Errorf("%d offsets for %d addresses", len(offs), len(addrs))
	}
	out := make([]uint64, len(addrs))
	for i, addr := range addrs {
		out[i] = addr + uint64(offs[i]*int64(elemSize))
	}
	return ToArray(out, ptrs.Shape().AxisLengths), nil
}
