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
	"slices"
	"unsafe"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/tilejit/fmt/fmtarray"
	"github.com/pkg/errors"
)

// arrayT is a multi-dimensional array stored in a flat slice.
type arrayT[T dtype.GoDataType] struct {
	shape  shape.Shape
	values []T
}

var _ Array = (*arrayT[int32])(nil)

// ToArray returns an array given its flat values and its dimensions.
// The array takes ownership of the values.
func ToArray[T dtype.GoDataType](values []T, dims []int) Array {
	return &arrayT[T]{
		shape: shape.Shape{
			DType:       dtype.Generic[T](),
			AxisLengths: slices.Clone(dims),
		},
		values: values,
	}
}

// Values returns the flat values of an array.
func Values[T dtype.GoDataType](a Array) ([]T, error) {
	aT, ok := a.(*arrayT[T])
	if !ok {
		return nil, errors.Errorf("array of type %s is not an array of %s", a.Shape().DType.String(), dtype.Generic[T]().String())
	}
	return aT.values, nil
}

func toArray[T dtype.GoDataType](a Array) *arrayT[T] {
	return a.(*arrayT[T])
}

func (a *arrayT[T]) newArray(values []T) *arrayT[T] {
	return &arrayT[T]{shape: a.shape, values: values}
}

// Factory available for the array.
func (a *arrayT[T]) Factory() Factory {
	f, err := FactoryFor(a.shape.DType)
	if err != nil {
		return nil
	}
	return f
}

// Shape of the array.
func (a *arrayT[T]) Shape() *shape.Shape {
	return &a.shape
}

// Buffer returns the data of the array as a generic []byte buffer.
func (a *arrayT[T]) Buffer() []byte {
	if len(a.values) == 0 {
		return nil
	}
	ptr := unsafe.Pointer(&a.values[0])
	return unsafe.Slice((*byte)(ptr), len(a.values)*dtype.Sizeof(a.shape.DType))
}

// ToAtom returns the value of an array with a single element.
func (a *arrayT[T]) ToAtom() (any, error) {
	if len(a.values) != 1 {
		return nil, errors.Errorf("%s is not an atom", a.shape.String())
	}
	return a.values[0], nil
}

// String representation of the array.
func (a *arrayT[T]) String() string {
	return fmtarray.Sprint(a.values, a.shape.AxisLengths)
}

func (a *arrayT[T]) reshape(dims []int) Array {
	return ToArray(a.values, dims)
}

func strides(dims []int) []int {
	st := make([]int, len(dims))
	size := 1
	for i := len(dims) - 1; i >= 0; i-- {
		st[i] = size
		size *= dims[i]
	}
	return st
}

func (a *arrayT[T]) broadcast(dims []int) (Array, error) {
	size := 1
	for _, d := range dims {
		size *= d
	}
	out := make([]T, size)
	if len(a.values) == 1 {
		for i := range out {
			out[i] = a.values[0]
		}
		return ToArray(out, dims), nil
	}
	src := a.shape.AxisLengths
	if len(src) != len(dims) {
		return nil, errors.Errorf("cannot broadcast %s to %v: rank mismatch", a.shape.String(), dims)
	}
	srcStrides := strides(src)
	for i, d := range src {
		switch d {
		case dims[i]:
		case 1:
			srcStrides[i] = 0
		default:
			return nil, errors.Errorf("cannot broadcast %s to %v: axis %d", a.shape.String(), dims, i)
		}
	}
	dstStrides := strides(dims)
	for i := range out {
		j, rem := 0, i
		for axis, st := range dstStrides {
			j += (rem / st) * srcStrides[axis]
			rem %= st
		}
		out[i] = a.values[j]
	}
	return ToArray(out, dims), nil
}

func (a *arrayT[T]) selectFrom(cond []bool, y Array) (Array, error) {
	yT, ok := y.(*arrayT[T])
	if !ok || len(yT.values) != len(a.values) {
		return nil, errors.Errorf("cannot select between %s and %s", a.shape.String(), y.Shape().String())
	}
	if len(cond) != 1 && len(cond) != len(a.values) {
		return nil, errors.Errorf("%d conditions to select between %d values", len(cond), len(a.values))
	}
	out := make([]T, len(a.values))
	for i := range out {
		c := cond[0]
		if len(cond) > 1 {
			c = cond[i]
		}
		if c {
			out[i] = a.values[i]
		} else {
			out[i] = yT.values[i]
		}
	}
	return a.newArray(out), nil
}

func (a *arrayT[T]) store(mem Memory, addrs []uint64, mask []bool) error {
	size := dtype.Sizeof(a.shape.DType)
	for i, addr := range addrs {
		if mask != nil && !mask[i] {
			continue
		}
		data := unsafe.Slice((*byte)(unsafe.Pointer(&a.values[i])), size)
		if err := mem.Write(addr, data); err != nil {
			return err
		}
	}
	return nil
}

// arrayFactory implements the kernels shared by all data types.
type arrayFactory[T dtype.GoDataType] struct{}

func (arrayFactory[T]) DType() dtype.DataType {
	return dtype.Generic[T]()
}

func (arrayFactory[T]) Zeros(dims []int) Array {
	size := 1
	for _, d := range dims {
		size *= d
	}
	return ToArray(make([]T, size), dims)
}

func (arrayFactory[T]) fromRaw(data []byte, dims []int) Array {
	return ToArray(slices.Clone(dtype.ToSlice[T](data)), dims)
}

func (arrayFactory[T]) load(mem Memory, addrs []uint64, mask []bool, other Array) (Array, error) {
	size := dtype.Sizeof(dtype.Generic[T]())
	var others []T
	if mask != nil {
		var err error
		if others, err = Values[T](other); err != nil {
			return nil, err
		}
		if len(mask) != len(addrs) || len(others) != len(addrs) {
			return nil, errors.Errorf("mask or other values do not match %d addresses", len(addrs))
		}
	}
	out := make([]T, len(addrs))
	for i, addr := range addrs {
		if mask != nil && !mask[i] {
			out[i] = others[i]
			continue
		}
		data, err := mem.Read(addr, size)
		if err != nil {
			return nil, err
		}
		out[i] = dtype.ToSlice[T](data)[0]
	}
	return ToArray(out, []int{len(out)}), nil
}

func elementwise[T, R dtype.GoDataType](f func(T, T) R) Binary {
	return func(x, y Array) (Array, error) {
		xT, yT := toArray[T](x), toArray[T](y)
		if len(xT.values) != len(yT.values) {
			return nil, errors.Errorf("mismatched shapes %s and %s", xT.shape.String(), yT.shape.String())
		}
		out := make([]R, len(xT.values))
		for i, xi := range xT.values {
			out[i] = f(xi, yT.values[i])
		}
		return ToArray(out, xT.shape.AxisLengths), nil
	}
}

func unary[T, R dtype.GoDataType](f func(T) R) Unary {
	return func(x Array) (Array, error) {
		xT := toArray[T](x)
		out := make([]R, len(xT.values))
		for i, xi := range xT.values {
			out[i] = f(xi)
		}
		return ToArray(out, xT.shape.AxisLengths), nil
	}
}
