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

// Package fmtarray formats the content of tensors and kernel arrays.
package fmtarray

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/tilejit/build/ir"
	"github.com/pkg/errors"
)

const tab = "\t"

type printer[T dtype.GoDataType] struct {
	w       strings.Builder
	data    []T
	dims    []int
	strides []int
}

func newPrinter[T dtype.GoDataType](data []T, dims []int) (*printer[T], error) {
	p := &printer[T]{data: data, dims: dims, strides: make([]int, len(dims))}
	size := 1
	for i := len(dims) - 1; i >= 0; i-- {
		p.strides[i] = size
		size *= dims[i]
	}
	if size != len(data) {
		return nil, errors.Errorf("%d values do not match dimensions %v (%d values)", len(data), dims, size)
	}
	return p, nil
}

func element[T dtype.GoDataType](x T) string {
	var s string
	switch v := any(x).(type) {
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', 6, 32)
	case float64:
		s = strconv.FormatFloat(v, 'f', 10, 64)
	default:
		return fmt.Sprint(x)
	}
	if strings.ContainsRune(s, '.') {
		s = strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// row writes the innermost axis starting at a flat offset.
func (p *printer[T]) row(offset int) {
	n := p.dims[len(p.dims)-1]
	vals := make([]string, n)
	for i := range n {
		vals[i] = element(p.data[offset+i])
	}
	p.w.WriteString("{" + strings.Join(vals, ", ") + "}")
}

func (p *printer[T]) axis(indent string, axis, offset int) {
	if axis == len(p.dims)-1 {
		p.row(offset)
		return
	}
	p.w.WriteString("{\n")
	for i := range p.dims[axis] {
		p.w.WriteString(indent + tab)
		p.axis(indent+tab, axis+1, offset+i*p.strides[axis])
		p.w.WriteString(",\n")
	}
	p.w.WriteString(indent + "}")
}

func (p *printer[T]) values() {
	if len(p.dims) == 0 {
		p.w.WriteString("(" + element(p.data[0]) + ")")
		return
	}
	p.axis("", 0, 0)
}

func (p *printer[T]) typ() {
	for _, d := range p.dims {
		fmt.Fprintf(&p.w, "[%d]", d)
	}
	p.w.WriteString(ir.DTypeName(dtype.Generic[T]()))
}

// SDataPrint returns the values of an array without its type.
func SDataPrint[T dtype.GoDataType](data []T, dims []int) string {
	p, err := newPrinter(data, dims)
	if err != nil {
		return err.Error()
	}
	p.values()
	return p.w.String()
}

// Sprint returns the type and the values of an array, for example [2]f32{1, 2.5}.
func Sprint[T dtype.GoDataType](data []T, dims []int) string {
	p, err := newPrinter(data, dims)
	if err != nil {
		return err.Error()
	}
	p.typ()
	p.values()
	return p.w.String()
}
