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

package jit

import (
	"bytes"
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/tilejit/build/fmterr"
	"github.com/gx-org/tilejit/build/ir"
	"github.com/gx-org/tilejit/golang/backend/platform"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/vmihailenco/msgpack/v5"
)

// Meta are the meta-parameters of a kernel launch.
type Meta map[string]any

// Key identifies a specialization of a kernel.
type Key struct {
	DeviceKind  string
	DeviceIndex int
	// Types are the type tags of the arguments, for example Pf32,Pf32,I.
	Types string
	// Attrs are the alignment classes of the arguments, for example 0:16,3:4.
	Attrs    string
	NumWarps int
	// Meta is a canonical encoding of the meta-parameters.
	Meta string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d/%s/%s/w%d/%x", k.DeviceKind, k.DeviceIndex, k.Types, k.Attrs, k.NumWarps, k.Meta)
}

var typeTags = map[dtype.DataType]string{
	dtype.Bool:     "i1",
	dtype.Int32:    "i32",
	dtype.Int64:    "i64",
	dtype.Uint32:   "u32",
	dtype.Uint64:   "u64",
	dtype.Bfloat16: "bf16",
	dtype.Float32:  "f32",
	dtype.Float64:  "f64",
}

// typeOf returns the type tag and the IR type of an argument.
func typeOf(arg any) (string, ir.Type, error) {
	switch argT := arg.(type) {
	case *platform.Tensor:
		tag, ok := typeTags[argT.DType()]
		if !ok {
			return "", ir.Type{}, fmterr.Usagef("tensor of type %s not supported", argT.DType().String())
		}
		return "P" + tag, ir.Pointer(argT.DType()), nil
	case int:
		return "I", ir.Int32(), nil
	case int32:
		return "i32", ir.Int32(), nil
	case int64:
		return "i64", ir.Scalar(dtype.Int64), nil
	case uint32:
		return "u32", ir.Scalar(dtype.Uint32), nil
	case uint64:
		return "u64", ir.Scalar(dtype.Uint64), nil
	case float32:
		return "f32", ir.Float32(), nil
	case float64:
		return "f", ir.Float32(), nil
	case bool:
		return "B", ir.Bool(), nil
	}
	return "", ir.Type{}, fmterr.Usagef("argument of type %T not supported", arg)
}

// pow2Divisor returns the largest of 16, 8, 4, 2 and 1 dividing n.
func pow2Divisor(n int64) int {
	for _, d := range []int64{16, 8, 4, 2} {
		if n%d == 0 {
			return int(d)
		}
	}
	return 1
}

// attrOf returns the alignment attribute of an argument, if any.
func attrOf(arg any) (ir.Attr, bool) {
	switch argT := arg.(type) {
	case *platform.Tensor:
		return ir.Attr{Kind: ir.AttrAligned, Value: pow2Divisor(int64(argT.Address()))}, true
	case int:
		return ir.Attr{Kind: ir.AttrMultipleOf, Value: pow2Divisor(int64(argT))}, true
	case int32:
		return ir.Attr{Kind: ir.AttrMultipleOf, Value: pow2Divisor(int64(argT))}, true
	case int64:
		return ir.Attr{Kind: ir.AttrMultipleOf, Value: pow2Divisor(argT)}, true
	case uint32:
		return ir.Attr{Kind: ir.AttrMultipleOf, Value: pow2Divisor(int64(argT))}, true
	case uint64:
		return ir.Attr{Kind: ir.AttrMultipleOf, Value: pow2Divisor(int64(argT % 16))}, true
	}
	return ir.Attr{}, false
}

type metaEntry struct {
	Name  string
	Value any
}

// fingerprint returns a canonical encoding of the meta-parameters:
// a msgpack array of (name, value) pairs sorted by name.
// Maps are encoded with sorted keys and host functions by their qualified name.
func fingerprint(meta Meta) (string, error) {
	names := lo.Keys(meta)
	slices.Sort(names)
	entries := lo.Map(names, func(name string, _ int) metaEntry {
		return metaEntry{Name: name, Value: canonical(meta[name])}
	})
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(entries); err != nil {
		return "", fmterr.Usagef("meta-parameters cannot be part of a specialization key: %v", err)
	}
	return buf.String(), nil
}

// funcID identifies a host function in a fingerprint.
type funcID struct {
	Name string
	Type string
}

// canonical replaces host functions, including the ones nested in
// slices and maps, by a value which msgpack can encode.
func canonical(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		if rv.IsNil() {
			return nil
		}
		id := funcID{Type: rv.Type().String()}
		if fn := runtime.FuncForPC(rv.Pointer()); fn != nil {
			id.Name = fn.Name()
		}
		return id
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		vals := make([]any, rv.Len())
		for i := range vals {
			vals[i] = canonical(rv.Index(i).Interface())
		}
		return vals
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			vals := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				vals[iter.Key().String()] = canonical(iter.Value().Interface())
			}
			return vals
		}
		// The encoder only sorts maps with string keys.
		var pairs []mapEntry
		iter := rv.MapRange()
		for iter.Next() {
			pairs = append(pairs, mapEntry{
				Key:   fmt.Sprintf("%T:%v", iter.Key().Interface(), iter.Key().Interface()),
				Value: canonical(iter.Value().Interface()),
			})
		}
		slices.SortFunc(pairs, func(a, b mapEntry) int { return strings.Compare(a.Key, b.Key) })
		return pairs
	}
	return v
}

type mapEntry struct {
	Key   string
	Value any
}

func attrsString(attrs map[int][]ir.Attr) string {
	idxs := lo.Keys(attrs)
	slices.Sort(idxs)
	return strings.Join(lo.Map(idxs, func(i int, _ int) string {
		return strconv.Itoa(i) + ":" + strconv.Itoa(attrs[i][0].Value)
	}), ",")
}

// specialization is the analysis of the arguments of a launch.
type specialization struct {
	key   Key
	dev   *platform.Device
	args  []any
	types []ir.Type
	attrs map[int][]ir.Attr
	first *platform.Tensor
}

func specialize(args []any, numWarps int, meta Meta) (*specialization, error) {
	spec := &specialization{
		args:  args,
		types: make([]ir.Type, len(args)),
		attrs: make(map[int][]ir.Attr),
	}
	tags := make([]string, len(args))
	for i, arg := range args {
		var err error
		if tags[i], spec.types[i], err = typeOf(arg); err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		if tensor, ok := arg.(*platform.Tensor); ok && spec.first == nil {
			spec.first = tensor
		}
		if attr, ok := attrOf(arg); ok {
			spec.attrs[i] = []ir.Attr{attr}
		}
	}
	if spec.first == nil {
		return nil, fmterr.Usagef("no tensor argument found")
	}
	spec.dev = spec.first.GoDevice()
	metaKey, err := fingerprint(meta)
	if err != nil {
		return nil, err
	}
	spec.key = Key{
		DeviceKind:  spec.dev.Kind(),
		DeviceIndex: spec.dev.Ordinal(),
		Types:       strings.Join(tags, ","),
		Attrs:       attrsString(spec.attrs),
		NumWarps:    numWarps,
		Meta:        metaKey,
	}
	return spec, nil
}
