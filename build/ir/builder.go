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
	"go/token"
	"slices"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/tilejit/build/fmterr"
	"github.com/pkg/errors"
)

// Builder creates instructions at the end of an insertion block.
type Builder struct {
	mod   *Module
	block *Block
}

// NewBuilder returns a builder creating values in a module.
func NewBuilder(mod *Module) *Builder {
	return &Builder{mod: mod}
}

// Module returns the module in which values are created.
func (b *Builder) Module() *Module { return b.mod }

// SetInsertBlock sets the block at the end of which instructions are inserted.
func (b *Builder) SetInsertBlock(block *Block) {
	b.block = block
}

// InsertBlock returns the current insertion block.
func (b *Builder) InsertBlock() *Block {
	return b.block
}

func (b *Builder) insert(op Op, typ Type, args ...*Value) (*Value, error) {
	if b.block == nil {
		return nil, fmterr.Internalf("no insertion block to build %s", op)
	}
	if b.block.Terminator() != nil {
		return nil, fmterr.Internalf("cannot insert %s in block %s: block already terminated", op, b.block.name)
	}
	v := b.mod.newValue(op, typ, args...)
	v.block = b.block
	if !typ.IsVoid() {
		v.name = b.block.fn.names.Tmp()
	}
	b.block.insts = append(b.block.insts, v)
	return v, nil
}

// Const returns a constant of a scalar type.
// val is an int64 for integer types, a float64 for floating-point types or a bool.
func (b *Builder) Const(typ Type, val any) *Value {
	v := b.mod.newValue(OpConst, typ)
	v.cst = val
	return v
}

// Int32 returns a 32-bit integer constant.
func (b *Builder) Int32(i int64) *Value {
	return b.Const(Int32(), int64(int32(i)))
}

// Int64 returns a 64-bit integer constant.
func (b *Builder) Int64(i int64) *Value {
	return b.Const(Scalar(dtype.Int64), i)
}

// Float32 returns a 32-bit floating-point constant.
func (b *Builder) Float32(f float64) *Value {
	return b.Const(Float32(), float64(float32(f)))
}

// Bool returns a boolean constant.
func (b *Builder) Bool(v bool) *Value {
	return b.Const(Bool(), v)
}

// Zero returns the zero constant of a scalar type.
func (b *Builder) Zero(typ Type) (*Value, error) {
	switch {
	case typ.IsBool():
		return b.Bool(false), nil
	case typ.IsFloat():
		return b.Const(typ.Elem(), 0.0), nil
	case typ.IsInt():
		return b.Const(typ.Elem(), int64(0)), nil
	}
	return nil, errors.Errorf("no zero value for type %s", typ)
}

func checkSameType(op string, x, y *Value) error {
	if !x.typ.Equal(y.typ) {
		return errors.Errorf("mismatched types %s and %s for %s", x.typ, y.typ, op)
	}
	return nil
}

// Binary returns the result of an arithmetic or bitwise binary operator.
// Both operands must have the same type, except when x is a pointer and y
// an integer with the same shape: the result is then x offset by y elements.
func (b *Builder) Binary(op token.Token, x, y *Value) (*Value, error) {
	if x.typ.IsPtr() && op == token.ADD {
		return b.Offset(x, y)
	}
	if err := checkSameType(op.String(), x, y); err != nil {
		return nil, err
	}
	ok := false
	switch op {
	case token.ADD, token.SUB, token.MUL, token.QUO, token.REM:
		ok = x.typ.IsInt() || x.typ.IsFloat()
	case token.AND, token.OR, token.XOR:
		ok = x.typ.IsInt() || x.typ.IsBool()
	case token.SHL, token.SHR:
		ok = x.typ.IsInt()
	default:
		return nil, errors.Errorf("binary operator %s not supported", op)
	}
	if !ok {
		return nil, errors.Errorf("operator %s not defined on %s", op, x.typ)
	}
	v, err := b.insert(OpBinary, x.typ, x, y)
	if err != nil {
		return nil, err
	}
	v.tok = op
	return v, nil
}

// Compare returns the boolean result of a comparison.
func (b *Builder) Compare(op token.Token, x, y *Value) (*Value, error) {
	switch op {
	case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
	default:
		return nil, errors.Errorf("comparison operator %s not supported", op)
	}
	if err := checkSameType(op.String(), x, y); err != nil {
		return nil, err
	}
	v, err := b.insert(OpCompare, Bool().Block(x.typ.shape...), x, y)
	if err != nil {
		return nil, err
	}
	v.tok = op
	return v, nil
}

// Select returns x where cond is true, y otherwise.
// cond is either a scalar or has the same shape as x and y.
func (b *Builder) Select(cond, x, y *Value) (*Value, error) {
	if !cond.typ.IsBool() {
		return nil, errors.Errorf("select condition must be a boolean, got %s", cond.typ)
	}
	if err := checkSameType("select", x, y); err != nil {
		return nil, err
	}
	if cond.typ.IsBlock() && !slices.Equal(cond.typ.shape, x.typ.shape) {
		return nil, errors.Errorf("select condition of type %s does not match operands of type %s", cond.typ, x.typ)
	}
	return b.insert(OpSelect, x.typ, cond, x, y)
}

// Splat replicates a scalar to a block shape.
func (b *Builder) Splat(x *Value, shape []int) (*Value, error) {
	if x.typ.IsBlock() {
		return nil, errors.Errorf("cannot splat block value of type %s", x.typ)
	}
	v, err := b.insert(OpSplat, x.typ.Block(shape...), x)
	if err != nil {
		return nil, err
	}
	v.ints = slices.Clone(shape)
	return v, nil
}

// Broadcast expands the dimensions of size 1 of a block to a target shape.
func (b *Builder) Broadcast(x *Value, shape []int) (*Value, error) {
	if !x.typ.IsBlock() {
		return b.Splat(x, shape)
	}
	if x.typ.Rank() != len(shape) {
		return nil, errors.Errorf("cannot broadcast %s to shape %v: rank mismatch", x.typ, shape)
	}
	for i, d := range x.typ.shape {
		if d != 1 && d != shape[i] {
			return nil, errors.Errorf("cannot broadcast %s to shape %v: dimension %d", x.typ, shape, i)
		}
	}
	v, err := b.insert(OpBroadcast, x.typ.Block(shape...), x)
	if err != nil {
		return nil, err
	}
	v.ints = slices.Clone(shape)
	return v, nil
}

// Reshape changes the shape of a value without changing its number of elements.
func (b *Builder) Reshape(x *Value, shape []int) (*Value, error) {
	target := x.typ.Block(shape...)
	if target.Size() != x.typ.Size() {
		return nil, errors.Errorf("cannot reshape %s to shape %v: size mismatch", x.typ, shape)
	}
	v, err := b.insert(OpReshape, target, x)
	if err != nil {
		return nil, err
	}
	v.ints = slices.Clone(shape)
	return v, nil
}

// Slice is a component of a GetElement index.
type Slice int

const (
	// All keeps a dimension.
	All Slice = iota
	// NewAxis inserts a new dimension of size 1.
	NewAxis
)

func (s Slice) String() string {
	if s == NewAxis {
		return "nil"
	}
	return ":"
}

// GetElement indexes a value with a list of slices.
func (b *Builder) GetElement(x *Value, slices []Slice) (*Value, error) {
	var shape []int
	next := 0
	for _, s := range slices {
		switch s {
		case NewAxis:
			shape = append(shape, 1)
		case All:
			if next >= x.typ.Rank() {
				return nil, errors.Errorf("too many indices for value of type %s", x.typ)
			}
			shape = append(shape, x.typ.shape[next])
			next++
		}
	}
	shape = append(shape, x.typ.shape[next:]...)
	return b.Reshape(x, shape)
}

// Offset returns the addresses of ptr offset by a number of elements.
func (b *Builder) Offset(ptr, offset *Value) (*Value, error) {
	if !ptr.typ.IsPtr() {
		return nil, errors.Errorf("cannot offset non-pointer type %s", ptr.typ)
	}
	if !offset.typ.IsInt() {
		return nil, errors.Errorf("pointer offset must be an integer, got %s", offset.typ)
	}
	if !slices.Equal(ptr.typ.shape, offset.typ.shape) {
		return nil, errors.Errorf("mismatched shapes %s and %s for pointer offset", ptr.typ, offset.typ)
	}
	return b.insert(OpOffset, ptr.typ, ptr, offset)
}

// Cast converts a value to another data type.
func (b *Builder) Cast(x *Value, dt dtype.DataType) (*Value, error) {
	if x.typ.IsPtr() {
		return nil, errors.Errorf("cannot cast pointer type %s", x.typ)
	}
	target := Scalar(dt).Block(x.typ.shape...)
	if target.Equal(x.typ) {
		return x, nil
	}
	return b.insert(OpCast, target, x)
}

// Minimum returns the element-wise minimum of two values.
func (b *Builder) Minimum(x, y *Value) (*Value, error) {
	return b.minMax(OpMinimum, x, y)
}

// Maximum returns the element-wise maximum of two values.
func (b *Builder) Maximum(x, y *Value) (*Value, error) {
	return b.minMax(OpMaximum, x, y)
}

func (b *Builder) minMax(op Op, x, y *Value) (*Value, error) {
	if err := checkSameType(op.String(), x, y); err != nil {
		return nil, err
	}
	if !x.typ.IsInt() && !x.typ.IsFloat() {
		return nil, errors.Errorf("%s not defined on %s", op, x.typ)
	}
	return b.insert(op, x.typ, x, y)
}

// MathFuncs are the functions supported by math instructions.
var MathFuncs = []string{"abs", "cos", "exp", "log", "sin", "sqrt"}

// Math applies an element-wise math function.
func (b *Builder) Math(fn string, x *Value) (*Value, error) {
	if !slices.Contains(MathFuncs, fn) {
		return nil, errors.Errorf("math function %s not supported", fn)
	}
	if !x.typ.IsFloat() && !(fn == "abs" && x.typ.IsInt()) {
		return nil, errors.Errorf("math function %s not defined on %s", fn, x.typ)
	}
	v, err := b.insert(OpMath, x.typ, x)
	if err != nil {
		return nil, err
	}
	v.fn = fn
	return v, nil
}

// Arange returns the block of 32-bit integers [start, end).
func (b *Builder) Arange(start, end int) (*Value, error) {
	if end <= start {
		return nil, errors.Errorf("invalid range [%d, %d)", start, end)
	}
	v, err := b.insert(OpArange, Int32().Block(end-start))
	if err != nil {
		return nil, err
	}
	v.ints = []int{start, end}
	return v, nil
}

func checkAxis(axis int) error {
	if axis < 0 || axis > 2 {
		return errors.Errorf("invalid grid axis %d: must be 0, 1 or 2", axis)
	}
	return nil
}

// ProgramID returns the index of the running program along a grid axis.
func (b *Builder) ProgramID(axis int) (*Value, error) {
	if err := checkAxis(axis); err != nil {
		return nil, err
	}
	v, err := b.insert(OpProgramID, Int32())
	if err != nil {
		return nil, err
	}
	v.ints = []int{axis}
	return v, nil
}

// NumPrograms returns the size of the launch grid along an axis.
func (b *Builder) NumPrograms(axis int) (*Value, error) {
	if err := checkAxis(axis); err != nil {
		return nil, err
	}
	v, err := b.insert(OpNumPrograms, Int32())
	if err != nil {
		return nil, err
	}
	v.ints = []int{axis}
	return v, nil
}

func checkMask(mask, ptr *Value) error {
	if mask == nil {
		return nil
	}
	if !mask.typ.IsBool() || !slices.Equal(mask.typ.shape, ptr.typ.shape) {
		return errors.Errorf("mask of type %s does not match pointer of type %s", mask.typ, ptr.typ)
	}
	return nil
}

// Load reads values from memory. Masked-off elements take the value other,
// or zero if other is nil. mask can be nil.
func (b *Builder) Load(ptr, mask, other *Value) (*Value, error) {
	if !ptr.typ.IsPtr() {
		return nil, errors.Errorf("cannot load from non-pointer type %s", ptr.typ)
	}
	if err := checkMask(mask, ptr); err != nil {
		return nil, err
	}
	typ := Scalar(ptr.typ.dt).Block(ptr.typ.shape...)
	args := []*Value{ptr}
	if mask != nil {
		if other == nil {
			var err error
			if other, err = b.Zero(typ); err != nil {
				return nil, err
			}
		}
		if other.typ.IsBlock() != typ.IsBlock() && typ.IsBlock() {
			var err error
			if other, err = b.Splat(other, typ.shape); err != nil {
				return nil, err
			}
		}
		if !other.typ.Equal(typ) {
			return nil, errors.Errorf("other value of type %s does not match loaded type %s", other.typ, typ)
		}
		args = append(args, mask, other)
	}
	return b.insert(OpLoad, typ, args...)
}

// Store writes values to memory where mask is true. mask can be nil.
func (b *Builder) Store(ptr, val, mask *Value) (*Value, error) {
	if !ptr.typ.IsPtr() {
		return nil, errors.Errorf("cannot store to non-pointer type %s", ptr.typ)
	}
	want := Scalar(ptr.typ.dt).Block(ptr.typ.shape...)
	if !val.typ.Equal(want) {
		return nil, errors.Errorf("cannot store value of type %s to pointer of type %s", val.typ, ptr.typ)
	}
	if err := checkMask(mask, ptr); err != nil {
		return nil, err
	}
	args := []*Value{ptr, val}
	if mask != nil {
		args = append(args, mask)
	}
	return b.insert(OpStore, Void(), args...)
}

func (b *Builder) addPred(target *Block) error {
	if target.sealed {
		return fmterr.Internalf("cannot branch from %s to sealed block %s", b.block.name, target.name)
	}
	target.preds = append(target.preds, b.block)
	return nil
}

// Br branches unconditionally to a block.
func (b *Builder) Br(target *Block) error {
	if err := b.addPred(target); err != nil {
		return err
	}
	v, err := b.insert(OpBr, Void())
	if err != nil {
		return err
	}
	v.targets = []*Block{target}
	return nil
}

// CondBr branches to ifTrue if cond is true, to ifFalse otherwise.
func (b *Builder) CondBr(cond *Value, ifTrue, ifFalse *Block) error {
	if !cond.typ.IsBool() || cond.typ.IsBlock() {
		return errors.Errorf("branch condition must be a scalar boolean, got %s", cond.typ)
	}
	if err := b.addPred(ifTrue); err != nil {
		return err
	}
	if err := b.addPred(ifFalse); err != nil {
		return err
	}
	v, err := b.insert(OpCondBr, Void(), cond)
	if err != nil {
		return err
	}
	v.targets = []*Block{ifTrue, ifFalse}
	return nil
}

// Ret returns from the function.
func (b *Builder) Ret() error {
	_, err := b.insert(OpRet, Void())
	return err
}
