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
)

// Op is the operation computing a value.
type Op int

// Operations of the IR.
const (
	OpInvalid Op = iota
	OpParam
	OpConst
	OpPhi
	OpBinary
	OpCompare
	OpSelect
	OpSplat
	OpBroadcast
	OpReshape
	OpOffset
	OpCast
	OpMinimum
	OpMaximum
	OpMath
	OpArange
	OpProgramID
	OpNumPrograms
	OpLoad
	OpStore
	OpBr
	OpCondBr
	OpRet
)

var opNames = map[Op]string{
	OpParam:       "param",
	OpConst:       "const",
	OpPhi:         "phi",
	OpBinary:      "binary",
	OpCompare:     "cmp",
	OpSelect:      "select",
	OpSplat:       "splat",
	OpBroadcast:   "broadcast",
	OpReshape:     "reshape",
	OpOffset:      "offset",
	OpCast:        "cast",
	OpMinimum:     "min",
	OpMaximum:     "max",
	OpMath:        "math",
	OpArange:      "arange",
	OpProgramID:   "program_id",
	OpNumPrograms: "num_programs",
	OpLoad:        "load",
	OpStore:       "store",
	OpBr:          "br",
	OpCondBr:      "cond_br",
	OpRet:         "ret",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "invalid"
}

// IsTerminator returns true if the operation ends a basic block.
func (op Op) IsTerminator() bool {
	return op == OpBr || op == OpCondBr || op == OpRet
}

// Value is a handle to a value (or an instruction) of the IR.
// Handles are owned by their function. Values are never modified
// once built, except for the operands of phis which are completed
// when their block is sealed.
type Value struct {
	id    int
	name  string
	typ   Type
	op    Op
	args  []*Value
	block *Block

	tok     token.Token
	cst     any
	ints    []int
	fn      string
	targets []*Block
	preds   []*Block
}

// ID returns the identifier of the value, unique in its module.
func (v *Value) ID() int { return v.id }

// Name of the value.
func (v *Value) Name() string { return v.name }

// Type returns the static type of the value.
func (v *Value) Type() Type { return v.typ }

// Op returns the operation computing the value.
func (v *Value) Op() Op { return v.op }

// Args returns the operands of the value.
func (v *Value) Args() []*Value { return slices.Clone(v.args) }

// Block returns the basic block owning the instruction, nil for parameters and constants.
func (v *Value) Block() *Block { return v.block }

// Token returns the operator of a binary or compare instruction.
func (v *Value) Token() token.Token { return v.tok }

// Ints returns the integer attributes of an instruction:
// the target shape of splat, broadcast and reshape, the bounds of arange,
// the axis of program_id and num_programs, the index of a parameter.
func (v *Value) Ints() []int { return slices.Clone(v.ints) }

// Func returns the name of the function applied by a math instruction.
func (v *Value) Func() string { return v.fn }

// Targets returns the successors of a branch.
func (v *Value) Targets() []*Block { return slices.Clone(v.targets) }

// Incoming returns the predecessor blocks matching the operands of a phi.
func (v *Value) Incoming() []*Block { return slices.Clone(v.preds) }

// Const returns the Go value of a constant: an int64, a float64 or a bool.
func (v *Value) Const() (any, bool) {
	if v.op != OpConst {
		return nil, false
	}
	return v.cst, true
}

// ConstInt returns the integer value of an integer constant.
func (v *Value) ConstInt() (int64, bool) {
	i, ok := v.cst.(int64)
	return i, ok && v.op == OpConst
}

func (v *Value) replaceArg(old, nw *Value) bool {
	replaced := false
	for i, arg := range v.args {
		if arg == old {
			v.args[i] = nw
			replaced = true
		}
	}
	return replaced
}
