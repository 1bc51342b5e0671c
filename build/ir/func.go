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
	"strconv"

	"github.com/gx-org/tilejit/base/uname"
)

// AttrKind is the kind of a function parameter attribute.
type AttrKind int

const (
	// AttrAligned states that a pointer parameter is aligned on a number of bytes.
	AttrAligned AttrKind = iota
	// AttrMultipleOf states that an integer parameter is a multiple of a value.
	AttrMultipleOf
)

// Attr is an attribute attached to a function parameter.
type Attr struct {
	Kind  AttrKind
	Value int
}

func (a Attr) String() string {
	switch a.Kind {
	case AttrAligned:
		return "aligned(" + strconv.Itoa(a.Value) + ")"
	default:
		return "multiple_of(" + strconv.Itoa(a.Value) + ")"
	}
}

type (
	// Block is a basic block of a function.
	Block struct {
		name   string
		fn     *Function
		insts  []*Value
		preds  []*Block
		sealed bool
	}

	// Function is a kernel entry point.
	Function struct {
		mod    *Module
		name   string
		params []*Value
		attrs  map[int][]Attr
		blocks []*Block
		names  *uname.Unique
	}
)

// Name of the block.
func (b *Block) Name() string { return b.name }

// Func returns the function owning the block.
func (b *Block) Func() *Function { return b.fn }

// Instructions returns the instructions of the block, phis first.
func (b *Block) Instructions() []*Value { return slices.Clone(b.insts) }

// Preds returns the recorded predecessors of the block.
func (b *Block) Preds() []*Block { return slices.Clone(b.preds) }

// Sealed returns true once the predecessors of the block are final.
func (b *Block) Sealed() bool { return b.sealed }

// Terminator returns the last instruction of the block if it ends the block.
func (b *Block) Terminator() *Value {
	if len(b.insts) == 0 {
		return nil
	}
	last := b.insts[len(b.insts)-1]
	if !last.op.IsTerminator() {
		return nil
	}
	return last
}

// Succs returns the successors of the block.
func (b *Block) Succs() []*Block {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	return term.Targets()
}

func (b *Block) phis() []*Value {
	var phis []*Value
	for _, inst := range b.insts {
		if inst.op != OpPhi {
			break
		}
		phis = append(phis, inst)
	}
	return phis
}

func (b *Block) remove(v *Value) {
	b.insts = slices.DeleteFunc(b.insts, func(inst *Value) bool { return inst == v })
}

// Name of the function.
func (f *Function) Name() string { return f.name }

// Module owning the function.
func (f *Function) Module() *Module { return f.mod }

// Params returns the parameters of the function.
func (f *Function) Params() []*Value { return slices.Clone(f.params) }

// Blocks returns the basic blocks of the function in creation order.
// The first block is the entry block.
func (f *Function) Blocks() []*Block { return slices.Clone(f.blocks) }

// AddAttr attaches an attribute to a parameter.
func (f *Function) AddAttr(param int, attr Attr) {
	f.attrs[param] = append(f.attrs[param], attr)
}

// Attrs returns the attributes of a parameter.
func (f *Function) Attrs(param int) []Attr {
	return slices.Clone(f.attrs[param])
}

// NewBlock creates a new, open, basic block in the function.
func (f *Function) NewBlock(name string) *Block {
	b := &Block{name: f.names.Name(name), fn: f}
	f.blocks = append(f.blocks, b)
	return b
}

// SetParamName names a parameter of the function.
func (f *Function) SetParamName(i int, name string) {
	f.params[i].name = f.names.Name(name)
}

// instructions iterates over all instructions of the function.
func (f *Function) instructions(yield func(*Value) bool) {
	for _, b := range f.blocks {
		for _, inst := range b.insts {
			if !yield(inst) {
				return
			}
		}
	}
}
