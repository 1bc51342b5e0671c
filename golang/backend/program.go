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

package backend

import (
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/tilejit/build/ir"
	"github.com/gx-org/tilejit/golang/backend/kernels"
	"github.com/pkg/errors"
)

// maxSteps bounds the number of basic blocks executed by a program instance.
const maxSteps = 1 << 24

type (
	// frame is the state of a program instance.
	frame struct {
		mem  kernels.Memory
		id   [3]int
		grid [3]int
		vals []kernels.Array
	}

	execFunc func(fr *frame, args []kernels.Array) (kernels.Array, error)

	instruction struct {
		val  *ir.Value
		slot int
		args []int
		exec execFunc
	}

	phi struct {
		slot     int
		incoming map[*ir.Block]int
	}

	block struct {
		src   *ir.Block
		phis  []phi
		insts []instruction
		term  *ir.Value
		cond  int
	}

	program struct {
		name   string
		init   []kernels.Array
		params []int
		types  []ir.Type
		blocks map[*ir.Block]*block
		entry  *block
	}
)

// repr returns the data type used to store the elements of a value.
func repr(typ ir.Type) dtype.DataType {
	if typ.IsPtr() {
		return dtype.Uint64
	}
	return typ.DType()
}

type lowerer struct {
	prog  *program
	slots map[*ir.Value]int
}

// slot returns the index of a value in the frame, allocating it on first use.
// Constants are evaluated once.
func (l *lowerer) slot(v *ir.Value) (int, error) {
	if i, ok := l.slots[v]; ok {
		return i, nil
	}
	i := len(l.prog.init)
	l.slots[v] = i
	var init kernels.Array
	if cst, ok := v.Const(); ok {
		f, err := kernels.FactoryFor(repr(v.Type()))
		if err != nil {
			return 0, err
		}
		if init, err = f.Atom(cst); err != nil {
			return 0, errors.Wrapf(err, "constant %s", v)
		}
	}
	l.prog.init = append(l.prog.init, init)
	return i, nil
}

func (l *lowerer) slotsOf(vals []*ir.Value) ([]int, error) {
	is := make([]int, len(vals))
	for i, v := range vals {
		var err error
		if is[i], err = l.slot(v); err != nil {
			return nil, err
		}
	}
	return is, nil
}

func lower(fn *ir.Function) (*program, error) {
	l := &lowerer{
		prog: &program{
			name:   fn.Name(),
			blocks: make(map[*ir.Block]*block),
		},
		slots: make(map[*ir.Value]int),
	}
	for _, p := range fn.Params() {
		slot, err := l.slot(p)
		if err != nil {
			return nil, err
		}
		l.prog.params = append(l.prog.params, slot)
		l.prog.types = append(l.prog.types, p.Type())
	}
	for _, src := range fn.Blocks() {
		b, err := l.block(src)
		if err != nil {
			return nil, errors.Wrapf(err, "block %s", src.Name())
		}
		l.prog.blocks[src] = b
	}
	l.prog.entry = l.prog.blocks[fn.Blocks()[0]]
	return l.prog, nil
}

func (l *lowerer) block(src *ir.Block) (*block, error) {
	b := &block{src: src, term: src.Terminator()}
	for _, inst := range src.Instructions() {
		slot, err := l.slot(inst)
		if err != nil {
			return nil, err
		}
		args, err := l.slotsOf(inst.Args())
		if err != nil {
			return nil, err
		}
		switch inst.Op() {
		case ir.OpPhi:
			p := phi{slot: slot, incoming: make(map[*ir.Block]int)}
			for i, from := range inst.Incoming() {
				p.incoming[from] = args[i]
			}
			b.phis = append(b.phis, p)
			continue
		case ir.OpBr, ir.OpRet:
			continue
		case ir.OpCondBr:
			b.cond = args[0]
			continue
		}
		exec, err := execOf(inst)
		if err != nil {
			return nil, errors.Wrap(err, inst.Instruction())
		}
		b.insts = append(b.insts, instruction{val: inst, slot: slot, args: args, exec: exec})
	}
	return b, nil
}

func factoryOf(v *ir.Value) (kernels.Factory, error) {
	return kernels.FactoryFor(repr(v.Type()))
}

// execOf returns the function executing an instruction.
// Kernels are selected once, when the program is compiled.
func execOf(inst *ir.Value) (execFunc, error) {
	args := inst.Args()
	switch inst.Op() {
	case ir.OpBinary, ir.OpCompare, ir.OpMinimum, ir.OpMaximum:
		f, err := factoryOf(args[0])
		if err != nil {
			return nil, err
		}
		var kernel kernels.Binary
		switch inst.Op() {
		case ir.OpBinary:
			kernel, err = f.BinaryOp(inst.Token())
		case ir.OpCompare:
			kernel, err = f.Compare(inst.Token())
		default:
			kernel, err = f.MinMax(inst.Op() == ir.OpMaximum)
		}
		if err != nil {
			return nil, err
		}
		return func(_ *frame, xs []kernels.Array) (kernels.Array, error) {
			return kernel(xs[0], xs[1])
		}, nil
	case ir.OpCast, ir.OpMath:
		f, err := factoryOf(args[0])
		if err != nil {
			return nil, err
		}
		var kernel kernels.Unary
		if inst.Op() == ir.OpCast {
			kernel, err = f.Cast(inst.Type().DType())
		} else {
			kernel, err = f.Math(inst.Func())
		}
		if err != nil {
			return nil, err
		}
		return func(_ *frame, xs []kernels.Array) (kernels.Array, error) {
			return kernel(xs[0])
		}, nil
	case ir.OpSelect:
		return func(_ *frame, xs []kernels.Array) (kernels.Array, error) {
			return kernels.Select(xs[0], xs[1], xs[2])
		}, nil
	case ir.OpSplat, ir.OpBroadcast:
		dims := inst.Ints()
		return func(_ *frame, xs []kernels.Array) (kernels.Array, error) {
			return kernels.Broadcast(xs[0], dims)
		}, nil
	case ir.OpReshape:
		dims := inst.Ints()
		return func(_ *frame, xs []kernels.Array) (kernels.Array, error) {
			return kernels.Reshape(xs[0], dims)
		}, nil
	case ir.OpOffset:
		size := dtype.Sizeof(inst.Type().DType())
		return func(_ *frame, xs []kernels.Array) (kernels.Array, error) {
			return kernels.Offset(xs[0], xs[1], size)
		}, nil
	case ir.OpArange:
		bounds := inst.Ints()
		vals := make([]int32, 0, bounds[1]-bounds[0])
		for i := bounds[0]; i < bounds[1]; i++ {
			vals = append(vals, int32(i))
		}
		rng := kernels.ToArray(vals, []int{len(vals)})
		return func(*frame, []kernels.Array) (kernels.Array, error) {
			return rng, nil
		}, nil
	case ir.OpProgramID:
		axis := inst.Ints()[0]
		return func(fr *frame, _ []kernels.Array) (kernels.Array, error) {
			return kernels.ToArray([]int32{int32(fr.id[axis])}, nil), nil
		}, nil
	case ir.OpNumPrograms:
		axis := inst.Ints()[0]
		return func(fr *frame, _ []kernels.Array) (kernels.Array, error) {
			return kernels.ToArray([]int32{int32(fr.grid[axis])}, nil), nil
		}, nil
	case ir.OpLoad:
		dt := inst.Type().DType()
		return func(fr *frame, xs []kernels.Array) (kernels.Array, error) {
			var mask, other kernels.Array
			if len(xs) == 3 {
				mask, other = xs[1], xs[2]
			}
			return kernels.Load(fr.mem, dt, xs[0], mask, other)
		}, nil
	case ir.OpStore:
		return func(fr *frame, xs []kernels.Array) (kernels.Array, error) {
			var mask kernels.Array
			if len(xs) == 3 {
				mask = xs[2]
			}
			return nil, kernels.Store(fr.mem, xs[0], xs[1], mask)
		}, nil
	}
	return nil, errors.Errorf("operation %s not supported by the backend", inst.Op())
}

// unpack decodes the parameters of the kernel from the packed arguments.
func (p *program) unpack(fr *frame, offsets []int, args []byte) error {
	for i, slot := range p.params {
		typ := p.types[i]
		start := offsets[i]
		sh := &shape.Shape{DType: repr(typ)}
		val, err := kernels.NewArrayFromRaw(args[start:start+typ.ByteSize()], sh)
		if err != nil {
			return errors.Wrapf(err, "parameter %d", i)
		}
		fr.vals[slot] = val
	}
	return nil
}

func (p *program) run(fr *frame, offsets []int, args []byte) error {
	fr.vals = make([]kernels.Array, len(p.init))
	copy(fr.vals, p.init)
	if err := p.unpack(fr, offsets, args); err != nil {
		return err
	}
	var prev *ir.Block
	cur := p.entry
	for range maxSteps {
		if err := cur.enter(fr, prev); err != nil {
			return err
		}
		for _, inst := range cur.insts {
			xs := make([]kernels.Array, len(inst.args))
			for i, arg := range inst.args {
				xs[i] = fr.vals[arg]
			}
			val, err := inst.exec(fr, xs)
			if err != nil {
				return errors.Wrap(err, inst.val.Instruction())
			}
			fr.vals[inst.slot] = val
		}
		next, err := cur.next(fr)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		prev, cur = cur.src, p.blocks[next]
	}
	return errors.Errorf("kernel %s: program %v did not terminate after %d blocks", p.name, fr.id, maxSteps)
}

// enter assigns the phis of a block given the block from which control comes.
// All phis read their operands before any of them is assigned.
func (b *block) enter(fr *frame, prev *ir.Block) error {
	if len(b.phis) == 0 {
		return nil
	}
	vals := make([]kernels.Array, len(b.phis))
	for i, p := range b.phis {
		arg, ok := p.incoming[prev]
		if !ok {
			return errors.Errorf("block %s entered from unexpected block", b.src.Name())
		}
		vals[i] = fr.vals[arg]
	}
	for i, p := range b.phis {
		fr.vals[p.slot] = vals[i]
	}
	return nil
}

// next returns the successor of a block, nil when the kernel returns.
func (b *block) next(fr *frame) (*ir.Block, error) {
	switch b.term.Op() {
	case ir.OpRet:
		return nil, nil
	case ir.OpBr:
		return b.term.Targets()[0], nil
	}
	atom, err := fr.vals[b.cond].ToAtom()
	if err != nil {
		return nil, err
	}
	cond, ok := atom.(bool)
	if !ok {
		return nil, errors.Errorf("branch condition of type %T", atom)
	}
	targets := b.term.Targets()
	if cond {
		return targets[0], nil
	}
	return targets[1], nil
}
