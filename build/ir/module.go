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
	"github.com/gx-org/tilejit/base/ordered"
	"github.com/gx-org/tilejit/base/uname"
	"github.com/gx-org/tilejit/build/fmterr"
	"github.com/pkg/errors"
)

// Module is a compilation unit. In addition to functions, the module owns
// the table mapping variables to their current value in each basic block.
// Variables are read and written through that table so that phis are
// inserted on the fly while the control-flow graph is built: reads in an open
// block create incomplete phis which are completed when the block is sealed.
type Module struct {
	name   string
	funcs  []*Function
	nextID int

	defs       map[*Block]*ordered.Map[string, *Value]
	incomplete map[*Block]*ordered.Map[string, *Value]
	types      map[string]Type
	// forward maps removed trivial phis to the value replacing them.
	forward map[*Value]*Value
}

// NewModule returns a new empty module.
func NewModule(name string) *Module {
	return &Module{
		name:       name,
		defs:       make(map[*Block]*ordered.Map[string, *Value]),
		incomplete: make(map[*Block]*ordered.Map[string, *Value]),
		types:      make(map[string]Type),
		forward:    make(map[*Value]*Value),
	}
}

// Name of the module.
func (m *Module) Name() string { return m.name }

// Funcs returns the functions of the module.
func (m *Module) Funcs() []*Function { return append([]*Function{}, m.funcs...) }

// Func returns a function given its name.
func (m *Module) Func(name string) *Function {
	for _, f := range m.funcs {
		if f.name == name {
			return f
		}
	}
	return nil
}

// NewFunction inserts a new function in the module given its parameter types.
func (m *Module) NewFunction(name string, params []Type) (*Function, error) {
	if m.Func(name) != nil {
		return nil, errors.Errorf("function %s already defined in module %s", name, m.name)
	}
	f := &Function{
		mod:   m,
		name:  name,
		attrs: make(map[int][]Attr),
		names: uname.New(),
	}
	for i, typ := range params {
		p := m.newValue(OpParam, typ)
		p.ints = []int{i}
		p.name = f.names.Name("arg")
		f.params = append(f.params, p)
	}
	m.funcs = append(m.funcs, f)
	return f, nil
}

func (m *Module) newValue(op Op, typ Type, args ...*Value) *Value {
	v := &Value{id: m.nextID, op: op, typ: typ, args: args}
	m.nextID++
	return v
}

// SetType records the static type of a variable.
func (m *Module) SetType(name string, typ Type) {
	m.types[name] = typ
}

// Type returns the static type of a variable.
func (m *Module) Type(name string) (Type, bool) {
	typ, ok := m.types[name]
	return typ, ok
}

// SetValue binds a variable to a value in a block.
func (m *Module) SetValue(name string, block *Block, v *Value) {
	defs := m.defs[block]
	if defs == nil {
		defs = ordered.NewMap[string, *Value]()
		m.defs[block] = defs
	}
	defs.Store(name, v)
}

// GetValue returns the value of a variable in a block, creating phis if necessary.
func (m *Module) GetValue(name string, block *Block) (*Value, error) {
	if defs := m.defs[block]; defs != nil {
		if v, ok := defs.Load(name); ok {
			return m.resolve(v), nil
		}
	}
	return m.getValueRecursive(name, block)
}

func (m *Module) getValueRecursive(name string, block *Block) (*Value, error) {
	var val *Value
	switch {
	case !block.sealed:
		phi, err := m.newPhi(name, block)
		if err != nil {
			return nil, err
		}
		pending := m.incomplete[block]
		if pending == nil {
			pending = ordered.NewMap[string, *Value]()
			m.incomplete[block] = pending
		}
		pending.Store(name, phi)
		val = phi
	case len(block.preds) == 0:
		return nil, errors.Errorf("variable %s has no value in block %s", name, block.name)
	case len(block.preds) == 1:
		var err error
		if val, err = m.GetValue(name, block.preds[0]); err != nil {
			return nil, err
		}
	default:
		phi, err := m.newPhi(name, block)
		if err != nil {
			return nil, err
		}
		// Break potential cycles with operandless phi.
		m.SetValue(name, block, phi)
		if val, err = m.addPhiOperands(name, phi); err != nil {
			return nil, err
		}
	}
	val = m.resolve(val)
	m.SetValue(name, block, val)
	return val, nil
}

// resolve follows the replacements of removed phis.
func (m *Module) resolve(v *Value) *Value {
	for {
		nw, ok := m.forward[v]
		if !ok {
			return v
		}
		v = nw
	}
}

func (m *Module) newPhi(name string, block *Block) (*Value, error) {
	typ, ok := m.types[name]
	if !ok {
		return nil, errors.Errorf("no type recorded for variable %s", name)
	}
	phi := m.newValue(OpPhi, typ)
	phi.block = block
	phi.name = block.fn.names.Name(name)
	block.insts = append([]*Value{phi}, block.insts...)
	return phi, nil
}

func (m *Module) addPhiOperands(name string, phi *Value) (*Value, error) {
	for _, pred := range phi.block.preds {
		v, err := m.GetValue(name, pred)
		if err != nil {
			return nil, err
		}
		v = m.resolve(v)
		if !v.typ.Equal(phi.typ) {
			return nil, errors.Errorf("variable %s changes type across control flow: %s in %s but %s in %s", name, phi.typ, phi.block.name, v.typ, pred.name)
		}
		phi.args = append(phi.args, v)
		phi.preds = append(phi.preds, pred)
	}
	return m.tryRemoveTrivialPhi(phi)
}

// tryRemoveTrivialPhi replaces a phi merging a single distinct value (other than itself)
// by that value.
func (m *Module) tryRemoveTrivialPhi(phi *Value) (*Value, error) {
	if _, removed := m.forward[phi]; removed {
		return m.resolve(phi), nil
	}
	var same *Value
	for _, op := range phi.args {
		op = m.resolve(op)
		if op == same || op == phi {
			continue
		}
		if same != nil {
			return phi, nil
		}
		same = op
	}
	if same == nil {
		return nil, errors.Errorf("variable %s read in block %s has no definition", phi.name, phi.block.name)
	}
	users := m.replaceAllUses(phi, same)
	phi.block.remove(phi)
	m.forward[phi] = same
	for _, user := range users {
		if user.op != OpPhi || user.block == nil || !user.block.sealed {
			continue
		}
		if _, err := m.tryRemoveTrivialPhi(user); err != nil {
			return nil, err
		}
	}
	// same may itself have been removed while cleaning up the users.
	return m.resolve(same), nil
}

// replaceAllUses rewires all uses of old to nw, including the variable tables.
// It returns the instructions which were using old.
func (m *Module) replaceAllUses(old, nw *Value) []*Value {
	var users []*Value
	for inst := range old.block.fn.instructions {
		if inst == old {
			continue
		}
		if inst.replaceArg(old, nw) {
			users = append(users, inst)
		}
	}
	for _, tables := range []map[*Block]*ordered.Map[string, *Value]{m.defs, m.incomplete} {
		for _, defs := range tables {
			for name, v := range defs.Iter() {
				if v == old {
					defs.Store(name, nw)
				}
			}
		}
	}
	return users
}

// SealBlock declares that all the predecessors of a block are known.
// Incomplete phis of the block are completed. A block can only be sealed once.
func (m *Module) SealBlock(block *Block) error {
	if block.sealed {
		return fmterr.Internalf("block %s sealed twice", block.name)
	}
	if pending := m.incomplete[block]; pending != nil {
		for name, phi := range pending.Iter() {
			if phi.op != OpPhi || phi.block != block || len(phi.args) > 0 {
				continue
			}
			if _, removed := m.forward[phi]; removed {
				continue
			}
			if _, err := m.addPhiOperands(name, phi); err != nil {
				return err
			}
		}
		delete(m.incomplete, block)
	}
	block.sealed = true
	return nil
}
