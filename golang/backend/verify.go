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
	"slices"

	"github.com/gx-org/tilejit/build/ir"
	"github.com/gx-org/tilejit/golang/backend/kernels"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

func checkType(where string, typ ir.Type) error {
	if typ.IsVoid() {
		return nil
	}
	if _, err := kernels.FactoryFor(typ.DType()); err != nil {
		return errors.Wrapf(err, "%s: type %s", where, typ)
	}
	return nil
}

// verify checks that a module can be executed and returns its entry point.
// All the problems found are reported.
func verify(mod *ir.Module, numWarps int) (*ir.Function, error) {
	var err error
	if numWarps < 1 || numWarps > 32 || numWarps&(numWarps-1) != 0 {
		err = multierr.Append(err, errors.Errorf("invalid number of warps %d: must be a power of 2 between 1 and 32", numWarps))
	}
	funcs := mod.Funcs()
	if len(funcs) != 1 {
		return nil, multierr.Append(err, errors.Errorf("module %s has %d functions: want a single kernel", mod.Name(), len(funcs)))
	}
	fn := funcs[0]
	defined := make(map[*ir.Value]bool)
	for _, p := range fn.Params() {
		err = multierr.Append(err, checkType("parameter "+p.Name(), p.Type()))
		defined[p] = true
	}
	for _, block := range fn.Blocks() {
		for _, inst := range block.Instructions() {
			defined[inst] = true
		}
	}
	for _, block := range fn.Blocks() {
		err = multierr.Append(err, verifyBlock(fn, block, defined))
	}
	if err != nil {
		return nil, err
	}
	return fn, nil
}

func verifyBlock(fn *ir.Function, block *ir.Block, defined map[*ir.Value]bool) error {
	var err error
	if !block.Sealed() {
		err = multierr.Append(err, errors.Errorf("block %s has not been sealed", block.Name()))
	}
	if block.Terminator() == nil {
		err = multierr.Append(err, errors.Errorf("block %s has no terminator", block.Name()))
	}
	preds := block.Preds()
	for _, inst := range block.Instructions() {
		err = multierr.Append(err, checkType(inst.Instruction(), inst.Type()))
		for _, arg := range inst.Args() {
			if arg == nil {
				err = multierr.Append(err, errors.Errorf("%s: undefined operand", inst.Instruction()))
				continue
			}
			switch {
			case arg.Block() != nil && arg.Block().Func() != fn:
				err = multierr.Append(err, errors.Errorf("%s: operand %s defined in another function", inst.Instruction(), arg))
			case arg.Op() != ir.OpConst && !defined[arg]:
				err = multierr.Append(err, errors.Errorf("%s: operand %s is not defined in any block", inst.Instruction(), arg))
			}
		}
		if inst.Op() != ir.OpPhi {
			continue
		}
		incoming := inst.Incoming()
		if len(incoming) != len(inst.Args()) || len(incoming) != len(preds) {
			err = multierr.Append(err, errors.Errorf("%s: %d operands for %d predecessors", inst.Instruction(), len(inst.Args()), len(preds)))
			continue
		}
		for _, from := range incoming {
			if !slices.Contains(preds, from) {
				err = multierr.Append(err, errors.Errorf("%s: block %s is not a predecessor of %s", inst.Instruction(), from.Name(), block.Name()))
			}
		}
	}
	return err
}
