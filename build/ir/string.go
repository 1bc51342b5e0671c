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
	"fmt"
	"strings"

	gxfmt "github.com/gx-org/tilejit/base/fmt"
)

// String returns a reference to the value as it appears in an operand list.
func (v *Value) String() string {
	if v.op == OpConst {
		return fmt.Sprintf("%s %v", v.typ, v.cst)
	}
	return "%" + v.name
}

// Instruction returns the full text of the instruction computing the value.
func (v *Value) Instruction() string {
	var s strings.Builder
	if !v.typ.IsVoid() {
		fmt.Fprintf(&s, "%s = ", v)
	}
	s.WriteString(v.op.String())
	switch v.op {
	case OpBinary, OpCompare:
		s.WriteString(" " + v.tok.String())
	case OpMath:
		s.WriteString(" " + v.fn)
	}
	args := make([]string, 0, len(v.args))
	for i, arg := range v.args {
		if v.op == OpPhi {
			args = append(args, fmt.Sprintf("[%s, %s]", arg, v.preds[i].name))
			continue
		}
		args = append(args, arg.String())
	}
	if len(args) > 0 {
		s.WriteString(" " + strings.Join(args, ", "))
	}
	if len(v.ints) > 0 {
		fmt.Fprintf(&s, " %v", v.ints)
	}
	for _, target := range v.targets {
		s.WriteString(" " + target.name)
	}
	if !v.typ.IsVoid() {
		fmt.Fprintf(&s, " : %s", v.typ)
	}
	return s.String()
}

func (b *Block) String() string {
	var s strings.Builder
	s.WriteString(b.name + ":")
	if len(b.preds) > 0 {
		preds := make([]string, len(b.preds))
		for i, pred := range b.preds {
			preds[i] = pred.name
		}
		fmt.Fprintf(&s, " ; preds = %s", strings.Join(preds, ", "))
	}
	s.WriteString("\n")
	for _, inst := range b.insts {
		s.WriteString(gxfmt.Indent(inst.Instruction() + "\n"))
	}
	return s.String()
}

func (f *Function) String() string {
	var s strings.Builder
	params := make([]string, len(f.params))
	for i, param := range f.params {
		params[i] = fmt.Sprintf("%s %s", param, param.typ)
		for _, attr := range f.attrs[i] {
			params[i] += " " + attr.String()
		}
	}
	fmt.Fprintf(&s, "func @%s(%s) {\n", f.name, strings.Join(params, ", "))
	for _, b := range f.blocks {
		s.WriteString(b.String())
	}
	s.WriteString("}\n")
	return s.String()
}

func (m *Module) String() string {
	var s strings.Builder
	fmt.Fprintf(&s, "module %s\n", m.name)
	for _, f := range m.funcs {
		s.WriteString("\n")
		s.WriteString(f.String())
	}
	return s.String()
}
