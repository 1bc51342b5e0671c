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

package builtins

import (
	"github.com/gx-org/tilejit/build/ir"
)

// Attr returns an attribute of an IR value: its Shape, its DType or
// one of its methods To, Reshape and Broadcast bound to the value.
func Attr(v *ir.Value, name string) (any, bool) {
	bind := func(impl func(*ir.Builder, []any) (any, error)) *Primitive {
		return NewPrimitive(name, func(b *ir.Builder, args []any) (any, error) {
			return impl(b, append([]any{v}, args...))
		})
	}
	switch name {
	case "Shape":
		return v.Type().Shape(), true
	case "DType":
		return v.Type().DType(), true
	case "To":
		return bind(cast), true
	case "Reshape":
		return bind(shapePrimitive((*ir.Builder).Reshape)), true
	case "Broadcast":
		return bind(shapePrimitive((*ir.Builder).BroadcastTo)), true
	}
	return nil, false
}
