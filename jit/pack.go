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
	"encoding/binary"
	"math"

	"fortio.org/safecast"
	"github.com/gx-org/tilejit/build/fmterr"
	"github.com/gx-org/tilejit/build/ir"
	"github.com/gx-org/tilejit/golang/backend/platform"
)

// pack encodes the arguments of a launch in the calling convention of
// kernels: every argument is stored at its natural alignment in the order
// of the parameters, tensors as 8-byte device addresses.
func pack(args []any, types []ir.Type) ([]byte, error) {
	offsets, size := ir.Layout(types)
	buf := make([]byte, size)
	enc := binary.NativeEndian
	for i, arg := range args {
		at := buf[offsets[i]:]
		switch argT := arg.(type) {
		case *platform.Tensor:
			enc.PutUint64(at, argT.Address())
		case int:
			v, err := safecast.Conv[int32](argT)
			if err != nil {
				return nil, fmterr.Usagef("argument %d: %d does not fit in a 32-bit integer: %v", i, argT, err)
			}
			enc.PutUint32(at, uint32(v))
		case int32:
			enc.PutUint32(at, uint32(argT))
		case int64:
			enc.PutUint64(at, uint64(argT))
		case uint32:
			enc.PutUint32(at, argT)
		case uint64:
			enc.PutUint64(at, argT)
		case float32:
			enc.PutUint32(at, math.Float32bits(argT))
		case float64:
			if math.Abs(argT) > math.MaxFloat32 && !math.IsInf(argT, 0) {
				return nil, fmterr.Usagef("argument %d: %g does not fit in a 32-bit float", i, argT)
			}
			enc.PutUint32(at, math.Float32bits(float32(argT)))
		case bool:
			if argT {
				at[0] = 1
			}
		default:
			return nil, fmterr.Usagef("argument %d of type %T cannot be packed", i, arg)
		}
	}
	return buf, nil
}
