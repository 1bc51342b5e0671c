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

package kernels

import (
	"math"

	"github.com/gx-org/backend/dtype"
	"github.com/pkg/errors"
)

var floatFuncs = map[string]func(float64) float64{
	"abs":  math.Abs,
	"cos":  math.Cos,
	"exp":  math.Exp,
	"log":  math.Log,
	"sin":  math.Sin,
	"sqrt": math.Sqrt,
}

func (floatFactory[T]) Math(fn string) (Unary, error) {
	impl, ok := floatFuncs[fn]
	if !ok {
		return nil, errors.Errorf("math function %s not supported on %s", fn, dtype.Generic[T]().String())
	}
	return unary(func(x T) T { return T(impl(float64(x))) }), nil
}

func (integerFactory[T]) Math(fn string) (Unary, error) {
	if fn != "abs" {
		return nil, errors.Errorf("math function %s not supported on %s", fn, dtype.Generic[T]().String())
	}
	return unary(func(x T) T {
		if x < 0 {
			return -x
		}
		return x
	}), nil
}
