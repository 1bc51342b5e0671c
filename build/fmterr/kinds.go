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

package fmterr

import (
	"fmt"
	"strings"
)

type (
	// NameResolutionError is returned when an identifier is absent
	// from the local, global and builtin scopes.
	NameResolutionError struct {
		Name string
	}

	// UnsupportedConstructError is returned when a syntax node or
	// an operator has no lowering rule.
	UnsupportedConstructError struct {
		Construct string
	}

	// ShapeBroadcastError is returned when two block shapes cannot be unified.
	// Dim is the offending dimension index, X and Y the sizes of both operands
	// along that dimension (-1 if the dimension does not exist).
	ShapeBroadcastError struct {
		Dim  int
		X, Y int
		XS   []int
		YS   []int
	}

	// UsageError is returned when a kernel is invoked incorrectly.
	UsageError struct {
		Msg string
	}

	// BackendCompilationError is returned when the backend rejects a module.
	BackendCompilationError struct {
		Err error
	}
)

func (err *NameResolutionError) Error() string {
	return fmt.Sprintf("name error: %s is not defined", err.Name)
}

func (err *UnsupportedConstructError) Error() string {
	return fmt.Sprintf("not implemented: unsupported %s", err.Construct)
}

func (err *ShapeBroadcastError) Error() string {
	return fmt.Sprintf("cannot broadcast shapes %s and %s: incompatible dimension %d (%d vs %d)",
		shapeString(err.XS), shapeString(err.YS), err.Dim, err.X, err.Y)
}

func (err *UsageError) Error() string {
	return "usage error: " + err.Msg
}

// Usagef returns a new UsageError.
func Usagef(format string, a ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, a...)}
}

func (err *BackendCompilationError) Error() string {
	return "backend compilation error: " + err.Err.Error()
}

// Unwrap returns the error reported by the backend.
func (err *BackendCompilationError) Unwrap() error {
	return err.Err
}

func shapeString(dims []int) string {
	ss := make([]string, len(dims))
	for i, d := range dims {
		ss[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(ss, ",") + "]"
}
