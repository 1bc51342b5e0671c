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

// Package fmterr defines the errors reported while compiling and launching
// kernels, and locates compiler errors in the kernel sources.
package fmterr

import (
	"fmt"
	"go/ast"
	"go/token"
	"io"

	"github.com/pkg/errors"
)

// PositionedError is an error located at a node of a kernel source.
type PositionedError struct {
	Pos  token.Position
	Node ast.Node
	Err  error
}

// Position locates an error at a node.
// An error already located is returned unchanged: the innermost node
// is the most precise location.
func Position(fset *token.FileSet, node ast.Node, err error) error {
	if err == nil || node == nil {
		return err
	}
	var located *PositionedError
	if errors.As(err, &located) {
		return err
	}
	perr := &PositionedError{Node: node, Err: err}
	if fset != nil && node.Pos().IsValid() {
		perr.Pos = fset.Position(node.Pos())
	}
	return perr
}

// Errorf returns a formatted compiler error located at a node.
func Errorf(fset *token.FileSet, node ast.Node, format string, a ...any) error {
	return Position(fset, node, errors.Errorf(format, a...))
}

// Internal marks an error as a bug in the compiler.
func Internal(err error) error {
	return errors.WithMessage(err, "tilejit internal error (please report this bug)")
}

// Internalf returns a formatted internal error.
func Internalf(format string, a ...any) error {
	return Internal(errors.Errorf(format, a...))
}

func (err *PositionedError) Error() string {
	if !err.Pos.IsValid() {
		return err.Err.Error()
	}
	return err.Pos.String() + ": " + err.Err.Error()
}

// Unwrap returns the located error.
func (err *PositionedError) Unwrap() error {
	return err.Err
}

// Format prints the error. With %+v, the stack trace of the
// innermost error created with github.com/pkg/errors is appended.
func (err *PositionedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		io.WriteString(s, err.Error())
		if !s.Flag('+') {
			return
		}
		var traced interface{ StackTrace() errors.StackTrace }
		if errors.As(err.Err, &traced) {
			fmt.Fprintf(s, "\nerror created at:%+v", traced.StackTrace())
		}
	case 'q':
		fmt.Fprintf(s, "%q", err.Error())
	default:
		io.WriteString(s, err.Error())
	}
}
