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
	"go/ast"
	"go/token"
)

// FileSet builds errors positioned in a given file set.
type FileSet struct {
	FSet *token.FileSet
}

// Errorf returns a formatted compiler error at the position of a node.
func (f FileSet) Errorf(node ast.Node, format string, a ...any) error {
	return Errorf(f.FSet, node, format, a...)
}

// Position positions an error at a node.
func (f FileSet) Position(node ast.Node, err error) error {
	return Position(f.FSet, node, err)
}

// Unsupported returns an UnsupportedConstructError positioned at a node.
func (f FileSet) Unsupported(node ast.Node, construct string) error {
	return f.Position(node, &UnsupportedConstructError{Construct: construct})
}

// NameError returns a NameResolutionError positioned at a node.
func (f FileSet) NameError(node ast.Node, name string) error {
	return f.Position(node, &NameResolutionError{Name: name})
}
