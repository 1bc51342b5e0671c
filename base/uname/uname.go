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

// Package uname provides unique names.
package uname

import "fmt"

// Unique generates names that are unique within one generator.
type Unique struct {
	names map[string]int
	tmp   int
}

// New name generator.
func New() *Unique {
	return &Unique{names: make(map[string]int)}
}

// Name returns a unique name given a desired root.
// The root is returned as is the first time. Else, a numerical suffix is appended.
func (n *Unique) Name(root string) string {
	next, ok := n.names[root]
	if !ok {
		n.names[root] = 1
		return root
	}
	for {
		name := fmt.Sprintf("%s%d", root, next)
		next++
		if _, taken := n.names[name]; !taken {
			n.names[root] = next
			n.names[name] = 1
			return name
		}
	}
}

// Tmp returns the next anonymous name, that is a sequential number.
func (n *Unique) Tmp() string {
	name := fmt.Sprint(n.tmp)
	n.tmp++
	return name
}
