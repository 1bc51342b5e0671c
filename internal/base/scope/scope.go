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

// Package scope models chains of lexical scopes resolving names to values.
package scope

import (
	"fmt"
	"iter"
	"strings"

	"github.com/gx-org/tilejit/base/ordered"
	"github.com/pkg/errors"
)

type (
	// Scope provides a set of values that can be found given their name.
	Scope[V any] interface {
		// Find returns the value of a name, searching parent scopes if necessary.
		Find(string) (V, bool)
		// Items returns all the values visible from the scope.
		Items() *ordered.Map[string, V]
	}

	roScope[V any] struct {
		parent Scope[V]
		local  *ordered.Map[string, V]
	}
)

// NewReadOnly returns a scope that can only be queried. Names are first
// searched in vals, then in parent (which can be nil).
func NewReadOnly[V any](parent Scope[V], vals map[string]V) Scope[V] {
	local := ordered.NewMap[string, V]()
	for k, v := range vals {
		local.Store(k, v)
	}
	return &roScope[V]{parent: parent, local: local}
}

func find[V any](key string, local *ordered.Map[string, V], parent Scope[V]) (value V, ok bool) {
	value, ok = local.Load(key)
	if ok || parent == nil {
		return
	}
	return parent.Find(key)
}

func mergeItems[V any](parent Scope[V], local *ordered.Map[string, V]) *ordered.Map[string, V] {
	all := ordered.NewMap[string, V]()
	if parent != nil {
		for k, v := range parent.Items().Iter() {
			all.Store(k, v)
		}
	}
	for k, v := range local.Iter() {
		all.Store(k, v)
	}
	return all
}

// Find returns the value associated with `key`, if any.
func (s *roScope[V]) Find(key string) (V, bool) {
	return find(key, s.local, s.parent)
}

// Items returns all the items visible from the scope.
func (s *roScope[V]) Items() *ordered.Map[string, V] {
	return mergeItems(s.parent, s.local)
}

func (s *roScope[V]) String() string {
	return scopeString(s.local, s.parent)
}

// RWScope stores key,value pairs. A value is retrieved from its key
// by querying the scope and, if not found, its parents recursively.
type RWScope[V any] struct {
	parent Scope[V]
	local  *ordered.Map[string, V]
}

var _ Scope[any] = (*RWScope[any])(nil)

// NewScope returns a new scope given a parent, which can be nil.
func NewScope[V any](parent Scope[V]) *RWScope[V] {
	return &RWScope[V]{
		parent: parent,
		local:  ordered.NewMap[string, V](),
	}
}

// NewChild returns a new scope with s as a parent.
func (s *RWScope[V]) NewChild() *RWScope[V] {
	return NewScope[V](s)
}

// Parent returns the parent of the scope.
func (s *RWScope[V]) Parent() Scope[V] {
	return s.parent
}

// Define maps `key` to `value` in the local scope, shadowing parents.
func (s *RWScope[V]) Define(key string, value V) {
	s.local.Store(key, value)
}

// Assign maps an existing `key` to `value`, failing if no mapping is found.
// The assignment starts at the innermost scope and cascades upwards through
// the read-write parents.
func (s *RWScope[V]) Assign(key string, value V) error {
	if s.local.Has(key) {
		s.Define(key, value)
		return nil
	}
	if s.parent == nil {
		return errors.Errorf("cannot assign %s: not defined in scope", key)
	}
	rwParent, ok := s.parent.(*RWScope[V])
	if !ok {
		if _, found := s.parent.Find(key); found {
			return errors.Errorf("cannot assign %s: read-only name", key)
		}
		return errors.Errorf("cannot assign %s: not defined in scope", key)
	}
	return rwParent.Assign(key, value)
}

// Owner returns the innermost read-write scope defining a key.
func (s *RWScope[V]) Owner(key string) (*RWScope[V], bool) {
	for cur := s; cur != nil; {
		if cur.local.Has(key) {
			return cur, true
		}
		next, ok := cur.parent.(*RWScope[V])
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// IsLocal returns true if the key is defined in the local scope.
func (s *RWScope[V]) IsLocal(key string) bool {
	return s.local.Has(key)
}

// LocalKeys returns the keys of the local scope without the parent.
func (s *RWScope[V]) LocalKeys() iter.Seq[string] {
	return s.local.Keys()
}

// Find a key in the scope and its parents.
func (s *RWScope[V]) Find(key string) (V, bool) {
	return find(key, s.local, s.parent)
}

// Items returns all the items visible from the scope.
func (s *RWScope[V]) Items() *ordered.Map[string, V] {
	return mergeItems(s.parent, s.local)
}

func scopeString[V any](local *ordered.Map[string, V], parent Scope[V]) string {
	var kvs []string
	for k, v := range local.Iter() {
		kvs = append(kvs, fmt.Sprintf("%s: %T", k, v))
	}
	parentS := "root"
	if parent != nil {
		parentS = fmt.Sprint(parent)
	}
	return fmt.Sprintf("%s\n-- %p --\n%s\n", parentS, local, strings.Join(kvs, "\n"))
}

// String representation of the scope.
func (s *RWScope[V]) String() string {
	return scopeString(s.local, s.parent)
}
