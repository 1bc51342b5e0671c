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
	"sync/atomic"

	"github.com/gx-org/tilejit/base/sync"
	"golang.org/x/sync/singleflight"
)

// Cache stores the compiled specializations of a kernel function.
// A specialization is compiled at most once, even when requested
// concurrently. Failed compilations are not cached.
type Cache struct {
	binaries     sync.Map[Key, *Binary]
	group        singleflight.Group
	compilations atomic.Int64
}

// NewCache returns a new empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Lookup returns the binary compiled for a key.
func (c *Cache) Lookup(key Key) (*Binary, bool) {
	return c.binaries.Load(key)
}

// Len returns the number of specializations in the cache.
func (c *Cache) Len() int {
	return c.binaries.Size()
}

// Compilations returns the number of successful compilations.
func (c *Cache) Compilations() int {
	return int(c.compilations.Load())
}

// get returns the binary for a key, compiling it if necessary.
// hit is true if the binary was already in the cache.
func (c *Cache) get(key Key, compile func() (*Binary, error)) (bin *Binary, hit bool, err error) {
	if bin, ok := c.binaries.Load(key); ok {
		return bin, true, nil
	}
	res, err, _ := c.group.Do(key.String(), func() (any, error) {
		if bin, ok := c.binaries.Load(key); ok {
			return bin, nil
		}
		bin, err := compile()
		if err != nil {
			return nil, err
		}
		c.binaries.Store(key, bin)
		c.compilations.Add(1)
		return bin, nil
	})
	if err != nil {
		return nil, false, err
	}
	return res.(*Binary), false, nil
}
