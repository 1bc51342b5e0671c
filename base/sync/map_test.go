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

package sync_test

import (
	"testing"

	"github.com/gx-org/tilejit/base/sync"
)

func TestLoadOrStore(t *testing.T) {
	var m sync.Map[string, int]
	if got, loaded := m.LoadOrStore("a", 1); loaded || got != 1 {
		t.Errorf("LoadOrStore(a, 1) = %d, %v, want 1, false", got, loaded)
	}
	if got, loaded := m.LoadOrStore("a", 2); !loaded || got != 1 {
		t.Errorf("LoadOrStore(a, 2) = %d, %v, want 1, true", got, loaded)
	}
	if got, ok := m.Load("b"); ok || got != 0 {
		t.Errorf("Load(b) = %d, %v, want 0, false", got, ok)
	}
	m.Store("b", 3)
	if m.Size() != 2 {
		t.Errorf("Size() = %d, want 2", m.Size())
	}
	m.Delete("a")
	if _, ok := m.Load("a"); ok {
		t.Errorf("key a still present after Delete")
	}
}
