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

package ordered_test

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/tilejit/base/ordered"
)

type entry struct {
	k string
	v int
}

func collect(m *ordered.Map[string, int]) []entry {
	var got []entry
	for k, v := range m.Iter() {
		got = append(got, entry{k: k, v: v})
	}
	return got
}

func TestMap(t *testing.T) {
	tests := []struct {
		entries []entry
		deleted []string
		want    []entry
	}{
		{
			entries: []entry{{k: "a", v: 1}, {k: "b", v: 2}, {k: "c", v: 3}},
			want:    []entry{{k: "a", v: 1}, {k: "b", v: 2}, {k: "c", v: 3}},
		},
		{
			entries: []entry{{k: "a", v: 1}, {k: "b", v: 2}, {k: "a", v: 3}},
			want:    []entry{{k: "a", v: 3}, {k: "b", v: 2}},
		},
		{
			entries: []entry{{k: "a", v: 1}, {k: "b", v: 2}, {k: "c", v: 3}},
			deleted: []string{"b", "z"},
			want:    []entry{{k: "a", v: 1}, {k: "c", v: 3}},
		},
	}
	for ti, test := range tests {
		m := ordered.NewMap[string, int]()
		for _, e := range test.entries {
			m.Store(e.k, e.v)
		}
		for _, k := range test.deleted {
			m.Delete(k)
		}
		m = m.Clone()
		if diff := cmp.Diff(test.want, collect(m), cmp.AllowUnexported(entry{})); diff != "" {
			t.Errorf("test %d: unexpected entries (-want +got):\n%s", ti, diff)
		}
		if m.Size() != len(test.want) {
			t.Errorf("test %d: map has %d entries but want %d", ti, m.Size(), len(test.want))
		}
		var wantKeys []string
		for _, e := range test.want {
			wantKeys = append(wantKeys, e.k)
		}
		if got := slices.Collect(m.Keys()); !slices.Equal(got, wantKeys) {
			t.Errorf("test %d: got keys %v but want %v", ti, got, wantKeys)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := ordered.NewMap[string, int]()
	m.Store("a", 1)
	c := m.Clone()
	c.Store("b", 2)
	if m.Has("b") {
		t.Errorf("storing in a clone modified the original map")
	}
}
