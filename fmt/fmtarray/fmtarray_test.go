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

package fmtarray_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/tilejit/fmt/fmtarray"
)

func seq(n int) []int32 {
	data := make([]int32, n)
	for i := range data {
		data[i] = int32(i)
	}
	return data
}

func TestSprint(t *testing.T) {
	tests := []struct {
		desc string
		got  string
		want string
	}{
		{
			desc: "scalar",
			got:  fmtarray.Sprint([]int32{42}, nil),
			want: "i32(42)",
		},
		{
			desc: "vector",
			got:  fmtarray.Sprint(seq(6), []int{6}),
			want: "[6]i32{0, 1, 2, 3, 4, 5}",
		},
		{
			desc: "f32",
			got:  fmtarray.Sprint([]float32{1, 2.5, 0.125}, []int{3}),
			want: "[3]f32{1, 2.5, 0.125}",
		},
		{
			desc: "f64",
			got:  fmtarray.Sprint([]float64{0.1, -3}, []int{2}),
			want: "[2]f64{0.1, -3}",
		},
		{
			desc: "mask",
			got:  fmtarray.Sprint([]bool{true, false, true, true}, []int{2, 2}),
			want: `
[2][2]i1{
	{true, false},
	{true, true},
}`,
		},
		{
			desc: "block",
			got:  fmtarray.Sprint(seq(12), []int{2, 3, 2}),
			want: `
[2][3][2]i32{
	{
		{0, 1},
		{2, 3},
		{4, 5},
	},
	{
		{6, 7},
		{8, 9},
		{10, 11},
	},
}`,
		},
		{
			desc: "values only",
			got:  fmtarray.SDataPrint([]uint32{7, 8}, []int{1, 2}),
			want: `
{
	{7, 8},
}`,
		},
	}
	for _, test := range tests {
		want := strings.TrimPrefix(test.want, "\n")
		if diff := cmp.Diff(want, test.got); diff != "" {
			t.Errorf("%s: unexpected formatting (-want +got):\n%s", test.desc, diff)
		}
	}
}

func TestSizeMismatch(t *testing.T) {
	got := fmtarray.SDataPrint([]bool{true, false}, []int{3})
	if want := "2 values do not match dimensions [3] (3 values)"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
}
