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

package fmt_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	gxfmt "github.com/gx-org/tilejit/base/fmt"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		txt  string
		want string
	}{
		{
			txt:  "entry:\n\tret\n",
			want: "1 entry:\n2 \tret\n",
		},
		{
			txt:  "a\nb\nc\nd\ne\nf\ng\nh\ni\nj",
			want: "01 a\n02 b\n03 c\n04 d\n05 e\n06 f\n07 g\n08 h\n09 i\n10 j",
		},
	}
	for _, test := range tests {
		got := gxfmt.Number(test.txt)
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("unexpected listing (-want +got):\n%s", diff)
		}
	}
}

func TestIndent(t *testing.T) {
	src := "entry:\n\n%x = const 1 : i32\n"
	want := "\tentry:\n\n\t%x = const 1 : i32\n"
	if got := gxfmt.Indent(src); got != want {
		t.Errorf("got %q but want %q", got, want)
	}
}

func TestFunc(t *testing.T) {
	tests := []struct {
		f    any
		want string
	}{
		{f: nil, want: "<nil>"},
		{f: strings.ToUpper, want: "strings.ToUpper"},
		{f: 42, want: "<int>"},
	}
	for _, test := range tests {
		if got := gxfmt.Func(test.f); got != test.want {
			t.Errorf("Func(%v) = %q but want %q", test.f, got, test.want)
		}
	}
}
