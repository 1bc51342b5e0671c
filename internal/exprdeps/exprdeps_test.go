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

package exprdeps_test

import (
	"go/ast"
	"go/parser"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/tilejit/internal/exprdeps"
)

func names(vals []*ast.Ident) []string {
	ss := make([]string, len(vals))
	for i, val := range vals {
		ss[i] = val.Name
	}
	return ss
}

func TestIdents(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{
			src:  "x",
			want: []string{"x"},
		},
		{
			src:  "x < y",
			want: []string{"x", "y"},
		},
		{
			src:  "(x + x) * -x",
			want: []string{"x"},
		},
		{
			src:  `tl.Load(ptr + offs) > meta["LIMIT"]`,
			want: []string{"ptr", "offs", "meta"},
		},
		{
			src:  "tl.ProgramID(0) == 1",
			want: []string{},
		},
	}
	for _, test := range tests {
		expr, err := parser.ParseExpr(test.src)
		if err != nil {
			t.Fatal(err)
		}
		got := names(exprdeps.Idents(expr))
		if !cmp.Equal(got, test.want) {
			t.Errorf("%s: incorrect identifier list: got %v but want %v", test.src, got, test.want)
		}
	}
}
