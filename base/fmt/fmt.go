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

// Package fmt formats IR listings and names host values in compiler messages.
package fmt

import (
	"fmt"
	"path"
	"reflect"
	"runtime"
	"strconv"
	"strings"
)

// Number prefixes every line of a listing with its line number.
// Numbers are padded with zeros to the width of the largest one.
func Number(x string) string {
	lines := strings.Split(strings.TrimSuffix(x, "\n"), "\n")
	width := len(strconv.Itoa(len(lines)))
	var s strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&s, "%0*d %s\n", width, i+1, line)
	}
	if !strings.HasSuffix(x, "\n") {
		return strings.TrimSuffix(s.String(), "\n")
	}
	return s.String()
}

// Indent prefixes every non-empty line with a tabulation.
func Indent(x string) string {
	var s strings.Builder
	for line := range strings.Lines(x) {
		if strings.TrimSpace(line) != "" {
			s.WriteByte('\t')
		}
		s.WriteString(line)
	}
	return s.String()
}

// Func returns the name of a host function qualified by its package name,
// for example strings.ToUpper.
func Func(f any) string {
	if f == nil {
		return "<nil>"
	}
	rv := reflect.ValueOf(f)
	if rv.Kind() != reflect.Func {
		return fmt.Sprintf("<%T>", f)
	}
	fn := runtime.FuncForPC(rv.Pointer())
	if fn == nil {
		return rv.Type().String()
	}
	return path.Base(fn.Name())
}
