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

package ir

// Layout returns the byte offsets of a list of kernel parameters packed in
// a structure following the natural alignment of each field, and the total
// size of the structure padded to its largest alignment.
func Layout(params []Type) (offsets []int, size int) {
	align := 1
	offsets = make([]int, len(params))
	for i, param := range params {
		n := param.ByteSize()
		if n == 0 {
			continue
		}
		size = alignUp(size, n)
		offsets[i] = size
		size += n
		align = max(align, n)
	}
	return offsets, alignUp(size, align)
}

func alignUp(x, align int) int {
	return (x + align - 1) / align * align
}
