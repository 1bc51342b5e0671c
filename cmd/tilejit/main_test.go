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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gx-org/tilejit/golang/backend/platform"
)

const addSrc = `package kernels

func add(x, y, z *float32, n int32, meta Meta) {
	offsets := tl.ProgramID(0)*meta["BLOCK"] + tl.Arange(0, meta["BLOCK"])
	mask := offsets < n
	tl.Store(z+offsets, tl.Load(x+offsets, mask)+tl.Load(y+offsets, mask), mask)
}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--color=off"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestIR(t *testing.T) {
	path := writeFile(t, "add.go", addSrc)
	out, err := execute(t, "ir", path,
		"--arg", "*f32", "--arg", "*f32+1", "--arg", "*f32", "--arg", "1000",
		"--meta", "BLOCK=128", "--warps", "2", "--lines")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for _, want := range []string{
		"types Pf32,Pf32,Pf32,I",
		"attributes 0:16,1:4,2:16,3:8",
		"2 warp(s)",
		"func @add(",
		"01 module ",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}

func TestIRErrors(t *testing.T) {
	path := writeFile(t, "add.go", addSrc)
	tests := [][]string{
		{"ir", path, "--kernel", "mul"},
		{"ir", path, "--arg", "*f16"},
		{"ir", path, "--arg", "*f32"},
	}
	for _, args := range tests {
		if _, err := execute(t, args...); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}
}

func TestCheck(t *testing.T) {
	good := writeFile(t, "good.toml", `
key = ["n"]

[[config]]
num_warps = 8
[config.meta]
BLOCK = 256
`)
	bad := writeFile(t, "bad.toml", "[[config]]\nnum_warps = -2\n")
	out, err := execute(t, "check", good)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !strings.Contains(out, "1 configuration(s), key [n]") {
		t.Errorf("unexpected output:\n%s", out)
	}
	out, err = execute(t, "check", good, bad)
	if err == nil {
		t.Fatal("expected an error")
	}
	if want := "1 of 2 file(s) are invalid"; err.Error() != want {
		t.Errorf("got error %q but want %q", err.Error(), want)
	}
	if !strings.Contains(out, "FAIL") {
		t.Errorf("output does not report the invalid file:\n%s", out)
	}
}

func TestParseArg(t *testing.T) {
	dev, err := platform.New().GoDevice(0)
	if err != nil {
		t.Fatal(err)
	}
	arg, err := parseArg(dev, "*f32+3")
	if err != nil {
		t.Fatal(err)
	}
	tensor, ok := arg.(*platform.Tensor)
	if !ok {
		t.Fatalf("got %T but want a tensor", arg)
	}
	if got := tensor.Address() % platform.AllocAlignment; got != 12 {
		t.Errorf("got address offset %d but want 12", got)
	}
	for s, want := range map[string]any{
		"12":   12,
		"0.5":  0.5,
		"true": true,
		"x":    "x",
	} {
		if got := parseValue(s); got != want {
			t.Errorf("parseValue(%q) = %v (%T) but want %v (%T)", s, got, got, want, want)
		}
	}
}
