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
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	gxfmt "github.com/gx-org/tilejit/base/fmt"
	"github.com/gx-org/tilejit/build/ir"
	"github.com/gx-org/tilejit/golang/backend/platform"
	"github.com/gx-org/tilejit/jit"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newIRCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ir [flags] file.go",
		Short: "Print the IR of a kernel specialization",
		Long: `Compile a kernel for a set of sample arguments and print its IR.

Arguments are given in order with --arg:
  *f32     a pointer to a tensor of float32 aligned on 16 bytes
  *f32+1   a pointer misaligned by one element
  1000     an integer
  0.5      a float
  true     a boolean`,
		Args: cobra.ExactArgs(1),
		RunE: runIR,
	}
	cmd.Flags().String("kernel", "", "name of the kernel (default: the last function of the file)")
	cmd.Flags().StringArray("arg", nil, "sample argument of the kernel (repeatable)")
	cmd.Flags().StringToString("meta", nil, "meta-parameters of the kernel")
	cmd.Flags().Bool("lines", false, "number the lines of the IR listing")
	cmd.Flags().Int("warps", 0, "number of warps (default: $"+jit.EnvNumWarps+" or 4)")
	return cmd
}

var dtypes = lo.Associate([]dtype.DataType{
	dtype.Bool,
	dtype.Int32,
	dtype.Int64,
	dtype.Uint32,
	dtype.Uint64,
	dtype.Float32,
	dtype.Float64,
}, func(dt dtype.DataType) (string, dtype.DataType) {
	return ir.DTypeName(dt), dt
})

// tensorElements is the number of elements of the tensors allocated for pointer arguments.
const tensorElements = 64

// parseArg converts a command line argument into a sample kernel argument.
func parseArg(dev *platform.Device, s string) (any, error) {
	if ptr, ok := strings.CutPrefix(s, "*"); ok {
		name, off, _ := strings.Cut(ptr, "+")
		dt, ok := dtypes[name]
		if !ok {
			return nil, errors.Errorf("unknown data type %q in argument %q", name, s)
		}
		offset := 0
		if off != "" {
			var err error
			if offset, err = strconv.Atoi(off); err != nil {
				return nil, errors.Wrapf(err, "invalid offset in argument %q", s)
			}
		}
		tensor, err := dev.Alloc(&shape.Shape{DType: dt, AxisLengths: []int{tensorElements}})
		if err != nil {
			return nil, err
		}
		return tensor.View(offset)
	}
	return parseValue(s), nil
}

// parseValue converts a string into an int, a float64 or a bool if possible.
func parseValue(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func runIR(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	mod, err := jit.Parse(args[0], nil, nil, jit.WithLogger(logger))
	if err != nil {
		return err
	}
	name, err := cmd.Flags().GetString("kernel")
	if err != nil {
		return err
	}
	if name == "" {
		funcs := mod.Funcs()
		if len(funcs) == 0 {
			return errors.Errorf("no kernel declared in %s", args[0])
		}
		name = funcs[len(funcs)-1]
	}
	fn, err := mod.Func(name)
	if err != nil {
		return err
	}
	rawArgs, err := cmd.Flags().GetStringArray("arg")
	if err != nil {
		return err
	}
	dev, err := platform.New().GoDevice(0)
	if err != nil {
		return err
	}
	kargs := make([]any, len(rawArgs))
	for i, raw := range rawArgs {
		if kargs[i], err = parseArg(dev, raw); err != nil {
			return err
		}
	}
	rawMeta, err := cmd.Flags().GetStringToString("meta")
	if err != nil {
		return err
	}
	meta := make(jit.Meta, len(rawMeta))
	for k, v := range rawMeta {
		meta[k] = parseValue(v)
	}
	numWarps, err := cmd.Flags().GetInt("warps")
	if err != nil {
		return err
	}
	if numWarps == 0 {
		numWarps = jit.DefaultNumWarps()
	}
	kernel := jit.NewKernel(fn, func(jit.Meta) []int { return []int{1} })
	key, err := kernel.Key(kargs, numWarps, meta)
	if err != nil {
		return err
	}
	bin, err := kernel.Warmup(kargs, numWarps, meta)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	header := color.New(color.FgCyan)
	header.Fprintf(out, "// kernel %s: types %s, attributes %s\n", name, key.Types, key.Attrs)
	header.Fprintf(out, "// %d warp(s), %d byte(s) of shared memory\n", bin.NumWarps(), bin.SharedMem())
	listing := bin.Module().String()
	if lines, _ := cmd.Flags().GetBool("lines"); lines {
		listing = gxfmt.Number(listing)
	}
	fmt.Fprint(out, listing)
	return nil
}
