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

	"github.com/fatih/color"
	"github.com/gx-org/tilejit/jit"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [flags] file.toml...",
		Short: "Check autotuning configuration files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ok := color.New(color.FgGreen)
	var errs error
	for _, path := range args {
		f, err := jit.LoadConfigs(path)
		if err != nil {
			errorColor.Fprint(out, "FAIL ")
			fmt.Fprintln(out, err)
			errs = multierr.Append(errs, err)
			continue
		}
		ok.Fprint(out, "ok   ")
		fmt.Fprintf(out, "%s: %d configuration(s), key %v\n", path, len(f.Configs), f.Key)
		for _, cfg := range f.Configs {
			fmt.Fprintf(out, "     %s\n", cfg)
		}
	}
	if errs != nil {
		return errors.Errorf("%d of %d file(s) are invalid", len(multierr.Errors(errs)), len(args))
	}
	return nil
}
