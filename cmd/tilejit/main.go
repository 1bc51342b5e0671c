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

// Command tilejit inspects tile kernels and their autotuning configurations.
//
// Print the IR of a specialization of the kernel add:
//
//	tilejit ir add.go --kernel add --arg '*f32' --arg '*f32' --arg '*f32' --arg 1000 --meta BLOCK=128
//
// Check autotuning configuration files:
//
//	tilejit check configs/*.toml
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errorColor = color.New(color.FgRed, color.Bold)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tilejit",
		Short:         "Inspect tile kernels compiled just in time",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Bool("verbose", false, "log compilation events on the standard error")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		mode, err := cmd.Flags().GetString("color")
		if err != nil {
			return err
		}
		switch mode {
		case "on":
			color.NoColor = false
		case "off":
			color.NoColor = true
		}
		return nil
	}
	rootCmd.AddCommand(newIRCmd(), newCheckCmd())
	return rootCmd
}

// newLogger returns a development logger if --verbose is set, a no-op logger otherwise.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, err
	}
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errorColor.Fprint(os.Stderr, "error: ")
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
