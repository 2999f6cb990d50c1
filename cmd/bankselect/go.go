// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/s48/regbank/front"
)

var goCmd = &cobra.Command{
	Use:   "go <file.go>",
	Short: "Lower the functions in a Go file and select their register banks.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := front.ReadFile(args[0], filepath.Dir(args[0]))
		if err != nil {
			return err
		}
		fns, err := parsed.Lower(getString(cmd, "func"))
		if err != nil {
			return err
		}
		return selectFunctions(cmd, fns)
	},
}

func init() {
	rootCmd.AddCommand(goCmd)
}
