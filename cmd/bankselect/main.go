// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Register bank selection for MIPS machine IR.
//
//   bankselect map <file.mir>        selects banks and prints the result
//   bankselect classify <file.mir>   prints the type of each ambiguous instruction
//   bankselect go <file.go>          lowers Go functions and selects banks
//   bankselect test [name ...]       runs the sample programs in test/testdata
//
//   --func <name>   only uses the named function
//   --dump          prints functions before selection too
//   --verbose       debug logging

package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/s48/regbank/bankselect"
	"github.com/s48/regbank/mir"
	"github.com/s48/regbank/regbank"
)

var rootCmd = &cobra.Command{
	Use:   "bankselect",
	Short: "Register bank selection for MIPS machine IR.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if getFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	rootCmd.PersistentFlags().Bool("dump", false, "print functions before selection")
	rootCmd.PersistentFlags().String("func", "", "only use the named function")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func getFlag(cmd *cobra.Command, flag string) bool {
	value, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		atexit.Exit(2)
	}
	return value
}

func getString(cmd *cobra.Command, flag string) string {
	value, err := cmd.Flags().GetString(flag)
	if err != nil {
		fmt.Println(err)
		atexit.Exit(2)
	}
	return value
}

func readMirFile(fileName string) ([]*mir.FunctionT, error) {
	text, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	fns, err := mir.ReadFunctions(string(text))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return fns, nil
}

func selectFunctions(cmd *cobra.Command, fns []*mir.FunctionT) error {
	only := getString(cmd, "func")
	dump := getFlag(cmd, "dump")
	info := bankselect.MakeInfo()
	for _, fn := range fns {
		if only != "" && fn.Name != only {
			continue
		}
		if dump {
			mir.PpFunction(fn)
		}
		stats, err := bankselect.SelectFunction(fn, info)
		if err != nil {
			return err
		}
		mir.PpFunction(fn)
		fmt.Printf("; %s\n", stats)
	}
	return nil
}

var mapCmd = &cobra.Command{
	Use:   "map <file.mir>",
	Short: "Select register banks for the functions in a file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fns, err := readMirFile(args[0])
		if err != nil {
			return err
		}
		return selectFunctions(cmd, fns)
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <file.mir>",
	Short: "Print the type of each ambiguous instruction.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fns, err := readMirFile(args[0])
		if err != nil {
			return err
		}
		only := getString(cmd, "func")
		typeInfo := regbank.MakeTypeInfo()
		for _, fn := range fns {
			if only != "" && fn.Name != only {
				continue
			}
			fmt.Printf("%s:\n", fn.Name)
			for _, instr := range fn.Instrs() {
				if regbank.IsAmbiguous(instr.Opcode) {
					fmt.Printf("  %-40s %s\n", mir.InstrString(instr), typeInfo.DetermineInstType(instr))
				}
			}
			fmt.Printf("  %d visits\n", typeInfo.VisitCount())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(classifyCmd)
}
