// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Runs bank selection on the sample functions in test/testdata and
// checks the results against allTests.

package main

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s48/regbank/bankselect"
	"github.com/s48/regbank/front"
	"github.com/s48/regbank/mir"
)

type testT struct {
	file    string
	mapped  int // -1 for don't care
	custom  int
	repairs int
	banks   map[int]string // register id -> bank name
}

// There should be a way to put these in the test files themselves.

var allTests = map[string]*testT{
	"load_fadd":    {file: "samples.mir", mapped: 5, banks: map[int]string{1: "fprb", 2: "fprb"}},
	"move_int64":   {file: "samples.mir", mapped: 5, banks: map[int]string{2: "fprb"}},
	"store_int64":  {file: "samples.mir", mapped: 6, custom: 2, banks: map[int]string{0: "gprb", 1: "gprb"}},
	"phi_cycle":    {file: "samples.mir", mapped: 9, banks: map[int]string{1: "fprb", 2: "fprb", 3: "gprb"}},
	"phi_int64":    {file: "samples.mir", mapped: 13, custom: 4, banks: map[int]string{0: "gprb", 3: "gprb"}},
	"mixed_use":    {file: "samples.mir", mapped: 7, repairs: 2, banks: map[int]string{1: "gprb", 3: "fprb"}},
	"select_float": {file: "samples.mir", mapped: 7, banks: map[int]string{3: "fprb", 4: "gprb"}},
	"select_int64": {file: "samples.mir", mapped: 8, custom: 4, banks: map[int]string{0: "gprb", 1: "gprb"}},
	"scale":        {file: "samples.go", mapped: -1},
	"swap64":       {file: "samples.go", mapped: -1},
	"pick":         {file: "samples.go", mapped: -1, custom: 4},
	"sum":          {file: "samples.go", mapped: -1},
	"count":        {file: "samples.go", mapped: -1},
}

var testCmd = &cobra.Command{
	Use:   "test [name ...]",
	Short: "Run the sample functions and check the results.",
	RunE: func(cmd *cobra.Command, args []string) error {
		directory, err := cmd.Flags().GetString("dir")
		if err != nil {
			return err
		}
		names := args
		if len(names) == 0 {
			for name := range allTests {
				names = append(names, name)
			}
			slices.Sort(names)
		}
		failures := 0
		for _, name := range names {
			test := allTests[name]
			if test == nil {
				return fmt.Errorf("no test named '%s'", name)
			}
			if err := runTest(name, test, directory, getFlag(cmd, "dump")); err != nil {
				fmt.Printf("%s: FAILED %s\n", name, err)
				failures += 1
			} else {
				fmt.Printf("%s: ok\n", name)
			}
		}
		if failures != 0 {
			return fmt.Errorf("%d of %d tests failed", failures, len(names))
		}
		return nil
	},
}

func init() {
	testCmd.Flags().String("dir", "test/testdata", "directory holding the sample files")
	rootCmd.AddCommand(testCmd)
}

func loadTestFunction(name string, test *testT, directory string) (*mir.FunctionT, error) {
	fileName := filepath.Join(directory, test.file)
	var fns []*mir.FunctionT
	var err error
	if strings.HasSuffix(test.file, ".go") {
		var parsed *front.ParsedFileT
		parsed, err = front.ReadFile(fileName, directory)
		if err == nil {
			fns, err = parsed.Lower(name)
		}
	} else {
		fns, err = readMirFile(fileName)
	}
	if err != nil {
		return nil, err
	}
	for _, fn := range fns {
		if fn.Name == name {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("no function %s in %s", name, fileName)
}

func runTest(name string, test *testT, directory string, dump bool) error {
	fn, err := loadTestFunction(name, test, directory)
	if err != nil {
		return err
	}
	if dump {
		mir.PpFunction(fn)
	}
	stats, err := bankselect.SelectFunction(fn, bankselect.MakeInfo())
	if err != nil {
		return err
	}
	if dump {
		mir.PpFunction(fn)
	}
	if err := mir.CheckFunction(fn); err != nil {
		return err
	}
	if test.mapped != -1 && stats.Mapped != test.mapped {
		return fmt.Errorf("mapped %d instructions, expected %d", stats.Mapped, test.mapped)
	}
	if stats.Custom != test.custom {
		return fmt.Errorf("%d custom mappings, expected %d", stats.Custom, test.custom)
	}
	if stats.Repairs != test.repairs {
		return fmt.Errorf("%d repair copies, expected %d", stats.Repairs, test.repairs)
	}
	for id, bank := range test.banks {
		reg := fn.LookupRegister(id)
		if reg == nil || reg.Bank == nil || reg.Bank.Name() != bank {
			return fmt.Errorf("%%%d is not in %s", id, bank)
		}
	}
	return unbankedRegisters(fn)
}

// Every register still in use must have been given a bank.

func unbankedRegisters(fn *mir.FunctionT) error {
	for _, instr := range fn.Instrs() {
		for _, op := range instr.Operands {
			if op.IsReg() && op.Reg.Bank == nil {
				return fmt.Errorf("%s has no bank in '%s'", op.Reg, mir.InstrString(instr))
			}
		}
	}
	return nil
}
