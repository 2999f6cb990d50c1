// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Consistency checks for functions, run on everything the reader
// produces and by the tests after each transformation.

package mir

import (
	"fmt"
	"slices"
)

func CheckFunction(fn *FunctionT) error {
	defined := map[*RegisterT]*InstrT{}
	for _, block := range fn.Blocks {
		if block.Function != fn {
			return fmt.Errorf("%s: block %s belongs to another function", fn.Name, block.Name)
		}
		seenTerminator := false
		for _, instr := range block.Instrs {
			if err := checkInstr(fn, block, instr, defined); err != nil {
				return fmt.Errorf("%s: %s: %w", fn.Name, InstrString(instr), err)
			}
			if instr.Opcode.IsTerminator() {
				seenTerminator = true
			} else if seenTerminator {
				return fmt.Errorf("%s: %s follows a terminator in block %s",
					fn.Name, InstrString(instr), block.Name)
			}
		}
	}
	for _, reg := range fn.Registers {
		if reg.Width <= 0 {
			return fmt.Errorf("%s: %s has width %d", fn.Name, reg, reg.Width)
		}
		if len(reg.Uses) != 0 && defined[reg] == nil {
			return fmt.Errorf("%s: %s is used but never defined", fn.Name, reg)
		}
		for _, use := range reg.Uses {
			if use.Instr.Erased || use.Instr.Block == nil {
				return fmt.Errorf("%s: %s is used by a removed instruction %d", fn.Name, reg, use.Instr.Id)
			}
		}
	}
	return nil
}

func checkInstr(fn *FunctionT, block *BlockT, instr *InstrT, defined map[*RegisterT]*InstrT) error {
	if instr.Block != block || instr.Erased {
		return fmt.Errorf("instruction %d has a bad block pointer", instr.Id)
	}
	if len(instr.Operands) < instr.Opcode.NumDefs() {
		return fmt.Errorf("missing results")
	}
	for i, op := range instr.Operands {
		if op.Instr != instr || op.Index != i {
			return fmt.Errorf("operand %d has a bad parent pointer", i)
		}
		if op.Kind == BlockOperand && op.Block.Function != fn {
			return fmt.Errorf("operand %d refers to a block in another function", i)
		}
		if !op.IsReg() {
			if op.IsDef() && !(op.IsPhys() && instr.IsCopy()) {
				return fmt.Errorf("result %d is not a register", i)
			}
			continue
		}
		reg := op.Reg
		if op.IsDef() {
			if other := defined[reg]; other != nil {
				return fmt.Errorf("%s is defined twice, also by instruction %d", reg, other.Id)
			}
			if reg.Def != instr {
				return fmt.Errorf("%s has the wrong definition", reg)
			}
			defined[reg] = instr
		} else if !slices.Contains(reg.Uses, op) {
			return fmt.Errorf("operand %d is missing from the uses of %s", i, reg)
		}
	}
	if instr.Opcode == OpPhi {
		incoming := instr.Operands[1:]
		if len(incoming)%2 != 0 {
			return fmt.Errorf("phi has an odd number of incoming operands")
		}
		for i := 0; i < len(incoming); i += 2 {
			if !incoming[i].IsReg() || incoming[i+1].Kind != BlockOperand {
				return fmt.Errorf("phi incoming operands must be register/block pairs")
			}
		}
	}
	return nil
}
