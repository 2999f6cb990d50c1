// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Applying mappings.  Default mappings just set banks, which is the
// driver's business.  Custom mappings are 64-bit values headed for
// gprb; the instruction is split into 32-bit halves and the pieces are
// given their banks here.

package regbank

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/s48/regbank/mir"
	"github.com/s48/regbank/util"
)

// Told about each instruction created while narrowing.
type ObserverT interface {
	CreatedInstr(instr *mir.InstrT)
}

// Splits 'instr' into instructions operating on 'width'-bit pieces and
// erases it.  The results are reassembled with merge and the sources
// taken apart with unmerge.
type NarrowerT interface {
	NarrowScalar(instr *mir.InstrT, width int, observer ObserverT) error
}

// What the driver provides.  ApplyDefaultMapping sets the banks given
// by 'mapping'.  MapLater is called with instructions created here that
// still need mappings of their own.
type ApplierT interface {
	ApplyDefaultMapping(instr *mir.InstrT, mapping *MappingT) error
	MapLater(instr *mir.InstrT)
}

type createdInstrsT struct {
	instrs util.WorkListT[*mir.InstrT]
}

func (created *createdInstrsT) CreatedInstr(instr *mir.InstrT) {
	created.instrs.Insert(instr)
}

func (info *InfoT) ApplyMapping(instr *mir.InstrT, mapping *MappingT, applier ApplierT) error {
	if !mapping.IsCustom() {
		return applier.ApplyDefaultMapping(instr, mapping)
	}
	switch instr.Opcode {
	case mir.OpLoad, mir.OpStore, mir.OpPhi, mir.OpSelect, mir.OpImplicitDef:
		if info.Narrower == nil {
			panic(fmt.Sprintf("custom mapping for %s but no narrower", instr))
		}
		created := &createdInstrsT{}
		if err := info.Narrower.NarrowScalar(instr, 32, created); err != nil {
			return fmt.Errorf("narrowing '%s': %w", mir.InstrString(instr), err)
		}
		// Last created first, so an unmerge is seen before the merge
		// it might be combined with.
		laterInstrs := []*mir.InstrT{}
		for !created.instrs.Empty() {
			newInstr := created.instrs.Pop()
			if newInstr.Erased {
				continue
			}
			switch newInstr.Opcode {
			case mir.OpUnmerge:
				if !combineAwayUnmerge(newInstr) {
					laterInstrs = append(laterInstrs, newInstr)
				}
			case mir.OpMerge:
				laterInstrs = append(laterInstrs, newInstr)
			default:
				setRegBank(newInstr)
			}
		}
		for _, later := range laterInstrs {
			if !later.Erased {
				applier.MapLater(later)
			}
		}
		return nil

	case mir.OpUnmerge:
		if combineAwayUnmerge(instr) {
			return nil
		}
		return applier.ApplyDefaultMapping(instr, mapping)

	case mir.OpMerge:
		return applier.ApplyDefaultMapping(instr, mapping)
	}
	panic(fmt.Sprintf("custom mapping for %s", instr))
}

// (%lo %hi = unmerge %x) where (%x = merge %a %b): uses of %lo and %hi
// are replaced by %a and %b.  The merge goes too if %x has no other
// uses.

func combineAwayUnmerge(unmerge *mir.InstrT) bool {
	source := unmerge.Operands[2]
	if !source.IsReg() || source.Reg.Def == nil || source.Reg.Def.Opcode != mir.OpMerge {
		return false
	}
	merge := source.Reg.Def
	for i := 0; i < 2; i++ {
		part := unmerge.Operands[i].Reg
		replacement := merge.Operands[i+1].Reg
		if part.Width != replacement.Width {
			return false
		}
	}
	for i := 0; i < 2; i++ {
		mir.ReplaceAllUses(unmerge.Operands[i].Reg, merge.Operands[i+1].Reg)
	}
	log.Debugf("combined away %s", mir.InstrString(unmerge))
	unmerge.Erase()
	if merge.Operands[0].Reg.IsUnused() {
		merge.Erase()
	}
	return true
}

// The pieces of a split 64-bit integer value are 32-bit integers.

func setRegBank(instr *mir.InstrT) {
	switch instr.Opcode {
	case mir.OpStore:
		return
	case mir.OpConstant, mir.OpLoad, mir.OpSelect, mir.OpPhi, mir.OpImplicitDef, mir.OpPtrAdd:
		reg := instr.Operands[0].Reg
		if reg.Width != 32 {
			panic(fmt.Sprintf("unexpected %d-bit result in %s", reg.Width, instr))
		}
		reg.Bank = IntegerBank
		log.Debugf("%s in %s", mir.InstrString(instr), IntegerBank)
		return
	}
	panic(fmt.Sprintf("unexpected opcode in %s", instr))
}
