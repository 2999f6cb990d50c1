// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Register bank selection for a whole function.
//
// Every instruction gets a mapping, in program order.  Default mappings
// set the banks of the registers an instruction defines and record the
// banks its uses need.  Custom mappings are handed to the materializer,
// which may leave merges and unmerges to be mapped after the rest.
// Finally a copy is inserted wherever a use needs a register in a
// different bank from the one it was given.

package bankselect

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/s48/regbank/legalize"
	"github.com/s48/regbank/mir"
	"github.com/s48/regbank/regbank"
	"github.com/s48/regbank/util"
)

type StatsT struct {
	Mapped  int // instructions given a mapping
	Custom  int // instructions narrowed or combined
	Repairs int // copies inserted
}

func (stats StatsT) String() string {
	return fmt.Sprintf("%d mapped, %d custom, %d repair copies", stats.Mapped, stats.Custom, stats.Repairs)
}

type selectorT struct {
	fn       *mir.FunctionT
	info     *regbank.InfoT
	mapped   util.SetT[*mir.InstrT]
	later    util.StackT[*mir.InstrT]
	required map[*mir.OperandT]*regbank.PartialMappingT
	stats    StatsT
}

// A new InfoT with the standard narrower.

func MakeInfo() *regbank.InfoT {
	return regbank.MakeInfo(legalize.MakeHelper())
}

func SelectFunction(fn *mir.FunctionT, info *regbank.InfoT) (StatsT, error) {
	sel := &selectorT{
		fn:       fn,
		info:     info,
		mapped:   util.NewSet[*mir.InstrT](),
		required: map[*mir.OperandT]*regbank.PartialMappingT{},
	}
	log.Debugf("selecting banks for %s", fn.Name)
	for _, instr := range fn.Instrs() {
		if err := sel.selectInstr(instr); err != nil {
			return sel.stats, err
		}
	}
	// Merges and unmerges left behind by the materializer.  Some of
	// them may have been combined away since.
	for !sel.later.Empty() {
		if err := sel.selectInstr(sel.later.Pop()); err != nil {
			return sel.stats, err
		}
	}
	sel.repair()
	log.Debugf("%s: %s", fn.Name, sel.stats)
	return sel.stats, nil
}

func (sel *selectorT) selectInstr(instr *mir.InstrT) error {
	if instr.Erased || sel.mapped.Contains(instr) {
		return nil
	}
	sel.mapped.Add(instr)
	mapping, err := sel.info.SelectMapping(instr)
	if err != nil {
		return fmt.Errorf("%s: %w", sel.fn.Name, err)
	}
	sel.stats.Mapped += 1
	if mapping.IsCustom() {
		sel.stats.Custom += 1
	}
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("%s => %s", mir.InstrString(instr), mapping)
	}
	if err := sel.info.ApplyMapping(instr, mapping, sel); err != nil {
		return fmt.Errorf("%s: %w", sel.fn.Name, err)
	}
	return nil
}

func (sel *selectorT) ApplyDefaultMapping(instr *mir.InstrT, mapping *regbank.MappingT) error {
	if len(mapping.Operands) != len(instr.Operands) {
		panic(fmt.Sprintf("mapping %s does not fit %s", mapping, instr))
	}
	for i, op := range instr.Operands {
		pm := mapping.Operands[i]
		if pm == nil || !op.IsReg() {
			continue
		}
		if op.IsDef() {
			op.Reg.Bank = pm.Bank
		} else {
			sel.required[op] = pm
		}
	}
	return nil
}

func (sel *selectorT) MapLater(instr *mir.InstrT) {
	sel.later.Push(instr)
}

//----------------------------------------------------------------
// Repair copies.  A use whose register is in the wrong bank gets a
// copy into a new register of the right bank.  Copies for phi uses go
// at the end of the incoming block.  Values wider than the required
// bank can hold are left alone; there is no copy that would fix them.

func (sel *selectorT) repair() {
	builder := mir.MakeBuilder(sel.fn)
	for _, instr := range sel.fn.Instrs() {
		for _, op := range instr.Operands {
			pm := sel.required[op]
			if pm == nil || !op.IsReg() {
				continue
			}
			reg := op.Reg
			if reg.Bank == nil {
				reg.Bank = pm.Bank
				continue
			}
			if reg.Bank == pm.Bank || reg.Width != pm.Length {
				continue
			}
			if instr.Opcode == mir.OpPhi {
				builder.SetInsertPointBeforeTerminators(instr.Operands[op.Index+1].Block)
			} else {
				builder.SetInsertPointBefore(instr)
			}
			copied := builder.BuildDef(mir.OpCopy, reg.Width, mir.RegOp(reg))
			copied.Bank = pm.Bank
			op.SetReg(copied)
			sel.stats.Repairs += 1
			log.Debugf("repair copy %s for operand %d of %s", copied, op.Index, mir.InstrString(instr))
		}
	}
}
