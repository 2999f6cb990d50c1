// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Choosing the bank for every operand of an instruction.

package regbank

import (
	"fmt"
	"strings"

	"github.com/s48/regbank/mir"
)

type MappingIdT int

const (
	DefaultMappingId MappingIdT = iota
	CustomMappingId             // applying it needs more than setting banks
)

// One partial mapping per operand, nil for operands that are not
// registers or have no bank.

type MappingT struct {
	Id       MappingIdT
	Cost     int
	Operands []*PartialMappingT
}

func (mapping *MappingT) IsCustom() bool { return mapping.Id == CustomMappingId }

func (mapping *MappingT) String() string {
	var builder strings.Builder
	if mapping.IsCustom() {
		builder.WriteString("custom")
	} else {
		builder.WriteString("default")
	}
	builder.WriteString(" {")
	for i, pm := range mapping.Operands {
		if i != 0 {
			builder.WriteString(" ")
		}
		if pm == nil {
			builder.WriteString("-")
		} else {
			builder.WriteString(pm.String())
		}
	}
	builder.WriteString("}")
	return builder.String()
}

// Returned when no mapping exists for an instruction.  It concerns that
// one instruction only; the classification state is not affected.

type InvalidMappingError struct {
	Instr  *mir.InstrT
	Reason string
}

func (err *InvalidMappingError) Error() string {
	return fmt.Sprintf("no register bank mapping for '%s': %s", mir.InstrString(err.Instr), err.Reason)
}

func invalidMapping(instr *mir.InstrT, format string, args ...any) error {
	return &InvalidMappingError{Instr: instr, Reason: fmt.Sprintf(format, args...)}
}

//----------------------------------------------------------------
// Bank selection state, one per driver run.

type InfoT struct {
	TypeInfo *TypeInfoT
	Narrower NarrowerT
}

func MakeInfo(narrower NarrowerT) *InfoT {
	return &InfoT{TypeInfo: MakeTypeInfo(), Narrower: narrower}
}

func (info *InfoT) SelectMapping(instr *mir.InstrT) (*MappingT, error) {
	fn := instr.Function()
	if fn == nil {
		panic(fmt.Sprintf("selecting a mapping for %s, which is not in a function", instr))
	}
	info.TypeInfo.SwitchUnit(fn)

	for _, op := range instr.Operands {
		if op.IsReg() && op.Reg.Width != 32 && op.Reg.Width != 64 {
			return nil, invalidMapping(instr, "%s has unsupported width %d", op.Reg, op.Reg.Width)
		}
	}

	if operands, id, ok := fixedTemplate(instr); ok {
		return &MappingT{Id: id, Cost: 1, Operands: operands}, nil
	}

	ops := instr.Operands
	switch instr.Opcode {
	case mir.OpLoad, mir.OpStore:
		if len(ops) < 2 || !ops[0].IsReg() {
			return nil, invalidMapping(instr, "malformed %s", instr.Opcode)
		}
		id := DefaultMappingId
		value := info.valueMapping(instr, &id)
		return &MappingT{Id: id, Cost: 1, Operands: template(instr, value, GPR32)}, nil

	case mir.OpSelect:
		if len(ops) != 4 || !ops[0].IsReg() || !ops[2].IsReg() || !ops[3].IsReg() {
			return nil, invalidMapping(instr, "malformed select")
		}
		id := DefaultMappingId
		value := info.valueMapping(instr, &id)
		return &MappingT{Id: id, Cost: 1, Operands: template(instr, value, GPR32, value, value)}, nil

	case mir.OpImplicitDef:
		if len(ops) != 1 || !ops[0].IsReg() {
			return nil, invalidMapping(instr, "malformed implicitdef")
		}
		id := DefaultMappingId
		value := info.valueMapping(instr, &id)
		return &MappingT{Id: id, Cost: 1, Operands: template(instr, value)}, nil

	case mir.OpPhi:
		return info.phiMapping(instr)

	case mir.OpCopy:
		return copyMapping(instr)
	}
	return nil, invalidMapping(instr, "opcode %s has no mapping", instr.Opcode)
}

// Addresses are never floating point and are not worth classifying.

func (info *InfoT) instType(instr *mir.InstrT) InstTypeT {
	if instr.Operands[0].Reg.IsAddress {
		return InstTypeInteger
	}
	return info.TypeInfo.DetermineInstType(instr)
}

// The partial mapping for the value handled by a load, store, select or
// implicitdef.  An ambiguous 64-bit value goes in fprb because that is
// the only bank that can hold it whole.

func (info *InfoT) valueMapping(instr *mir.InstrT, id *MappingIdT) *PartialMappingT {
	width := instr.Operands[0].Reg.Width
	instType := info.instType(instr)
	if instType == InstTypeFloatingPoint || instType == InstTypeAmbiguous && width == 64 {
		return fprMapping(width)
	}
	return gprOrCustomMapping(width, id)
}

// A 64-bit integer phi gets a single-slot custom mapping; it will be
// split into two 32-bit phis.  Otherwise all of the registers go in
// the same bank as the result.

func (info *InfoT) phiMapping(instr *mir.InstrT) (*MappingT, error) {
	ops := instr.Operands
	if len(ops) == 0 || !ops[0].IsReg() || len(ops)%2 != 1 {
		return nil, invalidMapping(instr, "malformed phi")
	}
	width := ops[0].Reg.Width
	instType := info.instType(instr)
	if instType == InstTypeInteger && width == 64 {
		return &MappingT{Id: CustomMappingId, Cost: 1, Operands: template(instr, DPR64)}, nil
	}
	id := DefaultMappingId
	var bank *PartialMappingT
	if instType == InstTypeFloatingPoint || instType == InstTypeAmbiguous && width == 64 {
		bank = fprMapping(width)
	} else {
		bank = gprOrCustomMapping(width, &id)
	}
	operands := make([]*PartialMappingT, len(ops))
	for i, op := range ops {
		if op.IsReg() {
			operands[i] = bank
		}
	}
	return &MappingT{Id: id, Cost: 1, Operands: operands}, nil
}

// Both sides of a copy are in the same bank.  A physical register
// decides it, then whatever bank the source has already been given,
// then the width.

func copyMapping(instr *mir.InstrT) (*MappingT, error) {
	ops := instr.Operands
	if len(ops) != 2 || !ops[0].IsRegisterLike() || !ops[1].IsRegisterLike() {
		return nil, invalidMapping(instr, "malformed copy")
	}
	if ops[0].IsPhys() && ops[1].IsPhys() {
		return nil, invalidMapping(instr, "copy between physical registers")
	}
	width := operandWidth(instr, 0)
	if ops[0].IsPhys() {
		width = operandWidth(instr, 1)
	}
	var bank *BankT
	switch {
	case ops[0].IsPhys():
		bank = BankOfClass(ops[0].Phys.Class)
	case ops[1].IsPhys():
		bank = BankOfClass(ops[1].Phys.Class)
	default:
		if assigned, ok := ops[1].Reg.Bank.(*BankT); ok {
			bank = assigned
		} else if width == 64 {
			bank = FloatBank
		} else {
			bank = IntegerBank
		}
	}
	var pm *PartialMappingT
	switch {
	case bank == FloatBank:
		pm = fprMapping(width)
	case width == 32:
		pm = GPR32
	default:
		return nil, invalidMapping(instr, "%d-bit copy in %s", width, bank)
	}
	operands := make([]*PartialMappingT, 2)
	for i, op := range ops {
		if op.IsReg() {
			operands[i] = pm
		}
	}
	return &MappingT{Id: DefaultMappingId, Cost: 1, Operands: operands}, nil
}
