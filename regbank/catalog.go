// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// The MIPS register banks and the mappings of all the opcodes whose
// banks follow from the opcode alone.

package regbank

import (
	"fmt"

	"github.com/s48/regbank/mir"
)

type BankIdT int

const (
	GPRBId BankIdT = iota
	FPRBId
)

type BankT struct {
	Id     BankIdT
	name   string
	Widths []int // widths a register in the bank can hold
}

func (bank *BankT) Name() string   { return bank.name }
func (bank *BankT) String() string { return bank.name }

var IntegerBank = &BankT{Id: GPRBId, name: "gprb", Widths: []int{32}}
var FloatBank = &BankT{Id: FPRBId, name: "fprb", Widths: []int{32, 64}}

// Where in a value a bank register goes.  All of ours cover the whole
// value; the 64-bit integer case is handled by splitting the
// instruction instead of by two partial mappings.

type PartialMappingT struct {
	Start  int
	Length int
	Bank   *BankT
}

func (pm *PartialMappingT) String() string {
	return fmt.Sprintf("%s%d", pm.Bank.name, pm.Length)
}

var (
	GPR32 = &PartialMappingT{Start: 0, Length: 32, Bank: IntegerBank}
	SPR32 = &PartialMappingT{Start: 0, Length: 32, Bank: FloatBank}
	DPR64 = &PartialMappingT{Start: 0, Length: 64, Bank: FloatBank}
)

func fprMapping(width int) *PartialMappingT {
	if width == 32 {
		return SPR32
	}
	return DPR64
}

// Only the 64-bit mapping exists in fprb; a 64-bit value headed for
// gprb gets it too and the mapping is marked custom, meaning the
// instruction will be split into two 32-bit halves.

func gprOrCustomMapping(width int, id *MappingIdT) *PartialMappingT {
	if width == 32 {
		return GPR32
	}
	*id = CustomMappingId
	return DPR64
}

//----------------------------------------------------------------

func BankOfClass(class *mir.RegisterClassT) *BankT {
	switch class.Id {
	case mir.GPR32,
		mir.CPU16RegsAndGPRMM16Zero,
		mir.GPRMM16MovePPairFirst,
		mir.CPU16RegsAndGPRMM16MovePPairSecond,
		mir.GPRMM16MovePAndCPU16RegsAndGPRMM16Zero,
		mir.GPRMM16MovePPairFirstAndGPRMM16MovePPairSecond,
		mir.SP32,
		mir.GP32:
		return IntegerBank
	case mir.FGRCC,
		mir.FGR32,
		mir.FGR64,
		mir.AFGR64:
		return FloatBank
	}
	panic(fmt.Sprintf("register class %s not supported", class.Name))
}

//----------------------------------------------------------------
// Opcode classes used by the classifier.

// All register operands are floating point.
func isFloatingPointOpcode(op mir.OpcodeT) bool {
	switch op {
	case mir.OpFConstant, mir.OpFAdd, mir.OpFSub, mir.OpFMul, mir.OpFDiv,
		mir.OpFAbs, mir.OpFSqrt, mir.OpFCeil, mir.OpFFloor, mir.OpFPExt, mir.OpFPTrunc:
		return true
	}
	return false
}

// Uses are floating point, results are general purpose.
func isFloatingPointOpcodeUse(op mir.OpcodeT) bool {
	switch op {
	case mir.OpFPToSI, mir.OpFPToUI, mir.OpFCmp, mir.OpMFC1, mir.OpExtractElementF64:
		return true
	}
	return isFloatingPointOpcode(op)
}

// Results are floating point, uses are general purpose.
func isFloatingPointOpcodeDef(op mir.OpcodeT) bool {
	switch op {
	case mir.OpSIToFP, mir.OpUIToFP, mir.OpMTC1, mir.OpBuildPairF64:
		return true
	}
	return isFloatingPointOpcode(op)
}

// Opcodes whose bank depends on the surrounding instructions.
func IsAmbiguous(op mir.OpcodeT) bool {
	switch op {
	case mir.OpLoad, mir.OpStore, mir.OpPhi, mir.OpSelect, mir.OpImplicitDef:
		return true
	}
	return false
}

//----------------------------------------------------------------
// Fixed mappings.  Returns false for opcodes that have none, which
// are the ambiguous ones, copies and anything with too few operands.

func operandWidth(instr *mir.InstrT, i int) int {
	op := instr.Operands[i]
	switch op.Kind {
	case mir.RegOperand:
		return op.Reg.Width
	case mir.PhysOperand:
		return op.Phys.Class.Width
	}
	return 0
}

// Every register operand in gprb.
func allGPR(instr *mir.InstrT) []*PartialMappingT {
	result := make([]*PartialMappingT, len(instr.Operands))
	for i, op := range instr.Operands {
		if op.IsRegisterLike() {
			result[i] = GPR32
		}
	}
	return result
}

// Every register operand in fprb at the result's width.
func allFPR(instr *mir.InstrT) []*PartialMappingT {
	mapping := fprMapping(operandWidth(instr, 0))
	result := make([]*PartialMappingT, len(instr.Operands))
	for i, op := range instr.Operands {
		if op.IsRegisterLike() {
			result[i] = mapping
		}
	}
	return result
}

// 'slots' covers the leading operands; any others get no mapping.
func template(instr *mir.InstrT, slots ...*PartialMappingT) []*PartialMappingT {
	result := make([]*PartialMappingT, len(instr.Operands))
	copy(result, slots)
	return result
}

var minOperands = map[mir.OpcodeT]int{
	mir.OpFConstant: 2, mir.OpFCmp: 4, mir.OpFPExt: 2, mir.OpFPTrunc: 2,
	mir.OpFPToSI: 2, mir.OpFPToUI: 2, mir.OpSIToFP: 2, mir.OpUIToFP: 2,
	mir.OpConstant: 2, mir.OpFrameIndex: 2, mir.OpGlobalValue: 2, mir.OpJumpTable: 2,
	mir.OpBrCond: 2, mir.OpBrJT: 3, mir.OpICmp: 4, mir.OpMFC1: 2, mir.OpMTC1: 2,
	mir.OpBuildPairF64: 3, mir.OpExtractElementF64: 3, mir.OpMerge: 3, mir.OpUnmerge: 3,
}

func fixedTemplate(instr *mir.InstrT) ([]*PartialMappingT, MappingIdT, bool) {
	op := instr.Opcode
	if len(instr.Operands) < max(minOperands[op], op.NumDefs()) {
		return nil, DefaultMappingId, false
	}
	switch op {
	case mir.OpTrunc, mir.OpAdd, mir.OpSub, mir.OpMul, mir.OpUMulH,
		mir.OpZExtLoad, mir.OpSExtLoad, mir.OpPtrAdd, mir.OpIntToPtr, mir.OpPtrToInt,
		mir.OpAnd, mir.OpOr, mir.OpXor, mir.OpShl, mir.OpAShr, mir.OpLShr,
		mir.OpSDiv, mir.OpUDiv, mir.OpSRem, mir.OpURem, mir.OpBrIndirect, mir.OpVAStart:
		return allGPR(instr), DefaultMappingId, true

	case mir.OpFAdd, mir.OpFSub, mir.OpFMul, mir.OpFDiv, mir.OpFAbs, mir.OpFSqrt,
		mir.OpFCeil, mir.OpFFloor:
		return allFPR(instr), DefaultMappingId, true

	case mir.OpFConstant:
		return template(instr, fprMapping(operandWidth(instr, 0)), nil), DefaultMappingId, true

	case mir.OpFCmp:
		fpr := fprMapping(operandWidth(instr, 2))
		return template(instr, GPR32, nil, fpr, fpr), DefaultMappingId, true

	case mir.OpFPExt:
		return template(instr, DPR64, SPR32), DefaultMappingId, true

	case mir.OpFPTrunc:
		return template(instr, SPR32, DPR64), DefaultMappingId, true

	case mir.OpFPToSI, mir.OpFPToUI:
		if operandWidth(instr, 0) != 32 {
			panic(fmt.Sprintf("unsupported integer size %d in %s", operandWidth(instr, 0), instr))
		}
		return template(instr, GPR32, fprMapping(operandWidth(instr, 1))), DefaultMappingId, true

	case mir.OpSIToFP, mir.OpUIToFP:
		if operandWidth(instr, 1) != 32 {
			panic(fmt.Sprintf("unsupported integer size %d in %s", operandWidth(instr, 1), instr))
		}
		return template(instr, fprMapping(operandWidth(instr, 0)), GPR32), DefaultMappingId, true

	case mir.OpConstant, mir.OpFrameIndex, mir.OpGlobalValue, mir.OpJumpTable, mir.OpBrCond:
		return template(instr, GPR32, nil), DefaultMappingId, true

	case mir.OpBrJT:
		return template(instr, GPR32, nil, GPR32), DefaultMappingId, true

	case mir.OpICmp:
		return template(instr, GPR32, nil, GPR32, GPR32), DefaultMappingId, true

	case mir.OpMFC1:
		return template(instr, GPR32, SPR32), DefaultMappingId, true

	case mir.OpMTC1:
		return template(instr, SPR32, GPR32), DefaultMappingId, true

	case mir.OpBuildPairF64:
		return template(instr, DPR64, GPR32, GPR32), DefaultMappingId, true

	case mir.OpExtractElementF64:
		return template(instr, GPR32, DPR64, nil), DefaultMappingId, true

	case mir.OpMerge:
		return template(instr, DPR64, GPR32, GPR32), CustomMappingId, true

	case mir.OpUnmerge:
		return template(instr, GPR32, GPR32, DPR64), CustomMappingId, true

	case mir.OpBr, mir.OpRet:
		return template(instr), DefaultMappingId, true
	}
	return nil, DefaultMappingId, false
}
