// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package mir

import (
	"fmt"
)

// The closed set of machine IR opcodes.  Most are generic operations,
// a few (MFC1 and friends) are MIPS instructions that the legalizer
// has already committed to.

type OpcodeT int

const (
	OpInvalid OpcodeT = iota

	// Integer and pointer operations.
	OpTrunc
	OpAdd
	OpSub
	OpMul
	OpUMulH
	OpZExtLoad
	OpSExtLoad
	OpPtrAdd
	OpIntToPtr
	OpPtrToInt
	OpAnd
	OpOr
	OpXor
	OpShl
	OpAShr
	OpLShr
	OpSDiv
	OpUDiv
	OpSRem
	OpURem
	OpBrIndirect
	OpVAStart
	OpConstant
	OpFrameIndex
	OpGlobalValue
	OpJumpTable
	OpBrCond
	OpBrJT
	OpICmp

	// Floating point operations.
	OpFConstant
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFAbs
	OpFSqrt
	OpFCeil
	OpFFloor
	OpFPExt
	OpFPTrunc
	OpFPToSI
	OpFPToUI
	OpSIToFP
	OpUIToFP
	OpFCmp

	// MIPS moves between the banks.
	OpMFC1
	OpMTC1
	OpBuildPairF64
	OpExtractElementF64

	// Two 32-bit halves to one 64-bit value and back.
	OpMerge
	OpUnmerge

	// No bank of their own.
	OpLoad
	OpStore
	OpPhi
	OpSelect
	OpImplicitDef

	OpCopy
	OpBr
	OpRet

	opcodeCount
)

type opcodeInfoT struct {
	name       string
	defs       int
	terminator bool
}

var opcodeInfo = [opcodeCount]opcodeInfoT{
	OpInvalid:           {"invalid", 0, false},
	OpTrunc:             {"trunc", 1, false},
	OpAdd:               {"add", 1, false},
	OpSub:               {"sub", 1, false},
	OpMul:               {"mul", 1, false},
	OpUMulH:             {"umulh", 1, false},
	OpZExtLoad:          {"zextload", 1, false},
	OpSExtLoad:          {"sextload", 1, false},
	OpPtrAdd:            {"ptradd", 1, false},
	OpIntToPtr:          {"inttoptr", 1, false},
	OpPtrToInt:          {"ptrtoint", 1, false},
	OpAnd:               {"and", 1, false},
	OpOr:                {"or", 1, false},
	OpXor:               {"xor", 1, false},
	OpShl:               {"shl", 1, false},
	OpAShr:              {"ashr", 1, false},
	OpLShr:              {"lshr", 1, false},
	OpSDiv:              {"sdiv", 1, false},
	OpUDiv:              {"udiv", 1, false},
	OpSRem:              {"srem", 1, false},
	OpURem:              {"urem", 1, false},
	OpBrIndirect:        {"brindirect", 0, true},
	OpVAStart:           {"vastart", 0, false},
	OpConstant:          {"constant", 1, false},
	OpFrameIndex:        {"frameindex", 1, false},
	OpGlobalValue:       {"globalvalue", 1, false},
	OpJumpTable:         {"jumptable", 1, false},
	OpBrCond:            {"brcond", 0, true},
	OpBrJT:              {"brjt", 0, true},
	OpICmp:              {"icmp", 1, false},
	OpFConstant:         {"fconstant", 1, false},
	OpFAdd:              {"fadd", 1, false},
	OpFSub:              {"fsub", 1, false},
	OpFMul:              {"fmul", 1, false},
	OpFDiv:              {"fdiv", 1, false},
	OpFAbs:              {"fabs", 1, false},
	OpFSqrt:             {"fsqrt", 1, false},
	OpFCeil:             {"fceil", 1, false},
	OpFFloor:            {"ffloor", 1, false},
	OpFPExt:             {"fpext", 1, false},
	OpFPTrunc:           {"fptrunc", 1, false},
	OpFPToSI:            {"fptosi", 1, false},
	OpFPToUI:            {"fptoui", 1, false},
	OpSIToFP:            {"sitofp", 1, false},
	OpUIToFP:            {"uitofp", 1, false},
	OpFCmp:              {"fcmp", 1, false},
	OpMFC1:              {"mfc1", 1, false},
	OpMTC1:              {"mtc1", 1, false},
	OpBuildPairF64:      {"buildpairf64", 1, false},
	OpExtractElementF64: {"extractelementf64", 1, false},
	OpMerge:             {"merge", 1, false},
	OpUnmerge:           {"unmerge", 2, false},
	OpLoad:              {"load", 1, false},
	OpStore:             {"store", 0, false},
	OpPhi:               {"phi", 1, false},
	OpSelect:            {"select", 1, false},
	OpImplicitDef:       {"implicitdef", 1, false},
	OpCopy:              {"copy", 1, false},
	OpBr:                {"br", 0, true},
	OpRet:               {"ret", 0, true},
}

var opcodeNames = map[string]OpcodeT{}

func init() {
	for i := OpTrunc; i < opcodeCount; i++ {
		opcodeNames[opcodeInfo[i].name] = i
	}
}

func (op OpcodeT) String() string {
	if op < 0 || opcodeCount <= op {
		return fmt.Sprintf("opcode(%d)", int(op))
	}
	return opcodeInfo[op].name
}

// The number of leading operands that are results.
func (op OpcodeT) NumDefs() int { return opcodeInfo[op].defs }

func (op OpcodeT) IsTerminator() bool { return opcodeInfo[op].terminator }

func LookupOpcode(name string) (OpcodeT, bool) {
	op, found := opcodeNames[name]
	return op, found
}

// Every opcode, for tests that need to be exhaustive.
func AllOpcodes() []OpcodeT {
	result := make([]OpcodeT, 0, opcodeCount-1)
	for i := OpTrunc; i < opcodeCount; i++ {
		result = append(result, i)
	}
	return result
}
