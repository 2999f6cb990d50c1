// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Splitting 64-bit loads, stores, phis, selects and implicitdefs into
// pairs of 32-bit instructions.  Values are little-endian: the low half
// is at the instruction's own offset and the high half four bytes above it.

package legalize

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/s48/regbank/mir"
	"github.com/s48/regbank/regbank"
)

type HelperT struct{}

func MakeHelper() *HelperT {
	return &HelperT{}
}

type UnsupportedError struct {
	Instr *mir.InstrT
	Width int
}

func (err *UnsupportedError) Error() string {
	return fmt.Sprintf("cannot narrow '%s' to %d bits", mir.InstrString(err.Instr), err.Width)
}

// The new instructions replace 'instr', which is erased.  Every
// created instruction is reported to 'observer' in creation order.

func (helper *HelperT) NarrowScalar(instr *mir.InstrT, width int, observer regbank.ObserverT) error {
	if instr.Block == nil || instr.Erased {
		panic(fmt.Sprintf("narrowing %s, which is not in a block", instr))
	}
	reg := valueRegister(instr)
	if reg == nil || reg.Width != 2*width {
		return &UnsupportedError{Instr: instr, Width: width}
	}
	builder := mir.MakeBuilder(instr.Function())
	if observer != nil {
		builder.Observer = observer.CreatedInstr
	}
	log.Debugf("narrowing %s", mir.InstrString(instr))
	switch instr.Opcode {
	case mir.OpLoad:
		narrowLoad(builder, instr, width)
	case mir.OpStore:
		narrowStore(builder, instr, width)
	case mir.OpSelect:
		narrowSelect(builder, instr, width)
	case mir.OpImplicitDef:
		narrowImplicitDef(builder, instr, width)
	case mir.OpPhi:
		narrowPhi(builder, instr, width)
	default:
		return &UnsupportedError{Instr: instr, Width: width}
	}
	instr.Erase()
	return nil
}

// The stored value or the result.
func valueRegister(instr *mir.InstrT) *mir.RegisterT {
	if len(instr.Operands) == 0 || !instr.Operands[0].IsReg() {
		return nil
	}
	return instr.Operands[0].Reg
}

func offset(instr *mir.InstrT) int64 {
	if len(instr.Operands) < 3 {
		return 0
	}
	op := instr.Operands[2]
	if op.Kind != mir.ImmOperand {
		panic(fmt.Sprintf("memory offset of %s is not an immediate", instr))
	}
	return op.Imm
}

// Returns the low and high halves of 'reg', built at the builder's
// insertion point.
func unmerge(builder *mir.BuilderT, reg *mir.RegisterT, width int) (*mir.RegisterT, *mir.RegisterT) {
	low := builder.Function.NewRegister(width, false)
	high := builder.Function.NewRegister(width, false)
	builder.Build(mir.OpUnmerge, mir.RegOp(low), mir.RegOp(high), mir.RegOp(reg))
	return low, high
}

func merge(builder *mir.BuilderT, def *mir.RegisterT, low *mir.RegisterT, high *mir.RegisterT) {
	builder.BuildTo(mir.OpMerge, def, mir.RegOp(low), mir.RegOp(high))
}

// (%x = load %p off) =>
//   (%lo = load %p off)
//   (%hi = load %p off+4)
//   (%x = merge %lo %hi)

func narrowLoad(builder *mir.BuilderT, instr *mir.InstrT, width int) {
	address := instr.Operands[1].Reg
	off := offset(instr)
	builder.SetInsertPointBefore(instr)
	low := builder.BuildDef(mir.OpLoad, width, mir.RegOp(address), mir.ImmOp(off))
	high := builder.BuildDef(mir.OpLoad, width, mir.RegOp(address), mir.ImmOp(off+int64(width/8)))
	merge(builder, instr.Operands[0].Reg, low, high)
}

func narrowStore(builder *mir.BuilderT, instr *mir.InstrT, width int) {
	address := instr.Operands[1].Reg
	off := offset(instr)
	builder.SetInsertPointBefore(instr)
	low, high := unmerge(builder, instr.Operands[0].Reg, width)
	builder.Build(mir.OpStore, mir.RegOp(low), mir.RegOp(address), mir.ImmOp(off))
	builder.Build(mir.OpStore, mir.RegOp(high), mir.RegOp(address), mir.ImmOp(off+int64(width/8)))
}

func narrowSelect(builder *mir.BuilderT, instr *mir.InstrT, width int) {
	cond := instr.Operands[1].Reg
	builder.SetInsertPointBefore(instr)
	trueLow, trueHigh := unmerge(builder, instr.Operands[2].Reg, width)
	falseLow, falseHigh := unmerge(builder, instr.Operands[3].Reg, width)
	low := builder.BuildDef(mir.OpSelect, width, mir.RegOp(cond), mir.RegOp(trueLow), mir.RegOp(falseLow))
	high := builder.BuildDef(mir.OpSelect, width, mir.RegOp(cond), mir.RegOp(trueHigh), mir.RegOp(falseHigh))
	merge(builder, instr.Operands[0].Reg, low, high)
}

func narrowImplicitDef(builder *mir.BuilderT, instr *mir.InstrT, width int) {
	builder.SetInsertPointBefore(instr)
	low := builder.BuildDef(mir.OpImplicitDef, width)
	high := builder.BuildDef(mir.OpImplicitDef, width)
	merge(builder, instr.Operands[0].Reg, low, high)
}

// Each incoming value is taken apart at the end of its block, the
// halves get their own phis, and the result is put back together
// after the block's phis.

func narrowPhi(builder *mir.BuilderT, instr *mir.InstrT, width int) {
	lowOps := []*mir.OperandT{}
	highOps := []*mir.OperandT{}
	for i := 1; i+1 < len(instr.Operands); i += 2 {
		block := instr.Operands[i+1].Block
		builder.SetInsertPointBeforeTerminators(block)
		low, high := unmerge(builder, instr.Operands[i].Reg, width)
		lowOps = append(lowOps, mir.RegOp(low), mir.BlockOp(block))
		highOps = append(highOps, mir.RegOp(high), mir.BlockOp(block))
	}
	builder.SetInsertPointBefore(instr)
	low := builder.BuildDef(mir.OpPhi, width, lowOps...)
	high := builder.BuildDef(mir.OpPhi, width, highOps...)
	builder.SetInsertPoint(instr.Block, instr.Block.FirstNonPhiIndex())
	merge(builder, instr.Operands[0].Reg, low, high)
}
