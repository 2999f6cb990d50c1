// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Building instructions at an insertion point.

package mir

import (
	"fmt"
)

// Instructions are inserted in front of position 'index' in 'block'
// and the insertion point moves past them, so a series of Build calls
// comes out in order.  If Observer is set it is told about every
// instruction the builder creates, in creation order.

type BuilderT struct {
	Function *FunctionT
	Observer func(instr *InstrT)
	block    *BlockT
	index    int
}

func MakeBuilder(fn *FunctionT) *BuilderT {
	return &BuilderT{Function: fn}
}

func (builder *BuilderT) SetInsertPoint(block *BlockT, index int) {
	if block.Function != builder.Function {
		panic(fmt.Sprintf("block %s is not in function %s", block.Name, builder.Function.Name))
	}
	builder.block = block
	builder.index = index
}

func (builder *BuilderT) SetInsertPointBefore(instr *InstrT) {
	builder.SetInsertPoint(instr.Block, instr.Block.indexOf(instr))
}

func (builder *BuilderT) SetInsertPointAfter(instr *InstrT) {
	builder.SetInsertPoint(instr.Block, instr.Block.indexOf(instr)+1)
}

func (builder *BuilderT) SetInsertPointAtEnd(block *BlockT) {
	builder.SetInsertPoint(block, len(block.Instrs))
}

// Instructions that need to be executed on the way out of a block go
// in front of its branches.

func (builder *BuilderT) SetInsertPointBeforeTerminators(block *BlockT) {
	builder.SetInsertPoint(block, block.TerminatorIndex())
}

func (builder *BuilderT) Build(opcode OpcodeT, operands ...*OperandT) *InstrT {
	if builder.block == nil {
		panic("builder has no insertion point")
	}
	instr := builder.Function.MakeInstr(opcode, operands...)
	builder.block.insertAt(builder.index, instr)
	builder.index += 1
	if builder.Observer != nil {
		builder.Observer(instr)
	}
	return instr
}

// Builds an instruction with a new 'width'-bit result register and
// returns the register.

func (builder *BuilderT) BuildDef(opcode OpcodeT, width int, operands ...*OperandT) *RegisterT {
	reg := builder.Function.NewRegister(width, false)
	builder.Build(opcode, append([]*OperandT{RegOp(reg)}, operands...)...)
	return reg
}

// Builds an instruction whose result is the existing register 'def'.

func (builder *BuilderT) BuildTo(opcode OpcodeT, def *RegisterT, operands ...*OperandT) *InstrT {
	return builder.Build(opcode, append([]*OperandT{RegOp(def)}, operands...)...)
}
