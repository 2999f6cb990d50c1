// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package mir

import (
	"fmt"
	"slices"
)

//----------------------------------------------------------------
// Functions are the compilation units.  A function owns its blocks,
// which own their instructions, and a registry of virtual registers.
// Instruction and register ids are unique within a function but
// restart from zero in every function.

type FunctionT struct {
	Name      string
	Blocks    []*BlockT
	Registers []*RegisterT

	nextInstrId int
	nextRegId   int
}

func MakeFunction(name string) *FunctionT {
	return &FunctionT{Name: name}
}

func (fn *FunctionT) String() string { return fn.Name }

func (fn *FunctionT) NewBlock(name string) *BlockT {
	block := &BlockT{Name: name, Function: fn}
	fn.Blocks = append(fn.Blocks, block)
	return block
}

func (fn *FunctionT) LookupBlock(name string) *BlockT {
	for _, block := range fn.Blocks {
		if block.Name == name {
			return block
		}
	}
	return nil
}

func (fn *FunctionT) NewRegister(width int, isAddress bool) *RegisterT {
	return fn.AddRegister(fn.nextRegId, width, isAddress)
}

// Used by the reader, which gets its register numbers from the text.

func (fn *FunctionT) AddRegister(id int, width int, isAddress bool) *RegisterT {
	reg := &RegisterT{Id: id, Width: width, IsAddress: isAddress}
	fn.Registers = append(fn.Registers, reg)
	if fn.nextRegId <= id {
		fn.nextRegId = id + 1
	}
	return reg
}

func (fn *FunctionT) LookupRegister(id int) *RegisterT {
	for _, reg := range fn.Registers {
		if reg.Id == id {
			return reg
		}
	}
	return nil
}

// All instructions in program order.

func (fn *FunctionT) Instrs() []*InstrT {
	result := []*InstrT{}
	for _, block := range fn.Blocks {
		result = append(result, block.Instrs...)
	}
	return result
}

func (fn *FunctionT) LookupInstr(id int) *InstrT {
	for _, block := range fn.Blocks {
		for _, instr := range block.Instrs {
			if instr.Id == id {
				return instr
			}
		}
	}
	return nil
}

//----------------------------------------------------------------

type BlockT struct {
	Name     string
	Function *FunctionT
	Instrs   []*InstrT
}

func (block *BlockT) String() string { return block.Name }

func (block *BlockT) indexOf(instr *InstrT) int {
	index := slices.Index(block.Instrs, instr)
	if index < 0 {
		panic(fmt.Sprintf("instruction %d is not in block %s", instr.Id, block.Name))
	}
	return index
}

func (block *BlockT) insertAt(index int, instr *InstrT) {
	if instr.Block != nil {
		panic(fmt.Sprintf("instruction %d is already in block %s", instr.Id, instr.Block.Name))
	}
	block.Instrs = slices.Insert(block.Instrs, index, instr)
	instr.Block = block
}

func (block *BlockT) Append(instr *InstrT) {
	block.insertAt(len(block.Instrs), instr)
}

// The index of the first of the block's trailing terminators.

func (block *BlockT) TerminatorIndex() int {
	index := len(block.Instrs)
	for 0 < index && block.Instrs[index-1].Opcode.IsTerminator() {
		index -= 1
	}
	return index
}

// The index just past the block's leading phis.

func (block *BlockT) FirstNonPhiIndex() int {
	index := 0
	for index < len(block.Instrs) && block.Instrs[index].Opcode == OpPhi {
		index += 1
	}
	return index
}

//----------------------------------------------------------------
// Virtual registers.  Each has exactly one defining instruction and
// any number of use operands.  Bank is filled in by bank selection.

type BankT interface {
	Name() string
}

type RegisterT struct {
	Id        int
	Width     int
	IsAddress bool
	Def       *InstrT
	Uses      []*OperandT
	Bank      BankT
}

func (reg *RegisterT) String() string { return fmt.Sprintf("%%%d", reg.Id) }

func (reg *RegisterT) HasOneUse() bool { return len(reg.Uses) == 1 }

func (reg *RegisterT) IsUnused() bool { return len(reg.Uses) == 0 }

func (reg *RegisterT) removeUse(op *OperandT) {
	for i, use := range reg.Uses {
		if use == op {
			reg.Uses = slices.Delete(reg.Uses, i, i+1)
			return
		}
	}
	panic(fmt.Sprintf("%s is not used by operand %d of instruction %d", reg, op.Index, op.Instr.Id))
}

//----------------------------------------------------------------

type OperandKindT int

const (
	RegOperand   OperandKindT = iota // virtual register
	PhysOperand                      // physical register
	ImmOperand                       // integer immediate
	FloatOperand                     // floating point immediate
	SymbolOperand
	BlockOperand
	PredOperand // comparison predicate
)

type OperandT struct {
	Kind   OperandKindT
	Reg    *RegisterT
	Phys   *PhysRegT
	Imm    int64
	Float  float64
	Symbol string // for symbols and predicates
	Block  *BlockT

	Instr *InstrT // the instruction this is an operand of
	Index int
}

func RegOp(reg *RegisterT) *OperandT      { return &OperandT{Kind: RegOperand, Reg: reg} }
func PhysOp(reg *PhysRegT) *OperandT      { return &OperandT{Kind: PhysOperand, Phys: reg} }
func ImmOp(value int64) *OperandT         { return &OperandT{Kind: ImmOperand, Imm: value} }
func FloatOp(value float64) *OperandT     { return &OperandT{Kind: FloatOperand, Float: value} }
func SymbolOp(symbol string) *OperandT    { return &OperandT{Kind: SymbolOperand, Symbol: symbol} }
func BlockOp(block *BlockT) *OperandT     { return &OperandT{Kind: BlockOperand, Block: block} }
func PredOp(predicate string) *OperandT   { return &OperandT{Kind: PredOperand, Symbol: predicate} }
func (op *OperandT) IsReg() bool          { return op.Kind == RegOperand }
func (op *OperandT) IsPhys() bool         { return op.Kind == PhysOperand }
func (op *OperandT) IsDef() bool          { return op.Index < op.Instr.NumDefs() }
func (op *OperandT) IsRegisterLike() bool { return op.Kind == RegOperand || op.Kind == PhysOperand }

// Points a register operand at a different register, keeping the
// use lists up to date.

func (op *OperandT) SetReg(reg *RegisterT) {
	if !op.IsReg() {
		panic(fmt.Sprintf("operand %d of instruction %d is not a register", op.Index, op.Instr.Id))
	}
	if op.IsDef() {
		if op.Reg.Def == op.Instr {
			op.Reg.Def = nil
		}
		reg.Def = op.Instr
	} else {
		op.Reg.removeUse(op)
		reg.Uses = append(reg.Uses, op)
	}
	op.Reg = reg
}

//----------------------------------------------------------------

type InstrT struct {
	Opcode   OpcodeT
	Operands []*OperandT
	Block    *BlockT
	Id       int
	Erased   bool
}

// Makes an instruction that is not yet in any block.  The operands
// are linked into the registers' def and use lists right away.

func (fn *FunctionT) MakeInstr(opcode OpcodeT, operands ...*OperandT) *InstrT {
	instr := &InstrT{Opcode: opcode, Id: fn.nextInstrId, Operands: operands}
	fn.nextInstrId += 1
	for i, op := range operands {
		if op.Instr != nil {
			panic(fmt.Sprintf("operand is already part of instruction %d", op.Instr.Id))
		}
		op.Instr = instr
		op.Index = i
		if op.IsReg() {
			if op.IsDef() {
				op.Reg.Def = instr
			} else {
				op.Reg.Uses = append(op.Reg.Uses, op)
			}
		}
	}
	return instr
}

func (instr *InstrT) Function() *FunctionT {
	if instr.Block == nil {
		return nil
	}
	return instr.Block.Function
}

func (instr *InstrT) NumDefs() int {
	defs := instr.Opcode.NumDefs()
	if len(instr.Operands) < defs {
		return len(instr.Operands)
	}
	return defs
}

func (instr *InstrT) Operand(i int) *OperandT { return instr.Operands[i] }

// The virtual register defined by the first operand, if there is one.

func (instr *InstrT) DefReg() *RegisterT {
	if 0 < instr.NumDefs() && instr.Operands[0].IsReg() {
		return instr.Operands[0].Reg
	}
	return nil
}

func (instr *InstrT) IsCopy() bool { return instr.Opcode == OpCopy }

func (instr *InstrT) String() string {
	return fmt.Sprintf("{instr %d %s}", instr.Id, InstrString(instr))
}

func (instr *InstrT) InsertBefore(newInstr *InstrT) {
	instr.Block.insertAt(instr.Block.indexOf(instr), newInstr)
}

func (instr *InstrT) InsertAfter(newInstr *InstrT) {
	instr.Block.insertAt(instr.Block.indexOf(instr)+1, newInstr)
}

// Removes the instruction from its block and from the use lists of
// its operands.  Registers it defined are left without a definition;
// erasing a definition that still has uses is the caller's problem,
// checked by CheckFunction.

func (instr *InstrT) Erase() {
	if instr.Erased {
		panic(fmt.Sprintf("instruction %d erased twice", instr.Id))
	}
	for _, op := range instr.Operands {
		if !op.IsReg() {
			continue
		}
		if op.IsDef() {
			if op.Reg.Def == instr {
				op.Reg.Def = nil
			}
		} else {
			op.Reg.removeUse(op)
		}
	}
	if instr.Block != nil {
		block := instr.Block
		index := block.indexOf(instr)
		block.Instrs = slices.Delete(block.Instrs, index, index+1)
		instr.Block = nil
	}
	instr.Erased = true
}

// Replaces every use of 'old' with 'replacement'.

func ReplaceAllUses(old *RegisterT, replacement *RegisterT) {
	for _, use := range slices.Clone(old.Uses) {
		use.SetReg(replacement)
	}
}
