// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Deciding which bank the value of an ambiguous instruction (load,
// store, phi, select, implicitdef) belongs in.
//
// The answer comes from the instructions adjacent to it in the def-use
// graph: the ones that use its result and the ones that define its
// operands.  An adjacent instruction whose opcode fixes the bank
// settles the question.  An adjacent ambiguous instruction is visited
// in turn, which can lead to long chains and cycles of ambiguous
// instructions.  An instruction that finds nothing but ambiguous
// neighbours that are already being visited waits on the instruction
// that visited it; whatever that one eventually settles on is passed
// down the waiting lists.  If the top-level instruction finds nothing
// the whole chain is Ambiguous.

package regbank

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/s48/regbank/mir"
)

type InstTypeT int

const (
	InstTypeUnknown InstTypeT = iota // visited but not yet determined
	InstTypeInteger
	InstTypeFloatingPoint
	InstTypeAmbiguous // no adjacent instruction fixes the bank
)

func (instType InstTypeT) String() string {
	switch instType {
	case InstTypeUnknown:
		return "unknown"
	case InstTypeInteger:
		return "integer"
	case InstTypeFloatingPoint:
		return "floating-point"
	case InstTypeAmbiguous:
		return "ambiguous"
	}
	return fmt.Sprintf("InstType(%d)", int(instType))
}

//----------------------------------------------------------------
// The adjacent instructions of one ambiguous instruction.  Copies
// between virtual registers are looked through.

type adjacentInstrsT struct {
	defUses []*mir.InstrT // instructions that use the result
	useDefs []*mir.InstrT // instructions that define the operands
}

func findAdjacentInstrs(instr *mir.InstrT) *adjacentInstrsT {
	adjacent := &adjacentInstrsT{}
	ops := instr.Operands
	switch instr.Opcode {
	case mir.OpLoad, mir.OpImplicitDef:
		adjacent.addDefUses(ops[0])
	case mir.OpStore:
		adjacent.addUseDef(ops[0])
	case mir.OpPhi:
		adjacent.addDefUses(ops[0])
		for i := 1; i < len(ops); i += 2 {
			adjacent.addUseDef(ops[i])
		}
	case mir.OpSelect:
		adjacent.addDefUses(ops[0])
		adjacent.addUseDef(ops[2])
		adjacent.addUseDef(ops[3])
	default:
		panic(fmt.Sprintf("finding adjacent instructions of non-ambiguous %s", instr))
	}
	return adjacent
}

// Only virtual registers have adjacent instructions.  A copy with more
// than one use is a fan-out point; it is left in the list as an
// instruction in its own right.

func (adjacent *adjacentInstrsT) addDefUses(op *mir.OperandT) {
	if !op.IsReg() {
		return
	}
	for _, use := range op.Reg.Uses {
		adjacent.defUses = append(adjacent.defUses, skipCopiesOutgoing(use.Instr))
	}
}

func (adjacent *adjacentInstrsT) addUseDef(op *mir.OperandT) {
	if !op.IsReg() {
		return
	}
	if op.Reg.Def == nil {
		panic(fmt.Sprintf("%s has no definition", op.Reg))
	}
	adjacent.useDefs = append(adjacent.useDefs, skipCopiesIncoming(op.Reg.Def))
}

// Follows copies into virtual registers that have exactly one use.

func skipCopiesOutgoing(instr *mir.InstrT) *mir.InstrT {
	for instr.IsCopy() && instr.Operands[0].IsReg() && instr.Operands[0].Reg.HasOneUse() {
		instr = instr.Operands[0].Reg.Uses[0].Instr
	}
	return instr
}

// Follows copies from virtual registers back to their definitions, as
// long as each copy's result has exactly one use.

func skipCopiesIncoming(instr *mir.InstrT) *mir.InstrT {
	for instr.IsCopy() && instr.Operands[0].IsReg() && instr.Operands[0].Reg.HasOneUse() &&
		instr.Operands[1].IsReg() {

		source := instr.Operands[1].Reg
		if source.Def == nil {
			panic(fmt.Sprintf("%s has no definition", source))
		}
		instr = source.Def
	}
	return instr
}

//----------------------------------------------------------------
// Classification state for one function.  'types' has an entry for
// every instruction visited so far; InstTypeUnknown marks the ones
// still in progress.  Both maps are keyed by instruction id, which
// is only unique within a function, so they are cleared whenever a
// request comes in for a different function.

type TypeInfoT struct {
	unit    *mir.FunctionT
	types   map[int]InstTypeT
	waiting map[int][]*mir.InstrT // instructions waiting for the key's type
	visits  int
}

func MakeTypeInfo() *TypeInfoT {
	return &TypeInfoT{types: map[int]InstTypeT{}, waiting: map[int][]*mir.InstrT{}}
}

func (info *TypeInfoT) SwitchUnit(fn *mir.FunctionT) {
	if info.unit != fn {
		info.Reset()
		info.unit = fn
	}
}

func (info *TypeInfoT) Reset() {
	info.unit = nil
	clear(info.types)
	clear(info.waiting)
	info.visits = 0
}

// Number of instructions visited since the last reset.
func (info *TypeInfoT) VisitCount() int { return info.visits }

// The recorded type, without doing any work.
func (info *TypeInfoT) RecordedType(instr *mir.InstrT) InstTypeT {
	return info.types[instr.Id]
}

func (info *TypeInfoT) DetermineInstType(instr *mir.InstrT) InstTypeT {
	fn := instr.Function()
	if fn == nil {
		panic(fmt.Sprintf("classifying %s, which is not in a function", instr))
	}
	info.SwitchUnit(fn)
	info.visit(instr, nil)
	instType := info.types[instr.Id]
	if instType == InstTypeUnknown {
		panic(fmt.Sprintf("no type determined for %s", instr))
	}
	return instType
}

func (info *TypeInfoT) wasVisited(instr *mir.InstrT) bool {
	_, found := info.types[instr.Id]
	return found
}

// Returns true if the type of 'instr' has been determined.  'waitingFor'
// is the instruction whose visit led here, nil at the top level.

func (info *TypeInfoT) visit(instr *mir.InstrT, waitingFor *mir.InstrT) bool {
	if !IsAmbiguous(instr.Opcode) {
		panic(fmt.Sprintf("visiting non-ambiguous %s", instr))
	}
	if instType, found := info.types[instr.Id]; found {
		return instType != InstTypeUnknown
	}
	info.visits += 1
	info.types[instr.Id] = InstTypeUnknown

	// Addresses are always in gprb.
	if instr.Operands[0].IsReg() && instr.Operands[0].Reg.IsAddress {
		info.setTypes(instr, InstTypeInteger)
		return true
	}

	adjacent := findAdjacentInstrs(instr)
	if info.visitAdjacentInstrs(instr, adjacent.defUses, true) {
		return true
	}
	if info.visitAdjacentInstrs(instr, adjacent.useDefs, false) {
		return true
	}

	// Everything adjacent is ambiguous and already being visited.
	if waitingFor == nil {
		info.setTypes(instr, InstTypeAmbiguous)
		return true
	}
	// There may still be an unexplored path from one of waitingFor's
	// other neighbours.  Whatever type it ends up with, we get too.
	info.waiting[waitingFor.Id] = append(info.waiting[waitingFor.Id], instr)
	return false
}

func (info *TypeInfoT) visitAdjacentInstrs(instr *mir.InstrT, adjacentInstrs []*mir.InstrT, isDefUse bool) bool {
	for _, adjacent := range adjacentInstrs {
		if isDefUse && isFloatingPointOpcodeUse(adjacent.Opcode) ||
			!isDefUse && isFloatingPointOpcodeDef(adjacent.Opcode) {

			info.setTypes(instr, InstTypeFloatingPoint)
			return true
		}

		// The copy's result (for uses) or source (for definitions) is a
		// physical register and its class determines the bank.
		if adjacent.IsCopy() {
			opIndex := 1
			if isDefUse {
				opIndex = 0
			}
			if adjacent.Operands[opIndex].IsPhys() {
				info.setTypesAccordingToPhysicalRegister(instr, adjacent, opIndex)
				return true
			}
		}

		// Anything else, including merge and unmerge, is integer.
		if !IsAmbiguous(adjacent.Opcode) {
			info.setTypes(instr, InstTypeInteger)
			return true
		}

		// An adjacent instruction that is still in progress is skipped;
		// it will get its type from us or from whoever it is waiting on.
		if !info.wasVisited(adjacent) || info.types[adjacent.Id] != InstTypeUnknown {
			if info.visit(adjacent, instr) {
				info.setTypes(instr, info.types[adjacent.Id])
				return true
			}
		}
	}
	return false
}

// Records the type and passes it on to everything waiting for it.

func (info *TypeInfoT) setTypes(instr *mir.InstrT, instType InstTypeT) {
	info.types[instr.Id] = instType
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("%s: %s is %s", info.unit, mir.InstrString(instr), instType)
	}
	waiting := info.waiting[instr.Id]
	delete(info.waiting, instr.Id)
	for _, waitingInstr := range waiting {
		info.setTypes(waitingInstr, instType)
	}
}

func (info *TypeInfoT) setTypesAccordingToPhysicalRegister(instr *mir.InstrT, copyInstr *mir.InstrT, opIndex int) {
	op := copyInstr.Operands[opIndex]
	if !copyInstr.IsCopy() || !op.IsPhys() {
		panic(fmt.Sprintf("operand %d of %s is not a physical register", opIndex, copyInstr))
	}
	switch BankOfClass(op.Phys.Class) {
	case FloatBank:
		info.setTypes(instr, InstTypeFloatingPoint)
	case IntegerBank:
		info.setTypes(instr, InstTypeInteger)
	default:
		panic(fmt.Sprintf("unsupported register bank for %s", op.Phys))
	}
}
