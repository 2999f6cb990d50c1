// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Lowering SSA functions to machine IR.  This is far from complete;
// it covers straight-line arithmetic, memory access through pointers
// and control flow, which is enough to give bank selection something
// to chew on.
//
// Calling convention: integer and pointer arguments arrive in $a0-$a3,
// a 64-bit integer taking an aligned pair.  float32 arguments arrive
// in $f12 and $f14, float64 ones in $d6 and $d7.  Results go in $v0
// ($v0 and $v1 for 64-bit integers), $f0 or $d0.

package front

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"

	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/ssa"

	"github.com/s48/regbank/mir"
)

var mipsSizes = types.SizesFor("gc", "mips")

type UnsupportedError struct {
	What string
	Pos  token.Pos
}

func (err *UnsupportedError) Error() string {
	return "unsupported " + err.What
}

func unsupported(pos token.Pos, format string, args ...any) error {
	return &UnsupportedError{What: fmt.Sprintf(format, args...), Pos: pos}
}

type lowererT struct {
	source    *ssa.Function
	fn        *mir.FunctionT
	builder   *mir.BuilderT
	blocks    map[*ssa.BasicBlock]*mir.BlockT
	registers map[ssa.Value]*mir.RegisterT
	frameSize int64
}

func LowerFunction(source *ssa.Function) (*mir.FunctionT, error) {
	fn := mir.MakeFunction(source.Name())
	lowerer := &lowererT{
		source:    source,
		fn:        fn,
		builder:   mir.MakeBuilder(fn),
		blocks:    map[*ssa.BasicBlock]*mir.BlockT{},
		registers: map[ssa.Value]*mir.RegisterT{},
	}
	for _, block := range source.Blocks {
		lowerer.blocks[block] = fn.NewBlock(fmt.Sprintf("b%d", block.Index))
	}
	if err := lowerer.lowerParams(); err != nil {
		return nil, err
	}
	for _, block := range source.Blocks {
		lowerer.builder.SetInsertPointAtEnd(lowerer.blocks[block])
		for _, instr := range block.Instrs {
			if _, isPhi := instr.(*ssa.Phi); isPhi {
				continue
			}
			if err := lowerer.lowerInstr(instr); err != nil {
				return nil, err
			}
		}
	}
	// Phis last, once every value has a register and every
	// predecessor has its terminators.
	for _, block := range source.Blocks {
		index := 0
		for _, instr := range block.Instrs {
			if phi, isPhi := instr.(*ssa.Phi); isPhi {
				if err := lowerer.lowerPhi(phi, index); err != nil {
					return nil, err
				}
				index += 1
			}
		}
	}
	if err := mir.CheckFunction(fn); err != nil {
		panic(fmt.Sprintf("lowering produced a bad function: %s", err))
	}
	log.Debugf("lowered %s: %d blocks, %d registers", fn.Name, len(fn.Blocks), len(fn.Registers))
	return fn, nil
}

//----------------------------------------------------------------
// Types

type typeInfoT struct {
	width     int
	isAddress bool
	isFloat   bool
	unsigned  bool
}

func typeInfo(pos token.Pos, typ types.Type) (typeInfoT, error) {
	switch typ := typ.Underlying().(type) {
	case *types.Pointer:
		return typeInfoT{width: 32, isAddress: true}, nil
	case *types.Basic:
		switch typ.Kind() {
		case types.Bool, types.Int, types.Int32, types.UntypedBool, types.UntypedInt, types.UntypedRune:
			return typeInfoT{width: 32}, nil
		case types.Uint, types.Uint32, types.Uintptr:
			return typeInfoT{width: 32, unsigned: true}, nil
		case types.Int64:
			return typeInfoT{width: 64}, nil
		case types.Uint64:
			return typeInfoT{width: 64, unsigned: true}, nil
		case types.Float32:
			return typeInfoT{width: 32, isFloat: true}, nil
		case types.Float64, types.UntypedFloat:
			return typeInfoT{width: 64, isFloat: true}, nil
		case types.UnsafePointer:
			return typeInfoT{width: 32, isAddress: true}, nil
		}
	}
	return typeInfoT{}, unsupported(pos, "type %s", typ)
}

func (lowerer *lowererT) register(value ssa.Value) (*mir.RegisterT, error) {
	if reg := lowerer.registers[value]; reg != nil {
		return reg, nil
	}
	info, err := typeInfo(value.Pos(), value.Type())
	if err != nil {
		return nil, err
	}
	reg := lowerer.fn.NewRegister(info.width, info.isAddress)
	lowerer.registers[value] = reg
	return reg, nil
}

// The register holding 'value' at the builder's insertion point.
// Constants are rebuilt at every use.

func (lowerer *lowererT) use(value ssa.Value) (*mir.RegisterT, error) {
	if value, ok := value.(*ssa.Const); ok {
		return lowerer.lowerConst(value)
	}
	if _, ok := value.(*ssa.Function); ok {
		return nil, unsupported(value.Pos(), "function value %s", value.Name())
	}
	if _, ok := value.(*ssa.Global); ok {
		info, _ := typeInfo(value.Pos(), value.Type())
		reg := lowerer.fn.NewRegister(info.width, true)
		lowerer.builder.BuildTo(mir.OpGlobalValue, reg, mir.SymbolOp(value.Name()))
		return reg, nil
	}
	return lowerer.register(value)
}

func (lowerer *lowererT) lowerConst(value *ssa.Const) (*mir.RegisterT, error) {
	info, err := typeInfo(value.Pos(), value.Type())
	if err != nil {
		return nil, err
	}
	reg := lowerer.fn.NewRegister(info.width, info.isAddress)
	switch {
	case value.Value == nil:
		lowerer.builder.BuildTo(mir.OpConstant, reg, mir.ImmOp(0))
	case info.isFloat:
		float, _ := constant.Float64Val(constant.ToFloat(value.Value))
		lowerer.builder.BuildTo(mir.OpFConstant, reg, mir.FloatOp(float))
	case value.Value.Kind() == constant.Bool:
		imm := int64(0)
		if constant.BoolVal(value.Value) {
			imm = 1
		}
		lowerer.builder.BuildTo(mir.OpConstant, reg, mir.ImmOp(imm))
	case info.width == 64:
		// The halves go through gprb and are merged.
		bits, _ := constant.Uint64Val(constant.ToInt(value.Value))
		if !info.unsigned {
			signed, _ := constant.Int64Val(constant.ToInt(value.Value))
			bits = uint64(signed)
		}
		low := lowerer.builder.BuildDef(mir.OpConstant, 32, mir.ImmOp(int64(uint32(bits))))
		high := lowerer.builder.BuildDef(mir.OpConstant, 32, mir.ImmOp(int64(uint32(bits>>32))))
		lowerer.builder.BuildTo(mir.OpMerge, reg, mir.RegOp(low), mir.RegOp(high))
	default:
		imm, _ := constant.Int64Val(constant.ToInt(value.Value))
		if info.unsigned {
			bits, _ := constant.Uint64Val(constant.ToInt(value.Value))
			imm = int64(bits)
		}
		lowerer.builder.BuildTo(mir.OpConstant, reg, mir.ImmOp(imm))
	}
	return reg, nil
}

//----------------------------------------------------------------
// Parameters and results

var (
	intArgRegisters    = []string{"a0", "a1", "a2", "a3"}
	singleArgRegisters = []string{"f12", "f14"}
	doubleArgRegisters = []string{"d6", "d7"}
)

func (lowerer *lowererT) lowerParams() error {
	if len(lowerer.source.Blocks) == 0 {
		return unsupported(lowerer.source.Pos(), "function without a body")
	}
	lowerer.builder.SetInsertPointAtEnd(lowerer.blocks[lowerer.source.Blocks[0]])
	nextInt := 0
	nextFloat := 0
	for _, param := range lowerer.source.Params {
		reg, err := lowerer.register(param)
		if err != nil {
			return err
		}
		info, _ := typeInfo(param.Pos(), param.Type())
		switch {
		case info.isFloat:
			names := singleArgRegisters
			if info.width == 64 {
				names = doubleArgRegisters
			}
			if len(names) <= nextFloat {
				return unsupported(param.Pos(), "more than %d floating point arguments", len(names))
			}
			lowerer.builder.BuildTo(mir.OpCopy, reg, mir.PhysOp(mir.MustPhysReg(names[nextFloat])))
			nextFloat += 1
		case info.width == 64:
			nextInt += nextInt % 2
			if len(intArgRegisters) < nextInt+2 {
				return unsupported(param.Pos(), "too many integer arguments")
			}
			low := lowerer.builder.BuildDef(mir.OpCopy, 32, mir.PhysOp(mir.MustPhysReg(intArgRegisters[nextInt])))
			high := lowerer.builder.BuildDef(mir.OpCopy, 32, mir.PhysOp(mir.MustPhysReg(intArgRegisters[nextInt+1])))
			lowerer.builder.BuildTo(mir.OpMerge, reg, mir.RegOp(low), mir.RegOp(high))
			nextInt += 2
		default:
			if len(intArgRegisters) <= nextInt {
				return unsupported(param.Pos(), "too many integer arguments")
			}
			lowerer.builder.BuildTo(mir.OpCopy, reg, mir.PhysOp(mir.MustPhysReg(intArgRegisters[nextInt])))
			nextInt += 1
		}
	}
	return nil
}

func (lowerer *lowererT) lowerReturn(instr *ssa.Return) error {
	if 1 < len(instr.Results) {
		return unsupported(instr.Pos(), "multiple results")
	}
	if len(instr.Results) == 1 {
		result := instr.Results[0]
		reg, err := lowerer.use(result)
		if err != nil {
			return err
		}
		info, _ := typeInfo(result.Pos(), result.Type())
		switch {
		case info.isFloat && info.width == 64:
			lowerer.copyToPhys("d0", reg)
		case info.isFloat:
			lowerer.copyToPhys("f0", reg)
		case info.width == 64:
			low := lowerer.fn.NewRegister(32, false)
			high := lowerer.fn.NewRegister(32, false)
			lowerer.builder.Build(mir.OpUnmerge, mir.RegOp(low), mir.RegOp(high), mir.RegOp(reg))
			lowerer.copyToPhys("v0", low)
			lowerer.copyToPhys("v1", high)
		default:
			lowerer.copyToPhys("v0", reg)
		}
	}
	lowerer.builder.Build(mir.OpRet)
	return nil
}

func (lowerer *lowererT) copyToPhys(name string, reg *mir.RegisterT) {
	lowerer.builder.Build(mir.OpCopy, mir.PhysOp(mir.MustPhysReg(name)), mir.RegOp(reg))
}

//----------------------------------------------------------------
// Instructions

func (lowerer *lowererT) lowerInstr(instr ssa.Instruction) error {
	builder := lowerer.builder
	switch instr := instr.(type) {
	case *ssa.DebugRef:
		return nil

	case *ssa.Alloc:
		reg, err := lowerer.register(instr)
		if err != nil {
			return err
		}
		elemType := instr.Type().Underlying().(*types.Pointer).Elem()
		builder.BuildTo(mir.OpFrameIndex, reg, mir.ImmOp(lowerer.frameSize))
		lowerer.frameSize += alignUp(mipsSizes.Sizeof(elemType), 8)
		return nil

	case *ssa.FieldAddr:
		structType := instr.X.Type().Underlying().(*types.Pointer).Elem().Underlying().(*types.Struct)
		fields := make([]*types.Var, structType.NumFields())
		for i := range fields {
			fields[i] = structType.Field(i)
		}
		return lowerer.lowerAddress(instr, instr.X, mipsSizes.Offsetsof(fields)[instr.Field])

	case *ssa.IndexAddr:
		pointer, ok := instr.X.Type().Underlying().(*types.Pointer)
		if !ok {
			return unsupported(instr.Pos(), "indexing %s", instr.X.Type())
		}
		array, ok := pointer.Elem().Underlying().(*types.Array)
		if !ok {
			return unsupported(instr.Pos(), "indexing %s", instr.X.Type())
		}
		return lowerer.lowerIndex(instr, mipsSizes.Sizeof(array.Elem()))

	case *ssa.UnOp:
		return lowerer.lowerUnOp(instr)

	case *ssa.Store:
		value, err := lowerer.use(instr.Val)
		if err != nil {
			return err
		}
		address, err := lowerer.use(instr.Addr)
		if err != nil {
			return err
		}
		builder.Build(mir.OpStore, mir.RegOp(value), mir.RegOp(address), mir.ImmOp(0))
		return nil

	case *ssa.BinOp:
		return lowerer.lowerBinOp(instr)

	case *ssa.Convert:
		return lowerer.lowerConvert(instr)

	case *ssa.ChangeType:
		return lowerer.lowerMove(instr, instr.X)

	case *ssa.If:
		cond, err := lowerer.use(instr.Cond)
		if err != nil {
			return err
		}
		succs := instr.Block().Succs
		builder.Build(mir.OpBrCond, mir.RegOp(cond), mir.BlockOp(lowerer.blocks[succs[0]]))
		builder.Build(mir.OpBr, mir.BlockOp(lowerer.blocks[succs[1]]))
		return nil

	case *ssa.Jump:
		builder.Build(mir.OpBr, mir.BlockOp(lowerer.blocks[instr.Block().Succs[0]]))
		return nil

	case *ssa.Return:
		return lowerer.lowerReturn(instr)
	}
	return unsupported(instr.Pos(), "instruction %s", instr)
}

func alignUp(size int64, alignment int64) int64 {
	return (size + alignment - 1) / alignment * alignment
}

func (lowerer *lowererT) lowerAddress(result ssa.Value, base ssa.Value, offset int64) error {
	reg, err := lowerer.register(result)
	if err != nil {
		return err
	}
	baseReg, err := lowerer.use(base)
	if err != nil {
		return err
	}
	offsetReg := lowerer.builder.BuildDef(mir.OpConstant, 32, mir.ImmOp(offset))
	lowerer.builder.BuildTo(mir.OpPtrAdd, reg, mir.RegOp(baseReg), mir.RegOp(offsetReg))
	return nil
}

func (lowerer *lowererT) lowerIndex(instr *ssa.IndexAddr, elemSize int64) error {
	reg, err := lowerer.register(instr)
	if err != nil {
		return err
	}
	base, err := lowerer.use(instr.X)
	if err != nil {
		return err
	}
	index, err := lowerer.use(instr.Index)
	if err != nil {
		return err
	}
	if index.Width != 32 {
		return unsupported(instr.Pos(), "%d-bit index", index.Width)
	}
	size := lowerer.builder.BuildDef(mir.OpConstant, 32, mir.ImmOp(elemSize))
	offset := lowerer.builder.BuildDef(mir.OpMul, 32, mir.RegOp(index), mir.RegOp(size))
	lowerer.builder.BuildTo(mir.OpPtrAdd, reg, mir.RegOp(base), mir.RegOp(offset))
	return nil
}

func (lowerer *lowererT) lowerMove(result ssa.Value, source ssa.Value) error {
	reg, err := lowerer.register(result)
	if err != nil {
		return err
	}
	sourceReg, err := lowerer.use(source)
	if err != nil {
		return err
	}
	lowerer.builder.BuildTo(mir.OpCopy, reg, mir.RegOp(sourceReg))
	return nil
}

func (lowerer *lowererT) lowerUnOp(instr *ssa.UnOp) error {
	reg, err := lowerer.register(instr)
	if err != nil {
		return err
	}
	operand, err := lowerer.use(instr.X)
	if err != nil {
		return err
	}
	info, _ := typeInfo(instr.Pos(), instr.Type())
	builder := lowerer.builder
	switch instr.Op {
	case token.MUL:
		if instr.CommaOk {
			return unsupported(instr.Pos(), "comma-ok receive")
		}
		builder.BuildTo(mir.OpLoad, reg, mir.RegOp(operand), mir.ImmOp(0))
	case token.SUB:
		if info.isFloat {
			zero := builder.BuildDef(mir.OpFConstant, info.width, mir.FloatOp(0))
			builder.BuildTo(mir.OpFSub, reg, mir.RegOp(zero), mir.RegOp(operand))
		} else if info.width == 32 {
			zero := builder.BuildDef(mir.OpConstant, 32, mir.ImmOp(0))
			builder.BuildTo(mir.OpSub, reg, mir.RegOp(zero), mir.RegOp(operand))
		} else {
			return unsupported(instr.Pos(), "64-bit integer negation")
		}
	case token.NOT:
		one := builder.BuildDef(mir.OpConstant, 32, mir.ImmOp(1))
		builder.BuildTo(mir.OpXor, reg, mir.RegOp(operand), mir.RegOp(one))
	case token.XOR:
		if info.width != 32 {
			return unsupported(instr.Pos(), "64-bit complement")
		}
		ones := builder.BuildDef(mir.OpConstant, 32, mir.ImmOp(-1))
		builder.BuildTo(mir.OpXor, reg, mir.RegOp(operand), mir.RegOp(ones))
	default:
		return unsupported(instr.Pos(), "unary %s", instr.Op)
	}
	return nil
}

var intBinOps = map[token.Token]mir.OpcodeT{
	token.ADD: mir.OpAdd, token.SUB: mir.OpSub, token.MUL: mir.OpMul,
	token.AND: mir.OpAnd, token.OR: mir.OpOr, token.XOR: mir.OpXor, token.SHL: mir.OpShl,
}

var floatBinOps = map[token.Token]mir.OpcodeT{
	token.ADD: mir.OpFAdd, token.SUB: mir.OpFSub, token.MUL: mir.OpFMul, token.QUO: mir.OpFDiv,
}

var intPredicates = map[token.Token][2]string{ // signed, unsigned
	token.EQL: {"eq", "eq"}, token.NEQ: {"ne", "ne"},
	token.LSS: {"slt", "ult"}, token.LEQ: {"sle", "ule"},
	token.GTR: {"sgt", "ugt"}, token.GEQ: {"sge", "uge"},
}

var floatPredicates = map[token.Token]string{
	token.EQL: "oeq", token.NEQ: "une", token.LSS: "olt",
	token.LEQ: "ole", token.GTR: "ogt", token.GEQ: "oge",
}

func (lowerer *lowererT) lowerBinOp(instr *ssa.BinOp) error {
	reg, err := lowerer.register(instr)
	if err != nil {
		return err
	}
	x, err := lowerer.use(instr.X)
	if err != nil {
		return err
	}
	y, err := lowerer.use(instr.Y)
	if err != nil {
		return err
	}
	info, err := typeInfo(instr.Pos(), instr.X.Type())
	if err != nil {
		return err
	}
	builder := lowerer.builder
	if pred, found := intPredicates[instr.Op]; found {
		switch {
		case info.isFloat:
			builder.BuildTo(mir.OpFCmp, reg, mir.PredOp(floatPredicates[instr.Op]), mir.RegOp(x), mir.RegOp(y))
		case info.width == 32 && info.unsigned:
			builder.BuildTo(mir.OpICmp, reg, mir.PredOp(pred[1]), mir.RegOp(x), mir.RegOp(y))
		case info.width == 32:
			builder.BuildTo(mir.OpICmp, reg, mir.PredOp(pred[0]), mir.RegOp(x), mir.RegOp(y))
		default:
			return unsupported(instr.Pos(), "64-bit integer comparison")
		}
		return nil
	}
	if info.isFloat {
		opcode, found := floatBinOps[instr.Op]
		if !found {
			return unsupported(instr.Pos(), "floating point %s", instr.Op)
		}
		builder.BuildTo(opcode, reg, mir.RegOp(x), mir.RegOp(y))
		return nil
	}
	if info.width != 32 {
		return unsupported(instr.Pos(), "64-bit integer %s", instr.Op)
	}
	opcode, found := intBinOps[instr.Op]
	if !found {
		switch instr.Op {
		case token.QUO:
			opcode = mir.OpSDiv
			if info.unsigned {
				opcode = mir.OpUDiv
			}
		case token.REM:
			opcode = mir.OpSRem
			if info.unsigned {
				opcode = mir.OpURem
			}
		case token.SHR:
			opcode = mir.OpAShr
			if info.unsigned {
				opcode = mir.OpLShr
			}
		default:
			return unsupported(instr.Pos(), "integer %s", instr.Op)
		}
	}
	builder.BuildTo(opcode, reg, mir.RegOp(x), mir.RegOp(y))
	return nil
}

func (lowerer *lowererT) lowerConvert(instr *ssa.Convert) error {
	to, err := typeInfo(instr.Pos(), instr.Type())
	if err != nil {
		return err
	}
	from, err := typeInfo(instr.Pos(), instr.X.Type())
	if err != nil {
		return err
	}
	reg, err := lowerer.register(instr)
	if err != nil {
		return err
	}
	source, err := lowerer.use(instr.X)
	if err != nil {
		return err
	}
	builder := lowerer.builder
	var opcode mir.OpcodeT
	switch {
	case from.isFloat && to.isFloat && from.width < to.width:
		opcode = mir.OpFPExt
	case from.isFloat && to.isFloat && to.width < from.width:
		opcode = mir.OpFPTrunc
	case from.isFloat && to.isFloat:
		opcode = mir.OpCopy
	case from.isFloat && to.width == 32 && to.unsigned:
		opcode = mir.OpFPToUI
	case from.isFloat && to.width == 32:
		opcode = mir.OpFPToSI
	case to.isFloat && from.width == 32 && from.unsigned:
		opcode = mir.OpUIToFP
	case to.isFloat && from.width == 32:
		opcode = mir.OpSIToFP
	case from.isFloat || to.isFloat:
		return unsupported(instr.Pos(), "conversion from %s to %s", instr.X.Type(), instr.Type())
	case from.isAddress && !to.isAddress:
		opcode = mir.OpPtrToInt
	case to.isAddress && !from.isAddress:
		opcode = mir.OpIntToPtr
	case to.width < from.width:
		opcode = mir.OpTrunc
	case to.width == from.width:
		opcode = mir.OpCopy
	default:
		return unsupported(instr.Pos(), "conversion from %s to %s", instr.X.Type(), instr.Type())
	}
	builder.BuildTo(opcode, reg, mir.RegOp(source))
	return nil
}

// The incoming values are put in registers at the end of the
// predecessor blocks.

func (lowerer *lowererT) lowerPhi(phi *ssa.Phi, index int) error {
	reg, err := lowerer.register(phi)
	if err != nil {
		return err
	}
	operands := []*mir.OperandT{}
	for i, edge := range phi.Edges {
		pred := lowerer.blocks[phi.Block().Preds[i]]
		lowerer.builder.SetInsertPointBeforeTerminators(pred)
		value, err := lowerer.use(edge)
		if err != nil {
			return err
		}
		operands = append(operands, mir.RegOp(value), mir.BlockOp(pred))
	}
	lowerer.builder.SetInsertPoint(lowerer.blocks[phi.Block()], index)
	lowerer.builder.BuildTo(mir.OpPhi, reg, operands...)
	return nil
}
