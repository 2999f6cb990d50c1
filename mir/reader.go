// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Reading functions from their S-expression form:
//
//   (func sum
//     (regs (%0 32 addr) (%1 64) (%2 64))
//     (block entry
//       (%1 = load %0 0)
//       (%2 = fadd %1 %1)
//       ($d0 = copy %2)
//       (ret)))
//
// %N is a virtual register that must be declared in 'regs' with its
// width and an optional 'addr'.  $name is a physical register, @name a
// symbol and any other bare word a block name, except for the predicate
// of icmp and fcmp.

package mir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/s48/regbank/util"
)

func ReadFunctions(text string) ([]*FunctionT, error) {
	sexps, err := util.ParseSExps(text)
	if err != nil {
		return nil, err
	}
	result := []*FunctionT{}
	for _, sexp := range sexps {
		fn, err := readFunction(sexp)
		if err != nil {
			return nil, err
		}
		if err := CheckFunction(fn); err != nil {
			return nil, err
		}
		result = append(result, fn)
	}
	return result, nil
}

func ReadFunction(text string) (*FunctionT, error) {
	fns, err := ReadFunctions(text)
	if err != nil {
		return nil, err
	}
	if len(fns) != 1 {
		return nil, fmt.Errorf("expected one function, found %d", len(fns))
	}
	return fns[0], nil
}

type readerT struct {
	fn        *FunctionT
	registers map[int]*RegisterT
}

func syntaxError(sexp *util.SExpT, format string, args ...any) error {
	return fmt.Errorf("line %d: %s in %s", sexp.Line, fmt.Sprintf(format, args...), sexp)
}

func readFunction(sexp *util.SExpT) (*FunctionT, error) {
	if sexp.Kind != util.SExpList ||
		len(sexp.List) < 2 ||
		!sexp.List[0].IsSymbol("func") ||
		sexp.List[1].Kind != util.SExpSymbol {

		return nil, syntaxError(sexp, "expected (func <name> ...)")
	}
	reader := &readerT{fn: MakeFunction(sexp.List[1].Symbol), registers: map[int]*RegisterT{}}
	body := sexp.List[2:]
	// Blocks first so that branches can refer forward.
	for _, form := range body {
		if isForm(form, "block") {
			if len(form.List) < 2 || form.List[1].Kind != util.SExpSymbol {
				return nil, syntaxError(form, "block has no name")
			}
			name := form.List[1].Symbol
			if reader.fn.LookupBlock(name) != nil {
				return nil, syntaxError(form, "duplicate block '%s'", name)
			}
			reader.fn.NewBlock(name)
		}
	}
	for _, form := range body {
		var err error
		switch {
		case isForm(form, "regs"):
			err = reader.readRegisters(form)
		case isForm(form, "block"):
			err = reader.readBlock(form)
		default:
			err = syntaxError(form, "unknown function form")
		}
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", reader.fn.Name, err)
		}
	}
	return reader.fn, nil
}

func isForm(sexp *util.SExpT, name string) bool {
	return sexp.Kind == util.SExpList && 0 < len(sexp.List) && sexp.List[0].IsSymbol(name)
}

// (regs (%0 32 addr) (%1 64) ...)

func (reader *readerT) readRegisters(form *util.SExpT) error {
	for _, decl := range form.List[1:] {
		if decl.Kind != util.SExpList || len(decl.List) < 2 || 3 < len(decl.List) {
			return syntaxError(decl, "bad register declaration")
		}
		id, ok := registerId(decl.List[0])
		if !ok {
			return syntaxError(decl, "bad register name")
		}
		if _, found := reader.registers[id]; found {
			return syntaxError(decl, "register %%%d declared twice", id)
		}
		if decl.List[1].Kind != util.SExpInt || decl.List[1].Integer <= 0 {
			return syntaxError(decl, "bad register width")
		}
		isAddress := false
		if len(decl.List) == 3 {
			if !decl.List[2].IsSymbol("addr") {
				return syntaxError(decl, "unknown register attribute")
			}
			isAddress = true
		}
		reader.registers[id] = reader.fn.AddRegister(id, int(decl.List[1].Integer), isAddress)
	}
	return nil
}

func registerId(sexp *util.SExpT) (int, bool) {
	if sexp.Kind != util.SExpSymbol || !strings.HasPrefix(sexp.Symbol, "%") {
		return 0, false
	}
	id, err := strconv.Atoi(sexp.Symbol[1:])
	return id, err == nil && 0 <= id
}

func (reader *readerT) readBlock(form *util.SExpT) error {
	block := reader.fn.LookupBlock(form.List[1].Symbol)
	for _, instrForm := range form.List[2:] {
		instr, err := reader.readInstr(instrForm)
		if err != nil {
			return err
		}
		block.Append(instr)
	}
	return nil
}

// (%1 = load %0 0) or (store %1 %0 0)

func (reader *readerT) readInstr(form *util.SExpT) (*InstrT, error) {
	if form.Kind != util.SExpList || len(form.List) == 0 {
		return nil, syntaxError(form, "expected an instruction")
	}
	items := form.List
	defItems := []*util.SExpT{}
	for i, item := range items {
		if item.IsSymbol("=") {
			defItems = items[:i]
			items = items[i+1:]
			break
		}
	}
	if len(items) == 0 || items[0].Kind != util.SExpSymbol {
		return nil, syntaxError(form, "missing opcode")
	}
	opcode, found := LookupOpcode(items[0].Symbol)
	if !found {
		return nil, syntaxError(form, "unknown opcode '%s'", items[0].Symbol)
	}
	if len(defItems) != opcode.NumDefs() {
		return nil, syntaxError(form, "%s has %d results, not %d", opcode, opcode.NumDefs(), len(defItems))
	}
	operands := []*OperandT{}
	for _, item := range defItems {
		op, err := reader.readRegisterOperand(item, opcode == OpCopy)
		if err != nil {
			return nil, syntaxError(form, "%s", err)
		}
		operands = append(operands, op)
	}
	for _, item := range items[1:] {
		op, err := reader.readUseOperand(item, opcode, len(operands))
		if err != nil {
			return nil, syntaxError(form, "%s", err)
		}
		operands = append(operands, op)
	}
	return reader.fn.MakeInstr(opcode, operands...), nil
}

func (reader *readerT) readRegisterOperand(item *util.SExpT, physOkay bool) (*OperandT, error) {
	if id, ok := registerId(item); ok {
		reg := reader.registers[id]
		if reg == nil {
			return nil, fmt.Errorf("undeclared register %s", item)
		}
		return RegOp(reg), nil
	}
	if physOkay && item.Kind == util.SExpSymbol && strings.HasPrefix(item.Symbol, "$") {
		phys := LookupPhysReg(item.Symbol)
		if phys == nil {
			return nil, fmt.Errorf("unknown physical register %s", item)
		}
		return PhysOp(phys), nil
	}
	return nil, fmt.Errorf("expected a register, got %s", item)
}

func (reader *readerT) readUseOperand(item *util.SExpT, opcode OpcodeT, index int) (*OperandT, error) {
	if opcode == OpFConstant && index == 1 {
		switch item.Kind {
		case util.SExpInt:
			return FloatOp(float64(item.Integer)), nil
		case util.SExpSymbol:
			value, err := strconv.ParseFloat(item.Symbol, 64)
			if err != nil {
				return nil, fmt.Errorf("bad float %s", item)
			}
			return FloatOp(value), nil
		}
	}
	if (opcode == OpICmp || opcode == OpFCmp) && index == 1 {
		if item.Kind != util.SExpSymbol {
			return nil, fmt.Errorf("bad predicate %s", item)
		}
		return PredOp(item.Symbol), nil
	}
	switch item.Kind {
	case util.SExpInt:
		return ImmOp(item.Integer), nil
	case util.SExpList:
		return nil, fmt.Errorf("unexpected list %s", item)
	}
	symbol := item.Symbol
	switch {
	case strings.HasPrefix(symbol, "%") || strings.HasPrefix(symbol, "$"):
		return reader.readRegisterOperand(item, true)
	case strings.HasPrefix(symbol, "@"):
		return SymbolOp(symbol[1:]), nil
	}
	block := reader.fn.LookupBlock(symbol)
	if block == nil {
		return nil, fmt.Errorf("unknown block '%s'", symbol)
	}
	return BlockOp(block), nil
}
