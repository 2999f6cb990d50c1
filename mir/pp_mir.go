// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Printer for machine IR functions.  The output can be read back in
// by ReadFunctions.

package mir

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

func PpFunction(fn *FunctionT) {
	WriteFunction(os.Stdout, fn)
}

func WriteFunction(writer io.Writer, fn *FunctionT) {
	fmt.Fprintf(writer, "(func %s\n", fn.Name)
	fmt.Fprintf(writer, "  (regs")
	for i, reg := range fn.Registers {
		if i != 0 && i%6 == 0 {
			fmt.Fprintf(writer, "\n       ")
		}
		fmt.Fprintf(writer, " (%s %d", reg, reg.Width)
		if reg.IsAddress {
			fmt.Fprintf(writer, " addr")
		}
		fmt.Fprintf(writer, ")")
	}
	fmt.Fprintf(writer, ")")
	for _, block := range fn.Blocks {
		fmt.Fprintf(writer, "\n  (block %s", block.Name)
		for _, instr := range block.Instrs {
			line := "(" + InstrString(instr) + ")"
			if banks := bankComment(instr); banks != "" {
				line = fmt.Sprintf("%-40s ; %s", line, banks)
			}
			fmt.Fprintf(writer, "\n    %s", line)
		}
		fmt.Fprintf(writer, ")")
	}
	fmt.Fprintf(writer, ")\n")
}

func FunctionString(fn *FunctionT) string {
	var builder strings.Builder
	WriteFunction(&builder, fn)
	return builder.String()
}

// "%3 = fadd %1 %2"

func InstrString(instr *InstrT) string {
	var builder strings.Builder
	defs := instr.NumDefs()
	for i := 0; i < defs; i++ {
		builder.WriteString(OperandString(instr.Operands[i]))
		builder.WriteString(" ")
	}
	if 0 < defs {
		builder.WriteString("= ")
	}
	builder.WriteString(instr.Opcode.String())
	for _, op := range instr.Operands[defs:] {
		builder.WriteString(" ")
		builder.WriteString(OperandString(op))
	}
	return builder.String()
}

func OperandString(op *OperandT) string {
	switch op.Kind {
	case RegOperand:
		return op.Reg.String()
	case PhysOperand:
		return op.Phys.String()
	case ImmOperand:
		return strconv.FormatInt(op.Imm, 10)
	case FloatOperand:
		return floatString(op.Float)
	case SymbolOperand:
		return "@" + op.Symbol
	case BlockOperand:
		return op.Block.Name
	case PredOperand:
		return op.Symbol
	}
	panic(fmt.Sprintf("bad operand kind %d", op.Kind))
}

// Floats always have a '.' or an exponent so that they read back as
// floats and not integers.

func floatString(value float64) string {
	switch {
	case math.IsInf(value, 1):
		return "+inf"
	case math.IsInf(value, -1):
		return "-inf"
	case math.IsNaN(value):
		return "nan"
	case value == 0 && math.Signbit(value):
		return "-0.0"
	}
	result := strconv.FormatFloat(value, 'g', -1, 64)
	if !strings.ContainsAny(result, ".e") {
		result += ".0"
	}
	return result
}

// The banks of the registers defined by 'instr', once selection has
// assigned them.

func bankComment(instr *InstrT) string {
	banks := []string{}
	for _, op := range instr.Operands[:instr.NumDefs()] {
		if op.IsReg() && op.Reg.Bank != nil {
			banks = append(banks, op.Reg.String()+":"+op.Reg.Bank.Name())
		}
	}
	return strings.Join(banks, " ")
}
