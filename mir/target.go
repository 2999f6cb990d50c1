// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// The MIPS32 register file, as far as bank selection cares about it.

package mir

import (
	"fmt"
	"strconv"
)

type RegClassIdT int

const (
	GPR32 RegClassIdT = iota
	CPU16RegsAndGPRMM16Zero
	GPRMM16MovePPairFirst
	CPU16RegsAndGPRMM16MovePPairSecond
	GPRMM16MovePAndCPU16RegsAndGPRMM16Zero
	GPRMM16MovePPairFirstAndGPRMM16MovePPairSecond
	SP32
	GP32
	FGRCC
	FGR32
	FGR64
	AFGR64
	HI32
	LO32
)

// A set of registers.  The same register may be in more than one
// class but each physical register records the class it was
// declared in.

type RegisterClassT struct {
	Id        RegClassIdT
	Name      string
	Width     int
	Registers []*PhysRegT
}

type PhysRegT struct {
	Name  string
	Class *RegisterClassT
}

func (reg *PhysRegT) String() string { return "$" + reg.Name }

var RegisterClasses = map[RegClassIdT]*RegisterClassT{}

var physRegs = map[string]*PhysRegT{}

func defineClass(id RegClassIdT, name string, width int, regNames ...string) *RegisterClassT {
	class := &RegisterClassT{Id: id, Name: name, Width: width}
	for _, regName := range regNames {
		reg := &PhysRegT{Name: regName, Class: class}
		class.Registers = append(class.Registers, reg)
		physRegs[regName] = reg
	}
	RegisterClasses[id] = class
	return class
}

func numbered(prefix string, count int) []string {
	result := make([]string, count)
	for i := range count {
		result[i] = prefix + strconv.Itoa(i)
	}
	return result
}

func init() {
	defineClass(GPR32, "GPR32", 32,
		"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
		"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
		"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
		"t8", "t9", "k0", "k1", "fp", "ra")
	// microMIPS subclasses; they share registers with GPR32 so they
	// only exist for the class-to-bank lookup.
	defineClass(CPU16RegsAndGPRMM16Zero, "CPU16Regs_and_GPRMM16Zero", 32)
	defineClass(GPRMM16MovePPairFirst, "GPRMM16MovePPairFirst", 32)
	defineClass(CPU16RegsAndGPRMM16MovePPairSecond, "CPU16Regs_and_GPRMM16MovePPairSecond", 32)
	defineClass(GPRMM16MovePAndCPU16RegsAndGPRMM16Zero, "GPRMM16MoveP_and_CPU16Regs_and_GPRMM16Zero", 32)
	defineClass(GPRMM16MovePPairFirstAndGPRMM16MovePPairSecond,
		"GPRMM16MovePPairFirst_and_GPRMM16MovePPairSecond", 32)
	defineClass(SP32, "SP32", 32, "sp")
	defineClass(GP32, "GP32", 32, "gp")
	defineClass(FGRCC, "FGRCC", 32, numbered("fcc", 8)...)
	defineClass(FGR32, "FGR32", 32, numbered("f", 32)...)
	defineClass(FGR64, "FGR64", 64, numbered("d_64_", 32)...)
	defineClass(AFGR64, "AFGR64", 64, numbered("d", 16)...)
	defineClass(HI32, "HI32", 32, "hi0")
	defineClass(LO32, "LO32", 32, "lo0")
}

// Accepts names with or without the leading '$'.

func LookupPhysReg(name string) *PhysRegT {
	if 0 < len(name) && name[0] == '$' {
		name = name[1:]
	}
	return physRegs[name]
}

func MustPhysReg(name string) *PhysRegT {
	reg := LookupPhysReg(name)
	if reg == nil {
		panic(fmt.Sprintf("no physical register named '%s'", name))
	}
	return reg
}
