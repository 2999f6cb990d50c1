package regbank_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/s48/regbank/legalize"
	"github.com/s48/regbank/mir"
	"github.com/s48/regbank/regbank"
)

// Sets banks the way the driver does, and remembers what it was asked
// to map later.
type recordingApplierT struct {
	later []*mir.InstrT
}

func (applier *recordingApplierT) ApplyDefaultMapping(instr *mir.InstrT, mapping *regbank.MappingT) error {
	for i, op := range instr.Operands {
		if mapping.Operands[i] != nil && op.IsReg() && op.IsDef() {
			op.Reg.Bank = mapping.Operands[i].Bank
		}
	}
	return nil
}

func (applier *recordingApplierT) MapLater(instr *mir.InstrT) {
	applier.later = append(applier.later, instr)
}

var _ = Describe("Custom mappings with the legalizer", func() {
	var (
		info    *regbank.InfoT
		applier *recordingApplierT
	)

	BeforeEach(func() {
		info = regbank.MakeInfo(legalize.MakeHelper())
		applier = &recordingApplierT{}
	})

	It("should split a 64-bit load whose only use is an integer add", func() {
		fn, err := mir.ReadFunction(`
(func f
  (regs (%0 32 addr) (%1 64) (%2 64))
  (block entry
    (%0 = copy $a0)
    (%1 = load %0 0)
    (%2 = add %1 %1)
    (ret)))`)
		Expect(err).NotTo(HaveOccurred())
		load := fn.LookupRegister(1).Def

		Expect(info.TypeInfo.DetermineInstType(load)).To(Equal(regbank.InstTypeInteger))
		mapping, err := info.SelectMapping(load)
		Expect(err).NotTo(HaveOccurred())
		Expect(mapping.IsCustom()).To(BeTrue())
		Expect(info.ApplyMapping(load, mapping, applier)).To(Succeed())
		Expect(load.Erased).To(BeTrue())
		Expect(mir.CheckFunction(fn)).To(Succeed())

		opcodes := map[mir.OpcodeT][]*mir.InstrT{}
		for _, instr := range fn.Instrs() {
			opcodes[instr.Opcode] = append(opcodes[instr.Opcode], instr)
		}
		Expect(opcodes[mir.OpLoad]).To(HaveLen(2))
		for _, instr := range opcodes[mir.OpLoad] {
			Expect(instr.Operands[0].Reg.Width).To(Equal(32))
			Expect(instr.Operands[0].Reg.Bank).To(BeIdenticalTo(regbank.IntegerBank))
		}
		Expect(opcodes[mir.OpMerge]).To(HaveLen(1))
		Expect(opcodes[mir.OpUnmerge]).To(BeEmpty())
		merge := opcodes[mir.OpMerge][0]
		Expect(merge.Operands[0].Reg).To(BeIdenticalTo(fn.LookupRegister(1)))
		Expect(applier.later).To(ConsistOf(merge))
		add := fn.LookupRegister(2).Def
		Expect(add.Operands[1].Reg.Def).To(BeIdenticalTo(merge))
	})

	It("should split a 64-bit integer load into two banked loads and a merge", func() {
		fn, err := mir.ReadFunction(`
(func f
  (regs (%0 32 addr) (%1 64) (%2 32) (%3 32) (%4 32))
  (block entry
    (%0 = copy $a0)
    (%1 = load %0 0)
    (%2 %3 = unmerge %1)
    (%4 = add %2 %3)
    (ret)))`)
		Expect(err).NotTo(HaveOccurred())
		load := fn.LookupRegister(1).Def

		Expect(info.TypeInfo.DetermineInstType(load)).To(Equal(regbank.InstTypeInteger))
		mapping, err := info.SelectMapping(load)
		Expect(err).NotTo(HaveOccurred())
		Expect(mapping.IsCustom()).To(BeTrue())
		Expect(info.ApplyMapping(load, mapping, applier)).To(Succeed())
		Expect(mir.CheckFunction(fn)).To(Succeed())

		loads := []*mir.InstrT{}
		merges := []*mir.InstrT{}
		for _, instr := range fn.Instrs() {
			switch instr.Opcode {
			case mir.OpLoad:
				loads = append(loads, instr)
			case mir.OpMerge:
				merges = append(merges, instr)
			}
		}
		Expect(loads).To(HaveLen(2))
		for _, instr := range loads {
			Expect(instr.Operands[0].Reg.Width).To(Equal(32))
			Expect(instr.Operands[0].Reg.Bank).To(BeIdenticalTo(regbank.IntegerBank))
		}
		Expect(loads[0].Operands[2].Imm).To(Equal(int64(0)))
		Expect(loads[1].Operands[2].Imm).To(Equal(int64(4)))
		Expect(merges).To(HaveLen(1))
		Expect(applier.later).To(ConsistOf(merges[0]))

		// The unmerge is now a round trip through the merge.
		unmerge := fn.LookupRegister(2).Def
		mapping, err = info.SelectMapping(unmerge)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.ApplyMapping(unmerge, mapping, applier)).To(Succeed())
		Expect(merges[0].Erased).To(BeTrue())
		for _, instr := range fn.Instrs() {
			Expect(instr.Opcode).NotTo(BeElementOf(mir.OpMerge, mir.OpUnmerge))
		}
		add := fn.LookupRegister(4).Def
		Expect(add.Operands[1].Reg.Def).To(BeIdenticalTo(loads[0]))
		Expect(add.Operands[2].Reg.Def).To(BeIdenticalTo(loads[1]))
		Expect(mir.CheckFunction(fn)).To(Succeed())
	})

	It("should split a 64-bit integer store and drop the merge feeding it", func() {
		fn, err := mir.ReadFunction(`
(func f
  (regs (%0 32) (%1 32) (%2 64) (%3 32 addr))
  (block entry
    (%0 = copy $a0)
    (%1 = copy $a1)
    (%2 = merge %0 %1)
    (%3 = copy $a2)
    (store %2 %3 8)
    (ret)))`)
		Expect(err).NotTo(HaveOccurred())
		var store *mir.InstrT
		for _, instr := range fn.Instrs() {
			if instr.Opcode == mir.OpStore {
				store = instr
			}
		}
		mapping, err := info.SelectMapping(store)
		Expect(err).NotTo(HaveOccurred())
		Expect(mapping.IsCustom()).To(BeTrue())
		Expect(info.ApplyMapping(store, mapping, applier)).To(Succeed())
		Expect(applier.later).To(BeEmpty())

		text := mir.FunctionString(fn)
		Expect(text).To(ContainSubstring("(store %0 %3 8)"))
		Expect(text).To(ContainSubstring("(store %1 %3 12)"))
		Expect(text).NotTo(ContainSubstring("merge"))
		Expect(mir.CheckFunction(fn)).To(Succeed())
	})
})
