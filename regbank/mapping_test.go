package regbank

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/s48/regbank/mir"
)

var _ = Describe("Mapping selector", func() {
	var (
		info *InfoT
	)

	BeforeEach(func() {
		info = MakeInfo(nil)
	})

	selectMapping := func(instr *mir.InstrT) *MappingT {
		mapping, err := info.SelectMapping(instr)
		Expect(err).NotTo(HaveOccurred())
		return mapping
	}

	It("should map a load used by a floating point add to fprb", func() {
		fn := mustRead(copyChain(0, "fadd"))
		mapping := selectMapping(defOf(fn, 1))
		Expect(mapping.IsCustom()).To(BeFalse())
		Expect(mapping.Cost).To(Equal(1))
		Expect(mapping.Operands).To(Equal([]*PartialMappingT{SPR32, GPR32, nil}))
	})

	It("should map a load used by an integer add to gprb", func() {
		fn := mustRead(copyChain(0, "add"))
		mapping := selectMapping(defOf(fn, 1))
		Expect(mapping.IsCustom()).To(BeFalse())
		Expect(mapping.Operands).To(Equal([]*PartialMappingT{GPR32, GPR32, nil}))
	})

	It("should put an ambiguous 64-bit select in fprb", func() {
		fn := mustRead(`
(func f
  (regs (%0 32) (%1 64) (%2 64) (%3 64))
  (block entry
    (%0 = copy $a0)
    (%1 = implicitdef)
    (%2 = implicitdef)
    (%3 = select %0 %1 %2)
    (ret)))`)
		mapping := selectMapping(defOf(fn, 3))
		Expect(mapping.IsCustom()).To(BeFalse())
		Expect(mapping.Operands).To(Equal([]*PartialMappingT{DPR64, GPR32, DPR64, DPR64}))
		Expect(selectMapping(defOf(fn, 1)).Operands).To(Equal([]*PartialMappingT{DPR64}))
	})

	It("should put an ambiguous 32-bit select in gprb", func() {
		fn := mustRead(`
(func f
  (regs (%0 32) (%1 32) (%2 32) (%3 32))
  (block entry
    (%0 = copy $a0)
    (%1 = implicitdef)
    (%2 = implicitdef)
    (%3 = select %0 %1 %2)
    (ret)))`)
		mapping := selectMapping(defOf(fn, 3))
		Expect(mapping.Operands).To(Equal([]*PartialMappingT{GPR32, GPR32, GPR32, GPR32}))
	})

	It("should give a 64-bit integer load a custom mapping", func() {
		fn := mustRead(`
(func f
  (regs (%0 32 addr) (%1 64) (%2 32) (%3 32))
  (block entry
    (%0 = copy $a0)
    (%1 = load %0 0)
    (%2 %3 = unmerge %1)
    (ret)))`)
		mapping := selectMapping(defOf(fn, 1))
		Expect(mapping.IsCustom()).To(BeTrue())
		Expect(mapping.Operands).To(Equal([]*PartialMappingT{DPR64, GPR32, nil}))
	})

	It("should give a 64-bit integer phi a single slot custom mapping", func() {
		fn := mustRead(`
(func f
  (regs (%0 32) (%1 32) (%2 64) (%3 64))
  (block entry
    (%0 = copy $a0)
    (%1 = copy $a1)
    (%2 = merge %0 %1)
    (br next))
  (block next
    (%3 = phi %2 entry)
    (ret)))`)
		mapping := selectMapping(defOf(fn, 3))
		Expect(mapping.IsCustom()).To(BeTrue())
		Expect(mapping.Cost).To(Equal(1))
		Expect(mapping.Operands).To(Equal([]*PartialMappingT{DPR64, nil, nil}))
	})

	It("should give every register of a phi the result's bank", func() {
		fn := mustRead(`
(func f
  (regs (%0 32 addr) (%1 32) (%2 32) (%3 32))
  (block entry
    (%0 = copy $a0)
    (%1 = load %0 0)
    (br next))
  (block next
    (%2 = phi %1 entry)
    (%3 = fadd %2 %2)
    (ret)))`)
		Expect(selectMapping(defOf(fn, 2)).Operands).To(Equal([]*PartialMappingT{SPR32, SPR32, nil}))
		Expect(selectMapping(defOf(fn, 1)).Operands).To(Equal([]*PartialMappingT{SPR32, GPR32, nil}))
	})

	It("should map addresses to gprb without classifying them", func() {
		fn := mustRead(`
(func f
  (regs (%0 32 addr) (%1 32 addr) (%2 32))
  (block entry
    (%0 = copy $a0)
    (%1 = load %0 0)
    (%2 = fptosi %1)
    (ret)))`)
		Expect(selectMapping(defOf(fn, 1)).Operands).To(Equal([]*PartialMappingT{GPR32, GPR32, nil}))
		Expect(info.TypeInfo.VisitCount()).To(Equal(0))
	})

	It("should map copies by their physical register or source bank", func() {
		fn := mustRead(`
(func f
  (regs (%0 64) (%1 64) (%2 32) (%3 32) (%4 64))
  (block entry
    (%0 = copy $d6)
    (%1 = copy %0)
    (%2 = copy $a0)
    ($f0 = copy %2)
    (%3 = copy %2)
    (%4 = copy %1)
    (ret)))`)
		Expect(selectMapping(defOf(fn, 0)).Operands).To(Equal([]*PartialMappingT{DPR64, nil}))
		Expect(selectMapping(defOf(fn, 1)).Operands).To(Equal([]*PartialMappingT{DPR64, DPR64}))
		Expect(selectMapping(firstInstr(fn, mir.OpCopy).Block.Instrs[3]).Operands).
			To(Equal([]*PartialMappingT{nil, SPR32}))
		Expect(selectMapping(defOf(fn, 3)).Operands).To(Equal([]*PartialMappingT{GPR32, GPR32}))

		fn.LookupRegister(1).Bank = IntegerBank
		_, err := info.SelectMapping(defOf(fn, 4))
		var invalid *InvalidMappingError
		Expect(errors.As(err, &invalid)).To(BeTrue())
	})

	It("should use fixed templates for opcodes with banks", func() {
		fn := mustRead(`
(func f
  (regs (%0 32) (%1 32) (%2 64) (%3 32) (%4 64) (%5 32) (%6 32) (%7 64))
  (block entry
    (%0 = copy $a0)
    (%1 = sitofp %0)
    (%2 = fpext %1)
    (%3 = fcmp olt %2 %2)
    (%4 = buildpairf64 %0 %3)
    (%5 = extractelementf64 %4 1)
    (%6 = mfc1 %1)
    (%7 = merge %5 %6)
    (ret)))`)
		Expect(selectMapping(defOf(fn, 1)).Operands).To(Equal([]*PartialMappingT{SPR32, GPR32}))
		Expect(selectMapping(defOf(fn, 2)).Operands).To(Equal([]*PartialMappingT{DPR64, SPR32}))
		Expect(selectMapping(defOf(fn, 3)).Operands).To(Equal([]*PartialMappingT{GPR32, nil, DPR64, DPR64}))
		Expect(selectMapping(defOf(fn, 4)).Operands).To(Equal([]*PartialMappingT{DPR64, GPR32, GPR32}))
		Expect(selectMapping(defOf(fn, 5)).Operands).To(Equal([]*PartialMappingT{GPR32, DPR64, nil}))
		Expect(selectMapping(defOf(fn, 6)).Operands).To(Equal([]*PartialMappingT{GPR32, SPR32}))
		merge := selectMapping(defOf(fn, 7))
		Expect(merge.IsCustom()).To(BeTrue())
		Expect(merge.Operands).To(Equal([]*PartialMappingT{DPR64, GPR32, GPR32}))
		Expect(merge.String()).To(Equal("custom {fprb64 gprb32 gprb32}"))
		Expect(selectMapping(firstInstr(fn, mir.OpRet)).Operands).To(BeEmpty())
	})

	It("should panic on a 64-bit conversion to an integer", func() {
		fn := mustRead(`
(func f
  (regs (%0 64) (%1 64))
  (block entry
    (%0 = copy $d6)
    (%1 = fptosi %0)
    (ret)))`)
		Expect(func() { info.SelectMapping(defOf(fn, 1)) }).To(Panic())
	})

	It("should reject registers that are neither 32 nor 64 bits", func() {
		for _, width := range []int{16, 128} {
			for _, opcode := range mir.AllOpcodes() {
				fn := mir.MakeFunction("f")
				block := fn.NewBlock("entry")
				operands := []*mir.OperandT{}
				for i := 0; i < max(opcode.NumDefs(), 4); i++ {
					operands = append(operands, mir.RegOp(fn.NewRegister(width, false)))
				}
				instr := fn.MakeInstr(opcode, operands...)
				block.Append(instr)
				mapping, err := info.SelectMapping(instr)
				Expect(mapping).To(BeNil())
				var invalid *InvalidMappingError
				Expect(errors.As(err, &invalid)).To(BeTrue(), "%d-bit %s", width, opcode)
				Expect(invalid.Instr).To(BeIdenticalTo(instr))
			}
		}
	})

	It("should reject opcodes it knows nothing about", func() {
		fn := mustRead(`
(func f
  (regs (%0 32) (%1 32))
  (block entry
    (%0 = copy $a0)
    (vastart %0)
    (ret)))`)
		instr := fn.MakeInstr(mir.OpInvalid)
		fn.Blocks[0].Append(instr)
		_, err := info.SelectMapping(instr)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("has no mapping"))
	})
})
