package regbank

import (
	"errors"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/s48/regbank/mir"
)

var _ = Describe("Materializer", func() {
	var (
		mockCtrl     *gomock.Controller
		mockNarrower *MockNarrowerT
		mockApplier  *MockApplierT
		info         *InfoT
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockNarrower = NewMockNarrowerT(mockCtrl)
		mockApplier = NewMockApplierT(mockCtrl)
		info = MakeInfo(mockNarrower)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	// Splits a 64-bit load the way the legalizer does.
	splitLoad := func(instr *mir.InstrT, width int, observer ObserverT) error {
		builder := mir.MakeBuilder(instr.Function())
		builder.Observer = observer.CreatedInstr
		builder.SetInsertPointBefore(instr)
		address := mir.RegOp(instr.Operands[1].Reg)
		low := builder.BuildDef(mir.OpLoad, width, address, mir.ImmOp(0))
		high := builder.BuildDef(mir.OpLoad, width, mir.RegOp(instr.Operands[1].Reg), mir.ImmOp(4))
		builder.BuildTo(mir.OpMerge, instr.Operands[0].Reg, mir.RegOp(low), mir.RegOp(high))
		instr.Erase()
		return nil
	}

	It("should hand default mappings to the applier", func() {
		fn := mustRead(copyChain(0, "add"))
		load := defOf(fn, 1)
		mapping, err := info.SelectMapping(load)
		Expect(err).NotTo(HaveOccurred())
		mockApplier.EXPECT().ApplyDefaultMapping(load, mapping).Return(nil)

		Expect(info.ApplyMapping(load, mapping, mockApplier)).To(Succeed())
	})

	It("should split a 64-bit integer load and bank the halves", func() {
		fn := mustRead(`
(func f
  (regs (%0 32 addr) (%1 64) (%2 32) (%3 32))
  (block entry
    (%0 = copy $a0)
    (%1 = load %0 0)
    (%2 %3 = unmerge %1)
    (ret)))`)
		load := defOf(fn, 1)
		mapping, err := info.SelectMapping(load)
		Expect(err).NotTo(HaveOccurred())
		Expect(mapping.IsCustom()).To(BeTrue())

		var merge *mir.InstrT
		mockNarrower.EXPECT().
			NarrowScalar(load, 32, gomock.Any()).
			DoAndReturn(func(instr *mir.InstrT, width int, observer ObserverT) error {
				err := splitLoad(instr, width, observer)
				merge = fn.LookupRegister(1).Def
				return err
			})
		mockApplier.EXPECT().MapLater(gomock.Any()).Do(func(instr *mir.InstrT) {
			Expect(instr).To(BeIdenticalTo(merge))
		})

		Expect(info.ApplyMapping(load, mapping, mockApplier)).To(Succeed())
		Expect(load.Erased).To(BeTrue())
		Expect(countOpcode(fn, mir.OpLoad)).To(Equal(2))
		Expect(countOpcode(fn, mir.OpMerge)).To(Equal(1))
		for _, instr := range fn.Instrs() {
			if instr.Opcode == mir.OpLoad {
				Expect(instr.Operands[0].Reg.Width).To(Equal(32))
				Expect(instr.Operands[0].Reg.Bank).To(BeIdenticalTo(IntegerBank))
			}
		}
		Expect(mir.CheckFunction(fn)).To(Succeed())
	})

	It("should pass on narrowing errors", func() {
		fn := mustRead(`
(func f
  (regs (%0 32 addr) (%1 64) (%2 32) (%3 32))
  (block entry
    (%0 = copy $a0)
    (%1 = load %0 0)
    (%2 %3 = unmerge %1)
    (ret)))`)
		load := defOf(fn, 1)
		mapping, err := info.SelectMapping(load)
		Expect(err).NotTo(HaveOccurred())
		failure := errors.New("no")
		mockNarrower.EXPECT().NarrowScalar(load, 32, gomock.Any()).Return(failure)

		err = info.ApplyMapping(load, mapping, mockApplier)
		Expect(errors.Is(err, failure)).To(BeTrue())
	})

	It("should combine an unmerge of a merge", func() {
		fn := mustRead(`
(func f
  (regs (%0 32) (%1 32) (%2 64) (%3 32) (%4 32) (%5 32))
  (block entry
    (%0 = copy $a0)
    (%1 = copy $a1)
    (%2 = merge %0 %1)
    (%3 %4 = unmerge %2)
    (%5 = add %3 %4)
    (ret)))`)
		unmerge := firstInstr(fn, mir.OpUnmerge)
		merge := firstInstr(fn, mir.OpMerge)
		mapping, err := info.SelectMapping(unmerge)
		Expect(err).NotTo(HaveOccurred())
		Expect(mapping.IsCustom()).To(BeTrue())

		Expect(info.ApplyMapping(unmerge, mapping, mockApplier)).To(Succeed())
		Expect(unmerge.Erased).To(BeTrue())
		Expect(merge.Erased).To(BeTrue())
		add := defOf(fn, 5)
		Expect(add.Operands[1].Reg).To(BeIdenticalTo(fn.LookupRegister(0)))
		Expect(add.Operands[2].Reg).To(BeIdenticalTo(fn.LookupRegister(1)))
		Expect(mir.CheckFunction(fn)).To(Succeed())
	})

	It("should keep a merge that has other uses", func() {
		fn := mustRead(`
(func f
  (regs (%0 32) (%1 32) (%2 64) (%3 32) (%4 32))
  (block entry
    (%0 = copy $a0)
    (%1 = copy $a1)
    (%2 = merge %0 %1)
    (%3 %4 = unmerge %2)
    ($d0 = copy %2)
    ($v0 = copy %4)
    (ret)))`)
		unmerge := firstInstr(fn, mir.OpUnmerge)
		merge := firstInstr(fn, mir.OpMerge)
		mapping, err := info.SelectMapping(unmerge)
		Expect(err).NotTo(HaveOccurred())

		Expect(info.ApplyMapping(unmerge, mapping, mockApplier)).To(Succeed())
		Expect(unmerge.Erased).To(BeTrue())
		Expect(merge.Erased).To(BeFalse())
		Expect(mir.CheckFunction(fn)).To(Succeed())
	})

	It("should default-apply an unmerge of anything else", func() {
		fn := mustRead(`
(func f
  (regs (%0 64) (%1 32) (%2 32))
  (block entry
    (%0 = copy $d6)
    (%1 %2 = unmerge %0)
    (ret)))`)
		unmerge := firstInstr(fn, mir.OpUnmerge)
		mapping, err := info.SelectMapping(unmerge)
		Expect(err).NotTo(HaveOccurred())
		mockApplier.EXPECT().ApplyDefaultMapping(unmerge, mapping).Return(nil)

		Expect(info.ApplyMapping(unmerge, mapping, mockApplier)).To(Succeed())
		Expect(unmerge.Erased).To(BeFalse())
	})

	It("should panic on a created instruction that is not 32 bits", func() {
		fn := mustRead(`
(func f
  (regs (%0 32 addr) (%1 64))
  (block entry
    (%0 = copy $a0)
    (%1 = load %0 0)
    (ret)))`)
		Expect(func() { setRegBank(defOf(fn, 1)) }).To(Panic())
		Expect(func() { setRegBank(defOf(fn, 0)) }).To(Panic())
	})
})
