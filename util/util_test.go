package util

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SetT", func() {
	It("should add, find and remove members", func() {
		set := NewSet(1, 2)
		set.Add(3, 2)
		Expect(set).To(HaveLen(3))
		Expect(set.Contains(2)).To(BeTrue())
		set.Remove(2)
		Expect(set.Contains(2)).To(BeFalse())
		Expect(set.Contains(4)).To(BeFalse())
	})
})

var _ = Describe("StackT", func() {
	It("should pop in reverse order", func() {
		var stack StackT[string]
		Expect(stack.Empty()).To(BeTrue())
		stack.Push("a")
		stack.Push("b")
		Expect(stack.Len()).To(Equal(2))
		Expect(stack.Pop()).To(Equal("b"))
		Expect(stack.Pop()).To(Equal("a"))
		Expect(stack.Empty()).To(BeTrue())
		Expect(func() { stack.Pop() }).To(Panic())
	})
})

var _ = Describe("WorkListT", func() {
	It("should ignore elements it already holds", func() {
		var list WorkListT[int]
		list.Insert(1)
		list.Insert(2)
		list.Insert(1)
		Expect(list.Len()).To(Equal(2))
		Expect(list.Pop()).To(Equal(2))
		list.Insert(2)
		Expect(list.Pop()).To(Equal(2))
		Expect(list.Pop()).To(Equal(1))
		Expect(list.Empty()).To(BeTrue())
	})
})

var _ = Describe("S-expressions", func() {
	It("should read nested lists, integers and symbols", func() {
		sexps, err := ParseSExps(`
; leading comment
(func f (regs (%0 32 addr))) ; trailing
(-12 $a0 @g)`)
		Expect(err).NotTo(HaveOccurred())
		Expect(sexps).To(HaveLen(2))
		Expect(sexps[0].String()).To(Equal("(func f (regs (%0 32 addr)))"))
		Expect(sexps[0].Line).To(Equal(3))
		Expect(sexps[0].List[0].IsSymbol("func")).To(BeTrue())
		regs := sexps[0].List[2].List[1]
		Expect(regs.List[1].Kind).To(Equal(SExpInt))
		Expect(regs.List[1].Integer).To(Equal(int64(32)))
		Expect(sexps[1].List[0].Integer).To(Equal(int64(-12)))
		Expect(sexps[1].List[1].Symbol).To(Equal("$a0"))
		Expect(sexps[1].Line).To(Equal(4))
	})

	It("should print an empty list", func() {
		sexp, err := ParseSExp("()")
		Expect(err).NotTo(HaveOccurred())
		Expect(sexp.String()).To(Equal("()"))
	})

	It("should insist on exactly one expression", func() {
		_, err := ParseSExp("a b")
		Expect(err).To(HaveOccurred())
	})

	It("should report unbalanced parentheses", func() {
		_, err := ParseSExps("(a (b)")
		Expect(err).To(MatchError(ContainSubstring("unterminated list")))
		_, err = ParseSExps("a)")
		Expect(errors.Is(err, errUnexpectedClose)).To(BeTrue())
	})

	It("should reject characters it does not know", func() {
		_, err := ParseSExps("(a\n #b)")
		Expect(err).To(MatchError(ContainSubstring("line 2")))
	})
})
