package fastspec

// FnAlignmentLog2 is the function-alignment exponent: every blueprint's
// content length is a multiple of 1<<FnAlignmentLog2 bytes (16), and every
// instance's relative_addr is aligned to at least this boundary.
const FnAlignmentLog2 = 4

// NoLITC is the sentinel for Blueprint.LastInstructionTailCallOrd and
// Instance.LitcNextOrd meaning "no LITC successor".
const NoLITC = -1

// Blueprint is an immutable, precompiled machine-code fragment template: a
// byte array plus the fixup records and placeholder-ordinal bookkeeping
// needed to turn it into zero or more Instances (§3 "Blueprint (immutable)").
//
// A Blueprint never mutates after construction; boilerplates_*.go builds
// them once, at package init, with the x86 assembler in x86asm.go.
type Blueprint struct {
	Kind TemplateKind
	Meta MetaTuple

	Content []byte

	Sym32Fixups []SymFixup
	Sym64Fixups []SymFixup

	// Disp32Fixups patches any 32-bit immediate or memory-displacement
	// field directly with a constant placeholder's truncated value: a
	// frame-slot offset, a stack-frame byte count, anything known only
	// once the composer has laid out a specific instance rather than at
	// blueprint-construction time. Unlike Sym32Fixups this is never
	// PC-relative — the raw value is written as-is.
	Disp32Fixups []SymFixup

	Jmp32Offsets []int
	JccOffsets   []int

	// HighestOrdinal[k] is one past the highest ordinal this blueprint
	// uses in namespace k; callers must populate ordinals
	// [0, HighestOrdinal[k]) marked used in UsedMask[k].
	HighestOrdinal [numPlaceholderKinds]int
	UsedMask       [numPlaceholderKinds]ordinalMask

	// LastInstructionTailCallOrd is the bp-fn ordinal the final
	// instruction tail-calls through, or NoLITC.
	LastInstructionTailCallOrd int
}

// CodeSize is the length of Content.
func (b *Blueprint) CodeSize() int { return len(b.Content) }

// IsUsed reports whether the blueprint reads ordinal ord of the given
// placeholder namespace. Every instance of this blueprint must populate
// every used placeholder exactly once (§3 Invariants); placeholders not
// marked used may be populated anyway (and are silently dropped) to
// tolerate dead-code elimination on the boilerplate side.
func (b *Blueprint) IsUsed(kind PlaceholderKind, ord int) bool {
	return b.UsedMask[kind].has(ord)
}

// validate checks the structural invariants a freshly built Blueprint must
// satisfy, independent of any instance: content length is 16-byte aligned,
// every fixup offset lies within content, and the LITC marker (if any)
// really points at the final instruction's worth of bytes.
func (b *Blueprint) validate() {
	ReleaseAssert(len(b.Content)%(1<<FnAlignmentLog2) == 0,
		"blueprint %v/%v: content length %d is not a multiple of function alignment", b.Kind, b.Meta, len(b.Content))

	checkOffset := func(off, width int) {
		ReleaseAssert(off >= 0 && off+width <= len(b.Content),
			"blueprint %v/%v: fixup offset %d (width %d) outside content of length %d", b.Kind, b.Meta, off, width, len(b.Content))
	}
	for _, f := range b.Sym32Fixups {
		checkOffset(f.Offset, 4)
		ReleaseAssert(f.Ordinal <= MaxOrdinal, "blueprint %v/%v: sym32 ordinal %d exceeds MaxOrdinal", b.Kind, b.Meta, f.Ordinal)
	}
	for _, f := range b.Sym64Fixups {
		checkOffset(f.Offset, 8)
		ReleaseAssert(f.Ordinal <= MaxOrdinal, "blueprint %v/%v: sym64 ordinal %d exceeds MaxOrdinal", b.Kind, b.Meta, f.Ordinal)
	}
	for _, f := range b.Disp32Fixups {
		checkOffset(f.Offset, 4)
		ReleaseAssert(f.Ordinal <= MaxOrdinal, "blueprint %v/%v: disp32 ordinal %d exceeds MaxOrdinal", b.Kind, b.Meta, f.Ordinal)
	}
	for _, off := range b.Jmp32Offsets {
		checkOffset(off, 5)
	}
	for _, off := range b.JccOffsets {
		checkOffset(off, 6)
	}
	if b.LastInstructionTailCallOrd != NoLITC {
		ReleaseAssert(len(b.Content) >= 5, "blueprint %v/%v: too short to end in a 5-byte jmp rel32", b.Kind, b.Meta)
	}
}
