package fastspec

// ReturnOpUnwind is KindReturn's repurposing of the otherwise-unused Op
// field, following AssignToVar's precedent (boilerplates_ctrl.go): the two
// noexcept=false Return specializations share every other meta-variable, so
// Op alone must pick between "ordinary value return" (the zero value,
// OpAdd) and "exception-tail return" below.
const ReturnOpUnwind = OpMul

// throwingCalleeOrd is the bp-fn ordinal buildThrowingCallExpr's single
// CALL targets.
const throwingCalleeOrd = 2

// buildThrowingReturn is buildReturn's noexcept=false sibling: a
// throws-declared function's normal exit stores the accumulator to the
// return-value slot same as buildReturn, but also clears rdx to signal "no
// exception" across the call boundary (§4.7, §4.8 step 4). Nothing between
// this Ret and a CDECL wrapper's own Ret touches rdx, so the flag rides out
// to the host call site the same way the accumulator itself does.
func buildThrowingReturn(t PrimType) *Blueprint {
	a := NewAssembler()
	if t.IsFloatingPoint() {
		a.MovSDRegToMem(internalFrameBaseReg, 0, leftXmm)
	} else {
		a.MovRegToMem(internalFrameBaseReg, 0, leftInt)
	}
	a.XorRegToReg("rdx", "rdx")
	a.Ret()
	a.PadToAlignment()

	bp := &Blueprint{
		Kind:                       KindReturn,
		Meta:                       MetaTuple{Type: t, Shape: ShapeBothPinned, NoExcept: false, Spill: true},
		Content:                    a.Bytes(),
		LastInstructionTailCallOrd: NoLITC,
	}
	bp.validate()
	return bp
}

// buildUnwindReturn is the exception-tail counterpart of buildThrowingReturn
// (§4.7 "a throw from host-called code ... reaches the handler by ordinary
// tail call"): it leaves the return-value slot untouched and sets rdx to 1
// instead, so every caller on the way back out can tell a throw happened.
// Whatever is still pinned in the accumulator when control reaches here is
// the exception payload — the thrower loads it before branching to this
// tail, the same convention buildReturn uses for an ordinary result — and
// the host wrapper is the first place that value is actually read and
// turned into a recorded exception (CallableWrapper.settleThrow).
func buildUnwindReturn(t PrimType) *Blueprint {
	a := NewAssembler()
	a.MovImm32ToReg("rdx", 1)
	a.Ret()
	a.PadToAlignment()

	bp := &Blueprint{
		Kind:                       KindReturn,
		Meta:                       MetaTuple{Type: t, Op: ReturnOpUnwind, Shape: ShapeBothPinned, NoExcept: false, Spill: true},
		Content:                    a.Bytes(),
		LastInstructionTailCallOrd: NoLITC,
	}
	bp.validate()
	return bp
}

// buildThrowingCallExpr constructs a real x86 CALL into another composed
// instance (bp-fn #throwingCalleeOrd) and, on return, inspects rdx: nonzero
// sends control to the exception tail (bp-fn #exceptionTailOrd), zero falls
// through to the ordinary continuation (bp-fn #continuationOrd). This is
// the one CallExpr specialization with NoExcept: false, and so the only
// place exceptionTailOrd is ever actually read (exception.go).
//
// Like buildCondBranch, this blueprint has two live successor edges and so
// never participates in LITC tail-chaining (LastInstructionTailCallOrd:
// NoLITC) — there is no single "next" instruction to elide a trailing jmp
// into.
func buildThrowingCallExpr(t PrimType) *Blueprint {
	a := NewAssembler()
	a.CallBpFn(throwingCalleeOrd)
	a.CmpRegImm32("rdx", 0)
	a.JccBpFn(CCNotEqual, exceptionTailOrd)
	a.JmpBpFn(continuationOrd)
	a.PadToAlignment()

	bp := &Blueprint{
		Kind:                       KindCallExpr,
		Meta:                       MetaTuple{Type: t, Shape: ShapeBothSpilled, NoExcept: false, Spill: true},
		Content:                    a.Bytes(),
		Sym32Fixups:                a.Sym32Fixups(),
		Jmp32Offsets:               a.Jmp32Offsets(),
		JccOffsets:                 a.JccOffsets(),
		LastInstructionTailCallOrd: NoLITC,
	}
	bp.HighestOrdinal[PlaceholderBpFn] = throwingCalleeOrd + 1
	bp.UsedMask[PlaceholderBpFn] = bp.UsedMask[PlaceholderBpFn].
		set(continuationOrd).set(exceptionTailOrd).set(throwingCalleeOrd)
	bp.validate()
	return bp
}
