package fastspec

// buildRecursiveCall constructs the one-argument, self-recursive,
// binary-combine call fragment exercised by §8's Fibonacci boundary
// scenario: save the incoming value across two nested calls to the same
// entry point, combine their results with combineOp, and leave the sum
// pinned in rax for the Return blueprint that follows it in the same
// instance graph.
//
// Ordinals: constant #0 is the nested stack-frame's byte size (its
// category, chosen by the composer via SelectStackframeCategory), disp32
// #1 is this frame's local slot holding the saved argument, disp32 #2 is
// this frame's local slot holding the first recursive call's result, and
// bp-fn #3 is the entry instance of the function to recurse into (for a
// self-recursive function, the same instance its own body starts at),
// wired by the composer after both instances exist (§4.3: graph edges are populated after node
// creation, so mutual recursion is never a construction-order problem).
func buildRecursiveCall(t PrimType, combineOp OpKind) *Blueprint {
	ReleaseAssert(t == TypeInt64, "buildRecursiveCall: only int64 recursion is wired (§8 Fibonacci scenario)")

	const (
		frameSizeOrd   = 0
		savedArgOrd    = 1
		firstResultOrd = 2
		callTargetOrd  = 3
	)

	a := NewAssembler()

	a.MovRegToMemAt(internalFrameBaseReg, savedArgOrd, leftInt) // stash n
	a.SubRegImm32(leftInt, 1)                                   // rax = n-1

	a.Push(internalFrameBaseReg)
	a.SubRegImmPlaceholder("rsp", frameSizeOrd)
	a.MovRegToReg(internalFrameBaseReg, "rsp")
	a.MovRegToMem(internalFrameBaseReg, 8, leftInt) // arg slot := n-1
	a.CallBpFn(callTargetOrd)
	a.MovMemToReg(leftInt, internalFrameBaseReg, 0) // fib(n-1)
	a.AddRegImmPlaceholder("rsp", frameSizeOrd)
	a.Pop(internalFrameBaseReg)

	a.MovRegToMemAt(internalFrameBaseReg, firstResultOrd, leftInt) // stash fib(n-1)
	a.MovMemToRegFrom(leftInt, internalFrameBaseReg, savedArgOrd)  // reload n
	a.SubRegImm32(leftInt, 2)                                      // rax = n-2

	a.Push(internalFrameBaseReg)
	a.SubRegImmPlaceholder("rsp", frameSizeOrd)
	a.MovRegToReg(internalFrameBaseReg, "rsp")
	a.MovRegToMem(internalFrameBaseReg, 8, leftInt)
	a.CallBpFn(callTargetOrd)
	a.MovMemToReg(rightInt, internalFrameBaseReg, 0) // fib(n-2) into rcx
	a.AddRegImmPlaceholder("rsp", frameSizeOrd)
	a.Pop(internalFrameBaseReg)

	a.MovMemToRegFrom(leftInt, internalFrameBaseReg, firstResultOrd) // rax = fib(n-1)
	switch combineOp {
	case OpAdd:
		a.AddRegToReg(leftInt, rightInt)
	case OpSub:
		a.SubRegToReg(leftInt, rightInt)
	default:
		ReleaseAssert(false, "buildRecursiveCall: %v is not a supported combine op", combineOp)
	}

	// Leave the combined result pinned in rax and tail-chain to whatever
	// comes next (ordinarily a Return), the same handoff convention
	// ArithExpr uses (§4.2 opaque parameters).
	a.JmpBpFn(continuationOrd)
	a.PadToAlignment()

	bp := &Blueprint{
		Kind:         KindCallExpr,
		Meta:         MetaTuple{Type: t, Op: combineOp, Shape: ShapeBothSpilled, NoExcept: true, Spill: true},
		Content:      a.Bytes(),
		Sym32Fixups:  a.Sym32Fixups(),
		Disp32Fixups: a.Disp32Fixups(),
		Jmp32Offsets: a.Jmp32Offsets(),

		LastInstructionTailCallOrd: continuationOrd,
	}
	bp.HighestOrdinal[PlaceholderBpFn] = callTargetOrd + 1
	bp.UsedMask[PlaceholderBpFn] = bp.UsedMask[PlaceholderBpFn].
		set(continuationOrd).set(callTargetOrd)
	bp.HighestOrdinal[PlaceholderConstant] = firstResultOrd + 1
	bp.UsedMask[PlaceholderConstant] = bp.UsedMask[PlaceholderConstant].
		set(frameSizeOrd).set(savedArgOrd).set(firstResultOrd)
	bp.validate()
	return bp
}
