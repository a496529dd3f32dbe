package fastspec

// AssignToVar's Op field has no operator of its own, so its six
// blueprints repurpose it as a destination/source selector — documented
// here rather than in metavar.go since the repurposing is specific to
// this one TemplateKind (§4.1 notes meta-tuple field meaning is
// kind-dependent).
const (
	AssignOpLoadImmToLeft    = OpAdd    // load a constant into rax/xmm0
	AssignOpLoadImmToRight   = OpSub    // load a constant into rcx/xmm1
	AssignOpStoreLeftToFrame = OpMul    // store rax/xmm0 to frame[ordinal0]
	AssignOpStoreRightToFrame = OpDiv   // store rcx/xmm1 to frame[ordinal0]
	AssignOpLoadFrameToLeft  = OpCmpEQ  // load frame[ordinal0] into rax/xmm0
	AssignOpLoadFrameToRight = OpCmpNE  // load frame[ordinal0] into rcx/xmm1
)

// leftInt/rightInt and leftXmm/rightXmm fix which physical register holds
// each pinned opaque operand throughout this engine's boilerplates; every
// blueprint that reads or writes "the left/right operand" agrees on these
// (§4.2).
const (
	leftInt  = "rax"
	rightInt = "rcx"
)

const (
	leftXmm  uint8 = 0
	rightXmm uint8 = 1
)

// buildAssignToVar constructs one of the six AssignToVar specializations.
// For the two load variants, quick==true means the value is the AST
// constant zero and must never touch a constant placeholder (§3: a
// zero-valued 64-bit constant placeholder is forbidden); it's instead
// synthesized in-place with XOR (int) or an XOR'd GPR bitcast into an XMM
// register (double).
func buildAssignToVar(t PrimType, op OpKind, quick bool) *Blueprint {
	a := NewAssembler()
	meta := MetaTuple{Type: t, Op: op, Shape: ShapeBothPinned, IsQuick: quick, NoExcept: true}

	isDouble := t.IsFloatingPoint()

	switch op {
	case AssignOpLoadImmToLeft, AssignOpLoadImmToRight:
		gpr := leftInt
		xmm := leftXmm
		if op == AssignOpLoadImmToRight {
			gpr, xmm = rightInt, rightXmm
		}
		if quick {
			a.XorRegToReg(gpr, gpr)
			if isDouble {
				a.MovQGPRToXmm(xmm, gpr)
			}
		} else if isDouble {
			a.LoadConstant64(gpr, 0)
			a.MovQGPRToXmm(xmm, gpr)
		} else {
			a.LoadConstant64(gpr, 0)
		}
	case AssignOpStoreLeftToFrame, AssignOpStoreRightToFrame:
		gpr, xmm := leftInt, leftXmm
		if op == AssignOpStoreRightToFrame {
			gpr, xmm = rightInt, rightXmm
		}
		meta.Spill = true
		if isDouble {
			a.MovSDRegToMemAt(internalFrameBaseReg, 0, xmm)
		} else {
			a.MovRegToMemAt(internalFrameBaseReg, 0, gpr)
		}
	case AssignOpLoadFrameToLeft, AssignOpLoadFrameToRight:
		gpr, xmm := leftInt, leftXmm
		if op == AssignOpLoadFrameToRight {
			gpr, xmm = rightInt, rightXmm
		}
		if isDouble {
			a.MovSDMemToRegFrom(xmm, internalFrameBaseReg, 0)
		} else {
			a.MovMemToRegFrom(gpr, internalFrameBaseReg, 0)
		}
	default:
		ReleaseAssert(false, "buildAssignToVar: op %v is not one of the AssignToVar markers", op)
	}

	a.JmpBpFn(continuationOrd)
	a.PadToAlignment()

	bp := &Blueprint{
		Kind:                       KindAssignToVar,
		Meta:                       meta,
		Content:                    a.Bytes(),
		Sym64Fixups:                a.Sym64Fixups(),
		Disp32Fixups:               a.Disp32Fixups(),
		Jmp32Offsets:               a.Jmp32Offsets(),
		LastInstructionTailCallOrd: continuationOrd,
	}
	bp.HighestOrdinal[PlaceholderBpFn] = continuationOrd + 1
	bp.UsedMask[PlaceholderBpFn] = bp.UsedMask[PlaceholderBpFn].set(continuationOrd)
	if !quick && (op == AssignOpLoadImmToLeft || op == AssignOpLoadImmToRight) {
		bp.HighestOrdinal[PlaceholderConstant] = 1
		bp.UsedMask[PlaceholderConstant] = bp.UsedMask[PlaceholderConstant].set(0)
	}
	if op == AssignOpStoreLeftToFrame || op == AssignOpStoreRightToFrame ||
		op == AssignOpLoadFrameToLeft || op == AssignOpLoadFrameToRight {
		bp.HighestOrdinal[PlaceholderConstant] = 1
		bp.UsedMask[PlaceholderConstant] = bp.UsedMask[PlaceholderConstant].set(0)
	}
	bp.validate()
	return bp
}

// buildReturn constructs the terminal blueprint that stores the pinned
// accumulator into this frame's fixed return-value slot (offset 0, never
// a placeholder — it's an invariant of the frame layout, not an
// AST-supplied fact) and returns to the caller.
func buildReturn(t PrimType) *Blueprint {
	a := NewAssembler()
	if t.IsFloatingPoint() {
		a.MovSDRegToMem(internalFrameBaseReg, 0, leftXmm)
	} else {
		a.MovRegToMem(internalFrameBaseReg, 0, leftInt)
	}
	a.Ret()
	a.PadToAlignment()

	bp := &Blueprint{
		Kind:                       KindReturn,
		Meta:                       MetaTuple{Type: t, Shape: ShapeBothPinned, NoExcept: true, Spill: true},
		Content:                    a.Bytes(),
		LastInstructionTailCallOrd: NoLITC,
	}
	bp.validate()
	return bp
}

// buildCondBranch constructs the generic two-way "compare pinned operands,
// branch" fragment shared by every control-flow construct in this engine
// (§4.1 CompareExpr folded directly into CondBranch, since this engine
// never materializes a bare boolean value on its own — every comparison
// immediately feeds a branch).
func buildCondBranch(t PrimType, op OpKind) *Blueprint {
	a := NewAssembler()
	if t.IsFloatingPoint() {
		a.UcomiSD(leftXmm, rightXmm)
	} else {
		a.CmpRegToReg(leftInt, rightInt)
	}
	const takenOrd, notTakenOrd = 0, 1
	a.JccBpFn(conditionCode(op, t.IsFloatingPoint()), takenOrd)
	a.JmpBpFn(notTakenOrd)
	a.PadToAlignment()

	bp := &Blueprint{
		Kind:                       KindCondBranch,
		Meta:                       MetaTuple{Type: t, Op: op, Shape: ShapeBothPinned, NoExcept: true},
		Content:                    a.Bytes(),
		Sym32Fixups:                a.Sym32Fixups(),
		JccOffsets:                 a.JccOffsets(),
		Jmp32Offsets:               a.Jmp32Offsets(),
		LastInstructionTailCallOrd: NoLITC,
	}
	bp.HighestOrdinal[PlaceholderBpFn] = 2
	bp.UsedMask[PlaceholderBpFn] = bp.UsedMask[PlaceholderBpFn].set(takenOrd).set(notTakenOrd)
	bp.validate()
	return bp
}

// conditionCode maps a comparison OpKind to the Jcc condition code branching
// to the "taken" target when the comparison holds. CMP sets SF/OF so signed
// codes apply; UCOMISD only ever sets CF/ZF/PF, so a floating comparison
// must use the unsigned codes instead (§4.1 CondBranch/CompareExpr).
func conditionCode(op OpKind, isFloat bool) uint8 {
	if isFloat {
		switch op {
		case OpCmpEQ:
			return CCEqual
		case OpCmpNE:
			return CCNotEqual
		case OpCmpLT:
			return CCBelow
		case OpCmpLE:
			return CCBelowEqual
		case OpCmpGT:
			return CCAbove
		case OpCmpGE:
			return CCAboveEqual
		default:
			ReleaseAssert(false, "conditionCode: %v is not a comparison op", op)
			return 0
		}
	}
	switch op {
	case OpCmpEQ:
		return CCEqual
	case OpCmpNE:
		return CCNotEqual
	case OpCmpLT:
		return CCLess
	case OpCmpLE:
		return CCLessEqual
	case OpCmpGT:
		return CCGreater
	case OpCmpGE:
		return CCGreaterEqual
	default:
		ReleaseAssert(false, "conditionCode: %v is not a comparison op", op)
		return 0
	}
}
