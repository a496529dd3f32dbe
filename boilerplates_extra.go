package fastspec

// buildLoopBody constructs the decrement-and-branch fragment driving a
// counted loop: rcx (the loop counter, pinned) is decremented, then
// control branches back to the loop head while rcx>0 and falls through to
// the exit otherwise (§4.1 LoopBody). Used by the sieve-of-Eratosthenes
// boundary scenario's outer counted loop.
func buildLoopBody() *Blueprint {
	a := NewAssembler()
	a.SubRegImm32(rightInt, 1)
	const continueOrd, exitOrd = 0, 1
	a.JccBpFn(CCGreater, continueOrd)
	a.JmpBpFn(exitOrd)
	a.PadToAlignment()

	bp := &Blueprint{
		Kind:         KindLoopBody,
		Meta:         MetaTuple{Type: TypeInt32, Op: OpSub, Shape: ShapeBothPinned, NoExcept: true},
		Content:      a.Bytes(),
		Sym32Fixups:  a.Sym32Fixups(),
		JccOffsets:   a.JccOffsets(),
		Jmp32Offsets: a.Jmp32Offsets(),

		LastInstructionTailCallOrd: NoLITC,
	}
	bp.HighestOrdinal[PlaceholderBpFn] = 2
	bp.UsedMask[PlaceholderBpFn] = bp.UsedMask[PlaceholderBpFn].set(continueOrd).set(exitOrd)
	bp.validate()
	return bp
}

// buildPointerArith constructs `rax = rbx + rcx`, the address-of-element
// fragment a sieve array-write composes around: rbx is pinned to the
// array's base pointer for the loop's whole lifetime, rcx the pinned
// index (§4.1 PointerArith).
func buildPointerArith() *Blueprint {
	a := NewAssembler()
	a.LeaBaseIndex(leftInt, "rbx", rightInt)
	a.JmpBpFn(continuationOrd)
	a.PadToAlignment()

	bp := &Blueprint{
		Kind:                       KindPointerArith,
		Meta:                       MetaTuple{Type: TypePointer, Op: OpAdd, Shape: ShapeBothPinned, NoExcept: true},
		Content:                    a.Bytes(),
		Jmp32Offsets:               a.Jmp32Offsets(),
		LastInstructionTailCallOrd: continuationOrd,
	}
	bp.HighestOrdinal[PlaceholderBpFn] = continuationOrd + 1
	bp.UsedMask[PlaceholderBpFn] = bp.UsedMask[PlaceholderBpFn].set(continuationOrd)
	bp.validate()
	return bp
}

// buildCastInt64ToDouble / buildCastDoubleToInt64 convert the pinned
// accumulator in place (§4.1 Cast) — CVTSI2SD/CVTTSD2SI, the same
// instructions a non-JIT Go->assembly boundary would use.
func buildCastInt64ToDouble() *Blueprint {
	a := NewAssembler()
	a.cvtsi2sd(leftXmm, leftInt)
	a.JmpBpFn(continuationOrd)
	a.PadToAlignment()
	return finishCastBlueprint(a, TypeInt64, TypeDouble)
}

func buildCastDoubleToInt64() *Blueprint {
	a := NewAssembler()
	a.cvttsd2si(leftInt, leftXmm)
	a.JmpBpFn(continuationOrd)
	a.PadToAlignment()
	return finishCastBlueprint(a, TypeDouble, TypeInt64)
}

func finishCastBlueprint(a *Assembler, from, to PrimType) *Blueprint {
	bp := &Blueprint{
		Kind:                       KindCast,
		Meta:                       MetaTuple{Type: from, Op: OpKind(to), Shape: ShapeBothPinned, NoExcept: true},
		Content:                    a.Bytes(),
		Jmp32Offsets:               a.Jmp32Offsets(),
		LastInstructionTailCallOrd: continuationOrd,
	}
	bp.HighestOrdinal[PlaceholderBpFn] = continuationOrd + 1
	bp.UsedMask[PlaceholderBpFn] = bp.UsedMask[PlaceholderBpFn].set(continuationOrd)
	bp.validate()
	return bp
}

// buildCompareExpr constructs the boolean-producing sibling of CondBranch:
// compares the pinned operands and materializes a 0/1 value in rax rather
// than branching, for the rarer AST shape where a comparison's result is
// itself consumed as a value (e.g. assigned to a variable) instead of
// driving control flow directly.
func buildCompareExpr(t PrimType, op OpKind) *Blueprint {
	a := NewAssembler()
	if t.IsFloatingPoint() {
		a.UcomiSD(leftXmm, rightXmm)
	} else {
		a.CmpRegToReg(leftInt, rightInt)
	}
	a.setccToReg(conditionCode(op, t.IsFloatingPoint()), leftInt)
	a.movzxByteToReg(leftInt, leftInt)
	a.JmpBpFn(continuationOrd)
	a.PadToAlignment()

	bp := &Blueprint{
		Kind:                       KindCompareExpr,
		Meta:                       MetaTuple{Type: t, Op: op, Shape: ShapeBothPinned, NoExcept: true},
		Content:                    a.Bytes(),
		Jmp32Offsets:               a.Jmp32Offsets(),
		LastInstructionTailCallOrd: continuationOrd,
	}
	bp.HighestOrdinal[PlaceholderBpFn] = continuationOrd + 1
	bp.UsedMask[PlaceholderBpFn] = bp.UsedMask[PlaceholderBpFn].set(continuationOrd)
	bp.validate()
	return bp
}

// setccToReg: setcc r8 (0F 90+cc /r), condition code cc into the low byte of
// reg, upper bytes left untouched (cleared by the movzx that follows).
func (a *Assembler) setccToReg(cc uint8, reg string) {
	r := regEncoding(reg)
	a.emit(rex(false, false, false, r >= 8), 0x0F, 0x90+cc, modrm(3, 0, r))
}

// movzxByteToReg: movzx r64, r8 (REX.W 0F B6 /r) — zero-extends the byte
// setccToReg just wrote into a full 64-bit 0/1 value.
func (a *Assembler) movzxByteToReg(dst, src string) {
	d, s := regEncoding(dst), regEncoding(src)
	a.emit(rex(true, d >= 8, false, s >= 8), 0x0F, 0xB6, modrm(3, d, s))
}

// cvtsi2sd: cvtsi2sd xmm, r64 (F2 REX.W 0F 2A /r).
func (a *Assembler) cvtsi2sd(xmm uint8, gpr string) {
	g := regEncoding(gpr)
	a.emit(0xF2, rex(true, xmm >= 8, false, g >= 8), 0x0F, 0x2A, modrm(3, xmm, g))
}

// cvttsd2si: cvttsd2si r64, xmm (F2 REX.W 0F 2C /r).
func (a *Assembler) cvttsd2si(gpr string, xmm uint8) {
	g := regEncoding(gpr)
	a.emit(0xF2, rex(true, g >= 8, false, xmm >= 8), 0x0F, 0x2C, modrm(3, g, xmm))
}
