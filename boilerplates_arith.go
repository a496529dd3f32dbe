package fastspec

// buildArithExpr constructs the pinned-register binary arithmetic
// fragment: rax = rax OP rcx for integer types, xmm0 = xmm0 OP xmm1 for
// floating types, result left pinned for whatever comes next in the chain
// (§4.1 ArithExpr, §4.2 opaque parameters — no spill/reload between two
// chained arithmetic fragments, exercised by §8's chained-int and
// chained-double boundary scenarios).
func buildArithExpr(t PrimType, op OpKind) *Blueprint {
	a := NewAssembler()
	isDouble := t.IsFloatingPoint()

	switch op {
	case OpAdd:
		if isDouble {
			a.AddSD(leftXmm, rightXmm)
		} else {
			a.AddRegToReg(leftInt, rightInt)
		}
	case OpSub:
		if isDouble {
			a.SubSD(leftXmm, rightXmm)
		} else {
			a.SubRegToReg(leftInt, rightInt)
		}
	case OpMul:
		if isDouble {
			a.MulSD(leftXmm, rightXmm)
		} else {
			a.IMulRegToReg(leftInt, rightInt)
		}
	case OpDiv:
		if isDouble {
			a.DivSD(leftXmm, rightXmm)
		} else {
			// Signed 64-bit division: dividend sign-extended from rax
			// into rdx:rax (CQO), quotient left in rax per the internal
			// convention's accumulator register. rdx is clobbered as a
			// side effect (the remainder) — fine here since nothing
			// downstream of an int OpDiv in this library's chains reads
			// rdx, but not a register a throws-declared chain could
			// safely route a call through.
			a.emitCqo()
			a.emitIDiv(rightInt)
		}
	default:
		ReleaseAssert(false, "buildArithExpr: %v is not an arithmetic op", op)
	}

	a.JmpBpFn(continuationOrd)
	a.PadToAlignment()

	bp := &Blueprint{
		Kind:                       KindArithExpr,
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

// emitCqo: sign-extend rax into rdx:rax (REX.W 99).
func (a *Assembler) emitCqo() { a.emit(rex(true, false, false, false), 0x99) }

// emitIDiv: idiv r/m64 (REX.W F7 /7) — signed divide rdx:rax by reg,
// quotient in rax, remainder in rdx.
func (a *Assembler) emitIDiv(reg string) {
	r := regEncoding(reg)
	a.emit(rex(true, false, false, r >= 8), 0xF7, modrm(3, 7, r))
}
