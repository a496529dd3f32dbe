package fastspec

import "testing"

func dummyBlueprint(kind TemplateKind, withLITC bool) *Blueprint {
	a := NewAssembler()
	a.Nop()
	a.Nop()
	a.Nop()
	litc := NoLITC
	if withLITC {
		a.JmpBpFn(continuationOrd)
		litc = continuationOrd
	}
	a.PadToAlignment()
	bp := &Blueprint{
		Kind:                       kind,
		Content:                    a.Bytes(),
		Sym32Fixups:                a.Sym32Fixups(),
		Jmp32Offsets:               a.Jmp32Offsets(),
		LastInstructionTailCallOrd: litc,
	}
	if withLITC {
		bp.HighestOrdinal[PlaceholderBpFn] = continuationOrd + 1
		bp.UsedMask[PlaceholderBpFn] = bp.UsedMask[PlaceholderBpFn].set(continuationOrd)
	}
	bp.validate()
	return bp
}

func TestLayoutStripsLITCChain(t *testing.T) {
	bp := dummyBlueprint(KindArithExpr, true)
	a := NewInstance(bp)
	b := NewInstance(bp)
	c := NewInstance(dummyBlueprint(KindArithExpr, false))

	a.PopulateBpFn(continuationOrd, b)
	b.PopulateBpFn(continuationOrd, c)

	result := Layout([]*Instance{a, b, c})

	if len(result.Order) != 3 {
		t.Fatalf("expected 3 instances placed, got %d", len(result.Order))
	}
	if !a.ShouldStripLITC {
		t.Fatalf("a->b should have had its trailing jmp stripped")
	}
	if !b.ShouldStripLITC {
		t.Fatalf("b->c should have had its trailing jmp stripped")
	}
	if b.RelativeAddr != a.RelativeAddr+liveLength(a) {
		t.Fatalf("b (addr %d) isn't placed immediately after a's live bytes (addr %d + %d)", b.RelativeAddr, a.RelativeAddr, liveLength(a))
	}
	if c.RelativeAddr != b.RelativeAddr+liveLength(b) {
		t.Fatalf("c (addr %d) isn't placed immediately after b's live bytes (addr %d + %d)", c.RelativeAddr, b.RelativeAddr, liveLength(b))
	}
}

func TestLayoutHandlesLITCCycle(t *testing.T) {
	bp := dummyBlueprint(KindArithExpr, true)
	a := NewInstance(bp)
	b := NewInstance(bp)

	a.PopulateBpFn(continuationOrd, b)
	b.PopulateBpFn(continuationOrd, a) // cycle: a -> b -> a

	result := Layout([]*Instance{a, b})

	if len(result.Order) != 2 {
		t.Fatalf("expected 2 instances placed despite the cycle, got %d", len(result.Order))
	}
	// Exactly one edge of the cycle must remain an unstripped jmp, since
	// Pass 2 has to start somewhere without a live predecessor already
	// occupying the bytes before it.
	if a.ShouldStripLITC == b.ShouldStripLITC {
		t.Fatalf("expected exactly one of the cycle's two edges to strip, got a=%v b=%v", a.ShouldStripLITC, b.ShouldStripLITC)
	}
}

func TestLayoutRejectsSharedLITCSuccessor(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic: two predecessors claiming the same LITC successor")
		}
	}()
	bp := dummyBlueprint(KindArithExpr, true)
	a := NewInstance(bp)
	b := NewInstance(bp)
	shared := NewInstance(dummyBlueprint(KindArithExpr, false))

	a.PopulateBpFn(continuationOrd, shared)
	b.PopulateBpFn(continuationOrd, shared)

	Layout([]*Instance{a, b, shared})
}
