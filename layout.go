package fastspec

// jmpRel32Len is the size of the 5-byte direct jmp rel32 instruction that
// tail-call stripping removes (§4.5 Open Question: the rewrite assumes the
// last instruction is exactly this form and is skipped otherwise).
const jmpRel32Len = 5

// maxCodeSectionSize is the small-code-model ceiling (§3: "Code section
// total size ≤ 2 GB").
const maxCodeSectionSize = 2 * 1024 * 1024 * 1024

// LayoutResult is the Code-Layout Engine's output (§4.4): every instance
// placed exactly once, in the order chosen to maximize stripped LITC
// tail-jumps, plus the total materialized code-section length.
type LayoutResult struct {
	Order             []*Instance
	CodeSectionLength int
}

// Layout assigns every instance a relative_addr, greedily chaining LITC
// successors to eliminate tail jumps where possible (§4.4).
//
// Two passes: Pass 1 walks instances in registration order, starting a
// fresh chain at every instance that isn't already placed and isn't the
// LITC continuation of another (a "chain head"); Pass 2 places whatever is
// left, which can only be instances that participate in an LITC cycle.
func Layout(instances []*Instance) *LayoutResult {
	markLITCPredecessors(instances)

	offset := 0
	order := make([]*Instance, 0, len(instances))

	placeChain := func(head *Instance) {
		cur := head
		for cur != nil && cur.RelativeAddr == -1 {
			align := 1 << uint(cur.Log2Alignment)
			aligned := alignUp(offset, align)
			cur.PaddingRequired = aligned - offset
			cur.RelativeAddr = aligned
			order = append(order, cur)

			codeLen := cur.Blueprint.CodeSize()
			next := cur.LitcNext()
			if next != nil && next.RelativeAddr == -1 {
				cur.ShouldStripLITC = true
				codeLen -= jmpRel32Len
			}
			offset = cur.RelativeAddr + codeLen
			cur = next
		}
	}

	// Pass 1: chain heads, in registration order.
	for _, inst := range instances {
		if inst.RelativeAddr != -1 || inst.IsContinuationOfAnother {
			continue
		}
		placeChain(inst)
	}
	// Pass 2: whatever remains participates in an LITC cycle.
	for _, inst := range instances {
		if inst.RelativeAddr == -1 {
			placeChain(inst)
		}
	}

	ReleaseAssert(offset <= maxCodeSectionSize, "code section length %d exceeds the 2GB small-code-model limit", offset)
	ReleaseAssert(len(order) == len(instances), "layout placed %d of %d instances", len(order), len(instances))

	return &LayoutResult{Order: order, CodeSectionLength: offset}
}

// markLITCPredecessors sets IsContinuationOfAnother on every instance that
// is some other instance's LITC successor, and asserts the §3 invariant
// that no instance is the LITC successor of more than one predecessor.
func markLITCPredecessors(instances []*Instance) {
	for _, inst := range instances {
		if next := inst.LitcNext(); next != nil {
			ReleaseAssert(!next.IsContinuationOfAnother,
				"instance of %v is the LITC successor of more than one predecessor", next.Blueprint.Kind)
			next.IsContinuationOfAnother = true
			// A pure LITC continuation is only ever reached by falling
			// through the stripped jmp that used to precede it, never by
			// an indirect call/branch of its own — so unlike a chain
			// head it doesn't need FnAlignmentLog2 alignment, and giving
			// it one would round straight back past the bytes the strip
			// just freed (§4.4/§4.5).
			next.Log2Alignment = 0
		}
	}
}
