package fastspec

// fixupSlot holds one placeholder's populated value. For bp-fn
// placeholders, pre-layout, that's a pointer to the successor Instance
// (resolved to an absolute address only at materialization, once layout
// has assigned every instance a RelativeAddr); for host-fn and constant
// placeholders it's the literal value itself.
type fixupSlot struct {
	populated bool
	target    *Instance
	value     uint64
}

// Instance is a realization of a Blueprint within one composition: mutable
// while the AST front-end is populating its placeholders, immutable after
// materialization (§3 "Instance (mutable during composition, immutable
// after materialization)").
type Instance struct {
	Blueprint *Blueprint

	bpFn     []fixupSlot
	hostFn   []fixupSlot
	constant []fixupSlot

	// Layout fields, assigned by the Layout Engine (layout.go).
	RelativeAddr    int
	PaddingRequired int
	Log2Alignment   int

	// LitcNextOrd mirrors Blueprint.LastInstructionTailCallOrd: the bp-fn
	// ordinal whose populated target is this instance's LITC successor,
	// or NoLITC if the blueprint's last instruction isn't a tail call.
	LitcNextOrd int

	// IsContinuationOfAnother is set when some predecessor chose this
	// instance as its LITC successor. An instance is the LITC successor
	// of at most one predecessor (§3 Invariants).
	IsContinuationOfAnother bool

	// ShouldStripLITC is set during layout on an instance whose LITC
	// successor will be placed immediately after it, allowing this
	// instance's trailing jmp to be elided.
	ShouldStripLITC bool
}

// NewInstance realizes bp as a fresh, unpopulated Instance.
func NewInstance(bp *Blueprint) *Instance {
	return &Instance{
		Blueprint: bp,
		bpFn:      make([]fixupSlot, bp.HighestOrdinal[PlaceholderBpFn]),
		hostFn:    make([]fixupSlot, bp.HighestOrdinal[PlaceholderHostFn]),
		constant:  make([]fixupSlot, bp.HighestOrdinal[PlaceholderConstant]),

		RelativeAddr:  -1,
		Log2Alignment: FnAlignmentLog2,
		LitcNextOrd:   bp.LastInstructionTailCallOrd,
	}
}

func (i *Instance) slots(kind PlaceholderKind) []fixupSlot {
	switch kind {
	case PlaceholderBpFn:
		return i.bpFn
	case PlaceholderHostFn:
		return i.hostFn
	default:
		return i.constant
	}
}

func (i *Instance) populate(kind PlaceholderKind, ord int, target *Instance, value uint64) {
	slots := i.slots(kind)
	if ord >= len(slots) {
		// Not used by this blueprint: silently dropped, tolerating
		// dead-code elimination on the boilerplate side (§3).
		return
	}
	ReleaseAssert(!slots[ord].populated, "instance of %v: placeholder %v#%d populated twice", i.Blueprint.Kind, kind, ord)
	slots[ord] = fixupSlot{populated: true, target: target, value: value}
}

// PopulateBpFn populates a boilerplate-function placeholder with the
// instance it should call/jump to. Resolved to an absolute address only at
// materialization time, once layout has run.
func (i *Instance) PopulateBpFn(ord int, target *Instance) {
	ReleaseAssert(target != nil, "instance of %v: PopulateBpFn(%d) with nil target", i.Blueprint.Kind, ord)
	i.populate(PlaceholderBpFn, ord, target, 0)
}

// PopulateHostFn populates a host-function placeholder with an arbitrary
// 64-bit address.
func (i *Instance) PopulateHostFn(ord int, addr uint64) {
	i.populate(PlaceholderHostFn, ord, nil, addr)
}

// PopulateConstant populates a constant placeholder with a primitive or
// pointer value of at most 8 bytes. A zero 64-bit value is rejected when
// the blueprint actually reads this ordinal (§3: "a 64-bit constant of
// value 0 is forbidden").
func (i *Instance) PopulateConstant(ord int, value uint64) {
	if ord < len(i.constant) {
		Placeholder{Kind: PlaceholderConstant, Ordinal: ord}.ValidateConstant(value)
	}
	i.populate(PlaceholderConstant, ord, nil, value)
}

// LitcNext returns the instance selected as this instance's LITC successor,
// or nil if the blueprint's last instruction isn't a tail call, or if that
// placeholder hasn't been populated yet.
func (i *Instance) LitcNext() *Instance {
	if i.LitcNextOrd == NoLITC || i.LitcNextOrd >= len(i.bpFn) {
		return nil
	}
	slot := i.bpFn[i.LitcNextOrd]
	if !slot.populated {
		return nil
	}
	return slot.target
}

// assertFullyPopulated checks that every placeholder the blueprint marks
// used has been populated exactly once (§3 Invariants). Called by the
// Materializer immediately before copying bytes.
func (i *Instance) assertFullyPopulated() {
	check := func(kind PlaceholderKind, slots []fixupSlot) {
		for ord := 0; ord < len(slots); ord++ {
			if i.Blueprint.IsUsed(kind, ord) {
				ReleaseAssert(slots[ord].populated, "instance of %v: used placeholder %v#%d was never populated", i.Blueprint.Kind, kind, ord)
			}
		}
	}
	check(PlaceholderBpFn, i.bpFn)
	check(PlaceholderHostFn, i.hostFn)
	check(PlaceholderConstant, i.constant)
}
