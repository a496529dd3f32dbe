package fastspec

// numStackframeCategories is the number of exponentially-growing
// stack-frame size buckets (§3 "Stack Frame"), carried over from the
// original source's FIStackframeSizeCategoryHelper: a fixed category list
// lets the fragments that allocate the frame (the CDECL wrapper's alloca
// equivalent, see BuildEntryPoint in compose.go) use a compile-time-constant set of sizes
// instead of an arbitrary dynamic one.
const numStackframeCategories = 178

// stackframeGrowthNumerator/Denominator give the 1.1 growth factor.
const (
	stackframeGrowthNumerator   = 11
	stackframeGrowthDenominator = 10
	stackframeAlignment         = 16
)

var stackframeSizeTable = computeStackframeSizeTable()

func computeStackframeSizeTable() [numStackframeCategories]int {
	var table [numStackframeCategories]int
	size := int64(16)
	for i := 0; i < numStackframeCategories; i++ {
		table[i] = int(size)
		size = size * stackframeGrowthNumerator / stackframeGrowthDenominator
		size = (size + stackframeAlignment - 1) / stackframeAlignment * stackframeAlignment
	}
	return table
}

// SelectStackframeCategory returns the index of the smallest category whose
// size is >= neededSize (§3: "any concrete generated frame size is rounded
// up for type-safe sizing"). Panics if neededSize exceeds the largest
// category, mirroring the original's ReleaseAssert on frame size.
func SelectStackframeCategory(neededSize int) int {
	maxSize := stackframeSizeTable[numStackframeCategories-1]
	ReleaseAssert(neededSize <= maxSize, "stack frame of %d bytes exceeds the largest category (%d bytes)", neededSize, maxSize)
	lo, hi := 0, numStackframeCategories-1
	for lo != hi {
		mid := (lo + hi) / 2
		if stackframeSizeTable[mid] >= neededSize {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// StackframeCategorySize returns the quantized byte size for a category
// index.
func StackframeCategorySize(category int) int {
	return stackframeSizeTable[category]
}

// tempEntry is one pinned value on the register stack (§4.2 "opaque
// parameters"): produced by one fragment in a specific register and
// consumed by the next without a store/load pair, unless a call clobbers
// all pinned registers first and forces a spill.
type tempEntry struct {
	typ     PrimType
	spilled bool
	slot    int
}

// StackFrameManager tracks, during composition, the offsets handed out for
// local variables and the spill slots of temporaries whose home register
// will be clobbered by a call (§4.2). Locals and temps are both LIFO:
// push_local/pop_local and push_temp/pop_temp nest like a stack of scopes.
type StackFrameManager struct {
	bump      int // next free byte offset for locals/spills
	highWater int

	locals []int // stack of bump values from before each PushLocal, for pop_local symmetry
	temps  []tempEntry
}

// argsAreaSize is offsets 8..(8+8*nArgs): the return-value slot (0..7) plus
// one 8-byte slot per argument (§3 "Stack Frame (runtime)").
func argsAreaSize(nArgs int) int {
	return 8 + 8*nArgs
}

// NewStackFrameManager starts a frame with the return-value slot and
// nArgs argument slots already reserved.
func NewStackFrameManager(nArgs int) *StackFrameManager {
	base := argsAreaSize(nArgs)
	return &StackFrameManager{bump: base, highWater: base}
}

func alignUp(v, align int) int {
	return (v + align - 1) / align * align
}

// PushLocal bump-allocates an aligned slot for a local of type t and
// returns its frame offset.
func (s *StackFrameManager) PushLocal(t PrimType) int {
	sz := t.Size()
	prev := s.bump
	off := alignUp(s.bump, sz)
	s.bump = off + sz
	if s.bump > s.highWater {
		s.highWater = s.bump
	}
	s.locals = append(s.locals, prev)
	return off
}

// PopLocal restores the bump pointer to the state before the matching
// PushLocal(t) (§8 round-trip law: push_local(T); pop_local(T) is a no-op
// on the manager's externally visible state).
func (s *StackFrameManager) PopLocal(t PrimType) {
	ReleaseAssert(len(s.locals) > 0, "pop_local on empty local stack")
	prev := s.locals[len(s.locals)-1]
	s.locals = s.locals[:len(s.locals)-1]
	s.bump = prev
}

// PushTemp records that a value of type t now lives in a pinned register
// at the current composition depth.
func (s *StackFrameManager) PushTemp(t PrimType) {
	s.temps = append(s.temps, tempEntry{typ: t})
}

// PopTemp consumes the most recently pushed temp. If it is still pinned in
// a register (no intervening ForceSpillAll evicted it), ok is false and
// the caller should read the value straight out of its register; otherwise
// ok is true and offset is the spill slot assigned by ForceSpillAll.
func (s *StackFrameManager) PopTemp(t PrimType) (offset int, ok bool) {
	ReleaseAssert(len(s.temps) > 0, "pop_temp on empty temp stack")
	top := s.temps[len(s.temps)-1]
	s.temps = s.temps[:len(s.temps)-1]
	ReleaseAssert(top.typ == t, "pop_temp(%v) but top of temp stack is %v", t, top.typ)
	if !top.spilled {
		return 0, false
	}
	return top.slot, true
}

// ForceSpillAll materially commits every currently pinned temp to a freshly
// allocated frame slot. Used before any call that clobbers all pinned
// registers, since the internal calling convention has no callee-saved
// registers (§4.2, §4.6).
func (s *StackFrameManager) ForceSpillAll() {
	for idx := range s.temps {
		if s.temps[idx].spilled {
			continue
		}
		slot := s.PushLocal(s.temps[idx].typ)
		s.temps[idx].spilled = true
		s.temps[idx].slot = slot
	}
}

// FinalSize returns the quantized stack-frame size category covering the
// high-water mark reached during composition (§3, §4.2).
func (s *StackFrameManager) FinalSize() int {
	return SelectStackframeCategory(s.highWater)
}
