package fastspec

import "github.com/xyproto/fastspec/internal/engine"

// cuckooMaxKicks bounds how many displacements NewBoilerplateLibrary will
// attempt before concluding the current (table size, salt) pair can't place
// every blueprint without collision, and trying a different salt or a
// larger table.
const cuckooMaxKicks = 500

// librarySlot is one bucket of the two-hash cuckoo table. fingerprint holds
// the *alternate* slot index for whatever key currently occupies this slot
// — by construction that is always equal to the other of the key's two
// hashes, so Select can confirm membership (and cuckoo insertion can
// relocate an evicted entry) without re-deriving the key string.
type librarySlot struct {
	occupied    bool
	fingerprint int
	blueprint   *Blueprint
}

// BoilerplateLibrary is the read-only catalog of blueprints (§4.1
// "Boilerplate Library"): select(kind, meta) is expected O(1) via a
// precomputed two-hash cuckoo table, collision-free by construction. It is
// built once (typically from package-init-time blueprint constructors in
// boilerplates_*.go) and then shared read-only across composition threads
// (§5: "process-global, read-only after initialization, freely shared").
type BoilerplateLibrary struct {
	slots []librarySlot
	salt  byte
}

// NewBoilerplateLibrary builds the perfect-hash table for the given set of
// blueprints. Growing the table or changing the salt on a failed build is
// an offline, one-time cost paid at package init; it never affects Select.
func NewBoilerplateLibrary(blueprints []*Blueprint) *BoilerplateLibrary {
	for _, bp := range blueprints {
		bp.validate()
	}
	size := 8
	for size < 2*len(blueprints) {
		size *= 2
	}
	for {
		for salt := 0; salt < 256; salt++ {
			lib := &BoilerplateLibrary{slots: make([]librarySlot, size), salt: byte(salt)}
			if lib.build(blueprints) {
				return lib
			}
		}
		size *= 2
	}
}

func (l *BoilerplateLibrary) hashes(key string) (int, int) {
	size := len(l.slots)
	h1 := int(engine.HashStringKey(key) % uint64(size))
	h2 := int(engine.HashStringKeySalted(key, l.salt) % uint64(size))
	if h2 == h1 {
		h2 = (h1 + 1) % size
	}
	return h1, h2
}

// build attempts to place every blueprint without collision, returning
// false if cuckooMaxKicks is exceeded for some key.
func (l *BoilerplateLibrary) build(blueprints []*Blueprint) bool {
	for i := range l.slots {
		l.slots[i] = librarySlot{}
	}
	for _, bp := range blueprints {
		key := bp.Meta.Key(bp.Kind)
		curSlot, curAlt := l.hashes(key)
		curBP := bp
		placed := false
		for tries := 0; tries < cuckooMaxKicks; tries++ {
			if !l.slots[curSlot].occupied {
				l.slots[curSlot] = librarySlot{occupied: true, fingerprint: curAlt, blueprint: curBP}
				placed = true
				break
			}
			oldSlot := curSlot
			evicted := l.slots[curSlot]
			l.slots[curSlot] = librarySlot{occupied: true, fingerprint: curAlt, blueprint: curBP}
			curBP = evicted.blueprint
			curSlot = evicted.fingerprint
			curAlt = oldSlot
		}
		if !placed {
			return false
		}
	}
	return true
}

// Select returns the unique blueprint specialized for (kind, meta), or
// invokes the programming-error path if no such specialization was ever
// added to the library (§4.1: "selecting an unmaterialized tuple is a
// programming error, not a runtime condition").
func (l *BoilerplateLibrary) Select(kind TemplateKind, meta MetaTuple) *Blueprint {
	key := meta.Key(kind)
	h1, h2 := l.hashes(key)
	if s := l.slots[h1]; s.occupied && s.fingerprint == h2 && s.blueprint.Kind == kind && s.blueprint.Meta == meta {
		return s.blueprint
	}
	if s := l.slots[h2]; s.occupied && s.fingerprint == h1 && s.blueprint.Kind == kind && s.blueprint.Meta == meta {
		return s.blueprint
	}
	ReleaseAssert(false, "select(%v, %v): no such specialization", kind, meta)
	return nil
}
