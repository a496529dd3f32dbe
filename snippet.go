package fastspec

// Snippet is a pair (Entry, Tail) of instances used to glue sequential
// computations (§4.3): Entry is where control enters the snippet, Tail is
// the instance whose designated continuation placeholder (ordinal 0, the
// bp-fn placeholder every "outlined" blueprint reserves for its successor)
// is still open. A Tail of nil means the snippet cannot be continued
// because its last instruction is an unconditional return.
type Snippet struct {
	Entry *Instance
	Tail  *Instance
}

// continuationOrd is the bp-fn ordinal every continuable blueprint reserves
// for "whatever comes next" (§4.3: "populates placeholder 0 of tail").
const continuationOrd = 0

// Append populates the continuation placeholder of s.Tail with next.Entry,
// yielding a new Snippet that runs s then next. Panics if s cannot be
// continued.
func (s Snippet) Append(next Snippet) Snippet {
	ReleaseAssert(s.Tail != nil, "Append: snippet's tail is nil (its last instruction is an unconditional return)")
	s.Tail.PopulateBpFn(continuationOrd, next.Entry)
	return Snippet{Entry: s.Entry, Tail: next.Tail}
}

// Terminal wraps a single instance whose last instruction is an
// unconditional return, so it has no tail to continue.
func Terminal(entry *Instance) Snippet {
	return Snippet{Entry: entry, Tail: nil}
}

// Single wraps one continuable instance as a one-element snippet.
func Single(instance *Instance) Snippet {
	return Snippet{Entry: instance, Tail: instance}
}
