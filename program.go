package fastspec

import "unsafe"

// GeneratedProgram is a materialized code section: one executable mapping
// plus the absolute addresses registered against it under entry-point
// names the composer chose (§4.7, §6). Grounded on the teacher's
// CodePage/HotReloadManager ownership model (hotreload_unix.go), minus
// hot-swapping: generated code is immutable for the program's lifetime
// (§7 Non-goals — no multithreaded execution of generated code means
// nothing else can be running it anyway when a new one replaces it).
type GeneratedProgram struct {
	page        *codePage
	entryPoints map[string]uintptr

	// execCtx is the ExecContext of the Composer that built this program,
	// set by Composer.Materialize. A CallableWrapper bound to a
	// throws-declared entry point needs it to recover a rethrown
	// exception from the thread-local Outstanding slot (§4.7, §4.8).
	execCtx *ExecContext
}

// baseAddr is the mapping's start address. Recomputed from the live slice
// header rather than cached, since Go's GC could in principle move a
// stale copy out of sync with the backing mmap — the mmap'd memory itself
// never moves, but page.mem must stay the thing we read from.
func (g *GeneratedProgram) baseAddr() uintptr {
	ReleaseAssert(len(g.page.mem) > 0, "GeneratedProgram: code section is empty")
	return uintptr(unsafe.Pointer(&g.page.mem[0]))
}

// AbsoluteAddr converts a code-section-relative offset (an Instance's
// RelativeAddr after Layout) into the address it now lives at.
func (g *GeneratedProgram) AbsoluteAddr(relativeAddr int) uintptr {
	return g.baseAddr() + uintptr(relativeAddr)
}

// registerEntryPoint is called by the Composer once materialization has
// run, for every instance the AST front-end named as callable from outside
// (§6 "RegisterEntryPoint").
func (g *GeneratedProgram) registerEntryPoint(name string, relativeAddr int) {
	g.entryPoints[name] = g.AbsoluteAddr(relativeAddr)
}

// EntryPoint looks up a previously registered entry point by name.
func (g *GeneratedProgram) EntryPoint(name string) (uintptr, bool) {
	addr, ok := g.entryPoints[name]
	return addr, ok
}

// Close unmaps the code section. The program must not be called again
// afterward.
func (g *GeneratedProgram) Close() error {
	return g.page.free()
}
