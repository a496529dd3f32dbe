package fastspec

// Thin assembly trampolines (call_amd64.s) that invoke a raw code address
// under the System V AMD64 ABI. Go itself has no syntax for casting a
// uintptr to a callable value, so a handful of fixed-arity stubs carry
// arguments from Go's ABI0 assembly calling convention into the integer
// and SSE argument registers a CDECL entry point expects — the same shape
// of glue every in-process Go JIT reaches for at the Go/native boundary,
// since the teacher's own compiler never executes what it emits (it only
// ever ships a linkable object file for an external linker to assemble).

//go:noescape
func callFn0(addr uintptr) int64

//go:noescape
func callFn1(addr uintptr, a0 int64) int64

//go:noescape
func callFn2(addr uintptr, a0, a1 int64) int64

//go:noescape
func callFnDouble2(addr uintptr, a0, a1 float64) float64

// The Exc-suffixed trampolines additionally capture rdx, the throws-
// declared calling convention's has_exception flag (§4.7, §4.8 step 4):
// buildThrowingReturn/buildUnwindReturn leave it set right before their own
// Ret, and nothing in a CDECL wrapper's epilogue between that Ret and this
// trampoline's own RET touches rdx, so it rides out untouched the same way
// the return value itself does.

//go:noescape
func callFn0Exc(addr uintptr) (value int64, hasException int64)

//go:noescape
func callFn1Exc(addr uintptr, a0 int64) (value int64, hasException int64)

//go:noescape
func callFn2Exc(addr uintptr, a0, a1 int64) (value int64, hasException int64)
