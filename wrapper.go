package fastspec

import "fmt"

// CallableWrapper is a host-callable handle for one CDECL entry point
// inside a GeneratedProgram (§4.7, §6): the "external-language callable
// host wrapper" the embedding application invokes once composition is
// done. Grounded on the teacher's CFFI manager (cffi.go/cffi_manager.go),
// minus header parsing — this engine already knows a wrapper's signature
// because the composer built it, rather than needing to parse a C
// prototype to recover one.
type CallableWrapper struct {
	program *GeneratedProgram
	addr    uintptr
	nArgs   int
	retType PrimType

	// throws marks a wrapper bound to a throws-declared entry point built
	// atop buildThrowingCallExpr/buildThrowingReturn/buildUnwindReturn: its
	// call trampoline additionally inspects has_exception and rethrows
	// from program.execCtx's thread-local slot (§4.8 step 4).
	throws bool
}

// NewCallableWrapper binds a wrapper to a previously registered entry
// point.
func NewCallableWrapper(program *GeneratedProgram, entryPointName string, nArgs int, retType PrimType) (*CallableWrapper, error) {
	addr, ok := program.EntryPoint(entryPointName)
	if !ok {
		return nil, fmt.Errorf("fastspec: no entry point registered under %q", entryPointName)
	}
	return &CallableWrapper{program: program, addr: addr, nArgs: nArgs, retType: retType}, nil
}

// NewThrowingCallableWrapper is NewCallableWrapper's sibling for a
// throws-declared entry point (§4.7, §4.8 step 4): every call goes through
// the has_exception-aware trampoline and rethrows via the composition's
// shared ExecContext instead of assuming success.
func NewThrowingCallableWrapper(program *GeneratedProgram, entryPointName string, nArgs int, retType PrimType) (*CallableWrapper, error) {
	w, err := NewCallableWrapper(program, entryPointName, nArgs, retType)
	if err != nil {
		return nil, err
	}
	ReleaseAssert(program.execCtx != nil, "fastspec: NewThrowingCallableWrapper %q: program has no ExecContext (not built through Composer.Materialize)", entryPointName)
	w.throws = true
	return w, nil
}

// CallInt64 invokes an integer/pointer-returning entry point. Every
// boundary scenario in §8 needs at most two integer arguments at its host
// call site — recursive Fibonacci calls itself internally, never back out
// to the host — so the zero-, one- and two-argument trampolines cover all
// of them.
func (w *CallableWrapper) CallInt64(args ...int64) (int64, error) {
	if w.retType.IsFloatingPoint() {
		return 0, fmt.Errorf("fastspec: CallInt64 on a %v-returning wrapper", w.retType)
	}
	if len(args) != w.nArgs {
		return 0, fmt.Errorf("fastspec: wrapper takes %d arguments, got %d", w.nArgs, len(args))
	}
	if w.throws {
		var value, hasExc int64
		switch len(args) {
		case 0:
			value, hasExc = callFn0Exc(w.addr)
		case 1:
			value, hasExc = callFn1Exc(w.addr, args[0])
		case 2:
			value, hasExc = callFn2Exc(w.addr, args[0], args[1])
		default:
			return 0, fmt.Errorf("fastspec: CallInt64 supports at most 2 arguments, got %d", len(args))
		}
		return w.settleThrow(value, hasExc)
	}
	switch len(args) {
	case 0:
		return callFn0(w.addr), nil
	case 1:
		return callFn1(w.addr, args[0]), nil
	case 2:
		return callFn2(w.addr, args[0], args[1]), nil
	default:
		return 0, fmt.Errorf("fastspec: CallInt64 supports at most 2 arguments, got %d", len(args))
	}
}

// CallFloat64 invokes a double-returning entry point taking two doubles
// (§8's chained-double-arithmetic scenario).
func (w *CallableWrapper) CallFloat64(args ...float64) (float64, error) {
	if !w.retType.IsFloatingPoint() {
		return 0, fmt.Errorf("fastspec: CallFloat64 on a %v-returning wrapper", w.retType)
	}
	if len(args) != w.nArgs {
		return 0, fmt.Errorf("fastspec: wrapper takes %d arguments, got %d", w.nArgs, len(args))
	}
	if len(args) != 2 {
		return 0, fmt.Errorf("fastspec: CallFloat64 supports exactly 2 arguments, got %d", len(args))
	}
	if w.throws {
		value, hasExc := callFn2Exc(w.addr, int64(args[0]), int64(args[1]))
		asFloat, err := w.settleThrow(value, hasExc)
		return float64(asFloat), err
	}
	return callFnDouble2(w.addr, args[0], args[1]), nil
}

// settleThrow inspects has_exception and, when set, records then
// immediately reclaims the outstanding exception from the shared
// ExecContext, returning it as a Go error (§4.8 step 4: "If throws,
// inspect has_exception; rethrow from the thread-local slot"). The
// generated code never populates ExecContext.Outstanding itself — there is
// no callback into Go from materialized code — so the wrapper is the one
// place that turns "the unwind return fired" into an actual payload.
func (w *CallableWrapper) settleThrow(value, hasException int64) (int64, error) {
	if hasException == 0 {
		return value, nil
	}
	w.program.execCtx.Throw(value)
	payload, _ := w.program.execCtx.Caught()
	return 0, fmt.Errorf("fastspec: throws-declared entry point threw: %v", payload)
}
