//go:build amd64 && linux

package fastspec

import (
	"math"
	"testing"
)

func TestBoundaryAddTwoZeroConstants(t *testing.T) {
	c := NewComposer()
	loadLeft := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadImmToLeft, Shape: ShapeBothPinned, IsQuick: true, NoExcept: true})
	loadRight := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadImmToRight, Shape: ShapeBothPinned, IsQuick: true, NoExcept: true})
	add := c.Instantiate(KindArithExpr, MetaTuple{Type: TypeInt64, Op: OpAdd, Shape: ShapeBothPinned, NoExcept: true})
	ret := c.Instantiate(KindReturn, MetaTuple{Type: TypeInt64, Shape: ShapeBothPinned, NoExcept: true, Spill: true})

	body := Single(loadLeft).Append(Single(loadRight)).Append(Single(add)).Append(Terminal(ret))

	frame := NewStackFrameManager(0)
	c.BuildEntryPoint("add_zeros", nil, TypeInt64, frame.FinalSize(), body)

	program, err := c.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	defer program.Close()

	wrapper, err := NewCallableWrapper(program, "add_zeros", 0, TypeInt64)
	if err != nil {
		t.Fatalf("NewCallableWrapper: %v", err)
	}
	got, err := wrapper.CallInt64()
	if err != nil {
		t.Fatalf("CallInt64: %v", err)
	}
	if got != 0 {
		t.Fatalf("0 + 0 = %d, want 0", got)
	}
}

func TestBoundaryMultiplyConstants(t *testing.T) {
	c := NewComposer()
	loadLeft := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadImmToLeft, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadLeft, 0, uint64(123))
	loadRight := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadImmToRight, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadRight, 0, uint64(45678))
	mul := c.Instantiate(KindArithExpr, MetaTuple{Type: TypeInt64, Op: OpMul, Shape: ShapeBothPinned, NoExcept: true})
	ret := c.Instantiate(KindReturn, MetaTuple{Type: TypeInt64, Shape: ShapeBothPinned, NoExcept: true, Spill: true})

	body := Single(loadLeft).Append(Single(loadRight)).Append(Single(mul)).Append(Terminal(ret))

	frame := NewStackFrameManager(0)
	c.BuildEntryPoint("multiply", nil, TypeInt64, frame.FinalSize(), body)

	program, err := c.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	defer program.Close()

	wrapper, err := NewCallableWrapper(program, "multiply", 0, TypeInt64)
	if err != nil {
		t.Fatalf("NewCallableWrapper: %v", err)
	}
	got, err := wrapper.CallInt64()
	if err != nil {
		t.Fatalf("CallInt64: %v", err)
	}
	if want := int64(123 * 45678); got != want {
		t.Fatalf("123 * 45678 = %d, want %d", got, want)
	}
}

// TestBoundaryChainedIntArithmetic builds (321+567)*(-123-(-89)) = 888*-34.
func TestBoundaryChainedIntArithmetic(t *testing.T) {
	c := NewComposer()
	frame := NewStackFrameManager(0)
	diffSlot := frame.PushLocal(TypeInt64)

	loadA := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadImmToLeft, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadA, 0, uint64(int64(-123)))
	loadB := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadImmToRight, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadB, 0, uint64(int64(-89)))
	sub := c.Instantiate(KindArithExpr, MetaTuple{Type: TypeInt64, Op: OpSub, Shape: ShapeBothPinned, NoExcept: true})
	storeDiff := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpStoreLeftToFrame, Shape: ShapeBothPinned, NoExcept: true, Spill: true})
	c.PopulateConstant(storeDiff, 0, uint64(diffSlot))

	loadC := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadImmToLeft, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadC, 0, uint64(321))
	loadD := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadImmToRight, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadD, 0, uint64(567))
	add := c.Instantiate(KindArithExpr, MetaTuple{Type: TypeInt64, Op: OpAdd, Shape: ShapeBothPinned, NoExcept: true})

	loadDiffBack := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadFrameToRight, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadDiffBack, 0, uint64(diffSlot))

	mul := c.Instantiate(KindArithExpr, MetaTuple{Type: TypeInt64, Op: OpMul, Shape: ShapeBothPinned, NoExcept: true})
	ret := c.Instantiate(KindReturn, MetaTuple{Type: TypeInt64, Shape: ShapeBothPinned, NoExcept: true, Spill: true})

	body := Single(loadA).Append(Single(loadB)).Append(Single(sub)).Append(Single(storeDiff)).
		Append(Single(loadC)).Append(Single(loadD)).Append(Single(add)).
		Append(Single(loadDiffBack)).Append(Single(mul)).Append(Terminal(ret))

	c.BuildEntryPoint("chained_int", nil, TypeInt64, frame.FinalSize(), body)

	program, err := c.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	defer program.Close()

	wrapper, err := NewCallableWrapper(program, "chained_int", 0, TypeInt64)
	if err != nil {
		t.Fatalf("NewCallableWrapper: %v", err)
	}
	got, err := wrapper.CallInt64()
	if err != nil {
		t.Fatalf("CallInt64: %v", err)
	}
	want := int64((321 + 567) * (-123 - (-89)))
	if got != want {
		t.Fatalf("(321+567)*(-123-(-89)) = %d, want %d", got, want)
	}
}

// TestBoundaryChainedDoubleArithmetic builds (321.0+567.0)/(-123.0-(-89.0)).
func TestBoundaryChainedDoubleArithmetic(t *testing.T) {
	c := NewComposer()
	frame := NewStackFrameManager(2) // the entry point below takes two arguments
	diffSlot := frame.PushLocal(TypeDouble)

	loadA := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeDouble, Op: AssignOpLoadImmToLeft, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadA, 0, math.Float64bits(-123.0))
	loadB := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeDouble, Op: AssignOpLoadImmToRight, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadB, 0, math.Float64bits(-89.0))
	sub := c.Instantiate(KindArithExpr, MetaTuple{Type: TypeDouble, Op: OpSub, Shape: ShapeBothPinned, NoExcept: true})
	storeDiff := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeDouble, Op: AssignOpStoreLeftToFrame, Shape: ShapeBothPinned, NoExcept: true, Spill: true})
	c.PopulateConstant(storeDiff, 0, uint64(diffSlot))

	loadC := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeDouble, Op: AssignOpLoadImmToLeft, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadC, 0, math.Float64bits(321.0))
	loadD := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeDouble, Op: AssignOpLoadImmToRight, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadD, 0, math.Float64bits(567.0))
	add := c.Instantiate(KindArithExpr, MetaTuple{Type: TypeDouble, Op: OpAdd, Shape: ShapeBothPinned, NoExcept: true})

	loadDiffBack := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeDouble, Op: AssignOpLoadFrameToRight, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadDiffBack, 0, uint64(diffSlot))

	div := c.Instantiate(KindArithExpr, MetaTuple{Type: TypeDouble, Op: OpDiv, Shape: ShapeBothPinned, NoExcept: true})
	ret := c.Instantiate(KindReturn, MetaTuple{Type: TypeDouble, Shape: ShapeBothPinned, NoExcept: true, Spill: true})

	body := Single(loadA).Append(Single(loadB)).Append(Single(sub)).Append(Single(storeDiff)).
		Append(Single(loadC)).Append(Single(loadD)).Append(Single(add)).
		Append(Single(loadDiffBack)).Append(Single(div)).Append(Terminal(ret))

	// CallFloat64 only ever trampolines through callFnDouble2, which is
	// fixed at exactly two double arguments (call_amd64.s); give the entry
	// point two unused double parameters purely to match that arity. The
	// scenario's actual operands are still the four baked-in constants
	// above, not these arguments.
	c.BuildEntryPoint("chained_double", []PrimType{TypeDouble, TypeDouble}, TypeDouble, frame.FinalSize(), body)

	program, err := c.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	defer program.Close()

	wrapper, err := NewCallableWrapper(program, "chained_double", 2, TypeDouble)
	if err != nil {
		t.Fatalf("NewCallableWrapper: %v", err)
	}
	got, err := wrapper.CallFloat64(0, 0)
	if err != nil {
		t.Fatalf("CallFloat64: %v", err)
	}
	want := (321.0 + 567.0) / (-123.0 - (-89.0))
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("(321+567)/(-123-(-89)) = %v, want %v", got, want)
	}
}

// TestBoundaryRecursiveFibonacci builds fib(25) using a real self-recursive
// x86 CALL/RET, as described by §8's sixth boundary scenario.
func TestBoundaryRecursiveFibonacci(t *testing.T) {
	c := NewComposer()
	frame := NewStackFrameManager(1) // base = argsAreaSize(1) = 16
	savedArgSlot := frame.PushLocal(TypeInt64)
	firstResultSlot := frame.PushLocal(TypeInt64)

	loadN := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadFrameToLeft, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadN, 0, uint64(8)) // the single argument's frame slot

	loadTwo := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadImmToRight, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadTwo, 0, uint64(2))

	cmp := c.Instantiate(KindCondBranch, MetaTuple{Type: TypeInt64, Op: OpCmpLT, Shape: ShapeBothPinned, NoExcept: true})

	loadN.PopulateBpFn(continuationOrd, loadTwo)
	loadTwo.PopulateBpFn(continuationOrd, cmp)

	baseReturn := c.Instantiate(KindReturn, MetaTuple{Type: TypeInt64, Shape: ShapeBothPinned, NoExcept: true, Spill: true})
	cmp.PopulateBpFn(0, baseReturn) // n < 2: rax already holds n

	recCombine := c.Instantiate(KindCallExpr, MetaTuple{Type: TypeInt64, Op: OpAdd, Shape: ShapeBothSpilled, NoExcept: true, Spill: true})
	cmp.PopulateBpFn(1, recCombine)

	frameBytes := uint64(StackframeCategorySize(frame.FinalSize()))
	c.PopulateConstant(recCombine, 0, frameBytes)
	c.PopulateConstant(recCombine, 1, uint64(savedArgSlot))
	c.PopulateConstant(recCombine, 2, uint64(firstResultSlot))
	c.PopulateBpFnPtr(recCombine, 3, loadN)

	finalReturn := c.Instantiate(KindReturn, MetaTuple{Type: TypeInt64, Shape: ShapeBothPinned, NoExcept: true, Spill: true})
	recCombine.PopulateBpFn(continuationOrd, finalReturn)

	c.BuildEntryPoint("fib", []PrimType{TypeInt64}, TypeInt64, frame.FinalSize(), Snippet{Entry: loadN})

	program, err := c.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	defer program.Close()

	wrapper, err := NewCallableWrapper(program, "fib", 1, TypeInt64)
	if err != nil {
		t.Fatalf("NewCallableWrapper: %v", err)
	}

	for _, tc := range []struct{ n, want int64 }{
		{0, 0}, {1, 1}, {2, 1}, {10, 55}, {25, 75025},
	} {
		got, err := wrapper.CallInt64(tc.n)
		if err != nil {
			t.Fatalf("CallInt64(%d): %v", tc.n, err)
		}
		if got != tc.want {
			t.Fatalf("fib(%d) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

// TestBoundaryIntegerDivision builds -9000 / 37, the int64 OpDiv path
// buildArithExpr's CQO/IDIV sequence takes — previously only ever
// instantiated with TypeDouble in this test file.
func TestBoundaryIntegerDivision(t *testing.T) {
	c := NewComposer()
	loadLeft := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadImmToLeft, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadLeft, 0, uint64(int64(-9000)))
	loadRight := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadImmToRight, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(loadRight, 0, uint64(int64(37)))
	div := c.Instantiate(KindArithExpr, MetaTuple{Type: TypeInt64, Op: OpDiv, Shape: ShapeBothPinned, NoExcept: true})
	ret := c.Instantiate(KindReturn, MetaTuple{Type: TypeInt64, Shape: ShapeBothPinned, NoExcept: true, Spill: true})

	body := Single(loadLeft).Append(Single(loadRight)).Append(Single(div)).Append(Terminal(ret))

	frame := NewStackFrameManager(0)
	c.BuildEntryPoint("int_div", nil, TypeInt64, frame.FinalSize(), body)

	program, err := c.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	defer program.Close()

	wrapper, err := NewCallableWrapper(program, "int_div", 0, TypeInt64)
	if err != nil {
		t.Fatalf("NewCallableWrapper: %v", err)
	}
	got, err := wrapper.CallInt64()
	if err != nil {
		t.Fatalf("CallInt64: %v", err)
	}
	if want := int64(-9000 / 37); got != want {
		t.Fatalf("-9000 / 37 = %d, want %d", got, want)
	}
}

// TestBoundaryThrowingCallRethrows builds a throws-declared entry point
// "maybe_throw" that makes a real internal CALL into a composed callee:
// for n != 0 the callee returns n normally (no exception); for n == 0 it
// unwinds through exceptionTailOrd instead (§4.7, §4.8 step 4). This is
// the one test exercising the exception-emulation path end to end, from
// Composer.BuildThrowingCall down to CallableWrapper.settleThrow.
func TestBoundaryThrowingCallRethrows(t *testing.T) {
	c := NewComposer()

	// Callee: load the shared frame's argument, branch on whether it's
	// zero, return it normally or unwind with it as the payload.
	calleeLoadN := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadFrameToLeft, Shape: ShapeBothPinned, NoExcept: true})
	c.PopulateConstant(calleeLoadN, 0, uint64(8)) // the single argument's frame slot
	calleeLoadZero := c.Instantiate(KindAssignToVar, MetaTuple{Type: TypeInt64, Op: AssignOpLoadImmToRight, Shape: ShapeBothPinned, IsQuick: true, NoExcept: true})
	calleeCmp := c.Instantiate(KindCondBranch, MetaTuple{Type: TypeInt64, Op: OpCmpEQ, Shape: ShapeBothPinned, NoExcept: true})
	calleeLoadN.PopulateBpFn(continuationOrd, calleeLoadZero)
	calleeLoadZero.PopulateBpFn(continuationOrd, calleeCmp)

	calleeUnwind := c.Instantiate(KindReturn, MetaTuple{Type: TypeInt64, Op: ReturnOpUnwind, Shape: ShapeBothPinned, NoExcept: false, Spill: true})
	calleeReturn := c.Instantiate(KindReturn, MetaTuple{Type: TypeInt64, Shape: ShapeBothPinned, NoExcept: false, Spill: true})
	calleeCmp.PopulateBpFn(0, calleeUnwind) // n == 0: throw, payload is n (i.e. 0)
	calleeCmp.PopulateBpFn(1, calleeReturn) // n != 0: return n normally

	// Entry point: one throws-declared call into the callee above, wired
	// to its own normal-return and exception-tail instances.
	outerCall := c.BuildThrowingCall(TypeInt64, calleeLoadN)
	outerNormalReturn := c.Instantiate(KindReturn, MetaTuple{Type: TypeInt64, Shape: ShapeBothPinned, NoExcept: false, Spill: true})
	outerUnwind := c.Instantiate(KindReturn, MetaTuple{Type: TypeInt64, Op: ReturnOpUnwind, Shape: ShapeBothPinned, NoExcept: false, Spill: true})
	outerCall.PopulateBpFn(continuationOrd, outerNormalReturn)
	outerCall.PopulateBpFn(exceptionTailOrd, outerUnwind)

	frame := NewStackFrameManager(1)
	c.BuildEntryPoint("maybe_throw", []PrimType{TypeInt64}, TypeInt64, frame.FinalSize(), Snippet{Entry: outerCall})

	program, err := c.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	defer program.Close()

	wrapper, err := NewThrowingCallableWrapper(program, "maybe_throw", 1, TypeInt64)
	if err != nil {
		t.Fatalf("NewThrowingCallableWrapper: %v", err)
	}

	got, err := wrapper.CallInt64(7)
	if err != nil {
		t.Fatalf("CallInt64(7): unexpected error %v", err)
	}
	if got != 7 {
		t.Fatalf("CallInt64(7) = %d, want 7", got)
	}

	if _, err := wrapper.CallInt64(0); err == nil {
		t.Fatalf("CallInt64(0): expected a rethrown error, got none")
	}
}

// TestBoundarySieveStructural exercises LoopBody and PointerArith
// compositionally: §8's fifth scenario's actual 10^6-element sieve needs a
// host-allocated buffer this test doesn't provision, so it only checks
// that the two template kinds wire into a materializable program, not that
// the resulting machine code counts 78498 primes.
func TestBoundarySieveStructural(t *testing.T) {
	c := NewComposer()
	ptr := c.Instantiate(KindPointerArith, MetaTuple{Type: TypePointer, Op: OpAdd, Shape: ShapeBothPinned, NoExcept: true})
	loop := c.Instantiate(KindLoopBody, MetaTuple{Type: TypeInt32, Op: OpSub, Shape: ShapeBothPinned, NoExcept: true})
	term := c.Instantiate(KindReturn, MetaTuple{Type: TypeInt64, Shape: ShapeBothPinned, NoExcept: true, Spill: true})

	ptr.PopulateBpFn(continuationOrd, loop)
	loop.PopulateBpFn(0, loop) // continue: loop back on itself
	loop.PopulateBpFn(1, term) // exit

	frame := NewStackFrameManager(0)
	c.BuildEntryPoint("sieve_stub", nil, TypeInt64, frame.FinalSize(), Snippet{Entry: ptr})

	program, err := c.Materialize()
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	defer program.Close()

	if _, ok := program.EntryPoint("sieve_stub"); !ok {
		t.Fatalf("sieve_stub entry point was not registered")
	}
}
