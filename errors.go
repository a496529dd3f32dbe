package fastspec

import "fmt"

// Programming-error invariant violations (§7): a placeholder left
// unpopulated, a blueprint selected for an impossible meta-tuple, a
// malformed LITC chain. These are bugs in the caller, not runtime
// conditions, so they panic rather than returning an error — mirrors the
// teacher's TestAssert/ReleaseAssert style carried over from
// original_source's common.h assertions.

// InvariantViolation is the panic value raised by ReleaseAssert/TestAssert.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return e.Msg }

// ReleaseAssert panics with a formatted message when cond is false. Used for
// invariants that must hold even in a release build (e.g. code-size
// overflow, a listed fixup offset outside the instance).
func ReleaseAssert(cond bool, format string, args ...any) {
	if !cond {
		panic(&InvariantViolation{Msg: fmt.Sprintf(format, args...)})
	}
}

// TestAssert is ReleaseAssert gated by DebugAssertions. No check in this
// package calls TestAssert: the double-population and used-mask checks use
// ReleaseAssert, so setting DebugAssertions to false does not disable them.
var DebugAssertions = true

func TestAssert(cond bool, format string, args ...any) {
	if DebugAssertions && !cond {
		panic(&InvariantViolation{Msg: fmt.Sprintf(format, args...)})
	}
}
