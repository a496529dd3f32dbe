package fastspec

// DefaultLibrary is the process-global, read-only boilerplate catalog: every
// concrete specialization this engine ships with, built once at package init
// from the buildX constructors in boilerplates_*.go (§4.1, §5).
var DefaultLibrary = NewBoilerplateLibrary(allBlueprints())

func allBlueprints() []*Blueprint {
	var bps []*Blueprint

	numericTypes := []PrimType{TypeInt64, TypeDouble}
	arithOps := []OpKind{OpAdd, OpSub, OpMul, OpDiv}
	cmpOps := []OpKind{OpCmpEQ, OpCmpNE, OpCmpLT, OpCmpLE, OpCmpGT, OpCmpGE}

	for _, t := range numericTypes {
		for _, op := range arithOps {
			bps = append(bps, buildArithExpr(t, op))
		}
		for _, op := range cmpOps {
			bps = append(bps, buildCondBranch(t, op))
			bps = append(bps, buildCompareExpr(t, op))
		}
		bps = append(bps, buildReturn(t))

		bps = append(bps, buildAssignToVar(t, AssignOpLoadImmToLeft, false))
		bps = append(bps, buildAssignToVar(t, AssignOpLoadImmToLeft, true))
		bps = append(bps, buildAssignToVar(t, AssignOpLoadImmToRight, false))
		bps = append(bps, buildAssignToVar(t, AssignOpLoadImmToRight, true))
		bps = append(bps, buildAssignToVar(t, AssignOpStoreLeftToFrame, false))
		bps = append(bps, buildAssignToVar(t, AssignOpStoreRightToFrame, false))
		bps = append(bps, buildAssignToVar(t, AssignOpLoadFrameToLeft, false))
		bps = append(bps, buildAssignToVar(t, AssignOpLoadFrameToRight, false))
	}

	// Int32 comparisons drive the sieve's counted loop (LoopBody is always
	// int32, §8 scenario 5).
	bps = append(bps, buildLoopBody())
	bps = append(bps, buildPointerArith())

	bps = append(bps, buildCastInt64ToDouble())
	bps = append(bps, buildCastDoubleToInt64())

	// Fibonacci (§8 scenario 6) only ever combines with addition; a
	// subtracting variant is included since the blueprint constructor
	// supports it cheaply and a future AST shape may need it.
	bps = append(bps, buildRecursiveCall(TypeInt64, OpAdd))
	bps = append(bps, buildRecursiveCall(TypeInt64, OpSub))

	// Exception emulation (§4.7): only int64 throws-declared functions are
	// wired today, mirroring the int64-only recursion above.
	bps = append(bps, buildThrowingReturn(TypeInt64))
	bps = append(bps, buildUnwindReturn(TypeInt64))
	bps = append(bps, buildThrowingCallExpr(TypeInt64))

	return bps
}
