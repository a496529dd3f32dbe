package fastspec

// Composer is the external-interface surface (§6) an AST front end drives:
// instantiate blueprints from the library, wire their placeholders together
// into snippets, register named entry points, and materialize the whole
// composition into one GeneratedProgram. A front end that turns a parsed
// program into calls against this type is out of scope for this engine
// (§7 Non-goals) — the tests in boundary_amd64_test.go drive it directly, the way original_source's
// own unit tests drive its composition API beneath the language frontend.
type Composer struct {
	instances  []*Instance
	entryNames map[string]*Instance

	// ExecCtx is this composition's soft-exception bookkeeping record
	// (§4.7, §4.8): BuildThrowingCall brackets every throws-declared call
	// boundary it builds with EnterCall/ExitCall, and the same context is
	// handed to the GeneratedProgram so a CallableWrapper bound to a
	// throws entry point can recover a rethrown exception from the
	// thread-local Outstanding slot it shares with this composition.
	ExecCtx *ExecContext
}

// NewComposer starts a fresh, empty composition.
func NewComposer() *Composer {
	return &Composer{entryNames: make(map[string]*Instance), ExecCtx: NewExecContext()}
}

// Instantiate selects the unique blueprint for (kind, meta) from the
// default library and realizes a fresh, trackable Instance of it (§6
// "Instantiate").
func (c *Composer) Instantiate(kind TemplateKind, meta MetaTuple) *Instance {
	bp := DefaultLibrary.Select(kind, meta)
	inst := NewInstance(bp)
	c.track(inst)
	return inst
}

func (c *Composer) track(inst *Instance) {
	c.instances = append(c.instances, inst)
}

// PopulateBpFnPtr, PopulateHostFnPtr and PopulateConstant are thin,
// symmetrically-named passthroughs to the Instance methods of the same
// shape (§6), so front-end code drives everything through one type.
func (c *Composer) PopulateBpFnPtr(inst *Instance, ordinal int, target *Instance) {
	inst.PopulateBpFn(ordinal, target)
}

func (c *Composer) PopulateHostFnPtr(inst *Instance, ordinal int, addr uint64) {
	inst.PopulateHostFn(ordinal, addr)
}

func (c *Composer) PopulateConstant(inst *Instance, ordinal int, value uint64) {
	inst.PopulateConstant(ordinal, value)
}

// RegisterEntryPoint names an instance as a callable entry point once
// materialization has run (§6 "RegisterEntryPoint"). The instance need not
// already be populated or laid out; only Materialize needs that.
func (c *Composer) RegisterEntryPoint(name string, inst *Instance) {
	c.entryNames[name] = inst
}

// wrapperCalleeOrd is the bp-fn ordinal a CDECL wrapper's single internal
// call site uses to reach the composed body it wraps.
const wrapperCalleeOrd = 0

// BuildEntryPoint builds and registers the CDECL wrapper fragment bridging
// the System V AMD64 ABI to this engine's internal calling convention
// (§4.6 "dual ABI", §4.7): marshal incoming SysV arguments into a freshly
// carved stack frame, make one real x86 CALL into body.Entry (so body's
// eventual buildReturn's bare RET returns straight back here), then tear
// the frame down and return. Grounded on the same push/sub-rsp/mov-r15
// frame-carving idiom buildRecursiveCall uses for its own nested calls,
// just with a frame size already known (no Disp32Fixup needed) and real
// SysV argument registers feeding the frame instead of another internal
// fragment's opaque operands.
func (c *Composer) BuildEntryPoint(name string, argTypes []PrimType, retType PrimType, frameCategory int, body Snippet) *Instance {
	if err := ValidateSignature(argTypes, retType); err != nil {
		ReleaseAssert(false, "BuildEntryPoint %q: %v", name, err)
	}

	frameSize := int32(StackframeCategorySize(frameCategory))

	a := NewAssembler()
	a.Push(internalFrameBaseReg)
	a.SubRegImm32("rsp", frameSize)
	a.MovRegToReg(internalFrameBaseReg, "rsp")

	intIdx, fpIdx := 0, 0
	for i, t := range argTypes {
		disp := int32(argsAreaSize(i + 1) - 8)
		if t.IsFloatingPoint() {
			ReleaseAssert(fpIdx < 2, "BuildEntryPoint %q: at most 2 floating-point arguments are wired (xmm0/xmm1)", name)
			a.MovSDRegToMem(internalFrameBaseReg, disp, uint8(fpIdx))
			fpIdx++
		} else {
			ReleaseAssert(intIdx < len(sysvArgRegs), "BuildEntryPoint %q: too many integer arguments for sysvArgRegs", name)
			a.MovRegToMem(internalFrameBaseReg, disp, sysvArgRegs[intIdx])
			intIdx++
		}
	}

	a.CallBpFn(wrapperCalleeOrd)
	a.AddRegImm32("rsp", frameSize)
	a.Pop(internalFrameBaseReg)
	a.Ret()
	a.PadToAlignment()

	bp := &Blueprint{
		Kind:                       KindCallExpr,
		Meta:                       MetaTuple{Type: retType, Shape: ShapeBothSpilled, NoExcept: true, Spill: true},
		Content:                    a.Bytes(),
		Sym32Fixups:                a.Sym32Fixups(),
		LastInstructionTailCallOrd: NoLITC,
	}
	bp.HighestOrdinal[PlaceholderBpFn] = wrapperCalleeOrd + 1
	bp.UsedMask[PlaceholderBpFn] = bp.UsedMask[PlaceholderBpFn].set(wrapperCalleeOrd)
	bp.validate()

	inst := NewInstance(bp)
	inst.PopulateBpFn(wrapperCalleeOrd, body.Entry)
	c.track(inst)
	c.RegisterEntryPoint(name, inst)
	return inst
}

// BuildThrowingCall instantiates the throws-declared call boundary (§4.7):
// bp-fn #throwingCalleeOrd is wired to callee, and EnterCall/ExitCall
// bracket the instantiation of this one call boundary. The two pair up
// inside this method, so the CFR depth is back to zero when it returns:
// throws calls built by separate BuildThrowingCall calls are not counted
// against maxCFRDepth, however deeply they nest at run time. The caller still wires
// the returned instance's continuationOrd and exceptionTailOrd placeholders
// itself, the same way any other two-exit-edge instance (buildCondBranch)
// is wired.
func (c *Composer) BuildThrowingCall(t PrimType, callee *Instance) *Instance {
	c.ExecCtx.EnterCall()
	defer c.ExecCtx.ExitCall()

	inst := c.Instantiate(KindCallExpr, MetaTuple{Type: t, Shape: ShapeBothSpilled, NoExcept: false, Spill: true})
	inst.PopulateBpFn(throwingCalleeOrd, callee)
	return inst
}

// Materialize lays out and materializes every tracked instance, then
// registers every name added via RegisterEntryPoint against the resulting
// program (§6 "Materialize").
func (c *Composer) Materialize() (*GeneratedProgram, error) {
	layout := Layout(c.instances)
	program, err := Materialize(layout)
	if err != nil {
		return nil, err
	}
	for name, inst := range c.entryNames {
		program.registerEntryPoint(name, inst.RelativeAddr)
	}
	program.execCtx = c.ExecCtx
	return program, nil
}
