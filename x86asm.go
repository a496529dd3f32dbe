package fastspec

import "bytes"

// Assembler builds one blueprint's machine-code content together with its
// fixup tables. It stands in for the "offline builder" collaborator of §6,
// which is out of scope for this engine: instead of compiling an annotated
// C++ fragment and extracting relocation records from the object file,
// boilerplates_*.go calls Assembler directly at package-init time to
// produce the same shape of artifact (bytes plus fixups).
//
// Encodings below are grounded on the teacher's hand-written x86-64
// instruction emitters (mov.go, add.go, sub.go, imul.go, cmp.go, jmp.go,
// call.go, ret.go, lea.go, reg.go): REX-prefixed ModRM/SIB forms, direct
// rel32 call/jmp, and the 0F8x conditional jump family.
type Assembler struct {
	buf    bytes.Buffer
	sym32  []SymFixup
	sym64  []SymFixup
	disp32 []SymFixup
	jmp32  []int
	jcc    []int
}

func NewAssembler() *Assembler { return &Assembler{} }

func (a *Assembler) Len() int { return a.buf.Len() }

func (a *Assembler) emit(bs ...byte) { a.buf.Write(bs) }

func (a *Assembler) emitImm32(v int32) {
	a.emit(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (a *Assembler) emitImm64(v uint64) {
	for i := 0; i < 8; i++ {
		a.emit(byte(v >> (8 * uint(i))))
	}
}

// gpRegs mirrors the encoding table in the teacher's reg.go.
var gpRegs = map[string]uint8{
	"rax": 0, "rcx": 1, "rdx": 2, "rbx": 3, "rsp": 4, "rbp": 5, "rsi": 6, "rdi": 7,
	"r8": 8, "r9": 9, "r10": 10, "r11": 11, "r12": 12, "r13": 13, "r14": 14, "r15": 15,
}

func regEncoding(name string) uint8 {
	enc, ok := gpRegs[name]
	ReleaseAssert(ok, "x86asm: unknown general-purpose register %q", name)
	return enc
}

func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrm(mod, regField, rm uint8) byte {
	return (mod << 6) | ((regField & 7) << 3) | (rm & 7)
}

// MovRegToReg: mov dst, src (REX.W 89 /r).
func (a *Assembler) MovRegToReg(dst, src string) {
	d, s := regEncoding(dst), regEncoding(src)
	a.emit(rex(true, s >= 8, false, d >= 8), 0x89, modrm(3, s, d))
}

// MovImm64ToReg emits `mov dst, imm64` with a zeroed immediate field and
// returns its offset, so the caller can register a Sym64Fixup (for
// host-fn/constant placeholders) against it.
func (a *Assembler) MovImm64ToReg(dst string) int {
	d := regEncoding(dst)
	a.emit(rex(true, false, false, d >= 8), 0xB8+(d&7))
	off := a.buf.Len()
	a.emitImm64(0)
	return off
}

// MovImm32ToReg emits `mov dst, imm32` (sign-extended) with a literal,
// compile-time-known value baked directly into the blueprint (used for
// values the template kind itself fixes, like the has_exception flag
// buildUnwindReturn sets in rdx, not for AST-supplied constants).
func (a *Assembler) MovImm32ToReg(dst string, imm int32) {
	d := regEncoding(dst)
	a.emit(rex(true, false, false, d >= 8), 0xC7, modrm(3, 0, d))
	a.emitImm32(imm)
}

// AddRegToReg: add dst, src (REX.W 01 /r).
func (a *Assembler) AddRegToReg(dst, src string) {
	d, s := regEncoding(dst), regEncoding(src)
	a.emit(rex(true, s >= 8, false, d >= 8), 0x01, modrm(3, s, d))
}

// SubRegToReg: sub dst, src (REX.W 29 /r).
func (a *Assembler) SubRegToReg(dst, src string) {
	d, s := regEncoding(dst), regEncoding(src)
	a.emit(rex(true, s >= 8, false, d >= 8), 0x29, modrm(3, s, d))
}

// IMulRegToReg: imul dst, src (REX.W 0F AF /r).
func (a *Assembler) IMulRegToReg(dst, src string) {
	d, s := regEncoding(dst), regEncoding(src)
	a.emit(rex(true, d >= 8, false, s >= 8), 0x0F, 0xAF, modrm(3, d, s))
}

// CmpRegToReg: cmp dst, src (REX.W 39 /r), sets flags from dst-src.
func (a *Assembler) CmpRegToReg(dst, src string) {
	d, s := regEncoding(dst), regEncoding(src)
	a.emit(rex(true, s >= 8, false, d >= 8), 0x39, modrm(3, s, d))
}

// arithImmGroup emits the REX.W 81 /digit id encoding shared by ADD,
// SUB and CMP against a 32-bit sign-extended immediate.
func (a *Assembler) arithImmGroup(digit uint8, reg string, imm int32) {
	r := regEncoding(reg)
	a.emit(rex(true, false, false, r >= 8), 0x81, modrm(3, digit, r))
	a.emitImm32(imm)
}

// AddRegImm32: add reg, imm32.
func (a *Assembler) AddRegImm32(reg string, imm int32) { a.arithImmGroup(0, reg, imm) }

// SubRegImm32: sub reg, imm32.
func (a *Assembler) SubRegImm32(reg string, imm int32) { a.arithImmGroup(5, reg, imm) }

// CmpRegImm32: cmp reg, imm32.
func (a *Assembler) CmpRegImm32(reg string, imm int32) { a.arithImmGroup(7, reg, imm) }

// SubRegImmPlaceholder/AddRegImmPlaceholder are the arithImmGroup forms
// whose immediate is a constant placeholder rather than a literal baked at
// build time — used to grow/shrink the machine stack by a per-instance
// stack-frame size (§4.2, §4.6's nested-call setup in boilerplates_call.go).
func (a *Assembler) SubRegImmPlaceholder(reg string, ordinal int) {
	r := regEncoding(reg)
	a.emit(rex(true, false, false, r >= 8), 0x81, modrm(3, 5, r))
	off := a.buf.Len()
	a.emitImm32(0)
	a.disp32 = append(a.disp32, SymFixup{Offset: off, Kind: PlaceholderConstant, Ordinal: ordinal})
}

func (a *Assembler) AddRegImmPlaceholder(reg string, ordinal int) {
	r := regEncoding(reg)
	a.emit(rex(true, false, false, r >= 8), 0x81, modrm(3, 0, r))
	off := a.buf.Len()
	a.emitImm32(0)
	a.disp32 = append(a.disp32, SymFixup{Offset: off, Kind: PlaceholderConstant, Ordinal: ordinal})
}

// Push/Pop: push/pop r64 (50+rd / 58+rd, REX.B if the register needs it).
func (a *Assembler) Push(reg string) {
	r := regEncoding(reg)
	if r >= 8 {
		a.emit(0x41)
	}
	a.emit(0x50 + (r & 7))
}

func (a *Assembler) Pop(reg string) {
	r := regEncoding(reg)
	if r >= 8 {
		a.emit(0x41)
	}
	a.emit(0x58 + (r & 7))
}

// XorRegToReg: xor dst, src (REX.W 31 /r) — zeroes dst when src==dst,
// without reading a constant placeholder at all (§8's "add two zero
// constants" scenario specializes on this instead of loading a value).
func (a *Assembler) XorRegToReg(dst, src string) {
	d, s := regEncoding(dst), regEncoding(src)
	a.emit(rex(true, s >= 8, false, d >= 8), 0x31, modrm(3, s, d))
}

// MovRegToMem: mov [base+disp32], src (REX.W 89 /r, mod=10).
func (a *Assembler) MovRegToMem(base string, disp int32, src string) {
	b, s := regEncoding(base), regEncoding(src)
	a.emit(rex(true, s >= 8, false, b >= 8), 0x89, modrm(2, s, b))
	a.emitImm32(disp)
}

// MovMemToReg: mov dst, [base+disp32] (REX.W 8B /r, mod=10).
func (a *Assembler) MovMemToReg(dst string, base string, disp int32) {
	d, b := regEncoding(dst), regEncoding(base)
	a.emit(rex(true, d >= 8, false, b >= 8), 0x8B, modrm(2, d, b))
	a.emitImm32(disp)
}

// MovMemToRegFrom a frame-relative offset supplied as a constant
// placeholder rather than baked at blueprint-construction time: one
// blueprint serves every local variable of a given type, regardless of
// which byte offset the composer assigned it (§4.2, §4.3).
func (a *Assembler) MovMemToRegFrom(dst string, base string, ordinal int) {
	d, b := regEncoding(dst), regEncoding(base)
	a.emit(rex(true, d >= 8, false, b >= 8), 0x8B, modrm(2, d, b))
	off := a.buf.Len()
	a.emitImm32(0)
	a.disp32 = append(a.disp32, SymFixup{Offset: off, Kind: PlaceholderConstant, Ordinal: ordinal})
}

// MovRegToMemAt is the store counterpart of MovMemToRegFrom.
func (a *Assembler) MovRegToMemAt(base string, ordinal int, src string) {
	b, s := regEncoding(base), regEncoding(src)
	a.emit(rex(true, s >= 8, false, b >= 8), 0x89, modrm(2, s, b))
	off := a.buf.Len()
	a.emitImm32(0)
	a.disp32 = append(a.disp32, SymFixup{Offset: off, Kind: PlaceholderConstant, Ordinal: ordinal})
}

// MovSDRegToMem/MovSDMemToReg are the literal-displacement scalar-double
// equivalents of MovRegToMem/MovMemToReg, used wherever a frame offset is
// architecture-fixed (the return-value slot) rather than placeholder-driven.
func (a *Assembler) MovSDRegToMem(base string, disp int32, srcXmm uint8) {
	b := regEncoding(base)
	a.emit(0xF2)
	if srcXmm >= 8 || b >= 8 {
		a.emit(rex(false, srcXmm >= 8, false, b >= 8))
	}
	a.emit(0x0F, 0x11, modrm(2, srcXmm, b))
	a.emitImm32(disp)
}

func (a *Assembler) MovSDMemToReg(dstXmm uint8, base string, disp int32) {
	b := regEncoding(base)
	a.emit(0xF2)
	if dstXmm >= 8 || b >= 8 {
		a.emit(rex(false, dstXmm >= 8, false, b >= 8))
	}
	a.emit(0x0F, 0x10, modrm(2, dstXmm, b))
	a.emitImm32(disp)
}

// MovSDMemToRegFrom/MovSDRegToMemAt are the scalar-double equivalents,
// used by the double-typed ArithExpr/AssignToVar/Return blueprints.
func (a *Assembler) MovSDMemToRegFrom(dstXmm uint8, base string, ordinal int) {
	b := regEncoding(base)
	a.emit(0xF2)
	if dstXmm >= 8 || b >= 8 {
		a.emit(rex(false, dstXmm >= 8, false, b >= 8))
	}
	a.emit(0x0F, 0x10, modrm(2, dstXmm, b))
	off := a.buf.Len()
	a.emitImm32(0)
	a.disp32 = append(a.disp32, SymFixup{Offset: off, Kind: PlaceholderConstant, Ordinal: ordinal})
}

func (a *Assembler) MovSDRegToMemAt(base string, ordinal int, srcXmm uint8) {
	b := regEncoding(base)
	a.emit(0xF2)
	if srcXmm >= 8 || b >= 8 {
		a.emit(rex(false, srcXmm >= 8, false, b >= 8))
	}
	a.emit(0x0F, 0x11, modrm(2, srcXmm, b))
	off := a.buf.Len()
	a.emitImm32(0)
	a.disp32 = append(a.disp32, SymFixup{Offset: off, Kind: PlaceholderConstant, Ordinal: ordinal})
}

// Ret emits a near return.
func (a *Assembler) Ret() { a.emit(0xC3) }

// Nop emits a single-byte NOP.
func (a *Assembler) Nop() { a.emit(0x90) }

// CallBpFn emits a direct call to a boilerplate-function placeholder and
// records the Sym32Fixup materialization will resolve once layout assigns
// the callee's relative_addr (§3, §4.5).
func (a *Assembler) CallBpFn(ordinal int) {
	a.emit(0xE8)
	off := a.buf.Len()
	a.emitImm32(0)
	a.sym32 = append(a.sym32, SymFixup{Offset: off, Kind: PlaceholderBpFn, Ordinal: ordinal})
}

// JmpBpFn emits a direct jmp rel32 to a boilerplate-function placeholder.
// If this is the blueprint's last instruction, the caller sets
// LastInstructionTailCallOrd to ordinal so the Layout Engine can try to
// chain it as an LITC edge.
func (a *Assembler) JmpBpFn(ordinal int) {
	opcodeOff := a.buf.Len()
	a.emit(0xE9)
	off := a.buf.Len()
	a.emitImm32(0)
	a.sym32 = append(a.sym32, SymFixup{Offset: off, Kind: PlaceholderBpFn, Ordinal: ordinal})
	a.jmp32 = append(a.jmp32, opcodeOff)
}

// Jcc condition codes, matching the 0F8x encoding family (0x80+cc).
const (
	CCEqual        = 0x4
	CCNotEqual     = 0x5
	CCLess         = 0xC
	CCLessEqual    = 0xE
	CCGreater      = 0xF
	CCGreaterEqual = 0xD
	CCBelow        = 0x2
	CCBelowEqual   = 0x6
	CCAbove        = 0x7
	CCAboveEqual   = 0x3
)

// JccBpFn emits a conditional near jump (0F 8x rel32) to a boilerplate
// placeholder.
func (a *Assembler) JccBpFn(cc uint8, ordinal int) {
	opcodeOff := a.buf.Len()
	a.emit(0x0F, 0x80+cc)
	off := a.buf.Len()
	a.emitImm32(0)
	a.sym32 = append(a.sym32, SymFixup{Offset: off, Kind: PlaceholderBpFn, Ordinal: ordinal})
	a.jcc = append(a.jcc, opcodeOff)
}

// CallHostFn loads a host-function placeholder's 64-bit address into a
// scratch register and calls it indirectly, since an arbitrary host
// address cannot be reached with a direct rel32 call (§4.6).
func (a *Assembler) CallHostFn(scratch string, ordinal int) {
	off := a.MovImm64ToReg(scratch)
	a.sym64 = append(a.sym64, SymFixup{Offset: off, Kind: PlaceholderHostFn, Ordinal: ordinal})
	r := regEncoding(scratch)
	if r >= 8 {
		a.emit(0x41)
	}
	a.emit(0xFF, modrm(3, 2, r))
}

// LoadConstant64 loads a constant placeholder's value into dst.
func (a *Assembler) LoadConstant64(dst string, ordinal int) {
	off := a.MovImm64ToReg(dst)
	a.sym64 = append(a.sym64, SymFixup{Offset: off, Kind: PlaceholderConstant, Ordinal: ordinal})
}

// --- scalar double (SSE2) support, for the double/ArithExpr boundary scenario ---

// MovQGPRToXmm: movq xmm, gpr (66 REX.W 0F 6E /r) — bit-reinterprets an
// integer register's 64 bits as a double, used to load a float64 constant
// placeholder (populated as its IEEE-754 bit pattern) into an XMM register.
func (a *Assembler) MovQGPRToXmm(xmm uint8, gpr string) {
	g := regEncoding(gpr)
	a.emit(0x66, rex(true, xmm >= 8, false, g >= 8), 0x0F, 0x6E, modrm(3, xmm, g))
}

// MovQXmmToGPR: movq gpr, xmm (66 REX.W 0F 7E /r).
func (a *Assembler) MovQXmmToGPR(gpr string, xmm uint8) {
	g := regEncoding(gpr)
	a.emit(0x66, rex(true, xmm >= 8, false, g >= 8), 0x0F, 0x7E, modrm(3, xmm, g))
}

func (a *Assembler) sseBinop(opcode byte, dst, src uint8) {
	a.emit(0xF2, rex(false, dst >= 8, false, src >= 8), 0x0F, opcode, modrm(3, dst, src))
}

// AddSD/SubSD/MulSD/DivSD: scalar double arithmetic, dst op= src.
func (a *Assembler) AddSD(dst, src uint8) { a.sseBinop(0x58, dst, src) }
func (a *Assembler) SubSD(dst, src uint8) { a.sseBinop(0x5C, dst, src) }
func (a *Assembler) MulSD(dst, src uint8) { a.sseBinop(0x59, dst, src) }
func (a *Assembler) DivSD(dst, src uint8) { a.sseBinop(0x5E, dst, src) }

// UcomiSD: ucomisd a, b (66 0F 2E /r) — unordered compare. It sets only
// ZF/PF/CF, like an unsigned CMP, so conditionCode maps floating
// comparisons to the unsigned Jcc condition codes.
func (a *Assembler) UcomiSD(x, y uint8) {
	a.emit(0x66)
	if x >= 8 || y >= 8 {
		a.emit(rex(false, x >= 8, false, y >= 8))
	}
	a.emit(0x0F, 0x2E, modrm(3, x, y))
}

// LeaBaseIndex: lea dst, [base+index*scale] with scale=1 and no displacement
// (REX.W/R/X/B 8D /r, mod=00, SIB byte with disp32=0 forced by rm=101
// trickery avoided by using rbp/r13 never as base here — callers pin a
// non-rbp/r13 base register, so the plain SIB-no-disp form applies).
func (a *Assembler) LeaBaseIndex(dst, base, index string) {
	d, b, idx := regEncoding(dst), regEncoding(base), regEncoding(index)
	ReleaseAssert(base != "rbp" && base != "r13", "LeaBaseIndex: base %q requires a disp8, not supported", base)
	a.emit(rex(true, d >= 8, idx >= 8, b >= 8), 0x8D, modrm(0, d, 4))
	a.emit(sib(0, idx, b))
}

func sib(scaleLog2, index, base uint8) byte {
	return (scaleLog2 << 6) | ((index & 7) << 3) | (base & 7)
}

// PadToAlignment pads the content with single-byte NOPs up to a multiple of
// 1<<FnAlignmentLog2 bytes (§3: blueprint content length is a multiple of
// the function alignment).
func (a *Assembler) PadToAlignment() {
	for a.buf.Len()%(1<<FnAlignmentLog2) != 0 {
		a.emit(0x90)
	}
}

func (a *Assembler) Bytes() []byte           { return a.buf.Bytes() }
func (a *Assembler) Sym32Fixups() []SymFixup { return a.sym32 }
func (a *Assembler) Sym64Fixups() []SymFixup { return a.sym64 }
func (a *Assembler) Disp32Fixups() []SymFixup { return a.disp32 }
func (a *Assembler) Jmp32Offsets() []int     { return a.jmp32 }
func (a *Assembler) JccOffsets() []int       { return a.jcc }
