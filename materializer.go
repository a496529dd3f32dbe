package fastspec

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/xyproto/fastspec/internal/engine"
)

// currentOS maps runtime.GOOS to this module's own OS enumeration. Anything
// outside the three the materializer's mmap path has been exercised on
// reports as unsupported rather than guessing.
func currentOS() (engine.OS, bool) {
	switch runtime.GOOS {
	case "linux":
		return engine.OSLinux, true
	case "darwin":
		return engine.OSDarwin, true
	case "freebsd":
		return engine.OSFreeBSD, true
	default:
		return 0, false
	}
}

// codePage owns one anonymous mapping that starts out R+W and is flipped to
// R+X only once, after every fixup has been applied. Grounded on the
// teacher's CodePage/HotReloadManager (hotreload_unix.go), but built on
// golang.org/x/sys/unix's wrapped mmap/mprotect/munmap instead of raw
// syscall.Syscall6, and never holding W and X permission at the same time.
type codePage struct {
	mem []byte
}

func allocCodePage(size int) (*codePage, error) {
	allocSize := alignUp(size, PageSize)
	if allocSize == 0 {
		allocSize = PageSize
	}
	mem, err := unix.Mmap(-1, 0, allocSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("fastspec: anonymous mmap of %d bytes failed: %w", allocSize, err)
	}
	return &codePage{mem: mem}, nil
}

func (p *codePage) makeExecutable() error {
	if err := unix.Mprotect(p.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("fastspec: mprotect(R+X) failed: %w", err)
	}
	return nil
}

func (p *codePage) free() error {
	if p.mem == nil {
		return nil
	}
	err := unix.Munmap(p.mem)
	p.mem = nil
	return err
}

func writeUint32(mem []byte, off int, v uint32) {
	mem[off] = byte(v)
	mem[off+1] = byte(v >> 8)
	mem[off+2] = byte(v >> 16)
	mem[off+3] = byte(v >> 24)
}

func readUint32(mem []byte, off int) uint32 {
	return uint32(mem[off]) | uint32(mem[off+1])<<8 | uint32(mem[off+2])<<16 | uint32(mem[off+3])<<24
}

func writeUint64(mem []byte, off int, v uint64) {
	for i := 0; i < 8; i++ {
		mem[off+i] = byte(v >> (8 * uint(i)))
	}
}

// liveLength is the number of an instance's content bytes that actually
// belong to it in the final image: full length, unless its trailing LITC
// jmp was stripped, in which case the last jmpRel32Len bytes are someone
// else's — the successor instance's own leading bytes, copied on top during
// materialization (§4.5).
func liveLength(inst *Instance) int {
	n := len(inst.Blueprint.Content)
	if inst.ShouldStripLITC {
		n -= jmpRel32Len
	}
	return n
}

// applyFixups patches one instance's copied bytes in place. Any fixup
// offset falling at or past liveLength is skipped: those bytes were
// overwritten by the successor instance's own content, and patching them
// would corrupt it.
func applyFixups(mem []byte, inst *Instance) {
	bp := inst.Blueprint
	addr := inst.RelativeAddr
	live := liveLength(inst)

	for _, f := range bp.Sym32Fixups {
		if f.Offset >= live {
			continue
		}
		ReleaseAssert(f.Kind == PlaceholderBpFn, "materializer: sym32 fixup tagged with non bp-fn kind %v", f.Kind)
		slot := inst.bpFn[f.Ordinal]
		ReleaseAssert(slot.populated, "materializer: bp-fn placeholder #%d read by a sym32 fixup but never populated", f.Ordinal)
		siteAddr := addr + f.Offset
		disp := int32(slot.target.RelativeAddr - (siteAddr + 4))
		writeUint32(mem, siteAddr, uint32(disp))
	}

	for _, f := range bp.Sym64Fixups {
		if f.Offset >= live {
			continue
		}
		var value uint64
		switch f.Kind {
		case PlaceholderHostFn:
			slot := inst.hostFn[f.Ordinal]
			ReleaseAssert(slot.populated, "materializer: host-fn placeholder #%d read by a sym64 fixup but never populated", f.Ordinal)
			value = slot.value
		case PlaceholderConstant:
			slot := inst.constant[f.Ordinal]
			ReleaseAssert(slot.populated, "materializer: constant placeholder #%d read by a sym64 fixup but never populated", f.Ordinal)
			value = slot.value
		default:
			ReleaseAssert(false, "materializer: sym64 fixup with unexpected kind %v", f.Kind)
		}
		writeUint64(mem, addr+f.Offset, value)
	}

	for _, f := range bp.Disp32Fixups {
		if f.Offset >= live {
			continue
		}
		ReleaseAssert(f.Kind == PlaceholderConstant, "materializer: disp32 fixup tagged with non-constant kind %v", f.Kind)
		slot := inst.constant[f.Ordinal]
		ReleaseAssert(slot.populated, "materializer: constant placeholder #%d read by a disp32 fixup but never populated", f.Ordinal)
		writeUint32(mem, addr+f.Offset, uint32(int32(slot.value)))
	}
}

// shortenBranches rewrites a direct jmp/jcc rel32 to the equivalent rel8
// form when the already-patched displacement fits in a signed byte,
// padding the freed bytes with single-byte NOPs so every later instance's
// RelativeAddr (fixed by Layout before any of this ran) stays valid (§4.5).
func shortenBranches(mem []byte, inst *Instance) {
	base := inst.RelativeAddr
	live := liveLength(inst)

	for _, off := range inst.Blueprint.Jmp32Offsets {
		if off >= live {
			continue
		}
		site := base + off
		oldDisp := int32(readUint32(mem, site+1))
		newDisp := oldDisp + (jmpRel32Len - 2)
		if newDisp < -128 || newDisp > 127 {
			continue
		}
		mem[site] = 0xEB
		mem[site+1] = byte(int8(newDisp))
		for i := 2; i < jmpRel32Len; i++ {
			mem[site+i] = 0x90
		}
	}

	const jccRel32Len = 6
	for _, off := range inst.Blueprint.JccOffsets {
		if off >= live {
			continue
		}
		site := base + off
		cc := mem[site+1] - 0x80
		oldDisp := int32(readUint32(mem, site+2))
		newDisp := oldDisp + (jccRel32Len - 2)
		if newDisp < -128 || newDisp > 127 {
			continue
		}
		mem[site] = 0x70 + cc
		mem[site+1] = byte(int8(newDisp))
		for i := 2; i < jccRel32Len; i++ {
			mem[site+i] = 0x90
		}
	}
}

// invalidateInstructionCache is a documented no-op: x86-64 maintains
// instruction/data cache coherency in hardware, unlike the ARM64 targets
// this engine explicitly doesn't support (§7 Non-goals). Kept as a named
// step so the materialization pipeline reads the same on every arch this
// engine might someday grow into.
func invalidateInstructionCache(_ []byte) {}

// Materialize copies every instance in layout.Order into one fresh
// executable mapping, patches every fixup, shortens branches where the
// final displacement allows it, and flips the mapping from R+W to R+X
// (§4.5, §4.6). Every instance must already be fully populated; Materialize
// asserts that itself before copying any bytes.
func Materialize(layout *LayoutResult) (*GeneratedProgram, error) {
	arch, archErr := engine.ParseArch(runtime.GOARCH)
	os, osOK := currentOS()
	if archErr != nil || !arch.Supported() || !osOK {
		return nil, fmt.Errorf("fastspec: unsupported platform %s-%s: this engine's layout and materialization only target %s",
			runtime.GOARCH, runtime.GOOS, engine.Platform{Arch: engine.ArchX86_64, OS: engine.OSLinux})
	}

	for _, inst := range layout.Order {
		inst.assertFullyPopulated()
	}

	page, err := allocCodePage(layout.CodeSectionLength)
	if err != nil {
		return nil, err
	}

	for _, inst := range layout.Order {
		content := inst.Blueprint.Content
		dst := page.mem[inst.RelativeAddr : inst.RelativeAddr+len(content)]
		copy(dst, content)
	}

	for _, inst := range layout.Order {
		applyFixups(page.mem, inst)
		shortenBranches(page.mem, inst)
	}

	invalidateInstructionCache(page.mem)

	if err := page.makeExecutable(); err != nil {
		_ = page.free()
		return nil, err
	}

	return &GeneratedProgram{page: page, entryPoints: make(map[string]uintptr)}, nil
}
