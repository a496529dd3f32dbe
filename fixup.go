package fastspec

// SymFixup is a (byte offset, placeholder kind, ordinal) relocation record:
// at materialization the 32- or 64-bit value at Offset is incremented by the
// runtime value of the named placeholder (§3, §4.5). Kind disambiguates
// which of the instance's three ordinal spaces Ordinal indexes into — both
// host-fn and constant placeholders are patched as 64-bit absolutes, so the
// width of the patched field alone (tracked separately, by which list the
// fixup lives in) isn't enough to tell them apart.
type SymFixup struct {
	Offset  int
	Kind    PlaceholderKind
	Ordinal int
}
