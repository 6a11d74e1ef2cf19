package bindless

// TextureSlot is a handle to one entry of the bindless texture array: the
// array index shaders use to fetch the texture, plus the generation the
// handle was issued under. A slot whose index has since been freed and reused
// carries a lower generation than the live entry and fails Resolve with
// ErrStaleSlot.
type TextureSlot struct {
	Index      uint32
	Generation uint32
}

// SlotUnset is the sentinel for "no texture bound on this channel".
// It is a valid value in material slot arrays and never resolves.
var SlotUnset = TextureSlot{Index: 0xFFFFFFFF}

// IsUnset reports whether the slot is the unset sentinel.
func (s TextureSlot) IsUnset() bool {
	return s.Index == SlotUnset.Index
}
