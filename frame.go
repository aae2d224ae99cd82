package apng

// Frame is one animation frame: its fcTL control plus the ordered data
// chunks that reconstruct its pixels. Frames are created once by the
// Frame Assembler and are immutable thereafter; a Frame exclusively
// owns its Control and its data chunk list.
//
// Data is held either as lazy ChunkRefs (re-read from the Reader on
// demand, the default) or as eagerly loaded bytes when
// Options.LoadFrameData is set — never both.
type Frame struct {
	Control FCTL

	refs  []ChunkRef
	eager [][]byte
}

// Payloads resolves the frame's ordered data-chunk payloads, reading
// from r for any lazy references.
func (f *Frame) Payloads(r Reader) ([][]byte, error) {
	if f.eager != nil {
		return f.eager, nil
	}
	out := make([][]byte, len(f.refs))
	for i, ref := range f.refs {
		b, err := r.Load(ref)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
