package apng

// synthesizePNG reconstructs a standalone PNG byte stream for one
// frame: signature, a rewritten IHDR sized to the frame's own
// dimensions, every ancillary chunk captured verbatim between the
// original IHDR and acTL (palette, transparency, gamma, and the like
// all apply unchanged to every frame), a single IDAT built by
// concatenating the frame's ordered data chunks, and a fixed IEND.
// The result is handed to the host's image/png decoder, which the
// Compositor then draws onto the canvas.
func synthesizePNG(ihdr IHDR, sharedPrefix []byte, width, height uint32, payloads [][]byte) []byte {
	var data []byte
	for _, p := range payloads {
		data = append(data, p...)
	}

	out := make([]byte, 0, len(pngSignature)+17+len(sharedPrefix)+12+len(data)+len(iendBytes))
	out = append(out, pngSignature...)
	out = append(out, ihdr.update(width, height)...)
	out = append(out, sharedPrefix...)
	out = append(out, encodeIDAT(data)...)
	out = append(out, iendBytes...)
	return out
}
