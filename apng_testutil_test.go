package apng

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// encodeFramePayload runs the standard library's PNG encoder over img
// and extracts the concatenated payload of every resulting IDAT chunk,
// giving a real, valid zlib-compressed pixel stream to embed in a
// synthetic APNG fixture.
func encodeFramePayload(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture frame: %v", err)
	}
	data := buf.Bytes()[len(pngSignature):]

	var payload []byte
	for len(data) > 0 {
		length := be.Uint32(data[0:4])
		name := ChunkName(data[4:8])
		chunkPayload := data[8 : 8+length]
		data = data[8+length+4:]
		if name == idatChunk {
			payload = append(payload, chunkPayload...)
		}
		if name == iendChunk {
			break
		}
	}
	return payload
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// fixtureFrame describes one frame of a buildAPNG fixture: its
// fcTL (minus SequenceNumber, which buildAPNG assigns) and the
// already-PNG-encoded payload bytes for its image data.
type fixtureFrame struct {
	FCTL    FCTL
	Payload []byte
}

// buildAPNG assembles a minimal, valid APNG byte stream: signature,
// IHDR, acTL, then an fcTL+fdAT pair for every frame including frame 0
// (the form where a fresh fcTL follows acTL directly; frame 0's fdAT
// list doubles as the default image), and IEND.
func buildAPNG(t *testing.T, width, height uint32, numPlays uint32, frames []fixtureFrame) []byte {
	t.Helper()
	if len(frames) == 0 {
		t.Fatal("buildAPNG: at least one frame required")
	}

	ihdr := IHDR{Width: width, Height: height, BitDepth: 8, ColorType: ColorTrueColorAlpha}

	var out bytes.Buffer
	out.Write(pngSignature)
	out.Write(encodeChunk(ihdrChunk, ihdr.encode()))
	out.Write(encodeChunk(actlChunk, ACTL{NumFrames: uint32(len(frames)), NumPlays: numPlays}.encode()))

	seq := uint32(0)
	for _, f := range frames {
		fc := f.FCTL
		fc.SequenceNumber = seq
		seq++
		out.Write(encodeChunk(fctlChunk, fc.encode()))

		fdat := make([]byte, 4+len(f.Payload))
		be.PutUint32(fdat[0:4], seq)
		seq++
		copy(fdat[4:], f.Payload)
		out.Write(encodeChunk(fdatChunk, fdat))
	}
	out.Write(iendBytes)
	return out.Bytes()
}
