package apng

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/snksoft/crc"
)

// ChunkName is a 4-byte PNG/APNG chunk type code.
//
// https://www.w3.org/TR/PNG-Chunks.html ; APNG chunks per the Mozilla
// APNG specification.
type ChunkName string

const (
	ihdrChunk ChunkName = "IHDR"
	actlChunk ChunkName = "acTL"
	fctlChunk ChunkName = "fcTL"
	idatChunk ChunkName = "IDAT"
	fdatChunk ChunkName = "fdAT"
	iendChunk ChunkName = "IEND"
)

// pngSignature is the fixed 8-byte PNG magic.
var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// iendBytes is the fixed, zero-length IEND chunk.
var iendBytes = []byte{0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82}

var be = binary.BigEndian

// verifyCRC checks the CRC-32 computed over name∥payload against want.
// PNG's CRC-32 uses the standard ISO-3309/IEEE polynomial, the same
// table github.com/snksoft/crc exposes as crc.CRC32.
func verifyCRC(name ChunkName, payload []byte, want uint32) error {
	computed := computeCRC(name, payload)
	if computed != want {
		return &errCRCMismatch{Chunk: string(name), Want: want, Computed: computed}
	}
	return nil
}

func computeCRC(name ChunkName, payload []byte) uint32 {
	buf := make([]byte, 0, 4+len(payload))
	buf = append(buf, name...)
	buf = append(buf, payload...)
	return uint32(crc.CalculateCRC(crc.CRC32, buf))
}

// encodeChunk wraps payload into a complete chunk: length + name +
// payload + CRC-32.
func encodeChunk(name ChunkName, payload []byte) []byte {
	out := make([]byte, 0, 12+len(payload))
	var lenBuf [4]byte
	be.PutUint32(lenBuf[:], uint32(len(payload)))
	out = append(out, lenBuf[:]...)
	out = append(out, name...)
	out = append(out, payload...)
	var crcBuf [4]byte
	be.PutUint32(crcBuf[:], computeCRC(name, payload))
	out = append(out, crcBuf[:]...)
	return out
}

// Color types as per the PNG spec (IHDR byte 9).
const (
	ColorGreyscale      = 0
	ColorTrueColor      = 2
	ColorIndexed        = 3
	ColorGreyscaleAlpha = 4
	ColorTrueColorAlpha = 6
)

// ColorSpace is the derived device color space of an IHDR.
type ColorSpace int

const (
	ColorSpaceDeviceGray ColorSpace = iota
	ColorSpaceDeviceRGB
)

// BitmapAlphaInfo is the derived alpha layout of an IHDR's pixel data.
type BitmapAlphaInfo int

const (
	AlphaInfoNone BitmapAlphaInfo = iota
	AlphaInfoPremultipliedLast
)

// IHDR is the PNG image header chunk. It is immutable for the life of
// a Decoder; only a rewritten copy (via update) is ever produced.
type IHDR struct {
	Width             uint32
	Height            uint32
	BitDepth          uint8
	ColorType         uint8
	CompressionMethod uint8
	FilterMethod      uint8
	InterlaceMethod   uint8
}

func decodeIHDR(payload []byte) (IHDR, error) {
	if len(payload) < 13 {
		return IHDR{}, errors.WithStack(FormatError("short IHDR payload"))
	}
	return IHDR{
		Width:             be.Uint32(payload[0:4]),
		Height:            be.Uint32(payload[4:8]),
		BitDepth:          payload[8],
		ColorType:         payload[9],
		CompressionMethod: payload[10],
		FilterMethod:      payload[11],
		InterlaceMethod:   payload[12],
	}, nil
}

func (h IHDR) encode() []byte {
	payload := make([]byte, 13)
	be.PutUint32(payload[0:4], h.Width)
	be.PutUint32(payload[4:8], h.Height)
	payload[8] = h.BitDepth
	payload[9] = h.ColorType
	payload[10] = h.CompressionMethod
	payload[11] = h.FilterMethod
	payload[12] = h.InterlaceMethod
	return payload
}

// update returns an encoded IHDR chunk with width/height overwritten;
// bit depth, color type, compression, filter and interlace pass
// through unchanged. Used by the PNG Synthesizer to rewrite the header
// for a per-frame sub-image.
func (h IHDR) update(width, height uint32) []byte {
	rewritten := h
	rewritten.Width = width
	rewritten.Height = height
	return encodeChunk(ihdrChunk, rewritten.encode())
}

// ColorSpace derives the device color space: greyscale types map to
// device-gray, everything else (including indexed, expanded to RGBA at
// draw time) maps to device-RGB.
func (h IHDR) ColorSpace() ColorSpace {
	switch h.ColorType {
	case ColorGreyscale, ColorGreyscaleAlpha:
		return ColorSpaceDeviceGray
	default:
		return ColorSpaceDeviceRGB
	}
}

// AlphaInfo derives whether the pixel format carries an alpha channel.
func (h IHDR) AlphaInfo() BitmapAlphaInfo {
	switch h.ColorType {
	case ColorGreyscaleAlpha, ColorTrueColorAlpha:
		return AlphaInfoPremultipliedLast
	default:
		return AlphaInfoNone
	}
}

// SampleDepth is 8 for indexed color (palette indices are always
// stored as bytes), else the IHDR bit depth.
func (h IHDR) SampleDepth() uint8 {
	if h.ColorType == ColorIndexed {
		return 8
	}
	return h.BitDepth
}

// ComponentsPerPixel counts indexed as 4 (it is expanded to RGBA by
// the host PNG decoder before the Compositor ever sees it).
func (h IHDR) ComponentsPerPixel() int {
	switch h.ColorType {
	case ColorGreyscale:
		return 1
	case ColorTrueColor:
		return 3
	case ColorIndexed:
		return 4
	case ColorGreyscaleAlpha:
		return 2
	case ColorTrueColorAlpha:
		return 4
	default:
		return 4
	}
}

// BytesPerRow is width × bytes-per-pixel of the decoded (not the wire)
// raster the Compositor operates on, which is always an 8-bit-per-
// channel RGBA canvas regardless of the source color type.
func (h IHDR) BytesPerRow() uint64 {
	return uint64(h.Width) * 4
}

// ACTL is the animation control chunk.
type ACTL struct {
	NumFrames uint32
	NumPlays  uint32
}

func decodeACTL(payload []byte) (ACTL, error) {
	if len(payload) < 8 {
		return ACTL{}, errors.WithStack(FormatError("short acTL payload"))
	}
	return ACTL{
		NumFrames: be.Uint32(payload[0:4]),
		NumPlays:  be.Uint32(payload[4:8]),
	}, nil
}

func (a ACTL) encode() []byte {
	payload := make([]byte, 8)
	be.PutUint32(payload[0:4], a.NumFrames)
	be.PutUint32(payload[4:8], a.NumPlays)
	return payload
}

// DisposeOp is the per-frame disposal operation.
type DisposeOp uint8

const (
	DisposeNone DisposeOp = iota
	DisposeBackground
	DisposePrevious
)

// BlendOp is the per-frame blend operation.
type BlendOp uint8

const (
	BlendSource BlendOp = iota
	BlendOver
)

// FCTL is the frame control chunk.
type FCTL struct {
	SequenceNumber uint32
	Width          uint32
	Height         uint32
	XOffset        uint32
	YOffset        uint32
	DelayNum       uint16
	DelayDen       uint16
	DisposeOp      DisposeOp
	BlendOp        BlendOp
}

func decodeFCTL(payload []byte) (FCTL, error) {
	if len(payload) < 26 {
		return FCTL{}, errors.WithStack(FormatError("short fcTL payload"))
	}
	return FCTL{
		SequenceNumber: be.Uint32(payload[0:4]),
		Width:          be.Uint32(payload[4:8]),
		Height:         be.Uint32(payload[8:12]),
		XOffset:        be.Uint32(payload[12:16]),
		YOffset:        be.Uint32(payload[16:20]),
		DelayNum:       be.Uint16(payload[20:22]),
		DelayDen:       be.Uint16(payload[22:24]),
		DisposeOp:      DisposeOp(payload[24]),
		BlendOp:        BlendOp(payload[25]),
	}, nil
}

func (f FCTL) encode() []byte {
	payload := make([]byte, 26)
	be.PutUint32(payload[0:4], f.SequenceNumber)
	be.PutUint32(payload[4:8], f.Width)
	be.PutUint32(payload[8:12], f.Height)
	be.PutUint32(payload[12:16], f.XOffset)
	be.PutUint32(payload[16:20], f.YOffset)
	be.PutUint16(payload[20:22], f.DelayNum)
	be.PutUint16(payload[22:24], f.DelayDen)
	payload[24] = byte(f.DisposeOp)
	payload[25] = byte(f.BlendOp)
	return payload
}

// DelaySeconds returns the frame delay in seconds; a zero denominator
// is treated as 100 per the APNG specification.
func (f FCTL) DelaySeconds() float64 {
	den := f.DelayDen
	if den == 0 {
		den = 100
	}
	return float64(f.DelayNum) / float64(den)
}

// decodeFDAT splits an fdAT payload into its leading 4-byte sequence
// number and the remaining compressed pixel bytes.
func decodeFDAT(payload []byte) (seq uint32, data []byte, err error) {
	if len(payload) < 4 {
		return 0, nil, errors.WithStack(FormatError("short fdAT payload"))
	}
	return be.Uint32(payload[0:4]), payload[4:], nil
}

// encodeIDAT wraps arbitrary compressed bytes into one valid IDAT
// chunk with correct length and CRC.
func encodeIDAT(data []byte) []byte {
	return encodeChunk(idatChunk, data)
}
