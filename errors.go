package apng

import "fmt"

// FormatError reports a PNG/APNG stream that failed to parse structurally:
// a bad signature or a chunk header that could not be read.
type FormatError string

func (e FormatError) Error() string { return "apng: invalid format: " + string(e) }

// LackOfChunkError reports a required chunk (acTL, IEND) that never
// appeared in the stream.
type LackOfChunkError struct {
	Chunk string
}

func (e *LackOfChunkError) Error() string {
	return fmt.Sprintf("apng: missing required chunk %q", e.Chunk)
}

// MultipleAnimationControlError reports a second acTL chunk.
type MultipleAnimationControlError struct{}

func (e *MultipleAnimationControlError) Error() string {
	return "apng: multiple animation control (acTL) chunks"
}

// InvalidFrameCountError reports an acTL.NumFrames that is zero, or at
// least 1024 without UnlimitedFrameCount set.
type InvalidFrameCountError struct {
	Value uint32
}

func (e *InvalidFrameCountError) Error() string {
	return fmt.Sprintf("apng: invalid number of frames: %d", e.Value)
}

// SequenceError reports a break in the strictly increasing fcTL/fdAT
// sequence-number series.
type SequenceError struct {
	Expected uint32
	Got      uint32
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("apng: wrong sequence number: expected %d, got %d", e.Expected, e.Got)
}

// FrameDataNotFoundError reports a frame whose fdAT payload list is
// empty at the position where sequence data was expected.
type FrameDataNotFoundError struct {
	ExpectedSequence uint32
}

func (e *FrameDataNotFoundError) Error() string {
	return fmt.Sprintf("apng: frame data not found at sequence %d", e.ExpectedSequence)
}

// ImageDataNotFoundError reports a stream whose default-image IDAT list
// is empty.
type ImageDataNotFoundError struct{}

func (e *ImageDataNotFoundError) Error() string { return "apng: image data not found" }

// CanvasCreatingFailedError reports that the off-screen raster could
// not be allocated because its width or height is zero.
type CanvasCreatingFailedError struct {
	Width, Height uint32
}

func (e *CanvasCreatingFailedError) Error() string {
	return fmt.Sprintf("apng: canvas creation failed for %dx%d", e.Width, e.Height)
}

// InvalidFrameImageDataError reports a synthesized per-frame PNG that
// the host PNG decoder rejected.
type InvalidFrameImageDataError struct {
	Index int
	Cause error
}

func (e *InvalidFrameImageDataError) Error() string {
	return fmt.Sprintf("apng: invalid frame image data at index %d: %v", e.Index, e.Cause)
}

func (e *InvalidFrameImageDataError) Unwrap() error { return e.Cause }

// FrameImageCreatingFailedError reports the host decoder accepting the
// bytes but returning no usable image.
type FrameImageCreatingFailedError struct {
	Index int
}

func (e *FrameImageCreatingFailedError) Error() string {
	return fmt.Sprintf("apng: frame image creation failed at index %d", e.Index)
}

// OutputImageCreatingFailedError reports that the compositor could not
// snapshot the canvas into an output raster.
type OutputImageCreatingFailedError struct {
	Index int
}

func (e *OutputImageCreatingFailedError) Error() string {
	return fmt.Sprintf("apng: output image creation failed at index %d", e.Index)
}

// InternalError wraps any non-classified failure bubbled up from the
// reader or the host PNG decoder.
type InternalError struct {
	Cause error
}

func (e *InternalError) Error() string { return fmt.Sprintf("apng: internal error: %v", e.Cause) }

func (e *InternalError) Unwrap() error { return e.Cause }

// errCRCMismatch is returned by the chunk codec when checksum
// verification is enabled and fails. The walker, the assembler and
// the decoder return it as is; it is not wrapped in InternalError.
type errCRCMismatch struct {
	Chunk    string
	Want     uint32
	Computed uint32
}

func (e *errCRCMismatch) Error() string {
	return fmt.Sprintf("apng: crc mismatch in %s chunk: stream has %08x, computed %08x", e.Chunk, e.Want, e.Computed)
}
