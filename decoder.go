package apng

import (
	"bytes"
	"image"
	"image/png"
	"log"
	"sync"

	"github.com/pkg/errors"
)

// MaxCacheBytes bounds the inferred cache policy (§4.D.5): an
// infinitely looping animation (NumPlays == 0) whose estimated decoded
// size (height × bytes-per-row × frame count) stays under this ceiling
// is assumed small enough to keep every decoded frame resident.
const MaxCacheBytes = 32 << 20

// Options configures a Decoder's construction and playback behavior.
type Options struct {
	// SkipChecksumVerify disables CRC-32 verification on every chunk.
	SkipChecksumVerify bool
	// CacheDecodedImages forces decoded-frame caching on regardless of
	// the inferred policy.
	CacheDecodedImages bool
	// NotCacheDecodedImages forces decoded-frame caching off regardless
	// of the inferred policy. Takes precedence over CacheDecodedImages
	// if both are set.
	NotCacheDecodedImages bool
	// FullFirstPass assembles every frame's chunk references during
	// construction instead of lazily on first render.
	FullFirstPass bool
	// PreRenderAllFrames additionally composites every frame during
	// construction, caching each output image when caching is enabled.
	// Implies FullFirstPass.
	PreRenderAllFrames bool
	// LoadFrameData eagerly reads and retains chunk payloads instead of
	// keeping lazy ChunkRefs.
	LoadFrameData bool
	// UnlimitedFrameCount lifts the 1024-frame ceiling on acTL.NumFrames.
	UnlimitedFrameCount bool
}

func (o Options) cachingEnabled(a *assembly) bool {
	if o.NotCacheDecodedImages {
		return false
	}
	if o.CacheDecodedImages {
		return true
	}
	return a.actl.NumPlays == 0 && estimateTotalBytes(a) < MaxCacheBytes
}

func estimateTotalBytes(a *assembly) uint64 {
	return a.ihdr.BytesPerRow() * uint64(a.ihdr.Height) * uint64(len(a.frames))
}

// Decoder drives one APNG stream end to end: it owns the Reader, the
// Frame Assembler's running state, and the Compositor, and exposes a
// single-main/single-background-queue playback surface.
type Decoder struct {
	r    Reader
	asm  *assembly
	comp *Compositor
	opts Options

	cache    bool
	images   []*image.RGBA // populated lazily, or eagerly under PreRenderAllFrames
	position int           // index of the next frame Render will produce

	output       *image.RGBA // most recently rendered frame's raster
	currentIndex int         // index of output

	mu              sync.Mutex // serializes the single background rendering queue
	closer          func() error
	onFirstPassDone func()
	firstPassFired  bool
}

// NewDecoder constructs a Decoder over in-memory APNG bytes.
func NewDecoder(data []byte, opts Options) (*Decoder, error) {
	return newDecoder(NewMemoryReader(data), nil, opts)
}

// NewDecoderFile constructs a Decoder over a file-backed APNG. The
// returned Decoder's Close method releases the file handle.
func NewDecoderFile(path string, opts Options) (*Decoder, error) {
	fr, err := NewFileReader(path)
	if err != nil {
		return nil, err
	}
	return newDecoder(fr, fr.Close, opts)
}

func newDecoder(r Reader, closer func() error, opts Options) (*Decoder, error) {
	asm, err := newAssembly(r, opts)
	if err != nil {
		return nil, err
	}

	comp, err := NewCompositor(asm.ihdr.Width, asm.ihdr.Height)
	if err != nil {
		return nil, err
	}

	d := &Decoder{
		r:      r,
		asm:    asm,
		comp:   comp,
		opts:   opts,
		cache:  opts.cachingEnabled(asm),
		closer: closer,
	}
	d.images = make([]*image.RGBA, len(asm.frames))

	img, err := d.renderFrame(0)
	if err != nil {
		return nil, err
	}
	d.output = img
	d.currentIndex = 0
	d.position = 1
	asm.resetPoint = ResetPoint{Offset: r.Offset(), ExpectedSeq: asm.expectedSeq}

	if opts.FullFirstPass || opts.PreRenderAllFrames {
		for asm.assembled < len(asm.frames) {
			idx := asm.assembled
			if _, err := asm.continueNext(); err != nil {
				return nil, err
			}
			if opts.PreRenderAllFrames {
				if _, err := d.renderFrame(idx); err != nil {
					return nil, err
				}
			}
		}
		d.fireFirstPassDone()
	}

	return d, nil
}

// OnFirstPassDone registers a delegate invoked exactly once, the first
// time every frame in the stream has been assembled (immediately, if
// construction already finished the pass via FullFirstPass/
// PreRenderAllFrames).
func (d *Decoder) OnFirstPassDone(fn func()) {
	d.onFirstPassDone = fn
	if d.asm.firstPassDone {
		d.fireFirstPassDone()
	}
}

func (d *Decoder) fireFirstPassDone() {
	if d.firstPassFired || d.onFirstPassDone == nil {
		return
	}
	d.firstPassFired = true
	d.onFirstPassDone()
}

// FrameCount reports the total number of animation frames.
func (d *Decoder) FrameCount() int { return len(d.asm.frames) }

// NumPlays reports the acTL play count (0 means loop forever).
func (d *Decoder) NumPlays() uint32 { return d.asm.actl.NumPlays }

// Delay returns frame i's display duration in seconds.
func (d *Decoder) Delay(i int) float64 { return d.asm.frames[i].Control.DelaySeconds() }

// Output returns the most recently rendered frame's composited raster.
func (d *Decoder) Output() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.output
}

// CurrentIndex returns the index of the most recently rendered frame.
func (d *Decoder) CurrentIndex() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentIndex
}

// RenderNext composites the next frame in sequence on the serial
// background rendering queue and delivers the result to fn once ready.
// fn is called from a background goroutine, mirroring a single serial
// worker queue distinct from the caller's own context.
func (d *Decoder) RenderNext(fn func(*image.RGBA, error)) {
	go func() {
		img, err := d.RenderNextSync()
		fn(img, err)
	}()
}

// RenderNextSync composites and returns the next frame synchronously,
// blocking the caller until it is ready. Concurrent callers are
// serialized: only one render runs at a time, matching the single
// background rendering queue of the design.
func (d *Decoder) RenderNextSync() (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	index := d.position
	if index >= len(d.asm.frames) {
		index = 0
		d.position = 0
	}

	if index >= d.asm.assembled {
		if _, err := d.asm.continueNext(); err != nil {
			return nil, err
		}
		if d.asm.firstPassDone {
			d.fireFirstPassDone()
		}
	}

	img, err := d.renderFrame(index)
	if err != nil {
		return nil, err
	}
	d.output = img
	d.currentIndex = index
	d.position = index + 1
	return img, nil
}

// renderFrame produces frame i's output, consulting/populating the
// image cache according to the configured policy.
func (d *Decoder) renderFrame(i int) (*image.RGBA, error) {
	if d.cache && d.images[i] != nil {
		return d.images[i], nil
	}

	frame := d.asm.frames[i]
	payloads, err := frame.Payloads(d.r)
	if err != nil {
		return nil, &InternalError{Cause: err}
	}

	width, height := frame.Control.Width, frame.Control.Height
	pngBytes := synthesizePNG(d.asm.ihdr, d.asm.sharedPrefix, width, height, payloads)

	decoded, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, &InvalidFrameImageDataError{Index: i, Cause: err}
	}
	if decoded == nil {
		return nil, &FrameImageCreatingFailedError{Index: i}
	}

	out, err := d.comp.Render(frame.Control, decoded, d.asm.ihdr.Height)
	if err != nil {
		return nil, &OutputImageCreatingFailedError{Index: i}
	}

	if d.cache {
		d.images[i] = out
	}
	return out, nil
}

// cacheFullyPopulated reports whether every frame slot in d.images holds
// a decoded raster. Per §4.G, a full cache survives a reset; a cache
// with any empty slot (or caching disabled entirely) does not.
func (d *Decoder) cacheFullyPopulated() bool {
	if !d.cache {
		return false
	}
	for _, img := range d.images {
		if img == nil {
			return false
		}
	}
	return true
}

// Reset rewinds playback to frame 0 using the reset point captured at
// construction, without re-validating the header/acTL/shared-prefix
// region of the stream. A fully-populated decoded-image cache survives
// the reset; an incomplete one is discarded entirely. Reset is a no-op
// when frame 0 is already the current frame.
func (d *Decoder) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.currentIndex == 0 {
		return nil
	}

	if err := d.r.Seek(d.asm.resetPoint.Offset); err != nil {
		return errors.WithStack(err)
	}
	d.asm.expectedSeq = d.asm.resetPoint.ExpectedSeq
	d.asm.assembled = 1
	for i := 1; i < len(d.asm.frames); i++ {
		d.asm.frames[i] = nil
	}

	if !d.cacheFullyPopulated() {
		for i := range d.images {
			d.images[i] = nil
		}
		d.comp.Reset()
	}

	img, err := d.renderFrame(0)
	if err != nil {
		return err
	}
	d.output = img
	d.currentIndex = 0
	d.position = 1
	log.Printf("apng: decoder reset to frame 0")
	return nil
}

// Close releases any underlying file handle; it is a no-op for
// memory-backed decoders.
func (d *Decoder) Close() error {
	if d.closer != nil {
		return d.closer()
	}
	return nil
}
